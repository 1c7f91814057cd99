package events

import "time"

const (
	ConversationCreated       = "conversation.created"
	ConversationConfigUpdated = "conversation.config_updated"
	ConversationDeleted       = "conversation.deleted"
	ChatTurnCompleted         = "chat.turn_completed"
	ChatTurnFailed            = "chat.turn_failed"
)

// Event defines the contract for all domain events.
type Event interface {
	// EventType is the dotted event name; it becomes the subject suffix.
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func New(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
