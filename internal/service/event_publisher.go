package service

import (
	"context"

	"secondbrain-be/internal/pkg/logger"
	"secondbrain-be/pkg/events"
)

// IEventPublisher is satisfied by the NATS publisher. A nil publisher disables events.
type IEventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// publishEvent is fire-and-forget: a failed publish never fails the request.
func publishEvent(ctx context.Context, pub IEventPublisher, log logger.ILogger, module string, evt events.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, evt); err != nil {
		log.Warn(module, "Failed to publish event", map[string]interface{}{
			"event": evt.EventType(),
			"error": err.Error(),
		})
	}
}
