package service

import (
	"context"
	"encoding/json"

	"secondbrain-be/internal/dto"
	"secondbrain-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
)

const consumerModule = "ConsumerService"

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	vectorizer IVectorizerService
	batchSize  int
	logger     logger.ILogger
}

// NewConsumerService drains the vectorize queue. Each message only signals
// that work exists; the vectorizer claims whatever is pending, so duplicate
// or reordered messages are harmless.
func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	vectorizer IVectorizerService,
	batchSize int,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		vectorizer: vectorizer,
		batchSize:  batchSize,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.VectorizeSegmentMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error(consumerModule, "Dropping malformed vectorize message", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		msg.Ack()
		return
	}

	batch, err := cs.vectorizer.EmbedPending(ctx, cs.batchSize)
	if err != nil {
		cs.logger.Error(consumerModule, "Vectorize batch failed", map[string]interface{}{
			"segment_id": payload.SegmentId.String(),
			"error":      err.Error(),
		})
		// segments stay pending; the next message or a backfill picks them up
		msg.Ack()
		return
	}

	cs.logger.Debug(consumerModule, "Vectorize message handled", map[string]interface{}{
		"segment_id": payload.SegmentId.String(),
		"processed":  batch.Processed,
	})
	msg.Ack()
}
