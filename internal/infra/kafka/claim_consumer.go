package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// ClaimProcessor is the downstream handler for decoded claim submissions.
type ClaimProcessor interface {
	OnClaimSubmitted(ctx context.Context, claimID string) error
}

// ClaimConsumer feeds digitalid.claim.submitted messages into the claim
// processor. Redeliveries are expected: the processor re-checks claim
// status before doing any work, so the consumer always marks messages
// consumed once the handler returns.
type ClaimConsumer struct {
	processor ClaimProcessor
	logger    *zap.Logger
}

// NewClaimConsumer constructs a consumer that forwards claim submissions.
func NewClaimConsumer(processor ClaimProcessor, logger *zap.Logger) *ClaimConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaimConsumer{processor: processor, logger: logger}
}

type claimSubmittedEnvelope struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Payload   struct {
		ClaimID string `json:"claim_id"`
		Subject string `json:"subject"`
	} `json:"payload"`
}

// HandleMessage decodes a Kafka message prior to processing.
func (c *ClaimConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if msg == nil {
		return fmt.Errorf("message is nil")
	}

	var envelope claimSubmittedEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return fmt.Errorf("decode claim submitted event: %w", err)
	}
	if envelope.Payload.ClaimID == "" {
		c.logger.Warn("claim submitted event without claim id",
			zap.String("event_id", envelope.EventID))
		return nil
	}

	return c.processor.OnClaimSubmitted(ctx, envelope.Payload.ClaimID)
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *ClaimConsumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *ClaimConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim processes one partition's messages until the session ends.
// Handler errors are logged and the offset is still advanced; unprocessed
// claims are recovered by the reconciliation sweep, not by redelivery.
func (c *ClaimConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.HandleMessage(session.Context(), msg); err != nil {
				c.logger.Error("claim message handling failed",
					zap.String("topic", msg.Topic),
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// ConsumerGroup wraps a sarama consumer group running the claim consumer.
type ConsumerGroup struct {
	group  sarama.ConsumerGroup
	topics []string
	logger *zap.Logger
}

// NewConsumerGroup joins the configured consumer group for the claim topic.
func NewConsumerGroup(brokers []string, groupID string, topics []string, logger *zap.Logger) (*ConsumerGroup, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_5_0_0
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}

	return &ConsumerGroup{group: group, topics: topics, logger: logger}, nil
}

// Run consumes until the context is canceled. Rebalances restart the
// Consume loop; handler state survives them.
func (g *ConsumerGroup) Run(ctx context.Context, handler sarama.ConsumerGroupHandler) error {
	go func() {
		for err := range g.group.Errors() {
			g.logger.Error("kafka consumer group error", zap.Error(err))
		}
	}()

	for {
		if err := g.group.Consume(ctx, g.topics, handler); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("consume: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close leaves the consumer group.
func (g *ConsumerGroup) Close() error {
	return g.group.Close()
}
