package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
	"github.com/Adekabang/DigitalID-sub000/internal/core/port"
	"github.com/Adekabang/DigitalID-sub000/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID    string           `json:"event_id"`
	EventType  string           `json:"event_type"`
	IdentityID string           `json:"identity_id,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
	Version    string           `json:"version"`
	Payload    any              `json:"payload"`
	Metadata   envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, identityID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:    id,
		EventType:  eventType,
		IdentityID: identityID,
		Timestamp:  ts.UTC(),
		Version:    schemaVersion,
		Payload:    payload,
		Metadata:   metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishClaimSubmitted publishes digitalid.claim.submitted events.
func (p *EventPublisher) PublishClaimSubmitted(ctx context.Context, event domain.ClaimSubmittedEvent) error {
	payload := struct {
		ClaimID     string         `json:"claim_id"`
		Subject     string         `json:"subject"`
		ClaimType   string         `json:"claim_type"`
		RequestedAt time.Time      `json:"requested_at"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		ClaimID:     event.ClaimID,
		Subject:     event.Subject,
		ClaimType:   string(event.ClaimType),
		RequestedAt: event.RequestedAt.UTC(),
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, "digitalid.claim.submitted", event.Subject, event.RequestedAt, payload)
}

// PublishClaimResolved publishes digitalid.claim.resolved events.
func (p *EventPublisher) PublishClaimResolved(ctx context.Context, event domain.ClaimResolvedEvent) error {
	payload := struct {
		ClaimID    string         `json:"claim_id"`
		Subject    string         `json:"subject"`
		Status     string         `json:"status"`
		Result     string         `json:"result,omitempty"`
		ResolvedAt time.Time      `json:"resolved_at"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		ClaimID:    event.ClaimID,
		Subject:    event.Subject,
		Status:     string(event.Status),
		Result:     event.Result,
		ResolvedAt: event.ResolvedAt.UTC(),
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, "digitalid.claim.resolved", event.Subject, event.ResolvedAt, payload)
}

// PublishVerificationLevelChanged publishes digitalid.verification.level_changed events.
func (p *EventPublisher) PublishVerificationLevelChanged(ctx context.Context, event domain.VerificationLevelChangedEvent) error {
	payload := struct {
		IdentityID    string         `json:"identity_id"`
		DID           string         `json:"did,omitempty"`
		PreviousLevel string         `json:"previous_level"`
		NewLevel      string         `json:"new_level"`
		VerifierID    string         `json:"verifier_id"`
		ChangedAt     time.Time      `json:"changed_at"`
		Metadata      map[string]any `json:"metadata,omitempty"`
	}{
		IdentityID:    event.IdentityID,
		DID:           event.DID,
		PreviousLevel: event.PreviousLevel.String(),
		NewLevel:      event.NewLevel.String(),
		VerifierID:    event.VerifierID,
		ChangedAt:     event.ChangedAt.UTC(),
		Metadata:      event.Metadata,
	}

	return p.publish(ctx, event.EventID, "digitalid.verification.level_changed", event.IdentityID, event.ChangedAt, payload)
}

// PublishBanStatusChanged publishes digitalid.reputation.ban_status_changed events.
func (p *EventPublisher) PublishBanStatusChanged(ctx context.Context, event domain.BanStatusChangedEvent) error {
	payload := struct {
		IdentityID string         `json:"identity_id"`
		Banned     bool           `json:"banned"`
		Score      int            `json:"score"`
		ChangedAt  time.Time      `json:"changed_at"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		IdentityID: event.IdentityID,
		Banned:     event.Banned,
		Score:      event.Score,
		ChangedAt:  event.ChangedAt.UTC(),
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, "digitalid.reputation.ban_status_changed", event.IdentityID, event.ChangedAt, payload)
}

// PublishCaseFiled publishes digitalid.moderation.case_filed events.
func (p *EventPublisher) PublishCaseFiled(ctx context.Context, event domain.CaseFiledEvent) error {
	payload := struct {
		CaseID   int64          `json:"case_id"`
		Subject  string         `json:"subject"`
		Action   string         `json:"action"`
		Actor    string         `json:"actor"`
		FiledAt  time.Time      `json:"filed_at"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}{
		CaseID:   event.CaseID,
		Subject:  event.Subject,
		Action:   string(event.Action),
		Actor:    event.Actor,
		FiledAt:  event.FiledAt.UTC(),
		Metadata: event.Metadata,
	}

	return p.publish(ctx, event.EventID, "digitalid.moderation.case_filed", event.Subject, event.FiledAt, payload)
}

// PublishAppealFinalized publishes digitalid.appeal.finalized events.
func (p *EventPublisher) PublishAppealFinalized(ctx context.Context, event domain.AppealFinalizedEvent) error {
	payload := struct {
		AppealID    string         `json:"appeal_id"`
		IdentityID  string         `json:"identity_id"`
		CaseID      int64          `json:"case_id"`
		Status      string         `json:"status"`
		Approvals   int            `json:"approvals"`
		Rejections  int            `json:"rejections"`
		FinalizedAt time.Time      `json:"finalized_at"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		AppealID:    event.AppealID,
		IdentityID:  event.IdentityID,
		CaseID:      event.CaseID,
		Status:      string(event.Status),
		Approvals:   event.Approvals,
		Rejections:  event.Rejections,
		FinalizedAt: event.FinalizedAt.UTC(),
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, "digitalid.appeal.finalized", event.IdentityID, event.FinalizedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
