package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
	"github.com/Adekabang/DigitalID-sub000/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, identityID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("identity_id", identityID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishClaimSubmitted logs digitalid.claim.submitted events.
func (p *StubPublisher) PublishClaimSubmitted(_ context.Context, event domain.ClaimSubmittedEvent) error {
	payload := map[string]any{
		"claim_id":     event.ClaimID,
		"subject":      event.Subject,
		"claim_type":   string(event.ClaimType),
		"requested_at": event.RequestedAt,
		"metadata":     event.Metadata,
	}
	p.logEvent("digitalid.claim.submitted", event.Subject, event.RequestedAt, payload)
	return nil
}

// PublishClaimResolved logs digitalid.claim.resolved events.
func (p *StubPublisher) PublishClaimResolved(_ context.Context, event domain.ClaimResolvedEvent) error {
	payload := map[string]any{
		"claim_id":    event.ClaimID,
		"subject":     event.Subject,
		"status":      string(event.Status),
		"result":      event.Result,
		"resolved_at": event.ResolvedAt,
		"metadata":    event.Metadata,
	}
	p.logEvent("digitalid.claim.resolved", event.Subject, event.ResolvedAt, payload)
	return nil
}

// PublishVerificationLevelChanged logs digitalid.verification.level_changed events.
func (p *StubPublisher) PublishVerificationLevelChanged(_ context.Context, event domain.VerificationLevelChangedEvent) error {
	payload := map[string]any{
		"identity_id":    event.IdentityID,
		"did":            event.DID,
		"previous_level": event.PreviousLevel.String(),
		"new_level":      event.NewLevel.String(),
		"verifier_id":    event.VerifierID,
		"changed_at":     event.ChangedAt,
		"metadata":       event.Metadata,
	}
	p.logEvent("digitalid.verification.level_changed", event.IdentityID, event.ChangedAt, payload)
	return nil
}

// PublishBanStatusChanged logs digitalid.reputation.ban_status_changed events.
func (p *StubPublisher) PublishBanStatusChanged(_ context.Context, event domain.BanStatusChangedEvent) error {
	payload := map[string]any{
		"identity_id": event.IdentityID,
		"banned":      event.Banned,
		"score":       event.Score,
		"changed_at":  event.ChangedAt,
		"metadata":    event.Metadata,
	}
	p.logEvent("digitalid.reputation.ban_status_changed", event.IdentityID, event.ChangedAt, payload)
	return nil
}

// PublishCaseFiled logs digitalid.moderation.case_filed events.
func (p *StubPublisher) PublishCaseFiled(_ context.Context, event domain.CaseFiledEvent) error {
	payload := map[string]any{
		"case_id":  event.CaseID,
		"subject":  event.Subject,
		"action":   string(event.Action),
		"actor":    event.Actor,
		"filed_at": event.FiledAt,
		"metadata": event.Metadata,
	}
	p.logEvent("digitalid.moderation.case_filed", event.Subject, event.FiledAt, payload)
	return nil
}

// PublishAppealFinalized logs digitalid.appeal.finalized events.
func (p *StubPublisher) PublishAppealFinalized(_ context.Context, event domain.AppealFinalizedEvent) error {
	payload := map[string]any{
		"appeal_id":    event.AppealID,
		"identity_id":  event.IdentityID,
		"case_id":      event.CaseID,
		"status":       string(event.Status),
		"approvals":    event.Approvals,
		"rejections":   event.Rejections,
		"finalized_at": event.FinalizedAt,
		"metadata":     event.Metadata,
	}
	p.logEvent("digitalid.appeal.finalized", event.IdentityID, event.FinalizedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
