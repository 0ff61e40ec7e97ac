package port

import (
	"context"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishClaimSubmitted(ctx context.Context, event domain.ClaimSubmittedEvent) error
	PublishClaimResolved(ctx context.Context, event domain.ClaimResolvedEvent) error
	PublishVerificationLevelChanged(ctx context.Context, event domain.VerificationLevelChangedEvent) error
	PublishBanStatusChanged(ctx context.Context, event domain.BanStatusChangedEvent) error
	PublishCaseFiled(ctx context.Context, event domain.CaseFiledEvent) error
	PublishAppealFinalized(ctx context.Context, event domain.AppealFinalizedEvent) error
}
