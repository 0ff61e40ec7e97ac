package port

import (
	"context"
	"time"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
)

// ModerationRepository exposes ledger operations for cases and restriction
// states. Case ids are assigned by a monotonic ledger sequence.
type ModerationRepository interface {
	FileCase(ctx context.Context, c domain.ModerationCase) (int64, error)
	GetCase(ctx context.Context, caseID int64) (*domain.ModerationCase, error)
	ListCasesBySubject(ctx context.Context, subject string) ([]domain.ModerationCase, error)
	GetRestrictionState(ctx context.Context, identityID string) (*domain.RestrictionState, error)
	SetRestrictionState(ctx context.Context, identityID string, state domain.ModerationAction, at time.Time) error
}
