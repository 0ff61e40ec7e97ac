package port

import (
	"context"
	"time"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
)

// DeltaOutcome reports the before/after state of an atomic reputation
// adjustment so callers can detect ban boundary crossings exactly once.
type DeltaOutcome struct {
	OldScore  int
	NewScore  int
	WasBanned bool
	IsBanned  bool
}

// Crossed reports whether the delta moved the identity across the ban
// threshold in either direction.
func (o DeltaOutcome) Crossed() bool {
	return o.WasBanned != o.IsBanned
}

// ReputationRepository exposes ledger operations for reputation scores.
type ReputationRepository interface {
	// Initialize creates the score record exactly once; a second call
	// fails with repository.ErrConflict.
	Initialize(ctx context.Context, identityID string, at time.Time) error
	Get(ctx context.Context, identityID string) (*domain.ReputationScore, error)
	// ApplyDelta materializes decay, applies the signed delta with
	// clamping, and recomputes the ban flag in one conditional update.
	ApplyDelta(ctx context.Context, identityID string, points int, at time.Time) (DeltaOutcome, error)
}
