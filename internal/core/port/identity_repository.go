package port

import (
	"context"
	"time"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
)

// ApprovalOutcome reports the state of an identity's approval set after an
// atomic RecordVerifierApproval call.
type ApprovalOutcome struct {
	// Duplicate is true when the verifier had already approved this
	// identity and nothing was recorded.
	Duplicate bool
	// DistinctApprovals is the size of the approval set after the call.
	DistinctApprovals int
	// FreshApproval is true when at least one approval in the set is newer
	// than the identity's last level change.
	FreshApproval bool
	// Level is the identity's verification level after the call.
	Level domain.VerificationLevel
}

// IdentityRepository exposes ledger operations for identities. Every write
// is a single atomic conditional transition: racing callers observe either
// the before or the after state, never a torn intermediate.
type IdentityRepository interface {
	Create(ctx context.Context, identity domain.Identity) error
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByDID(ctx context.Context, did string) (*domain.Identity, error)
	// RecordVerifierApproval inserts the approval (no-op on duplicate) and
	// returns the resulting approval-set state, all under one row lock on
	// the identity.
	RecordVerifierApproval(ctx context.Context, identityID, verifierID string, at time.Time) (ApprovalOutcome, error)
	// SetVerificationLevel advances the level only when the stored level is
	// currently below the target; returns the level actually in effect
	// afterwards.
	SetVerificationLevel(ctx context.Context, identityID string, target domain.VerificationLevel, at time.Time) (domain.VerificationLevel, error)
	ListApprovals(ctx context.Context, identityID string) ([]domain.VerifierApproval, error)
}
