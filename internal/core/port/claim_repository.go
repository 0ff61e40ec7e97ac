package port

import (
	"context"
	"time"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
)

// ClaimRepository exposes ledger operations for verification claims. The
// conditional UpdateStatus is the orchestrator's primary idempotency guard:
// only one of several racing workers can move a claim out of PENDING.
type ClaimRepository interface {
	Create(ctx context.Context, claim domain.VerificationClaim) error
	Get(ctx context.Context, claimID string) (*domain.VerificationClaim, error)
	// UpdateStatus transitions PENDING -> status and records the result
	// payload; it fails with repository.ErrConflict when the claim is no
	// longer PENDING.
	UpdateStatus(ctx context.Context, claimID string, status domain.ClaimStatus, result string, at time.Time) error
	// ListPendingOlderThan feeds the reconciliation sweep.
	ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.VerificationClaim, error)
	// ArchiveResolved prunes terminal claims resolved before the cutoff
	// from the pending index, returning how many rows were archived.
	ArchiveResolved(ctx context.Context, cutoff time.Time) (int64, error)
}
