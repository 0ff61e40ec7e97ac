package port

import (
	"context"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
)

// KYCResult is the provider's verdict on a claim.
type KYCResult struct {
	Approved bool
	// Payload carries the provider evidence on approval.
	Payload string
	// Reason explains a denial.
	Reason string
}

// KYCProvider asynchronously confirms or denies an identity claim. Calls
// carry a fixed timeout; callers must deduplicate by claim id because the
// provider is not assumed to be idempotent.
type KYCProvider interface {
	Verify(ctx context.Context, subject string, claimType domain.ClaimType, metadata string) (KYCResult, error)
}

// ClaimDedupStore guards the provider call: Acquire succeeds at most once
// per claim id within the guard TTL, so a redelivered event or a racing
// sweep does not double-invoke the provider.
type ClaimDedupStore interface {
	Acquire(ctx context.Context, claimID string) (bool, error)
	Release(ctx context.Context, claimID string) error
}
