package port

import (
	"context"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
)

// VoteOutcome reports the appeal's tally after an atomic RecordVote call.
type VoteOutcome struct {
	// Duplicate is true when the reviewer had already voted and nothing
	// was recorded.
	Duplicate bool
	// Appeal is the state after the vote, including updated tallies.
	Appeal domain.Appeal
}

// AppealRepository exposes ledger operations for appeals. Appeals are
// append-only per identity; votes are recorded under a row lock so two
// racing reviewers cannot both observe a pre-quorum tally and skip
// finalization.
type AppealRepository interface {
	Create(ctx context.Context, appeal domain.Appeal) error
	Get(ctx context.Context, appealID string) (*domain.Appeal, error)
	// LatestByIdentity returns the most recently submitted appeal for the
	// identity, or repository.ErrNotFound when none exists.
	LatestByIdentity(ctx context.Context, identityID string) (*domain.Appeal, error)
	RecordVote(ctx context.Context, vote domain.AppealVote) (VoteOutcome, error)
	// Finalize transitions the appeal to a terminal status only while it
	// is still PENDING.
	Finalize(ctx context.Context, appealID string, status domain.AppealStatus) error
}
