package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
	"github.com/Adekabang/DigitalID-sub000/internal/core/port"
	"github.com/Adekabang/DigitalID-sub000/internal/repository"
)

var (
	// ErrNothingToAppeal indicates the identity has no active restriction.
	ErrNothingToAppeal = errors.New("no active restriction to appeal")
	// ErrCooldownActive indicates the previous appeal is still within the
	// cooldown window.
	ErrCooldownActive = errors.New("appeal cooldown active")
	// ErrCaseNotFound indicates the appealed case does not exist.
	ErrCaseNotFound = errors.New("moderation case not found")
	// ErrAppealNotFound indicates the appeal does not exist.
	ErrAppealNotFound = errors.New("appeal not found")
	// ErrNotPending indicates the appeal already left the PENDING state.
	ErrNotPending = errors.New("appeal is not pending")
	// ErrDeadlineExpired indicates the review period has ended.
	ErrDeadlineExpired = errors.New("appeal review deadline expired")
	// ErrDuplicateVote indicates the reviewer already voted on this appeal.
	ErrDuplicateVote = errors.New("reviewer already voted")
)

// AppealService runs the quorum-voting appeal process. A restricted
// identity gets one appeal per cooldown window; three votes finalize by
// strict majority, and approval lifts the restriction and grants a bonus.
type AppealService struct {
	appeals    port.AppealRepository
	moderation *ModerationService
	reputation *ReputationService
	events     port.EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewAppealService constructs an appeal service.
func NewAppealService(
	appeals port.AppealRepository,
	moderation *ModerationService,
	reputation *ReputationService,
	events port.EventPublisher,
	logger *zap.Logger,
) *AppealService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppealService{
		appeals:    appeals,
		moderation: moderation,
		reputation: reputation,
		events:     events,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, used by tests.
func (s *AppealService) WithClock(now func() time.Time) *AppealService {
	s.now = now
	return s
}

// Submit opens a new appeal against a case for a restricted identity.
func (s *AppealService) Submit(ctx context.Context, identityID string, caseID int64, reason, evidence string) (domain.Appeal, error) {
	if strings.TrimSpace(reason) == "" {
		return domain.Appeal{}, fmt.Errorf("appeal reason is required")
	}

	state, err := s.moderation.RestrictionStateOf(ctx, identityID)
	if err != nil {
		return domain.Appeal{}, err
	}
	if state == domain.ActionUnban {
		return domain.Appeal{}, ErrNothingToAppeal
	}

	if _, err := s.moderation.GetCase(ctx, caseID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Appeal{}, ErrCaseNotFound
		}
		return domain.Appeal{}, err
	}

	now := s.now()
	last, err := s.appeals.LatestByIdentity(ctx, identityID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.Appeal{}, fmt.Errorf("lookup previous appeal: %w", err)
	}
	if last != nil && now.Before(last.SubmittedAt.Add(domain.AppealCooldown)) {
		return domain.Appeal{}, ErrCooldownActive
	}

	appeal := domain.Appeal{
		ID:          uuid.NewString(),
		IdentityID:  identityID,
		CaseID:      caseID,
		Reason:      reason,
		Evidence:    evidence,
		Status:      domain.AppealPending,
		SubmittedAt: now,
		Deadline:    now.Add(domain.AppealReviewPeriod),
	}
	if err := s.appeals.Create(ctx, appeal); err != nil {
		return domain.Appeal{}, fmt.Errorf("create appeal: %w", err)
	}

	return appeal, nil
}

// Vote records one reviewer's vote and finalizes the appeal once the
// minimum vote count is reached: strict majority of votes cast approves.
func (s *AppealService) Vote(ctx context.Context, appealID, reviewerID string, approve bool) (domain.Appeal, error) {
	if reviewerID == "" {
		return domain.Appeal{}, fmt.Errorf("reviewer id is required")
	}

	appeal, err := s.appeals.Get(ctx, appealID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Appeal{}, ErrAppealNotFound
		}
		return domain.Appeal{}, fmt.Errorf("lookup appeal: %w", err)
	}

	now := s.now()
	if appeal.Status != domain.AppealPending {
		return domain.Appeal{}, ErrNotPending
	}
	if now.After(appeal.Deadline) {
		return domain.Appeal{}, ErrDeadlineExpired
	}

	outcome, err := s.appeals.RecordVote(ctx, domain.AppealVote{
		AppealID:   appealID,
		ReviewerID: reviewerID,
		Approve:    approve,
		CreatedAt:  now,
	})
	if err != nil {
		// The status check above races finalization; the store re-asserts
		// PENDING under its row lock.
		if errors.Is(err, repository.ErrConflict) {
			return domain.Appeal{}, ErrNotPending
		}
		return domain.Appeal{}, fmt.Errorf("record vote: %w", err)
	}
	if outcome.Duplicate {
		return domain.Appeal{}, ErrDuplicateVote
	}

	current := outcome.Appeal
	if !current.QuorumReached() {
		return current, nil
	}

	status := domain.AppealRejected
	if current.MajorityApproved() {
		status = domain.AppealApproved
	}

	if err := s.appeals.Finalize(ctx, appealID, status); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Another worker finalized concurrently; its side effects win.
			s.logger.Info("appeal already finalized",
				zap.String("appeal_id", appealID),
			)
			return current, nil
		}
		return domain.Appeal{}, fmt.Errorf("finalize appeal: %w", err)
	}
	current.Status = status

	if status == domain.AppealApproved {
		if err := s.moderation.RemoveRestriction(ctx, current.IdentityID, AppealEngineCaller); err != nil &&
			!errors.Is(err, ErrNoActiveRestriction) {
			return domain.Appeal{}, fmt.Errorf("lift restriction: %w", err)
		}
		if _, err := s.reputation.ApplyDelta(ctx, current.IdentityID, domain.AppealApprovalBonus); err != nil {
			return domain.Appeal{}, fmt.Errorf("grant appeal bonus: %w", err)
		}
	}

	s.publishFinalized(ctx, current)

	return current, nil
}

// Get returns a single appeal.
func (s *AppealService) Get(ctx context.Context, appealID string) (*domain.Appeal, error) {
	appeal, err := s.appeals.Get(ctx, appealID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAppealNotFound
		}
		return nil, fmt.Errorf("lookup appeal: %w", err)
	}
	return appeal, nil
}

func (s *AppealService) publishFinalized(ctx context.Context, appeal domain.Appeal) {
	if s.events == nil {
		return
	}
	event := domain.AppealFinalizedEvent{
		EventID:     uuid.NewString(),
		AppealID:    appeal.ID,
		IdentityID:  appeal.IdentityID,
		CaseID:      appeal.CaseID,
		Status:      appeal.Status,
		Approvals:   appeal.Approvals,
		Rejections:  appeal.Rejections,
		FinalizedAt: s.now(),
	}
	if err := s.events.PublishAppealFinalized(ctx, event); err != nil {
		s.logger.Warn("failed to publish appeal finalized event",
			zap.String("appeal_id", appeal.ID),
			zap.Error(err),
		)
	}
}
