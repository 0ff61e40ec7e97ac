package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
	"github.com/Adekabang/DigitalID-sub000/internal/core/port"
	"github.com/Adekabang/DigitalID-sub000/internal/repository"
)

var (
	// ErrInvalidTargetLevel indicates the requested level is not a valid
	// advancement target.
	ErrInvalidTargetLevel = errors.New("invalid target verification level")
	// ErrVerifierRequired indicates the approval carries no verifier id.
	ErrVerifierRequired = errors.New("verifier id is required")
)

// ApprovalResult describes the outcome of a single approve call.
type ApprovalResult struct {
	// Level is the identity's verification level after the call.
	Level domain.VerificationLevel
	// Advanced is true when this call moved the level up.
	Advanced bool
	// PendingQuorum is true when the approval was recorded but the quorum
	// for the target level is not yet met. This is an expected outcome,
	// not an error.
	PendingQuorum bool
	// Duplicate is true when this verifier had already approved; the call
	// is a logged no-op so orchestrator retries stay idempotent.
	Duplicate bool
	// DistinctApprovals is the approval set size after the call.
	DistinctApprovals int
}

// VerificationService enforces the verification level state machine:
// monotonic levels, and the two-distinct-verifier quorum for KYC and FULL.
type VerificationService struct {
	identities port.IdentityRepository
	events     port.EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewVerificationService constructs a verification service.
func NewVerificationService(identities port.IdentityRepository, events port.EventPublisher, logger *zap.Logger) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationService{
		identities: identities,
		events:     events,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, used by tests.
func (s *VerificationService) WithClock(now func() time.Time) *VerificationService {
	s.now = now
	return s
}

// Approve records a verifier's approval and advances the level when the
// rules allow. BASIC is a single-verifier action; KYC and FULL require at
// least two distinct verifiers with a fresh approval since the last level
// change. The level never decreases and never advances past target.
func (s *VerificationService) Approve(ctx context.Context, identityID, verifierID string, target domain.VerificationLevel) (ApprovalResult, error) {
	if verifierID == "" {
		return ApprovalResult{}, ErrVerifierRequired
	}
	if !target.Valid() || target == domain.LevelUnverified {
		return ApprovalResult{}, ErrInvalidTargetLevel
	}

	outcome, err := s.identities.RecordVerifierApproval(ctx, identityID, verifierID, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ApprovalResult{}, ErrIdentityNotFound
		}
		return ApprovalResult{}, fmt.Errorf("record verifier approval: %w", err)
	}

	result := ApprovalResult{
		Level:             outcome.Level,
		Duplicate:         outcome.Duplicate,
		DistinctApprovals: outcome.DistinctApprovals,
	}
	if outcome.Duplicate {
		s.logger.Info("verifier already approved identity",
			zap.String("identity_id", identityID),
			zap.String("verifier_id", verifierID),
		)
	}

	if outcome.Level >= target {
		// Nothing to advance; the approval itself is still recorded.
		return result, nil
	}

	if target.RequiresQuorum() {
		if outcome.DistinctApprovals < domain.ApprovalQuorum || !outcome.FreshApproval {
			result.PendingQuorum = true
			s.logger.Info("approval recorded, pending quorum",
				zap.String("identity_id", identityID),
				zap.Int("distinct_approvals", outcome.DistinctApprovals),
				zap.Int("required", domain.ApprovalQuorum),
				zap.Stringer("target", target),
			)
			return result, nil
		}
	}

	newLevel, err := s.identities.SetVerificationLevel(ctx, identityID, target, s.now())
	if err != nil {
		return ApprovalResult{}, fmt.Errorf("set verification level: %w", err)
	}

	result.Advanced = newLevel > outcome.Level
	result.Level = newLevel

	if result.Advanced {
		s.publishLevelChanged(ctx, identityID, verifierID, outcome.Level, newLevel)
	}

	return result, nil
}

// Status returns the identity's current verification level.
func (s *VerificationService) Status(ctx context.Context, identityID string) (domain.VerificationLevel, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.LevelUnverified, ErrIdentityNotFound
		}
		return domain.LevelUnverified, fmt.Errorf("lookup identity: %w", err)
	}
	return identity.VerificationLevel, nil
}

func (s *VerificationService) publishLevelChanged(ctx context.Context, identityID, verifierID string, previous, current domain.VerificationLevel) {
	if s.events == nil {
		return
	}
	var did string
	if identity, err := s.identities.GetByID(ctx, identityID); err == nil {
		did = identity.DID
	}
	event := domain.VerificationLevelChangedEvent{
		EventID:       uuid.NewString(),
		IdentityID:    identityID,
		DID:           did,
		PreviousLevel: previous,
		NewLevel:      current,
		VerifierID:    verifierID,
		ChangedAt:     s.now(),
	}
	if err := s.events.PublishVerificationLevelChanged(ctx, event); err != nil {
		s.logger.Warn("failed to publish level change event",
			zap.String("identity_id", identityID),
			zap.Error(err),
		)
	}
}
