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

// AppealEngineCaller identifies the appeal quorum engine when it lifts a
// restriction after a successful appeal. Only this caller may remove a BAN.
const AppealEngineCaller = "appeal-engine"

var (
	// ErrIdentityNotFound indicates the subject identity does not exist.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrInvalidAction indicates an unknown moderation action type.
	ErrInvalidAction = errors.New("invalid moderation action")
	// ErrUnbanNotFilable indicates UNBAN cannot be created through case filing.
	ErrUnbanNotFilable = errors.New("unban cannot be filed as a case")
	// ErrInvalidReason indicates the case reason is empty or too long.
	ErrInvalidReason = errors.New("case reason must be between 1 and 500 characters")
	// ErrUnauthorized indicates the caller may not remove the restriction.
	ErrUnauthorized = errors.New("caller is not authorized to remove this restriction")
	// ErrNoActiveRestriction indicates the identity is not restricted.
	ErrNoActiveRestriction = errors.New("no active restriction")
)

// ModerationService creates moderation cases, maintains the per-identity
// restriction state, and applies the fixed reputation penalties.
type ModerationService struct {
	identities port.IdentityRepository
	cases      port.ModerationRepository
	reputation *ReputationService
	events     port.EventPublisher
	moderators map[string]struct{}
	logger     *zap.Logger
	now        func() time.Time
}

// NewModerationService constructs a moderation service. moderators is the
// set of actor ids allowed to file and remove restrictions manually.
func NewModerationService(
	identities port.IdentityRepository,
	cases port.ModerationRepository,
	reputation *ReputationService,
	events port.EventPublisher,
	moderators []string,
	logger *zap.Logger,
) *ModerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	moderatorSet := make(map[string]struct{}, len(moderators))
	for _, id := range moderators {
		moderatorSet[id] = struct{}{}
	}
	return &ModerationService{
		identities: identities,
		cases:      cases,
		reputation: reputation,
		events:     events,
		moderators: moderatorSet,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, used by tests.
func (s *ModerationService) WithClock(now func() time.Time) *ModerationService {
	s.now = now
	return s
}

// IsModerator reports whether the actor is in the configured moderator set.
func (s *ModerationService) IsModerator(actor string) bool {
	_, ok := s.moderators[actor]
	return ok
}

// FileCase records an immutable case, updates the restriction state, and
// applies the action's fixed reputation delta. When the penalty pushes the
// score into a deeper tier, the score monitor files the matching system
// cases before returning.
func (s *ModerationService) FileCase(ctx context.Context, subject string, action domain.ModerationAction, reason, actor string) (int64, error) {
	caseID, err := s.fileCase(ctx, subject, action, reason, actor)
	if err != nil {
		return 0, err
	}
	if action.ReputationDelta() != 0 {
		s.escalate(ctx, subject)
	}
	return caseID, nil
}

func (s *ModerationService) fileCase(ctx context.Context, subject string, action domain.ModerationAction, reason, actor string) (int64, error) {
	if !action.Valid() {
		return 0, ErrInvalidAction
	}
	if action == domain.ActionUnban {
		return 0, ErrUnbanNotFilable
	}
	if len(reason) < domain.MinCaseReasonLength || len(reason) > domain.MaxCaseReasonLength {
		return 0, ErrInvalidReason
	}

	if _, err := s.identities.GetByID(ctx, subject); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrIdentityNotFound
		}
		return 0, fmt.Errorf("lookup identity: %w", err)
	}

	now := s.now()
	caseID, err := s.cases.FileCase(ctx, domain.ModerationCase{
		Subject:   subject,
		Action:    action,
		Reason:    reason,
		Actor:     actor,
		CreatedAt: now,
	})
	if err != nil {
		return 0, fmt.Errorf("file case: %w", err)
	}

	if err := s.cases.SetRestrictionState(ctx, subject, action, now); err != nil {
		return 0, fmt.Errorf("set restriction state: %w", err)
	}

	if delta := action.ReputationDelta(); delta != 0 {
		if _, err := s.reputation.ApplyDelta(ctx, subject, delta); err != nil {
			return 0, fmt.Errorf("apply case penalty: %w", err)
		}
	}

	s.publishCaseFiled(ctx, caseID, subject, action, actor, now)

	return caseID, nil
}

// Evaluate reads the decayed score and auto-files the most severe
// applicable tier the identity is not already at or past. It runs after
// every case penalty lands; it is safe to call repeatedly because a tier
// fires at most once while the identity stays in it.
func (s *ModerationService) Evaluate(ctx context.Context, subject string) (int64, error) {
	record, err := s.reputation.Get(ctx, subject)
	if err != nil {
		return 0, err
	}

	tier := domain.RestrictionTierFor(record.Score)
	if tier == domain.ActionUnban {
		return 0, nil
	}

	current, err := s.currentState(ctx, subject)
	if err != nil {
		return 0, err
	}
	if tier.Severity() <= current.Severity() {
		return 0, nil
	}

	reason := fmt.Sprintf("reputation score %d at or below %s threshold", record.Score, tier)
	return s.fileCase(ctx, subject, tier, reason, domain.SystemActor)
}

// escalate runs monitor passes until no deeper tier applies. Each system
// case carries its own penalty, so the chain advances strictly by severity
// and stops at SEVERE_RESTRICTION at the latest. The triggering case is
// already committed; a failed pass is logged and retried on the next delta.
func (s *ModerationService) escalate(ctx context.Context, subject string) {
	for {
		caseID, err := s.Evaluate(ctx, subject)
		if err != nil {
			s.logger.Warn("score monitor pass failed",
				zap.String("subject", subject),
				zap.Error(err),
			)
			return
		}
		if caseID == 0 {
			return
		}
	}
}

// RemoveRestriction lifts the active restriction. Moderators may lift any
// restriction except BAN; a BAN is lifted only by the appeal engine after a
// successful appeal.
func (s *ModerationService) RemoveRestriction(ctx context.Context, subject, caller string) error {
	current, err := s.currentState(ctx, subject)
	if err != nil {
		return err
	}
	if current == domain.ActionUnban {
		return ErrNoActiveRestriction
	}

	authorized := false
	if current == domain.ActionBan {
		authorized = caller == AppealEngineCaller
	} else {
		authorized = caller == AppealEngineCaller || s.IsModerator(caller)
	}
	if !authorized {
		return ErrUnauthorized
	}

	now := s.now()
	if err := s.cases.SetRestrictionState(ctx, subject, domain.ActionUnban, now); err != nil {
		return fmt.Errorf("clear restriction state: %w", err)
	}

	// UNBAN entries reach the case log only through this removal path.
	caseID, err := s.cases.FileCase(ctx, domain.ModerationCase{
		Subject:   subject,
		Action:    domain.ActionUnban,
		Reason:    fmt.Sprintf("restriction %s removed", current),
		Actor:     caller,
		CreatedAt: now,
		Resolved:  true,
	})
	if err != nil {
		return fmt.Errorf("record unban case: %w", err)
	}

	s.publishCaseFiled(ctx, caseID, subject, domain.ActionUnban, caller, now)

	return nil
}

// RestrictionStateOf returns the identity's current restriction, UNBAN when
// no row exists yet.
func (s *ModerationService) RestrictionStateOf(ctx context.Context, subject string) (domain.ModerationAction, error) {
	return s.currentState(ctx, subject)
}

// ListCases returns the subject's immutable case history.
func (s *ModerationService) ListCases(ctx context.Context, subject string) ([]domain.ModerationCase, error) {
	cases, err := s.cases.ListCasesBySubject(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	return cases, nil
}

// GetCase retrieves a single case by id.
func (s *ModerationService) GetCase(ctx context.Context, caseID int64) (*domain.ModerationCase, error) {
	c, err := s.cases.GetCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get case: %w", err)
	}
	return c, nil
}

func (s *ModerationService) currentState(ctx context.Context, subject string) (domain.ModerationAction, error) {
	state, err := s.cases.GetRestrictionState(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ActionUnban, nil
		}
		return domain.ActionUnban, fmt.Errorf("get restriction state: %w", err)
	}
	return state.State, nil
}

func (s *ModerationService) publishCaseFiled(ctx context.Context, caseID int64, subject string, action domain.ModerationAction, actor string, at time.Time) {
	if s.events == nil {
		return
	}
	event := domain.CaseFiledEvent{
		EventID: uuid.NewString(),
		CaseID:  caseID,
		Subject: subject,
		Action:  action,
		Actor:   actor,
		FiledAt: at,
	}
	if err := s.events.PublishCaseFiled(ctx, event); err != nil {
		s.logger.Warn("failed to publish case filed event",
			zap.Int64("case_id", caseID),
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}
