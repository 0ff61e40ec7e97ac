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
	// ErrAlreadyInitialized indicates the identity already has a reputation record.
	ErrAlreadyInitialized = errors.New("reputation already initialized")
	// ErrNotInitialized indicates no reputation record exists for the identity.
	ErrNotInitialized = errors.New("reputation not initialized")
)

// ReputationService maintains the bounded score per identity. All mutation
// goes through the ledger's conditional-update primitive; the service only
// decides what to publish afterwards.
type ReputationService struct {
	scores port.ReputationRepository
	events port.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewReputationService constructs a reputation service.
func NewReputationService(scores port.ReputationRepository, events port.EventPublisher, logger *zap.Logger) *ReputationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReputationService{
		scores: scores,
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, used by tests.
func (s *ReputationService) WithClock(now func() time.Time) *ReputationService {
	s.now = now
	return s
}

// Initialize creates the score record with the initial score. Re-initialization
// is rejected.
func (s *ReputationService) Initialize(ctx context.Context, identityID string) error {
	if identityID == "" {
		return fmt.Errorf("identity id is required")
	}
	if err := s.scores.Initialize(ctx, identityID, s.now()); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrAlreadyInitialized
		}
		return fmt.Errorf("initialize reputation: %w", err)
	}
	return nil
}

// ApplyDelta applies a signed, clamped adjustment and fires a ban status
// event only when the score crosses the ban threshold.
func (s *ReputationService) ApplyDelta(ctx context.Context, identityID string, points int) (port.DeltaOutcome, error) {
	if identityID == "" {
		return port.DeltaOutcome{}, fmt.Errorf("identity id is required")
	}

	outcome, err := s.scores.ApplyDelta(ctx, identityID, points, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return port.DeltaOutcome{}, ErrNotInitialized
		}
		return port.DeltaOutcome{}, fmt.Errorf("apply reputation delta: %w", err)
	}

	if outcome.Crossed() && s.events != nil {
		event := domain.BanStatusChangedEvent{
			EventID:    uuid.NewString(),
			IdentityID: identityID,
			Banned:     outcome.IsBanned,
			Score:      outcome.NewScore,
			ChangedAt:  s.now(),
		}
		if err := s.events.PublishBanStatusChanged(ctx, event); err != nil {
			s.logger.Warn("failed to publish ban status change",
				zap.String("identity_id", identityID),
				zap.Bool("banned", outcome.IsBanned),
				zap.Error(err),
			)
		}
	}

	return outcome, nil
}

// Get returns the decayed view of the identity's reputation. The ban flag
// reflects the stored state: it only moves when a delta crosses the
// threshold, never from decay alone.
func (s *ReputationService) Get(ctx context.Context, identityID string) (*domain.ReputationScore, error) {
	record, err := s.scores.Get(ctx, identityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("get reputation: %w", err)
	}

	view := *record
	view.Score = domain.DecayedScore(record.Score, record.LastUpdate, s.now())
	return &view, nil
}
