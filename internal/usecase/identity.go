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
	"github.com/Adekabang/DigitalID-sub000/internal/infra/logger"
	"github.com/Adekabang/DigitalID-sub000/internal/repository"
)

var (
	// ErrDIDRequired indicates identity creation without a DID.
	ErrDIDRequired = errors.New("did is required")
	// ErrDIDExists indicates an identity already holds this DID.
	ErrDIDExists = errors.New("did already registered")
)

// IdentityService handles identity onboarding and lookups. Creation also
// initializes the reputation record, exactly once per identity.
type IdentityService struct {
	identities port.IdentityRepository
	reputation *ReputationService
	logger     *zap.Logger
	now        func() time.Time
}

// NewIdentityService constructs an identity service.
func NewIdentityService(identities port.IdentityRepository, reputation *ReputationService, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{
		identities: identities,
		reputation: reputation,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, used by tests.
func (s *IdentityService) WithClock(now func() time.Time) *IdentityService {
	s.now = now
	return s
}

// Create registers a new identity at level UNVERIFIED with the initial
// reputation score.
func (s *IdentityService) Create(ctx context.Context, did string) (domain.Identity, error) {
	did = strings.TrimSpace(did)
	if did == "" {
		return domain.Identity{}, ErrDIDRequired
	}

	now := s.now()
	identity := domain.Identity{
		ID:                uuid.NewString(),
		DID:               did,
		VerificationLevel: domain.LevelUnverified,
		CreatedAt:         now,
		UpdatedAt:         now,
		LevelChangedAt:    now,
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.Identity{}, ErrDIDExists
		}
		return domain.Identity{}, fmt.Errorf("create identity: %w", err)
	}

	if err := s.reputation.Initialize(ctx, identity.ID); err != nil && !errors.Is(err, ErrAlreadyInitialized) {
		return domain.Identity{}, fmt.Errorf("initialize reputation: %w", err)
	}

	s.logger.Info("identity created",
		zap.String("identity_id", identity.ID),
		zap.String("did", logger.MaskDID(did)),
	)

	return identity, nil
}

// GetByDID resolves an identity by its DID.
func (s *IdentityService) GetByDID(ctx context.Context, did string) (*domain.Identity, error) {
	identity, err := s.identities.GetByDID(ctx, did)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("lookup identity by did: %w", err)
	}
	return identity, nil
}

// GetByID resolves an identity by its internal id.
func (s *IdentityService) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	identity, err := s.identities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("lookup identity: %w", err)
	}
	return identity, nil
}
