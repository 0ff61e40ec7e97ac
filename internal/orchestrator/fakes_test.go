package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
	"github.com/Adekabang/DigitalID-sub000/internal/core/port"
	"github.com/Adekabang/DigitalID-sub000/internal/repository"
)

// The fakes are mutex-guarded because SubmitClaim hands claims to worker
// goroutines that run concurrently with test assertions.

type fakeClaimRepository struct {
	mu     sync.Mutex
	claims map[string]*domain.VerificationClaim
	// updateErrs are popped one per UpdateStatus call before the real
	// transition runs, to script transient ledger failures.
	updateErrs []error
}

func newFakeClaimRepository() *fakeClaimRepository {
	return &fakeClaimRepository{claims: make(map[string]*domain.VerificationClaim)}
}

func (f *fakeClaimRepository) Create(_ context.Context, claim domain.VerificationClaim) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.claims[claim.ID]; ok {
		return repository.ErrConflict
	}
	claimCopy := claim
	f.claims[claim.ID] = &claimCopy
	return nil
}

func (f *fakeClaimRepository) Get(_ context.Context, claimID string) (*domain.VerificationClaim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claim, ok := f.claims[claimID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	claimCopy := *claim
	return &claimCopy, nil
}

func (f *fakeClaimRepository) UpdateStatus(_ context.Context, claimID string, status domain.ClaimStatus, result string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updateErrs) > 0 {
		err := f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
		if err != nil {
			return err
		}
	}
	claim, ok := f.claims[claimID]
	if !ok {
		return repository.ErrNotFound
	}
	if claim.Status != domain.ClaimPending {
		return repository.ErrConflict
	}
	claim.Status = status
	claim.Result = result
	resolved := at
	claim.ResolvedAt = &resolved
	return nil
}

func (f *fakeClaimRepository) ListPendingOlderThan(_ context.Context, cutoff time.Time, limit int) ([]domain.VerificationClaim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stuck []domain.VerificationClaim
	for _, claim := range f.claims {
		if claim.Status == domain.ClaimPending && claim.RequestedAt.Before(cutoff) {
			stuck = append(stuck, *claim)
		}
	}
	sort.Slice(stuck, func(i, j int) bool {
		return stuck[i].RequestedAt.Before(stuck[j].RequestedAt)
	})
	if len(stuck) > limit {
		stuck = stuck[:limit]
	}
	return stuck, nil
}

func (f *fakeClaimRepository) ArchiveResolved(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var archived int64
	for id, claim := range f.claims {
		if claim.Status.Terminal() && claim.ResolvedAt != nil && claim.ResolvedAt.Before(cutoff) {
			delete(f.claims, id)
			archived++
		}
	}
	return archived, nil
}

type fakeIdentityRepository struct {
	mu         sync.Mutex
	identities map[string]*domain.Identity
	approvals  map[string]map[string]time.Time
}

func newFakeIdentityRepository(identities ...domain.Identity) *fakeIdentityRepository {
	repo := &fakeIdentityRepository{
		identities: make(map[string]*domain.Identity),
		approvals:  make(map[string]map[string]time.Time),
	}
	for i := range identities {
		identityCopy := identities[i]
		repo.identities[identityCopy.ID] = &identityCopy
	}
	return repo
}

func (f *fakeIdentityRepository) Create(_ context.Context, identity domain.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	identityCopy := identity
	f.identities[identity.ID] = &identityCopy
	return nil
}

func (f *fakeIdentityRepository) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.identities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	identityCopy := *identity
	return &identityCopy, nil
}

func (f *fakeIdentityRepository) GetByDID(_ context.Context, did string) (*domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, identity := range f.identities {
		if identity.DID == did {
			identityCopy := *identity
			return &identityCopy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeIdentityRepository) RecordVerifierApproval(_ context.Context, identityID, verifierID string, at time.Time) (port.ApprovalOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.identities[identityID]
	if !ok {
		return port.ApprovalOutcome{}, repository.ErrNotFound
	}
	set, ok := f.approvals[identityID]
	if !ok {
		set = make(map[string]time.Time)
		f.approvals[identityID] = set
	}

	outcome := port.ApprovalOutcome{Level: identity.VerificationLevel}
	if _, seen := set[verifierID]; seen {
		outcome.Duplicate = true
	} else {
		set[verifierID] = at
	}
	outcome.DistinctApprovals = len(set)
	for _, approvedAt := range set {
		if approvedAt.After(identity.LevelChangedAt) {
			outcome.FreshApproval = true
			break
		}
	}
	return outcome, nil
}

func (f *fakeIdentityRepository) SetVerificationLevel(_ context.Context, identityID string, target domain.VerificationLevel, at time.Time) (domain.VerificationLevel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.identities[identityID]
	if !ok {
		return domain.LevelUnverified, repository.ErrNotFound
	}
	if identity.VerificationLevel < target {
		identity.VerificationLevel = target
		identity.LevelChangedAt = at
		identity.UpdatedAt = at
	}
	return identity.VerificationLevel, nil
}

func (f *fakeIdentityRepository) ListApprovals(_ context.Context, identityID string) ([]domain.VerifierApproval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := f.approvals[identityID]
	approvals := make([]domain.VerifierApproval, 0, len(set))
	for verifier, at := range set {
		approvals = append(approvals, domain.VerifierApproval{
			IdentityID: identityID,
			VerifierID: verifier,
			CreatedAt:  at,
		})
	}
	return approvals, nil
}

type providerCall struct {
	result port.KYCResult
	err    error
}

type fakeKYCProvider struct {
	mu    sync.Mutex
	queue []providerCall
	calls int
}

func (f *fakeKYCProvider) enqueue(result port.KYCResult, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, providerCall{result: result, err: err})
}

func (f *fakeKYCProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeKYCProvider) Verify(_ context.Context, _ string, _ domain.ClaimType, _ string) (port.KYCResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.queue) == 0 {
		return port.KYCResult{Approved: true, Payload: "default-approval"}, nil
	}
	call := f.queue[0]
	f.queue = f.queue[1:]
	return call.result, call.err
}

type fakeDedupStore struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeDedupStore() *fakeDedupStore {
	return &fakeDedupStore{held: make(map[string]bool)}
}

func (f *fakeDedupStore) Acquire(_ context.Context, claimID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[claimID] {
		return false, nil
	}
	f.held[claimID] = true
	return true, nil
}

func (f *fakeDedupStore) Release(_ context.Context, claimID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, claimID)
	return nil
}

type stubEventPublisher struct {
	mu        sync.Mutex
	submitted []domain.ClaimSubmittedEvent
	resolved  []domain.ClaimResolvedEvent
	levels    []domain.VerificationLevelChangedEvent
}

func (s *stubEventPublisher) PublishClaimSubmitted(_ context.Context, event domain.ClaimSubmittedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, event)
	return nil
}

func (s *stubEventPublisher) PublishClaimResolved(_ context.Context, event domain.ClaimResolvedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = append(s.resolved, event)
	return nil
}

func (s *stubEventPublisher) PublishVerificationLevelChanged(_ context.Context, event domain.VerificationLevelChangedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels = append(s.levels, event)
	return nil
}

func (s *stubEventPublisher) PublishBanStatusChanged(context.Context, domain.BanStatusChangedEvent) error {
	return nil
}

func (s *stubEventPublisher) PublishCaseFiled(context.Context, domain.CaseFiledEvent) error {
	return nil
}

func (s *stubEventPublisher) PublishAppealFinalized(context.Context, domain.AppealFinalizedEvent) error {
	return nil
}

func (s *stubEventPublisher) resolvedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resolved)
}

var (
	_ port.ClaimRepository    = (*fakeClaimRepository)(nil)
	_ port.IdentityRepository = (*fakeIdentityRepository)(nil)
	_ port.KYCProvider        = (*fakeKYCProvider)(nil)
	_ port.ClaimDedupStore    = (*fakeDedupStore)(nil)
	_ port.EventPublisher     = (*stubEventPublisher)(nil)
)
