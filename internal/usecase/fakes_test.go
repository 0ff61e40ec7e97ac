package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
	"github.com/Adekabang/DigitalID-sub000/internal/core/port"
	"github.com/Adekabang/DigitalID-sub000/internal/repository"
)

type fakeIdentityRepository struct {
	identities map[string]*domain.Identity
	approvals  map[string]map[string]time.Time
	byDID      map[string]string
}

func newFakeIdentityRepository(identities ...domain.Identity) *fakeIdentityRepository {
	repo := &fakeIdentityRepository{
		identities: make(map[string]*domain.Identity),
		approvals:  make(map[string]map[string]time.Time),
		byDID:      make(map[string]string),
	}
	for i := range identities {
		identityCopy := identities[i]
		repo.identities[identityCopy.ID] = &identityCopy
		repo.byDID[identityCopy.DID] = identityCopy.ID
	}
	return repo
}

func (f *fakeIdentityRepository) Create(_ context.Context, identity domain.Identity) error {
	if _, ok := f.byDID[identity.DID]; ok {
		return repository.ErrConflict
	}
	identityCopy := identity
	f.identities[identity.ID] = &identityCopy
	f.byDID[identity.DID] = identity.ID
	return nil
}

func (f *fakeIdentityRepository) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	identity, ok := f.identities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	identityCopy := *identity
	return &identityCopy, nil
}

func (f *fakeIdentityRepository) GetByDID(_ context.Context, did string) (*domain.Identity, error) {
	id, ok := f.byDID[did]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return f.GetByID(context.Background(), id)
}

func (f *fakeIdentityRepository) RecordVerifierApproval(_ context.Context, identityID, verifierID string, at time.Time) (port.ApprovalOutcome, error) {
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
	set := f.approvals[identityID]
	approvals := make([]domain.VerifierApproval, 0, len(set))
	for verifier, at := range set {
		approvals = append(approvals, domain.VerifierApproval{
			IdentityID: identityID,
			VerifierID: verifier,
			CreatedAt:  at,
		})
	}
	sort.Slice(approvals, func(i, j int) bool {
		return approvals[i].CreatedAt.Before(approvals[j].CreatedAt)
	})
	return approvals, nil
}

type fakeReputationRepository struct {
	records map[string]*domain.ReputationScore
}

func newFakeReputationRepository() *fakeReputationRepository {
	return &fakeReputationRepository{records: make(map[string]*domain.ReputationScore)}
}

func (f *fakeReputationRepository) Initialize(_ context.Context, identityID string, at time.Time) error {
	if _, ok := f.records[identityID]; ok {
		return repository.ErrConflict
	}
	f.records[identityID] = &domain.ReputationScore{
		IdentityID: identityID,
		Score:      domain.InitialScore,
		IsBanned:   false,
		LastUpdate: at,
	}
	return nil
}

func (f *fakeReputationRepository) Get(_ context.Context, identityID string) (*domain.ReputationScore, error) {
	record, ok := f.records[identityID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	recordCopy := *record
	return &recordCopy, nil
}

func (f *fakeReputationRepository) ApplyDelta(_ context.Context, identityID string, points int, at time.Time) (port.DeltaOutcome, error) {
	record, ok := f.records[identityID]
	if !ok {
		return port.DeltaOutcome{}, repository.ErrNotFound
	}
	decayed := domain.DecayedScore(record.Score, record.LastUpdate, at)
	next := domain.ClampScore(decayed + points)
	outcome := port.DeltaOutcome{
		OldScore:  decayed,
		NewScore:  next,
		WasBanned: record.IsBanned,
		IsBanned:  next < domain.BanThreshold,
	}
	record.Score = next
	record.IsBanned = outcome.IsBanned
	record.LastUpdate = at
	return outcome, nil
}

type fakeModerationRepository struct {
	cases  []domain.ModerationCase
	states map[string]*domain.RestrictionState
	nextID int64
}

func newFakeModerationRepository() *fakeModerationRepository {
	return &fakeModerationRepository{states: make(map[string]*domain.RestrictionState), nextID: 1}
}

func (f *fakeModerationRepository) FileCase(_ context.Context, c domain.ModerationCase) (int64, error) {
	c.CaseID = f.nextID
	f.nextID++
	f.cases = append(f.cases, c)
	return c.CaseID, nil
}

func (f *fakeModerationRepository) GetCase(_ context.Context, caseID int64) (*domain.ModerationCase, error) {
	for i := range f.cases {
		if f.cases[i].CaseID == caseID {
			caseCopy := f.cases[i]
			return &caseCopy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeModerationRepository) ListCasesBySubject(_ context.Context, subject string) ([]domain.ModerationCase, error) {
	result := make([]domain.ModerationCase, 0)
	for _, c := range f.cases {
		if c.Subject == subject {
			result = append(result, c)
		}
	}
	return result, nil
}

func (f *fakeModerationRepository) GetRestrictionState(_ context.Context, identityID string) (*domain.RestrictionState, error) {
	state, ok := f.states[identityID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	stateCopy := *state
	return &stateCopy, nil
}

func (f *fakeModerationRepository) SetRestrictionState(_ context.Context, identityID string, state domain.ModerationAction, at time.Time) error {
	f.states[identityID] = &domain.RestrictionState{
		IdentityID: identityID,
		State:      state,
		UpdatedAt:  at,
	}
	return nil
}

type fakeAppealRepository struct {
	appeals map[string]*domain.Appeal
	votes   map[string]map[string]bool

	// beforeVote runs at the top of RecordVote, standing in for writes
	// that land between the caller's status read and the vote itself.
	beforeVote func()
}

func newFakeAppealRepository() *fakeAppealRepository {
	return &fakeAppealRepository{
		appeals: make(map[string]*domain.Appeal),
		votes:   make(map[string]map[string]bool),
	}
}

func (f *fakeAppealRepository) Create(_ context.Context, appeal domain.Appeal) error {
	appealCopy := appeal
	f.appeals[appeal.ID] = &appealCopy
	return nil
}

func (f *fakeAppealRepository) Get(_ context.Context, appealID string) (*domain.Appeal, error) {
	appeal, ok := f.appeals[appealID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	appealCopy := *appeal
	return &appealCopy, nil
}

func (f *fakeAppealRepository) LatestByIdentity(_ context.Context, identityID string) (*domain.Appeal, error) {
	var latest *domain.Appeal
	for _, appeal := range f.appeals {
		if appeal.IdentityID != identityID {
			continue
		}
		if latest == nil || appeal.SubmittedAt.After(latest.SubmittedAt) {
			latest = appeal
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	latestCopy := *latest
	return &latestCopy, nil
}

func (f *fakeAppealRepository) RecordVote(_ context.Context, vote domain.AppealVote) (port.VoteOutcome, error) {
	if f.beforeVote != nil {
		f.beforeVote()
	}
	appeal, ok := f.appeals[vote.AppealID]
	if !ok {
		return port.VoteOutcome{}, repository.ErrNotFound
	}
	if appeal.Status != domain.AppealPending {
		return port.VoteOutcome{}, repository.ErrConflict
	}
	cast, ok := f.votes[vote.AppealID]
	if !ok {
		cast = make(map[string]bool)
		f.votes[vote.AppealID] = cast
	}
	if _, seen := cast[vote.ReviewerID]; seen {
		return port.VoteOutcome{Duplicate: true, Appeal: *appeal}, nil
	}
	cast[vote.ReviewerID] = vote.Approve
	if vote.Approve {
		appeal.Approvals++
	} else {
		appeal.Rejections++
	}
	return port.VoteOutcome{Appeal: *appeal}, nil
}

func (f *fakeAppealRepository) Finalize(_ context.Context, appealID string, status domain.AppealStatus) error {
	appeal, ok := f.appeals[appealID]
	if !ok {
		return repository.ErrNotFound
	}
	if appeal.Status != domain.AppealPending {
		return repository.ErrConflict
	}
	appeal.Status = status
	return nil
}

type stubEventPublisher struct {
	banEvents       []domain.BanStatusChangedEvent
	levelEvents     []domain.VerificationLevelChangedEvent
	caseEvents      []domain.CaseFiledEvent
	appealEvents    []domain.AppealFinalizedEvent
	claimSubmitted  []domain.ClaimSubmittedEvent
	claimResolved   []domain.ClaimResolvedEvent
}

func (s *stubEventPublisher) PublishClaimSubmitted(_ context.Context, event domain.ClaimSubmittedEvent) error {
	s.claimSubmitted = append(s.claimSubmitted, event)
	return nil
}

func (s *stubEventPublisher) PublishClaimResolved(_ context.Context, event domain.ClaimResolvedEvent) error {
	s.claimResolved = append(s.claimResolved, event)
	return nil
}

func (s *stubEventPublisher) PublishVerificationLevelChanged(_ context.Context, event domain.VerificationLevelChangedEvent) error {
	s.levelEvents = append(s.levelEvents, event)
	return nil
}

func (s *stubEventPublisher) PublishBanStatusChanged(_ context.Context, event domain.BanStatusChangedEvent) error {
	s.banEvents = append(s.banEvents, event)
	return nil
}

func (s *stubEventPublisher) PublishCaseFiled(_ context.Context, event domain.CaseFiledEvent) error {
	s.caseEvents = append(s.caseEvents, event)
	return nil
}

func (s *stubEventPublisher) PublishAppealFinalized(_ context.Context, event domain.AppealFinalizedEvent) error {
	s.appealEvents = append(s.appealEvents, event)
	return nil
}

var (
	_ port.IdentityRepository   = (*fakeIdentityRepository)(nil)
	_ port.ReputationRepository = (*fakeReputationRepository)(nil)
	_ port.ModerationRepository = (*fakeModerationRepository)(nil)
	_ port.AppealRepository     = (*fakeAppealRepository)(nil)
	_ port.EventPublisher       = (*stubEventPublisher)(nil)
)
