package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
	"github.com/Adekabang/DigitalID-sub000/internal/core/port"
	"github.com/Adekabang/DigitalID-sub000/internal/orchestrator/retry"
	"github.com/Adekabang/DigitalID-sub000/internal/repository"
	"github.com/Adekabang/DigitalID-sub000/internal/usecase"
)

type orchestratorFixture struct {
	orchestrator *Orchestrator
	claims       *fakeClaimRepository
	identities   *fakeIdentityRepository
	provider     *fakeKYCProvider
	dedup        *fakeDedupStore
	events       *stubEventPublisher
	now          time.Time
}

func newOrchestratorFixture(t *testing.T, identities ...domain.Identity) *orchestratorFixture {
	t.Helper()

	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	claims := newFakeClaimRepository()
	identityRepo := newFakeIdentityRepository(identities...)
	provider := &fakeKYCProvider{}
	dedup := newFakeDedupStore()
	events := &stubEventPublisher{}

	verification := usecase.NewVerificationService(identityRepo, events, zap.NewNop()).
		WithClock(func() time.Time { return now })

	o := New(claims, identityRepo, verification, provider, dedup, events, zap.NewNop(), Config{
		SweepGrace:     time.Minute,
		MaxAttempts:    3,
		SweepBatchSize: 10,
	}).WithClock(func() time.Time { return now })
	o.sleep = func(context.Context, time.Duration) error { return nil }

	return &orchestratorFixture{
		orchestrator: o,
		claims:       claims,
		identities:   identityRepo,
		provider:     provider,
		dedup:        dedup,
		events:       events,
		now:          now,
	}
}

func testIdentity(id string) domain.Identity {
	base := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	return domain.Identity{
		ID:                id,
		DID:               "did:example:" + id,
		VerificationLevel: domain.LevelUnverified,
		CreatedAt:         base,
		UpdatedAt:         base,
		LevelChangedAt:    base,
	}
}

func (fx *orchestratorFixture) pendingClaim(t *testing.T, subject string, claimType domain.ClaimType, requestedAt time.Time) domain.VerificationClaim {
	t.Helper()
	claim := domain.VerificationClaim{
		ID:          "claim-" + subject + "-" + string(claimType),
		Subject:     subject,
		ClaimType:   claimType,
		Metadata:    "{}",
		Status:      domain.ClaimPending,
		RequestedAt: requestedAt,
	}
	if err := fx.claims.Create(context.Background(), claim); err != nil {
		t.Fatalf("seed claim: %v", err)
	}
	return claim
}

func TestSubmitClaimValidation(t *testing.T) {
	fx := newOrchestratorFixture(t, testIdentity("alice"))
	ctx := context.Background()

	if _, err := fx.orchestrator.SubmitClaim(ctx, "", domain.ClaimTypeBasic, ""); !errors.Is(err, ErrSubjectRequired) {
		t.Fatalf("empty subject: got %v, want ErrSubjectRequired", err)
	}
	if _, err := fx.orchestrator.SubmitClaim(ctx, "alice", domain.ClaimType("SUPER"), ""); !errors.Is(err, ErrInvalidClaimType) {
		t.Fatalf("bad type: got %v, want ErrInvalidClaimType", err)
	}
	if _, err := fx.orchestrator.SubmitClaim(ctx, "ghost", domain.ClaimTypeBasic, ""); !errors.Is(err, ErrSubjectNotFound) {
		t.Fatalf("unknown subject: got %v, want ErrSubjectNotFound", err)
	}
}

func TestSubmitClaimProcessesAsynchronously(t *testing.T) {
	fx := newOrchestratorFixture(t, testIdentity("alice"))
	ctx := context.Background()

	fx.provider.enqueue(port.KYCResult{Approved: true, Payload: "evidence"}, nil)

	claim, err := fx.orchestrator.SubmitClaim(ctx, "alice", domain.ClaimTypeBasic, `{"doc":"x"}`)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if claim.Status != domain.ClaimPending {
		t.Fatalf("submit returned status %s, want PENDING", claim.Status)
	}

	fx.orchestrator.wg.Wait()

	stored, err := fx.claims.Get(ctx, claim.ID)
	if err != nil {
		t.Fatalf("get claim: %v", err)
	}
	if stored.Status != domain.ClaimApproved {
		t.Fatalf("claim status %s, want APPROVED", stored.Status)
	}
	if stored.Result != "evidence" {
		t.Fatalf("claim result %q, want provider payload", stored.Result)
	}

	fx.events.mu.Lock()
	submitted, resolved := len(fx.events.submitted), len(fx.events.resolved)
	fx.events.mu.Unlock()
	if submitted != 1 || resolved != 1 {
		t.Fatalf("events: %d submitted, %d resolved, want 1 each", submitted, resolved)
	}

	identity, err := fx.identities.GetByID(ctx, "alice")
	if err != nil {
		t.Fatalf("get identity: %v", err)
	}
	if identity.VerificationLevel != domain.LevelBasic {
		t.Fatalf("level %s, want BASIC_VERIFIED", identity.VerificationLevel)
	}
}

func TestProcessClaimResolvedClaimIsNoOp(t *testing.T) {
	fx := newOrchestratorFixture(t, testIdentity("alice"))
	ctx := context.Background()

	claim := fx.pendingClaim(t, "alice", domain.ClaimTypeBasic, fx.now)
	if err := fx.claims.UpdateStatus(ctx, claim.ID, domain.ClaimRejected, "denied", fx.now); err != nil {
		t.Fatalf("pre-resolve: %v", err)
	}

	if err := fx.orchestrator.ProcessClaim(ctx, claim.ID); err != nil {
		t.Fatalf("process resolved claim: %v", err)
	}
	if fx.provider.callCount() != 0 {
		t.Fatalf("provider called %d times for resolved claim, want 0", fx.provider.callCount())
	}
}

func TestProcessClaimDedupGuardBlocksSecondWorker(t *testing.T) {
	fx := newOrchestratorFixture(t, testIdentity("alice"))
	ctx := context.Background()

	claim := fx.pendingClaim(t, "alice", domain.ClaimTypeBasic, fx.now)
	if ok, _ := fx.dedup.Acquire(ctx, claim.ID); !ok {
		t.Fatal("seed guard acquire failed")
	}

	if err := fx.orchestrator.ProcessClaim(ctx, claim.ID); err != nil {
		t.Fatalf("process guarded claim: %v", err)
	}
	if fx.provider.callCount() != 0 {
		t.Fatal("provider called while guard held elsewhere")
	}
	stored, _ := fx.claims.Get(ctx, claim.ID)
	if stored.Status != domain.ClaimPending {
		t.Fatalf("claim status %s, want PENDING untouched", stored.Status)
	}
}

// A provider timeout leaves the claim PENDING; the sweep then re-runs it to
// completion once the provider recovers.
func TestProviderTimeoutThenSweepRecovers(t *testing.T) {
	fx := newOrchestratorFixture(t, testIdentity("alice"))
	ctx := context.Background()

	stale := fx.now.Add(-5 * time.Minute)
	claim := fx.pendingClaim(t, "alice", domain.ClaimTypeKYC, stale)

	fx.provider.enqueue(port.KYCResult{}, context.DeadlineExceeded)
	fx.provider.enqueue(port.KYCResult{Approved: true, Payload: "kyc-report"}, nil)

	err := fx.orchestrator.ProcessClaim(ctx, claim.ID)
	if err == nil {
		t.Fatal("expected transient error from first pass")
	}
	if !retry.Classify(err).IsTransient() {
		t.Fatalf("first pass error not transient: %v", err)
	}
	stored, _ := fx.claims.Get(ctx, claim.ID)
	if stored.Status != domain.ClaimPending {
		t.Fatalf("claim status after timeout %s, want PENDING", stored.Status)
	}

	fx.orchestrator.Sweep(ctx)

	stored, _ = fx.claims.Get(ctx, claim.ID)
	if stored.Status != domain.ClaimApproved {
		t.Fatalf("claim status after sweep %s, want APPROVED", stored.Status)
	}
	if fx.provider.callCount() != 2 {
		t.Fatalf("provider calls %d, want 2", fx.provider.callCount())
	}
}

func TestProviderDenialRejectsClaim(t *testing.T) {
	fx := newOrchestratorFixture(t, testIdentity("alice"))
	ctx := context.Background()

	claim := fx.pendingClaim(t, "alice", domain.ClaimTypeBasic, fx.now)
	fx.provider.enqueue(port.KYCResult{Approved: false, Reason: "document expired"}, nil)

	if err := fx.orchestrator.ProcessClaim(ctx, claim.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	stored, _ := fx.claims.Get(ctx, claim.ID)
	if stored.Status != domain.ClaimRejected {
		t.Fatalf("claim status %s, want REJECTED", stored.Status)
	}
	if stored.Result != "document expired" {
		t.Fatalf("claim result %q, want denial reason", stored.Result)
	}

	identity, _ := fx.identities.GetByID(ctx, "alice")
	if identity.VerificationLevel != domain.LevelUnverified {
		t.Fatalf("level %s changed by rejected claim", identity.VerificationLevel)
	}
}

func TestTerminalProviderErrorRejectsClaim(t *testing.T) {
	fx := newOrchestratorFixture(t, testIdentity("alice"))
	ctx := context.Background()

	claim := fx.pendingClaim(t, "alice", domain.ClaimTypeBasic, fx.now)
	fx.provider.enqueue(port.KYCResult{}, retry.Terminal(errors.New("malformed document bundle")))

	if err := fx.orchestrator.ProcessClaim(ctx, claim.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	stored, _ := fx.claims.Get(ctx, claim.ID)
	if stored.Status != domain.ClaimRejected {
		t.Fatalf("claim status %s, want REJECTED", stored.Status)
	}
}

// Losing the conditional resolution to a concurrent worker must skip the
// resolution event and the level driving.
func TestConcurrentResolutionSkipsSideEffects(t *testing.T) {
	fx := newOrchestratorFixture(t, testIdentity("alice"))
	ctx := context.Background()

	claim := fx.pendingClaim(t, "alice", domain.ClaimTypeBasic, fx.now)
	fx.provider.enqueue(port.KYCResult{Approved: true, Payload: "evidence"}, nil)
	// The other worker wins between our provider call and our confirmation.
	fx.claims.updateErrs = []error{repository.ErrConflict}

	if err := fx.orchestrator.ProcessClaim(ctx, claim.ID); err != nil {
		t.Fatalf("process with lost race: %v", err)
	}
	if fx.events.resolvedCount() != 0 {
		t.Fatal("resolution event published despite losing the race")
	}
	identity, _ := fx.identities.GetByID(ctx, "alice")
	if identity.VerificationLevel != domain.LevelUnverified {
		t.Fatal("level driven despite losing the race")
	}
}

func TestResolutionRetriesTransientLedgerErrors(t *testing.T) {
	fx := newOrchestratorFixture(t, testIdentity("alice"))
	ctx := context.Background()

	claim := fx.pendingClaim(t, "alice", domain.ClaimTypeBasic, fx.now)
	fx.provider.enqueue(port.KYCResult{Approved: true, Payload: "evidence"}, nil)
	fx.claims.updateErrs = []error{
		errors.New("connection reset by peer"),
		errors.New("dial tcp: connection refused"),
	}

	if err := fx.orchestrator.ProcessClaim(ctx, claim.ID); err != nil {
		t.Fatalf("process with flaky ledger: %v", err)
	}
	stored, _ := fx.claims.Get(ctx, claim.ID)
	if stored.Status != domain.ClaimApproved {
		t.Fatalf("claim status %s, want APPROVED after retries", stored.Status)
	}
}

// An approved KYC claim credits the provider as one verifier; the level
// stays BASIC until a second distinct verifier completes the quorum.
func TestApprovedKYCClaimLeavesQuorumPending(t *testing.T) {
	fx := newOrchestratorFixture(t, testIdentity("alice"))
	ctx := context.Background()

	claim := fx.pendingClaim(t, "alice", domain.ClaimTypeKYC, fx.now)
	fx.provider.enqueue(port.KYCResult{Approved: true, Payload: "kyc-report"}, nil)

	if err := fx.orchestrator.ProcessClaim(ctx, claim.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	identity, _ := fx.identities.GetByID(ctx, "alice")
	if identity.VerificationLevel != domain.LevelBasic {
		t.Fatalf("level %s, want BASIC_VERIFIED while KYC quorum pending", identity.VerificationLevel)
	}

	approvals, _ := fx.identities.ListApprovals(ctx, "alice")
	if len(approvals) != 1 || approvals[0].VerifierID != "kyc-provider" {
		t.Fatalf("approvals %+v, want single kyc-provider entry", approvals)
	}
}

func TestArchiveRemovesOldResolvedClaims(t *testing.T) {
	fx := newOrchestratorFixture(t, testIdentity("alice"))
	ctx := context.Background()

	old := fx.pendingClaim(t, "alice", domain.ClaimTypeBasic, fx.now.Add(-48*time.Hour))
	if err := fx.claims.UpdateStatus(ctx, old.ID, domain.ClaimRejected, "denied", fx.now.Add(-48*time.Hour)); err != nil {
		t.Fatalf("resolve old claim: %v", err)
	}
	fresh := fx.pendingClaim(t, "alice", domain.ClaimTypeKYC, fx.now)

	fx.orchestrator.archive(ctx)

	if _, err := fx.claims.Get(ctx, old.ID); err == nil {
		t.Fatal("old resolved claim not archived")
	}
	if _, err := fx.claims.Get(ctx, fresh.ID); err != nil {
		t.Fatalf("pending claim archived: %v", err)
	}
}
