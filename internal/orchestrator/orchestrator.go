package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
	"github.com/Adekabang/DigitalID-sub000/internal/core/port"
	"github.com/Adekabang/DigitalID-sub000/internal/infra/telemetry"
	"github.com/Adekabang/DigitalID-sub000/internal/orchestrator/retry"
	"github.com/Adekabang/DigitalID-sub000/internal/repository"
	"github.com/Adekabang/DigitalID-sub000/internal/usecase"
)

var (
	// ErrInvalidClaimType indicates the submitted claim type is unknown.
	ErrInvalidClaimType = errors.New("invalid claim type")
	// ErrSubjectRequired indicates the claim names no subject identity.
	ErrSubjectRequired = errors.New("claim subject is required")
	// ErrSubjectNotFound indicates the claim subject identity does not exist.
	ErrSubjectNotFound = errors.New("claim subject not found")
)

// Config tunes claim processing and the background sweeps.
type Config struct {
	// ProviderVerifierID is the verifier identity credited for approvals
	// driven by a successful provider check.
	ProviderVerifierID string
	// ProcessTimeout bounds one end-to-end claim processing pass.
	ProcessTimeout time.Duration
	// MaxInFlight caps concurrently processed claims.
	MaxInFlight int
	// MaxAttempts bounds ledger confirmation retries per pass.
	MaxAttempts int
	// RetryBaseDelay and RetryMaxDelay shape the confirmation backoff.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// SweepInterval is the reconciliation sweep period; SweepGrace is how
	// long a claim may sit PENDING before the sweep picks it up.
	SweepInterval time.Duration
	SweepGrace    time.Duration
	// SweepBatchSize caps claims recovered per sweep run.
	SweepBatchSize int
	// ArchiveInterval is the cleanup period; ArchiveAfter is how long a
	// resolved claim stays in the pending index before archival.
	ArchiveInterval time.Duration
	ArchiveAfter    time.Duration
}

func (c Config) withDefaults() Config {
	if c.ProviderVerifierID == "" {
		c.ProviderVerifierID = "kyc-provider"
	}
	if c.ProcessTimeout <= 0 {
		c.ProcessTimeout = 90 * time.Second
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 16
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 200 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 5 * time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.SweepGrace <= 0 {
		c.SweepGrace = 2 * time.Minute
	}
	if c.SweepBatchSize <= 0 {
		c.SweepBatchSize = 100
	}
	if c.ArchiveInterval <= 0 {
		c.ArchiveInterval = time.Hour
	}
	if c.ArchiveAfter <= 0 {
		c.ArchiveAfter = 24 * time.Hour
	}
	return c
}

// Orchestrator owns the verification claim lifecycle: intake, the provider
// call, the conditional ledger resolution, and the reconciliation sweeps.
// ProcessClaim is the single processing entry point for every path that can
// observe a claim (intake, bus redelivery, sweep), so each path inherits the
// same idempotency guards.
type Orchestrator struct {
	claims       port.ClaimRepository
	identities   port.IdentityRepository
	verification *usecase.VerificationService
	provider     port.KYCProvider
	dedup        port.ClaimDedupStore
	events       port.EventPublisher
	logger       *zap.Logger
	cfg          Config
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	sem          chan struct{}
	wg           sync.WaitGroup
}

// New constructs a claim orchestrator.
func New(
	claims port.ClaimRepository,
	identities port.IdentityRepository,
	verification *usecase.VerificationService,
	provider port.KYCProvider,
	dedup port.ClaimDedupStore,
	events port.EventPublisher,
	logger *zap.Logger,
	cfg Config,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Orchestrator{
		claims:       claims,
		identities:   identities,
		verification: verification,
		provider:     provider,
		dedup:        dedup,
		events:       events,
		logger:       logger,
		cfg:          cfg,
		now:          func() time.Time { return time.Now().UTC() },
		sleep:        sleepContext,
		sem:          make(chan struct{}, cfg.MaxInFlight),
	}
}

// WithClock overrides the time source, used by tests.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// SubmitClaim validates and persists a new claim, publishes the submission
// event, and schedules asynchronous processing. The claim is returned in
// PENDING state; resolution happens out of band.
func (o *Orchestrator) SubmitClaim(ctx context.Context, subject string, claimType domain.ClaimType, metadata string) (*domain.VerificationClaim, error) {
	if subject == "" {
		return nil, ErrSubjectRequired
	}
	if _, ok := claimType.TargetLevel(); !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidClaimType, claimType)
	}
	if _, err := o.identities.GetByID(ctx, subject); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, fmt.Errorf("load subject: %w", err)
	}

	claim := domain.VerificationClaim{
		ID:          uuid.NewString(),
		Subject:     subject,
		ClaimType:   claimType,
		Metadata:    metadata,
		Status:      domain.ClaimPending,
		RequestedAt: o.now(),
	}
	if err := o.claims.Create(ctx, claim); err != nil {
		return nil, fmt.Errorf("create claim: %w", err)
	}
	telemetry.ClaimsSubmittedTotal.WithLabelValues(string(claimType)).Inc()

	if err := o.events.PublishClaimSubmitted(ctx, domain.ClaimSubmittedEvent{
		EventID:     uuid.NewString(),
		ClaimID:     claim.ID,
		Subject:     claim.Subject,
		ClaimType:   claim.ClaimType,
		RequestedAt: claim.RequestedAt,
	}); err != nil {
		// The bus is advisory here: the sweep recovers claims the consumer
		// never saw.
		o.logger.Warn("publish claim submitted failed",
			zap.String("claim_id", claim.ID),
			zap.Error(err))
	}

	o.schedule(claim.ID)
	return &claim, nil
}

// OnClaimSubmitted handles a claim submission observed on the message bus.
// Redeliveries are safe: processing re-checks claim status before acting.
func (o *Orchestrator) OnClaimSubmitted(ctx context.Context, claimID string) error {
	err := o.ProcessClaim(ctx, claimID)
	if err == nil {
		return nil
	}
	if retry.Classify(err).IsTransient() {
		// Leave the claim PENDING for the sweep rather than poisoning the
		// consumer group with endless redeliveries.
		o.logger.Warn("claim processing deferred to sweep",
			zap.String("claim_id", claimID),
			zap.Error(err))
		return nil
	}
	return err
}

func (o *Orchestrator) schedule(claimID string) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.sem <- struct{}{}
		defer func() { <-o.sem }()

		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.ProcessTimeout)
		defer cancel()
		if err := o.ProcessClaim(ctx, claimID); err != nil {
			o.logger.Warn("async claim processing failed",
				zap.String("claim_id", claimID),
				zap.Error(err))
		}
	}()
}

// ProcessClaim drives one claim through the provider check and resolution.
// It is idempotent: a resolved claim is a no-op, a claim already in flight
// elsewhere is skipped via the dedup guard, and the resolution itself is a
// conditional PENDING-only transition. A transient failure returns an error
// with the claim still PENDING so the reconciliation sweep retries it.
func (o *Orchestrator) ProcessClaim(ctx context.Context, claimID string) error {
	started := o.now()

	claim, err := o.claims.Get(ctx, claimID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			o.logger.Warn("claim not found, dropping", zap.String("claim_id", claimID))
			return nil
		}
		return fmt.Errorf("load claim: %w", err)
	}
	if claim.Status != domain.ClaimPending {
		o.logger.Debug("claim already resolved",
			zap.String("claim_id", claimID),
			zap.String("status", string(claim.Status)))
		return nil
	}

	acquired, err := o.dedup.Acquire(ctx, claimID)
	if err != nil {
		return fmt.Errorf("acquire claim guard: %w", err)
	}
	if !acquired {
		o.logger.Debug("claim already in flight", zap.String("claim_id", claimID))
		return nil
	}

	result, err := o.callProvider(ctx, claim)
	if err != nil {
		decision := retry.Classify(err)
		telemetry.ClaimProcessingErrors.WithLabelValues(decision.Reason).Inc()
		if decision.IsTransient() {
			// Release the guard so the sweep can retry without waiting for
			// the guard TTL.
			o.releaseGuard(claimID)
			o.logger.Warn("provider call failed, claim stays pending",
				zap.String("claim_id", claimID),
				zap.String("reason", decision.Reason),
				zap.Error(err))
			return fmt.Errorf("provider verify: %w", err)
		}
		return o.resolve(ctx, claim, domain.ClaimRejected, fmt.Sprintf("provider error: %v", err))
	}

	defer telemetry.ClaimProcessingLatency.
		WithLabelValues(string(claim.ClaimType)).
		Observe(o.now().Sub(started).Seconds())

	if !result.Approved {
		reason := result.Reason
		if reason == "" {
			reason = "denied by provider"
		}
		return o.resolve(ctx, claim, domain.ClaimRejected, reason)
	}
	return o.resolve(ctx, claim, domain.ClaimApproved, result.Payload)
}

func (o *Orchestrator) callProvider(ctx context.Context, claim *domain.VerificationClaim) (port.KYCResult, error) {
	started := o.now()
	result, err := o.provider.Verify(ctx, claim.Subject, claim.ClaimType, claim.Metadata)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	} else if !result.Approved {
		outcome = "denied"
	}
	telemetry.ProviderCallLatency.WithLabelValues(outcome).Observe(o.now().Sub(started).Seconds())
	return result, err
}

// resolve commits the claim outcome with bounded retries, then publishes the
// resolution event and, on approval, drives the verification level. Losing
// the conditional transition to a concurrent worker skips the side effects.
func (o *Orchestrator) resolve(ctx context.Context, claim *domain.VerificationClaim, status domain.ClaimStatus, result string) error {
	resolvedAt := o.now()

	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		err := o.claims.UpdateStatus(ctx, claim.ID, status, result, resolvedAt)
		if err == nil {
			lastErr = nil
			break
		}
		if errors.Is(err, repository.ErrConflict) {
			o.logger.Info("claim resolved by concurrent worker",
				zap.String("claim_id", claim.ID))
			return nil
		}
		decision := retry.Classify(err)
		if !decision.IsTransient() {
			o.releaseGuard(claim.ID)
			return fmt.Errorf("resolve claim %s: %w", claim.ID, err)
		}
		lastErr = err
		o.logger.Warn("claim resolution retry",
			zap.String("claim_id", claim.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < o.cfg.MaxAttempts {
			if serr := o.sleep(ctx, retry.Backoff(attempt, o.cfg.RetryBaseDelay, o.cfg.RetryMaxDelay)); serr != nil {
				o.releaseGuard(claim.ID)
				return serr
			}
		}
	}
	if lastErr != nil {
		o.releaseGuard(claim.ID)
		return fmt.Errorf("resolve claim %s after %d attempts: %w", claim.ID, o.cfg.MaxAttempts, lastErr)
	}

	telemetry.ClaimsResolvedTotal.WithLabelValues(string(claim.ClaimType), string(status)).Inc()
	o.logger.Info("claim resolved",
		zap.String("claim_id", claim.ID),
		zap.String("subject", claim.Subject),
		zap.String("status", string(status)))

	if err := o.events.PublishClaimResolved(ctx, domain.ClaimResolvedEvent{
		EventID:    uuid.NewString(),
		ClaimID:    claim.ID,
		Subject:    claim.Subject,
		Status:     status,
		Result:     result,
		ResolvedAt: resolvedAt,
	}); err != nil {
		o.logger.Warn("publish claim resolved failed",
			zap.String("claim_id", claim.ID),
			zap.Error(err))
	}

	if status == domain.ClaimApproved {
		o.driveVerification(ctx, claim)
	}
	return nil
}

// driveVerification credits the provider's approval toward the claimed
// level. A pending quorum is the expected outcome for KYC and FULL claims:
// the second distinct verifier arrives through the approval API.
func (o *Orchestrator) driveVerification(ctx context.Context, claim *domain.VerificationClaim) {
	target, ok := claim.ClaimType.TargetLevel()
	if !ok {
		return
	}

	if target > domain.LevelBasic {
		if _, err := o.verification.Approve(ctx, claim.Subject, o.cfg.ProviderVerifierID, domain.LevelBasic); err != nil {
			o.logger.Warn("basic approval failed",
				zap.String("claim_id", claim.ID),
				zap.String("subject", claim.Subject),
				zap.Error(err))
			return
		}
	}

	res, err := o.verification.Approve(ctx, claim.Subject, o.cfg.ProviderVerifierID, target)
	if err != nil {
		o.logger.Warn("target approval failed",
			zap.String("claim_id", claim.ID),
			zap.String("subject", claim.Subject),
			zap.String("target", target.String()),
			zap.Error(err))
		return
	}
	if res.PendingQuorum {
		o.logger.Info("approval recorded, quorum pending",
			zap.String("claim_id", claim.ID),
			zap.String("subject", claim.Subject),
			zap.String("target", target.String()),
			zap.Int("distinct_approvals", res.DistinctApprovals))
	}
}

func (o *Orchestrator) releaseGuard(claimID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.dedup.Release(ctx, claimID); err != nil {
		// The guard TTL expires on its own; a failed release only delays
		// the next attempt.
		o.logger.Warn("release claim guard failed",
			zap.String("claim_id", claimID),
			zap.Error(err))
	}
}

// Run operates the background loops until the context is canceled: the
// reconciliation sweep that retries stuck PENDING claims, and the cleanup
// loop that archives resolved ones. It drains in-flight claim workers
// before returning.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(o.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				o.Sweep(ctx)
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(o.cfg.ArchiveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				o.archive(ctx)
			}
		}
	})

	err := g.Wait()
	o.wg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Sweep reprocesses claims stuck PENDING past the grace window. Claims
// whose submission event was lost, whose worker crashed mid-flight, or
// whose provider call timed out all converge here.
func (o *Orchestrator) Sweep(ctx context.Context) {
	cutoff := o.now().Add(-o.cfg.SweepGrace)
	stuck, err := o.claims.ListPendingOlderThan(ctx, cutoff, o.cfg.SweepBatchSize)
	if err != nil {
		telemetry.SweepRunsTotal.WithLabelValues("error").Inc()
		o.logger.Error("sweep listing failed", zap.Error(err))
		return
	}
	telemetry.SweepRunsTotal.WithLabelValues("ok").Inc()
	if len(stuck) == 0 {
		return
	}

	o.logger.Info("sweep recovering stuck claims", zap.Int("count", len(stuck)))
	for _, claim := range stuck {
		telemetry.SweepRecoveredTotal.Inc()
		if err := o.ProcessClaim(ctx, claim.ID); err != nil {
			o.logger.Warn("sweep claim processing failed",
				zap.String("claim_id", claim.ID),
				zap.Error(err))
		}
	}
}

func (o *Orchestrator) archive(ctx context.Context) {
	cutoff := o.now().Add(-o.cfg.ArchiveAfter)
	archived, err := o.claims.ArchiveResolved(ctx, cutoff)
	if err != nil {
		o.logger.Error("claim archival failed", zap.Error(err))
		return
	}
	if archived > 0 {
		telemetry.ClaimsArchivedTotal.Add(float64(archived))
		o.logger.Info("archived resolved claims", zap.Int64("count", archived))
	}
}

// GetClaim returns the current state of a claim.
func (o *Orchestrator) GetClaim(ctx context.Context, claimID string) (*domain.VerificationClaim, error) {
	return o.claims.Get(ctx, claimID)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
