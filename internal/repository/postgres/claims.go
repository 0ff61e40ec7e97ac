package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
	"github.com/Adekabang/DigitalID-sub000/internal/core/port"
	"github.com/Adekabang/DigitalID-sub000/internal/repository"
)

// ClaimRepository implements port.ClaimRepository using PostgreSQL.
type ClaimRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewClaimRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewClaimRepository(exec pgExecutor) *ClaimRepository {
	repo := &ClaimRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *ClaimRepository) WithTx(tx pgx.Tx) *ClaimRepository {
	if tx == nil {
		return r
	}
	return &ClaimRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create persists a new claim.
func (r *ClaimRepository) Create(ctx context.Context, claim domain.VerificationClaim) error {
	stmt, args, err := r.builder.Insert("digitalid.verification_claims").
		Columns(
			"id",
			"subject",
			"claim_type",
			"metadata",
			"status",
			"requested_at",
			"resolved_at",
			"result",
			"archived",
		).
		Values(
			claim.ID,
			claim.Subject,
			string(claim.ClaimType),
			claim.Metadata,
			string(claim.Status),
			claim.RequestedAt,
			claim.ResolvedAt,
			claim.Result,
			false,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert claim sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

// Get retrieves a claim by id.
func (r *ClaimRepository) Get(ctx context.Context, claimID string) (*domain.VerificationClaim, error) {
	stmt, args, err := r.claimSelect().
		Where(squirrel.Eq{"id": claimID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select claim sql: %w", err)
	}

	claim, err := scanClaim(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan claim: %w", err)
	}
	return claim, nil
}

// UpdateStatus transitions PENDING -> status in one conditional statement.
// Zero affected rows means either the claim is gone or another worker has
// already resolved it; the two are told apart with a follow-up read.
func (r *ClaimRepository) UpdateStatus(ctx context.Context, claimID string, status domain.ClaimStatus, result string, at time.Time) error {
	stmt, args, err := r.builder.Update("digitalid.verification_claims").
		Set("status", string(status)).
		Set("result", result).
		Set("resolved_at", at).
		Where(squirrel.Eq{"id": claimID}).
		Where(squirrel.Eq{"status": string(domain.ClaimPending)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update claim sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	if ct.RowsAffected() > 0 {
		return nil
	}

	if _, err := r.Get(ctx, claimID); err != nil {
		return err
	}
	return repository.ErrConflict
}

// ListPendingOlderThan returns claims stuck PENDING since before the
// cutoff, oldest first.
func (r *ClaimRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.VerificationClaim, error) {
	stmt, args, err := r.claimSelect().
		Where(squirrel.Eq{"status": string(domain.ClaimPending)}).
		Where(squirrel.Eq{"archived": false}).
		Where(squirrel.Lt{"requested_at": cutoff}).
		OrderBy("requested_at ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select pending claims sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select pending claims: %w", err)
	}
	defer rows.Close()

	var claims []domain.VerificationClaim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending claim: %w", err)
		}
		claims = append(claims, *claim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending claims: %w", err)
	}
	return claims, nil
}

// ArchiveResolved flags terminal claims resolved before the cutoff so the
// sweep and listing queries skip them. Rows are kept for audit.
func (r *ClaimRepository) ArchiveResolved(ctx context.Context, cutoff time.Time) (int64, error) {
	stmt, args, err := r.builder.Update("digitalid.verification_claims").
		Set("archived", true).
		Where(squirrel.Eq{"archived": false}).
		Where(squirrel.NotEq{"status": string(domain.ClaimPending)}).
		Where(squirrel.Lt{"resolved_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build archive claims sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("archive claims: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *ClaimRepository) claimSelect() squirrel.SelectBuilder {
	return r.builder.
		Select(
			"id",
			"subject",
			"claim_type",
			"metadata",
			"status",
			"requested_at",
			"resolved_at",
			"result",
		).
		From("digitalid.verification_claims")
}

func scanClaim(row pgx.Row) (*domain.VerificationClaim, error) {
	var (
		claim      domain.VerificationClaim
		rawType    string
		rawStatus  string
		resolvedAt *time.Time
	)
	if err := row.Scan(
		&claim.ID,
		&claim.Subject,
		&rawType,
		&claim.Metadata,
		&rawStatus,
		&claim.RequestedAt,
		&resolvedAt,
		&claim.Result,
	); err != nil {
		return nil, err
	}
	claim.ClaimType = domain.ClaimType(rawType)
	claim.Status = domain.ClaimStatus(rawStatus)
	claim.ResolvedAt = resolvedAt
	return &claim, nil
}

var _ port.ClaimRepository = (*ClaimRepository)(nil)
