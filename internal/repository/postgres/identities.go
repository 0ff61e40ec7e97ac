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

// IdentityRepository implements port.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewIdentityRepository wires a PostgreSQL-backed identity repository.
func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *IdentityRepository) WithTx(tx pgx.Tx) *IdentityRepository {
	if tx == nil {
		return r
	}
	return &IdentityRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new identity row.
func (r *IdentityRepository) Create(ctx context.Context, identity domain.Identity) error {
	sql, args, err := r.builder.Insert("digitalid.identities").
		Columns(
			"id",
			"did",
			"verification_level",
			"created_at",
			"updated_at",
			"level_changed_at",
		).
		Values(
			identity.ID,
			identity.DID,
			int(identity.VerificationLevel),
			identity.CreatedAt,
			identity.UpdatedAt,
			identity.LevelChangedAt,
		).
		Suffix("ON CONFLICT (did) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert identity sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrConflict
	}
	return nil
}

// GetByID retrieves an identity by its internal identifier.
func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id})
}

// GetByDID retrieves an identity by its decentralized identifier.
func (r *IdentityRepository) GetByDID(ctx context.Context, did string) (*domain.Identity, error) {
	return r.getBy(ctx, squirrel.Eq{"did": did})
}

func (r *IdentityRepository) getBy(ctx context.Context, pred squirrel.Eq) (*domain.Identity, error) {
	stmt, args, err := r.builder.
		Select(
			"id",
			"did",
			"verification_level",
			"created_at",
			"updated_at",
			"level_changed_at",
		).
		From("digitalid.identities").
		Where(pred).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select identity sql: %w", err)
	}

	var (
		identity domain.Identity
		level    int
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&identity.ID,
		&identity.DID,
		&level,
		&identity.CreatedAt,
		&identity.UpdatedAt,
		&identity.LevelChangedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}
	identity.VerificationLevel = domain.VerificationLevel(level)
	return &identity, nil
}

// RecordVerifierApproval inserts the approval under a row lock on the
// identity and returns the resulting approval-set state. The duplicate
// check, the insert, and the freshness computation observe one consistent
// snapshot because the identity row stays locked for the whole transaction.
func (r *IdentityRepository) RecordVerifierApproval(ctx context.Context, identityID, verifierID string, at time.Time) (port.ApprovalOutcome, error) {
	if r.pool == nil {
		return port.ApprovalOutcome{}, fmt.Errorf("record verifier approval requires a pool-backed repository")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return port.ApprovalOutcome{}, fmt.Errorf("begin approval tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lockStmt, lockArgs, err := r.builder.
		Select("verification_level", "level_changed_at").
		From("digitalid.identities").
		Where(squirrel.Eq{"id": identityID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return port.ApprovalOutcome{}, fmt.Errorf("build lock identity sql: %w", err)
	}

	var (
		level          int
		levelChangedAt time.Time
	)
	if err := tx.QueryRow(ctx, lockStmt, lockArgs...).Scan(&level, &levelChangedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return port.ApprovalOutcome{}, repository.ErrNotFound
		}
		return port.ApprovalOutcome{}, fmt.Errorf("lock identity: %w", err)
	}

	insertStmt, insertArgs, err := r.builder.Insert("digitalid.verifier_approvals").
		Columns("identity_id", "verifier_id", "created_at").
		Values(identityID, verifierID, at).
		Suffix("ON CONFLICT (identity_id, verifier_id) DO NOTHING").
		ToSql()
	if err != nil {
		return port.ApprovalOutcome{}, fmt.Errorf("build insert approval sql: %w", err)
	}

	ct, err := tx.Exec(ctx, insertStmt, insertArgs...)
	if err != nil {
		return port.ApprovalOutcome{}, fmt.Errorf("insert approval: %w", err)
	}

	countStmt, countArgs, err := r.builder.
		Select("COUNT(*)").
		Column(squirrel.Expr("COALESCE(BOOL_OR(created_at > ?), FALSE)", levelChangedAt)).
		From("digitalid.verifier_approvals").
		Where(squirrel.Eq{"identity_id": identityID}).
		ToSql()
	if err != nil {
		return port.ApprovalOutcome{}, fmt.Errorf("build count approvals sql: %w", err)
	}

	outcome := port.ApprovalOutcome{
		Duplicate: ct.RowsAffected() == 0,
		Level:     domain.VerificationLevel(level),
	}
	if err := tx.QueryRow(ctx, countStmt, countArgs...).Scan(&outcome.DistinctApprovals, &outcome.FreshApproval); err != nil {
		return port.ApprovalOutcome{}, fmt.Errorf("count approvals: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return port.ApprovalOutcome{}, fmt.Errorf("commit approval tx: %w", err)
	}
	return outcome, nil
}

// SetVerificationLevel advances the level only while the stored level is
// below the target. The update is a single conditional statement, so two
// racing callers cannot both advance and the level never moves backwards.
func (r *IdentityRepository) SetVerificationLevel(ctx context.Context, identityID string, target domain.VerificationLevel, at time.Time) (domain.VerificationLevel, error) {
	stmt, args, err := r.builder.Update("digitalid.identities").
		Set("verification_level", int(target)).
		Set("level_changed_at", at).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": identityID}).
		Where(squirrel.Lt{"verification_level": int(target)}).
		Suffix("RETURNING verification_level").
		ToSql()
	if err != nil {
		return domain.LevelUnverified, fmt.Errorf("build update level sql: %w", err)
	}

	var level int
	err = r.exec.QueryRow(ctx, stmt, args...).Scan(&level)
	if err == nil {
		return domain.VerificationLevel(level), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.LevelUnverified, fmt.Errorf("update verification level: %w", err)
	}

	// No row matched: either the identity does not exist or its level is
	// already at or above the target.
	identity, getErr := r.GetByID(ctx, identityID)
	if getErr != nil {
		return domain.LevelUnverified, getErr
	}
	return identity.VerificationLevel, nil
}

// ListApprovals returns the identity's recorded approvals in insertion order.
func (r *IdentityRepository) ListApprovals(ctx context.Context, identityID string) ([]domain.VerifierApproval, error) {
	stmt, args, err := r.builder.
		Select("identity_id", "verifier_id", "created_at").
		From("digitalid.verifier_approvals").
		Where(squirrel.Eq{"identity_id": identityID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select approvals sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select approvals: %w", err)
	}
	defer rows.Close()

	var approvals []domain.VerifierApproval
	for rows.Next() {
		var approval domain.VerifierApproval
		if err := rows.Scan(&approval.IdentityID, &approval.VerifierID, &approval.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		approvals = append(approvals, approval)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approvals: %w", err)
	}
	return approvals, nil
}

var _ port.IdentityRepository = (*IdentityRepository)(nil)
