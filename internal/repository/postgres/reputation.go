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

// ReputationRepository implements port.ReputationRepository using PostgreSQL.
type ReputationRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewReputationRepository wires a PostgreSQL-backed reputation repository.
func NewReputationRepository(pool *pgxpool.Pool) *ReputationRepository {
	return &ReputationRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *ReputationRepository) WithTx(tx pgx.Tx) *ReputationRepository {
	if tx == nil {
		return r
	}
	return &ReputationRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Initialize creates the score record exactly once.
func (r *ReputationRepository) Initialize(ctx context.Context, identityID string, at time.Time) error {
	sql, args, err := r.builder.Insert("digitalid.reputation_scores").
		Columns("identity_id", "score", "is_banned", "last_update").
		Values(identityID, domain.InitialScore, false, at).
		Suffix("ON CONFLICT (identity_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert score sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("insert score: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrConflict
	}
	return nil
}

// Get retrieves the stored score record.
func (r *ReputationRepository) Get(ctx context.Context, identityID string) (*domain.ReputationScore, error) {
	stmt, args, err := r.builder.
		Select("identity_id", "score", "is_banned", "last_update").
		From("digitalid.reputation_scores").
		Where(squirrel.Eq{"identity_id": identityID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select score sql: %w", err)
	}

	var score domain.ReputationScore
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&score.IdentityID,
		&score.Score,
		&score.IsBanned,
		&score.LastUpdate,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan score: %w", err)
	}
	return &score, nil
}

// ApplyDelta materializes decay, applies the signed delta with clamping,
// and recomputes the ban flag under a row lock, so racing deltas serialize
// and each caller observes one exact before/after pair.
func (r *ReputationRepository) ApplyDelta(ctx context.Context, identityID string, points int, at time.Time) (port.DeltaOutcome, error) {
	if r.pool == nil {
		return port.DeltaOutcome{}, fmt.Errorf("apply delta requires a pool-backed repository")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return port.DeltaOutcome{}, fmt.Errorf("begin delta tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lockStmt, lockArgs, err := r.builder.
		Select("score", "is_banned", "last_update").
		From("digitalid.reputation_scores").
		Where(squirrel.Eq{"identity_id": identityID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return port.DeltaOutcome{}, fmt.Errorf("build lock score sql: %w", err)
	}

	var (
		stored     int
		wasBanned  bool
		lastUpdate time.Time
	)
	if err := tx.QueryRow(ctx, lockStmt, lockArgs...).Scan(&stored, &wasBanned, &lastUpdate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return port.DeltaOutcome{}, repository.ErrNotFound
		}
		return port.DeltaOutcome{}, fmt.Errorf("lock score: %w", err)
	}

	decayed := domain.DecayedScore(stored, lastUpdate, at)
	newScore := domain.ClampScore(decayed + points)
	isBanned := newScore < domain.BanThreshold

	updateStmt, updateArgs, err := r.builder.Update("digitalid.reputation_scores").
		Set("score", newScore).
		Set("is_banned", isBanned).
		Set("last_update", at).
		Where(squirrel.Eq{"identity_id": identityID}).
		ToSql()
	if err != nil {
		return port.DeltaOutcome{}, fmt.Errorf("build update score sql: %w", err)
	}
	if _, err := tx.Exec(ctx, updateStmt, updateArgs...); err != nil {
		return port.DeltaOutcome{}, fmt.Errorf("update score: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return port.DeltaOutcome{}, fmt.Errorf("commit delta tx: %w", err)
	}

	return port.DeltaOutcome{
		OldScore:  decayed,
		NewScore:  newScore,
		WasBanned: wasBanned,
		IsBanned:  isBanned,
	}, nil
}

var _ port.ReputationRepository = (*ReputationRepository)(nil)
