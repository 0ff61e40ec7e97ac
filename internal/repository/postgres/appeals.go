package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
	"github.com/Adekabang/DigitalID-sub000/internal/core/port"
	"github.com/Adekabang/DigitalID-sub000/internal/repository"
)

// AppealRepository implements port.AppealRepository using PostgreSQL.
type AppealRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAppealRepository wires a PostgreSQL-backed appeal repository.
func NewAppealRepository(pool *pgxpool.Pool) *AppealRepository {
	return &AppealRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *AppealRepository) WithTx(tx pgx.Tx) *AppealRepository {
	if tx == nil {
		return r
	}
	return &AppealRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create persists a new appeal.
func (r *AppealRepository) Create(ctx context.Context, appeal domain.Appeal) error {
	stmt, args, err := r.builder.Insert("digitalid.appeals").
		Columns(
			"id",
			"identity_id",
			"case_id",
			"reason",
			"evidence",
			"status",
			"submitted_at",
			"deadline",
			"approvals",
			"rejections",
		).
		Values(
			appeal.ID,
			appeal.IdentityID,
			appeal.CaseID,
			appeal.Reason,
			appeal.Evidence,
			string(appeal.Status),
			appeal.SubmittedAt,
			appeal.Deadline,
			appeal.Approvals,
			appeal.Rejections,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert appeal sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert appeal: %w", err)
	}
	return nil
}

// Get retrieves an appeal by id.
func (r *AppealRepository) Get(ctx context.Context, appealID string) (*domain.Appeal, error) {
	stmt, args, err := r.appealSelect().
		Where(squirrel.Eq{"id": appealID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select appeal sql: %w", err)
	}

	appeal, err := scanAppeal(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan appeal: %w", err)
	}
	return appeal, nil
}

// LatestByIdentity returns the identity's most recent appeal.
func (r *AppealRepository) LatestByIdentity(ctx context.Context, identityID string) (*domain.Appeal, error) {
	stmt, args, err := r.appealSelect().
		Where(squirrel.Eq{"identity_id": identityID}).
		OrderBy("submitted_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select latest appeal sql: %w", err)
	}

	appeal, err := scanAppeal(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan latest appeal: %w", err)
	}
	return appeal, nil
}

// RecordVote inserts the vote and updates the tallies under a row lock on
// the appeal. Exactly one of two racing reviewers observes the tally that
// completes the quorum; a vote arriving after finalization fails with
// repository.ErrConflict under the same lock.
func (r *AppealRepository) RecordVote(ctx context.Context, vote domain.AppealVote) (port.VoteOutcome, error) {
	if r.pool == nil {
		return port.VoteOutcome{}, fmt.Errorf("record vote requires a pool-backed repository")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return port.VoteOutcome{}, fmt.Errorf("begin vote tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lockStmt, lockArgs, err := r.appealSelect().
		Where(squirrel.Eq{"id": vote.AppealID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return port.VoteOutcome{}, fmt.Errorf("build lock appeal sql: %w", err)
	}

	appeal, err := scanAppeal(tx.QueryRow(ctx, lockStmt, lockArgs...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return port.VoteOutcome{}, repository.ErrNotFound
		}
		return port.VoteOutcome{}, fmt.Errorf("lock appeal: %w", err)
	}

	if appeal.Status != domain.AppealPending {
		return port.VoteOutcome{}, repository.ErrConflict
	}

	insertStmt, insertArgs, err := r.builder.Insert("digitalid.appeal_votes").
		Columns("appeal_id", "reviewer_id", "approve", "created_at").
		Values(vote.AppealID, vote.ReviewerID, vote.Approve, vote.CreatedAt).
		Suffix("ON CONFLICT (appeal_id, reviewer_id) DO NOTHING").
		ToSql()
	if err != nil {
		return port.VoteOutcome{}, fmt.Errorf("build insert vote sql: %w", err)
	}

	ct, err := tx.Exec(ctx, insertStmt, insertArgs...)
	if err != nil {
		return port.VoteOutcome{}, fmt.Errorf("insert vote: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return port.VoteOutcome{Duplicate: true, Appeal: *appeal}, nil
	}

	column := "rejections"
	tallyField := &appeal.Rejections
	if vote.Approve {
		column = "approvals"
		tallyField = &appeal.Approvals
	}
	*tallyField++

	updateStmt, updateArgs, err := r.builder.Update("digitalid.appeals").
		Set(column, squirrel.Expr(column+" + 1")).
		Where(squirrel.Eq{"id": vote.AppealID}).
		ToSql()
	if err != nil {
		return port.VoteOutcome{}, fmt.Errorf("build update tally sql: %w", err)
	}
	if _, err := tx.Exec(ctx, updateStmt, updateArgs...); err != nil {
		return port.VoteOutcome{}, fmt.Errorf("update tally: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return port.VoteOutcome{}, fmt.Errorf("commit vote tx: %w", err)
	}
	return port.VoteOutcome{Appeal: *appeal}, nil
}

// Finalize transitions the appeal to a terminal status only while it is
// still PENDING; a lost race fails with repository.ErrConflict.
func (r *AppealRepository) Finalize(ctx context.Context, appealID string, status domain.AppealStatus) error {
	stmt, args, err := r.builder.Update("digitalid.appeals").
		Set("status", string(status)).
		Where(squirrel.Eq{"id": appealID}).
		Where(squirrel.Eq{"status": string(domain.AppealPending)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build finalize appeal sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("finalize appeal: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (r *AppealRepository) appealSelect() squirrel.SelectBuilder {
	return r.builder.
		Select(
			"id",
			"identity_id",
			"case_id",
			"reason",
			"evidence",
			"status",
			"submitted_at",
			"deadline",
			"approvals",
			"rejections",
		).
		From("digitalid.appeals")
}

func scanAppeal(row pgx.Row) (*domain.Appeal, error) {
	var (
		appeal    domain.Appeal
		rawStatus string
	)
	if err := row.Scan(
		&appeal.ID,
		&appeal.IdentityID,
		&appeal.CaseID,
		&appeal.Reason,
		&appeal.Evidence,
		&rawStatus,
		&appeal.SubmittedAt,
		&appeal.Deadline,
		&appeal.Approvals,
		&appeal.Rejections,
	); err != nil {
		return nil, err
	}
	appeal.Status = domain.AppealStatus(rawStatus)
	return &appeal, nil
}

var _ port.AppealRepository = (*AppealRepository)(nil)
