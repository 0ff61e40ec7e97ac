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

// ModerationRepository implements port.ModerationRepository using PostgreSQL.
// Case ids come from the moderation_cases sequence, so the case log orders
// totally even under concurrent filing.
type ModerationRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewModerationRepository wires a PostgreSQL-backed moderation repository.
func NewModerationRepository(pool *pgxpool.Pool) *ModerationRepository {
	return &ModerationRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *ModerationRepository) WithTx(tx pgx.Tx) *ModerationRepository {
	if tx == nil {
		return r
	}
	return &ModerationRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// FileCase appends a case to the log and returns its assigned id.
func (r *ModerationRepository) FileCase(ctx context.Context, c domain.ModerationCase) (int64, error) {
	stmt, args, err := r.builder.Insert("digitalid.moderation_cases").
		Columns("subject", "action", "reason", "actor", "created_at", "resolved").
		Values(c.Subject, string(c.Action), c.Reason, c.Actor, c.CreatedAt, c.Resolved).
		Suffix("RETURNING case_id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert case sql: %w", err)
	}

	var caseID int64
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&caseID); err != nil {
		return 0, fmt.Errorf("insert case: %w", err)
	}
	return caseID, nil
}

// GetCase retrieves a single case by id.
func (r *ModerationRepository) GetCase(ctx context.Context, caseID int64) (*domain.ModerationCase, error) {
	stmt, args, err := r.caseSelect().
		Where(squirrel.Eq{"case_id": caseID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select case sql: %w", err)
	}

	c, err := scanCase(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan case: %w", err)
	}
	return c, nil
}

// ListCasesBySubject returns the subject's case history, newest first.
func (r *ModerationRepository) ListCasesBySubject(ctx context.Context, subject string) ([]domain.ModerationCase, error) {
	stmt, args, err := r.caseSelect().
		Where(squirrel.Eq{"subject": subject}).
		OrderBy("case_id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select cases sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select cases: %w", err)
	}
	defer rows.Close()

	var cases []domain.ModerationCase
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		cases = append(cases, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return cases, nil
}

// GetRestrictionState retrieves the current restriction for an identity.
// Identities with no row have never been restricted.
func (r *ModerationRepository) GetRestrictionState(ctx context.Context, identityID string) (*domain.RestrictionState, error) {
	stmt, args, err := r.builder.
		Select("identity_id", "state", "updated_at").
		From("digitalid.restriction_states").
		Where(squirrel.Eq{"identity_id": identityID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select restriction sql: %w", err)
	}

	var (
		state    domain.RestrictionState
		rawState string
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&state.IdentityID, &rawState, &state.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan restriction: %w", err)
	}
	state.State = domain.ModerationAction(rawState)
	return &state, nil
}

// SetRestrictionState upserts the identity's current restriction.
func (r *ModerationRepository) SetRestrictionState(ctx context.Context, identityID string, state domain.ModerationAction, at time.Time) error {
	stmt, args, err := r.builder.Insert("digitalid.restriction_states").
		Columns("identity_id", "state", "updated_at").
		Values(identityID, string(state), at).
		Suffix("ON CONFLICT (identity_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert restriction sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert restriction: %w", err)
	}
	return nil
}

func (r *ModerationRepository) caseSelect() squirrel.SelectBuilder {
	return r.builder.
		Select("case_id", "subject", "action", "reason", "actor", "created_at", "resolved").
		From("digitalid.moderation_cases")
}

func scanCase(row pgx.Row) (*domain.ModerationCase, error) {
	var (
		c         domain.ModerationCase
		rawAction string
	)
	if err := row.Scan(
		&c.CaseID,
		&c.Subject,
		&rawAction,
		&c.Reason,
		&c.Actor,
		&c.CreatedAt,
		&c.Resolved,
	); err != nil {
		return nil, err
	}
	c.Action = domain.ModerationAction(rawAction)
	return &c, nil
}

var _ port.ModerationRepository = (*ModerationRepository)(nil)
