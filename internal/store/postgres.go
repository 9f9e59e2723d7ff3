package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/civicworks/permit-cli/internal/model"
	"github.com/civicworks/permit-cli/internal/screening"
)

// Pool is the slice of pgxpool.Pool the store uses; pgxmock satisfies it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_draft": `INSERT INTO drafts (id, form, checklist, screening, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"update_draft": `UPDATE drafts SET form = $1, checklist = $2, screening = $3, updated_at = $4 WHERE id = $5`,
	"mark_synced":  `UPDATE drafts SET synced_project_id = $1, updated_at = $2 WHERE id = $3`,
	"get_draft":    `SELECT id, form, checklist, screening, synced_project_id, created_at, updated_at FROM drafts WHERE id = $1`,
	"delete_draft": `DELETE FROM drafts WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS drafts (
	id                TEXT PRIMARY KEY,
	form              JSONB NOT NULL,
	checklist         JSONB,
	screening         JSONB,
	synced_project_id BIGINT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_drafts_synced ON drafts(synced_project_id);
CREATE INDEX IF NOT EXISTS idx_drafts_updated_at ON drafts(updated_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateDraft(ctx context.Context, draft model.Draft) (*model.Draft, error) {
	if draft.ID == "" {
		draft.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	draft.CreatedAt = now
	draft.UpdatedAt = now

	form, checklist, geo, err := encodeDraft(draft)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO drafts (id, form, checklist, screening, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		draft.ID, form, checklist, geo, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert draft")
	}
	return &draft, nil
}

func (s *PostgresStore) UpdateDraft(ctx context.Context, draft model.Draft) error {
	form, checklist, geo, err := encodeDraft(draft)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE drafts SET form = $1, checklist = $2, screening = $3, updated_at = $4 WHERE id = $5`,
		form, checklist, geo, time.Now().UTC(), draft.ID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update draft")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkDraftSynced(ctx context.Context, draftID string, projectID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE drafts SET synced_project_id = $1, updated_at = $2 WHERE id = $3`,
		projectID, time.Now().UTC(), draftID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: mark draft synced")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetDraft(ctx context.Context, draftID string) (*model.Draft, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, form, checklist, screening, synced_project_id, created_at, updated_at FROM drafts WHERE id = $1`,
		draftID,
	)
	draft, err := scanDraft(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get draft")
	}
	return draft, nil
}

func (s *PostgresStore) ListDrafts(ctx context.Context, filter DraftFilter) ([]model.Draft, error) {
	query := `SELECT id, form, checklist, screening, synced_project_id, created_at, updated_at FROM drafts`
	var args []any
	if filter.Synced != nil {
		if *filter.Synced {
			query += ` WHERE synced_project_id IS NOT NULL`
		} else {
			query += ` WHERE synced_project_id IS NULL`
		}
	}
	query += ` ORDER BY updated_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $1`
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			query += ` OFFSET $2`
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list drafts")
	}
	defer rows.Close()

	var drafts []model.Draft
	for rows.Next() {
		draft, err := scanDraft(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan draft")
		}
		drafts = append(drafts, *draft)
	}
	return drafts, eris.Wrap(rows.Err(), "postgres: list drafts")
}

func (s *PostgresStore) DeleteDraft(ctx context.Context, draftID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM drafts WHERE id = $1`, draftID)
	if err != nil {
		return eris.Wrap(err, "postgres: delete draft")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDraft(scan func(...any) error) (*model.Draft, error) {
	var (
		draft          model.Draft
		form           []byte
		checklist, geo []byte
		synced         *int64
	)
	if err := scan(&draft.ID, &form, &checklist, &geo, &synced, &draft.CreatedAt, &draft.UpdatedAt); err != nil {
		return nil, err
	}

	if len(form) > 0 {
		_ = json.Unmarshal(form, &draft.Form)
	}
	if len(checklist) > 0 {
		_ = json.Unmarshal(checklist, &draft.Checklist)
	}
	if len(geo) > 0 {
		var results screening.Results
		if err := json.Unmarshal(geo, &results); err == nil {
			screening.Rehydrate(&results)
			draft.Geo = &results
		}
	}
	draft.SyncedProjectID = synced
	return &draft, nil
}
