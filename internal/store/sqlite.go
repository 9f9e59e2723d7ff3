package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/civicworks/permit-cli/internal/model"
	"github.com/civicworks/permit-cli/internal/screening"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS drafts (
	id                TEXT PRIMARY KEY,
	form              TEXT NOT NULL,
	checklist         TEXT,
	screening         TEXT,
	synced_project_id INTEGER,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_drafts_synced ON drafts(synced_project_id);
CREATE INDEX IF NOT EXISTS idx_drafts_updated_at ON drafts(updated_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateDraft(ctx context.Context, draft model.Draft) (*model.Draft, error) {
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

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO drafts (id, form, checklist, screening, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		draft.ID, form, checklist, geo, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert draft")
	}
	return &draft, nil
}

func (s *SQLiteStore) UpdateDraft(ctx context.Context, draft model.Draft) error {
	form, checklist, geo, err := encodeDraft(draft)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE drafts SET form = ?, checklist = ?, screening = ?, updated_at = ? WHERE id = ?`,
		form, checklist, geo, time.Now().UTC(), draft.ID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update draft")
	}
	return requireRow(res)
}

func (s *SQLiteStore) MarkDraftSynced(ctx context.Context, draftID string, projectID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE drafts SET synced_project_id = ?, updated_at = ? WHERE id = ?`,
		projectID, time.Now().UTC(), draftID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: mark draft synced")
	}
	return requireRow(res)
}

func (s *SQLiteStore) GetDraft(ctx context.Context, draftID string) (*model.Draft, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, form, checklist, screening, synced_project_id, created_at, updated_at FROM drafts WHERE id = ?`,
		draftID,
	)

	var (
		draft               model.Draft
		form                string
		checklist, geo      sql.NullString
		synced              sql.NullInt64
		createdAt, updateAt time.Time
	)
	err := row.Scan(&draft.ID, &form, &checklist, &geo, &synced, &createdAt, &updateAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get draft")
	}

	decodeDraft(&draft, form, checklist.String, geo.String)
	if synced.Valid {
		draft.SyncedProjectID = &synced.Int64
	}
	draft.CreatedAt = createdAt
	draft.UpdatedAt = updateAt
	return &draft, nil
}

func (s *SQLiteStore) ListDrafts(ctx context.Context, filter DraftFilter) ([]model.Draft, error) {
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
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list drafts")
	}
	defer rows.Close()

	var drafts []model.Draft
	for rows.Next() {
		var (
			draft          model.Draft
			form           string
			checklist, geo sql.NullString
			synced         sql.NullInt64
		)
		if err := rows.Scan(&draft.ID, &form, &checklist, &geo, &synced, &draft.CreatedAt, &draft.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan draft")
		}
		decodeDraft(&draft, form, checklist.String, geo.String)
		if synced.Valid {
			draft.SyncedProjectID = &synced.Int64
		}
		drafts = append(drafts, draft)
	}
	return drafts, eris.Wrap(rows.Err(), "sqlite: list drafts")
}

func (s *SQLiteStore) DeleteDraft(ctx context.Context, draftID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, draftID)
	if err != nil {
		return eris.Wrap(err, "sqlite: delete draft")
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// encodeDraft serializes the JSON columns. Checklist and screening are
// nullable; an empty value stays NULL.
func encodeDraft(draft model.Draft) (form string, checklist, geo any, err error) {
	buf, err := json.Marshal(draft.Form)
	if err != nil {
		return "", nil, nil, eris.Wrap(err, "store: marshal form")
	}
	form = string(buf)

	if len(draft.Checklist) > 0 {
		buf, err := json.Marshal(draft.Checklist)
		if err != nil {
			return "", nil, nil, eris.Wrap(err, "store: marshal checklist")
		}
		checklist = string(buf)
	}
	if draft.Geo != nil && draft.Geo.Meaningful() {
		buf, err := json.Marshal(draft.Geo.Sanitized())
		if err != nil {
			return "", nil, nil, eris.Wrap(err, "store: marshal screening")
		}
		geo = string(buf)
	}
	return form, checklist, geo, nil
}

// decodeDraft tolerates malformed stored JSON the same way the backend
// read path does: bad columns decode to empty values, never errors.
func decodeDraft(draft *model.Draft, form, checklist, geo string) {
	if form != "" {
		_ = json.Unmarshal([]byte(form), &draft.Form)
	}
	if checklist != "" {
		_ = json.Unmarshal([]byte(checklist), &draft.Checklist)
	}
	if geo != "" {
		var results screening.Results
		if err := json.Unmarshal([]byte(geo), &results); err == nil {
			screening.Rehydrate(&results)
			draft.Geo = &results
		}
	}
}
