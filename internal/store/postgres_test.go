package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicworks/permit-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetDraft_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, form, checklist, screening, synced_project_id, created_at, updated_at FROM drafts WHERE id = \$1`).
		WithArgs("missing-draft").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetDraft(context.Background(), "missing-draft")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDraft(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	synced := int64(42)
	mock.ExpectQuery(`SELECT id, form, checklist, screening, synced_project_id, created_at, updated_at FROM drafts WHERE id = \$1`).
		WithArgs("draft-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "form", "checklist", "screening", "synced_project_id", "created_at", "updated_at"}).
			AddRow("draft-1", []byte(`{"title":"River Valley Line"}`), []byte(`[{"label":"CWA 404","completed":true}]`), []byte(nil), &synced, now, now))

	draft, err := s.GetDraft(context.Background(), "draft-1")
	require.NoError(t, err)
	assert.Equal(t, "River Valley Line", draft.Form.Title)
	require.Len(t, draft.Checklist, 1)
	assert.True(t, draft.Synced())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDraft_MalformedColumns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, form, checklist, screening, synced_project_id, created_at, updated_at FROM drafts WHERE id = \$1`).
		WithArgs("draft-2").
		WillReturnRows(pgxmock.NewRows([]string{"id", "form", "checklist", "screening", "synced_project_id", "created_at", "updated_at"}).
			AddRow("draft-2", []byte(`{broken`), []byte(`also broken`), []byte(`nope`), (*int64)(nil), now, now))

	// Malformed stored JSON degrades to empty fields, never an error.
	draft, err := s.GetDraft(context.Background(), "draft-2")
	require.NoError(t, err)
	assert.Empty(t, draft.Form.Title)
	assert.Empty(t, draft.Checklist)
	assert.Nil(t, draft.Geo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateDraft(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO drafts`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	created, err := s.CreateDraft(context.Background(), model.Draft{Form: model.ProjectForm{Title: "New"}})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateDraft_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE drafts SET form`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateDraft(context.Background(), model.Draft{ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkDraftSynced(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE drafts SET synced_project_id`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.MarkDraftSynced(context.Background(), "draft-1", 42)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteDraft(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM drafts WHERE id = \$1`).
		WithArgs("draft-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.DeleteDraft(context.Background(), "draft-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDrafts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, form, checklist, screening, synced_project_id, created_at, updated_at FROM drafts ORDER BY updated_at DESC`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "form", "checklist", "screening", "synced_project_id", "created_at", "updated_at"}).
			AddRow("a", []byte(`{"title":"A"}`), []byte(nil), []byte(nil), (*int64)(nil), now, now).
			AddRow("b", []byte(`{"title":"B"}`), []byte(nil), []byte(nil), (*int64)(nil), now, now))

	drafts, err := s.ListDrafts(context.Background(), DraftFilter{})
	require.NoError(t, err)
	assert.Len(t, drafts, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS drafts`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
