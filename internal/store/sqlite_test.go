package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicworks/permit-cli/internal/model"
	"github.com/civicworks/permit-cli/internal/screening"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "drafts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleDraft() model.Draft {
	return model.Draft{
		Form: model.ProjectForm{
			Title:      "River Valley Line",
			LeadAgency: "DOE",
		},
		Checklist: []model.ChecklistItem{
			{Label: "CWA 404", Completed: true},
		},
	}
}

func TestSQLiteDraftLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	created, err := s.CreateDraft(ctx, sampleDraft())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.Synced())

	got, err := s.GetDraft(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "River Valley Line", got.Form.Title)
	require.Len(t, got.Checklist, 1)
	assert.True(t, got.Checklist[0].Completed)

	got.Form.Sponsor = "River Valley Power"
	require.NoError(t, s.UpdateDraft(ctx, *got))

	got, err = s.GetDraft(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "River Valley Power", got.Form.Sponsor)

	require.NoError(t, s.MarkDraftSynced(ctx, created.ID, 42))
	got, err = s.GetDraft(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, got.Synced())
	assert.Equal(t, int64(42), *got.SyncedProjectID)

	require.NoError(t, s.DeleteDraft(ctx, created.ID))
	_, err = s.GetDraft(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteScreeningPersistence(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	ranAt := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	draft := sampleDraft()
	draft.Geo = &screening.Results{
		NEPAssist: screening.ServiceState{Status: screening.StatusSuccess, Summary: "2 layers"},
		IPaC:      screening.ServiceState{Status: screening.StatusError, Error: "timeout"},
		LastRunAt: &ranAt,
	}

	created, err := s.CreateDraft(ctx, draft)
	require.NoError(t, err)

	got, err := s.GetDraft(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Geo)
	assert.Equal(t, screening.StatusSuccess, got.Geo.NEPAssist.Status)
	assert.Equal(t, "timeout", got.Geo.IPaC.Error)
}

func TestSQLiteIdleScreeningNotStored(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	idle := screening.NewResults()
	draft := sampleDraft()
	draft.Geo = &idle

	created, err := s.CreateDraft(ctx, draft)
	require.NoError(t, err)

	got, err := s.GetDraft(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Geo)
}

func TestSQLiteListDrafts(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	first, err := s.CreateDraft(ctx, sampleDraft())
	require.NoError(t, err)
	second := sampleDraft()
	second.Form.Title = "Second Project"
	_, err = s.CreateDraft(ctx, second)
	require.NoError(t, err)

	require.NoError(t, s.MarkDraftSynced(ctx, first.ID, 7))

	all, err := s.ListDrafts(ctx, DraftFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	synced := true
	only, err := s.ListDrafts(ctx, DraftFilter{Synced: &synced})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, first.ID, only[0].ID)

	unsynced := false
	only, err = s.ListDrafts(ctx, DraftFilter{Synced: &unsynced})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "Second Project", only[0].Form.Title)

	limited, err := s.ListDrafts(ctx, DraftFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteUpdateMissingDraft(t *testing.T) {
	s := newTestSQLite(t)

	err := s.UpdateDraft(context.Background(), model.Draft{ID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.MarkDraftSynced(context.Background(), "nope", 1)
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.DeleteDraft(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
