// Package store persists local intake drafts. Drafts live outside the
// backend so sponsors can assemble a project before anything is written
// remotely; the CLI and server both read and write through this interface.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/civicworks/permit-cli/internal/model"
)

// DraftFilter specifies criteria for listing drafts.
type DraftFilter struct {
	// Synced filters on whether the draft has a backend project id.
	Synced *bool `json:"synced,omitempty"`
	Limit  int   `json:"limit,omitempty"`
	Offset int   `json:"offset,omitempty"`
}

// Store defines the persistence interface for intake drafts.
type Store interface {
	CreateDraft(ctx context.Context, draft model.Draft) (*model.Draft, error)
	UpdateDraft(ctx context.Context, draft model.Draft) error
	MarkDraftSynced(ctx context.Context, draftID string, projectID int64) error
	GetDraft(ctx context.Context, draftID string) (*model.Draft, error)
	ListDrafts(ctx context.Context, filter DraftFilter) ([]model.Draft, error)
	DeleteDraft(ctx context.Context, draftID string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned when a draft id has no stored row.
var ErrNotFound = eris.New("store: draft not found")
