package model

import (
	"time"

	"github.com/civicworks/permit-cli/internal/screening"
)

// Draft is a locally stored working copy of an intake form, kept until the
// sponsor pushes it to the backend. SyncedProjectID links a draft to the
// server-side project row once the first snapshot save assigns an id.
type Draft struct {
	ID              string             `json:"id"`
	Form            ProjectForm        `json:"form"`
	Checklist       []ChecklistItem    `json:"checklist,omitempty"`
	Geo             *screening.Results `json:"geo,omitempty"`
	SyncedProjectID *int64             `json:"syncedProjectId,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// Synced reports whether the draft has been pushed to the backend.
func (d *Draft) Synced() bool {
	return d.SyncedProjectID != nil
}
