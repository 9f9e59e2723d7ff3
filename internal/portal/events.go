package portal

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/civicworks/permit-cli/internal/model"
	"github.com/civicworks/permit-cli/pkg/postgrest"
)

// staleAfter is how long a process may sit without activity before its
// derived status drops to caution.
const staleAfter = 30 * 24 * time.Hour

// ensureCaseEvent creates an event of the given type under the process
// unless one already exists. Existing events are left untouched, so their
// timestamps record the first occurrence.
func (s *Service) ensureCaseEvent(ctx context.Context, processID int64, eventType model.EventType, other model.JSONMap) error {
	q := postgrest.Query{
		Filters: []postgrest.Filter{
			postgrest.Eq("parent_process_id", processID),
			postgrest.Eq("type", string(eventType)),
			postgrest.Eq("data_source_system", model.DataSourceSystem),
		},
		Limit: 1,
	}
	var existing []model.CaseEvent
	if err := s.rest.Select(ctx, tableCaseEvent, q, &existing); err != nil {
		return eris.Wrapf(err, "portal: look up %q event", string(eventType))
	}
	if len(existing) > 0 {
		return nil
	}
	return s.appendCaseEvent(ctx, processID, eventType, other)
}

// appendCaseEvent unconditionally inserts an event. Snapshot saves use
// this directly so every save leaves its own "Project initiated" entry.
func (s *Service) appendCaseEvent(ctx context.Context, processID int64, eventType model.EventType, other model.JSONMap) error {
	ts := s.now().UTC()
	event := model.CaseEvent{
		ParentProcessID:    processID,
		Type:               string(eventType),
		Other:              other,
		DataSourceSystem:   model.DataSourceSystem,
		LastUpdated:        &ts,
		RetrievedTimestamp: &ts,
	}
	if err := s.rest.Insert(ctx, tableCaseEvent, []model.CaseEvent{event}, nil); err != nil {
		return eris.Wrapf(err, "portal: record %q event", string(eventType))
	}
	return nil
}

// DeriveProcessStatus reads a display status off the event timeline. A
// completion event wins outright; otherwise an empty or stale timeline is
// caution and anything recent is in progress. Status is never stored.
func DeriveProcessStatus(events []model.CaseEvent, now time.Time) model.ProcessStatus {
	var newest *time.Time
	for i := range events {
		if events[i].Type == string(model.EventPreScreeningComplete) {
			return model.ProcessStatusComplete
		}
		if ts := events[i].LastUpdated; ts != nil {
			if newest == nil || ts.After(*newest) {
				newest = ts
			}
		}
	}
	if newest == nil || now.Sub(*newest) > staleAfter {
		return model.ProcessStatusCaution
	}
	return model.ProcessStatusInProgress
}
