package server

import (
	"time"

	"github.com/civicworks/permit-cli/internal/model"
	"github.com/civicworks/permit-cli/internal/portal"
)

// Listing DTOs flatten the hierarchy to what the overview page renders.

type projectSummary struct {
	ID          *int64           `json:"id"`
	Title       string           `json:"title"`
	Sector      string           `json:"sector,omitempty"`
	LastUpdated *time.Time       `json:"lastUpdated,omitempty"`
	Processes   []processSummary `json:"processes"`
}

type processSummary struct {
	ID          *int64              `json:"id"`
	Description string              `json:"description"`
	Status      model.ProcessStatus `json:"status"`
	Events      []eventSummary      `json:"events"`
}

type eventSummary struct {
	ID          *int64        `json:"id,omitempty"`
	Type        string        `json:"type"`
	LastUpdated *time.Time    `json:"lastUpdated,omitempty"`
	Other       model.JSONMap `json:"other,omitempty"`
}

func projectList(tree []portal.ProjectNode) []projectSummary {
	out := make([]projectSummary, 0, len(tree))
	for _, node := range tree {
		summary := projectSummary{
			ID:          node.Row.ID,
			Title:       stringValue(node.Row.Title),
			Sector:      stringValue(node.Row.Sector),
			LastUpdated: node.Row.LastUpdated,
			Processes:   make([]processSummary, 0, len(node.Processes)),
		}
		for _, proc := range node.Processes {
			ps := processSummary{
				ID:          proc.Instance.ID,
				Description: proc.Instance.Description,
				Status:      proc.Status,
				Events:      make([]eventSummary, 0, len(proc.Events)),
			}
			for _, ev := range proc.Events {
				ps.Events = append(ps.Events, eventSummary{
					ID:          ev.ID,
					Type:        ev.Type,
					LastUpdated: ev.LastUpdated,
					Other:       ev.Other,
				})
			}
			summary.Processes = append(summary.Processes, ps)
		}
		out = append(out, summary)
	}
	return out
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
