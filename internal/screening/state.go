// Package screening tracks the state of the two federal geospatial screening
// services (NEPAssist and IPaC) for a project: running them, summarizing
// their raw output, and shaping the state for persistence.
package screening

import (
	"encoding/json"
	"time"
)

// Service identifiers, used as keys in persisted state and payloads.
const (
	ServiceNEPAssist = "nepassist"
	ServiceIPaC      = "ipac"
)

// Status is the lifecycle tag of one screening service call.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Meta records where and when a screening result came from.
type Meta struct {
	RanAt    *time.Time `json:"ranAt,omitempty"`
	Endpoint string     `json:"endpoint,omitempty"`
}

// ServiceState is the full state of one service: a status tag plus whichever
// of summary/raw/error/meta apply. Raw is the service's verbatim response and
// is excluded from persistence; Summary is derived from it.
type ServiceState struct {
	Status  Status          `json:"status"`
	Summary string          `json:"summary,omitempty"`
	Raw     json.RawMessage `json:"raw,omitempty"`
	Error   string          `json:"error,omitempty"`
	Meta    *Meta           `json:"meta,omitempty"`
}

// Results bundles both services plus run-level context.
type Results struct {
	NEPAssist ServiceState `json:"nepassist"`
	IPaC      ServiceState `json:"ipac"`
	LastRunAt *time.Time   `json:"lastRunAt,omitempty"`
	Messages  []string     `json:"messages,omitempty"`
}

// NewResults returns both services in the idle state.
func NewResults() Results {
	return Results{
		NEPAssist: ServiceState{Status: StatusIdle},
		IPaC:      ServiceState{Status: StatusIdle},
	}
}

// Meaningful reports whether the results carry anything worth persisting:
// a recorded run, messages, a non-idle service, or a summary/error on either
// service. Idle-everywhere state is noise and is not written.
func (r Results) Meaningful() bool {
	if r.LastRunAt != nil || len(r.Messages) > 0 {
		return true
	}
	for _, s := range []ServiceState{r.NEPAssist, r.IPaC} {
		if s.Status != StatusIdle && s.Status != "" {
			return true
		}
		if s.Summary != "" || s.Error != "" {
			return true
		}
	}
	return false
}

// Sanitized returns a copy safe to embed in the project row: raw service
// responses are dropped, everything else is kept.
func (r Results) Sanitized() Results {
	out := r
	out.NEPAssist.Raw = nil
	out.IPaC.Raw = nil
	return out
}

// Rehydrate fills gaps in state loaded from storage. Rows written by earlier
// schema versions may carry raw responses without a stored summary; the
// summary is recomputed from raw with the same functions used live. A state
// with content but no status tag is normalized to success.
func Rehydrate(r *Results) {
	rehydrateService(&r.NEPAssist, SummarizeNEPAssist)
	rehydrateService(&r.IPaC, SummarizeIPaC)
}

func rehydrateService(s *ServiceState, summarize func(json.RawMessage) string) {
	if s.Summary == "" && len(s.Raw) > 0 {
		s.Summary = summarize(s.Raw)
	}
	if s.Status == "" {
		if s.Error != "" {
			s.Status = StatusError
		} else if s.Summary != "" || len(s.Raw) > 0 {
			s.Status = StatusSuccess
		} else {
			s.Status = StatusIdle
		}
	}
}
