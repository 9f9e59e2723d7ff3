package model

import (
	"time"
)

// PreScreeningProcessModelID is the fixed server-side identifier of the
// pre-screening process model. There is exactly one process model in play.
const PreScreeningProcessModelID int64 = 2

// EventType is the fixed case-event vocabulary.
type EventType string

const (
	EventProjectInitiated      EventType = "Project initiated"
	EventPreScreeningInitiated EventType = "Pre-screening initiated"
	EventPreScreeningComplete  EventType = "Pre-screening complete"
)

// ProcessStatus is derived from case-event timestamps for display; it is
// never stored.
type ProcessStatus string

const (
	ProcessStatusComplete   ProcessStatus = "complete"
	ProcessStatusInProgress ProcessStatus = "in_progress"
	ProcessStatusCaution    ProcessStatus = "caution"
)

// ProcessInstance is one workflow run of a process model against a project.
type ProcessInstance struct {
	ID                 *int64     `json:"id,omitempty"`
	ParentProjectID    int64      `json:"parent_project_id"`
	Description        string     `json:"description,omitempty"`
	ProcessModel       int64      `json:"process_model"`
	DataSourceSystem   string     `json:"data_source_system"`
	LastUpdated        *time.Time `json:"last_updated,omitempty"`
	RetrievedTimestamp *time.Time `json:"retrieved_timestamp,omitempty"`
}

// ProcessDescription derives the instance description from the project title.
func ProcessDescription(title string) string {
	if title == "" {
		return "Pre-Screening"
	}
	return title + " Pre-Screening"
}

// DecisionElement is a server-catalogued named slot within a process model.
// The client only ever reads these, to resolve titles to numeric ids.
type DecisionElement struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// DecisionPayload is the evaluation data submitted for one decision element
// within one process instance. Uniqueness key is (process,
// process_decision_element).
type DecisionPayload struct {
	ID *int64 `json:"id,omitempty"`
	// Process is the owning process instance id.
	Process int64 `json:"process"`
	// ProcessDecisionElement is nil when the catalog lookup failed; the
	// payload then self-describes via a title inside EvaluationData.
	ProcessDecisionElement *int64     `json:"process_decision_element,omitempty"`
	EvaluationData         JSONMap    `json:"evaluation_data,omitempty"`
	DataSourceSystem       string     `json:"data_source_system"`
	LastUpdated            *time.Time `json:"last_updated,omitempty"`
	RetrievedTimestamp     *time.Time `json:"retrieved_timestamp,omitempty"`
}

// CaseEvent is an immutable, typed timeline entry under a process instance.
type CaseEvent struct {
	ID                 *int64     `json:"id,omitempty"`
	ParentProcessID    int64      `json:"parent_process_id"`
	Type               string     `json:"type"`
	Other              JSONMap    `json:"other,omitempty"`
	DataSourceSystem   string     `json:"data_source_system"`
	LastUpdated        *time.Time `json:"last_updated,omitempty"`
	RetrievedTimestamp *time.Time `json:"retrieved_timestamp,omitempty"`
}
