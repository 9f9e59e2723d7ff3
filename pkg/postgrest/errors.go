package postgrest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// APIError is returned when the backend responds with a non-2xx status.
// Detail holds the human-readable message extracted from the response body;
// Body keeps the raw text for diagnostics.
type APIError struct {
	StatusCode int
	Detail     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("postgrest: HTTP %d: %s", e.StatusCode, e.Detail)
}

// extractDetail pulls the most useful message out of an error body:
// the JSON "message" field when present, else the compacted JSON, else the
// raw text.
func extractDetail(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "(empty response body)"
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		if msg, ok := obj["message"].(string); ok && msg != "" {
			return msg
		}
		if compact, err := json.Marshal(obj); err == nil {
			return string(compact)
		}
	}
	return trimmed
}

// IsMissingConflictConstraint reports whether err is the backend rejecting an
// on_conflict upsert because no matching unique constraint exists. PostgREST
// exposes no error code for this, so classification is by message text; keep
// every caller going through this one function so the heuristic stays easy to
// adjust.
func IsMissingConflictConstraint(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	msg := strings.ToLower(apiErr.Detail + " " + apiErr.Body)
	if strings.Contains(msg, "no unique or exclusion constraint") {
		return true
	}
	return strings.Contains(msg, "on conflict") && strings.Contains(msg, "unique constraint")
}
