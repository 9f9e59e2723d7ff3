package payload

import (
	"bytes"
	"encoding/json"

	"github.com/civicworks/permit-cli/internal/model"
)

// bookkeepingKeys are excluded when judging whether a payload carries
// content: they are always present and say nothing about the user's work.
var bookkeepingKeys = map[string]bool{
	"id":      true,
	"process": true,
}

// Evaluation summarizes a payload batch's completeness.
type Evaluation struct {
	Total           int
	CompletedTitles []string
	IsComplete      bool
}

// Evaluate judges each record completed when its evaluation data, excluding
// bookkeeping keys, contains at least one meaningful leaf value. IsComplete
// holds only when every one of the seven builders produced a completed
// record; it is the sole gate for the "Pre-screening complete" event.
func Evaluate(records []Record) Evaluation {
	eval := Evaluation{Total: len(records)}

	completed := map[string]bool{}
	for _, rec := range records {
		if recordCompleted(rec.Payload.EvaluationData) {
			completed[rec.Title] = true
			eval.CompletedTitles = append(eval.CompletedTitles, rec.Title)
		}
	}

	eval.IsComplete = true
	for _, key := range model.ElementOrder {
		if !completed[key.Title()] {
			eval.IsComplete = false
			break
		}
	}
	return eval
}

func recordCompleted(data map[string]any) bool {
	for k, v := range data {
		if bookkeepingKeys[k] {
			continue
		}
		if hasMeaningfulLeaf(v) {
			return true
		}
	}
	return false
}

// hasMeaningfulLeaf walks a decoded JSON value looking for a leaf that is
// not empty, null, or false. Numbers count, including zero: a latitude of 0
// is data.
func hasMeaningfulLeaf(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case map[string]any:
		for _, child := range val {
			if hasMeaningfulLeaf(child) {
				return true
			}
		}
		return false
	case []any:
		for _, child := range val {
			if hasMeaningfulLeaf(child) {
				return true
			}
		}
		return false
	case []string:
		for _, child := range val {
			if child != "" {
				return true
			}
		}
		return false
	case []map[string]any:
		for _, child := range val {
			if hasMeaningfulLeaf(child) {
				return true
			}
		}
		return false
	case json.RawMessage:
		trimmed := string(bytes.TrimSpace(val))
		return trimmed != "" && trimmed != "null"
	default:
		// Numbers and anything else concrete.
		return true
	}
}
