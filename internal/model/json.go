package model

import (
	"encoding/json"

	"github.com/civicworks/permit-cli/internal/screening"
)

// JSONMap is a JSON object column decoded defensively. Historical rows were
// written by earlier schema versions, so anything unparseable is swallowed
// rather than failing the whole row: non-object values are wrapped under
// "value", invalid JSON decodes to nil.
type JSONMap map[string]any

// UnmarshalJSON implements json.Unmarshaler.
func (m *JSONMap) UnmarshalJSON(data []byte) error {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err == nil {
		*m = obj
		return nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err == nil && v != nil {
		*m = map[string]any{"value": v}
		return nil
	}

	*m = nil
	return nil
}

// UnmarshalJSON decodes the project row's "other" bag defensively: a strict
// decode first, then a field-by-field salvage, then give up and leave the
// bag empty. Never an error.
func (o *OtherData) UnmarshalJSON(data []byte) error {
	type alias OtherData
	var strict alias
	if err := json.Unmarshal(data, &strict); err == nil {
		*o = OtherData(strict)
		return nil
	}

	var loose map[string]json.RawMessage
	if err := json.Unmarshal(data, &loose); err != nil {
		*o = OtherData{}
		return nil
	}

	var out OtherData
	if raw, ok := loose["notes"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			out.Notes = &s
		}
	}
	if raw, ok := loose["invalidLocationObject"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			out.InvalidLocationObject = &s
		}
	}
	if raw, ok := loose["geospatial"]; ok {
		var g screening.Results
		if json.Unmarshal(raw, &g) == nil {
			out.Geospatial = &g
		}
	}
	*o = out
	return nil
}
