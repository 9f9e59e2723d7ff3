package payload

import (
	"encoding/json"
	"strings"

	"github.com/civicworks/permit-cli/internal/model"
	"github.com/civicworks/permit-cli/internal/record"
	"github.com/civicworks/permit-cli/internal/screening"
)

// ApplyToState replays one stored evaluation payload onto form, screening,
// and checklist state. Replays layer: a field already holding a value is
// never clobbered, and sources that are absent or ill-typed are skipped, so
// payloads can be applied in any order over a base row. Unknown titles are
// ignored for forward compatibility with catalog elements this client does
// not interpret.
func ApplyToState(title string, data map[string]any, form *model.ProjectForm, geo *screening.Results, checklist *[]model.ChecklistItem) {
	key, ok := model.ElementKeyForTitle(title)
	if !ok {
		return
	}

	switch key {
	case model.ElementProjectDetails:
		applyProjectDetails(data, form, geo)
	case model.ElementNEPAssistConfirmation:
		if geo != nil {
			applyServiceConfirmation(data, &geo.NEPAssist, screening.SummarizeNEPAssist)
		}
	case model.ElementIPaCConfirmation:
		if geo != nil {
			applyServiceConfirmation(data, &geo.IPaC, screening.SummarizeIPaC)
		}
	case model.ElementPermitNotes:
		applyPermitNotes(data, form, checklist)
	case model.ElementCEReferences:
		applyCEReferences(data, form)
	case model.ElementConditions:
		applyConditions(data, form)
	case model.ElementResourceNotes:
		applyResourceNotes(data, form)
	}
}

func applyProjectDetails(data map[string]any, form *model.ProjectForm, geo *screening.Results) {
	// The payload embeds row-shaped fields; reuse the row-to-form mapping
	// rather than duplicating its tolerance rules. "id" and "process" are
	// bookkeeping: "id" holds the decision element id (or the title
	// fallback), never the project id, and must not reach the row decode.
	fields := make(map[string]any, len(data))
	for k, v := range data {
		if k == "process" || k == "id" {
			continue
		}
		fields[k] = v
	}

	buf, err := json.Marshal(fields)
	if err != nil {
		return
	}
	var row model.ProjectRow
	if err := json.Unmarshal(buf, &row); err != nil {
		return
	}
	record.ApplyRowToForm(&row, form, geo)
}

func applyServiceConfirmation(data map[string]any, state *screening.ServiceState, summarize func(json.RawMessage) string) {
	if raw, ok := data["raw"]; ok && raw != nil {
		if buf, err := json.Marshal(raw); err == nil {
			state.Raw = buf
		}
	}
	if s, ok := data["summary"].(string); ok && s != "" {
		state.Summary = s
	}
	if state.Summary == "" && len(state.Raw) > 0 {
		state.Summary = summarize(state.Raw)
	}
	if state.Status == "" || state.Status == screening.StatusIdle {
		if state.Summary != "" || len(state.Raw) > 0 {
			state.Status = screening.StatusSuccess
		}
	}
}

func applyPermitNotes(data map[string]any, form *model.ProjectForm, checklist *[]model.ChecklistItem) {
	if form != nil && form.Other == "" {
		if notes, ok := data["notes"].(string); ok && notes != "" {
			form.Other = notes
		}
	}
	if checklist == nil || len(*checklist) > 0 {
		return
	}

	permits, ok := data["permits"].([]any)
	if !ok {
		return
	}
	items := make([]model.ChecklistItem, 0, len(permits))
	for _, p := range permits {
		entry, ok := p.(map[string]any)
		if !ok {
			continue
		}
		item := model.ChecklistItem{}
		if label, ok := entry["label"].(string); ok {
			item.Label = label
		}
		if completed, ok := entry["completed"].(bool); ok {
			item.Completed = completed
		}
		if notes, ok := entry["notes"].(string); ok {
			item.Notes = notes
		}
		if source, ok := entry["source"].(string); ok {
			item.Source = source
		}
		if checklistItemMeaningful(item) {
			items = append(items, item)
		}
	}
	if len(items) > 0 {
		*checklist = items
	}
}

func applyCEReferences(data map[string]any, form *model.ProjectForm) {
	if form == nil || form.NEPACategoricalExclusionCode != "" {
		return
	}
	if refs := stringSlice(data["references"]); len(refs) > 0 {
		form.NEPACategoricalExclusionCode = strings.Join(refs, "\n")
	}
}

func applyConditions(data map[string]any, form *model.ProjectForm) {
	if form == nil {
		return
	}
	if form.NEPAConformanceConditions == "" {
		if conditions := stringSlice(data["conditions"]); len(conditions) > 0 {
			form.NEPAConformanceConditions = strings.Join(conditions, "\n")
		}
	}
	if form.NEPAExtraordinaryCircumstances == "" {
		if notes, ok := data["notes"].(string); ok && notes != "" {
			form.NEPAExtraordinaryCircumstances = notes
		}
	}
}

func applyResourceNotes(data map[string]any, form *model.ProjectForm) {
	if form == nil || form.NEPAExtraordinaryCircumstances != "" {
		return
	}
	if notes, ok := data["notes"].(string); ok && notes != "" {
		form.NEPAExtraordinaryCircumstances = notes
	}
}

func stringSlice(v any) []string {
	if ss, ok := v.([]string); ok {
		return ss
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
