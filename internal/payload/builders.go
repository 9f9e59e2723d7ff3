// Package payload builds and replays the per-decision-element evaluation
// payloads submitted during pre-screening. Each of the seven elements has a
// builder producing its JSON shape from current portal state, an inverse
// that layers a stored payload back onto that state, and a completeness
// evaluation gating the "Pre-screening complete" event.
package payload

import (
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/civicworks/permit-cli/internal/model"
	"github.com/civicworks/permit-cli/internal/screening"
)

// Context bundles the state builders draw from: the project already in row
// shape, live screening results, the permitting checklist, and the raw form.
type Context struct {
	Row       model.ProjectRow
	Geo       screening.Results
	Checklist []model.ChecklistItem
	Form      model.ProjectForm
}

// Builder produces one element's evaluation data.
type Builder struct {
	Key   model.ElementKey
	Build func(ctx Context) map[string]any
}

// Builders is the fixed, ordered list. Record output follows this
// declaration order.
var Builders = []Builder{
	{Key: model.ElementProjectDetails, Build: buildProjectDetails},
	{Key: model.ElementNEPAssistConfirmation, Build: buildNEPAssistConfirmation},
	{Key: model.ElementIPaCConfirmation, Build: buildIPaCConfirmation},
	{Key: model.ElementPermitNotes, Build: buildPermitNotes},
	{Key: model.ElementCEReferences, Build: buildCEReferences},
	{Key: model.ElementConditions, Build: buildConditions},
	{Key: model.ElementResourceNotes, Build: buildResourceNotes},
}

// projectDetailAllowList names the row columns that may appear in a
// project-details payload. Everything else (system columns, the other bag)
// stays out of submitted payloads.
var projectDetailAllowList = map[string]bool{
	"id":                               true,
	"title":                            true,
	"description":                      true,
	"sector":                           true,
	"lead_agency":                      true,
	"participating_agencies":           true,
	"sponsor":                          true,
	"funding":                          true,
	"location_text":                    true,
	"location_lat":                     true,
	"location_lon":                     true,
	"location_object":                  true,
	"sponsor_contact":                  true,
	"nepa_categorical_exclusion_code":  true,
	"nepa_conformance_conditions":      true,
	"nepa_extraordinary_circumstances": true,
}

func buildProjectDetails(ctx Context) map[string]any {
	out := map[string]any{}

	buf, err := json.Marshal(ctx.Row)
	if err != nil {
		return out
	}
	var fields map[string]any
	if err := json.Unmarshal(buf, &fields); err != nil {
		return out
	}
	for k, v := range fields {
		if projectDetailAllowList[k] {
			out[k] = v
		}
	}
	return out
}

func buildNEPAssistConfirmation(ctx Context) map[string]any {
	return serviceConfirmation(ctx.Geo.NEPAssist)
}

func buildIPaCConfirmation(ctx Context) map[string]any {
	return serviceConfirmation(ctx.Geo.IPaC)
}

func serviceConfirmation(s screening.ServiceState) map[string]any {
	out := map[string]any{"raw": nil, "summary": nil}
	if len(s.Raw) > 0 {
		out["raw"] = json.RawMessage(s.Raw)
	}
	if s.Summary != "" {
		out["summary"] = s.Summary
	}
	return out
}

func buildPermitNotes(ctx Context) map[string]any {
	permits := make([]any, 0, len(ctx.Checklist))
	for _, item := range ctx.Checklist {
		if !checklistItemMeaningful(item) {
			continue
		}
		entry := map[string]any{
			"label":     item.Label,
			"completed": item.Completed,
		}
		if item.Notes != "" {
			entry["notes"] = item.Notes
		}
		if item.Source != "" {
			entry["source"] = item.Source
		}
		permits = append(permits, entry)
	}

	return map[string]any{
		"permits": permits,
		"notes":   nullableString(ctx.Form.Other),
	}
}

func checklistItemMeaningful(item model.ChecklistItem) bool {
	return strings.TrimSpace(item.Label) != "" ||
		strings.TrimSpace(item.Notes) != "" ||
		strings.TrimSpace(item.Source) != "" ||
		item.Completed
}

func buildCEReferences(ctx Context) map[string]any {
	rationaleParts := []string{}
	for _, part := range []string{ctx.Form.NEPAExtraordinaryCircumstances, ctx.Form.NEPAConformanceConditions} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			rationaleParts = append(rationaleParts, trimmed)
		}
	}
	var rationale any
	if len(rationaleParts) > 0 {
		rationale = strings.Join(rationaleParts, "\n\n")
	}

	return map[string]any{
		"references": SplitEntries(ctx.Form.NEPACategoricalExclusionCode),
		"rationale":  rationale,
	}
}

func buildConditions(ctx Context) map[string]any {
	return map[string]any{
		"conditions": SplitEntries(ctx.Form.NEPAConformanceConditions),
		"notes":      nullableString(ctx.Form.NEPAExtraordinaryCircumstances),
	}
}

func buildResourceNotes(ctx Context) map[string]any {
	entries := screening.Entries(ctx.Geo)
	services := make([]any, 0, len(entries))
	for _, e := range entries {
		entry := map[string]any{
			"service": e.Service,
			"status":  e.Status,
		}
		if e.Summary != "" {
			entry["summary"] = e.Summary
		}
		if e.Error != "" {
			entry["error"] = e.Error
		}
		services = append(services, entry)
	}

	return map[string]any{
		"summary":  screening.Narrative(ctx.Geo),
		"services": services,
		"notes":    nullableString(ctx.Form.NEPAExtraordinaryCircumstances),
	}
}

// SplitEntries breaks a free-text reference field on newlines, semicolons,
// and commas, dropping blanks.
func SplitEntries(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ';' || r == ','
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func nullableString(s string) any {
	if trimmed := strings.TrimSpace(s); trimmed != "" {
		return trimmed
	}
	return nil
}

// Record pairs a built payload row with the element title it targets.
type Record struct {
	Title   string
	Payload model.DecisionPayload
}

// BuildRecords produces one payload row per builder, in declaration order.
// Element ids are resolved through the title-keyed catalog; an unresolved
// title logs a warning and falls back to embedding the title itself as the
// payload's synthetic id, so the payload stays self-describing when the
// catalog is unavailable. The fallback never aborts the batch.
func BuildRecords(processID int64, now time.Time, catalog map[string]model.DecisionElement, ctx Context) []Record {
	ts := now.UTC()
	records := make([]Record, 0, len(Builders))

	for _, b := range Builders {
		title := b.Key.Title()
		data := b.Build(ctx)
		data["process"] = processID

		row := model.DecisionPayload{
			Process:            processID,
			DataSourceSystem:   model.DataSourceSystem,
			LastUpdated:        &ts,
			RetrievedTimestamp: &ts,
		}
		if el, ok := catalog[title]; ok {
			id := el.ID
			row.ProcessDecisionElement = &id
			data["id"] = id
		} else {
			zap.L().Warn("payload: decision element title not in catalog, using title fallback",
				zap.String("title", title),
			)
			data["id"] = title
		}
		row.EvaluationData = model.JSONMap(data)
		records = append(records, Record{Title: title, Payload: row})
	}
	return records
}
