package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicworks/permit-cli/internal/model"
	"github.com/civicworks/permit-cli/internal/screening"
)

func TestApplyToState_UnknownTitleIgnored(t *testing.T) {
	t.Parallel()

	form := model.ProjectForm{Title: "unchanged"}
	ApplyToState("Future Server Element", map[string]any{"title": "surprise"}, &form, nil, nil)
	assert.Equal(t, "unchanged", form.Title)
}

func TestApplyToState_ProjectDetails(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"id":           float64(12),
		"process":      float64(55),
		"title":        "River Valley Line",
		"lead_agency":  "DOE",
		"location_lat": 41.24,
	}

	form := model.ProjectForm{ID: "1"}
	ApplyToState(model.ElementProjectDetails.Title(), data, &form, nil, nil)

	// "id" is the decision element id, not the project id; it never
	// reaches the form.
	assert.Equal(t, "1", form.ID)
	assert.Equal(t, "River Valley Line", form.Title)
	assert.Equal(t, "DOE", form.LeadAgency)
	require.NotNil(t, form.LocationLat)
	assert.InDelta(t, 41.24, *form.LocationLat, 1e-9)
}

func TestApplyToState_ServiceConfirmation(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"raw":     map[string]any{"layers": []any{map[string]any{"layer": "Wetlands (NWI)", "count": float64(2)}}},
		"summary": nil,
	}

	geo := screening.NewResults()
	ApplyToState(model.ElementNEPAssistConfirmation.Title(), data, nil, &geo, nil)

	// Summary recomputed from the replayed raw; status promoted.
	assert.Contains(t, geo.NEPAssist.Summary, "Wetlands (NWI): 2")
	assert.Equal(t, screening.StatusSuccess, geo.NEPAssist.Status)
	// The other service is untouched.
	assert.Equal(t, screening.StatusIdle, geo.IPaC.Status)
}

func TestApplyToState_PermitNotes(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"permits": []any{
			map[string]any{"label": "CWA 404", "completed": false},
			map[string]any{"label": "", "completed": false},
			map[string]any{"label": "ESA Section 7", "completed": true, "notes": "informal"},
		},
		"notes": "coordinate with county",
	}

	var form model.ProjectForm
	var checklist []model.ChecklistItem
	ApplyToState(model.ElementPermitNotes.Title(), data, &form, nil, &checklist)

	require.Len(t, checklist, 2)
	assert.Equal(t, "CWA 404", checklist[0].Label)
	assert.True(t, checklist[1].Completed)
	assert.Equal(t, "coordinate with county", form.Other)
}

func TestApplyToState_PermitNotes_DoesNotReplaceExisting(t *testing.T) {
	t.Parallel()

	form := model.ProjectForm{Other: "existing notes"}
	checklist := []model.ChecklistItem{{Label: "already here"}}
	data := map[string]any{
		"permits": []any{map[string]any{"label": "CWA 404"}},
		"notes":   "replayed notes",
	}

	ApplyToState(model.ElementPermitNotes.Title(), data, &form, nil, &checklist)

	assert.Equal(t, "existing notes", form.Other)
	require.Len(t, checklist, 1)
	assert.Equal(t, "already here", checklist[0].Label)
}

func TestApplyToState_CEReferencesAndConditions(t *testing.T) {
	t.Parallel()

	var form model.ProjectForm
	ApplyToState(model.ElementCEReferences.Title(), map[string]any{
		"references": []any{"B1.3", "B4.6"},
		"rationale":  "anything",
	}, &form, nil, nil)
	assert.Equal(t, "B1.3\nB4.6", form.NEPACategoricalExclusionCode)

	ApplyToState(model.ElementConditions.Title(), map[string]any{
		"conditions": []any{"maintain existing ROW"},
		"notes":      "floodplain crossing",
	}, &form, nil, nil)
	assert.Equal(t, "maintain existing ROW", form.NEPAConformanceConditions)
	assert.Equal(t, "floodplain crossing", form.NEPAExtraordinaryCircumstances)

	// Replaying again never clobbers layered state.
	ApplyToState(model.ElementCEReferences.Title(), map[string]any{
		"references": []any{"OTHER"},
	}, &form, nil, nil)
	assert.Equal(t, "B1.3\nB4.6", form.NEPACategoricalExclusionCode)
}

func TestApplyToState_ResourceNotes(t *testing.T) {
	t.Parallel()

	var form model.ProjectForm
	ApplyToState(model.ElementResourceNotes.Title(), map[string]any{
		"summary": "NEPAssist: clear.",
		"notes":   "floodplain crossing",
	}, &form, nil, nil)
	assert.Equal(t, "floodplain crossing", form.NEPAExtraordinaryCircumstances)
}

func TestApplyToState_IllTypedSourcesSkipped(t *testing.T) {
	t.Parallel()

	var form model.ProjectForm
	var checklist []model.ChecklistItem
	geo := screening.NewResults()

	ApplyToState(model.ElementPermitNotes.Title(), map[string]any{
		"permits": "not a list",
		"notes":   42,
	}, &form, &geo, &checklist)
	ApplyToState(model.ElementCEReferences.Title(), map[string]any{
		"references": map[string]any{"oops": true},
	}, &form, &geo, &checklist)

	assert.Empty(t, checklist)
	assert.Empty(t, form.Other)
	assert.Empty(t, form.NEPACategoricalExclusionCode)
}

// Full inverse: records built from state replay onto blank state.
func TestBuildThenApplyRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := testContext()
	records := BuildRecords(55, testNow, testCatalog(), ctx)

	var form model.ProjectForm
	geo := screening.NewResults()
	var checklist []model.ChecklistItem
	for _, rec := range records {
		ApplyToState(rec.Title, rec.Payload.EvaluationData, &form, &geo, &checklist)
	}

	assert.Empty(t, form.ID, "element ids must not replay as the project id")
	assert.Equal(t, ctx.Form.Title, form.Title)
	assert.Equal(t, ctx.Form.LeadAgency, form.LeadAgency)
	assert.Equal(t, ctx.Form.Other, form.Other)
	assert.Len(t, checklist, 2)
	assert.Equal(t, ctx.Geo.NEPAssist.Summary, geo.NEPAssist.Summary)
}
