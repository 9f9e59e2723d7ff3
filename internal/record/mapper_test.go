package record

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicworks/permit-cli/internal/model"
	"github.com/civicworks/permit-cli/internal/screening"
)

var testNow = time.Date(2026, 5, 2, 11, 0, 0, 0, time.UTC)

func fullForm() model.ProjectForm {
	lat := 41.24
	lon := -101.01
	return model.ProjectForm{
		ID:                             "12",
		Title:                          "River Valley Line",
		Description:                    "Transmission corridor upgrade",
		Sector:                         "Electric transmission",
		LeadAgency:                     "DOE",
		ParticipatingAgencies:          "USACE; FWS",
		Sponsor:                        "River Valley Power",
		Funding:                        "IIJA 40101(d)",
		LocationText:                   "Lincoln County, NE",
		LocationLat:                    &lat,
		LocationLon:                    &lon,
		LocationGeometry:               `{"type":"Point","coordinates":[-101.01,41.24]}`,
		SponsorContact:                 &model.SponsorContact{Name: "J. Ramos", Email: "jramos@rvp.example"},
		NEPACategoricalExclusionCode:   "B1.3",
		NEPAConformanceConditions:      "maintain existing ROW",
		NEPAExtraordinaryCircumstances: "none identified",
		Other:                          "coordinate with county",
	}
}

func TestBuildProjectRow_FullForm(t *testing.T) {
	t.Parallel()

	form := fullForm()
	row := BuildProjectRow(&form, screening.Results{}, testNow)

	require.NotNil(t, row.ID)
	assert.EqualValues(t, 12, *row.ID)
	assert.Equal(t, "River Valley Line", *row.Title)
	assert.Equal(t, "DOE", *row.LeadAgency)
	assert.JSONEq(t, `{"type":"Point","coordinates":[-101.01,41.24]}`, string(row.LocationObject))
	require.NotNil(t, row.SponsorContact)
	assert.Equal(t, "J. Ramos", row.SponsorContact.Name)
	assert.Equal(t, model.DataSourceSystem, row.DataSourceSystem)
	require.NotNil(t, row.LastUpdated)
	assert.Equal(t, testNow, *row.LastUpdated)
	assert.Equal(t, testNow, *row.RetrievedTimestamp)

	// Geometry parsed cleanly: no invalid fallback.
	require.NotNil(t, row.Other)
	assert.Nil(t, row.Other.InvalidLocationObject)
	assert.Equal(t, "coordinate with county", *row.Other.Notes)
}

func TestBuildProjectRow_EmptyStringsBecomeNull(t *testing.T) {
	t.Parallel()

	form := model.ProjectForm{Title: "   ", LeadAgency: ""}
	row := BuildProjectRow(&form, screening.Results{}, testNow)

	assert.Nil(t, row.Title)
	assert.Nil(t, row.LeadAgency)
	assert.Nil(t, row.ID)
	assert.Nil(t, row.SponsorContact)
	assert.Nil(t, row.Other)
}

func TestBuildProjectRow_InvalidGeometry(t *testing.T) {
	t.Parallel()

	form := model.ProjectForm{LocationGeometry: "not json"}
	row := BuildProjectRow(&form, screening.Results{}, testNow)

	assert.Nil(t, row.LocationObject)
	require.NotNil(t, row.Other)
	require.NotNil(t, row.Other.InvalidLocationObject)
	assert.Equal(t, "not json", *row.Other.InvalidLocationObject)
}

// Any string at all is acceptable as geometry input.
func TestBuildProjectRow_GeometryNeverFails(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"", "   ", "not json", `{"truncated":`, `[]`, `123`, `"quoted"`,
		`{"type":"Point","coordinates":[-101.01,41.24]}`,
		`{"type":"Nonsense","coordinates":true}`,
		"\x00\xff binary-ish",
	}
	for _, in := range inputs {
		form := model.ProjectForm{LocationGeometry: in}
		assert.NotPanics(t, func() {
			BuildProjectRow(&form, screening.Results{}, testNow)
		}, "input %q", in)
	}
}

// Valid JSON that is not GeoJSON is still stored as the location object.
func TestBuildProjectRow_NonGeoJSONStored(t *testing.T) {
	t.Parallel()

	form := model.ProjectForm{LocationGeometry: `{"a":1}`}
	row := BuildProjectRow(&form, screening.Results{}, testNow)

	assert.JSONEq(t, `{"a":1}`, string(row.LocationObject))
	assert.Nil(t, row.Other)
}

func TestBuildProjectRow_NaNCoordinatesDropped(t *testing.T) {
	t.Parallel()

	nan := math.NaN()
	inf := math.Inf(1)
	form := model.ProjectForm{LocationLat: &nan, LocationLon: &inf}
	row := BuildProjectRow(&form, screening.Results{}, testNow)

	assert.Nil(t, row.LocationLat)
	assert.Nil(t, row.LocationLon)
}

func TestBuildProjectRow_GeospatialGate(t *testing.T) {
	t.Parallel()

	form := model.ProjectForm{Title: "Gated"}

	// Idle state is noise: nothing persisted.
	row := BuildProjectRow(&form, screening.NewResults(), testNow)
	assert.Nil(t, row.Other)

	// Meaningful state is persisted, with raw stripped.
	geo := screening.Results{
		NEPAssist: screening.ServiceState{
			Status:  screening.StatusSuccess,
			Summary: "clear",
			Raw:     json.RawMessage(`{"layers":[]}`),
		},
		IPaC: screening.ServiceState{Status: screening.StatusIdle},
	}
	row = BuildProjectRow(&form, geo, testNow)
	require.NotNil(t, row.Other)
	require.NotNil(t, row.Other.Geospatial)
	assert.Equal(t, "clear", row.Other.Geospatial.NEPAssist.Summary)
	assert.Nil(t, row.Other.Geospatial.NEPAssist.Raw)
}

// Round trip: every non-empty form field survives build-then-apply.
func TestRoundTrip(t *testing.T) {
	t.Parallel()

	form := fullForm()
	row := BuildProjectRow(&form, screening.Results{}, testNow)

	var restored model.ProjectForm
	var geo screening.Results
	ApplyRowToForm(&row, &restored, &geo)

	assert.Equal(t, form.ID, restored.ID)
	assert.Equal(t, form.Title, restored.Title)
	assert.Equal(t, form.Description, restored.Description)
	assert.Equal(t, form.Sector, restored.Sector)
	assert.Equal(t, form.LeadAgency, restored.LeadAgency)
	assert.Equal(t, form.ParticipatingAgencies, restored.ParticipatingAgencies)
	assert.Equal(t, form.Sponsor, restored.Sponsor)
	assert.Equal(t, form.Funding, restored.Funding)
	assert.Equal(t, form.LocationText, restored.LocationText)
	require.NotNil(t, restored.LocationLat)
	assert.InDelta(t, *form.LocationLat, *restored.LocationLat, 1e-9)
	assert.JSONEq(t, form.LocationGeometry, restored.LocationGeometry)
	require.NotNil(t, restored.SponsorContact)
	assert.Equal(t, form.SponsorContact.Name, restored.SponsorContact.Name)
	assert.Equal(t, form.NEPACategoricalExclusionCode, restored.NEPACategoricalExclusionCode)
	assert.Equal(t, form.Other, restored.Other)
}

func TestApplyRowToForm_NeverClobbers(t *testing.T) {
	t.Parallel()

	lat := 41.0
	form := model.ProjectForm{Title: "Keep me", LocationLat: &lat}

	nan := math.NaN()
	empty := ""
	row := model.ProjectRow{
		Title:       &empty, // empty source: skipped
		LocationLat: &nan,   // NaN source: skipped
		Description: nil,    // absent source: skipped
	}
	ApplyRowToForm(&row, &form, nil)

	assert.Equal(t, "Keep me", form.Title)
	require.NotNil(t, form.LocationLat)
	assert.Equal(t, 41.0, *form.LocationLat)
	assert.Empty(t, form.Description)
}

func TestApplyRowToForm_InvalidGeometryFallback(t *testing.T) {
	t.Parallel()

	raw := "not json"
	row := model.ProjectRow{Other: &model.OtherData{InvalidLocationObject: &raw}}

	var form model.ProjectForm
	ApplyRowToForm(&row, &form, nil)
	assert.Equal(t, "not json", form.LocationGeometry)

	// A parsed location object wins over the invalid fallback.
	row.LocationObject = json.RawMessage(`{"type":"Point","coordinates":[0,0]}`)
	form = model.ProjectForm{}
	ApplyRowToForm(&row, &form, nil)
	assert.JSONEq(t, `{"type":"Point","coordinates":[0,0]}`, form.LocationGeometry)
}

func TestApplyRowToForm_RehydratesScreening(t *testing.T) {
	t.Parallel()

	row := model.ProjectRow{
		Other: &model.OtherData{
			Geospatial: &screening.Results{
				NEPAssist: screening.ServiceState{
					Status: screening.StatusSuccess,
					Raw:    json.RawMessage(`{"layers":[{"layer":"Wetlands (NWI)","count":4}]}`),
				},
				IPaC: screening.ServiceState{Error: "timeout"},
			},
		},
	}

	var form model.ProjectForm
	var geo screening.Results
	ApplyRowToForm(&row, &form, &geo)

	// Summary recomputed from surviving raw; missing status normalized.
	assert.Contains(t, geo.NEPAssist.Summary, "Wetlands (NWI): 4")
	assert.Equal(t, screening.StatusError, geo.IPaC.Status)
}

func TestApplyRowToForm_NilRow(t *testing.T) {
	t.Parallel()

	form := model.ProjectForm{Title: "unchanged"}
	ApplyRowToForm(nil, &form, nil)
	assert.Equal(t, "unchanged", form.Title)
}
