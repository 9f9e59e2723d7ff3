// Package record converts between the in-memory project form and the
// persisted row shape, in both directions. The conversions are total: no
// user input, however malformed, makes either direction fail.
package record

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/twpayne/go-geom"
	geomjson "github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/civicworks/permit-cli/internal/model"
	"github.com/civicworks/permit-cli/internal/screening"
)

// BuildProjectRow maps a form plus current screening results onto the wire
// row. Scalars are trimmed with empty collapsing to null, the contact
// sub-record drops out when entirely blank, and the other bag is only
// populated when it would carry something. Geometry that is not valid JSON
// is preserved verbatim under other.invalidLocationObject instead of being
// raised as an error.
func BuildProjectRow(form *model.ProjectForm, geo screening.Results, now time.Time) model.ProjectRow {
	ts := now.UTC()
	row := model.ProjectRow{
		Title:                          normString(form.Title),
		Description:                    normString(form.Description),
		Sector:                         normString(form.Sector),
		LeadAgency:                     normString(form.LeadAgency),
		ParticipatingAgencies:          normString(form.ParticipatingAgencies),
		Sponsor:                        normString(form.Sponsor),
		Funding:                        normString(form.Funding),
		LocationText:                   normString(form.LocationText),
		LocationLat:                    normFloat(form.LocationLat),
		LocationLon:                    normFloat(form.LocationLon),
		NEPACategoricalExclusionCode:   normString(form.NEPACategoricalExclusionCode),
		NEPAConformanceConditions:      normString(form.NEPAConformanceConditions),
		NEPAExtraordinaryCircumstances: normString(form.NEPAExtraordinaryCircumstances),
		DataSourceSystem:               model.DataSourceSystem,
		LastUpdated:                    &ts,
		RetrievedTimestamp:             &ts,
	}

	if id, err := form.NumericID(); err == nil {
		row.ID = &id
	} else if strings.TrimSpace(form.ID) != "" {
		zap.L().Warn("record: dropping non-numeric project id", zap.String("id", form.ID))
	}

	geometry, invalid := parseGeometry(form.LocationGeometry)
	row.LocationObject = geometry

	if !form.SponsorContact.Empty() {
		row.SponsorContact = &model.SponsorContact{
			Name:         strings.TrimSpace(form.SponsorContact.Name),
			Organization: strings.TrimSpace(form.SponsorContact.Organization),
			Email:        strings.TrimSpace(form.SponsorContact.Email),
			Phone:        strings.TrimSpace(form.SponsorContact.Phone),
		}
	}

	other := model.OtherData{
		Notes:                 normString(form.Other),
		InvalidLocationObject: invalid,
	}
	if geo.Meaningful() {
		sanitized := geo.Sanitized()
		other.Geospatial = &sanitized
	}
	if !other.Empty() {
		row.Other = &other
	}
	return row
}

// parseGeometry returns the geometry as raw JSON when the text parses, or
// the verbatim text as the invalid fallback when it does not. Valid JSON
// that is not well-formed GeoJSON is still stored; it only logs.
func parseGeometry(text string) (json.RawMessage, *string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}

	if !json.Valid([]byte(trimmed)) {
		raw := text
		return nil, &raw
	}

	var g geom.T
	if err := geomjson.Unmarshal([]byte(trimmed), &g); err != nil {
		zap.L().Warn("record: location geometry is JSON but not valid GeoJSON", zap.Error(err))
	}
	return json.RawMessage(trimmed), nil
}

// ApplyRowToForm layers a stored row onto form and screening state. A target
// field is only overwritten when the source value is present and well-typed,
// so partial replays never clobber fields an earlier replay already set.
func ApplyRowToForm(row *model.ProjectRow, form *model.ProjectForm, geo *screening.Results) {
	if row == nil {
		return
	}

	if row.ID != nil {
		form.ID = strconv.FormatInt(*row.ID, 10)
	}
	applyString(row.Title, &form.Title)
	applyString(row.Description, &form.Description)
	applyString(row.Sector, &form.Sector)
	applyString(row.LeadAgency, &form.LeadAgency)
	applyString(row.ParticipatingAgencies, &form.ParticipatingAgencies)
	applyString(row.Sponsor, &form.Sponsor)
	applyString(row.Funding, &form.Funding)
	applyString(row.LocationText, &form.LocationText)
	applyString(row.NEPACategoricalExclusionCode, &form.NEPACategoricalExclusionCode)
	applyString(row.NEPAConformanceConditions, &form.NEPAConformanceConditions)
	applyString(row.NEPAExtraordinaryCircumstances, &form.NEPAExtraordinaryCircumstances)
	applyFloat(row.LocationLat, &form.LocationLat)
	applyFloat(row.LocationLon, &form.LocationLon)

	if len(row.LocationObject) > 0 && json.Valid(row.LocationObject) {
		form.LocationGeometry = string(row.LocationObject)
	}

	if !row.SponsorContact.Empty() {
		contact := *row.SponsorContact
		form.SponsorContact = &contact
	}

	if row.Other == nil {
		return
	}
	if row.Other.Notes != nil && *row.Other.Notes != "" {
		form.Other = *row.Other.Notes
	}
	if row.Other.InvalidLocationObject != nil && form.LocationGeometry == "" {
		form.LocationGeometry = *row.Other.InvalidLocationObject
	}
	if row.Other.Geospatial != nil && geo != nil {
		restored := *row.Other.Geospatial
		screening.Rehydrate(&restored)
		*geo = restored
	}
}

func normString(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normFloat(f *float64) *float64 {
	if f == nil || math.IsNaN(*f) || math.IsInf(*f, 0) {
		return nil
	}
	v := *f
	return &v
}

func applyString(src *string, dst *string) {
	if src != nil && *src != "" {
		*dst = *src
	}
}

func applyFloat(src *float64, dst **float64) {
	if src == nil || math.IsNaN(*src) || math.IsInf(*src, 0) {
		return
	}
	v := *src
	*dst = &v
}
