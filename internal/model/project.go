// Package model defines the portal's domain types: the in-memory project
// form, the persisted row shapes, and the fixed vocabularies (event types,
// decision elements) shared between the write and read paths.
package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/civicworks/permit-cli/internal/screening"
)

// DataSourceSystem tags every row this application writes, and scopes every
// query to rows written by it.
const DataSourceSystem = "permit-intake-portal"

// ProjectForm is the canonical in-memory representation of the intake form.
// An empty string means the field is absent; normalization converts "" to
// null on every write path and null back to "" on read.
type ProjectForm struct {
	// ID is the string-encoded numeric project identifier. Empty until the
	// first snapshot save assigns one server-side.
	ID                             string          `json:"id,omitempty" yaml:"id,omitempty"`
	Title                          string          `json:"title,omitempty" yaml:"title,omitempty"`
	Description                    string          `json:"description,omitempty" yaml:"description,omitempty"`
	Sector                         string          `json:"sector,omitempty" yaml:"sector,omitempty"`
	LeadAgency                     string          `json:"leadAgency,omitempty" yaml:"lead_agency,omitempty"`
	ParticipatingAgencies          string          `json:"participatingAgencies,omitempty" yaml:"participating_agencies,omitempty"`
	Sponsor                        string          `json:"sponsor,omitempty" yaml:"sponsor,omitempty"`
	Funding                        string          `json:"funding,omitempty" yaml:"funding,omitempty"`
	LocationText                   string          `json:"locationText,omitempty" yaml:"location_text,omitempty"`
	LocationLat                    *float64        `json:"locationLat,omitempty" yaml:"location_lat,omitempty"`
	LocationLon                    *float64        `json:"locationLon,omitempty" yaml:"location_lon,omitempty"`
	LocationGeometry               string          `json:"locationGeometry,omitempty" yaml:"location_geometry,omitempty"`
	SponsorContact                 *SponsorContact `json:"sponsorContact,omitempty" yaml:"sponsor_contact,omitempty"`
	NEPACategoricalExclusionCode   string          `json:"nepaCategoricalExclusionCode,omitempty" yaml:"nepa_categorical_exclusion_code,omitempty"`
	NEPAConformanceConditions      string          `json:"nepaConformanceConditions,omitempty" yaml:"nepa_conformance_conditions,omitempty"`
	NEPAExtraordinaryCircumstances string          `json:"nepaExtraordinaryCircumstances,omitempty" yaml:"nepa_extraordinary_circumstances,omitempty"`
	Other                          string          `json:"other,omitempty" yaml:"other,omitempty"`
}

// SponsorContact is the optional contact sub-record; each field is
// independently optional and the record collapses to absent when every field
// is empty.
type SponsorContact struct {
	Name         string `json:"name,omitempty" yaml:"name,omitempty"`
	Organization string `json:"organization,omitempty" yaml:"organization,omitempty"`
	Email        string `json:"email,omitempty" yaml:"email,omitempty"`
	Phone        string `json:"phone,omitempty" yaml:"phone,omitempty"`
}

// Empty reports whether every contact field is blank after trimming.
func (c *SponsorContact) Empty() bool {
	if c == nil {
		return true
	}
	return strings.TrimSpace(c.Name) == "" &&
		strings.TrimSpace(c.Organization) == "" &&
		strings.TrimSpace(c.Email) == "" &&
		strings.TrimSpace(c.Phone) == ""
}

// NumericID parses the form's id. The persistence layer never invents an id:
// pre-screening submission requires one assigned by a prior snapshot save.
func (f *ProjectForm) NumericID() (int64, error) {
	s := strings.TrimSpace(f.ID)
	if s == "" {
		return 0, eris.New("model: project has no numeric identifier; save the project snapshot first")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "model: project id %q is not numeric", f.ID)
	}
	return id, nil
}

// ProjectRow is the persisted relational shape of a project.
type ProjectRow struct {
	ID                             *int64          `json:"id,omitempty"`
	Title                          *string         `json:"title,omitempty"`
	Description                    *string         `json:"description,omitempty"`
	Sector                         *string         `json:"sector,omitempty"`
	LeadAgency                     *string         `json:"lead_agency,omitempty"`
	ParticipatingAgencies          *string         `json:"participating_agencies,omitempty"`
	Sponsor                        *string         `json:"sponsor,omitempty"`
	Funding                        *string         `json:"funding,omitempty"`
	LocationText                   *string         `json:"location_text,omitempty"`
	LocationLat                    *float64        `json:"location_lat,omitempty"`
	LocationLon                    *float64        `json:"location_lon,omitempty"`
	LocationObject                 json.RawMessage `json:"location_object,omitempty"`
	SponsorContact                 *SponsorContact `json:"sponsor_contact,omitempty"`
	NEPACategoricalExclusionCode   *string         `json:"nepa_categorical_exclusion_code,omitempty"`
	NEPAConformanceConditions      *string         `json:"nepa_conformance_conditions,omitempty"`
	NEPAExtraordinaryCircumstances *string         `json:"nepa_extraordinary_circumstances,omitempty"`
	Other                          *OtherData      `json:"other,omitempty"`
	DataSourceSystem               string          `json:"data_source_system"`
	LastUpdated                    *time.Time      `json:"last_updated,omitempty"`
	RetrievedTimestamp             *time.Time      `json:"retrieved_timestamp,omitempty"`
}

// OtherData is the project row's JSON bag for non-relational extras.
type OtherData struct {
	Notes *string `json:"notes,omitempty"`
	// Geospatial holds sanitized screening results (raw responses excluded
	// on write; tolerated on read from older rows).
	Geospatial *screening.Results `json:"geospatial,omitempty"`
	// InvalidLocationObject keeps the verbatim geometry text when it failed
	// to parse as JSON, so nothing the user typed is lost.
	InvalidLocationObject *string `json:"invalidLocationObject,omitempty"`
}

// Empty reports whether the bag carries nothing worth persisting.
func (o *OtherData) Empty() bool {
	if o == nil {
		return true
	}
	if o.Notes != nil && *o.Notes != "" {
		return false
	}
	if o.InvalidLocationObject != nil {
		return false
	}
	if o.Geospatial != nil && o.Geospatial.Meaningful() {
		return false
	}
	return true
}

// GISDataRow is the side record holding uploaded geometry for a project,
// keyed by parent project id.
type GISDataRow struct {
	ID                 *int64          `json:"id,omitempty"`
	ParentProjectID    int64           `json:"parent_project_id"`
	Data               json.RawMessage `json:"data,omitempty"`
	DataSourceSystem   string          `json:"data_source_system"`
	LastUpdated        *time.Time      `json:"last_updated,omitempty"`
	RetrievedTimestamp *time.Time      `json:"retrieved_timestamp,omitempty"`
}

// ChecklistItem is one permitting checklist entry.
type ChecklistItem struct {
	Label     string `json:"label" yaml:"label"`
	Completed bool   `json:"completed" yaml:"completed"`
	Notes     string `json:"notes,omitempty" yaml:"notes,omitempty"`
	Source    string `json:"source,omitempty" yaml:"source,omitempty"`
}
