// Package gis handles the uploaded-geometry side record stored alongside a
// project: a JSON container bundling the drawn or uploaded geometry, its
// source, and the original file for provenance.
package gis

import (
	"encoding/base64"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Geometry sources recorded in the container.
const (
	SourceDrawn     = "drawn"
	SourceShapefile = "shapefile"
	SourceGeoJSON   = "geojson"
)

// Container is the JSON value stored in the gis_data row for a project.
type Container struct {
	// Geometry is the GeoJSON geometry in use by the project.
	Geometry json.RawMessage `json:"geometry,omitempty"`
	// Source says where the geometry came from.
	Source string `json:"source,omitempty"`
	// OriginalFileName and OriginalFile keep the uploaded file verbatim
	// (base64) so nothing the sponsor supplied is lost.
	OriginalFileName string `json:"originalFileName,omitempty"`
	OriginalFile     string `json:"originalFile,omitempty"`
}

// NewUpload builds a container from an uploaded file and the geometry
// extracted from it.
func NewUpload(fileName string, fileContents []byte, geometry json.RawMessage, source string) Container {
	return Container{
		Geometry:         geometry,
		Source:           source,
		OriginalFileName: fileName,
		OriginalFile:     base64.StdEncoding.EncodeToString(fileContents),
	}
}

// Marshal renders the container for the gis_data row.
func (c Container) Marshal() (json.RawMessage, error) {
	buf, err := json.Marshal(c)
	if err != nil {
		return nil, eris.Wrap(err, "gis: marshal container")
	}
	return buf, nil
}

// Parse decodes a stored container. Malformed historical data yields an
// empty container, not an error.
func Parse(data json.RawMessage) Container {
	var c Container
	if len(data) == 0 {
		return c
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return Container{}
	}
	return c
}

// OriginalFileBytes decodes the stored original file.
func (c Container) OriginalFileBytes() ([]byte, error) {
	if c.OriginalFile == "" {
		return nil, nil
	}
	buf, err := base64.StdEncoding.DecodeString(c.OriginalFile)
	if err != nil {
		return nil, eris.Wrap(err, "gis: decode original file")
	}
	return buf, nil
}
