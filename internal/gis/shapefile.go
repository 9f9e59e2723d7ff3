package gis

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	geomjson "github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// ConvertShapefile reads an uploaded .shp file and returns its shapes as a
// single GeoJSON geometry (a GeometryCollection when the file holds more
// than one shape). Malformed individual shapes are skipped, not fatal.
func ConvertShapefile(path string) (json.RawMessage, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "gis: open shapefile")
	}
	defer func() { _ = reader.Close() }()

	var geoms []geom.T
	for reader.Next() {
		_, shape := reader.Shape()
		g := shapeToGeom(shape)
		if g == nil {
			continue
		}
		geoms = append(geoms, g)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrap(err, "gis: read shapefile")
	}
	if len(geoms) == 0 {
		return nil, eris.New("gis: shapefile contains no usable shapes")
	}

	var out geom.T
	if len(geoms) == 1 {
		out = geoms[0]
	} else {
		gc := geom.NewGeometryCollection()
		for _, g := range geoms {
			if err := gc.Push(g); err != nil {
				zap.L().Debug("gis: skipping shape in collection", zap.Error(err))
			}
		}
		out = gc
	}

	buf, err := geomjson.Marshal(out)
	if err != nil {
		return nil, eris.Wrap(err, "gis: encode geojson")
	}
	return buf, nil
}

// ConvertUpload builds an upload container from a file on disk, converting
// shapefiles and passing GeoJSON through after validation.
func ConvertUpload(path string) (Container, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return Container{}, eris.Wrap(err, "gis: read upload")
	}

	name := filepath.Base(path)
	switch filepath.Ext(path) {
	case ".shp":
		geometry, err := ConvertShapefile(path)
		if err != nil {
			return Container{}, err
		}
		return NewUpload(name, contents, geometry, SourceShapefile), nil
	case ".json", ".geojson":
		var g geom.T
		if err := geomjson.Unmarshal(contents, &g); err != nil {
			return Container{}, eris.Wrap(err, "gis: parse geojson upload")
		}
		return NewUpload(name, contents, json.RawMessage(contents), SourceGeoJSON), nil
	default:
		return Container{}, eris.Errorf("gis: unsupported upload type %q", filepath.Ext(path))
	}
}

// shapeToGeom maps the shapefile shape types the portal accepts onto
// go-geom geometries. Unsupported types return nil.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PolyLine:
		return polyLineToGeom(s)
	case *shp.Polygon:
		return polygonToGeom((*shp.PolyLine)(s))
	default:
		zap.L().Debug("gis: unsupported shapefile shape type")
		return nil
	}
}

func polyLineToGeom(pl *shp.PolyLine) geom.T {
	ml := geom.NewMultiLineString(geom.XY)
	for i := range pl.Parts {
		coords := partCoords(pl, i)
		if len(coords) < 4 {
			continue
		}
		if err := ml.Push(geom.NewLineStringFlat(geom.XY, coords)); err != nil {
			zap.L().Debug("gis: skipping malformed polyline part", zap.Error(err))
		}
	}
	if ml.NumLineStrings() == 0 {
		return nil
	}
	return ml
}

func polygonToGeom(pl *shp.PolyLine) geom.T {
	mp := geom.NewMultiPolygon(geom.XY)
	for i := range pl.Parts {
		coords := partCoords(pl, i)
		if len(coords) < 8 {
			continue
		}
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, coords)); err != nil {
			zap.L().Debug("gis: skipping malformed polygon ring", zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("gis: skipping malformed polygon part", zap.Error(err))
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// partCoords flattens one part's points into go-geom's flat coordinate
// layout.
func partCoords(pl *shp.PolyLine, part int) []float64 {
	start := int(pl.Parts[part])
	end := len(pl.Points)
	if part+1 < len(pl.Parts) {
		end = int(pl.Parts[part+1])
	}
	if start < 0 || end > len(pl.Points) || start >= end {
		return nil
	}

	flat := make([]float64, 0, (end-start)*2)
	for _, p := range pl.Points[start:end] {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}
