package sentinel

import (
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// LoadROI reads the region of interest from a GeoJSON file holding either a
// FeatureCollection, a Feature or a bare geometry. Polygons of every feature
// are merged into one MultiPolygon.
func LoadROI(path string) (orb.Geometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read region of interest: %w", err)
	}

	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil && len(fc.Features) > 0 {
		var geometries []orb.Geometry
		for _, f := range fc.Features {
			geometries = append(geometries, f.Geometry)
		}
		return mergePolygons(geometries)
	}
	if f, err := geojson.UnmarshalFeature(data); err == nil && f.Geometry != nil {
		return mergePolygons([]orb.Geometry{f.Geometry})
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse region of interest %s: %w", path, err)
	}
	return mergePolygons([]orb.Geometry{g.Geometry()})
}

func mergePolygons(geometries []orb.Geometry) (orb.Geometry, error) {
	var mp orb.MultiPolygon
	for _, g := range geometries {
		switch v := g.(type) {
		case orb.Polygon:
			mp = append(mp, v)
		case orb.MultiPolygon:
			mp = append(mp, v...)
		case orb.Bound:
			mp = append(mp, v.ToPolygon())
		}
	}
	if len(mp) == 0 {
		return nil, errors.New("region of interest has no polygon")
	}
	if len(mp) == 1 {
		return mp[0], nil
	}
	return mp, nil
}

// GetCentroidLatitudeLongitude returns the area-weighted centroid of the region.
func GetCentroidLatitudeLongitude(roi orb.Geometry) (float64, float64, error) {
	centroid, area := planar.CentroidArea(roi)
	if area <= 0 {
		return 0, 0, errors.New("error getting centroid")
	}
	return centroid.Y(), centroid.X(), nil
}
