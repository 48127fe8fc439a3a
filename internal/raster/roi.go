package raster

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Contains reports whether the point lies inside the region of interest.
// A nil region contains everything.
func Contains(roi orb.Geometry, p orb.Point) bool {
	switch g := roi.(type) {
	case nil:
		return true
	case orb.Bound:
		return g.Contains(p)
	case orb.Ring:
		return planar.RingContains(g, p)
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	case orb.Collection:
		for _, c := range g {
			if Contains(c, p) {
				return true
			}
		}
		return false
	default:
		return g.Bound().Contains(p)
	}
}

// Intersects reports whether the grid extent overlaps the bounds of the region.
func Intersects(g Grid, roi orb.Geometry) bool {
	if roi == nil {
		return true
	}
	return g.Bound().Intersects(roi.Bound())
}

// ROIMask flags the cells whose centre lies inside the region.
func ROIMask(g Grid, roi orb.Geometry) []bool {
	mask := make([]bool, g.Size())
	var bound orb.Bound
	if roi != nil {
		bound = roi.Bound()
	}
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			cx, cy := g.CellCenter(x, y)
			p := orb.Point{cx, cy}
			if roi != nil && !bound.Contains(p) {
				continue
			}
			mask[y*g.Width+x] = Contains(roi, p)
		}
	}
	return mask
}

// Clip returns a Raster whose cells outside the region are nodata.
func Clip(r *Raster, roi orb.Geometry) (*Raster, error) {
	if roi == nil {
		return r, nil
	}
	mask := ROIMask(r.Grid, roi)
	bands := make([]Band, len(r.Bands))
	for bi, b := range r.Bands {
		valid := make([]bool, len(b.Valid))
		for i := range valid {
			valid[i] = b.Valid[i] && mask[i]
		}
		bands[bi] = Band{Name: b.Name, Values: b.Values, Valid: valid}
	}
	return New(r.Grid, bands...)
}
