package dataset

import (
	"fmt"

	"github.com/forest-guardian/landcover-classifier/internal/raster"
	"github.com/paulmach/orb"
)

// OutOfBoundsSample marks a point outside the raster extent.
type OutOfBoundsSample struct {
	Index int
	Point orb.Point
}

func (e *OutOfBoundsSample) Error() string {
	return fmt.Sprintf("sample %d at (%f, %f) is outside the raster", e.Index, e.Point.Lon(), e.Point.Lat())
}

type ExtractStats struct {
	Extracted   int
	OutOfBounds []*OutOfBoundsSample
	// Masked counts points on a cell that is nodata in at least one band.
	Masked int
}

// Extract samples the raster at every point, in input order. Points outside
// the raster or on an invalid cell are dropped and counted.
func Extract(r *raster.Raster, points []SamplePoint) (*SampleSet, ExtractStats, error) {
	var stats ExtractStats
	if len(r.Bands) == 0 {
		return nil, stats, fmt.Errorf("cannot extract samples from a raster without bands")
	}

	set := &SampleSet{BandNames: r.BandNames()}
	for i, p := range points {
		values, inside, valid := r.Sample(p.Location.Lon(), p.Location.Lat())
		switch {
		case !inside:
			stats.OutOfBounds = append(stats.OutOfBounds, &OutOfBoundsSample{Index: i, Point: p.Location})
		case !valid:
			stats.Masked++
		default:
			set.Vectors = append(set.Vectors, FeatureVector{SamplePoint: p, Values: values})
		}
	}
	stats.Extracted = len(set.Vectors)
	return set, stats, nil
}
