package composite

import (
	"context"
	"fmt"

	"github.com/forest-guardian/landcover-classifier/internal/raster"
)

// Fuse stacks the radar bands after the optical ones. When the grids differ
// the source with the lower resolution is resampled onto the grid of the
// other with bilinear interpolation. At equal resolution the radar stack
// follows the optical grid.
func Fuse(ctx context.Context, optical, radar *raster.Raster, opts raster.TileOptions) (*raster.Raster, error) {
	for _, name := range radar.BandNames() {
		if optical.Index(name) >= 0 {
			return nil, fmt.Errorf("band %s exists in both optical and radar rasters", name)
		}
	}
	if radar.Grid.SameAs(optical.Grid) {
		return optical.Concat(radar)
	}

	var err error
	if optical.Grid.Resolution() > radar.Grid.Resolution() {
		if optical, err = raster.ResampleBilinear(ctx, optical, radar.Grid, opts); err != nil {
			return nil, fmt.Errorf("failed to resample optical composite: %w", err)
		}
	} else {
		if radar, err = raster.ResampleBilinear(ctx, radar, optical.Grid, opts); err != nil {
			return nil, fmt.Errorf("failed to resample radar stack: %w", err)
		}
	}
	return optical.Concat(radar)
}
