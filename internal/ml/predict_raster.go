package ml

import (
	"context"
	"slices"

	"github.com/forest-guardian/landcover-classifier/internal/raster"
)

const ClassificationBand = "classification"

// PredictRaster classifies every valid cell of r into a single band raster.
// Cells invalid in any input band are invalid in the output.
func (f *Forest) PredictRaster(ctx context.Context, r *raster.Raster, opts raster.TileOptions) (*raster.Raster, error) {
	if got := r.BandNames(); !slices.Equal(got, f.bandNames) {
		return nil, &SchemaMismatchError{Trained: f.BandNames(), Got: got}
	}

	g := r.Grid
	out := raster.NewBand(ClassificationBand, g.Size())
	err := raster.ForEachTile(ctx, g, opts, func(t raster.Tile) error {
		values := make([]float64, 0, len(f.bandNames))
		votes := make([]int, len(f.classes))
		for y := t.Y0; y < t.Y1; y++ {
			for x := t.X0; x < t.X1; x++ {
				i := y*g.Width + x
				if !r.CellValid(i) {
					continue
				}
				values = r.Values(i, values)
				out.Values[i] = float64(f.vote(values, votes))
				out.Valid[i] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raster.New(g, out)
}
