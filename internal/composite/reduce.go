package composite

import (
	"context"
	"fmt"

	"github.com/forest-guardian/landcover-classifier/internal/raster"
	"github.com/montanaflynn/stats"
)

// Reducer collapses the valid values of one cell across a series.
type Reducer func(values stats.Float64Data) (float64, error)

func Median(values stats.Float64Data) (float64, error) { return stats.Median(values) }

func Mean(values stats.Float64Data) (float64, error) { return stats.Mean(values) }

// Reduce combines a series of observations cell by cell. Only valid cells
// take part; a cell with no valid value in the series stays invalid. Every
// observation must carry the bands of the first one. Observations on a
// different grid are resampled bilinearly onto the grid of the first one.
func Reduce(ctx context.Context, series []raster.Observation, reducer Reducer, opts raster.TileOptions) (*raster.Raster, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("cannot reduce an empty series")
	}
	grid := series[0].Raster.Grid
	names := series[0].Raster.BandNames()

	// stack[b][o] is band b of observation o
	stack := make([][]raster.Band, len(names))
	for _, obs := range series {
		r := obs.Raster
		if !r.Grid.SameAs(grid) {
			var err error
			r, err = raster.ResampleBilinear(ctx, r, grid, opts)
			if err != nil {
				return nil, fmt.Errorf("failed to align observation %s: %w", obs.Time.Format("2006-01-02"), err)
			}
		}
		for bi, name := range names {
			b, ok := r.Band(name)
			if !ok {
				return nil, fmt.Errorf("observation %s has no band %s", obs.Time.Format("2006-01-02"), name)
			}
			stack[bi] = append(stack[bi], b)
		}
	}

	out := make([]raster.Band, len(names))
	for bi, name := range names {
		out[bi] = raster.NewBand(name, grid.Size())
	}

	err := raster.ForEachTile(ctx, grid, opts, func(t raster.Tile) error {
		values := make(stats.Float64Data, 0, len(series))
		for y := t.Y0; y < t.Y1; y++ {
			for x := t.X0; x < t.X1; x++ {
				i := y*grid.Width + x
				for bi := range names {
					values = values[:0]
					for _, b := range stack[bi] {
						if b.Valid[i] {
							values = append(values, b.Values[i])
						}
					}
					if len(values) == 0 {
						continue
					}
					v, err := reducer(values)
					if err != nil {
						return fmt.Errorf("failed to reduce band %s: %w", names[bi], err)
					}
					out[bi].Values[i] = v
					out[bi].Valid[i] = true
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raster.New(grid, out...)
}
