package raster

import (
	"context"
	"errors"
	"math"
)

var errRotatedGrid = errors.New("resampling rotated grids is not supported")

// sourcePixel maps the centre of target cell (x,y) to fractional pixel
// coordinates of the source grid, measured from source cell centres.
func sourcePixel(src, dst Grid, x, y int) (float64, float64) {
	cx, cy := dst.CellCenter(x, y)
	sgt := src.GeoTransform
	fx := (cx-sgt[0])/sgt[1] - 0.5
	fy := (cy-sgt[3])/sgt[5] - 0.5
	return fx, fy
}

func checkResample(r *Raster, target Grid) error {
	if !r.Grid.northUp() || !target.northUp() {
		return errRotatedGrid
	}
	if r.Grid.CRS != "" && target.CRS != "" && r.Grid.CRS != target.CRS {
		return errors.New("resampling between coordinate systems is not supported")
	}
	return nil
}

// ResampleBilinear interpolates every band of r onto the target grid. Only
// valid neighbours contribute; their weights are renormalised. Target cells
// outside the source extent are nodata.
func ResampleBilinear(ctx context.Context, r *Raster, target Grid, opts TileOptions) (*Raster, error) {
	if r.Grid.SameAs(target) {
		return r, nil
	}
	if err := checkResample(r, target); err != nil {
		return nil, err
	}
	src := r.Grid
	bands := make([]Band, len(r.Bands))
	for bi, b := range r.Bands {
		out, err := Map(ctx, target, b.Name, opts, func(i int) (float64, bool) {
			fx, fy := sourcePixel(src, target, i%target.Width, i/target.Width)
			if fx < -0.5 || fy < -0.5 || fx > float64(src.Width)-0.5 || fy > float64(src.Height)-0.5 {
				return 0, false
			}
			x0, y0 := int(math.Floor(fx)), int(math.Floor(fy))
			dx, dy := fx-float64(x0), fy-float64(y0)

			var sum, weight float64
			for _, n := range [4]struct {
				x, y int
				w    float64
			}{
				{x0, y0, (1 - dx) * (1 - dy)},
				{x0 + 1, y0, dx * (1 - dy)},
				{x0, y0 + 1, (1 - dx) * dy},
				{x0 + 1, y0 + 1, dx * dy},
			} {
				if n.w == 0 || n.x < 0 || n.y < 0 || n.x >= src.Width || n.y >= src.Height {
					continue
				}
				j := n.y*src.Width + n.x
				if !b.Valid[j] {
					continue
				}
				sum += n.w * b.Values[j]
				weight += n.w
			}
			if weight == 0 {
				return 0, false
			}
			return sum / weight, true
		})
		if err != nil {
			return nil, err
		}
		bands[bi] = out
	}
	return New(target, bands...)
}

// ResampleNearest picks the nearest source cell for every target cell. It is
// meant for categorical rasters such as classifications.
func ResampleNearest(ctx context.Context, r *Raster, target Grid, opts TileOptions) (*Raster, error) {
	if r.Grid.SameAs(target) {
		return r, nil
	}
	if err := checkResample(r, target); err != nil {
		return nil, err
	}
	src := r.Grid
	bands := make([]Band, len(r.Bands))
	for bi, b := range r.Bands {
		out, err := Map(ctx, target, b.Name, opts, func(i int) (float64, bool) {
			fx, fy := sourcePixel(src, target, i%target.Width, i/target.Width)
			x, y := int(math.Round(fx)), int(math.Round(fy))
			if x < 0 || y < 0 || x >= src.Width || y >= src.Height {
				return 0, false
			}
			j := y*src.Width + x
			return b.Values[j], b.Valid[j]
		})
		if err != nil {
			return nil, err
		}
		bands[bi] = out
	}
	return New(target, bands...)
}

// Rescale returns the grid covering the same extent at another resolution.
func (g Grid) Rescale(resolution float64) Grid {
	if resolution <= 0 || resolution == g.Resolution() {
		return g
	}
	b := g.Bound()
	width := int(math.Ceil((b.Max[0] - b.Min[0]) / resolution))
	height := int(math.Ceil((b.Max[1] - b.Min[1]) / resolution))
	gt := g.GeoTransform
	gt[1] = math.Copysign(resolution, gt[1])
	gt[5] = math.Copysign(resolution, gt[5])
	return Grid{Width: max(width, 1), Height: max(height, 1), GeoTransform: gt, CRS: g.CRS}
}
