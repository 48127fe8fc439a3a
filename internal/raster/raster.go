package raster

import (
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
)

// Grid is the georeferenced shape shared by every band of a Raster.
// GeoTransform follows the GDAL convention.
type Grid struct {
	Width        int
	Height       int
	GeoTransform [6]float64
	CRS          string
}

func (g Grid) Size() int {
	return g.Width * g.Height
}

// Resolution returns the pixel width in CRS units.
func (g Grid) Resolution() float64 {
	return math.Abs(g.GeoTransform[1])
}

// CellCenter converts pixel coordinates to the coordinates of the cell centre.
func (g Grid) CellCenter(x, y int) (float64, float64) {
	gt := g.GeoTransform
	cx := gt[0] + gt[1]*(float64(x)+0.5) + gt[2]*(float64(y)+0.5)
	cy := gt[3] + gt[4]*(float64(x)+0.5) + gt[5]*(float64(y)+0.5)
	return cx, cy
}

// CellAt converts geographic coordinates to pixel coordinates. ok is false
// when the location is outside the grid.
func (g Grid) CellAt(lon, lat float64) (x, y int, ok bool) {
	gt := g.GeoTransform
	if gt[1] == 0 || gt[5] == 0 {
		return 0, 0, false
	}
	col := int(math.Floor((lon - gt[0]) / gt[1]))
	row := int(math.Floor((lat - gt[3]) / gt[5]))
	if col < 0 || col >= g.Width || row < 0 || row >= g.Height {
		return 0, 0, false
	}
	return col, row, true
}

// Bound returns the extent covered by the grid.
func (g Grid) Bound() orb.Bound {
	gt := g.GeoTransform
	x0, y0 := gt[0], gt[3]
	x1 := gt[0] + gt[1]*float64(g.Width)
	y1 := gt[3] + gt[5]*float64(g.Height)
	return orb.Bound{
		Min: orb.Point{math.Min(x0, x1), math.Min(y0, y1)},
		Max: orb.Point{math.Max(x0, x1), math.Max(y0, y1)},
	}
}

// SameAs reports whether both grids have identical shape, extent and resolution.
func (g Grid) SameAs(o Grid) bool {
	if g.Width != o.Width || g.Height != o.Height {
		return false
	}
	if g.CRS != "" && o.CRS != "" && g.CRS != o.CRS {
		return false
	}
	for i := range g.GeoTransform {
		if math.Abs(g.GeoTransform[i]-o.GeoTransform[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func (g Grid) northUp() bool {
	return g.GeoTransform[2] == 0 && g.GeoTransform[4] == 0
}

// Band is one named layer of a Raster. A cell is nodata when Valid is false.
type Band struct {
	Name   string
	Values []float64
	Valid  []bool
}

// NewBand allocates an all-invalid band of the given size.
func NewBand(name string, size int) Band {
	return Band{
		Name:   name,
		Values: make([]float64, size),
		Valid:  make([]bool, size),
	}
}

// Raster is a set of bands over one Grid. Operations in this module never
// mutate a Raster once it has been built; they return new values instead.
type Raster struct {
	Grid  Grid
	Bands []Band
}

// New builds a Raster and checks that every band matches the grid.
func New(grid Grid, bands ...Band) (*Raster, error) {
	if grid.Width <= 0 || grid.Height <= 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", grid.Width, grid.Height)
	}
	seen := make(map[string]bool, len(bands))
	for _, b := range bands {
		if len(b.Values) != grid.Size() || len(b.Valid) != grid.Size() {
			return nil, fmt.Errorf("band %s has %d cells, grid has %d", b.Name, len(b.Values), grid.Size())
		}
		if seen[b.Name] {
			return nil, fmt.Errorf("duplicated band name %s", b.Name)
		}
		seen[b.Name] = true
	}
	return &Raster{Grid: grid, Bands: bands}, nil
}

func (r *Raster) BandNames() []string {
	names := make([]string, len(r.Bands))
	for i, b := range r.Bands {
		names[i] = b.Name
	}
	return names
}

// Index returns the position of the named band or -1.
func (r *Raster) Index(name string) int {
	for i, b := range r.Bands {
		if b.Name == name {
			return i
		}
	}
	return -1
}

func (r *Raster) Band(name string) (Band, bool) {
	i := r.Index(name)
	if i < 0 {
		return Band{}, false
	}
	return r.Bands[i], true
}

// Select returns a Raster with the named bands in the given order.
func (r *Raster) Select(names ...string) (*Raster, error) {
	bands := make([]Band, 0, len(names))
	for _, name := range names {
		b, ok := r.Band(name)
		if !ok {
			return nil, fmt.Errorf("band %s not found in %v", name, r.BandNames())
		}
		bands = append(bands, b)
	}
	return New(r.Grid, bands...)
}

// WithBands returns a Raster holding the current bands followed by the given ones.
func (r *Raster) WithBands(bands ...Band) (*Raster, error) {
	all := make([]Band, 0, len(r.Bands)+len(bands))
	all = append(all, r.Bands...)
	all = append(all, bands...)
	return New(r.Grid, all...)
}

// Concat stacks the bands of o after the bands of r. Both grids must match.
func (r *Raster) Concat(o *Raster) (*Raster, error) {
	if !r.Grid.SameAs(o.Grid) {
		return nil, fmt.Errorf("cannot stack rasters with different grids")
	}
	return r.WithBands(o.Bands...)
}

// CellValid reports whether cell i is valid in every band.
func (r *Raster) CellValid(i int) bool {
	if len(r.Bands) == 0 {
		return false
	}
	for _, b := range r.Bands {
		if !b.Valid[i] {
			return false
		}
	}
	return true
}

// Values copies the band values of cell i into dst.
func (r *Raster) Values(i int, dst []float64) []float64 {
	dst = dst[:0]
	for _, b := range r.Bands {
		dst = append(dst, b.Values[i])
	}
	return dst
}

// Sample reads all band values at a geographic location. inside is false
// when the location falls outside the grid and valid is false when any band
// is nodata there.
func (r *Raster) Sample(lon, lat float64) (values []float64, inside, valid bool) {
	x, y, ok := r.Grid.CellAt(lon, lat)
	if !ok {
		return nil, false, false
	}
	i := y*r.Grid.Width + x
	if !r.CellValid(i) {
		return nil, true, false
	}
	return r.Values(i, make([]float64, 0, len(r.Bands))), true, true
}

// ValidCount returns the number of cells valid in every band.
func (r *Raster) ValidCount() int {
	n := 0
	for i := 0; i < r.Grid.Size(); i++ {
		if r.CellValid(i) {
			n++
		}
	}
	return n
}

// Observation is a single acquisition of one sensor.
type Observation struct {
	Raster          *Raster
	Time            time.Time
	Sensor          string
	QualityBand     string
	CloudPercentage float64
}
