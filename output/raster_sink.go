package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/forest-guardian/landcover-classifier/internal/raster"
	"github.com/forest-guardian/landcover-classifier/internal/sentinel"
	"github.com/forest-guardian/landcover-classifier/internal/utils"
)

const (
	NoDataValue      = -9999
	DefaultMaxPixels = 1e10
	metresPerDegree  = 111_000.0
)

// Export describes one raster written by a RasterSink.
type Export struct {
	Name   string
	Folder string
	// Scale is the output pixel size in metres. Zero keeps the raster grid.
	Scale     float64
	MaxPixels int64
	// Bands to write, every band when empty.
	Bands          []string
	CloudOptimized bool
	// Categorical rasters are resampled with nearest neighbour, the others
	// bilinearly.
	Categorical bool
}

type RasterSink interface {
	Write(ctx context.Context, r *raster.Raster, e Export) (string, error)
}

// GeoTIFFSink writes GeoTIFF files below Root/<Folder>.
type GeoTIFFSink struct {
	Root  string
	Tiles raster.TileOptions
}

func isGeographic(crs string) bool {
	return crs == "" || crs == "EPSG:4326" || strings.HasPrefix(crs, "GEOGCS") || strings.HasPrefix(crs, "GEOGCRS")
}

// Check validates an export against the raster without writing or
// resampling anything: the name, the requested bands and the pixel budget
// at the output scale.
func (e Export) Check(r *raster.Raster) error {
	if e.Name == "" {
		return fmt.Errorf("export name is required")
	}
	bands := e.BandNames(r)
	for _, name := range bands {
		if r.Index(name) < 0 {
			return fmt.Errorf("band %s of export %s not found in %v", name, e.Name, r.BandNames())
		}
	}
	maxPixels := e.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if pixels := int64(e.grid(r.Grid).Size()) * int64(len(bands)); pixels > maxPixels {
		return fmt.Errorf("export %s has %d pixels, more than the allowed %d", e.Name, pixels, maxPixels)
	}
	return nil
}

// grid returns the output grid of the export for a raster on g.
func (e Export) grid(g raster.Grid) raster.Grid {
	if e.Scale <= 0 {
		return g
	}
	resolution := e.Scale
	if isGeographic(g.CRS) {
		resolution = e.Scale / metresPerDegree
	}
	return g.Rescale(resolution)
}

// prepare selects and resamples the raster as the export asks.
func (s *GeoTIFFSink) prepare(ctx context.Context, r *raster.Raster, e Export) (*raster.Raster, error) {
	if err := e.Check(r); err != nil {
		return nil, err
	}
	var err error
	if len(e.Bands) > 0 {
		if r, err = r.Select(e.Bands...); err != nil {
			return nil, err
		}
	}
	target := e.grid(r.Grid)
	if e.Categorical {
		r, err = raster.ResampleNearest(ctx, r, target, s.Tiles)
	} else {
		r, err = raster.ResampleBilinear(ctx, r, target, s.Tiles)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resample %s to %vm: %w", e.Name, e.Scale, err)
	}
	return r, nil
}

func (s *GeoTIFFSink) Write(ctx context.Context, r *raster.Raster, e Export) (string, error) {
	r, err := s.prepare(ctx, r, e)
	if err != nil {
		return "", err
	}

	folder := filepath.Join(s.Root, e.Folder)
	if err := os.MkdirAll(folder, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create result folder: %w", err)
	}
	path := filepath.Join(folder, e.Name+".tif")

	sentinel.RegisterDrivers()
	utils.WithGDALLock(func() {
		err = writeGeoTIFF(r, path, e.CloudOptimized)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func spatialRef(crs string) (*godal.SpatialRef, error) {
	if crs == "" {
		return godal.NewSpatialRefFromEPSG(4326)
	}
	if code, ok := strings.CutPrefix(crs, "EPSG:"); ok {
		epsg, err := strconv.Atoi(code)
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate system %s", crs)
		}
		return godal.NewSpatialRefFromEPSG(epsg)
	}
	return godal.NewSpatialRefFromWKT(crs)
}

func writeGeoTIFF(r *raster.Raster, path string, cloudOptimized bool) error {
	driver, name := godal.GTiff, path
	options := []string{"TILED=YES", "COMPRESS=DEFLATE"}
	if cloudOptimized {
		driver, name, options = godal.Memory, "", nil
	}

	ds, err := godal.Create(driver, name, len(r.Bands), godal.Float64, r.Grid.Width, r.Grid.Height,
		godal.CreationOption(options...))
	if err != nil {
		return err
	}
	defer ds.Close()

	if err := ds.SetGeoTransform(r.Grid.GeoTransform); err != nil {
		return err
	}
	sr, err := spatialRef(r.Grid.CRS)
	if err != nil {
		return err
	}
	defer sr.Close()
	if err := ds.SetSpatialRef(sr); err != nil {
		return err
	}

	buf := make([]float64, r.Grid.Size())
	for i, band := range ds.Bands() {
		src := r.Bands[i]
		for j, v := range src.Values {
			if src.Valid[j] {
				buf[j] = v
			} else {
				buf[j] = NoDataValue
			}
		}
		if err := band.SetNoData(NoDataValue); err != nil {
			return err
		}
		if err := band.SetDescription(src.Name); err != nil {
			return err
		}
		if err := band.Write(0, 0, buf, r.Grid.Width, r.Grid.Height); err != nil {
			return err
		}
	}

	if !cloudOptimized {
		return nil
	}
	cog, err := ds.Translate(path, []string{"-of", "COG", "-co", "COMPRESS=DEFLATE"})
	if err != nil {
		return err
	}
	return cog.Close()
}

// BandNames lists the bands an export would write.
func (e Export) BandNames(r *raster.Raster) []string {
	if len(e.Bands) > 0 {
		return slices.Clone(e.Bands)
	}
	return r.BandNames()
}
