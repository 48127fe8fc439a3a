package sentinel

import (
	"fmt"
	"math"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/forest-guardian/landcover-classifier/internal/raster"
	"github.com/forest-guardian/landcover-classifier/internal/utils"
)

var registerOnce sync.Once

// RegisterDrivers registers the GDAL drivers once per process.
func RegisterDrivers() {
	registerOnce.Do(godal.RegisterAll)
}

func gdalErrLogger() godal.OpenOption {
	return godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			return nil
		}
		return fmt.Errorf("gdal error %d: %s", code, msg)
	})
}

// ReadRaster opens a GeoTIFF and converts it to a Raster. Band names are taken
// from the band descriptions, then from names for bands without one.
func ReadRaster(path string, names []string) (*raster.Raster, error) {
	RegisterDrivers()
	var (
		r   *raster.Raster
		err error
	)
	utils.WithGDALLock(func() {
		r, err = readRaster(path, names)
	})
	return r, err
}

func readRaster(path string, names []string) (*raster.Raster, error) {
	ds, err := godal.Open(path, gdalErrLogger())
	if err != nil {
		return nil, fmt.Errorf("failed to open TIFF file %s: %w", path, err)
	}
	defer ds.Close()

	grid, err := datasetGrid(ds)
	if err != nil {
		return nil, fmt.Errorf("failed to read georeferencing of %s: %w", path, err)
	}

	bands := ds.Bands()
	out := make([]raster.Band, len(bands))
	for i, band := range bands {
		name := bandName(band.Description(), i, names)

		data := make([]float64, grid.Size())
		if err := band.Read(0, 0, data, grid.Width, grid.Height); err != nil {
			return nil, fmt.Errorf("failed to read band %s of %s: %w", name, path, err)
		}
		nodata, hasNoData := band.NoData()
		valid := make([]bool, len(data))
		for j, v := range data {
			valid[j] = !math.IsNaN(v) && !(hasNoData && v == nodata)
		}
		out[i] = raster.Band{Name: name, Values: data, Valid: valid}
	}

	return raster.New(grid, out...)
}

func bandName(description string, i int, names []string) string {
	switch {
	case description != "":
		return description
	case i < len(names) && names[i] != "":
		return names[i]
	default:
		return fmt.Sprintf("band_%d", i+1)
	}
}

func datasetGrid(ds *godal.Dataset) (raster.Grid, error) {
	st := ds.Structure()
	gt, err := ds.GeoTransform()
	if err != nil {
		return raster.Grid{}, err
	}
	grid := raster.Grid{Width: st.SizeX, Height: st.SizeY, GeoTransform: gt}
	if sr := ds.SpatialRef(); sr != nil {
		if wkt, err := sr.WKT(); err == nil {
			grid.CRS = wkt
		}
	}
	return grid, nil
}
