package sentinel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/forest-guardian/landcover-classifier/internal/raster"
	"github.com/forest-guardian/landcover-classifier/internal/utils"
)

// image files are named <sensor>_<YYYY-MM-DD>[_cc<cloud percentage>].tif
var imageNamePattern = regexp.MustCompile(`^(.+)_(\d{4}-\d{2}-\d{2})(?:_cc(\d+(?:\.\d+)?))?\.tiff?$`)

// DefaultBandNames maps a sensor to the band order used when GeoTIFF band
// descriptions are missing.
var DefaultBandNames = map[string][]string{
	SensorOptical: {BandBlue, BandGreen, BandRed, BandNIR, BandSWIR1, BandQA},
	SensorRadar:   {BandVV},
}

// DirectorySource reads observations from GeoTIFF files stored in one folder.
type DirectorySource struct {
	Dir string
}

func NewDirectorySource(dir string) *DirectorySource {
	return &DirectorySource{Dir: dir}
}

type imageFile struct {
	path  string
	cloud float64
	known bool
}

func (s *DirectorySource) list(sensor string) (map[time.Time]imageFile, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("error reading image folder: %w", err)
	}
	files := make(map[time.Time]imageFile)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := imageNamePattern.FindStringSubmatch(entry.Name())
		if m == nil || m[1] != sensor {
			continue
		}
		date, err := time.Parse("2006-01-02", m[2])
		if err != nil {
			continue
		}
		f := imageFile{path: filepath.Join(s.Dir, entry.Name())}
		if m[3] != "" {
			f.cloud, _ = strconv.ParseFloat(m[3], 64)
			f.known = true
		}
		files[date] = f
	}
	return files, nil
}

func (s *DirectorySource) Observations(ctx context.Context, q Query) ([]raster.Observation, error) {
	files, err := s.list(q.Sensor)
	if err != nil {
		return nil, err
	}

	var observations []raster.Observation
	for _, date := range utils.GetSortedKeys(files, true) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !q.Contains(date) {
			continue
		}
		f := files[date]
		if f.known && q.MaxCloud > 0 && f.cloud >= q.MaxCloud {
			continue
		}

		r, err := ReadRaster(f.path, DefaultBandNames[q.Sensor])
		if err != nil {
			return nil, err
		}
		if !raster.Intersects(r.Grid, q.ROI) {
			continue
		}

		obs := raster.Observation{Raster: r, Time: date, Sensor: q.Sensor, CloudPercentage: f.cloud}
		if _, ok := r.Band(BandQA); ok {
			obs.QualityBand = BandQA
			if !f.known {
				obs.CloudPercentage = CloudFraction(obs) * 100
			}
		}
		observations = append(observations, obs)
	}
	return observations, nil
}
