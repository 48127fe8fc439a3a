package sentinel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/forest-guardian/landcover-classifier/internal/cache"
	"github.com/forest-guardian/landcover-classifier/internal/raster"
	"github.com/forest-guardian/landcover-classifier/internal/utils"
	"github.com/schollz/progressbar/v3"
)

// CopernicusSource downloads daily mosaics from the Copernicus Data Space and
// keeps them in ImageDir using the DirectorySource naming scheme, so a later
// run can read the same files offline.
type CopernicusSource struct {
	Client   *CopernicusClient
	ImageDir string
	Catalog  cache.Cache[[]Scene]
	Progress bool
}

func (s *CopernicusSource) scenes(ctx context.Context, q Query) ([]Scene, error) {
	b := q.ROI.Bound()
	var key string
	if s.Catalog != nil {
		key = s.Catalog.Key(q.Sensor, b.Min, b.Max, q.Start.Unix(), q.End.Unix())
		if scenes, ok := s.Catalog.Get(key); ok {
			return scenes, nil
		}
	}
	scenes, err := s.Client.SearchCatalog(ctx, q.Sensor, q.ROI, q.Start, q.End)
	if err != nil {
		return nil, err
	}
	if s.Catalog != nil {
		if err := s.Catalog.Put(key, scenes); err != nil {
			fmt.Printf("Warning: failed to cache catalog search: %v\n", err)
		}
	}
	return scenes, nil
}

// dailyScenes keeps one entry per acquisition day with the lowest cloud
// percentage among the scenes of that day that pass the threshold.
func dailyScenes(scenes []Scene, q Query) map[time.Time]float64 {
	days := make(map[time.Time]float64)
	for _, scene := range scenes {
		if !q.Contains(scene.Time) {
			continue
		}
		if q.MaxCloud > 0 && scene.CloudPercentage >= q.MaxCloud {
			continue
		}
		day := time.Date(scene.Time.Year(), scene.Time.Month(), scene.Time.Day(), 0, 0, 0, 0, time.UTC)
		if cloud, ok := days[day]; !ok || scene.CloudPercentage < cloud {
			days[day] = scene.CloudPercentage
		}
	}
	return days
}

func (s *CopernicusSource) Observations(ctx context.Context, q Query) ([]raster.Observation, error) {
	if q.ROI == nil {
		return nil, fmt.Errorf("a region of interest is required to query %s", q.Sensor)
	}
	scenes, err := s.scenes(ctx, q)
	if err != nil {
		return nil, err
	}
	days := dailyScenes(scenes, q)

	if err := os.MkdirAll(s.ImageDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", s.ImageDir, err)
	}

	var bar *progressbar.ProgressBar
	if s.Progress {
		bar = progressbar.Default(int64(len(days)), "Downloading "+q.Sensor)
	} else {
		bar = progressbar.DefaultSilent(int64(len(days)))
	}
	defer bar.Finish()

	var observations []raster.Observation
	for _, day := range utils.GetSortedKeys(days, true) {
		cloud := days[day]
		fileName := filepath.Join(s.ImageDir, fmt.Sprintf("%s_%s_cc%s.tif",
			q.Sensor, day.Format("2006-01-02"), strconv.FormatFloat(cloud, 'f', 2, 64)))

		if _, err := os.Stat(fileName); err != nil {
			imageBytes, err := s.Client.RequestImage(ctx, q.Sensor, day, day.Add(24*time.Hour), q.ROI, q.Scale)
			if err != nil {
				return nil, fmt.Errorf("error requesting %s image for %s: %w", q.Sensor, day.Format("2006-01-02"), err)
			}
			if err := os.WriteFile(fileName, imageBytes, 0644); err != nil {
				return nil, fmt.Errorf("failed to write image file: %w", err)
			}
		}

		r, err := ReadRaster(fileName, DefaultBandNames[q.Sensor])
		if err != nil {
			return nil, err
		}
		obs := raster.Observation{Raster: r, Time: day, Sensor: q.Sensor, CloudPercentage: cloud}
		if _, ok := r.Band(BandQA); ok {
			obs.QualityBand = BandQA
		}
		observations = append(observations, obs)
		bar.Add(1)
	}
	return observations, nil
}
