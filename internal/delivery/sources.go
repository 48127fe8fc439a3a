package delivery

import (
	"fmt"
	"time"

	"github.com/forest-guardian/landcover-classifier/internal/cache"
	"github.com/forest-guardian/landcover-classifier/internal/properties"
	"github.com/forest-guardian/landcover-classifier/internal/sentinel"
)

const catalogCacheTTL = 24 * time.Hour

// NewSource builds the raster source named by the configuration.
func NewSource(cfg properties.Config, progress bool) (sentinel.Source, error) {
	switch cfg.Source {
	case properties.SourceDirectory:
		return sentinel.NewDirectorySource(cfg.ImageDir), nil
	case properties.SourceCopernicus:
		return &sentinel.CopernicusSource{
			Client: &sentinel.CopernicusClient{
				BaseURL:       cfg.CopernicusBaseURL,
				TokenURL:      cfg.CopernicusTokenURL,
				ClientIDs:     cfg.CopernicusClientIDs,
				ClientSecrets: cfg.CopernicusClientSecrets,
				Retries:       3,
				RetryDelay:    5 * time.Second,
			},
			ImageDir: cfg.ImageDir,
			Catalog:  cache.NewDisk[[]sentinel.Scene](cfg.CacheDir, catalogCacheTTL),
			Progress: progress,
		}, nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}
