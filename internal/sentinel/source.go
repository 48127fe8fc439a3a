package sentinel

import (
	"context"
	"time"

	"github.com/forest-guardian/landcover-classifier/internal/raster"
	"github.com/paulmach/orb"
)

// Query selects observations of one sensor over a region and a half-open
// date range [Start, End).
type Query struct {
	ROI    orb.Geometry
	Start  time.Time
	End    time.Time
	Sensor string
	// MaxCloud is the maximum scene cloud percentage. Zero disables the filter.
	MaxCloud float64
	// Scale is the requested pixel size in metres.
	Scale float64
}

// Contains reports whether t falls in the query date range.
func (q Query) Contains(t time.Time) bool {
	return !t.Before(q.Start) && t.Before(q.End)
}

// Source yields time-ordered observations. Implementations may pre-filter by
// cloud cover and region; callers must not rely on it.
type Source interface {
	Observations(ctx context.Context, q Query) ([]raster.Observation, error)
}
