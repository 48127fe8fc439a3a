package composite

import (
	"context"
	"fmt"

	"github.com/forest-guardian/landcover-classifier/internal/raster"
	"github.com/forest-guardian/landcover-classifier/internal/sentinel"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
)

const DefaultCloudThreshold = 30

// Compositor reduces optical and radar time series over a region.
type Compositor struct {
	OpticalSource sentinel.Source
	RadarSource   sentinel.Source
	ROI           orb.Geometry
	// CloudThreshold drops optical scenes whose cloud percentage is not below
	// it. Zero keeps every scene.
	CloudThreshold float64
	// Bands kept in the optical composite, sentinel.OpticalBands when empty.
	Bands []string
	Scale float64
	Tiles raster.TileOptions
}

func (c *Compositor) query(sensor string, w Window, maxCloud float64) sentinel.Query {
	return sentinel.Query{
		ROI:      c.ROI,
		Start:    w.Start,
		End:      w.End,
		Sensor:   sensor,
		MaxCloud: maxCloud,
		Scale:    c.Scale,
	}
}

// filter keeps the observations acquired inside the window that overlap the
// region and pass the cloud threshold. Sources may already filter; this does
// not rely on it.
func (c *Compositor) filter(observations []raster.Observation, w Window, maxCloud float64) []raster.Observation {
	var kept []raster.Observation
	for _, obs := range observations {
		if obs.Raster == nil || !w.Contains(obs.Time) {
			continue
		}
		if !raster.Intersects(obs.Raster.Grid, c.ROI) {
			continue
		}
		if maxCloud > 0 && obs.CloudPercentage >= maxCloud {
			continue
		}
		kept = append(kept, obs)
	}
	return kept
}

// Optical builds the cloud-masked median composite of the window, restricted
// to the configured bands and clipped to the region.
func (c *Compositor) Optical(ctx context.Context, w Window) (*raster.Raster, error) {
	if c.OpticalSource == nil {
		return nil, fmt.Errorf("no optical source configured")
	}
	observations, err := c.OpticalSource.Observations(ctx, c.query(sentinel.SensorOptical, w, c.CloudThreshold))
	if err != nil {
		return nil, fmt.Errorf("failed to query optical observations: %w", err)
	}
	observations = c.filter(observations, w, c.CloudThreshold)
	if len(observations) == 0 {
		return nil, &InsufficientDataError{Source: sentinel.SensorOptical, Start: w.Start, End: w.End}
	}

	masked := make([]raster.Observation, len(observations))
	for i, obs := range observations {
		masked[i], err = sentinel.MaskClouds(obs)
		if err != nil {
			return nil, err
		}
	}

	composite, err := Reduce(ctx, masked, Median, c.Tiles)
	if err != nil {
		return nil, err
	}
	bands := c.Bands
	if len(bands) == 0 {
		bands = sentinel.OpticalBands
	}
	composite, err = composite.Select(bands...)
	if err != nil {
		return nil, err
	}
	return raster.Clip(composite, c.ROI)
}

// Radar builds one mean VV band per window, named VV_<YYYY-MM>. Windows must
// be disjoint. The result is clipped to the region.
func (c *Compositor) Radar(ctx context.Context, windows []Window) (*raster.Raster, error) {
	if c.RadarSource == nil {
		return nil, fmt.Errorf("no radar source configured")
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("at least one radar window is required")
	}
	if err := checkDisjoint(windows); err != nil {
		return nil, err
	}

	layers := make([]*raster.Raster, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for i, w := range windows {
		g.Go(func() error {
			observations, err := c.RadarSource.Observations(gctx, c.query(sentinel.SensorRadar, w, 0))
			if err != nil {
				return fmt.Errorf("failed to query radar observations for %s: %w", w.Name(), err)
			}
			observations = c.filter(observations, w, 0)
			if len(observations) == 0 {
				return &InsufficientDataError{Source: sentinel.SensorRadar, Start: w.Start, End: w.End}
			}
			for j, obs := range observations {
				if observations[j].Raster, err = obs.Raster.Select(sentinel.BandVV); err != nil {
					return err
				}
			}
			mean, err := Reduce(gctx, observations, Mean, c.Tiles)
			if err != nil {
				return err
			}
			band := mean.Bands[0]
			band.Name = sentinel.BandVV + "_" + w.Name()
			layers[i], err = raster.New(mean.Grid, band)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stack := layers[0]
	for _, layer := range layers[1:] {
		if !layer.Grid.SameAs(stack.Grid) {
			var err error
			if layer, err = raster.ResampleBilinear(ctx, layer, stack.Grid, c.Tiles); err != nil {
				return nil, err
			}
		}
		var err error
		if stack, err = stack.Concat(layer); err != nil {
			return nil, err
		}
	}
	return raster.Clip(stack, c.ROI)
}
