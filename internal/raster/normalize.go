package raster

import (
	"context"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// DegenerateStatisticsError marks a band whose minimum equals its maximum
// (or that has no valid sample) so it cannot be rescaled.
type DegenerateStatisticsError struct {
	Band  string
	Value float64
	Count int
}

func (e *DegenerateStatisticsError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("band %s: no valid samples to compute statistics", e.Band)
	}
	return fmt.Sprintf("band %s: degenerate statistics, min == max == %g", e.Band, e.Value)
}

// MinMax is a partial range aggregate. Merge is commutative and associative
// so tiles can be combined in any order.
type MinMax struct {
	Min   float64
	Max   float64
	Count int
}

func EmptyMinMax() MinMax {
	return MinMax{Min: math.Inf(1), Max: math.Inf(-1)}
}

func (m MinMax) Add(v float64) MinMax {
	if v < m.Min {
		m.Min = v
	}
	if v > m.Max {
		m.Max = v
	}
	m.Count++
	return m
}

func (m MinMax) Merge(o MinMax) MinMax {
	return MinMax{
		Min:   math.Min(m.Min, o.Min),
		Max:   math.Max(m.Max, o.Max),
		Count: m.Count + o.Count,
	}
}

// StatsOptions configures region statistics. Step is the sampling stride in
// pixels: 1 reads every cell, larger values trade precision for speed.
type StatsOptions struct {
	ROI   orb.Geometry
	Step  int
	Tiles TileOptions
}

// RegionStats computes per band min/max over valid cells inside the region.
func RegionStats(ctx context.Context, r *Raster, opts StatsOptions) (map[string]MinMax, error) {
	step := max(opts.Step, 1)
	mask := ROIMask(r.Grid, opts.ROI)
	tiles := opts.Tiles.withDefaults()
	partials := make([][]MinMax, len(Tiles(r.Grid, tiles.Size)))

	err := ForEachTile(ctx, r.Grid, tiles, func(t Tile) error {
		part := make([]MinMax, len(r.Bands))
		for bi := range part {
			part[bi] = EmptyMinMax()
		}
		for y := t.Y0; y < t.Y1; y++ {
			if y%step != 0 {
				continue
			}
			for x := t.X0; x < t.X1; x++ {
				if x%step != 0 {
					continue
				}
				i := y*r.Grid.Width + x
				if !mask[i] {
					continue
				}
				for bi, b := range r.Bands {
					if b.Valid[i] && !math.IsNaN(b.Values[i]) {
						part[bi] = part[bi].Add(b.Values[i])
					}
				}
			}
		}
		partials[t.Index] = part
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats := make(map[string]MinMax, len(r.Bands))
	for bi, b := range r.Bands {
		total := EmptyMinMax()
		for _, part := range partials {
			if part != nil {
				total = total.Merge(part[bi])
			}
		}
		stats[b.Name] = total
	}
	return stats, nil
}

// Normalize rescales every band to [0,1] using region statistics. Bands with
// degenerate statistics are passed through unmodified and reported.
func Normalize(ctx context.Context, r *Raster, opts StatsOptions) (*Raster, []*DegenerateStatisticsError, error) {
	stats, err := RegionStats(ctx, r, opts)
	if err != nil {
		return nil, nil, err
	}

	var degenerate []*DegenerateStatisticsError
	bands := make([]Band, len(r.Bands))
	for bi, b := range r.Bands {
		s := stats[b.Name]
		if s.Count == 0 || s.Max <= s.Min {
			degenerate = append(degenerate, &DegenerateStatisticsError{Band: b.Name, Value: s.Min, Count: s.Count})
			bands[bi] = b
			continue
		}
		span := s.Max - s.Min
		out := Band{Name: b.Name, Values: make([]float64, len(b.Values)), Valid: b.Valid}
		err := ForEachTile(ctx, r.Grid, opts.Tiles, func(t Tile) error {
			for y := t.Y0; y < t.Y1; y++ {
				for x := t.X0; x < t.X1; x++ {
					i := y*r.Grid.Width + x
					if !b.Valid[i] {
						continue
					}
					// sampled statistics may miss the true extremes
					out.Values[i] = math.Min(1, math.Max(0, (b.Values[i]-s.Min)/span))
				}
			}
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
		bands[bi] = out
	}

	normalized, err := New(r.Grid, bands...)
	if err != nil {
		return nil, nil, err
	}
	return normalized, degenerate, nil
}
