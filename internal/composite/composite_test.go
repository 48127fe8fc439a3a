package composite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/forest-guardian/landcover-classifier/internal/raster"
	"github.com/forest-guardian/landcover-classifier/internal/sentinel"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	observations []raster.Observation
	queries      []sentinel.Query
}

func (f *fakeSource) Observations(_ context.Context, q sentinel.Query) ([]raster.Observation, error) {
	f.queries = append(f.queries, q)
	return f.observations, nil
}

var testGrid = raster.Grid{Width: 2, Height: 2, GeoTransform: [6]float64{0, 1, 0, 2, 0, -1}}

func day(m time.Month, d int) time.Time {
	return time.Date(2022, m, d, 10, 0, 0, 0, time.UTC)
}

func constBand(name string, v float64) raster.Band {
	b := raster.NewBand(name, testGrid.Size())
	for i := range b.Values {
		b.Values[i] = v
		b.Valid[i] = true
	}
	return b
}

func opticalObs(t *testing.T, at time.Time, cloud, value, qa float64) raster.Observation {
	t.Helper()
	bands := []raster.Band{}
	for _, name := range sentinel.OpticalBands {
		bands = append(bands, constBand(name, value))
	}
	bands = append(bands, constBand(sentinel.BandQA, qa))
	r, err := raster.New(testGrid, bands...)
	require.NoError(t, err)
	return raster.Observation{Raster: r, Time: at, Sensor: sentinel.SensorOptical, QualityBand: sentinel.BandQA, CloudPercentage: cloud}
}

func radarObs(t *testing.T, at time.Time, value float64) raster.Observation {
	t.Helper()
	r, err := raster.New(testGrid, constBand(sentinel.BandVV, value))
	require.NoError(t, err)
	return raster.Observation{Raster: r, Time: at, Sensor: sentinel.SensorRadar}
}

func TestOpticalMedianComposite(t *testing.T) {
	source := &fakeSource{observations: []raster.Observation{
		opticalObs(t, day(8, 1), 5, 0.1, 0),
		opticalObs(t, day(8, 11), 10, 0.3, 0),
		opticalObs(t, day(8, 21), 15, 0.2, 0),
		opticalObs(t, day(8, 25), 80, 0.9, 0),  // above threshold
		opticalObs(t, day(9, 5), 1, 0.9, 1024), // fully cloudy
		opticalObs(t, day(12, 31), 1, 0.9, 0),  // outside window
	}}
	c := &Compositor{OpticalSource: source, CloudThreshold: 30}

	composite, err := c.Optical(context.Background(), Window{Start: day(8, 1).Truncate(24 * time.Hour), End: day(12, 1)})
	require.NoError(t, err)
	assert.Equal(t, sentinel.OpticalBands, composite.BandNames())

	red, _ := composite.Band(sentinel.BandRed)
	for i := range red.Values {
		assert.True(t, red.Valid[i])
		assert.InDelta(t, 0.2, red.Values[i], 1e-12)
	}
	require.Len(t, source.queries, 1)
	assert.Equal(t, sentinel.SensorOptical, source.queries[0].Sensor)
	assert.Equal(t, 30.0, source.queries[0].MaxCloud)
}

func TestOpticalZeroCloudThresholdKeepsEveryScene(t *testing.T) {
	source := &fakeSource{observations: []raster.Observation{
		opticalObs(t, day(8, 1), 5, 0.1, 0),
		opticalObs(t, day(8, 11), 90, 0.3, 0),
		opticalObs(t, day(8, 21), 100, 0.5, 0),
	}}
	c := &Compositor{OpticalSource: source}

	composite, err := c.Optical(context.Background(), Window{Start: day(7, 1), End: day(9, 1)})
	require.NoError(t, err)
	red, _ := composite.Band(sentinel.BandRed)
	assert.InDelta(t, 0.3, red.Values[0], 1e-12)
	require.Len(t, source.queries, 1)
	assert.Equal(t, 0.0, source.queries[0].MaxCloud)
}

func TestOpticalCellWithoutClearObservationStaysInvalid(t *testing.T) {
	obs := opticalObs(t, day(8, 1), 5, 0.1, 0)
	qa := obs.Raster.Bands[len(obs.Raster.Bands)-1]
	qa.Values = []float64{0, 2048, 0, 0}
	obs.Raster.Bands[len(obs.Raster.Bands)-1] = qa

	c := &Compositor{OpticalSource: &fakeSource{observations: []raster.Observation{obs}}}
	composite, err := c.Optical(context.Background(), Window{Start: day(7, 1), End: day(9, 1)})
	require.NoError(t, err)
	assert.Equal(t, 3, composite.ValidCount())
	assert.False(t, composite.CellValid(1))
}

func TestOpticalClipsToRegion(t *testing.T) {
	c := &Compositor{
		OpticalSource: &fakeSource{observations: []raster.Observation{opticalObs(t, day(8, 1), 5, 0.1, 0)}},
		ROI:           orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 2}},
	}
	composite, err := c.Optical(context.Background(), Window{Start: day(7, 1), End: day(9, 1)})
	require.NoError(t, err)
	assert.True(t, composite.CellValid(0))
	assert.False(t, composite.CellValid(1))
	assert.True(t, composite.CellValid(2))
	assert.False(t, composite.CellValid(3))
}

func TestOpticalInsufficientData(t *testing.T) {
	c := &Compositor{OpticalSource: &fakeSource{observations: []raster.Observation{
		opticalObs(t, day(8, 1), 50, 0.1, 0),
	}}}
	w := Window{Start: day(7, 1), End: day(9, 1)}
	_, err := c.Optical(context.Background(), w)

	var insufficient *InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, sentinel.SensorOptical, insufficient.Source)
	assert.Equal(t, w.Start, insufficient.Start)
}

func TestRadarMonthlyMeans(t *testing.T) {
	source := &fakeSource{observations: []raster.Observation{
		radarObs(t, day(1, 3), -10),
		radarObs(t, day(1, 15), -14),
		radarObs(t, day(6, 9), -8),
		radarObs(t, day(12, 2), -20),
		radarObs(t, day(12, 26), -18),
		radarObs(t, day(3, 1), 0),
	}}
	c := &Compositor{RadarSource: source}

	stack, err := c.Radar(context.Background(), MonthWindows(2022, time.January, time.June, time.December))
	require.NoError(t, err)
	assert.Equal(t, []string{"VV_2022-01", "VV_2022-06", "VV_2022-12"}, stack.BandNames())

	for name, want := range map[string]float64{"VV_2022-01": -12, "VV_2022-06": -8, "VV_2022-12": -19} {
		b, ok := stack.Band(name)
		require.True(t, ok)
		assert.InDelta(t, want, b.Values[0], 1e-12, name)
	}
	assert.Len(t, source.queries, 3)
	for _, q := range source.queries {
		assert.Equal(t, sentinel.SensorRadar, q.Sensor)
	}
}

func TestRadarEmptyWindow(t *testing.T) {
	c := &Compositor{RadarSource: &fakeSource{observations: []raster.Observation{radarObs(t, day(1, 3), -10)}}}
	_, err := c.Radar(context.Background(), MonthWindows(2022, time.January, time.June))

	var insufficient *InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, sentinel.SensorRadar, insufficient.Source)
	assert.Equal(t, time.June, insufficient.Start.Month())
}

func TestRadarRejectsOverlappingWindows(t *testing.T) {
	c := &Compositor{RadarSource: &fakeSource{}}
	_, err := c.Radar(context.Background(), []Window{
		{Start: day(1, 1), End: day(2, 1)},
		{Start: day(1, 15), End: day(3, 1)},
	})
	assert.Error(t, err)
}

func TestFuseResamplesRadar(t *testing.T) {
	optical, err := raster.New(testGrid, constBand(sentinel.BandRed, 0.1))
	require.NoError(t, err)

	coarse := raster.Grid{Width: 1, Height: 1, GeoTransform: [6]float64{0, 2, 0, 2, 0, -2}}
	vv := raster.NewBand("VV_2022-01", 1)
	vv.Values[0], vv.Valid[0] = -12, true
	radar, err := raster.New(coarse, vv)
	require.NoError(t, err)

	fused, err := Fuse(context.Background(), optical, radar, raster.TileOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{sentinel.BandRed, "VV_2022-01"}, fused.BandNames())
	assert.True(t, fused.Grid.SameAs(testGrid))
	b, _ := fused.Band("VV_2022-01")
	for i := range b.Values {
		assert.True(t, b.Valid[i])
		assert.InDelta(t, -12, b.Values[i], 1e-12)
	}
}

func TestFuseResamplesCoarserOptical(t *testing.T) {
	coarse := raster.Grid{Width: 1, Height: 1, GeoTransform: [6]float64{0, 2, 0, 2, 0, -2}}
	red := raster.NewBand(sentinel.BandRed, 1)
	red.Values[0], red.Valid[0] = 0.1, true
	optical, err := raster.New(coarse, red)
	require.NoError(t, err)

	vv := raster.NewBand("VV_2022-01", testGrid.Size())
	for i := range vv.Values {
		vv.Values[i], vv.Valid[i] = float64(-10-i), true
	}
	radar, err := raster.New(testGrid, vv)
	require.NoError(t, err)

	fused, err := Fuse(context.Background(), optical, radar, raster.TileOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{sentinel.BandRed, "VV_2022-01"}, fused.BandNames())
	assert.True(t, fused.Grid.SameAs(testGrid), "fused raster keeps the finer radar grid")

	b, _ := fused.Band("VV_2022-01")
	assert.Equal(t, vv.Values, b.Values)
	r, _ := fused.Band(sentinel.BandRed)
	for i := range r.Values {
		assert.True(t, r.Valid[i])
		assert.InDelta(t, 0.1, r.Values[i], 1e-12)
	}
}

func TestFuseRejectsBandCollision(t *testing.T) {
	a, err := raster.New(testGrid, constBand("VV_2022-01", 1))
	require.NoError(t, err)
	_, err = Fuse(context.Background(), a, a, raster.TileOptions{})
	assert.ErrorContains(t, err, "VV_2022-01")
}

func TestReduceRequiresBands(t *testing.T) {
	a := radarObs(t, day(1, 1), 1)
	b := opticalObs(t, day(1, 2), 0, 1, 0)
	_, err := Reduce(context.Background(), []raster.Observation{a, b}, Mean, raster.TileOptions{})
	assert.Error(t, err)
}

func TestParseMonths(t *testing.T) {
	windows, err := ParseMonths("2022-01, 2022-06,2022-12")
	require.NoError(t, err)
	require.Len(t, windows, 3)
	assert.Equal(t, "2022-06", windows[1].Name())
	assert.Equal(t, time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC), windows[1].End)

	_, err = ParseMonths("2022-13")
	assert.Error(t, err)
}
