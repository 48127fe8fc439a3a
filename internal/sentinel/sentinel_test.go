package sentinel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forest-guardian/landcover-classifier/internal/cache"
	"github.com/forest-guardian/landcover-classifier/internal/raster"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grid(w, h int) raster.Grid {
	return raster.Grid{Width: w, Height: h, GeoTransform: [6]float64{0, 1, 0, float64(h), 0, -1}}
}

func band(name string, values ...float64) raster.Band {
	b := raster.NewBand(name, len(values))
	for i, v := range values {
		b.Values[i] = v
		b.Valid[i] = true
	}
	return b
}

func TestMaskClouds(t *testing.T) {
	r, err := raster.New(grid(4, 1),
		band(BandRed, 10, 20, 30, 40),
		band(BandQA, 0, 1024, 2048, 3072),
	)
	require.NoError(t, err)
	obs := raster.Observation{Raster: r, QualityBand: BandQA}

	masked, err := MaskClouds(obs)
	require.NoError(t, err)

	red, ok := masked.Raster.Band(BandRed)
	require.True(t, ok)
	assert.Equal(t, []bool{true, false, false, false}, red.Valid)
	assert.Equal(t, []float64{10, 20, 30, 40}, red.Values)
	_, hasQA := masked.Raster.Band(BandQA)
	assert.False(t, hasQA)

	original, _ := obs.Raster.Band(BandRed)
	assert.Equal(t, []bool{true, true, true, true}, original.Valid)
	assert.InDelta(t, 0.75, CloudFraction(obs), 1e-9)
}

func TestMaskCloudsIgnoresOtherBits(t *testing.T) {
	r, err := raster.New(grid(2, 1), band(BandRed, 1, 2), band(BandQA, 512, 4096))
	require.NoError(t, err)
	masked, err := MaskClouds(raster.Observation{Raster: r, QualityBand: BandQA})
	require.NoError(t, err)
	assert.Equal(t, 2, masked.Raster.ValidCount())
}

func TestMaskCloudsAllCloudy(t *testing.T) {
	r, err := raster.New(grid(2, 1), band(BandRed, 1, 2), band(BandQA, 1024, 1024))
	require.NoError(t, err)
	masked, err := MaskClouds(raster.Observation{Raster: r, QualityBand: BandQA})
	require.NoError(t, err)
	assert.Equal(t, 0, masked.Raster.ValidCount())
}

func TestMaskCloudsWithoutQualityBand(t *testing.T) {
	r, err := raster.New(grid(1, 1), band(BandRed, 1))
	require.NoError(t, err)
	_, err = MaskClouds(raster.Observation{Raster: r})
	assert.Error(t, err)
}

func TestAddIndices(t *testing.T) {
	r, err := raster.New(grid(3, 1),
		band(BandBlue, 0.05, 0, 0.3),
		band(BandRed, 0.04, 0, 0.2),
		band(BandNIR, 0.40, 0, 0.1),
		band(BandSWIR1, 0.15, 0, 0.4),
	)
	require.NoError(t, err)

	out, err := AddIndices(r)
	require.NoError(t, err)
	assert.Equal(t, []string{BandBlue, BandRed, BandNIR, BandSWIR1, BandNDVI, BandBSI}, out.BandNames())

	ndvi, _ := out.Band(BandNDVI)
	bsi, _ := out.Band(BandBSI)
	assert.InDelta(t, (0.40-0.04)/(0.40+0.04), ndvi.Values[0], 1e-12)
	assert.InDelta(t, ((0.15+0.04)-(0.40+0.05))/((0.15+0.04)+(0.40+0.05)), bsi.Values[0], 1e-12)

	assert.False(t, ndvi.Valid[1], "zero denominator must be invalid")
	assert.False(t, bsi.Valid[1])

	for i := range ndvi.Values {
		if ndvi.Valid[i] {
			assert.GreaterOrEqual(t, ndvi.Values[i], -1.0)
			assert.LessOrEqual(t, ndvi.Values[i], 1.0)
		}
		if bsi.Valid[i] {
			assert.GreaterOrEqual(t, bsi.Values[i], -1.0)
			assert.LessOrEqual(t, bsi.Values[i], 1.0)
		}
	}
}

func TestAddIndicesPropagatesNodata(t *testing.T) {
	r, err := raster.New(grid(1, 1), band(BandBlue, 1), band(BandRed, 1), band(BandNIR, 2), band(BandSWIR1, 1))
	require.NoError(t, err)
	r.Bands[1].Valid[0] = false
	out, err := AddIndices(r)
	require.NoError(t, err)
	ndvi, _ := out.Band(BandNDVI)
	assert.False(t, ndvi.Valid[0])
}

func TestAddIndicesRejectsOutOfRangeResults(t *testing.T) {
	r, err := raster.New(grid(2, 1),
		band(BandBlue, 0.1, 0.1),
		band(BandRed, -0.05, 0.05),
		band(BandNIR, 0.1, 0.3),
		band(BandSWIR1, -0.3, 0.2),
	)
	require.NoError(t, err)

	out, err := AddIndices(r)
	require.NoError(t, err)
	ndvi, _ := out.Band(BandNDVI)
	bsi, _ := out.Band(BandBSI)

	assert.False(t, ndvi.Valid[0], "ndvi of nir=0.1 red=-0.05 is 3")
	assert.False(t, bsi.Valid[0], "bsi of a=-0.35 b=0.2 is outside [-1, 1]")
	assert.True(t, ndvi.Valid[1])
	assert.True(t, bsi.Valid[1])
	assert.InDelta(t, 0.25/0.35, ndvi.Values[1], 1e-12)
}

func TestBandNamePrefersDescriptions(t *testing.T) {
	names := []string{BandBlue, BandGreen}
	assert.Equal(t, "B8", bandName("B8", 0, names))
	assert.Equal(t, BandGreen, bandName("", 1, names))
	assert.Equal(t, "band_3", bandName("", 2, names))
	assert.Equal(t, "band_1", bandName("", 0, []string{""}))
}

func TestAddIndicesMissingBand(t *testing.T) {
	r, err := raster.New(grid(1, 1), band(BandRed, 1))
	require.NoError(t, err)
	_, err = AddIndices(r)
	assert.ErrorContains(t, err, BandNIR)
}

func TestCalculatePixels(t *testing.T) {
	assert.Equal(t, 1, calculatePixels(0, 10))
	assert.InDelta(t, 111, calculatePixels(0.01, 10), 1)
	assert.Equal(t, maxPixels, calculatePixels(10, 10))
}

func TestBuildProcessRequestRadarFilters(t *testing.T) {
	roi := orb.Polygon{orb.Ring{{0, 0}, {0.01, 0}, {0.01, 0.01}, {0, 0.01}, {0, 0}}}
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	body, err := buildProcessRequest(SensorRadar, start, start.AddDate(0, 1, 0), roi, 10)
	require.NoError(t, err)

	var payload struct {
		Input struct {
			Data []struct {
				Type       string                 `json:"type"`
				DataFilter map[string]interface{} `json:"dataFilter"`
			} `json:"data"`
		} `json:"input"`
		Output struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"output"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Len(t, payload.Input.Data, 1)
	assert.Equal(t, SensorRadar, payload.Input.Data[0].Type)
	assert.Equal(t, "IW", payload.Input.Data[0].DataFilter["acquisitionMode"])
	assert.Equal(t, "DESCENDING", payload.Input.Data[0].DataFilter["orbitDirection"])
	assert.InDelta(t, 111, payload.Output.Width, 1)
}

func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/api/v1/catalog/1.0.0/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if _, ok := req["next"]; !ok {
			w.Write([]byte(`{"features":[
				{"id":"a","properties":{"datetime":"2022-08-03T13:00:00Z","eo:cloud_cover":12.5}},
				{"id":"b","properties":{"datetime":"2022-08-03T13:00:05Z","eo:cloud_cover":40}}
			],"context":{"next":1}}`))
			return
		}
		w.Write([]byte(`{"features":[
			{"id":"c","properties":{"datetime":"2022-08-10T13:00:00Z","eo:cloud_cover":55}}
		],"context":{}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchCatalogFollowsPages(t *testing.T) {
	srv := newCatalogServer(t)
	client := &CopernicusClient{BaseURL: srv.URL, TokenURL: srv.URL + "/token", ClientIDs: []string{"id"}, ClientSecrets: []string{"secret"}}

	roi := orb.Bound{Min: orb.Point{-47, -22}, Max: orb.Point{-46.9, -21.9}}
	start := time.Date(2022, 8, 1, 0, 0, 0, 0, time.UTC)
	scenes, err := client.SearchCatalog(context.Background(), SensorOptical, roi, start, start.AddDate(0, 3, 0))
	require.NoError(t, err)
	require.Len(t, scenes, 3)
	assert.Equal(t, "a", scenes[0].ID)
	assert.Equal(t, 12.5, scenes[0].CloudPercentage)
	assert.Equal(t, "c", scenes[2].ID)
}

func TestSearchCatalogRequiresCredentials(t *testing.T) {
	client := &CopernicusClient{}
	_, err := client.SearchCatalog(context.Background(), SensorOptical, orb.Bound{}, time.Now(), time.Now())
	assert.Error(t, err)
}

func TestCopernicusSourceUsesCatalogCache(t *testing.T) {
	srv := newCatalogServer(t)
	catalog := cache.NewDisk[[]Scene](t.TempDir(), 0)
	source := &CopernicusSource{
		Client:  &CopernicusClient{BaseURL: srv.URL, TokenURL: srv.URL + "/token", ClientIDs: []string{"id"}, ClientSecrets: []string{"secret"}},
		Catalog: catalog,
	}
	start := time.Date(2022, 8, 1, 0, 0, 0, 0, time.UTC)
	q := Query{ROI: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}, Start: start, End: start.AddDate(0, 3, 0), Sensor: SensorOptical}

	first, err := source.scenes(context.Background(), q)
	require.NoError(t, err)

	srv.Close()
	second, err := source.scenes(context.Background(), q)
	require.NoError(t, err, "second lookup must be served from the cache")
	assert.Len(t, second, len(first))
}

func TestDailyScenesKeepsClearestScenePerDay(t *testing.T) {
	start := time.Date(2022, 8, 1, 0, 0, 0, 0, time.UTC)
	q := Query{Start: start, End: start.AddDate(0, 3, 0), MaxCloud: 30}
	days := dailyScenes([]Scene{
		{Time: time.Date(2022, 8, 3, 13, 0, 0, 0, time.UTC), CloudPercentage: 20},
		{Time: time.Date(2022, 8, 3, 13, 1, 0, 0, time.UTC), CloudPercentage: 5},
		{Time: time.Date(2022, 8, 10, 13, 0, 0, 0, time.UTC), CloudPercentage: 30},
		{Time: time.Date(2022, 12, 1, 13, 0, 0, 0, time.UTC), CloudPercentage: 1},
	}, q)
	assert.Equal(t, map[time.Time]float64{time.Date(2022, 8, 3, 0, 0, 0, 0, time.UTC): 5}, days)
}

func TestLoadROI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roi.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,2],[0,2],[0,0]]]}},
		{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[5,5],[6,5],[6,6],[5,6],[5,5]]]}}
	]}`), 0644))

	roi, err := LoadROI(path)
	require.NoError(t, err)
	mp, ok := roi.(orb.MultiPolygon)
	require.True(t, ok)
	assert.Len(t, mp, 2)

	lat, lon, err := GetCentroidLatitudeLongitude(mp[0])
	require.NoError(t, err)
	assert.InDelta(t, 1, lat, 1e-9)
	assert.InDelta(t, 1, lon, 1e-9)
}

func TestQueryContains(t *testing.T) {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	q := Query{Start: start, End: start.AddDate(0, 1, 0)}
	assert.True(t, q.Contains(start))
	assert.False(t, q.Contains(start.AddDate(0, 1, 0)))
}
