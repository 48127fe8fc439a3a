package output

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forest-guardian/landcover-classifier/internal/dataset"
	"github.com/forest-guardian/landcover-classifier/internal/ml"
	"github.com/forest-guardian/landcover-classifier/internal/raster"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classification(t *testing.T) *raster.Raster {
	t.Helper()
	g := raster.Grid{Width: 2, Height: 2, GeoTransform: [6]float64{0, 0.0001, 0, 0.0002, 0, -0.0001}}
	b := raster.NewBand(ml.ClassificationBand, 4)
	copy(b.Values, []float64{0, 1, 1, 0})
	copy(b.Valid, []bool{true, true, true, false})
	r, err := raster.New(g, b)
	require.NoError(t, err)
	return r
}

func splitSamples(t *testing.T) *dataset.SampleSet {
	t.Helper()
	set := &dataset.SampleSet{BandNames: []string{"ndvi"}}
	for i := range 10 {
		set.Vectors = append(set.Vectors, dataset.FeatureVector{
			SamplePoint: dataset.SamplePoint{Location: orb.Point{float64(i), -float64(i)}, Label: dataset.Label(i % 2)},
			Values:      []float64{float64(i) / 10},
		})
	}
	split, err := dataset.Split(set, 0.5, 11)
	require.NoError(t, err)
	return split
}

func TestCSVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables", "samples.csv")
	sink := &CSVSink{Path: path}
	set := splitSamples(t)

	written, err := sink.Write(set.Rows())
	require.NoError(t, err)
	assert.Equal(t, path, written)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 11)
	assert.Equal(t, "longitude,latitude,landcover,random,split", lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "1,-1,1,"))
	assert.True(t, strings.HasSuffix(lines[2], set.Vectors[1].Split.String()))
}

func TestWriteConfusionMatrix(t *testing.T) {
	m, err := ml.EvaluateLabels([]int{0, 1, 1}, []int{0, 1, 0}, nil)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "matrix.csv")
	require.NoError(t, WriteConfusionMatrix(path, m))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "actual,predicted,count\n0,0,1\n0,1,0\n1,0,1\n1,1,1\n", string(content))
}

func TestCreateSamplesGeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.geojson")
	set := splitSamples(t)
	classes := []dataset.Class{{Name: "forest", Label: 0}, {Name: "field", Label: 1}}
	require.NoError(t, CreateSamplesGeoJSON(set, classes, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 10)

	f := fc.Features[3]
	assert.Equal(t, orb.Point{3, -3}, f.Geometry)
	assert.Equal(t, "field", f.Properties.MustString("class"))
	assert.Equal(t, set.Vectors[3].Split.String(), f.Properties.MustString("split"))
	assert.InDelta(t, 0.3, f.Properties.MustFloat64("ndvi"), 1e-12)
}

func TestCreateClassificationImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preview", "classification.png")
	require.NoError(t, CreateClassificationImage(classification(t), nil, 3, path))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	img, err := png.Decode(file)
	require.NoError(t, err)
	assert.Equal(t, 6, img.Bounds().Dx())

	r, g, b, _ := img.At(1, 1).RGBA()
	assert.Equal(t, DefaultPalette[0].R, uint8(r>>8))
	assert.Equal(t, DefaultPalette[0].G, uint8(g>>8))
	assert.Equal(t, DefaultPalette[0].B, uint8(b>>8))
	_, _, _, a := img.At(4, 4).RGBA()
	assert.Zero(t, a, "invalid cells stay transparent")
}

func TestLegend(t *testing.T) {
	legend := Legend(classification(t), Palette{1: {R: 1, G: 2, B: 3, A: 255}})
	require.Len(t, legend, 2)
	assert.Equal(t, LegendEntry{Label: 1, R: 1, G: 2, B: 3}, legend[1])
	assert.Equal(t, 0, legend[0].Label)
}

func TestCreateBandImages(t *testing.T) {
	g := raster.Grid{Width: 3, Height: 1, GeoTransform: [6]float64{0, 1, 0, 1, 0, -1}}
	b := raster.NewBand("ndvi", 3)
	copy(b.Values, []float64{-0.5, 0.2, 0.9})
	copy(b.Valid, []bool{true, true, false})
	r, err := raster.New(g, b)
	require.NoError(t, err)

	paths, err := CreateBandImages(r, nil, t.TempDir())
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.FileExists(t, paths[0])

	_, err = CreateBandImages(r, []string{"bsi"}, t.TempDir())
	assert.Error(t, err)
}

func TestValueToColor(t *testing.T) {
	assert.Equal(t, uint8(255), valueToColor(0).B)
	assert.Equal(t, uint8(255), valueToColor(0.5).G)
	assert.Equal(t, uint8(255), valueToColor(1).R)
	assert.Equal(t, 0.0, normalize(-1, 0, 1))
	assert.Equal(t, 1.0, normalize(2, 0, 1))
}

func TestPrepareExport(t *testing.T) {
	sink := &GeoTIFFSink{Root: t.TempDir()}
	r := classification(t)

	same, err := sink.prepare(context.Background(), r, Export{Name: "c", Categorical: true})
	require.NoError(t, err)
	assert.Same(t, r, same)

	// 0.0001 degrees is about 11 m, export at 22 m halves the grid
	coarse, err := sink.prepare(context.Background(), r, Export{Name: "c", Scale: 22.2, Categorical: true})
	require.NoError(t, err)
	assert.InDelta(t, 0.0002, coarse.Grid.Resolution(), 1e-12)
	assert.LessOrEqual(t, coarse.Grid.Width, 2)
	assert.Contains(t, []float64{0, 1}, coarse.Bands[0].Values[0])

	_, err = sink.prepare(context.Background(), r, Export{Name: "c", MaxPixels: 3})
	assert.Error(t, err)

	_, err = sink.prepare(context.Background(), r, Export{Name: "c", Bands: []string{"missing"}})
	assert.Error(t, err)

	_, err = sink.Write(context.Background(), r, Export{})
	assert.Error(t, err)
}

func TestExportCheck(t *testing.T) {
	r := classification(t)

	assert.NoError(t, Export{Name: "c"}.Check(r))
	assert.ErrorContains(t, Export{}.Check(r), "name")
	assert.ErrorContains(t, Export{Name: "c", Bands: []string{"ndvi"}}.Check(r), "band ndvi")

	// 1.11 m is about 1e-5 degrees, the 2x2 grid grows to about 20x20 cells
	fine := Export{Name: "c", Scale: 1.11, MaxPixels: 100}
	assert.ErrorContains(t, fine.Check(r), "more than the allowed 100")
	fine.MaxPixels = 1000
	assert.NoError(t, fine.Check(r))

	assert.Equal(t, []string{ml.ClassificationBand}, Export{Name: "c"}.BandNames(r))
	assert.Equal(t, []string{"a", "b"}, Export{Bands: []string{"a", "b"}}.BandNames(r))
}
