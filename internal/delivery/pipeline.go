package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forest-guardian/landcover-classifier/internal/composite"
	"github.com/forest-guardian/landcover-classifier/internal/dataset"
	"github.com/forest-guardian/landcover-classifier/internal/ml"
	"github.com/forest-guardian/landcover-classifier/internal/properties"
	"github.com/forest-guardian/landcover-classifier/internal/raster"
	"github.com/forest-guardian/landcover-classifier/internal/sentinel"
	"github.com/forest-guardian/landcover-classifier/output"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// Pipeline drives one classification run. Every stage works on values; files
// are only written once all stages succeeded.
type Pipeline struct {
	Config properties.Config
	Log    *zap.SugaredLogger
	Source sentinel.Source
	Sink   output.RasterSink
	// Progress shows progress bars on the terminal.
	Progress bool
}

func NewPipeline(cfg properties.Config, log *zap.SugaredLogger, progress bool) (*Pipeline, error) {
	source, err := NewSource(cfg, progress)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		Config:   cfg,
		Log:      log,
		Source:   source,
		Sink:     &output.GeoTIFFSink{Root: cfg.ResultPath(), Tiles: raster.TileOptions{Size: cfg.TileSize, Workers: cfg.Workers}},
		Progress: progress,
	}, nil
}

func (p *Pipeline) tiles() raster.TileOptions {
	return raster.TileOptions{Size: p.Config.TileSize, Workers: p.Config.Workers}
}

func (p *Pipeline) newSummary() *RunSummary {
	return &RunSummary{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Trees:     p.Config.TreeCount,
		Seed:      p.Config.Seed,
	}
}

// stage runs fn and records its duration. Cancellation is checked before
// every stage.
func (p *Pipeline) stage(ctx context.Context, s *RunSummary, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	p.Log.Infow("stage started", "run", s.ID, "stage", name)
	if err := fn(); err != nil {
		p.Log.Errorw("stage failed", "run", s.ID, "stage", name, "error", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	d := time.Since(start)
	s.Stages = append(s.Stages, StageTiming{Stage: name, Duration: d})
	p.Log.Infow("stage finished", "run", s.ID, "stage", name, "duration", d)
	return nil
}

func (p *Pipeline) progress(total int, description string) *progressbar.ProgressBar {
	if p.Progress {
		return progressbar.Default(int64(total), description)
	}
	return progressbar.DefaultSilent(int64(total), description)
}

// loadROI reads the region of interest and records its centroid.
func (p *Pipeline) loadROI(s *RunSummary) (orb.Geometry, error) {
	roi, err := sentinel.LoadROI(p.Config.ROIPath)
	if err != nil {
		return nil, err
	}
	lat, lon, err := sentinel.GetCentroidLatitudeLongitude(roi)
	if err != nil {
		return nil, fmt.Errorf("region of interest %s: %w", p.Config.ROIPath, err)
	}
	s.Centroid = orb.Point{lon, lat}
	p.Log.Infow("region loaded", "run", s.ID, "roi", p.Config.ROIPath, "lat", lat, "lon", lon)
	return roi, nil
}

// Features builds the feature raster: the optical median composite with
// indices, fused with the radar monthly stack.
func (p *Pipeline) Features(ctx context.Context, roi orb.Geometry, s *RunSummary) (*raster.Raster, error) {
	cfg := p.Config
	windows, err := composite.ParseMonths(cfg.RadarMonths)
	if err != nil {
		return nil, err
	}
	c := &composite.Compositor{
		OpticalSource:  p.Source,
		RadarSource:    p.Source,
		ROI:            roi,
		CloudThreshold: cfg.CloudThreshold,
		Bands:          sentinel.OpticalBands,
		Scale:          cfg.Scale,
		Tiles:          p.tiles(),
	}

	var optical, radar, features *raster.Raster
	err = p.stage(ctx, s, "optical composite", func() error {
		optical, err = c.Optical(ctx, composite.Window{Start: cfg.OpticalStart, End: cfg.OpticalEnd})
		return err
	})
	if err != nil {
		return nil, err
	}

	if cfg.Normalize {
		err = p.stage(ctx, s, "normalize", func() error {
			var degenerate []*raster.DegenerateStatisticsError
			optical, degenerate, err = raster.Normalize(ctx, optical, raster.StatsOptions{ROI: roi, Step: cfg.StatsStep, Tiles: p.tiles()})
			for _, d := range degenerate {
				p.Log.Warnw("band left unnormalized", "run", s.ID, "band", d.Band, "value", d.Value, "count", d.Count)
			}
			s.DegenerateBands = append(s.DegenerateBands, degenerate...)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	err = p.stage(ctx, s, "indices", func() error {
		optical, err = sentinel.AddIndices(optical)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, s, "radar composite", func() error {
		radar, err = c.Radar(ctx, windows)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, s, "fusion", func() error {
		features, err = composite.Fuse(ctx, optical, radar, p.tiles())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.FeatureBands = features.BandNames()
	return features, nil
}

// Samples loads the labeled collections, samples the feature raster at
// every point and splits the result.
func (p *Pipeline) Samples(ctx context.Context, features *raster.Raster, s *RunSummary) (*dataset.SampleSet, error) {
	cfg := p.Config
	if len(cfg.SampleCollections) == 0 {
		return nil, fmt.Errorf("no sample collection configured")
	}

	var split *dataset.SampleSet
	err := p.stage(ctx, s, "samples", func() error {
		collections, err := dataset.LoadCollections(cfg.SampleCollections)
		if err != nil {
			return err
		}
		points, classes := dataset.MergeCollections(collections...)
		s.Classes = classes
		s.Points = len(points)

		set, stats, err := dataset.Extract(features, points)
		if err != nil {
			return err
		}
		s.Extract = stats
		if len(stats.OutOfBounds) > 0 || stats.Masked > 0 {
			p.Log.Warnw("samples dropped", "run", s.ID, "out_of_bounds", len(stats.OutOfBounds), "masked", stats.Masked)
		}

		split, err = dataset.Split(set, cfg.SplitFraction, cfg.Seed)
		if err != nil {
			return err
		}
		training, validation := split.Training(), split.Validation()
		s.Training = training.Len()
		s.Validation = validation.Len()
		s.TrainingCounts = training.ClassCounts()
		s.ValidationCounts = validation.ClassCounts()
		return nil
	})
	return split, err
}

type classification struct {
	raw      *raster.Raster
	smoothed *raster.Raster
	matrix   *ml.ConfusionMatrix
}

// Classify trains the forest on the training samples, classifies the
// feature raster, smooths it and measures accuracy on the unsmoothed result.
func (p *Pipeline) classify(ctx context.Context, features *raster.Raster, samples *dataset.SampleSet, s *RunSummary) (*classification, error) {
	cfg := p.Config
	out := &classification{}

	var forest *ml.Forest
	err := p.stage(ctx, s, "training", func() error {
		var err error
		forest, err = ml.Train(ctx, samples.Training(), features.BandNames(), ml.Options{
			Trees:   cfg.TreeCount,
			Seed:    cfg.Seed,
			Workers: cfg.Workers,
		})
		if err != nil {
			return err
		}
		s.Seed = forest.Seed()
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, s, "prediction", func() error {
		tiles := p.tiles()
		bar := p.progress(raster.CountTiles(features.Grid, tiles), "Classifying")
		defer bar.Finish()
		tiles.OnTile = func() { bar.Add(1) }
		var err error
		out.raw, err = forest.PredictRaster(ctx, features, tiles)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, s, "majority filter", func() error {
		var err error
		out.smoothed, err = raster.MajorityFilter(ctx, out.raw, cfg.MajorityRadius, p.tiles())
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, s, "accuracy", func() error {
		var err error
		out.matrix, err = ml.Evaluate(out.raw, samples.Validation())
		if err != nil {
			return err
		}
		s.Matrix = out.matrix
		if out.matrix.Excluded > 0 {
			p.Log.Warnw("validation points without prediction", "run", s.ID, "excluded", out.matrix.Excluded)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Run executes the whole classification and writes every output.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	s := p.newSummary()
	roi, err := p.loadROI(s)
	if err != nil {
		return s, err
	}

	features, err := p.Features(ctx, roi, s)
	if err != nil {
		return s, err
	}
	samples, err := p.Samples(ctx, features, s)
	if err != nil {
		return s, err
	}
	result, err := p.classify(ctx, features, samples, s)
	if err != nil {
		return s, err
	}

	err = p.stage(ctx, s, "export", func() error {
		classified, composed := p.classificationExport(s), p.compositeExport(s)
		if err := classified.Check(result.smoothed); err != nil {
			return err
		}
		if err := composed.Check(features); err != nil {
			return err
		}
		if err := p.exportClassification(ctx, classified, result, s); err != nil {
			return err
		}
		if err := p.exportFeatures(ctx, composed, features, s); err != nil {
			return err
		}
		return p.exportSamples(samples, s)
	})
	if err != nil {
		return s, err
	}
	s.FinishedAt = time.Now()
	return s, p.writeReport(s)
}

// Composite builds and exports the feature raster only.
func (p *Pipeline) Composite(ctx context.Context) (*RunSummary, error) {
	s := p.newSummary()
	roi, err := p.loadROI(s)
	if err != nil {
		return s, err
	}
	features, err := p.Features(ctx, roi, s)
	if err != nil {
		return s, err
	}
	err = p.stage(ctx, s, "export", func() error {
		export := p.compositeExport(s)
		if err := export.Check(features); err != nil {
			return err
		}
		return p.exportFeatures(ctx, export, features, s)
	})
	s.FinishedAt = time.Now()
	return s, err
}

// SamplesOnly builds the feature raster and exports the split samples.
func (p *Pipeline) SamplesOnly(ctx context.Context) (*RunSummary, error) {
	s := p.newSummary()
	roi, err := p.loadROI(s)
	if err != nil {
		return s, err
	}
	features, err := p.Features(ctx, roi, s)
	if err != nil {
		return s, err
	}
	samples, err := p.Samples(ctx, features, s)
	if err != nil {
		return s, err
	}
	err = p.stage(ctx, s, "export", func() error {
		return p.exportSamples(samples, s)
	})
	s.FinishedAt = time.Now()
	return s, err
}

func (p *Pipeline) folder(s *RunSummary) string {
	return filepath.Join(p.Config.ResultPath(), s.ID)
}

func (p *Pipeline) classificationExport(s *RunSummary) output.Export {
	return output.Export{
		Name:           "classification",
		Folder:         s.ID,
		Scale:          p.Config.ExportScale,
		MaxPixels:      p.Config.ExportMaxPixels,
		CloudOptimized: p.Config.CloudOptimized,
		Categorical:    true,
	}
}

func (p *Pipeline) compositeExport(s *RunSummary) output.Export {
	return output.Export{
		Name:           "composite",
		Folder:         s.ID,
		Scale:          p.Config.ExportScale,
		MaxPixels:      p.Config.ExportMaxPixels,
		Bands:          p.Config.ExportBands,
		CloudOptimized: p.Config.CloudOptimized,
	}
}

// exportClassification expects export to be checked already.
func (p *Pipeline) exportClassification(ctx context.Context, export output.Export, result *classification, s *RunSummary) error {
	path, err := p.Sink.Write(ctx, result.smoothed, export)
	if err != nil {
		return err
	}
	s.addOutput("classification", path)

	palette := output.Palette{}
	for _, c := range s.Classes {
		if color, ok := properties.ColorMap[c.Name]; ok {
			palette[int(c.Label)] = color.RGBA()
		}
	}
	for label, color := range output.DefaultPalette {
		if _, ok := palette[label]; !ok {
			palette[label] = color
		}
	}
	preview := filepath.Join(p.folder(s), "classification.png")
	if err := output.CreateClassificationImage(result.smoothed, palette, 1, preview); err != nil {
		return err
	}
	s.addOutput("preview", preview)

	legend := filepath.Join(p.folder(s), "legend.csv")
	if err := output.WriteCSV(legend, output.Legend(result.smoothed, palette)); err != nil {
		return err
	}
	s.addOutput("legend", legend)

	matrix := filepath.Join(p.folder(s), "confusion_matrix.csv")
	if err := output.WriteConfusionMatrix(matrix, result.matrix); err != nil {
		return err
	}
	s.addOutput("confusion matrix", matrix)
	return nil
}

func (p *Pipeline) exportFeatures(ctx context.Context, export output.Export, features *raster.Raster, s *RunSummary) error {
	path, err := p.Sink.Write(ctx, features, export)
	if err != nil {
		return err
	}
	s.addOutput("composite", path)

	var quickLooks []string
	for _, band := range []string{sentinel.BandNDVI, sentinel.BandBSI} {
		if features.Index(band) >= 0 {
			quickLooks = append(quickLooks, band)
		}
	}
	if len(quickLooks) > 0 {
		folder := filepath.Join(p.folder(s), "images")
		if _, err := output.CreateBandImages(features, quickLooks, folder); err != nil {
			return err
		}
		s.addOutput("quick-looks", folder)
	}
	return nil
}

func (p *Pipeline) exportSamples(samples *dataset.SampleSet, s *RunSummary) error {
	table := &output.CSVSink{Path: filepath.Join(p.folder(s), "samples.csv")}
	path, err := table.Write(samples.Rows())
	if err != nil {
		return err
	}
	s.addOutput("samples table", path)

	geojsonPath := filepath.Join(p.folder(s), "samples.geojson")
	if err := output.CreateSamplesGeoJSON(samples, s.Classes, geojsonPath); err != nil {
		return err
	}
	s.addOutput("samples", geojsonPath)
	return nil
}

func (p *Pipeline) writeReport(s *RunSummary) error {
	if err := os.MkdirAll(p.folder(s), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create report folder: %w", err)
	}
	path := filepath.Join(p.folder(s), "report.md")
	if err := os.WriteFile(path, []byte(s.Markdown()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	s.addOutput("report", path)
	return nil
}
