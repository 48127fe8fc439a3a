package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/forest-guardian/landcover-classifier/internal/composite"
	"github.com/forest-guardian/landcover-classifier/internal/delivery"
	"github.com/forest-guardian/landcover-classifier/internal/notification"
	"github.com/forest-guardian/landcover-classifier/internal/properties"
	"github.com/forest-guardian/landcover-classifier/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	roi          string
	samples      []string
	opticalStart string
	opticalEnd   string
	radarMonths  string
	cloud        float64
	normalize    bool
	split        float64
	trees        int
	seed         int64
	radius       int
	source       string
	imageDir     string
	workers      int
	noProgress   bool
	verbose      bool
}

// config loads the environment configuration and applies the flags the
// user set explicitly.
func (o *options) config(cmd *cobra.Command) (properties.Config, error) {
	cfg, err := properties.Parse()
	if err != nil {
		return cfg, err
	}

	changed := cmd.Flags().Changed
	if changed("roi") {
		cfg.ROIPath = o.roi
	}
	if changed("samples") {
		cfg.SampleCollections = o.samples
	}
	if changed("optical-start") {
		if cfg.OpticalStart, err = time.Parse(time.DateOnly, o.opticalStart); err != nil {
			return cfg, fmt.Errorf("invalid --optical-start: %w", err)
		}
	}
	if changed("optical-end") {
		if cfg.OpticalEnd, err = time.Parse(time.DateOnly, o.opticalEnd); err != nil {
			return cfg, fmt.Errorf("invalid --optical-end: %w", err)
		}
	}
	if changed("radar-months") {
		cfg.RadarMonths = o.radarMonths
	}
	if changed("cloud") {
		cfg.CloudThreshold = o.cloud
	}
	if changed("normalize") {
		cfg.Normalize = o.normalize
	}
	if changed("split") {
		cfg.SplitFraction = o.split
	}
	if changed("trees") {
		cfg.TreeCount = o.trees
	}
	if changed("seed") {
		cfg.Seed = o.seed
	}
	if changed("radius") {
		cfg.MajorityRadius = o.radius
	}
	if changed("source") {
		cfg.Source = o.source
	}
	if changed("image-dir") {
		cfg.ImageDir = o.imageDir
	}
	if changed("workers") {
		cfg.Workers = o.workers
	}
	return cfg, cfg.Validate()
}

func (o *options) logger() (*zap.SugaredLogger, error) {
	var (
		log *zap.Logger
		err error
	)
	if o.verbose {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return log.Sugar(), nil
}

type stage func(p *delivery.Pipeline, ctx context.Context) (*delivery.RunSummary, error)

// execute builds the pipeline, runs one of its entry points and reports the
// outcome on the terminal and to Discord.
func (o *options) execute(cmd *cobra.Command, name string, run stage) error {
	cfg, err := o.config(cmd)
	if err != nil {
		return err
	}
	log, err := o.logger()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	discord := notification.NewDiscord()
	p, err := delivery.NewPipeline(cfg, log, !o.noProgress)
	if err != nil {
		return err
	}

	ui.PrintInfo(fmt.Sprintf("Starting %s...", name))
	summary, err := run(p, ctx)
	if err != nil {
		fields := []notification.DiscordField{{Name: "Command", Value: name}}
		if summary != nil {
			fields = append(fields, notification.DiscordField{Name: "Run", Value: summary.ID})
		}
		if nerr := discord.Error(context.WithoutCancel(ctx), fmt.Sprintf("Landcover CLI\n\n%s failed: %s", name, err.Error()), fields...); nerr != nil {
			log.Warnw("failed to send notification", "error", nerr)
		}
		return err
	}

	for _, d := range summary.DegenerateBands {
		ui.PrintWarning(d.Error())
	}
	ui.PrintSuccess(summary.Format())
	if lines := summary.ClassLines(); len(lines) > 0 {
		ui.PrintList("Classes:", lines)
	}
	if err := discord.Success(ctx, fmt.Sprintf("Landcover CLI\n\n%s finished successfully!", strings.ToUpper(name[:1])+name[1:]), summary.DiscordFields()...); err != nil {
		log.Warnw("failed to send notification", "error", err)
	}
	return nil
}

func newRootCommand() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "landcover",
		Short:         "Supervised land cover classification from Sentinel-1 and Sentinel-2 imagery",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.PrintBanner("Landcover", "CLI")
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&o.roi, "roi", "", "GeoJSON file with the region of interest")
	f.StringSliceVar(&o.samples, "samples", nil, "GeoJSON point collections, one per class")
	f.StringVar(&o.opticalStart, "optical-start", "", "first day of the optical window (YYYY-MM-DD)")
	f.StringVar(&o.opticalEnd, "optical-end", "", "day after the optical window (YYYY-MM-DD)")
	f.StringVar(&o.radarMonths, "radar-months", "", "comma separated radar months (YYYY-MM)")
	f.Float64Var(&o.cloud, "cloud", composite.DefaultCloudThreshold, "maximum scene cloud percentage, 0 keeps every scene")
	f.BoolVar(&o.normalize, "normalize", false, "min/max normalize the optical composite")
	f.Float64Var(&o.split, "split", 0.6, "expected share of samples kept for validation")
	f.IntVar(&o.trees, "trees", 50, "number of trees in the forest")
	f.Int64Var(&o.seed, "seed", 42, "seed of the split and the forest, 0 for a random one")
	f.IntVar(&o.radius, "radius", 1, "majority filter radius in pixels")
	f.StringVar(&o.source, "source", "", "image source: copernicus or directory")
	f.StringVar(&o.imageDir, "image-dir", "", "folder holding the GeoTIFF scenes")
	f.IntVar(&o.workers, "workers", 0, "number of tile workers, 0 for one per CPU")
	f.BoolVar(&o.noProgress, "no-progress", false, "hide progress bars")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "development logging")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Build the composite, train the forest, classify and export everything",
			RunE: func(cmd *cobra.Command, args []string) error {
				return o.execute(cmd, "classification", (*delivery.Pipeline).Run)
			},
		},
		&cobra.Command{
			Use:   "composite",
			Short: "Build and export the fused optical and radar composite",
			RunE: func(cmd *cobra.Command, args []string) error {
				return o.execute(cmd, "composite", (*delivery.Pipeline).Composite)
			},
		},
		&cobra.Command{
			Use:   "samples",
			Short: "Extract and split the training samples",
			RunE: func(cmd *cobra.Command, args []string) error {
				return o.execute(cmd, "samples", (*delivery.Pipeline).SamplesOnly)
			},
		},
	)
	return root
}
