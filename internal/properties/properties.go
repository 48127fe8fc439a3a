package properties

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func RootPath() string {
	return os.Getenv("ROOT_PATH")
}

func DiscordErrorNotificationUrl() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}

func DiscordSuccessNotificationUrl() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}

// LoadEnv loads the first .env file found among paths. Variables already set
// in the environment win.
func LoadEnv(paths ...string) error {
	var err error
	for _, path := range paths {
		if err = godotenv.Load(path); err == nil {
			return nil
		}
	}
	return err
}

type Color struct {
	R, G, B uint8
}

func (c Color) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// ColorMap holds preview colours by class name.
var ColorMap = map[string]Color{
	"forest":    {34, 139, 34},
	"no_forest": {255, 215, 0},
	"water":     {30, 144, 255},
	"urban":     {220, 20, 60},
	"bare":      {210, 180, 140},
	"unknown":   {255, 0, 0},
}

const (
	SourceCopernicus = "copernicus"
	SourceDirectory  = "directory"
)

// Config holds every setting of a classification run.
type Config struct {
	RootPath          string
	ROIPath           string
	SampleCollections []string

	OpticalStart   time.Time
	OpticalEnd     time.Time
	RadarMonths    string
	CloudThreshold float64
	// Scale is the working pixel size in metres.
	Scale float64

	Normalize      bool
	StatsStep      int
	SplitFraction  float64
	TreeCount      int
	Seed           int64
	MajorityRadius int

	ExportScale     float64
	ExportBands     []string
	ExportMaxPixels int64
	CloudOptimized  bool

	TileSize int
	Workers  int

	Source   string
	ImageDir string
	CacheDir string

	CopernicusClientIDs     []string
	CopernicusClientSecrets []string
	CopernicusTokenURL      string
	CopernicusBaseURL       string
}

func (c Config) ResultPath() string {
	return filepath.Join(c.RootPath, "data", "result")
}

func getString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	v := getString(key, "")
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parser collects the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s=%q: %w", key, value, err)
	}
}

func (p *parser) number(key string, fallback float64) float64 {
	v := getString(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return f
}

func (p *parser) integer(key string, fallback int64) int64 {
	v := getString(key, "")
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil || f != float64(int64(f)) {
			p.fail(key, v, err)
			return fallback
		}
		i = int64(f)
	}
	return i
}

func (p *parser) boolean(key string, fallback bool) bool {
	v := getString(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return b
}

func (p *parser) date(key string, fallback time.Time) time.Time {
	v := getString(key, "")
	if v == "" {
		return fallback
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return t
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	cfg, err := Parse()
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Parse reads the configuration from the environment. Only malformed values
// are reported.
func Parse() (Config, error) {
	p := &parser{}
	root := getString("ROOT_PATH", ".")
	cfg := Config{
		RootPath:          root,
		ROIPath:           getString("ROI_GEOJSON", filepath.Join(root, "data", "geojsons", "roi.geojson")),
		SampleCollections: getList("SAMPLE_COLLECTIONS", nil),

		OpticalStart:   p.date("OPTICAL_START", time.Date(2022, 8, 1, 0, 0, 0, 0, time.UTC)),
		OpticalEnd:     p.date("OPTICAL_END", time.Date(2022, 10, 31, 0, 0, 0, 0, time.UTC)),
		RadarMonths:    getString("RADAR_MONTHS", "2022-01,2022-06,2022-12"),
		CloudThreshold: p.number("CLOUD_THRESHOLD", 30),
		Scale:          p.number("SCALE", 10),

		Normalize:      p.boolean("NORMALIZE", false),
		StatsStep:      int(p.integer("STATS_STEP", 2)),
		SplitFraction:  p.number("SPLIT_FRACTION", 0.6),
		TreeCount:      int(p.integer("TREE_COUNT", 50)),
		Seed:           p.integer("SEED", 42),
		MajorityRadius: int(p.integer("MAJORITY_RADIUS", 1)),

		ExportScale:     p.number("EXPORT_SCALE", 5),
		ExportBands:     getList("EXPORT_BANDS", []string{"B2", "B3", "B4", "B8", "ndvi", "bsi"}),
		ExportMaxPixels: p.integer("EXPORT_MAX_PIXELS", 1e12),
		CloudOptimized:  p.boolean("CLOUD_OPTIMIZED", true),

		TileSize: int(p.integer("TILE_SIZE", 256)),
		Workers:  int(p.integer("WORKERS", 0)),

		Source:   getString("SOURCE", SourceCopernicus),
		ImageDir: getString("IMAGE_DIR", filepath.Join(root, "data", "images")),
		CacheDir: getString("CACHE_DIR", filepath.Join(root, "data", "cache")),

		CopernicusClientIDs:     getList("COPERNICUS_CLIENT_ID", nil),
		CopernicusClientSecrets: getList("COPERNICUS_CLIENT_SECRET", nil),
		CopernicusTokenURL:      getString("COPERNICUS_TOKEN_URL", ""),
		CopernicusBaseURL:       getString("COPERNICUS_BASE_URL", ""),
	}
	if p.err != nil {
		return Config{}, p.err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be fixed by a default.
func (c Config) Validate() error {
	switch {
	case !c.OpticalStart.Before(c.OpticalEnd):
		return fmt.Errorf("optical start %s must be before end %s", c.OpticalStart.Format("2006-01-02"), c.OpticalEnd.Format("2006-01-02"))
	case c.SplitFraction <= 0 || c.SplitFraction >= 1:
		return fmt.Errorf("split fraction must be in (0, 1), got %v", c.SplitFraction)
	case c.CloudThreshold < 0:
		return fmt.Errorf("cloud threshold must not be negative, got %v", c.CloudThreshold)
	case c.TreeCount <= 0:
		return fmt.Errorf("tree count must be positive, got %d", c.TreeCount)
	case c.MajorityRadius < 0:
		return fmt.Errorf("majority radius must not be negative, got %d", c.MajorityRadius)
	case c.StatsStep < 1:
		return fmt.Errorf("stats step must be at least 1, got %d", c.StatsStep)
	case c.Scale <= 0:
		return fmt.Errorf("scale must be positive, got %v", c.Scale)
	case c.Source != SourceCopernicus && c.Source != SourceDirectory:
		return fmt.Errorf("unknown source %q, expected %s or %s", c.Source, SourceCopernicus, SourceDirectory)
	}
	return nil
}
