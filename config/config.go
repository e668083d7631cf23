// Package config holds the run parameters that the grid, the WMS clients and
// the output sink are built from.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eak1mov/go-gridfetch/geo"
	"github.com/eak1mov/go-gridfetch/grid"
	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("gridfetch: invalid config")

// Config holds all run configuration.
type Config struct {
	Region   RegionConfig      `mapstructure:"region"`
	Step     StepConfig        `mapstructure:"step"`
	Image    ImageConfig       `mapstructure:"image"`
	Output   OutputConfig      `mapstructure:"output"`
	HTTP     HTTPConfig        `mapstructure:"http"`
	Log      LogConfig         `mapstructure:"log"`
	Instance string            `mapstructure:"instance"`
	Catalog  map[string]string `mapstructure:"catalog"`
	Layers   []LayerConfig     `mapstructure:"layers"`
}

type PointConfig struct {
	Lat float64 `mapstructure:"lat"`
	Lon float64 `mapstructure:"lon"`
}

type RegionConfig struct {
	BottomLeft     PointConfig `mapstructure:"bottom_left"`
	TopRight       PointConfig `mapstructure:"top_right"`
	IncludePartial bool        `mapstructure:"include_partial"`
}

// StepConfig is the tile size in Web Mercator meters.
type StepConfig struct {
	Width  float64 `mapstructure:"width"`
	Height float64 `mapstructure:"height"`
}

// ImageConfig is the requested raster size in pixels.
type ImageConfig struct {
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
	Format string `mapstructure:"format"`
}

type OutputConfig struct {
	Format        string `mapstructure:"format"` // "bmp" or "archive"
	Path          string `mapstructure:"path"`   // file pattern for bmp, file path for archive
	AbsoluteIndex bool   `mapstructure:"absolute_index"`
	SkipExisting  bool   `mapstructure:"skip_existing"`
}

type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LayerConfig is one image layer fetched for every tile.
// Layer is looked up in the catalog; values not found there are used as service codes as is.
// URL may contain an "{instance}" placeholder.
type LayerConfig struct {
	Label   string `mapstructure:"label"`
	URL     string `mapstructure:"url"`
	Layer   string `mapstructure:"layer"`
	Time    string `mapstructure:"time"`
	Version string `mapstructure:"version"`
}

func defaultCatalog() map[string]string {
	return map[string]string{
		"tulip_field_2016": "ttl1904",
		"tulip_field_2017": "ttl1905",
		"arable_land_2017": "ttl1917",
	}
}

func defaultLayers() []LayerConfig {
	return []LayerConfig{
		{
			Label: "tulips_2016",
			URL:   "https://service.geopedia.world/wms/ml_aws",
			Layer: "tulip_field_2016",
		},
		{
			Label: "sat_2016_05_01",
			URL:   "https://services.sentinel-hub.com/ogc/wms/{instance}",
			Layer: "TRUE_COLOR",
			Time:  "2016-05-01",
		},
	}
}

// Load reads configuration from defaults, an optional YAML file and environment variables.
// An empty path searches for gridfetch.yaml in the working directory and ./configs;
// a missing file is fine then. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("region.bottom_left.lat", 51.976331)
	v.SetDefault("region.bottom_left.lon", 4.019444)
	v.SetDefault("region.top_right.lat", 53.513151)
	v.SetDefault("region.top_right.lon", 6.620023)
	v.SetDefault("region.include_partial", false)
	v.SetDefault("step.width", 1500.0)
	v.SetDefault("step.height", 1500.0)
	v.SetDefault("image.width", 512)
	v.SetDefault("image.height", 512)
	v.SetDefault("image.format", "image/png")
	v.SetDefault("output.format", "bmp")
	v.SetDefault("output.path", "images/{row}_{col}_{layer}.bmp")
	v.SetDefault("output.absolute_index", false)
	v.SetDefault("output.skip_existing", false)
	v.SetDefault("http.timeout", 60*time.Second)
	v.SetDefault("http.user_agent", "gridfetch")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("instance", "71513b0b-264d-494a-b8c4-c3c36433db28")

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("gridfetch")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	// Environment variables: GRIDFETCH_OUTPUT_PATH → output.path
	v.SetEnvPrefix("GRIDFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if !v.IsSet("catalog") {
		cfg.Catalog = defaultCatalog()
	}
	if !v.IsSet("layers") {
		cfg.Layers = defaultLayers()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration used when no file or environment overrides it.
func Default() *Config {
	return &Config{
		Region: RegionConfig{
			BottomLeft: PointConfig{Lat: 51.976331, Lon: 4.019444},
			TopRight:   PointConfig{Lat: 53.513151, Lon: 6.620023},
		},
		Step:     StepConfig{Width: 1500, Height: 1500},
		Image:    ImageConfig{Width: 512, Height: 512, Format: "image/png"},
		Output:   OutputConfig{Format: "bmp", Path: "images/{row}_{col}_{layer}.bmp"},
		HTTP:     HTTPConfig{Timeout: 60 * time.Second, UserAgent: "gridfetch"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Instance: "71513b0b-264d-494a-b8c4-c3c36433db28",
		Catalog:  defaultCatalog(),
		Layers:   defaultLayers(),
	}
}

// Grid projects the configured region and lays the step grid over it.
func (c *Config) Grid() (*grid.Grid, error) {
	region, err := geo.ProjectBound(
		geo.LatLon{Lat: c.Region.BottomLeft.Lat, Lon: c.Region.BottomLeft.Lon},
		geo.LatLon{Lat: c.Region.TopRight.Lat, Lon: c.Region.TopRight.Lon},
	)
	if err != nil {
		return nil, err
	}
	var opts []grid.Option
	if c.Region.IncludePartial {
		opts = append(opts, grid.WithPartial())
	}
	return grid.New(region, grid.Size{Width: c.Step.Width, Height: c.Step.Height}, opts...)
}

// ResolveLayer returns the service code of l.
func (c *Config) ResolveLayer(l LayerConfig) string {
	if code, ok := c.Catalog[strings.ToLower(l.Layer)]; ok {
		return code
	}
	return l.Layer
}

// ResolveURL returns the endpoint of l with the service instance filled in.
func (c *Config) ResolveURL(l LayerConfig) string {
	return strings.ReplaceAll(l.URL, "{instance}", c.Instance)
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	for name, p := range map[string]PointConfig{
		"region.bottom_left": c.Region.BottomLeft,
		"region.top_right":   c.Region.TopRight,
	} {
		if p.Lat < -90 || p.Lat > 90 {
			errs = append(errs, fmt.Sprintf("%s.lat must be in [-90, 90], got %v", name, p.Lat))
		}
		if p.Lon < -180 || p.Lon > 180 {
			errs = append(errs, fmt.Sprintf("%s.lon must be in [-180, 180], got %v", name, p.Lon))
		}
	}
	if c.Region.BottomLeft.Lat >= c.Region.TopRight.Lat || c.Region.BottomLeft.Lon >= c.Region.TopRight.Lon {
		errs = append(errs, "region.bottom_left must be south-west of region.top_right")
	}
	if !(c.Step.Width > 0) || !(c.Step.Height > 0) {
		errs = append(errs, fmt.Sprintf("step must be positive, got %vx%v", c.Step.Width, c.Step.Height))
	}
	if c.Image.Width <= 0 || c.Image.Height <= 0 {
		errs = append(errs, fmt.Sprintf("image size must be positive, got %vx%v", c.Image.Width, c.Image.Height))
	}
	if c.Output.Format != "bmp" && c.Output.Format != "archive" {
		errs = append(errs, fmt.Sprintf("output.format must be bmp or archive, got %q", c.Output.Format))
	}
	if c.Output.Path == "" {
		errs = append(errs, "output.path is required")
	}
	if c.HTTP.Timeout < 0 {
		errs = append(errs, "http.timeout must not be negative")
	}
	if len(c.Layers) == 0 {
		errs = append(errs, "at least one layer is required")
	}

	labels := make(map[string]bool)
	for i, l := range c.Layers {
		if l.Label == "" {
			errs = append(errs, fmt.Sprintf("layers[%d].label is required", i))
		} else if labels[l.Label] {
			errs = append(errs, fmt.Sprintf("layers[%d].label %q is duplicated", i, l.Label))
		}
		labels[l.Label] = true
		if l.URL == "" {
			errs = append(errs, fmt.Sprintf("layers[%d].url is required", i))
		}
		if strings.Contains(l.URL, "{instance}") && c.Instance == "" {
			errs = append(errs, fmt.Sprintf("layers[%d].url needs instance", i))
		}
		if l.Layer == "" {
			errs = append(errs, fmt.Sprintf("layers[%d].layer is required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}
