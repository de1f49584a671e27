// Package config assembles service settings from defaults, an optional YAML
// file, a .env file and GEOFENCE_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/luxfi/geofence"
	"github.com/luxfi/geofence/detect"
	"github.com/luxfi/geofence/index"
)

// ErrConfig wraps every configuration failure
var ErrConfig = errors.New("config: invalid configuration")

// EnvPrefix prefixes every environment override
const EnvPrefix = "GEOFENCE_"

// Config is the settings shared by every command
type Config struct {
	Params  string        `yaml:"params"`
	Catalog CatalogConfig `yaml:"catalog"`
	Index   IndexConfig   `yaml:"index"`
	Detect  DetectConfig  `yaml:"detect"`
	Redis   RedisConfig   `yaml:"redis"`
	HTTP    HTTPConfig    `yaml:"http"`
	Workers int           `yaml:"workers"`
}

// CatalogConfig locates the toll catalog document
type CatalogConfig struct {
	// Source is memory, file or postgres
	Source   string `yaml:"source"`
	Location string `yaml:"location"`
	Name     string `yaml:"name"`
}

// IndexConfig shapes the latitude band index
type IndexConfig struct {
	Boundaries []float64 `yaml:"boundaries"`
	Width      int       `yaml:"width"`
}

// DetectConfig selects the decision policy and its thresholds
type DetectConfig struct {
	Policy      string            `yaml:"policy"`
	Thresholds  detect.Thresholds `yaml:"thresholds"`
	Parallelism int               `yaml:"parallelism"`
}

// RedisConfig locates the job queue
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Queue    string `yaml:"queue"`
}

// HTTPConfig is the listen address of the HTTP servers
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Params: geofence.DefaultParameterSet,
		Catalog: CatalogConfig{
			Source:   "file",
			Location: ".",
			Name:     "tolls.json",
		},
		Index: IndexConfig{Width: index.DefaultWidth},
		Detect: DetectConfig{
			Policy:      detect.LegacyAsymmetric.String(),
			Thresholds:  detect.DefaultThresholds,
			Parallelism: 1,
		},
		Redis: RedisConfig{
			Addr:  "localhost:6379",
			Queue: "default",
		},
		HTTP:    HTTPConfig{Addr: ":8080"},
		Workers: runtime.NumCPU(),
	}
}

// Load reads path (skipped when empty), then .env and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
		}
	}
	// existing variables win over .env
	_ = godotenv.Load()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from GEOFENCE_* variables found by lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(EnvPrefix + key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}

	str("PARAMS", &c.Params)
	str("CATALOG_SOURCE", &c.Catalog.Source)
	str("CATALOG_LOCATION", &c.Catalog.Location)
	str("CATALOG_NAME", &c.Catalog.Name)
	integer("INDEX_WIDTH", &c.Index.Width)
	if v, ok := lookup(EnvPrefix + "INDEX_BOUNDARIES"); ok {
		bounds, err := parseFloats(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sINDEX_BOUNDARIES: %w", EnvPrefix, err))
		} else {
			c.Index.Boundaries = bounds
		}
	}
	str("DETECT_POLICY", &c.Detect.Policy)
	integer("DETECT_PARALLELISM", &c.Detect.Parallelism)
	float("DETECT_PRIMARY", &c.Detect.Thresholds.Primary)
	float("DETECT_BUFFER", &c.Detect.Thresholds.Buffer)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	integer("REDIS_DB", &c.Redis.DB)
	str("REDIS_QUEUE", &c.Redis.Queue)
	str("HTTP_ADDR", &c.HTTP.Addr)
	integer("WORKERS", &c.Workers)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfig, errors.Join(errs...))
	}
	return nil
}

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Validate checks names and ranges without building anything
func (c *Config) Validate() error {
	if _, err := geofence.ParametersByName(c.Params); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if _, err := detect.ParsePolicy(c.Detect.Policy); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if err := c.Detect.Thresholds.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	switch c.Catalog.Source {
	case "memory", "file", "postgres":
	default:
		return fmt.Errorf("%w: unknown catalog source %q", ErrConfig, c.Catalog.Source)
	}
	if c.Index.Width < 0 {
		return fmt.Errorf("%w: negative batch width %d", ErrConfig, c.Index.Width)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrConfig, c.Workers)
	}
	return nil
}

// Parameters resolves the named parameter set
func (c *Config) Parameters() (geofence.Parameters, error) {
	lit, err := geofence.ParametersByName(c.Params)
	if err != nil {
		return geofence.Parameters{}, err
	}
	return geofence.NewParametersFromLiteral(lit)
}

// IndexConfig returns the index build settings
func (c *Config) IndexConfig() index.Config {
	return index.Config{Boundaries: c.Index.Boundaries, Width: c.Index.Width}
}

// DetectConfig returns the detector settings
func (c *Config) DetectConfig() (detect.Config, error) {
	p, err := detect.ParsePolicy(c.Detect.Policy)
	if err != nil {
		return detect.Config{}, err
	}
	return detect.Config{
		Policy:      p,
		Thresholds:  c.Detect.Thresholds,
		Parallelism: c.Detect.Parallelism,
	}, nil
}
