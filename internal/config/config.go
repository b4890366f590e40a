// Package config loads CLI settings from a YAML file with JOURNEYVAULT_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Backends.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
)

// Config validation sentinels.
var (
	ErrUnknownBackend   = errors.New("unknown backend")
	ErrMissingSupabase  = errors.New("supabase url and key are required")
	ErrMissingDSN       = errors.New("postgres dsn is required")
	ErrMissingMediaDir  = errors.New("media dir is required for the postgres backend")
	ErrBadLocation      = errors.New("location out of range")
	ErrBadCaptureLimits = errors.New("capture limits must be positive")
)

const envPrefix = "JOURNEYVAULT"

// Config is the resolved CLI configuration.
type Config struct {
	Backend     string         `mapstructure:"backend"`
	Supabase    SupabaseConfig `mapstructure:"supabase"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
	Media       MediaConfig    `mapstructure:"media"`
	AccessToken string         `mapstructure:"access_token"`
	JWTSecret   string         `mapstructure:"jwt_secret"`
	Location    LocationConfig `mapstructure:"location"`
	Weather     EndpointConfig `mapstructure:"weather"`
	Geocode     EndpointConfig `mapstructure:"geocode"`
	Capture     CaptureConfig  `mapstructure:"capture"`
	Metrics     MetricsConfig  `mapstructure:"metrics"`
}

// SupabaseConfig addresses a Supabase project.
type SupabaseConfig struct {
	URL    string `mapstructure:"url"`
	Key    string `mapstructure:"key"`
	Bucket string `mapstructure:"bucket"`
}

// PostgresConfig addresses a self-hosted database.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// MediaConfig places blobs on disk when running against Postgres.
type MediaConfig struct {
	Dir     string `mapstructure:"dir"`
	BaseURL string `mapstructure:"base_url"`
}

// LocationConfig is the fixed position used for context snapshots.
type LocationConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Lat     float64 `mapstructure:"lat"`
	Lon     float64 `mapstructure:"lon"`
}

// EndpointConfig is an optional HTTP provider. An empty URL disables it.
type EndpointConfig struct {
	URL       string `mapstructure:"url"`
	UserAgent string `mapstructure:"user_agent"`
}

// CaptureConfig bounds media handling.
type CaptureConfig struct {
	MaxImportBytes  int `mapstructure:"max_import_bytes"`
	MaxImportPixels int `mapstructure:"max_import_pixels"`
	MaxEdge         int `mapstructure:"max_edge"`
	TargetBytes     int `mapstructure:"target_bytes"`
	NoteMax         int `mapstructure:"note_max"`
}

// MetricsConfig names the prometheus namespace and an optional text dump.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
	File      string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendSupabase)
	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.key", "")
	v.SetDefault("supabase.bucket", "memories")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("media.dir", filepath.Join(DefaultDir(), "media"))
	v.SetDefault("media.base_url", "")
	v.SetDefault("access_token", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("location.enabled", false)
	v.SetDefault("location.lat", 0.0)
	v.SetDefault("location.lon", 0.0)
	v.SetDefault("weather.url", "https://api.open-meteo.com")
	v.SetDefault("weather.user_agent", "")
	v.SetDefault("geocode.url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "journeyvault/1.0")
	v.SetDefault("capture.max_import_bytes", 10<<20)
	v.SetDefault("capture.max_import_pixels", 50_000_000)
	v.SetDefault("capture.max_edge", 1920)
	v.SetDefault("capture.target_bytes", 1536<<10)
	v.SetDefault("capture.note_max", 2000)
	v.SetDefault("metrics.namespace", "journeyvault")
	v.SetDefault("metrics.file", "")
}

// DefaultDir is $XDG_CONFIG_HOME/journeyvault or ~/.config/journeyvault.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "journeyvault")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "journeyvault")
}

// Load reads path, or config.yaml from DefaultDir when path is empty.
// A missing default file is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultDir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	return &c, nil
}

// Validate checks backend settings and limits.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSupabase:
		if c.Supabase.URL == "" || c.Supabase.Key == "" {
			return ErrMissingSupabase
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return ErrMissingDSN
		}
		if c.Media.Dir == "" {
			return ErrMissingMediaDir
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownBackend, c.Backend)
	}
	if c.Location.Enabled && (c.Location.Lat < -90 || c.Location.Lat > 90 || c.Location.Lon < -180 || c.Location.Lon > 180) {
		return fmt.Errorf("%w: %.4f,%.4f", ErrBadLocation, c.Location.Lat, c.Location.Lon)
	}
	if c.Capture.MaxImportBytes <= 0 || c.Capture.MaxImportPixels <= 0 || c.Capture.MaxEdge <= 0 ||
		c.Capture.TargetBytes <= 0 || c.Capture.NoteMax <= 0 {
		return ErrBadCaptureLimits
	}
	return nil
}
