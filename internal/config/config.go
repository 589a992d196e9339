// Package config loads trackfinder settings from defaults, an optional YAML
// file and TRACKFINDER_* environment variables, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ewilliams-labs/trackfinder/internal/logging"
)

// Data drivers.
const (
	DriverArtifacts = "artifacts"
	DriverSQLite    = "sqlite"
)

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Data    DataConfig    `yaml:"data"`
	Sources SourcesConfig `yaml:"sources"`
	Server  ServerConfig  `yaml:"server"`
	Search  SearchConfig  `yaml:"search"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DataConfig struct {
	// Driver selects where the catalog and neighbor table come from.
	Driver    string `yaml:"driver"`
	Catalog   string `yaml:"catalog"`
	Neighbors string `yaml:"neighbors"`
	// Root resolves relative artifact paths.
	Root       string `yaml:"root"`
	SQLitePath string `yaml:"sqlite_path"`
}

type SourcesConfig struct {
	HTTP  HTTPConfig  `yaml:"http"`
	S3    S3Config    `yaml:"s3"`
	MinIO MinIOConfig `yaml:"minio"`
}

type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	TokenURL     string        `yaml:"token_url"`
	Scopes       []string      `yaml:"scopes"`
}

type S3Config struct {
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	Region    string `yaml:"region"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimit       float64       `yaml:"rate_limit"`
	RateBurst       int           `yaml:"rate_burst"`
	AllowedOrigin   string        `yaml:"allowed_origin"`
	ServeArtifacts  bool          `yaml:"serve_artifacts"`
	// WarmOnStart loads both artifacts before the first request.
	WarmOnStart bool `yaml:"warm_on_start"`
}

type SearchConfig struct {
	Debounce          time.Duration `yaml:"debounce"`
	CacheSize         int           `yaml:"cache_size"`
	NeighborCacheCost int64         `yaml:"neighbor_cache_cost"`
}

func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Data: DataConfig{
			Driver:     DriverArtifacts,
			Catalog:    "data/tracks.csv",
			Neighbors:  "data/neighbors.json",
			SQLitePath: "trackfinder.db",
		},
		Sources: SourcesConfig{
			HTTP: HTTPConfig{
				Timeout:   30 * time.Second,
				UserAgent: "trackfinder",
			},
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       50,
			RateBurst:       100,
			ServeArtifacts:  true,
			WarmOnStart:     true,
		},
		Search: SearchConfig{
			Debounce:          300 * time.Millisecond,
			CacheSize:         256,
			NeighborCacheCost: 4096,
		},
	}
}

// Load builds the configuration. An empty path skips the file; a named file
// that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := loadYAMLFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := cfg.applyEnvironment(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnvironment() error {
	strs := map[string]*string{
		"TRACKFINDER_LOG_LEVEL":          &c.Log.Level,
		"TRACKFINDER_LOG_FORMAT":         &c.Log.Format,
		"TRACKFINDER_DATA_DRIVER":        &c.Data.Driver,
		"TRACKFINDER_CATALOG":            &c.Data.Catalog,
		"TRACKFINDER_NEIGHBORS":          &c.Data.Neighbors,
		"TRACKFINDER_DATA_ROOT":          &c.Data.Root,
		"TRACKFINDER_SQLITE_PATH":        &c.Data.SQLitePath,
		"TRACKFINDER_HTTP_CLIENT_ID":     &c.Sources.HTTP.ClientID,
		"TRACKFINDER_HTTP_CLIENT_SECRET": &c.Sources.HTTP.ClientSecret,
		"TRACKFINDER_HTTP_TOKEN_URL":     &c.Sources.HTTP.TokenURL,
		"TRACKFINDER_S3_REGION":          &c.Sources.S3.Region,
		"TRACKFINDER_S3_ENDPOINT":        &c.Sources.S3.Endpoint,
		"TRACKFINDER_MINIO_ENDPOINT":     &c.Sources.MinIO.Endpoint,
		"TRACKFINDER_MINIO_ACCESS_KEY":   &c.Sources.MinIO.AccessKey,
		"TRACKFINDER_MINIO_SECRET_KEY":   &c.Sources.MinIO.SecretKey,
		"TRACKFINDER_ADDR":               &c.Server.Addr,
		"TRACKFINDER_ALLOWED_ORIGIN":     &c.Server.AllowedOrigin,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("TRACKFINDER_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("TRACKFINDER_RATE_LIMIT: %w", err)
		}
		c.Server.RateLimit = f
	}
	if v := os.Getenv("TRACKFINDER_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TRACKFINDER_DEBOUNCE: %w", err)
		}
		c.Search.Debounce = d
	}
	if v := os.Getenv("TRACKFINDER_MINIO_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TRACKFINDER_MINIO_SECURE: %w", err)
		}
		c.Sources.MinIO.Secure = b
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, err)
	}

	switch c.Data.Driver {
	case DriverArtifacts:
		if c.Data.Catalog == "" || c.Data.Neighbors == "" {
			errs = append(errs, errors.New("data: catalog and neighbors locations are required"))
		}
	case DriverSQLite:
		if c.Data.SQLitePath == "" {
			errs = append(errs, errors.New("data: sqlite_path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("data: unknown driver %q", c.Data.Driver))
	}

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server: addr is required"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server: rate_limit must not be negative"))
	}
	if c.Search.Debounce < 0 {
		errs = append(errs, errors.New("search: debounce must not be negative"))
	}
	if c.Search.CacheSize <= 0 {
		errs = append(errs, errors.New("search: cache_size must be positive"))
	}
	if c.Search.NeighborCacheCost <= 0 {
		errs = append(errs, errors.New("search: neighbor_cache_cost must be positive"))
	}
	if h := c.Sources.HTTP; (h.ClientID != "") != (h.TokenURL != "") {
		errs = append(errs, errors.New("sources.http: client_id and token_url must be set together"))
	}
	return errors.Join(errs...)
}
