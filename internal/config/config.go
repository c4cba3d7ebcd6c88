// Package config loads the gateway configuration from flags, environment,
// an optional config file and defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. VECGATE_SERVER_ADDR.
const EnvPrefix = "VECGATE"

// DefaultIndexLocation is used when no index location is configured.
const DefaultIndexLocation = "./index.vgf"

// Config is the complete gateway configuration.
type Config struct {
	Index   IndexConfig   `mapstructure:"index"`
	Server  ServerConfig  `mapstructure:"server"`
	Query   QueryConfig   `mapstructure:"query"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Log     LogConfig     `mapstructure:"log"`
	Tracing TracingConfig `mapstructure:"tracing"`
	S3      S3Config      `mapstructure:"s3"`
	MinIO   MinIOConfig   `mapstructure:"minio"`
}

// IndexConfig locates the index.
type IndexConfig struct {
	Location string `mapstructure:"location"`
	CacheDir string `mapstructure:"cache_dir"` // local mirror for remote indexes
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	ExitWait     time.Duration `mapstructure:"exit_wait"`
	MaxBodyBytes int           `mapstructure:"max_body_bytes"`
}

// QueryConfig bounds query execution.
type QueryConfig struct {
	MaxK             int           `mapstructure:"max_k"`
	MaxBatch         int           `mapstructure:"max_batch"`
	StrictDimensions bool          `mapstructure:"strict_dimensions"`
	Workers          int           `mapstructure:"workers"`
	MaxConcurrent    int           `mapstructure:"max_concurrent"`
	QueueTimeout     time.Duration `mapstructure:"queue_timeout"`
	RateLimit        float64       `mapstructure:"rate_limit"`
	RateBurst        int           `mapstructure:"rate_burst"`
	MemoryLimit      int64         `mapstructure:"memory_limit"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	Enabled    bool  `mapstructure:"enabled"`
	MaxEntries int64 `mapstructure:"max_entries"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text | json
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	Insecure    bool   `mapstructure:"insecure"`
	ServiceName string `mapstructure:"service_name"`
}

// S3Config configures s3:// index locations.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
}

// MinIOConfig configures minio:// index locations.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Secure    bool   `mapstructure:"secure"`
	Region    string `mapstructure:"region"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("index.location", DefaultIndexLocation)
	v.SetDefault("index.cache_dir", "")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.exit_wait", 5*time.Second)
	v.SetDefault("server.max_body_bytes", 64<<20)

	v.SetDefault("query.max_k", 1024)
	v.SetDefault("query.max_batch", 1024)
	v.SetDefault("query.strict_dimensions", true)
	v.SetDefault("query.workers", 0)
	v.SetDefault("query.max_concurrent", 0)
	v.SetDefault("query.queue_timeout", time.Second)
	v.SetDefault("query.rate_limit", 0.0)
	v.SetDefault("query.rate_burst", 0)
	v.SetDefault("query.memory_limit", 0)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.max_entries", 10000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.service_name", "vecgate")

	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.path_style", false)

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.secure", true)
	v.SetDefault("minio.region", "")
}

// FlagBindings maps command-line flag names to config keys.
var FlagBindings = map[string]string{
	"index-location": "index.location",
	"addr":           "server.addr",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"max-k":          "query.max_k",
	"workers":        "query.workers",
}

// Load builds a Config. configFile may be empty; flags may be nil.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	if flags != nil {
		for name, key := range FlagBindings {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have no sensible interpretation.
func (c *Config) Validate() error {
	var errs []error
	if c.Index.Location == "" {
		errs = append(errs, errors.New("index.location must not be empty"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.Query.MaxK < 1 {
		errs = append(errs, fmt.Errorf("query.max_k must be positive, got %d", c.Query.MaxK))
	}
	if c.Query.MaxBatch < 1 {
		errs = append(errs, fmt.Errorf("query.max_batch must be positive, got %d", c.Query.MaxBatch))
	}
	if c.Query.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("query.rate_limit must not be negative, got %v", c.Query.RateLimit))
	}
	if c.Cache.Enabled && c.Cache.MaxEntries < 1 {
		errs = append(errs, fmt.Errorf("cache.max_entries must be positive when the cache is enabled, got %d", c.Cache.MaxEntries))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
