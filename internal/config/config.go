package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config captures every setting needed to boot roundcast.
type Config struct {
	Server     ServerConfig     `yaml:"server" envPrefix:"ROUNDCAST_"`
	Clients    ClientsConfig    `yaml:"clients"`
	History    HistoryConfig    `yaml:"history"`
	Prediction PredictionConfig `yaml:"prediction"`
	Cache      CacheConfig      `yaml:"cache" envPrefix:"ROUNDCAST_CACHE_"`
	Ingest     IngestConfig     `yaml:"ingest" envPrefix:"ROUNDCAST_INGEST_"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig controls the HTTP, gRPC and metrics listeners.
type ServerConfig struct {
	HTTPAddress     string        `yaml:"httpAddress" env:"HTTP_ADDRESS"`
	GRPCAddress     string        `yaml:"grpcAddress" env:"GRPC_ADDRESS"`
	MetricsAddress  string        `yaml:"metricsAddress" env:"METRICS_ADDRESS"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout" env:"GRACEFUL_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"requestTimeout" env:"REQUEST_TIMEOUT"`
	CORSOrigins     []string      `yaml:"corsOrigins" env:"CORS_ORIGINS" envSeparator:","`
}

// ClientsConfig groups upstream integrations.
type ClientsConfig struct {
	Upstream UpstreamConfig `yaml:"upstream"`
}

// UpstreamConfig points at the service publishing the latest finished round.
type UpstreamConfig struct {
	BaseURL    string        `yaml:"baseURL" env:"ROUNDCAST_UPSTREAM_BASE_URL"`
	LatestPath string        `yaml:"latestPath" env:"ROUNDCAST_UPSTREAM_LATEST_PATH"`
	Timeout    time.Duration `yaml:"timeout" env:"ROUNDCAST_UPSTREAM_TIMEOUT"`
}

// HistoryConfig sizes the in-memory round window.
type HistoryConfig struct {
	Capacity int `yaml:"capacity" env:"ROUNDCAST_HISTORY_CAPACITY"`
}

// PredictionConfig selects the default strategy and its tuning.
type PredictionConfig struct {
	Strategy       string `yaml:"strategy" env:"ROUNDCAST_STRATEGY"`
	ThresholdsPath string `yaml:"thresholdsPath" env:"ROUNDCAST_THRESHOLDS_PATH"`
	// Seed enables confidence jitter when non-zero.
	Seed int64 `yaml:"seed" env:"ROUNDCAST_JITTER_SEED"`
}

// CacheConfig controls caching of upstream responses and the ingest lock.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled" env:"ENABLED"`
	Backend      string        `yaml:"backend" env:"BACKEND"`
	Addr         string        `yaml:"addr" env:"ADDR"`
	Username     string        `yaml:"username" env:"USERNAME"`
	Password     string        `yaml:"password" env:"PASSWORD"`
	DB           int           `yaml:"db" env:"DB"`
	DialTimeout  time.Duration `yaml:"dialTimeout" env:"DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `yaml:"readTimeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"writeTimeout" env:"WRITE_TIMEOUT"`
	MaxRetries   int           `yaml:"maxRetries" env:"MAX_RETRIES"`
	TLS          bool          `yaml:"tls" env:"TLS"`
	LatestTTL    time.Duration `yaml:"latestTTL" env:"LATEST_TTL"`
}

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendValkey = "valkey"
)

// IngestConfig controls the background poller.
type IngestConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	Schedule string        `yaml:"schedule" env:"SCHEDULE"`
	LockTTL  time.Duration `yaml:"lockTTL" env:"LOCK_TTL"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" env:"ROUNDCAST_LOG_LEVEL"`
	JSON  bool   `yaml:"json" env:"ROUNDCAST_LOG_JSON"`
}

// Load builds Config from defaults, an optional YAML file, an optional .env
// file and finally the process environment.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("ROUNDCAST_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.Prediction.Strategy = strings.ToLower(strings.TrimSpace(cfg.Prediction.Strategy))
	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.HTTPAddress == "" && c.Server.GRPCAddress == "" {
		errs = append(errs, errors.New("server: at least one of httpAddress or grpcAddress is required"))
	}
	if c.Clients.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("clients.upstream.baseURL is required"))
	}
	if c.History.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("history.capacity must be positive, got %d", c.History.Capacity))
	}
	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case CacheBackendMemory:
		case CacheBackendValkey:
			if c.Cache.Addr == "" {
				errs = append(errs, errors.New("cache.addr is required for the valkey backend"))
			}
		default:
			errs = append(errs, fmt.Errorf("cache.backend %q is not supported", c.Cache.Backend))
		}
	}
	if c.Ingest.Enabled && c.Ingest.Schedule == "" {
		errs = append(errs, errors.New("ingest.schedule is required when ingest is enabled"))
	}
	return errors.Join(errs...)
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			HTTPAddress:     ":8000",
			GRPCAddress:     ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			RequestTimeout:  15 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Clients: ClientsConfig{
			Upstream: UpstreamConfig{
				LatestPath: "/api/taixiu/latest",
				Timeout:    5 * time.Second,
			},
		},
		History:    HistoryConfig{Capacity: 100},
		Prediction: PredictionConfig{Strategy: "cascade"},
		Logging:    LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:      false,
			Backend:      CacheBackendMemory,
			LatestTTL:    2 * time.Second,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
		},
		Ingest: IngestConfig{
			Enabled:  false,
			Schedule: "@every 5s",
			LockTTL:  4 * time.Second,
		},
	}
}
