package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for every environment variable read by Load.
const EnvPrefix = "FAIRAUDIT"

// Config validation errors
var (
	ErrInvalidPort         = errors.New("port cannot be empty")
	ErrInvalidDatasetPath  = errors.New("dataset_path cannot be empty")
	ErrNoGroups            = errors.New("at least one group must be configured")
	ErrInvalidThreshold    = errors.New("standard_threshold must be in (0, 2]")
	ErrInvalidTargetFPR    = errors.New("target_fpr must be in (0, 1)")
	ErrInvalidLookalike    = errors.New("lookalike_ratio must be in (0, 1)")
	ErrInvalidBins         = errors.New("histogram_bins must be positive")
	ErrInvalidConfidence   = errors.New("min_face_confidence must be in [0, 1]")
	ErrInvalidCacheBackend = errors.New("cache_backend must be memory, redis or postgres")
	ErrInvalidCacheSize    = errors.New("cache_size must be positive")
	ErrInvalidConcurrency  = errors.New("concurrency settings must be positive")
	ErrInvalidLogFormat    = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel     = errors.New("log_level must be debug, info, warn, or error")
	ErrMissingRedisAddr    = errors.New("redis_addr is required when cache_backend=redis")
	ErrMissingPostgresConn = errors.New("postgres_conn is required when cache_backend=postgres")
)

// Config is the full service configuration. Every field can be set from the
// environment (FAIRAUDIT_<NAME>, or <NAME> alone) or from a YAML file.
type Config struct {
	Port        string   `envconfig:"PORT" default:"5000" yaml:"port"`
	DatasetPath string   `envconfig:"DATASET_PATH" default:"dataset" yaml:"dataset_path"`
	UploadDir   string   `envconfig:"UPLOAD_DIR" default:"uploads" yaml:"upload_dir"`
	Groups      []string `envconfig:"GROUPS" default:"African,Asian,Caucasian,Indian" yaml:"groups"`

	// Audit engine
	StandardThreshold   float64 `envconfig:"STANDARD_THRESHOLD" default:"0.68" yaml:"standard_threshold"`
	TargetFPR           float64 `envconfig:"TARGET_FPR" default:"0.01" yaml:"target_fpr"`
	MaxIdentitySamples  int     `envconfig:"MAX_IDENTITY_SAMPLES" default:"50" yaml:"max_identity_samples"`
	MaxPairs            int     `envconfig:"MAX_PAIRS" default:"2000" yaml:"max_pairs"`
	LookalikeRatio      float64 `envconfig:"LOOKALIKE_RATIO" default:"0.85" yaml:"lookalike_ratio"`
	Seed                int64   `envconfig:"SEED" default:"42" yaml:"seed"`
	HistogramBins       int     `envconfig:"HISTOGRAM_BINS" default:"20" yaml:"histogram_bins"`
	MinFaceConfidence   float64 `envconfig:"MIN_FACE_CONFIDENCE" default:"0.30" yaml:"min_face_confidence"`
	MaxReferenceSamples int     `envconfig:"MAX_REFERENCE_SAMPLES" default:"50" yaml:"max_reference_samples"`
	GroupConcurrency    int     `envconfig:"AUDIT_GROUP_CONCURRENCY" default:"4" yaml:"audit_group_concurrency"`
	EmbedConcurrency    int     `envconfig:"EMBED_CONCURRENCY" default:"4" yaml:"embed_concurrency"`

	// Embedding provider
	EmbedderURL      string        `envconfig:"EMBEDDER_URL" default:"http://localhost:5005" yaml:"embedder_url"`
	EmbedderModel    string        `envconfig:"EMBEDDER_MODEL" default:"ArcFace" yaml:"embedder_model"`
	EmbedderDetector string        `envconfig:"EMBEDDER_DETECTOR" default:"opencv" yaml:"embedder_detector"`
	EmbedderTimeout  time.Duration `envconfig:"EMBEDDER_TIMEOUT" default:"30s" yaml:"embedder_timeout"`
	EmbedderRPS      float64       `envconfig:"EMBEDDER_RPS" default:"0" yaml:"embedder_rps"`

	// Embedding cache
	CacheBackend  string `envconfig:"CACHE_BACKEND" default:"memory" yaml:"cache_backend"`
	CacheSize     int    `envconfig:"CACHE_SIZE" default:"50000" yaml:"cache_size"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"" yaml:"redis_addr"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:"" yaml:"-"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0" yaml:"redis_db"`
	PostgresConn  string `envconfig:"POSTGRES_CONN" default:"" yaml:"postgres_conn"`

	// Serving
	TokenRate   int    `envconfig:"TOKEN_RATE" default:"100" yaml:"token_rate"`
	MetricsUser string `envconfig:"METRICS_USER" default:"" yaml:"metrics_user"`
	MetricsPass string `envconfig:"METRICS_PASS" default:"" yaml:"-"`

	// Observability
	LogFormat    string `envconfig:"LOG_FORMAT" default:"json" yaml:"log_format"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info" yaml:"log_level"`
	OTelEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false" yaml:"otel_enabled"`
	OTelEndpoint string `envconfig:"OTEL_ENDPOINT" default:"localhost:4317" yaml:"otel_endpoint"`
}

// Load reads an optional .env file, the environment and an optional YAML
// file. YAML values override the environment.
func Load(yamlPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if yamlPath != "" {
		if err := cfg.MergeFile(yamlPath); err != nil {
			return nil, err
		}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MergeFile overlays the YAML document at path onto c.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) normalize() {
	groups := c.Groups[:0]
	for _, g := range c.Groups {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	c.Groups = groups
	c.CacheBackend = strings.ToLower(c.CacheBackend)
	c.LogFormat = strings.ToLower(c.LogFormat)
	c.LogLevel = strings.ToLower(c.LogLevel)
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.Port == "" {
		return ErrInvalidPort
	}
	if c.DatasetPath == "" {
		return ErrInvalidDatasetPath
	}
	if len(c.Groups) == 0 {
		return ErrNoGroups
	}
	if c.StandardThreshold <= 0 || c.StandardThreshold > 2 {
		return ErrInvalidThreshold
	}
	if c.TargetFPR <= 0 || c.TargetFPR >= 1 {
		return ErrInvalidTargetFPR
	}
	if c.LookalikeRatio <= 0 || c.LookalikeRatio >= 1 {
		return ErrInvalidLookalike
	}
	if c.HistogramBins <= 0 {
		return ErrInvalidBins
	}
	if c.MinFaceConfidence < 0 || c.MinFaceConfidence > 1 {
		return ErrInvalidConfidence
	}
	if c.GroupConcurrency <= 0 || c.EmbedConcurrency <= 0 {
		return ErrInvalidConcurrency
	}
	switch c.CacheBackend {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return ErrMissingRedisAddr
		}
	case "postgres":
		if c.PostgresConn == "" {
			return ErrMissingPostgresConn
		}
	default:
		return ErrInvalidCacheBackend
	}
	if c.CacheSize <= 0 {
		return ErrInvalidCacheSize
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	return nil
}
