package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no stray .env

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.68, cfg.StandardThreshold)
	assert.Equal(t, 0.01, cfg.TargetFPR)
	assert.Equal(t, 20, cfg.HistogramBins)
	assert.Equal(t, 0.30, cfg.MinFaceConfidence)
	assert.Equal(t, []string{"African", "Asian", "Caucasian", "Indian"}, cfg.Groups)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, 30*time.Second, cfg.EmbedderTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FAIRAUDIT_STANDARD_THRESHOLD", "0.55")
	t.Setenv("FAIRAUDIT_GROUPS", "GroupA, GroupB")
	t.Setenv("MAX_PAIRS", "500")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.55, cfg.StandardThreshold)
	assert.Equal(t, []string{"GroupA", "GroupB"}, cfg.Groups)
	assert.Equal(t, 500, cfg.MaxPairs)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "fairaudit.yaml")
	doc := "groups: [North, South]\nlookalike_ratio: 0.7\nembedder_timeout: 5s\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"North", "South"}, cfg.Groups)
	assert.Equal(t, 0.7, cfg.LookalikeRatio)
	assert.Equal(t, 5*time.Second, cfg.EmbedderTimeout)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:              "5000",
			DatasetPath:       "dataset",
			Groups:            []string{"A"},
			StandardThreshold: 0.68,
			TargetFPR:         0.01,
			LookalikeRatio:    0.85,
			HistogramBins:     20,
			MinFaceConfidence: 0.3,
			GroupConcurrency:  1,
			EmbedConcurrency:  1,
			CacheBackend:      "memory",
			CacheSize:         10,
			LogFormat:         "json",
			LogLevel:          "info",
		}
	}

	base := valid()
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"no groups", func(c *Config) { c.Groups = nil }, ErrNoGroups},
		{"threshold zero", func(c *Config) { c.StandardThreshold = 0 }, ErrInvalidThreshold},
		{"threshold above range", func(c *Config) { c.StandardThreshold = 2.5 }, ErrInvalidThreshold},
		{"fpr", func(c *Config) { c.TargetFPR = 1 }, ErrInvalidTargetFPR},
		{"ratio", func(c *Config) { c.LookalikeRatio = 1 }, ErrInvalidLookalike},
		{"bins", func(c *Config) { c.HistogramBins = 0 }, ErrInvalidBins},
		{"backend", func(c *Config) { c.CacheBackend = "mongo" }, ErrInvalidCacheBackend},
		{"redis addr", func(c *Config) { c.CacheBackend = "redis" }, ErrMissingRedisAddr},
		{"postgres conn", func(c *Config) { c.CacheBackend = "postgres" }, ErrMissingPostgresConn},
		{"log level", func(c *Config) { c.LogLevel = "trace" }, ErrInvalidLogLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}
