package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fairface-insight/fairaudit/internal/config"
	"github.com/fairface-insight/fairaudit/internal/metrics"
)

func testConfig(t *testing.T, embedderURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Port:                "0",
		DatasetPath:         t.TempDir(),
		UploadDir:           filepath.Join(t.TempDir(), "uploads"),
		Groups:              []string{"Asian"},
		StandardThreshold:   0.68,
		TargetFPR:           0.01,
		MaxIdentitySamples:  50,
		MaxPairs:            2000,
		LookalikeRatio:      0.85,
		Seed:                42,
		HistogramBins:       20,
		MinFaceConfidence:   0.3,
		MaxReferenceSamples: 50,
		GroupConcurrency:    1,
		EmbedConcurrency:    1,
		EmbedderURL:         embedderURL,
		EmbedderModel:       "ArcFace",
		EmbedderDetector:    "opencv",
		CacheBackend:        "memory",
		CacheSize:           100,
	}
}

func TestNew_MemoryBackend(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	a, err := New(cfg, zap.NewNop(), metrics.NewWithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer a.Close()

	assert.DirExists(t, cfg.UploadDir)
	assert.Equal(t, "ArcFace", a.Embedder.Model())
	assert.Equal(t, 0.68, a.Engine.Options().StandardThreshold)
	assert.Equal(t, []string{"Asian"}, a.Engine.Options().Groups)
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.CacheBackend = "memcached"

	_, err := New(cfg, zap.NewNop(), metrics.NewWithRegistry(prometheus.NewRegistry()))
	assert.Error(t, err)
}

func TestCheckEmbedder(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()

	a, err := New(testConfig(t, up.URL), zap.NewNop(), metrics.NewWithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer a.Close()
	assert.True(t, a.CheckEmbedder(context.Background()))

	up.Close()
	assert.False(t, a.CheckEmbedder(context.Background()))
}
