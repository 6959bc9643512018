package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/fairface-insight/fairaudit/internal/errors"
)

func writeImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("\xff\xd8\xff fake jpeg"), 0o600))
	return path
}

func newTestClient(url string) *DeepFaceClient {
	return NewDeepFaceClient(DeepFaceConfig{
		BaseURL:       url + "/",
		Model:         "ArcFace",
		Detector:      "opencv",
		MinConfidence: 0.3,
	})
}

func TestDeepFaceClient_Embed(t *testing.T) {
	var got representRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/represent", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(representResponse{Results: []representResult{{
			Embedding:      []float64{0.1, 0.2, 0.3},
			FacialArea:     facialArea{X: 10, Y: 20, W: 64, H: 80},
			FaceConfidence: 0.92,
		}}})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Embed(context.Background(), writeImage(t, "face.png"))
	require.NoError(t, err)

	assert.Equal(t, "ArcFace", got.ModelName)
	assert.Equal(t, "opencv", got.DetectorBackend)
	assert.False(t, got.EnforceDetection)
	assert.True(t, strings.HasPrefix(got.Img, "data:image/png;base64,"))

	assert.Equal(t, []float64{0.1, 0.2, 0.3}, res.Embedding)
	assert.True(t, res.Detected)
	assert.Equal(t, 0.92, res.Confidence)
	require.NotNil(t, res.BoundingBox)
	assert.Equal(t, 64, res.BoundingBox.Width)
	assert.Equal(t, "opencv", res.Backend)
}

func TestDeepFaceClient_LowConfidenceNotDetected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(representResponse{Results: []representResult{{
			Embedding:      []float64{1, 0},
			FaceConfidence: 0.1,
		}}})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Embed(context.Background(), writeImage(t, "dark.jpg"))
	require.NoError(t, err)
	assert.False(t, res.Detected)
	assert.Nil(t, res.BoundingBox)
	assert.NotNil(t, res.Embedding)
}

func TestDeepFaceClient_NoFace(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload representResponse
	}{
		{"empty results", http.StatusOK, representResponse{}},
		{"detector message", http.StatusBadRequest, representResponse{Error: "Face could not be detected in numpy array."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(tt.payload)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Embed(context.Background(), writeImage(t, "x.jpg"))
			assert.ErrorIs(t, err, ErrNoFace)
			assert.ErrorIs(t, err, apperrors.ErrNoFaceDetected)
		})
	}
}

func TestDeepFaceClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(representResponse{Error: "model not loaded"})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Embed(context.Background(), writeImage(t, "x.jpg"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestDeepFaceClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).Embed(context.Background(), writeImage(t, "x.jpg"))
	assert.ErrorIs(t, err, apperrors.ErrEmbeddingUnavailable)
	typ, ok := apperrors.TypeOf(err)
	assert.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeNetwork, typ)
}

func TestDeepFaceClient_MissingFile(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1").Embed(context.Background(), "/does/not/exist.jpg")
	require.Error(t, err)
	typ, _ := apperrors.TypeOf(err)
	assert.Equal(t, apperrors.ErrorTypeData, typ)
}

func TestDeepFaceClient_RateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(representResponse{Results: []representResult{{Embedding: []float64{1}, FaceConfidence: 1}}})
	}))
	defer srv.Close()

	c := NewDeepFaceClient(DeepFaceConfig{BaseURL: srv.URL}, WithRateLimit(0.001))
	img := writeImage(t, "x.jpg")

	_, err := c.Embed(context.Background(), img)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Embed(ctx, img)
	assert.Error(t, err)
}

func TestDeepFaceClient_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	assert.NoError(t, newTestClient(srv.URL).Ping(context.Background()))
}

func TestPassthrough(t *testing.T) {
	bucket, corrected, err := Passthrough{}.Normalize(context.Background(), "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, BucketUnknown, bucket)
	assert.Empty(t, corrected)
}
