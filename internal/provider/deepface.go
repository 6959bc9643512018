package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fairface-insight/fairaudit/internal/api"
	apperrors "github.com/fairface-insight/fairaudit/internal/errors"
)

// representRequest is the body of POST /represent on a DeepFace API server
type representRequest struct {
	Img              string `json:"img"` // base64 data URI
	ModelName        string `json:"model_name"`
	DetectorBackend  string `json:"detector_backend"`
	EnforceDetection bool   `json:"enforce_detection"`
	Align            bool   `json:"align"`
}

type representResponse struct {
	Results []representResult `json:"results"`
	Error   string            `json:"error,omitempty"`
}

type representResult struct {
	Embedding      []float64  `json:"embedding"`
	FacialArea     facialArea `json:"facial_area"`
	FaceConfidence float64    `json:"face_confidence"`
}

type facialArea struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// DeepFaceConfig configures a DeepFaceClient
type DeepFaceConfig struct {
	BaseURL       string
	Model         string
	Detector      string
	Timeout       time.Duration
	MinConfidence float64
}

// DeepFaceClient calls a DeepFace REST server for embeddings.
type DeepFaceClient struct {
	cfg     DeepFaceConfig
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// ClientOption configures a DeepFaceClient
type ClientOption func(*DeepFaceClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *DeepFaceClient) { c.http = hc }
}

// WithRateLimit bounds outbound calls to rps requests per second.
// rps <= 0 leaves calls unlimited.
func WithRateLimit(rps float64) ClientOption {
	return func(c *DeepFaceClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

func WithClientLogger(l *zap.Logger) ClientOption {
	return func(c *DeepFaceClient) { c.logger = l }
}

// NewDeepFaceClient creates a client for the server at cfg.BaseURL.
func NewDeepFaceClient(cfg DeepFaceConfig, opts ...ClientOption) *DeepFaceClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := &DeepFaceClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured recognition model name.
func (c *DeepFaceClient) Model() string {
	return c.cfg.Model
}

// Embed reads imagePath, sends it to /represent and returns the first face.
// Detection is not enforced server side; Detected is set when the face
// confidence reaches MinConfidence.
func (c *DeepFaceClient) Embed(ctx context.Context, imagePath string) (*Result, error) {
	img, err := encodeImage(imagePath)
	if err != nil {
		return nil, apperrors.WrapDataError(err, "provider.Embed", "failed to read image")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(representRequest{
		Img:              img,
		ModelName:        c.cfg.Model,
		DetectorBackend:  c.cfg.Detector,
		EnforceDetection: false,
		Align:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/represent", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Join(apperrors.ErrEmbeddingUnavailable,
			apperrors.WrapNetworkError(err, "provider.Embed", "represent request failed"))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, apperrors.Join(apperrors.ErrEmbeddingUnavailable,
			apperrors.WrapNetworkError(err, "provider.Embed", "failed to read response"))
	}

	var out representResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil && resp.StatusCode == http.StatusOK {
			return nil, apperrors.Join(apperrors.ErrEmbeddingUnavailable,
				apperrors.WrapDataError(err, "provider.Embed", "invalid represent response"))
		}
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusBadRequest && isNoFaceMessage(out.Error) {
			return nil, ErrNoFace
		}
		c.logger.Debug("represent call failed",
			zap.String("image", imagePath),
			zap.Int("status", resp.StatusCode),
			zap.String("error", out.Error))
		return nil, fmt.Errorf("%w: represent returned status %d: %s",
			apperrors.ErrEmbeddingUnavailable, resp.StatusCode, out.Error)
	}

	if len(out.Results) == 0 || len(out.Results[0].Embedding) == 0 {
		return nil, ErrNoFace
	}

	first := out.Results[0]
	return &Result{
		Embedding:   first.Embedding,
		Detected:    first.FaceConfidence >= c.cfg.MinConfidence,
		Confidence:  first.FaceConfidence,
		BoundingBox: first.FacialArea.box(),
		Backend:     c.cfg.Detector,
	}, nil
}

// Ping checks that the server answers.
func (c *DeepFaceClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.WrapNetworkError(err, "provider.Ping", "embedder unreachable")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("embedder unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (a facialArea) box() *api.BoundingBox {
	if a.W <= 0 || a.H <= 0 {
		return nil
	}
	return &api.BoundingBox{X: a.X, Y: a.Y, Width: a.W, Height: a.H}
}

func isNoFaceMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "face could not be detected") || strings.Contains(msg, "no face")
}

// encodeImage returns the file as a base64 data URI.
func encodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
