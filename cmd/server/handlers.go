package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fairface-insight/fairaudit/internal/api"
	"github.com/fairface-insight/fairaudit/internal/audit"
	apperrors "github.com/fairface-insight/fairaudit/internal/errors"
)

var evaluationMetrics = []string{
	"FPR (false match rate)",
	"FNR (false non-match rate)",
	"balanced accuracy",
	"d-prime",
	"genuine/impostor overlap",
	"look-alike tail rate",
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Status:    "ok",
		Model:     s.model,
		Groups:    s.cfg.Groups,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleThresholds(c *gin.Context) {
	table, calibrated := s.engine.Thresholds()
	c.JSON(http.StatusOK, api.ThresholdsResponse{
		StandardThreshold:  s.cfg.StandardThreshold,
		AdaptiveThresholds: table,
		Calibrated:         calibrated,
	})
}

func (s *Server) handleAnalyzeFace(c *gin.Context) {
	start := time.Now()
	path, cleanup, ok := s.saveUpload(c, "image", "No image uploaded")
	if !ok {
		return
	}
	defer cleanup()

	out, err := s.engine.AnalyzeImage(c.Request.Context(), path)
	if err != nil {
		s.fail(c, err, "Analysis")
		return
	}
	out.ModelUsed = s.model
	out.ProcessingTime = time.Since(start).Seconds()
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleCompareFaces(c *gin.Context) {
	start := time.Now()
	const missing = "Both image1 and image2 are required"
	if _, err := c.FormFile("image2"); err != nil {
		respondError(c, http.StatusBadRequest, missing)
		return
	}
	path1, cleanup1, ok := s.saveUpload(c, "image1", missing)
	if !ok {
		return
	}
	defer cleanup1()
	path2, cleanup2, ok := s.saveUpload(c, "image2", missing)
	if !ok {
		return
	}
	defer cleanup2()

	group := strings.TrimSpace(c.PostForm("group"))
	adaptive := group != ""
	if v, set := c.GetPostForm("adaptive"); set {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(c, http.StatusBadRequest, "adaptive must be a boolean")
			return
		}
		adaptive = b
	}

	out, err := s.engine.CompareImages(c.Request.Context(), path1, path2, group, adaptive)
	if err != nil {
		s.fail(c, err, "Comparison")
		return
	}
	out.ProcessingTime = time.Since(start).Seconds()
	c.JSON(http.StatusOK, out)
}

func (s *Server) handlePredictDemographic(c *gin.Context) {
	start := time.Now()
	path, cleanup, ok := s.saveUpload(c, "image", "No image uploaded")
	if !ok {
		return
	}
	defer cleanup()

	out, err := s.engine.PredictAffinity(c.Request.Context(), path)
	if err != nil {
		s.fail(c, err, "Affinity analysis")
		return
	}
	out.ProcessingTime = time.Since(start).Seconds()
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleFairnessAudit(c *gin.Context) {
	start := time.Now()

	var body api.AuditRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, http.StatusBadRequest, "Invalid JSON: "+err.Error())
			return
		}
	}
	req, err := s.auditRequest(body)
	if err != nil {
		s.fail(c, err, "Audit")
		return
	}

	result, err := s.engine.RunAudit(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err, "Audit")
		return
	}
	c.JSON(http.StatusOK, api.AuditResponse{
		AuditResult: result,
		EvaluationPlan: api.EvaluationPlan{
			Metrics: evaluationMetrics,
			Baselines: []string{
				s.model + " at the standard threshold",
				s.model + " with adaptive per-group thresholds",
			},
			Dataset: "Reference identity sets under " + s.cfg.DatasetPath,
		},
		ProcessingTime: time.Since(start).Seconds(),
	})
}

// auditRequest merges the optional body fields into the configured
// defaults.
func (s *Server) auditRequest(body api.AuditRequest) (audit.Request, error) {
	req := s.engine.DefaultRequest()
	if body.Threshold != nil {
		if *body.Threshold <= 0 || *body.Threshold > 2 {
			return req, apperrors.NewValidationError("fairness-audit", "threshold must be in (0, 2]")
		}
		req.Threshold = *body.Threshold
	}
	if body.UsePreprocessing != nil {
		req.UsePreprocessing = *body.UsePreprocessing
	}
	if body.MaxPairs != nil {
		if *body.MaxPairs < 0 {
			return req, apperrors.NewValidationError("fairness-audit", "maxPairs must not be negative")
		}
		req.MaxPairs = *body.MaxPairs
	}
	if body.Seed != nil {
		req.Seed = *body.Seed
	}
	return req, nil
}

// saveUpload stores the multipart file field under UploadDir with a unique
// name. When the field is missing it answers 400 with missingMsg and
// returns ok=false.
func (s *Server) saveUpload(c *gin.Context, field, missingMsg string) (path string, cleanup func(), ok bool) {
	fh, err := c.FormFile(field)
	if err != nil {
		respondError(c, http.StatusBadRequest, missingMsg)
		return "", nil, false
	}

	path = filepath.Join(s.cfg.UploadDir, uuid.NewString()+"_"+sanitizeFilename(fh.Filename))
	if err := c.SaveUploadedFile(fh, path); err != nil {
		s.logger.Error("failed to save upload", zap.String("field", field), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Failed to store upload")
		return "", nil, false
	}
	return path, func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove upload", zap.String("path", path), zap.Error(err))
		}
	}, true
}

// sanitizeFilename keeps the base name's letters, digits, dots, dashes and
// underscores.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "upload"
	}
	return out
}

// fail maps engine errors onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error, op string) {
	status := http.StatusInternalServerError
	msg := fmt.Sprintf("%s failed: %v", op, err)

	switch {
	case apperrors.Is(err, apperrors.ErrNoGroupsProduced):
		msg = err.Error()
	case apperrors.Is(err, apperrors.ErrNoFaceDetected):
		msg = "Unable to generate embedding: no face detected"
	case apperrors.Is(err, apperrors.ErrEmbeddingUnavailable):
		status = http.StatusServiceUnavailable
		msg = "Embedding provider unavailable"
	case apperrors.Is(err, context.Canceled), apperrors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
		msg = op + " interrupted"
	default:
		if t, ok := apperrors.TypeOf(err); ok && t == apperrors.ErrorTypeValidation {
			status = http.StatusBadRequest
			msg = err.Error()
		}
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	}
	respondError(c, status, msg)
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, api.ErrorResponse{Error: msg})
}
