package audit

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fairface-insight/fairaudit/internal/api"
	"github.com/fairface-insight/fairaudit/internal/dataset"
	"github.com/fairface-insight/fairaudit/internal/embedstore"
	apperrors "github.com/fairface-insight/fairaudit/internal/errors"
	"github.com/fairface-insight/fairaudit/internal/fairness"
	"github.com/fairface-insight/fairaudit/internal/provider"
	"github.com/fairface-insight/fairaudit/pkg/otel"
)

// Warnings attached to group reports
const (
	WarnTooFewIdentities = "need at least two identities to form impostor pairs"
	WarnNoGenuinePairs   = "no genuine pairs: every identity has a single usable image"
	WarnNoImpostorPairs  = "no impostor pairs could be sampled"
)

// Failure reasons for images without a usable embedding
const (
	reasonNoFace        = "no_face"
	reasonUnavailable   = "unavailable"
	reasonDimMismatch   = "dimension_mismatch"
	reasonLowConfidence = "low_confidence"
)

type imageResult struct {
	emb *embedstore.Embedding
	err error
}

// auditGroup builds one group's report. It returns an error wrapping
// ErrEmptyGroup when the group has no usable image; every other data
// problem becomes a warning on the report.
func (e *Engine) auditGroup(ctx context.Context, group string, req Request) (*api.GroupReport, error) {
	ctx, span := otel.StartSpan(ctx, tracerName, "audit.group", otel.AttrGroup.String(group))
	defer span.End()

	rng := fairness.NewGroupRand(req.Seed, group)
	ids, err := dataset.CollectFrom(e.lister, filepath.Join(e.opts.DatasetPath, group), e.opts.MaxIdentitySamples, rng)
	if err != nil {
		return nil, err
	}

	results, err := e.embedAll(ctx, ids, req.UsePreprocessing)
	if err != nil {
		return nil, err
	}

	rep := &api.GroupReport{
		Group:               group,
		ImageCount:          ids.ImageCount(),
		IlluminationBuckets: make(map[string]int),
		StandardThreshold:   req.Threshold,
		Warnings:            make([]string, 0),
	}

	failures := make(map[string]int)
	var (
		identities []fairness.Identity
		all        [][]float64
		dim        int
	)
	k := 0
	for _, id := range ids {
		var vecs [][]float64
		for range id.Paths {
			r := results[k]
			k++

			if r.err != nil {
				failures[reasonUnavailable]++
				continue
			}
			emb := r.emb
			if emb.IlluminationBucket != "" {
				rep.IlluminationBuckets[emb.IlluminationBucket]++
			}
			if emb.Preprocessed {
				rep.PreprocessingUsed++
			}
			if emb.Detected {
				rep.DetectedCount++
			}
			if !emb.Usable() {
				if len(emb.Vector) > 0 {
					failures[reasonLowConfidence]++
				} else {
					failures[reasonNoFace]++
				}
				continue
			}
			if dim == 0 {
				dim = len(emb.Vector)
			} else if len(emb.Vector) != dim {
				failures[reasonDimMismatch]++
				continue
			}
			vecs = append(vecs, emb.Vector)
		}
		if len(vecs) > 0 {
			identities = append(identities, fairness.Identity{Label: id.Label, Embeddings: vecs})
			all = append(all, vecs...)
		}
	}

	for reason, n := range failures {
		e.metrics.EmbedFailures.WithLabelValues(reason).Add(float64(n))
	}
	if rep.ImageCount > 0 {
		rep.DetectionRate = float64(rep.DetectedCount) / float64(rep.ImageCount)
	}
	rep.EmbeddedCount = len(all)
	rep.IdentityCount = len(identities)

	if len(all) == 0 {
		return nil, fmt.Errorf("%w: %s has %d images and none produced a usable embedding",
			apperrors.ErrEmptyGroup, group, rep.ImageCount)
	}
	if n := rep.ImageCount - rep.EmbeddedCount; n > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d of %d images produced no usable embedding", n, rep.ImageCount))
	}
	if n := failures[reasonDimMismatch]; n > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d embeddings dropped for dimension mismatch (%v)", n, apperrors.ErrDimensionMismatch))
	}

	// genuine pairs are drawn before impostor pairs from the same stream
	pairs := fairness.SamplePairs(identities, req.MaxPairs, rng)
	rep.GenuinePairs = len(pairs.Genuine)
	rep.ImpostorPairs = len(pairs.Impostor)
	span.SetAttributes(otel.GroupAttributes(group, rep.IdentityCount, rep.GenuinePairs, rep.ImpostorPairs)...)

	if len(identities) < 2 {
		rep.Warnings = append(rep.Warnings, WarnTooFewIdentities)
	}
	if len(pairs.Genuine) == 0 {
		rep.Warnings = append(rep.Warnings, WarnNoGenuinePairs)
	}
	if len(pairs.Impostor) == 0 && len(identities) >= 2 {
		rep.Warnings = append(rep.Warnings, WarnNoImpostorPairs)
	}

	centroid, err := fairness.MeanCentroidDistance(all)
	if err != nil {
		return nil, err
	}
	rep.CentroidDistance = centroid

	rep.Baseline = fairness.ComputeMetrics(pairs.Genuine, pairs.Impostor, req.Threshold)
	rep.AdaptiveThreshold = fairness.CalibrateThreshold(pairs.Impostor, e.opts.TargetFPR, req.Threshold)
	rep.Mitigated = fairness.ComputeMetrics(pairs.Genuine, pairs.Impostor, rep.AdaptiveThreshold)

	rep.Genuine = fairness.Analyze(pairs.Genuine, e.opts.HistogramBins)
	rep.Impostor = fairness.Analyze(pairs.Impostor, e.opts.HistogramBins)
	rep.Overlap = fairness.Overlap(pairs.Genuine, pairs.Impostor, e.opts.HistogramBins)
	rep.DPrime = fairness.DPrime(pairs.Genuine, pairs.Impostor)
	rep.Lookalike = fairness.EstimateLookalikeRisk(pairs.Impostor, req.Threshold, e.opts.LookalikeRatio)
	rep.Interpretation = fairness.Interpret(rep.Baseline.BalancedAccuracy, rep.DetectionRate)

	span.SetAttributes(
		otel.AttrAdaptiveThresh.Float64(rep.AdaptiveThreshold),
		otel.AttrInterpretation.String(rep.Interpretation.Status),
	)
	e.logger.Debug("group audited",
		zap.String("group", group),
		zap.Int("identities", rep.IdentityCount),
		zap.Int("genuine_pairs", rep.GenuinePairs),
		zap.Int("impostor_pairs", rep.ImpostorPairs),
		zap.Float64("adaptive_threshold", rep.AdaptiveThreshold),
		zap.String("status", rep.Interpretation.Status))

	return rep, nil
}

// embedAll embeds every image of ids in identity order. Per-image failures
// are returned in place; only cancellation fails the call.
func (e *Engine) embedAll(ctx context.Context, ids dataset.Identities, preprocess bool) ([]imageResult, error) {
	paths := make([]string, 0, ids.ImageCount())
	for _, id := range ids {
		paths = append(paths, id.Paths...)
	}

	results := make([]imageResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.EmbedConcurrency)
	for i, p := range paths {
		g.Go(func() error {
			emb, err := e.embedCached(gctx, p, preprocess)
			results[i] = imageResult{emb: emb, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// embedCached returns the embedding for (path, preprocess), computing it at
// most once per key.
func (e *Engine) embedCached(ctx context.Context, path string, preprocess bool) (*embedstore.Embedding, error) {
	ctx, span := otel.StartSpan(ctx, tracerName, "audit.embed.lookup", otel.AttrImagePath.String(path))
	defer span.End()

	start := time.Now()
	key := embedstore.Key{Path: path, Preprocessed: preprocess}
	emb, hit, err := e.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*embedstore.Embedding, error) {
		return e.computeEmbedding(ctx, path, preprocess)
	})
	span.SetAttributes(otel.LookupAttributes(hit, time.Since(start))...)
	if err != nil {
		e.logger.Debug("embedding unavailable", zap.String("image", path), zap.Error(err))
		return nil, err
	}
	if hit {
		e.logger.Debug("embedding cache hit", zap.String("image", path), zap.Bool("preprocessed", preprocess))
	}
	return emb, nil
}

// computeEmbedding calls the provider for the raw image and, when
// preprocessing is requested, for the normalized variant, keeping whichever
// has the higher detection confidence. A missing face is a valid result;
// provider failures are returned as ErrEmbeddingUnavailable.
func (e *Engine) computeEmbedding(ctx context.Context, path string, preprocess bool) (*embedstore.Embedding, error) {
	ctx, span := otel.StartSpan(ctx, tracerName, "audit.embed")
	defer span.End()

	start := time.Now()
	best, rawErr := e.embedder.Embed(ctx, path)
	e.metrics.EmbedDuration.Observe(time.Since(start).Seconds())
	if rawErr != nil {
		best = nil
	}

	bucket := ""
	usedVariant := false
	if preprocess {
		b, corrected, err := e.normalizer.Normalize(ctx, path)
		if err != nil {
			e.logger.Warn("illumination normalization failed", zap.String("image", path), zap.Error(err))
		} else {
			bucket = b
			if corrected != "" {
				variant, err := e.embedder.Embed(ctx, corrected)
				if err == nil && (best == nil || variant.Confidence > best.Confidence) {
					best = variant
					usedVariant = true
				}
			}
		}
	}

	if best == nil {
		if rawErr == nil || errors.Is(rawErr, provider.ErrNoFace) {
			span.SetAttributes(otel.EmbedAttributes(path, preprocess, "")...)
			return &embedstore.Embedding{IlluminationBucket: bucket}, nil
		}
		otel.RecordError(span, rawErr, "embedding failed")
		if errors.Is(rawErr, apperrors.ErrEmbeddingUnavailable) {
			return nil, rawErr
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrEmbeddingUnavailable, rawErr)
	}

	span.SetAttributes(otel.EmbedAttributes(path, preprocess, best.Backend)...)
	return &embedstore.Embedding{
		Vector:             best.Embedding,
		Detected:           best.Detected,
		Confidence:         best.Confidence,
		BoundingBox:        best.BoundingBox,
		IlluminationBucket: bucket,
		Preprocessed:       usedVariant,
		Backend:            best.Backend,
	}, nil
}
