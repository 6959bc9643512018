package audit

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/fairface-insight/fairaudit/internal/api"
	"github.com/fairface-insight/fairaudit/internal/dataset"
	"github.com/fairface-insight/fairaudit/internal/embedstore"
	apperrors "github.com/fairface-insight/fairaudit/internal/errors"
	"github.com/fairface-insight/fairaudit/internal/fairness"
	"github.com/fairface-insight/fairaudit/internal/provider"
	"github.com/fairface-insight/fairaudit/pkg/otel"
)

// AffinityDisclaimer accompanies every demographic affinity answer.
const AffinityDisclaimer = "This system does NOT classify race. It reports similarity trends from face embeddings " +
	"by comparing against reference demographic datasets. The results indicate embedding " +
	"similarity patterns, not racial identity."

// Mitigation statuses
const (
	StatusVerifiedSafe = "VERIFIED SAFE"
	StatusRejected     = "REJECTED (Threshold Mismatch)"
)

// EmbedUpload embeds a one-off image without caching it. A missing face is
// reported through Detected, not as an error.
func (e *Engine) EmbedUpload(ctx context.Context, path string) (*embedstore.Embedding, error) {
	return e.computeEmbedding(ctx, path, false)
}

// AnalyzeImage reports detection details for one uploaded image. The
// response's ModelUsed and ProcessingTime are left for the caller.
func (e *Engine) AnalyzeImage(ctx context.Context, path string) (*api.AnalyzeFaceResponse, error) {
	emb, err := e.EmbedUpload(ctx, path)
	if err != nil {
		return nil, err
	}
	out := &api.AnalyzeFaceResponse{
		FaceDetected: emb.Detected,
		BoundingBox:  emb.BoundingBox,
	}
	if emb.Detected {
		out.EmbeddingSize = len(emb.Vector)
		c := emb.Confidence
		out.Confidence = &c
	}
	return out, nil
}

// CompareImages embeds two uploads and decides whether they match. group
// selects the adaptive threshold when adaptive is set; an empty group or
// a group without a calibrated threshold uses the standard one.
func (e *Engine) CompareImages(ctx context.Context, path1, path2, group string, adaptive bool) (*api.CompareFacesResponse, error) {
	ctx, span := otel.StartSpan(ctx, tracerName, "audit.compare", otel.AttrGroup.String(group))
	defer span.End()

	a, err := e.EmbedUpload(ctx, path1)
	if err != nil {
		return nil, err
	}
	b, err := e.EmbedUpload(ctx, path2)
	if err != nil {
		return nil, err
	}

	out := &api.CompareFacesResponse{
		Face1Detected: a.Detected,
		Face2Detected: b.Detected,
	}
	if a.Usable() && b.Usable() {
		d, err := fairness.CosineDistance(a.Vector, b.Vector)
		if err != nil {
			return nil, err
		}
		decision := e.CompareThreshold(group, d, adaptive)
		otel.AddEvent(span, "threshold.decision", otel.AttrThresholdSource.String(decision.Source))
		out.Distance = &d
		out.CosineSimilarity = math.Max(0, 1-d)
		out.IsMatch = decision.WithinThreshold
		out.Decision = &decision
	}
	if out.IsMatch {
		out.Confidence = out.CosineSimilarity
	} else {
		out.Confidence = 1 - out.CosineSimilarity
	}
	return out, nil
}

// PredictAffinity measures how close an uploaded face lies to each group's
// reference centroid and applies the best match's threshold. It fails with
// ErrNoGroupsProduced when no group has usable reference images.
func (e *Engine) PredictAffinity(ctx context.Context, path string) (*api.AffinityResponse, error) {
	emb, err := e.EmbedUpload(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(emb.Vector) == 0 {
		return nil, provider.ErrNoFace
	}

	var distances []api.GroupAffinity
	for _, group := range e.opts.Groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		refs, err := e.referenceEmbeddings(ctx, group, len(emb.Vector))
		if err != nil {
			e.logger.Debug("no reference embeddings", zap.String("group", group), zap.Error(err))
			continue
		}
		centroid, err := fairness.Centroid(refs)
		if err != nil {
			return nil, err
		}
		d := fairness.MustCosineDistance(emb.Vector, centroid)
		distances = append(distances, api.GroupAffinity{
			Group:            group,
			AverageDistance:  d,
			SampleCount:      len(refs),
			IsAboveThreshold: d >= e.opts.StandardThreshold,
		})
	}
	if len(distances) == 0 {
		return nil, apperrors.ErrNoGroupsProduced
	}

	sort.SliceStable(distances, func(i, j int) bool {
		return distances[i].AverageDistance < distances[j].AverageDistance
	})
	best := distances[0]
	decision := e.CompareThreshold(best.Group, best.AverageDistance, true)

	status := StatusRejected
	if decision.WithinThreshold {
		status = StatusVerifiedSafe
	}
	return &api.AffinityResponse{
		PredictedGroup:  best.Group,
		ConfidenceScore: math.Max(0, 1-best.AverageDistance),
		Distances:       distances,
		Disclaimer:      AffinityDisclaimer,
		Mitigation: api.Mitigation{
			AppliedThreshold:    decision.ThresholdUsed,
			StandardThreshold:   e.opts.StandardThreshold,
			BiasReductionActive: decision.ThresholdUsed != e.opts.StandardThreshold,
			Status:              status,
		},
	}, nil
}

// referenceEmbeddings returns up to MaxReferenceSamples usable embeddings of
// group with dimension dim. Sampling uses the configured seed so repeated
// calls see the same references.
func (e *Engine) referenceEmbeddings(ctx context.Context, group string, dim int) ([][]float64, error) {
	rng := fairness.NewGroupRand(e.opts.Seed, group)
	ids, err := dataset.CollectFrom(e.lister, filepath.Join(e.opts.DatasetPath, group), e.opts.MaxReferenceSamples, rng)
	if err != nil {
		return nil, err
	}
	results, err := e.embedAll(ctx, ids, false)
	if err != nil {
		return nil, err
	}

	var refs [][]float64
	for _, r := range results {
		if r.err == nil && r.emb.Usable() && len(r.emb.Vector) == dim {
			refs = append(refs, r.emb.Vector)
		}
	}
	if len(refs) == 0 {
		return nil, errors.New("no usable reference embeddings")
	}
	return refs, nil
}
