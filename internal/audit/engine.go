// Package audit runs fairness audits over the reference dataset and keeps
// the per-group adaptive thresholds the last audit calibrated.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fairface-insight/fairaudit/internal/api"
	"github.com/fairface-insight/fairaudit/internal/config"
	"github.com/fairface-insight/fairaudit/internal/dataset"
	"github.com/fairface-insight/fairaudit/internal/embedstore"
	apperrors "github.com/fairface-insight/fairaudit/internal/errors"
	"github.com/fairface-insight/fairaudit/internal/fairness"
	"github.com/fairface-insight/fairaudit/internal/metrics"
	"github.com/fairface-insight/fairaudit/internal/provider"
	"github.com/fairface-insight/fairaudit/pkg/otel"
)

const tracerName = "fairaudit/audit"

// Options are the engine tunables.
type Options struct {
	DatasetPath         string
	Groups              []string
	StandardThreshold   float64
	TargetFPR           float64
	MaxIdentitySamples  int
	MaxPairs            int
	LookalikeRatio      float64
	Seed                int64
	HistogramBins       int
	MaxReferenceSamples int
	GroupConcurrency    int
	EmbedConcurrency    int
}

// OptionsFromConfig copies the engine settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DatasetPath:         cfg.DatasetPath,
		Groups:              append([]string(nil), cfg.Groups...),
		StandardThreshold:   cfg.StandardThreshold,
		TargetFPR:           cfg.TargetFPR,
		MaxIdentitySamples:  cfg.MaxIdentitySamples,
		MaxPairs:            cfg.MaxPairs,
		LookalikeRatio:      cfg.LookalikeRatio,
		Seed:                cfg.Seed,
		HistogramBins:       cfg.HistogramBins,
		MaxReferenceSamples: cfg.MaxReferenceSamples,
		GroupConcurrency:    cfg.GroupConcurrency,
		EmbedConcurrency:    cfg.EmbedConcurrency,
	}
}

// Request parameterizes one audit run. Threshold <= 0 selects the
// standard threshold. MaxPairs <= 0 keeps every pair.
type Request struct {
	Threshold        float64
	UsePreprocessing bool
	MaxPairs         int
	Seed             int64
}

// Engine audits groups and answers threshold comparisons.
type Engine struct {
	opts       Options
	embedder   provider.Embedder
	normalizer provider.Normalizer
	lister     dataset.Lister
	cache      *embedstore.Cache
	logger     *zap.Logger
	metrics    *metrics.Metrics

	mu         sync.RWMutex
	thresholds map[string]float64
}

// Option configures an Engine.
type Option func(*Engine)

func WithNormalizer(n provider.Normalizer) Option {
	return func(e *Engine) { e.normalizer = n }
}

func WithLister(l dataset.Lister) Option {
	return func(e *Engine) { e.lister = l }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine. Unset collaborators default to a passthrough
// normalizer, the filesystem lister, a no-op logger and metrics on a
// private registry.
func NewEngine(opts Options, embedder provider.Embedder, cache *embedstore.Cache, options ...Option) *Engine {
	if opts.GroupConcurrency <= 0 {
		opts.GroupConcurrency = 1
	}
	if opts.EmbedConcurrency <= 0 {
		opts.EmbedConcurrency = 1
	}
	if opts.HistogramBins <= 0 {
		opts.HistogramBins = fairness.DefaultHistogramBins
	}
	e := &Engine{
		opts:       opts,
		embedder:   embedder,
		normalizer: provider.Passthrough{},
		lister:     dataset.DirLister{},
		cache:      cache,
		logger:     zap.NewNop(),
	}
	for _, o := range options {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.NewWithRegistry(prometheus.NewRegistry())
	}
	return e
}

// Options returns the engine tunables.
func (e *Engine) Options() Options {
	return e.opts
}

// DefaultRequest is a Request built from the configured defaults.
func (e *Engine) DefaultRequest() Request {
	return Request{
		Threshold: e.opts.StandardThreshold,
		MaxPairs:  e.opts.MaxPairs,
		Seed:      e.opts.Seed,
	}
}

// RunAudit audits every configured group. Groups run in parallel, each with
// its own random stream, so the result depends only on the request and the
// dataset. Groups that cannot be audited are listed in Skipped; when none
// can, RunAudit fails with ErrNoGroupsProduced and returns no result. A
// successful audit replaces the adaptive threshold table in full.
func (e *Engine) RunAudit(ctx context.Context, req Request) (*api.AuditResult, error) {
	start := time.Now()
	if req.Threshold <= 0 {
		req.Threshold = e.opts.StandardThreshold
	}
	auditID := uuid.NewString()
	e.metrics.AuditsTotal.Inc()

	ctx, span := otel.StartSpan(ctx, tracerName, "audit.run",
		otel.AuditAttributes(auditID, req.Seed, req.Threshold, req.UsePreprocessing, req.MaxPairs)...)
	defer span.End()

	log := e.logger.With(zap.String("audit_id", auditID))
	log.Info("audit started",
		zap.Strings("groups", e.opts.Groups),
		zap.Float64("threshold", req.Threshold),
		zap.Bool("use_preprocessing", req.UsePreprocessing),
		zap.Int("max_pairs", req.MaxPairs),
		zap.Int64("seed", req.Seed))

	reports := make([]*api.GroupReport, len(e.opts.Groups))
	skipped := make([]*api.SkippedGroup, len(e.opts.Groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.GroupConcurrency)
	for i, group := range e.opts.Groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rep, err := e.auditGroup(gctx, group, req)
			switch {
			case err == nil:
				reports[i] = rep
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				skipped[i] = &api.SkippedGroup{Group: group, Reason: err.Error()}
				e.metrics.GroupsSkipped.WithLabelValues(group).Inc()
				log.Warn("group skipped", zap.String("group", group), zap.Error(err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.metrics.AuditsFailed.Inc()
		otel.RecordError(span, err, "audit interrupted")
		return nil, err
	}

	result := &api.AuditResult{
		AuditID:            auditID,
		Groups:             make([]api.GroupReport, 0, len(reports)),
		Skipped:            make([]api.SkippedGroup, 0),
		Threshold:          req.Threshold,
		TargetFPR:          fairness.ClampTargetFPR(e.opts.TargetFPR),
		MaxPairs:           req.MaxPairs,
		UsePreprocessing:   req.UsePreprocessing,
		Seed:               req.Seed,
		AdaptiveThresholds: make(map[string]float64),
		Timestamp:          time.Now().UTC(),
	}
	for i := range reports {
		if reports[i] != nil {
			result.Groups = append(result.Groups, *reports[i])
		}
		if skipped[i] != nil {
			result.Skipped = append(result.Skipped, *skipped[i])
		}
	}

	if len(result.Groups) == 0 {
		e.metrics.AuditsFailed.Inc()
		otel.RecordError(span, apperrors.ErrNoGroupsProduced, "")
		log.Error("audit produced no groups", zap.Int("skipped", len(result.Skipped)))
		return nil, apperrors.ErrNoGroupsProduced
	}

	baseline := make([]fairness.Metrics, len(result.Groups))
	mitigated := make([]fairness.Metrics, len(result.Groups))
	for i, rep := range result.Groups {
		baseline[i] = rep.Baseline
		mitigated[i] = rep.Mitigated
		result.AdaptiveThresholds[rep.Group] = rep.AdaptiveThreshold
	}
	result.Score = api.ScorePair{
		Baseline:  fairness.AggregateScore(baseline),
		Mitigated: fairness.AggregateScore(mitigated),
	}

	e.replaceThresholds(result.AdaptiveThresholds)
	e.observe(result)

	span.SetAttributes(otel.ScoreAttributes(result.Score.Baseline.Score, result.Score.Mitigated.Score)...)
	e.metrics.AuditDuration.Observe(time.Since(start).Seconds())
	log.Info("audit completed",
		zap.Int("groups", len(result.Groups)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("score_baseline", result.Score.Baseline.Score),
		zap.Int("score_mitigated", result.Score.Mitigated.Score),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

func (e *Engine) observe(result *api.AuditResult) {
	for _, rep := range result.Groups {
		e.metrics.GroupsAudited.WithLabelValues(rep.Group, rep.Interpretation.Status).Inc()
		e.metrics.AdaptiveThreshold.WithLabelValues(rep.Group).Set(rep.AdaptiveThreshold)
		if ba := rep.Baseline.BalancedAccuracy; ba != nil {
			e.metrics.BalancedAccuracy.WithLabelValues(rep.Group, "baseline").Set(*ba)
		}
		if ba := rep.Mitigated.BalancedAccuracy; ba != nil {
			e.metrics.BalancedAccuracy.WithLabelValues(rep.Group, "mitigated").Set(*ba)
		}
	}
	e.metrics.FairnessScore.WithLabelValues("baseline").Set(float64(result.Score.Baseline.Score))
	e.metrics.FairnessScore.WithLabelValues("mitigated").Set(float64(result.Score.Mitigated.Score))
}

// ResetCache drops every cached embedding.
func (e *Engine) ResetCache(ctx context.Context) error {
	return e.cache.Reset(ctx)
}
