package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fairface-insight/fairaudit/internal/audit"
	"github.com/fairface-insight/fairaudit/internal/config"
	"github.com/fairface-insight/fairaudit/internal/metrics"
)

// maxUploadMemory bounds the multipart form held in memory; larger parts
// spill to temporary files.
const maxUploadMemory = 16 << 20

// Server serves the audit engine over HTTP.
type Server struct {
	cfg      *config.Config
	engine   *audit.Engine
	model    string
	logger   *zap.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	limiter  *rate.Limiter
}

// NewServer creates a server. TokenRate <= 0 disables request limiting.
func NewServer(cfg *config.Config, engine *audit.Engine, model string, logger *zap.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.TokenRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.TokenRate), cfg.TokenRate*2)
	}
	return &Server{
		cfg:      cfg,
		engine:   engine,
		model:    model,
		logger:   logger,
		metrics:  m,
		gatherer: gatherer,
		limiter:  limiter,
	}
}

// Router builds the gin engine with every route and middleware.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = maxUploadMemory
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.Use(s.requestMetrics())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))
	r.Use(securityHeaders())

	routes := r.Group("/api")
	routes.GET("/health", s.handleHealth)
	routes.GET("/thresholds", s.handleThresholds)

	limited := routes.Group("", s.rateLimit())
	limited.POST("/analyze-face", s.handleAnalyzeFace)
	limited.POST("/compare-faces", s.handleCompareFaces)
	limited.POST("/predict-demographic", s.handlePredictDemographic)
	limited.POST("/fairness-audit", s.handleFairnessAudit)

	metricsHandler := gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	if s.cfg.MetricsUser != "" {
		r.GET("/metrics", gin.BasicAuthForRealm(gin.Accounts{s.cfg.MetricsUser: s.cfg.MetricsPass}, "Metrics"), metricsHandler)
	} else {
		r.GET("/metrics", metricsHandler)
	}

	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, c.Request.Method+" "+c.Request.URL.Path+" does not exist")
	})
	return r
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Cache-Control", "no-store")
		h.Set("Pragma", "no-cache")
		h.Set("X-Content-Type-Options", "nosniff")
		c.Next()
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow() {
			s.metrics.RateLimited.Inc()
			c.Header("Retry-After", "10")
			respondError(c, http.StatusTooManyRequests, "Too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Warn("request failed", fields...)
			return
		}
		s.logger.Debug("request served", fields...)
	}
}
