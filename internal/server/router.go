// Package server exposes the scorer and the LLM analysis client over HTTP.
package server

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Skufu/medscore/internal/analysis"
	"github.com/Skufu/medscore/internal/metrics"
	"github.com/Skufu/medscore/internal/scoring"
)

// HealthChecker is an optional dependency that must answer before the
// service reports ready.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Scorer          *scoring.Scorer
	Analyzer        analysis.Analyzer
	DB              HealthChecker
	Logger          zerolog.Logger
	CORSOrigins     []string
	MaxBodyBytes    int64
	RateLimitRPS    float64
	RateLimitBurst  int
	AnalysisTimeout time.Duration
}

func NewRouter(opts Options) *gin.Engine {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.AnalysisTimeout <= 0 {
		opts.AnalysisTimeout = 30 * time.Second
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(
		RequestID(),
		Recovery(opts.Logger),
		Logger(opts.Logger),
		metrics.Middleware(),
		limitBodySize(opts.MaxBodyBytes),
		cors.New(cors.Config{
			AllowOrigins:  origins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
			ExposeHeaders: []string{requestIDHeader},
			MaxAge:        12 * time.Hour,
		}),
	)

	h := &handler{
		scorer:          opts.Scorer,
		analyzer:        opts.Analyzer,
		db:              opts.DB,
		logger:          opts.Logger,
		analysisTimeout: opts.AnalysisTimeout,
	}

	router.GET("/healthz", h.healthz)
	router.GET("/health", h.health)
	router.GET("/readyz", h.readyz)
	router.GET("/metrics", metrics.Handler())

	limited := router.Group("/", RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))
	limited.POST("/score", h.score)
	limited.POST("/api/analysis", h.analyze)

	return router
}
