package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Skufu/medscore/internal/analysis"
	"github.com/Skufu/medscore/internal/metrics"
	"github.com/Skufu/medscore/internal/scoring"
)

type handler struct {
	scorer          *scoring.Scorer
	analyzer        analysis.Analyzer
	db              HealthChecker
	logger          zerolog.Logger
	analysisTimeout time.Duration
}

type scoreRequest struct {
	Age        *int     `json:"age"`
	Conditions []string `json:"conditions"`
}

type scoreResponse struct {
	Score      float64             `json:"score"`
	Assessment *scoring.Assessment `json:"assessment,omitempty"`
}

func errorBody(msg, code string) gin.H {
	return gin.H{"error": msg, "code": code}
}

func validationFailed(c *gin.Context, problems []string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"error":   "validation failed",
		"code":    "validation_failed",
		"details": problems,
	})
}

// requestInvalid answers a failed request validation: 422 with the listed
// problems, or 400 for an error that carries none.
func requestInvalid(c *gin.Context, err error) {
	if !analysis.IsValidation(err) {
		c.JSON(http.StatusBadRequest, errorBody(err.Error(), "invalid_payload"))
		return
	}
	var ve *analysis.ValidationError
	errors.As(err, &ve)
	validationFailed(c, ve.Problems)
}

// bindJSON decodes the request body, answering 413 or 400 itself on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, errorBody("request body too large", "too_large"))
			return false
		}
		c.JSON(http.StatusBadRequest, errorBody("invalid payload", "invalid_payload"))
		return false
	}
	return true
}

func (h *handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) health(c *gin.Context) {
	if !h.scorer.Available() {
		c.JSON(http.StatusServiceUnavailable, errorBody("Service unavailable", "service_unavailable"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "conditions_loaded": h.scorer.Size()})
}

func (h *handler) readyz(c *gin.Context) {
	resp := gin.H{"status": "ok", "conditions_loaded": h.scorer.Size(), "db": "disabled"}
	ready := h.scorer.Available()
	if !ready {
		resp["reference"] = "empty"
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		resp["db"] = "ok"
		if err := h.db.Ping(ctx); err != nil {
			resp["db"] = fmt.Sprintf("unhealthy: %v", err)
			ready = false
		}
	}

	if !ready {
		resp["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) score(c *gin.Context) {
	var req scoreRequest
	if !bindJSON(c, &req) {
		return
	}

	var problems []string
	if req.Age == nil {
		problems = append(problems, "age is required")
	} else if *req.Age < 0 {
		problems = append(problems, "age must not be negative")
	}
	if req.Conditions == nil {
		problems = append(problems, "conditions is required")
	}
	for i, name := range req.Conditions {
		if strings.TrimSpace(name) == "" {
			problems = append(problems, fmt.Sprintf("conditions[%d] must not be blank", i))
		}
	}
	if len(problems) > 0 {
		validationFailed(c, problems)
		return
	}

	strategy := string(h.scorer.Strategy())
	if !h.scorer.Available() {
		metrics.RecordScoreRejected(strategy)
		c.JSON(http.StatusServiceUnavailable, errorBody("Service unavailable", "service_unavailable"))
		return
	}

	a := h.scorer.Assess(req.Conditions, *req.Age)
	metrics.RecordScore(strategy, len(a.Matches) > 0, a.Score)

	resp := scoreResponse{Score: a.Score}
	if c.Query("explain") == "true" {
		resp.Assessment = &a
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) analyze(c *gin.Context) {
	if h.analyzer == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody("analysis is not configured", "analysis_disabled"))
		return
	}

	var req analysis.Request
	if !bindJSON(c, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		requestInvalid(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.analysisTimeout)
	defer cancel()

	start := time.Now()
	out, err := h.analyzer.Analyze(ctx, req)
	if err != nil {
		status, code := http.StatusBadGateway, "upstream_error"
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			status, code = http.StatusGatewayTimeout, "upstream_timeout"
		}
		metrics.RecordAnalysis(code, time.Since(start))
		h.logger.Error().
			Err(err).
			Str("request_id", c.GetString(requestIDKey)).
			Msg("analysis failed")
		c.JSON(status, errorBody("analysis failed", code))
		return
	}

	metrics.RecordAnalysis("ok", time.Since(start))
	c.Data(http.StatusOK, "application/json; charset=utf-8", out)
}
