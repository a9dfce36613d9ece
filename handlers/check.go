package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"truthlens-api/logging"
	"truthlens-api/middleware"
	"truthlens-api/models"
	"truthlens-api/services"

	"github.com/gin-gonic/gin"
)

type CheckHandler struct {
	analyzer *services.Analyzer
	limiter  *services.GuestLimiter
	logger   logging.Logger
}

func NewCheckHandler(analyzer *services.Analyzer, limiter *services.GuestLimiter, logger logging.Logger) *CheckHandler {
	return &CheckHandler{analyzer: analyzer, limiter: limiter, logger: logger}
}

type CheckRequest struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type CheckResponse struct {
	ID              string                `json:"id"`
	Label           models.Label          `json:"label"`
	Confidence      float64               `json:"confidence"`
	Explanation     string                `json:"explanation"`
	ReasoningPoints []string              `json:"reasoning_points"`
	Sources         []models.SourceResult `json:"sources"`
	Language        string                `json:"language"`
	Claims          []string              `json:"claims"`
	Timestamp       time.Time             `json:"timestamp"`
	AnalysisMethod  string                `json:"analysis_method"`
}

func (h *CheckHandler) CheckNews(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	var userID uint
	if claims, ok := middleware.CurrentClaims(c); ok {
		userID = claims.UserID
	} else if h.limiter != nil {
		if allowed, _ := h.limiter.Allow(c.Request.Context(), c.ClientIP()); !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Guest request limit reached. Please sign in to continue.",
				"daily_limit": h.limiter.Limit(),
			})
			return
		}
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), services.AnalysisInput{
		Text:   req.Text,
		URL:    req.URL,
		UserID: userID,
	})
	switch {
	case errors.Is(err, services.ErrContentRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text or URL is required"})
		return
	case errors.Is(err, services.ErrContentTooShort):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Content too short for analysis"})
		return
	case err != nil:
		h.logger.WithError(err).WithField("request_id", c.GetString(middleware.RequestIDKey)).Error("Fact-checking error")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error during fact-checking",
			"details": err.Error(),
		})
		return
	}

	rec := result.Record
	sources := result.Sources
	if sources == nil {
		sources = []models.SourceResult{}
	}
	c.JSON(http.StatusOK, CheckResponse{
		ID:              rec.ID,
		Label:           rec.Label,
		Confidence:      services.RoundConfidence(rec.Confidence),
		Explanation:     rec.Explanation,
		ReasoningPoints: rec.ReasoningPoints,
		Sources:         sources,
		Language:        rec.Language,
		Claims:          rec.Claims,
		Timestamp:       time.Now().UTC(),
		AnalysisMethod:  rec.AnalysisMethod,
	})
}

// GuestStatus reports how many analyses the caller's IP has used in the
// current window.
func (h *CheckHandler) GuestStatus(c *gin.Context) {
	if h.limiter == nil {
		c.JSON(http.StatusOK, gin.H{"requests_today": 0, "daily_limit": 0})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"requests_today": h.limiter.Used(c.Request.Context(), c.ClientIP()),
		"daily_limit":    h.limiter.Limit(),
	})
}
