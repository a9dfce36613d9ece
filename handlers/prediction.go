package handlers

import (
	"errors"
	"net/http"
	"time"

	"truthlens-api/logging"
	"truthlens-api/middleware"
	"truthlens-api/models"
	"truthlens-api/services"

	"github.com/gin-gonic/gin"
)

const historyLimit = 20

type PredictionHandler struct {
	store  *services.PredictionStore
	logger logging.Logger
}

func NewPredictionHandler(store *services.PredictionStore, logger logging.Logger) *PredictionHandler {
	return &PredictionHandler{store: store, logger: logger}
}

type PredictionListResponse struct {
	Predictions []models.PredictionSummary `json:"predictions"`
	NextCursor  string                     `json:"next_cursor,omitempty"`
	HasMore     bool                       `json:"has_more"`
}

// ListPredictions returns the most recent predictions, newest first.
func (h *PredictionHandler) ListPredictions(c *gin.Context) {
	p := ParsePagination(c)

	// One extra row tells whether another page exists.
	records, err := h.store.Recent(c.Request.Context(), p.Limit+1, p.Before)
	if err != nil {
		h.logger.WithError(err).Error("Error fetching predictions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch predictions"})
		return
	}

	hasMore := len(records) > p.Limit
	if hasMore {
		records = records[:p.Limit]
	}

	var nextCursor string
	if hasMore && len(records) > 0 {
		nextCursor = records[len(records)-1].CreatedAt.Format(time.RFC3339Nano)
	}

	c.JSON(http.StatusOK, PredictionListResponse{
		Predictions: summaries(records),
		NextCursor:  nextCursor,
		HasMore:     hasMore,
	})
}

func (h *PredictionHandler) GetPrediction(c *gin.Context) {
	rec, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, services.ErrPredictionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Prediction not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("prediction_id", c.Param("id")).Error("Error fetching prediction")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch prediction"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// UserHistory lists the caller's own most recent predictions.
func (h *PredictionHandler) UserHistory(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
		return
	}

	records, err := h.store.RecentForUser(c.Request.Context(), claims.UserID, historyLimit)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", claims.UserID).Error("Error fetching history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": summaries(records)})
}

func summaries(records []models.PredictionRecord) []models.PredictionSummary {
	out := make([]models.PredictionSummary, 0, len(records))
	for _, r := range records {
		out = append(out, r.Summary(services.SummaryTextRunes))
	}
	return out
}
