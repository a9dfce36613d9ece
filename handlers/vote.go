package handlers

import (
	"context"
	"errors"
	"net/http"

	"truthlens-api/logging"
	"truthlens-api/middleware"
	"truthlens-api/models"
	"truthlens-api/services"

	"github.com/gin-gonic/gin"
)

type VoteRepository interface {
	SaveVote(ctx context.Context, vote *models.Vote) error
	Tally(ctx context.Context, predictionID string) (services.VoteTally, error)
}

type VoteHandler struct {
	votes  VoteRepository
	store  *services.PredictionStore
	logger logging.Logger
}

// NewVoteHandler accepts a nil repository when the database is down.
func NewVoteHandler(votes VoteRepository, store *services.PredictionStore, logger logging.Logger) *VoteHandler {
	return &VoteHandler{votes: votes, store: store, logger: logger}
}

type VoteRequest struct {
	Vote int `json:"vote"`
}

func (h *VoteHandler) Vote(c *gin.Context) {
	if h.votes == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "User database is unavailable"})
		return
	}

	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
		return
	}

	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Vote != 1 && req.Vote != -1) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "vote must be 1 or -1"})
		return
	}

	predictionID := c.Param("id")
	ctx := c.Request.Context()
	if _, err := h.store.Get(ctx, predictionID); err != nil {
		if errors.Is(err, services.ErrPredictionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Prediction not found"})
			return
		}
		h.logger.WithError(err).WithField("prediction_id", predictionID).Error("Error fetching prediction")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch prediction"})
		return
	}

	vote := models.Vote{UserID: claims.UserID, PredictionID: predictionID, Value: req.Vote}
	if err := h.votes.SaveVote(ctx, &vote); err != nil {
		h.logger.WithError(err).WithFields(logging.Fields{
			"prediction_id": predictionID,
			"user_id":       claims.UserID,
		}).Error("Failed to save vote")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save vote"})
		return
	}

	tally, err := h.votes.Tally(ctx, predictionID)
	if err != nil {
		h.logger.WithError(err).WithField("prediction_id", predictionID).Warn("Failed to tally votes")
	}

	c.JSON(http.StatusOK, gin.H{
		"prediction_id": predictionID,
		"vote":          req.Vote,
		"votes":         tally,
	})
}
