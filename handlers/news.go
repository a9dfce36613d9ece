package handlers

import (
	"net/http"

	"truthlens-api/logging"
	"truthlens-api/services"

	"github.com/gin-gonic/gin"
)

type NewsHandler struct {
	feed   *services.NewsFeed
	logger logging.Logger
}

func NewNewsHandler(feed *services.NewsFeed, logger logging.Logger) *NewsHandler {
	return &NewsHandler{feed: feed, logger: logger}
}

func (h *NewsHandler) NewsFeed(c *gin.Context) {
	items, err := h.feed.Latest(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load news feed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load news feed"})
		return
	}
	if items == nil {
		items = []services.FeedItem{}
	}
	c.JSON(http.StatusOK, items)
}
