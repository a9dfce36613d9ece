package handlers

import (
	"context"
	"net/http"
	"time"

	"truthlens-api/services"

	"github.com/gin-gonic/gin"
)

const (
	serviceName        = "TruthLens Fact-Checking API"
	healthCheckTimeout = 2 * time.Second
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	analyzer       *services.Analyzer
	searchProvider string
	kv             *services.KVStore
	db             Pinger
}

// NewHealthHandler accepts a nil db when the user database is not configured.
func NewHealthHandler(analyzer *services.Analyzer, searchProvider string, kv *services.KVStore, db Pinger) *HealthHandler {
	return &HealthHandler{analyzer: analyzer, searchProvider: searchProvider, kv: kv, db: db}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	modelAvailable := h.analyzer.ModelAvailable()
	mode := services.MethodHeuristic
	if modelAvailable {
		mode = services.MethodAI
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"features":  []string{"fact-checking", "multilingual", "source-verification"},
		"capabilities": gin.H{
			"openai_available":      modelAvailable,
			"fallback_verification": true,
			"multilingual_support":  true,
			"search_provider":       h.searchProvider,
			"redis_available":       h.kv.Available() && h.kv.Ping(ctx) == nil,
			"database_available":    h.db != nil && h.db.Ping(ctx) == nil,
		},
		"mode": mode,
	})
}
