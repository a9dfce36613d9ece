package handlers

import (
	"net/http"
	"strings"

	"truthlens-api/config"
	"truthlens-api/logging"
	"truthlens-api/middleware"
	"truthlens-api/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps collects everything the HTTP layer talks to. Users, Votes and
// DB are nil when the user database is unavailable.
type RouterDeps struct {
	Config   *config.Config
	Logger   logging.Logger
	Analyzer *services.Analyzer
	Limiter  *services.GuestLimiter
	Store    *services.PredictionStore
	KV       *services.KVStore
	Auth     *services.AuthService
	Feed     *services.NewsFeed
	Users    UserRepository
	Votes    VoteRepository
	DB       Pinger
	Gatherer prometheus.Gatherer
}

func NewRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID(d.Logger))
	router.Use(middleware.SetupCORS(d.Config.CORS))

	checkHandler := NewCheckHandler(d.Analyzer, d.Limiter, d.Logger)
	predictionHandler := NewPredictionHandler(d.Store, d.Logger)
	voteHandler := NewVoteHandler(d.Votes, d.Store, d.Logger)
	authHandler := NewAuthHandler(d.Users, d.Auth, d.Logger)
	healthHandler := NewHealthHandler(d.Analyzer, d.Config.Search.Provider, d.KV, d.DB)
	newsHandler := NewNewsHandler(d.Feed, d.Logger)

	if d.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group(d.Config.Server.APIPrefix)
	{
		api.GET("/health", healthHandler.Health)
		api.POST("/check-news", middleware.OptionalAuth(d.Auth), checkHandler.CheckNews)
		api.GET("/news-feed", newsHandler.NewsFeed)

		predictions := api.Group("/predictions")
		predictions.GET("", middleware.RequireBearer(), predictionHandler.ListPredictions)
		predictions.GET("/:id", predictionHandler.GetPrediction)
		predictions.POST("/:id/vote", middleware.RequireAuth(d.Auth), voteHandler.Vote)

		auth := api.Group("/auth")
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)

		users := api.Group("/users")
		users.GET("/me/history", middleware.RequireAuth(d.Auth), predictionHandler.UserHistory)
		users.GET("/guest/status", checkHandler.GuestStatus)

		api.GET("/ws/live", LiveWebSocket(d.KV, d.Auth, d.Logger))
	}

	endpoints := availableEndpoints(d.Config.Server.APIPrefix)
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":               "Not found",
			"message":             serviceName,
			"available_endpoints": endpoints,
		})
	})

	return router
}

func availableEndpoints(prefix string) []string {
	routes := []string{
		"POST /check-news",
		"GET /predictions",
		"GET /predictions/:id",
		"POST /predictions/:id/vote",
		"GET /health",
		"POST /auth/register",
		"POST /auth/login",
		"POST /auth/logout",
		"GET /users/me/history",
		"GET /users/guest/status",
		"GET /news-feed",
		"GET /ws/live",
	}
	out := make([]string, 0, len(routes))
	for _, r := range routes {
		method, path, _ := strings.Cut(r, " ")
		out = append(out, method+" "+prefix+path)
	}
	return out
}
