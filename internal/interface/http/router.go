package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/health-insight/internal/domain/auth"
	"github.com/yanqian/health-insight/internal/infra/config"
	"github.com/yanqian/health-insight/pkg/metrics"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler, authSvc auth.Service, rec *metrics.Recorder, logger *slog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	logger = logger.With("component", "http.router")

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(logger),
		metricsMiddleware(rec),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		errorHandlingMiddleware(logger),
		rateLimitMiddleware(cfg.HTTP.RateLimit, logger),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(rec.Handler()))

	requireAuth := authMiddleware(authSvc)

	// Paths used by the shipped mobile client.
	router.POST("/auth/login", handler.Login)
	router.POST("/chat", requireAuth, handler.Chat)

	api := router.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/register", handler.Register)
		authGroup.POST("/login", handler.Login)
		authGroup.POST("/refresh", handler.Refresh)
		authGroup.GET("/google/login", handler.GoogleLogin)
		authGroup.GET("/google/callback", handler.GoogleCallback)
		authGroup.GET("/me", requireAuth, handler.Me)
		authGroup.POST("/logout", requireAuth, handler.Logout)

		health := api.Group("/health", requireAuth)
		health.GET("", handler.HealthSnapshot)
		health.GET("/metrics/:name", handler.HealthMetric)
		health.POST("/samples", handler.IngestSamples)

		chatGroup := api.Group("/chat", requireAuth)
		chatGroup.POST("", handler.Chat)
		chatGroup.GET("/history", handler.ChatHistory)
		chatGroup.DELETE("/history", handler.ResetChat)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}
