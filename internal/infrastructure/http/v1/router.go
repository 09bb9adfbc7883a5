// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"codemint/internal/domain/codegen"
	"codemint/internal/infrastructure/http/v1/handlers"
	"codemint/internal/infrastructure/http/v1/middleware"
	"codemint/internal/infrastructure/storage/postgres"
	"codemint/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks)
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// TokenValidator for bearer token validation
	TokenValidator middleware.TokenValidator

	// Service performs code generation and confirmation
	Service *codegen.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.TokenValidator))
	{
		codesHandler := handlers.NewCodesHandler(cfg.Service)
		codes := v1.Group("/codes")
		{
			codes.POST("/generate", codesHandler.Generate)
			codes.POST("/confirm", codesHandler.Confirm)
		}
	}

	return router
}
