// Package main is the entry point for the codemint API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codemint/internal/core/clock"
	"codemint/internal/core/entropy"
	"codemint/internal/domain/auth"
	"codemint/internal/domain/codegen"
	"codemint/internal/infrastructure/config"
	v1 "codemint/internal/infrastructure/http/v1"
	infraseq "codemint/internal/infrastructure/sequence"
	"codemint/internal/infrastructure/storage/postgres"
	"codemint/internal/infrastructure/storage/postgres/counter_repo"
	"codemint/pkg/logger"
)

func main() {
	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting codemint server")

	// --- Database connection ---
	dsn := mustEnv("DATABASE_URL")
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)
	counterRepo := counter_repo.NewCounterRepo(txManager)

	if err := counterRepo.EnsureSchema(ctx); err != nil {
		log.Fatalw("failed to ensure counters schema", "error", err)
	}

	// --- Pattern configuration ---
	store, err := config.Load(getEnv("CODEMINT_CONFIG", ""))
	if err != nil {
		log.Fatalw("failed to load generator configuration", "error", err)
	}
	log.Infow("generator configuration loaded", "patterns", store.Keys())

	// --- Generation service ---
	allocator := infraseq.NewAllocator(counterRepo)
	service := codegen.NewService(store, allocator, txManager, clock.System{}, entropy.Crypto{})

	// --- JWT Service ---
	jwtSecret := getEnv("JWT_SECRET", "your-secret-key-change-in-production")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:           pool,
		Logger:         log,
		TokenValidator: jwtService,
		Service:        service,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}
