// backend-go/cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/planify/backend-go/internal/api"
	"github.com/andresuchdata/planify/backend-go/internal/cache"
	"github.com/andresuchdata/planify/backend-go/internal/config"
	"github.com/andresuchdata/planify/backend-go/internal/pipeline"
	"github.com/andresuchdata/planify/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/planify/backend-go/internal/service"
	"github.com/andresuchdata/planify/backend-go/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.Server.LogLevel)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize plan cache
	planCache, err := cache.NewPlanCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Plan cache unavailable, continuing without it")
		planCache = cache.NewNoopPlanCache()
	}

	orchOpts := []pipeline.Option{pipeline.WithCache(planCache)}
	svcOpts := []service.Option{service.WithPlanCache(planCache)}

	// Initialize database
	if cfg.Database.Enabled {
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		if err := postgres.EnsureSchema(context.Background(), db); err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to prepare database schema")
		}

		runs := pipeline.NewRepository(db.DB)
		orchOpts = append(orchOpts, pipeline.WithRunRepository(runs))
		svcOpts = append(svcOpts,
			service.WithPlanRepository(postgres.NewPlanRepository(db)),
			service.WithRunHistory(runs),
		)
	}

	// Initialize services
	orchestrator := pipeline.NewOrchestrator(pipeline.ConfigFromSettings(cfg.Planning), orchOpts...)
	planningService := service.NewPlanningService(orchestrator, svcOpts...)

	// Initialize HTTP server
	router := api.NewRouter(&api.Services{
		Planning:  planningService,
		UploadDir: cfg.App.UploadDir,
		MaxUpload: int64(cfg.Server.MaxUploadMB) << 20,
	}, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// Plans run synchronously inside requests, so give them time to finish
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
