package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/planify/backend-go/internal/config"
	"github.com/andresuchdata/planify/backend-go/internal/drive"
	"github.com/andresuchdata/planify/backend-go/internal/pipeline"
	"github.com/andresuchdata/planify/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/planify/backend-go/internal/service"
	"github.com/andresuchdata/planify/backend-go/pkg/logger"
)

// The Drive gateway plans over input folders shared on Google Drive.
func main() {
	// Load configuration
	cfg := config.Load()
	logger.SetLevel(cfg.Server.LogLevel)

	// Initialize Google Drive service
	driveService, err := drive.NewService(context.Background(), cfg.Drive.CredentialsJSON)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Google Drive service")
	}

	// Initialize Services
	var opts []service.Option
	if cfg.Database.Enabled {
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer db.Close()
		opts = append(opts, service.WithPlanRepository(postgres.NewPlanRepository(db)))
	}
	planningService := service.NewPlanningService(
		pipeline.NewOrchestrator(pipeline.ConfigFromSettings(cfg.Planning)),
		opts...,
	)
	importer := drive.NewImporter(drive.NewDownloader(driveService), planningService, cfg.Drive.DownloadDir)

	// Register routes
	r := mux.NewRouter()
	driveHandler := drive.NewHandler(driveService, importer)
	driveHandler.RegisterRoutes(r)

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Info().Str("addr", addr).Msg("Drive gateway starting")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal().Err(err).Msg("Drive gateway stopped")
	}
}
