// Package api wires the planning HTTP endpoints onto a gin router.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/planify/backend-go/internal/api/handlers"
	"github.com/andresuchdata/planify/backend-go/internal/api/middleware"
	"github.com/andresuchdata/planify/backend-go/internal/service"
)

type Services struct {
	Planning  *service.PlanningService
	UploadDir string
	MaxUpload int64 // bytes; 0 keeps gin's default multipart memory
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	apiGroup := router.Group("/api/v1")

	if services != nil && services.Planning != nil {
		if services.MaxUpload > 0 {
			router.MaxMultipartMemory = services.MaxUpload
		}

		planHandler := handlers.NewPlanHandler(services.Planning, services.UploadDir)
		planGroup := apiGroup.Group("/plans")
		{
			planGroup.POST("", planHandler.CreatePlan)
			planGroup.GET("/:id", planHandler.GetPlan)
			planGroup.GET("/:id/:table", planHandler.GetPlanTable)
		}

		runHandler := handlers.NewRunHandler(services.Planning)
		apiGroup.GET("/runs", runHandler.ListRuns)
		apiGroup.GET("/metrics", runHandler.Metrics)

		analysisHandler := handlers.NewAnalysisHandler(services.Planning)
		apiGroup.POST("/forecast/predict", analysisHandler.PredictForecast)
		apiGroup.POST("/inventory/analyze", analysisHandler.AnalyzeInventory)
		apiGroup.POST("/purchase/evaluate", analysisHandler.EvaluatePurchase)
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
