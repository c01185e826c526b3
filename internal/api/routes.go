package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/kdp-pulse/internal/api/handlers"
	"github.com/irfndi/kdp-pulse/internal/middleware"
	"github.com/irfndi/kdp-pulse/internal/services"
)

// Dependencies are the stores and services the HTTP layer is built on
type Dependencies struct {
	Snapshots     handlers.SnapshotReader
	Ledgers       services.FeedbackLedgerStore
	Events        handlers.FeedbackEventWriter
	Weights       handlers.WeightsStore
	Generator     handlers.GenerationRunner
	Ranker        *services.RelevanceRanker
	SnapshotLimit int
	HealthChecks  map[string]handlers.HealthChecker
	ServiceName   string
	Logger        *logrus.Logger
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	if deps.Ranker == nil {
		deps.Ranker = services.NewRelevanceRanker(true)
	}

	router.Use(middleware.Tracing(deps.ServiceName))
	router.Use(middleware.RequestLogger(deps.Logger))

	healthHandler := handlers.NewHealthHandler(deps.HealthChecks)
	notificationHandler := handlers.NewNotificationHandler(
		deps.Snapshots, deps.Ledgers, deps.Events, deps.Ranker, deps.SnapshotLimit, deps.Logger)
	generationHandler := handlers.NewGenerationHandler(deps.Generator, deps.Logger)
	royaltyHandler := handlers.NewRoyaltyHandler(deps.Logger)
	weightsHandler := handlers.NewWeightsHandler(deps.Weights, deps.Logger)

	// Health check endpoint
	router.GET("/health", healthHandler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		users := v1.Group("/users/:user_id")
		{
			users.GET("/notifications", notificationHandler.GetNotifications)
			users.POST("/notifications/:snapshot_id/feedback", notificationHandler.SubmitFeedback)
			users.POST("/snapshots/generate", generationHandler.GenerateSnapshots)
			users.GET("/weights", weightsHandler.GetWeights)
			users.PUT("/weights", weightsHandler.PutWeights)
		}

		royalty := v1.Group("/royalty")
		{
			royalty.GET("/estimate", royaltyHandler.Estimate)
		}
	}
}
