// Package routes assembles the HTTP surface of the service.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/courier-service/courier_service/internal/api/handlers"
	"github.com/courier-service/courier_service/internal/api/middleware"
	"github.com/courier-service/courier_service/internal/infrastructure/di"
)

// SetupRoutes configures all application routes
func SetupRoutes(container *di.Container) *gin.Engine {
	if container.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(container.Logger))
	router.Use(middleware.Recovery(container.Logger))
	router.Use(middleware.RateLimit(container.Config.Server.RateLimitPerMin))
	router.Use(middleware.SecurityHeaders())

	healthHandlers := handlers.NewHealthHandlers(container.HealthChecks(), container.Logger)
	transferHandlers := handlers.NewTransferHandlers(container.TransferService, container.Logger)

	router.GET("/health", healthHandlers.Health)
	router.GET("/ready", healthHandlers.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		transfers := v1.Group("/transfers")
		{
			transfers.POST("", transferHandlers.StartTransfer)
			transfers.POST("/resume", transferHandlers.ResumeTransfer)
			transfers.GET("", transferHandlers.ListTransfers)
			transfers.GET("/:id", transferHandlers.GetTransfer)
			transfers.GET("/:id/log", transferHandlers.GetActionLog)
			transfers.POST("/:id/refund", transferHandlers.RefundTransfer)
			transfers.POST("/:id/recovery", transferHandlers.ExportRecovery)
		}
	}

	return router
}
