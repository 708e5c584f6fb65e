package http

import (
	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/onchain-tracker/internal/handler"
)

func loadV1Routes(r *gin.Engine, h *handler.Handler) {
	// health check
	r.GET("/healthz", h.HealthHandler.Basic)
	r.GET("/health", h.HealthHandler.Status)

	v1 := r.Group("/api/v1")

	v1.GET("/stats", h.StatsHandler.GetStats)
	v1.GET("/transactions", h.TransactionHandler.GetTransactions)
	v1.GET("/activity", h.StatsHandler.GetActivity)

	health := v1.Group("/health")
	{
		health.GET("/db", h.HealthHandler.Database)
		health.GET("/external", h.HealthHandler.External)
		health.GET("/jobs", h.HealthHandler.Jobs)
	}
}
