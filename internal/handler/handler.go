package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/dwarvesf/onchain-tracker/internal/chain"
	"github.com/dwarvesf/onchain-tracker/internal/handler/health"
	"github.com/dwarvesf/onchain-tracker/internal/handler/metrics"
	"github.com/dwarvesf/onchain-tracker/internal/handler/stats"
	"github.com/dwarvesf/onchain-tracker/internal/handler/transaction"
	"github.com/dwarvesf/onchain-tracker/internal/monitoring"
	"github.com/dwarvesf/onchain-tracker/internal/telemetry"
	"github.com/dwarvesf/onchain-tracker/internal/utils/config"
	"github.com/dwarvesf/onchain-tracker/internal/utils/logger"
)

type Handler struct {
	StatsHandler       stats.IHandler
	TransactionHandler transaction.IHandler
	HealthHandler      health.IHealthHandler
	MetricsHandler     *metrics.MetricsHandler
}

// Deps groups what the HTTP handlers read from. Only the telemetry and the
// database are required.
type Deps struct {
	Telemetry        telemetry.ITelemetry
	DB               *gorm.DB
	Adapters         []chain.IAdapter
	Reconcilers      []health.DegradedReporter
	JobStatusManager *monitoring.JobStatusManager
	MetricsRegistry  *prometheus.Registry
	QueryMetrics     *monitoring.QueryMetricsRecorder
}

func New(appConfig *config.AppConfig, logger *logger.Logger, deps Deps) *Handler {
	registry := deps.MetricsRegistry
	if registry == nil {
		registry = metrics.NewRegistry()
	}

	return &Handler{
		StatsHandler:       stats.New(deps.Telemetry, logger, appConfig, deps.QueryMetrics),
		TransactionHandler: transaction.NewTransactionHandler(deps.Telemetry, logger, deps.QueryMetrics),
		HealthHandler:      health.New(appConfig, logger, deps.DB, deps.Adapters, deps.Reconcilers, deps.JobStatusManager),
		MetricsHandler:     metrics.NewMetricsHandler(registry),
	}
}
