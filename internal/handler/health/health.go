package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
	"gorm.io/gorm"

	"github.com/dwarvesf/onchain-tracker/internal/chain"
	"github.com/dwarvesf/onchain-tracker/internal/model"
	"github.com/dwarvesf/onchain-tracker/internal/monitoring"
	"github.com/dwarvesf/onchain-tracker/internal/utils/config"
	"github.com/dwarvesf/onchain-tracker/internal/utils/logger"
)

// DegradedReporter exposes the addresses a reconciler could not poll in its last run.
type DegradedReporter interface {
	Network() model.Network
	Degraded() []string
}

// HealthHandler implements IHealthHandler interface
type HealthHandler struct {
	config           *config.AppConfig
	logger           *logger.Logger
	db               *gorm.DB
	adapters         []chain.IAdapter
	reconcilers      []DegradedReporter
	jobStatusManager *monitoring.JobStatusManager
}

// New creates a new health handler instance
func New(
	config *config.AppConfig,
	logger *logger.Logger,
	db *gorm.DB,
	adapters []chain.IAdapter,
	reconcilers []DegradedReporter,
	jobStatusManager *monitoring.JobStatusManager,
) IHealthHandler {
	return &HealthHandler{
		config:           config,
		logger:           logger,
		db:               db,
		adapters:         adapters,
		reconcilers:      reconcilers,
		jobStatusManager: jobStatusManager,
	}
}

// Basic handles the basic health check endpoint (/healthz)
// @Summary Basic health check
// @Description Returns basic system availability status
// @Tags health
// @Produce json
// @Success 200 {object} BasicHealthResponse
// @Router /healthz [get]
func (h *HealthHandler) Basic(c *gin.Context) {
	c.JSON(http.StatusOK, BasicHealthResponse{Message: "ok"})
}

// Status handles the liveness endpoint (/health)
// @Summary Liveness and store reachability
// @Description Reflects storage reachability only; upstream chains never affect it
// @Tags health
// @Produce json
// @Success 200 {object} StatusResponse
// @Failure 503 {object} StatusResponse
// @Router /health [get]
func (h *HealthHandler) Status(c *gin.Context) {
	dbCheck := h.checkDatabase(c.Request.Context())

	response := StatusResponse{
		Status:            "healthy",
		Timestamp:         time.Now().Unix(),
		Database:          dbCheck.Status,
		DegradedAddresses: make(map[model.Network][]string),
	}
	if h.config != nil {
		response.APIKeyConfigured = h.config.Chain.APIKey != ""
		response.WebhookConfigured = h.config.Notifier.WebhookURL != ""
	}
	for _, r := range h.reconcilers {
		if degraded := r.Degraded(); len(degraded) > 0 {
			response.DegradedAddresses[r.Network()] = degraded
		}
	}

	if dbCheck.Status != "healthy" {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

// Database handles the database health check endpoint
// @Summary Database health check
// @Description Validates database connectivity and pool usage
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /api/v1/health/db [get]
func (h *HealthHandler) Database(c *gin.Context) {
	start := time.Now()

	response := HealthResponse{
		Timestamp: start,
		Checks:    make(map[string]HealthCheck),
	}

	dbCheck := h.checkDatabase(c.Request.Context())
	response.Checks["database"] = dbCheck
	response.DurationMs = time.Since(start).Milliseconds()

	if dbCheck.Status == "healthy" {
		response.Status = "healthy"
		c.JSON(http.StatusOK, response)
	} else {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
	}
}

// External handles the upstream chain health check endpoint
// @Summary Upstream chain health check
// @Description Probes the latest block of every chain data source
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /api/v1/health/external [get]
func (h *HealthHandler) External(c *gin.Context) {
	start := time.Now()

	response := HealthResponse{
		Timestamp: start,
		Checks:    make(map[string]HealthCheck),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, adapter := range h.adapters {
		wg.Add(1)
		go func(adapter chain.IAdapter) {
			defer wg.Done()
			check := h.checkAdapter(ctx, adapter)
			mu.Lock()
			response.Checks[string(adapter.Network())+"_rpc"] = check
			mu.Unlock()
		}(adapter)
	}
	wg.Wait()
	response.DurationMs = time.Since(start).Milliseconds()

	allHealthy := len(response.Checks) > 0
	for _, check := range response.Checks {
		if check.Status != "healthy" {
			allHealthy = false
			break
		}
	}

	if allHealthy {
		response.Status = "healthy"
		c.JSON(http.StatusOK, response)
	} else {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
	}
}

// unhealthy finalizes a failed check. A ctx deadline is reported as "timeout".
func unhealthy(ctx context.Context, check HealthCheck, start time.Time, err error) HealthCheck {
	check.Status = "unhealthy"
	check.Latency = time.Since(start).Milliseconds()
	check.Error = err.Error()
	if ctx.Err() == context.DeadlineExceeded {
		check.Error = "timeout"
	}
	return check
}

// checkDatabase pings the store and reports pool usage
func (h *HealthHandler) checkDatabase(ctx context.Context) HealthCheck {
	start := time.Now()
	check := HealthCheck{Metadata: make(map[string]interface{})}

	if h.db == nil {
		return unhealthy(ctx, check, start, fmt.Errorf("database connection not available"))
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return unhealthy(ctx, check, start, fmt.Errorf("failed to get underlying database: %w", err))
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		check = unhealthy(pingCtx, check, start, err)
		h.logger.Warn("[HealthCheck][Database] ping failed", map[string]string{
			"error": check.Error,
		})
		return check
	}

	stats := sqlDB.Stats()
	check.Status = "healthy"
	check.Latency = time.Since(start).Milliseconds()
	check.Metadata["driver"] = "postgres"
	check.Metadata["connection_pool"] = map[string]interface{}{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"max_open":         stats.MaxOpenConnections,
	}
	return check
}

// breakerState is implemented by adapters wrapped in a circuit breaker
type breakerState interface {
	State() gobreaker.State
}

// checkAdapter asks a chain data source for its latest block
func (h *HealthHandler) checkAdapter(ctx context.Context, adapter chain.IAdapter) HealthCheck {
	start := time.Now()
	check := HealthCheck{Metadata: make(map[string]interface{})}
	if b, ok := adapter.(breakerState); ok {
		check.Metadata["circuit_breaker"] = b.State().String()
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	block, err := adapter.LatestBlock(checkCtx)
	if err != nil {
		return unhealthy(checkCtx, check, start, err)
	}

	check.Status = "healthy"
	check.Latency = time.Since(start).Milliseconds()
	check.Metadata["latest_block"] = block
	return check
}
