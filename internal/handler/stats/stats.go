package stats

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/onchain-tracker/internal/consts"
	"github.com/dwarvesf/onchain-tracker/internal/model"
	"github.com/dwarvesf/onchain-tracker/internal/monitoring"
	"github.com/dwarvesf/onchain-tracker/internal/telemetry"
	"github.com/dwarvesf/onchain-tracker/internal/utils/config"
	"github.com/dwarvesf/onchain-tracker/internal/utils/logger"
	"github.com/dwarvesf/onchain-tracker/internal/utils/stalecache"
	"github.com/dwarvesf/onchain-tracker/internal/view"
)

const (
	staleHeader    = "X-Data-Stale"
	staleRetention = 24 * time.Hour
)

type handler struct {
	telemetry       telemetry.ITelemetry
	logger          *logger.Logger
	appConfig       *config.AppConfig
	metricsRecorder *monitoring.QueryMetricsRecorder
	cache           *stalecache.Cache
}

func New(telemetry telemetry.ITelemetry, logger *logger.Logger, appConfig *config.AppConfig, metricsRecorder *monitoring.QueryMetricsRecorder) IHandler {
	return &handler{
		telemetry:       telemetry,
		logger:          logger,
		appConfig:       appConfig,
		metricsRecorder: metricsRecorder,
		cache:           stalecache.New("stats", staleRetention, metricsRecorder),
	}
}

// GetStats godoc
// @Summary Get transaction statistics
// @Description Totals per network, the recent window count and value sums
// @id getStats
// @Tags Stats
// @Produce json
// @Success 200 {object} StatsResponse
// @Failure 503 {object} view.ErrorResponse
// @Router /api/v1/stats [get]
func (h *handler) GetStats(c *gin.Context) {
	const key = "stats"
	start := time.Now()

	stats, err := h.telemetry.Stats(c.Request.Context(), h.appConfig.Stats.RecentWindowHours)
	duration := time.Since(start).Seconds()
	if err != nil {
		h.logger.Error("[GetStats][Stats]", map[string]string{
			"error": err.Error(),
		})
		h.metricsRecorder.RecordQuery("stats", "error", duration)
		h.serveStale(c, key, err, "can't get stats")
		return
	}
	h.metricsRecorder.RecordQuery("stats", "success", duration)

	resp := newStatsResponse(stats)
	h.cache.Store(key, resp)
	c.JSON(http.StatusOK, resp)
}

// GetActivity godoc
// @Summary Get activity snapshots
// @Description Snapshots whose window ends within the trailing hours, oldest first
// @id getActivity
// @Tags Stats
// @Produce json
// @Param hours query int false "trailing window in hours (default 24, max 720)"
// @Param network query string false "evm, nonevm or all"
// @Success 200 {array} model.ActivitySnapshot
// @Failure 400 {object} view.ErrorResponse
// @Failure 503 {object} view.ErrorResponse
// @Router /api/v1/activity [get]
func (h *handler) GetActivity(c *gin.Context) {
	var req GetActivityRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, view.CreateErrorResponse(err, "invalid query"))
		return
	}

	hours := req.Hours
	if hours == 0 {
		hours = consts.DefaultActivityHours
	}
	if hours > consts.MaxActivityHours {
		hours = consts.MaxActivityHours
	}

	var network model.Network
	switch req.Network {
	case "":
	case string(model.NetworkAll):
		network = model.NetworkAll
	default:
		// binding already restricted the value to known networks
		network, _ = model.ParseNetwork(req.Network)
	}

	key := fmt.Sprintf("activity:%s:%d", network, hours)
	start := time.Now()

	snapshots, err := h.telemetry.Activity(c.Request.Context(), network, hours)
	duration := time.Since(start).Seconds()
	if err != nil {
		h.logger.Error("[GetActivity][Activity]", map[string]string{
			"error": err.Error(),
		})
		h.metricsRecorder.RecordQuery("activity", "error", duration)
		h.serveStale(c, key, err, "can't get activity")
		return
	}
	h.metricsRecorder.RecordQuery("activity", "success", duration)

	if snapshots == nil {
		snapshots = []model.ActivitySnapshot{}
	}
	h.cache.Store(key, snapshots)
	c.JSON(http.StatusOK, snapshots)
}

func (h *handler) serveStale(c *gin.Context, key string, err error, message string) {
	if cached, ok := h.cache.Stale(key); ok {
		c.Header(staleHeader, "true")
		c.JSON(http.StatusOK, cached)
		return
	}
	c.JSON(http.StatusServiceUnavailable, view.CreateErrorResponse(err, message))
}

func newStatsResponse(stats *model.TransactionStats) StatsResponse {
	evmValue := stats.TotalValueByNetwork[model.NetworkEVM]
	if evmValue == "" {
		evmValue = "0"
	}
	byNetwork := make(map[model.Network]string, len(stats.TotalValueByNetwork))
	for n, v := range stats.TotalValueByNetwork {
		byNetwork[n] = v
	}

	eth := &model.Web3BigInt{Value: evmValue, Decimal: consts.EVMDecimals}
	return StatsResponse{
		TotalTransactions:   stats.Total,
		BaseTransactions:    stats.CountByNetwork[model.NetworkEVM],
		SolanaTransactions:  stats.CountByNetwork[model.NetworkNonEVM],
		Recent24h:           stats.RecentWindowCount,
		TotalValue:          evmValue,
		TotalValueETH:       eth.ToDecimal().String(),
		TotalValueByNetwork: byNetwork,
	}
}
