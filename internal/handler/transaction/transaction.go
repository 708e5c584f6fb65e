package transaction

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/onchain-tracker/internal/consts"
	"github.com/dwarvesf/onchain-tracker/internal/model"
	"github.com/dwarvesf/onchain-tracker/internal/monitoring"
	"github.com/dwarvesf/onchain-tracker/internal/telemetry"
	"github.com/dwarvesf/onchain-tracker/internal/utils/logger"
	"github.com/dwarvesf/onchain-tracker/internal/utils/stalecache"
	"github.com/dwarvesf/onchain-tracker/internal/view"
)

type transactionHandler struct {
	telemetry       telemetry.ITelemetry
	logger          *logger.Logger
	metricsRecorder *monitoring.QueryMetricsRecorder
	cache           *stalecache.Cache
}

// NewTransactionHandler creates a new instance of TransactionHandler
func NewTransactionHandler(
	telemetry telemetry.ITelemetry,
	logger *logger.Logger,
	metricsRecorder *monitoring.QueryMetricsRecorder,
) IHandler {
	return &transactionHandler{
		telemetry:       telemetry,
		logger:          logger,
		metricsRecorder: metricsRecorder,
		cache:           stalecache.New("transactions", 24*time.Hour, metricsRecorder),
	}
}

// GetTransactions godoc
// @Summary List recent transactions
// @Description Newest first by timestamp then block number
// @id getTransactions
// @Tags Transactions
// @Produce json
// @Param limit query int false "max records (default 20, max 500)"
// @Param network query string false "evm or nonevm"
// @Success 200 {array} model.Transaction
// @Failure 400 {object} view.ErrorResponse
// @Failure 503 {object} view.ErrorResponse
// @Router /api/v1/transactions [get]
func (h *transactionHandler) GetTransactions(c *gin.Context) {
	// Parse request parameters
	var req GetTransactionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, view.CreateErrorResponse(err, "invalid query"))
		return
	}

	if req.Limit == 0 {
		req.Limit = consts.DefaultListLimit
	}
	if req.Limit > consts.MaxListLimit {
		req.Limit = consts.MaxListLimit
	}

	var network model.Network
	if req.Network != "" {
		network, _ = model.ParseNetwork(req.Network)
	}

	key := fmt.Sprintf("transactions:%s:%d", network, req.Limit)
	start := time.Now()

	txs, err := h.telemetry.RecentTransactions(c.Request.Context(), network, req.Limit)
	duration := time.Since(start).Seconds()
	if err != nil {
		h.logger.Error("[GetTransactions][RecentTransactions]", map[string]string{
			"error": err.Error(),
		})
		h.metricsRecorder.RecordQuery("transactions", "error", duration)

		if cached, ok := h.cache.Stale(key); ok {
			c.Header("X-Data-Stale", "true")
			c.JSON(http.StatusOK, cached)
			return
		}
		c.JSON(http.StatusServiceUnavailable, view.CreateErrorResponse(err, "can't get transactions"))
		return
	}
	h.metricsRecorder.RecordQuery("transactions", "success", duration)

	if txs == nil {
		txs = []model.Transaction{}
	}
	h.cache.Store(key, txs)
	c.JSON(http.StatusOK, txs)
}
