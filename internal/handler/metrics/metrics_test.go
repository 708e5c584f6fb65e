package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/dwarvesf/onchain-tracker/internal/monitoring"
)

func scrape(registry *prometheus.Registry) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/metrics", NewMetricsHandler(registry).Handler())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func assertPrometheusContentType(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	contentType := w.Header().Get("Content-Type")
	assert.True(t,
		strings.Contains(contentType, "text/plain") ||
			strings.Contains(contentType, "application/openmetrics-text"),
		"Expected Prometheus metrics content type, got: %s", contentType)
}

func TestMetricsHandler_ExposesTrackerMetrics(t *testing.T) {
	registry := NewRegistry()

	reconciler := monitoring.NewReconcilerMetrics()
	reconciler.MustRegister(registry)
	notifier := monitoring.NewNotifierMetrics()
	notifier.MustRegister(registry)

	reconciler.RecordTick("evm", "ok")
	reconciler.RecordUpsert("evm", "inserted", true)
	reconciler.SetCursor("evm", 1000)
	notifier.Record("evm", "delivered")

	w := scrape(registry)

	assert.Equal(t, http.StatusOK, w.Code)
	assertPrometheusContentType(t, w)

	body := w.Body.String()
	assert.Contains(t, body, `onchain_tracker_reconciler_ticks_total{network="evm",result="ok"} 1`)
	assert.Contains(t, body, "onchain_tracker_reconciler_newly_confirmed_total")
	assert.Contains(t, body, `onchain_tracker_reconciler_cursor_block{network="evm"} 1000`)
	assert.Contains(t, body, "onchain_tracker_notifier")
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, "process_")
}

func TestMetricsHandler_EmptyRegistry(t *testing.T) {
	w := scrape(prometheus.NewRegistry())

	assert.Equal(t, http.StatusOK, w.Code)
	assertPrometheusContentType(t, w)
}

func TestMetricsHandler_OpenMetricsNegotiation(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "A test counter for metrics endpoint testing",
	})
	registry.MustRegister(counter)
	counter.Inc()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/metrics", NewMetricsHandler(registry).Handler())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept", "application/openmetrics-text; version=1.0.0")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/openmetrics-text")
	assert.Contains(t, w.Body.String(), "test_counter_total 1")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(w.Body.String()), "# EOF"))
}
