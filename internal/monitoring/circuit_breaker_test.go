package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dwarvesf/onchain-tracker/internal/chain"
	"github.com/dwarvesf/onchain-tracker/internal/model"
	"github.com/dwarvesf/onchain-tracker/internal/utils/logger"
)

// MockAdapter is a testify mock of chain.IAdapter
type MockAdapter struct {
	mock.Mock
	network model.Network
}

func (m *MockAdapter) Network() model.Network {
	return m.network
}

func (m *MockAdapter) Fetch(ctx context.Context, address string, sinceBlock uint64) ([]model.Transaction, error) {
	args := m.Called(address, sinceBlock)
	txs, _ := args.Get(0).([]model.Transaction)
	return txs, args.Error(1)
}

func (m *MockAdapter) LatestBlock(ctx context.Context) (uint64, error) {
	args := m.Called()
	return args.Get(0).(uint64), args.Error(1)
}

// slowAdapter blocks until the call context is done
type slowAdapter struct{}

func (slowAdapter) Network() model.Network { return model.NetworkNonEVM }

func (slowAdapter) Fetch(ctx context.Context, _ string, _ uint64) ([]model.Transaction, error) {
	<-ctx.Done()
	return nil, chain.Transient(ctx.Err())
}

func (slowAdapter) LatestBlock(ctx context.Context) (uint64, error) {
	<-ctx.Done()
	return 0, chain.Transient(ctx.Err())
}

func setupTestLogger() *logger.Logger {
	return logger.New("test")
}

func testBreakerConfig(threshold int) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:                 1,
		Interval:                    30 * time.Second,
		Timeout:                     60 * time.Second,
		ConsecutiveFailureThreshold: threshold,
	}
}

func TestCircuitBreaker_InitialState(t *testing.T) {
	metrics := NewExternalAPIMetrics()
	cb := NewCircuitBreakerAdapter(&MockAdapter{network: model.NetworkEVM}, testBreakerConfig(3), metrics, setupTestLogger())

	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, model.NetworkEVM, cb.Network())
	assert.Equal(t, "evm_rpc", cb.name)
}

func TestCircuitBreaker_PassesResultsThrough(t *testing.T) {
	metrics := NewExternalAPIMetrics()
	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)

	adapter := &MockAdapter{network: model.NetworkEVM}
	want := []model.Transaction{{Hash: "0x1", Network: model.NetworkEVM}}
	adapter.On("Fetch", "0xabc", uint64(10)).Return(want, nil)
	adapter.On("LatestBlock").Return(uint64(42), nil)

	cb := NewCircuitBreakerAdapter(adapter, testBreakerConfig(3), metrics, setupTestLogger())

	got, err := cb.Fetch(context.Background(), "0xabc", 10)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	latest, err := cb.LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), latest)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.Equal(t, float64(2), counterValue(families, "onchain_tracker_external_api_calls_total", "status", "success"))
}

func TestCircuitBreaker_TransientFailuresOpenTheBreaker(t *testing.T) {
	metrics := NewExternalAPIMetrics()
	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)

	adapter := &MockAdapter{network: model.NetworkEVM}
	adapter.On("Fetch", mock.Anything, mock.Anything).Return(nil, chain.Transient(errors.New("503 service unavailable")))

	cb := NewCircuitBreakerAdapter(adapter, testBreakerConfig(3), metrics, setupTestLogger())

	for i := 0; i < 3; i++ {
		_, err := cb.Fetch(context.Background(), "0xabc", 0)
		assert.True(t, chain.IsTransient(err))
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.Fetch(context.Background(), "0xabc", 0)
	require.Error(t, err)
	assert.True(t, chain.IsTransient(err), "open breaker must be reported as transient")
	assert.Contains(t, err.Error(), "circuit breaker is open")
	adapter.AssertNumberOfCalls(t, "Fetch", 3)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.Equal(t, float64(3), counterValue(families, "onchain_tracker_external_api_calls_total", "status", "error"))
	assert.Equal(t, float64(gobreaker.StateOpen), gaugeValue(families, "onchain_tracker_circuit_breaker_state"))
}

func TestCircuitBreaker_PermanentFailuresKeepItClosed(t *testing.T) {
	adapter := &MockAdapter{network: model.NetworkNonEVM}
	adapter.On("Fetch", mock.Anything, mock.Anything).Return(nil, chain.Permanent(errors.New("invalid address")))

	cb := NewCircuitBreakerAdapter(adapter, testBreakerConfig(2), NewExternalAPIMetrics(), setupTestLogger())

	for i := 0; i < 5; i++ {
		_, err := cb.Fetch(context.Background(), "bad", 0)
		assert.True(t, chain.IsPermanent(err))
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	adapter.AssertNumberOfCalls(t, "Fetch", 5)
}

func TestCircuitBreaker_Timeout(t *testing.T) {
	metrics := NewExternalAPIMetrics()
	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)

	timeouts := TimeoutConfig{RequestTimeout: 20 * time.Millisecond, HealthCheckTimeout: 20 * time.Millisecond}
	cb := NewCircuitBreakerAdapterWithTimeout(slowAdapter{}, testBreakerConfig(3), timeouts, metrics, setupTestLogger())

	start := time.Now()
	_, err := cb.Fetch(context.Background(), "addr", 0)
	assert.True(t, chain.IsTransient(err))
	assert.Less(t, time.Since(start), time.Second)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.Equal(t, float64(1), counterValue(families, "onchain_tracker_external_api_timeouts_total", "timeout_type", "fetch"))
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name         string
		error        error
		expectedType APIErrorType
	}{
		{name: "Timeout error", error: errors.New("request timeout after 5s"), expectedType: ErrorTypeTimeout},
		{name: "Network error", error: errors.New("network unreachable"), expectedType: ErrorTypeNetworkError},
		{name: "Server error", error: errors.New("HTTP 500 Internal Server Error"), expectedType: ErrorTypeServerError},
		{name: "Client error", error: errors.New("HTTP 429 Too Many Requests"), expectedType: ErrorTypeClientError},
		{name: "Permanent error", error: chain.Permanent(errors.New("HTTP 401")), expectedType: ErrorTypePermanent},
		{name: "Unknown error", error: errors.New("unexpected error occurred"), expectedType: ErrorTypeUnknown},
		{name: "Nil error", error: nil, expectedType: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedType, classifyError(tt.error))
		})
	}
}

func TestCircuitBreakerConfig_Validation(t *testing.T) {
	tests := []struct {
		name      string
		config    CircuitBreakerConfig
		shouldErr bool
	}{
		{name: "Valid configuration", config: testBreakerConfig(3)},
		{name: "Zero max requests", config: CircuitBreakerConfig{ConsecutiveFailureThreshold: 3}, shouldErr: true},
		{name: "Zero failure threshold", config: CircuitBreakerConfig{MaxRequests: 1}, shouldErr: true},
		{name: "Negative timeout", config: CircuitBreakerConfig{MaxRequests: 1, ConsecutiveFailureThreshold: 1, Timeout: -time.Second}, shouldErr: true},
		{name: "Negative interval", config: CircuitBreakerConfig{MaxRequests: 1, ConsecutiveFailureThreshold: 1, Interval: -time.Second}, shouldErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCircuitBreakerConfig(tt.config)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCircuitBreakerConfig_DefaultValues(t *testing.T) {
	for _, name := range []string{"evm_rpc", "nonevm_rpc"} {
		t.Run(name, func(t *testing.T) {
			config, ok := CircuitBreakerConfigs[name]
			require.True(t, ok)
			assert.NoError(t, validateCircuitBreakerConfig(config))
			assert.True(t, config.Interval > 0)
			assert.True(t, config.Timeout > 0)
		})
	}
}

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func counterValue(families []*dto.MetricFamily, name, label, value string) float64 {
	mf := findFamily(families, name)
	if mf == nil {
		return 0
	}
	var total float64
	for _, metric := range mf.GetMetric() {
		if getLabelValue(metric.GetLabel(), label) == value {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func gaugeValue(families []*dto.MetricFamily, name string) float64 {
	mf := findFamily(families, name)
	if mf == nil || len(mf.GetMetric()) == 0 {
		return -1
	}
	return mf.GetMetric()[0].GetGauge().GetValue()
}

// getLabelValue returns the value of a label from Prometheus metric labels
func getLabelValue(labels []*dto.LabelPair, name string) string {
	for _, label := range labels {
		if label.GetName() == name {
			return label.GetValue()
		}
	}
	return ""
}
