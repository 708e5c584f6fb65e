package monitoring

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dwarvesf/onchain-tracker/internal/chain"
	"github.com/dwarvesf/onchain-tracker/internal/model"
	"github.com/dwarvesf/onchain-tracker/internal/utils/logger"
)

// CircuitBreakerAdapter wraps a chain.IAdapter with a circuit breaker, call
// timeouts and external API metrics. It satisfies chain.IAdapter itself.
type CircuitBreakerAdapter struct {
	name           string
	wrapped        chain.IAdapter
	circuitBreaker *gobreaker.CircuitBreaker
	metrics        *ExternalAPIMetrics
	logger         *logger.Logger
	timeoutConfig  TimeoutConfig
}

// NewCircuitBreakerAdapter wraps an adapter using the default timeouts
func NewCircuitBreakerAdapter(wrapped chain.IAdapter, config CircuitBreakerConfig, metrics *ExternalAPIMetrics, logger *logger.Logger) *CircuitBreakerAdapter {
	return NewCircuitBreakerAdapterWithTimeout(wrapped, config, DefaultTimeoutConfig, metrics, logger)
}

// NewCircuitBreakerAdapterWithTimeout wraps an adapter with a custom timeout config
func NewCircuitBreakerAdapterWithTimeout(wrapped chain.IAdapter, config CircuitBreakerConfig, timeoutConfig TimeoutConfig, metrics *ExternalAPIMetrics, logger *logger.Logger) *CircuitBreakerAdapter {
	name := string(wrapped.Network()) + "_rpc"
	if err := validateCircuitBreakerConfig(config); err != nil {
		logger.Warn("[NewCircuitBreakerAdapter] invalid circuit breaker config, using defaults", map[string]string{
			"service": name,
			"error":   err.Error(),
		})
		config = CircuitBreakerConfigs["evm_rpc"]
	}

	cb := &CircuitBreakerAdapter{
		name:          name,
		wrapped:       wrapped,
		metrics:       metrics,
		logger:        logger,
		timeoutConfig: timeoutConfig,
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.ConsecutiveFailureThreshold)
		},
		// a bad address says nothing about upstream health
		IsSuccessful: func(err error) bool {
			return err == nil || chain.IsPermanent(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("[CircuitBreaker] state change", map[string]string{
				"service": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			metrics.UpdateCircuitBreakerState(name, to)
		},
	}

	cb.circuitBreaker = gobreaker.NewCircuitBreaker(settings)
	return cb
}

func (cb *CircuitBreakerAdapter) Network() model.Network {
	return cb.wrapped.Network()
}

func (cb *CircuitBreakerAdapter) Fetch(ctx context.Context, address string, sinceBlock uint64) ([]model.Transaction, error) {
	result, err := cb.execute(ctx, "fetch", cb.timeoutConfig.RequestTimeout, func(ctx context.Context) (interface{}, error) {
		return cb.wrapped.Fetch(ctx, address, sinceBlock)
	})
	if err != nil {
		return nil, err
	}
	return result.([]model.Transaction), nil
}

func (cb *CircuitBreakerAdapter) LatestBlock(ctx context.Context) (uint64, error) {
	result, err := cb.execute(ctx, "latest_block", cb.timeoutConfig.HealthCheckTimeout, func(ctx context.Context) (interface{}, error) {
		return cb.wrapped.LatestBlock(ctx)
	})
	if err != nil {
		return 0, err
	}
	return result.(uint64), nil
}

// State exposes the breaker state for health reporting
func (cb *CircuitBreakerAdapter) State() gobreaker.State {
	return cb.circuitBreaker.State()
}

// execute runs fn through the breaker with a per-call timeout. Breaker
// rejections are reported as transient so the reconciler backs off.
func (cb *CircuitBreakerAdapter) execute(ctx context.Context, operation string, timeout time.Duration, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	result, err := cb.circuitBreaker.Execute(func() (interface{}, error) {
		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		result, err := fn(callCtx)
		duration := time.Since(start).Seconds()
		if err != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				cb.metrics.RecordTimeout(cb.name, operation)
			}
			cb.metrics.RecordAPICall(cb.name, operation, "error", duration)
			cb.logError(operation, duration, err)
			return nil, err
		}
		cb.metrics.RecordAPICall(cb.name, operation, "success", duration)
		return result, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, chain.Transient(fmt.Errorf("%s %s: %w", cb.name, operation, err))
	}
	return result, err
}

func (cb *CircuitBreakerAdapter) logError(operation string, duration float64, err error) {
	cb.logger.Error("[CircuitBreaker] external API call failed", map[string]string{
		"service":    cb.name,
		"operation":  operation,
		"duration":   strconv.FormatFloat(duration, 'f', 3, 64),
		"error":      err.Error(),
		"error_type": string(classifyError(err)),
		"cb_state":   cb.circuitBreaker.State().String(),
	})
}

// classifyError classifies errors into different types for metrics and logging
func classifyError(err error) APIErrorType {
	if err == nil {
		return ""
	}
	if chain.IsPermanent(err) {
		return ErrorTypePermanent
	}

	errMsg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errMsg, "timeout"),
		strings.Contains(errMsg, "deadline exceeded"),
		strings.Contains(errMsg, "context canceled"):
		return ErrorTypeTimeout
	case strings.Contains(errMsg, "network"),
		strings.Contains(errMsg, "connection"),
		strings.Contains(errMsg, "unreachable"),
		strings.Contains(errMsg, "dns"):
		return ErrorTypeNetworkError
	case strings.Contains(errMsg, "500"),
		strings.Contains(errMsg, "502"),
		strings.Contains(errMsg, "503"),
		strings.Contains(errMsg, "504"),
		strings.Contains(errMsg, "internal server error"),
		strings.Contains(errMsg, "bad gateway"),
		strings.Contains(errMsg, "service unavailable"):
		return ErrorTypeServerError
	case strings.Contains(errMsg, "400"),
		strings.Contains(errMsg, "401"),
		strings.Contains(errMsg, "403"),
		strings.Contains(errMsg, "404"),
		strings.Contains(errMsg, "429"),
		strings.Contains(errMsg, "rate limit"):
		return ErrorTypeClientError
	}

	return ErrorTypeUnknown
}

// validateCircuitBreakerConfig validates circuit breaker configuration
func validateCircuitBreakerConfig(config CircuitBreakerConfig) error {
	if config.MaxRequests == 0 {
		return fmt.Errorf("max_requests must be greater than 0")
	}
	if config.ConsecutiveFailureThreshold <= 0 {
		return fmt.Errorf("consecutive_failure_threshold must be greater than 0")
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	if config.Interval < 0 {
		return fmt.Errorf("interval must be non-negative")
	}
	return nil
}
