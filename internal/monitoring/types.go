package monitoring

import (
	"time"
)

// CircuitBreakerConfig defines the configuration for circuit breakers
type CircuitBreakerConfig struct {
	MaxRequests                 uint32        `json:"max_requests"`
	Interval                    time.Duration `json:"interval"`
	Timeout                     time.Duration `json:"timeout"`
	ConsecutiveFailureThreshold int           `json:"consecutive_failure_threshold"`
}

// TimeoutConfig defines timeout configurations for different operations
type TimeoutConfig struct {
	RequestTimeout     time.Duration `json:"request_timeout"`
	HealthCheckTimeout time.Duration `json:"health_check_timeout"`
}

// APIErrorType represents different types of API errors for classification
type APIErrorType string

const (
	ErrorTypeTimeout      APIErrorType = "timeout"
	ErrorTypeNetworkError APIErrorType = "network_error"
	ErrorTypeServerError  APIErrorType = "server_error"
	ErrorTypeClientError  APIErrorType = "client_error"
	ErrorTypePermanent    APIErrorType = "permanent"
	ErrorTypeUnknown      APIErrorType = "unknown"
)

// CircuitBreakerConfigs provides default configurations per chain adapter
var CircuitBreakerConfigs = map[string]CircuitBreakerConfig{
	"evm_rpc": {
		MaxRequests:                 3,
		Interval:                    60 * time.Second,
		Timeout:                     2 * time.Minute,
		ConsecutiveFailureThreshold: 5,
	},
	"nonevm_rpc": {
		MaxRequests:                 3,
		Interval:                    60 * time.Second,
		Timeout:                     2 * time.Minute,
		ConsecutiveFailureThreshold: 5,
	},
}

// DefaultTimeoutConfig bounds a single adapter call. A fetch walks several
// pages per address so it gets far more room than a health probe.
var DefaultTimeoutConfig = TimeoutConfig{
	RequestTimeout:     90 * time.Second,
	HealthCheckTimeout: 5 * time.Second,
}
