package health

import (
	"time"

	"github.com/dwarvesf/onchain-tracker/internal/model"
	"github.com/dwarvesf/onchain-tracker/internal/monitoring"
)

// BasicHealthResponse represents the response for basic health check
type BasicHealthResponse struct {
	Message string `json:"message"`
}

// StatusResponse is the liveness payload: process up and store reachable.
type StatusResponse struct {
	Status            string                     `json:"status"`
	Timestamp         int64                      `json:"timestamp"`
	Database          string                     `json:"database"`
	APIKeyConfigured  bool                       `json:"api_key_configured"`
	WebhookConfigured bool                       `json:"webhook_configured"`
	DegradedAddresses map[model.Network][]string `json:"degraded_addresses"`
}

// HealthResponse represents the response for detailed health checks
type HealthResponse struct {
	Status     string                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Checks     map[string]HealthCheck `json:"checks"`
	DurationMs int64                  `json:"duration_ms"`
}

// HealthCheck represents a single health check result
type HealthCheck struct {
	Status   string                 `json:"status"`
	Latency  int64                  `json:"latency_ms,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// JobsHealthResponse represents the response for background job health check
type JobsHealthResponse struct {
	Status     string                          `json:"status"`
	Timestamp  time.Time                       `json:"timestamp"`
	Jobs       map[string]monitoring.JobStatus `json:"jobs"`
	Summary    monitoring.JobsSummary          `json:"summary"`
	DurationMs int64                           `json:"duration_ms"`
}
