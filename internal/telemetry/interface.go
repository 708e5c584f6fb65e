package telemetry

import (
	"context"

	"github.com/dwarvesf/onchain-tracker/internal/model"
)

// ITelemetry is the read side used by the HTTP handlers and the snapshot job.
type ITelemetry interface {
	Stats(ctx context.Context, windowHours int) (*model.TransactionStats, error)
	RecentTransactions(ctx context.Context, network model.Network, limit int) ([]model.Transaction, error)
	Snapshot(ctx context.Context, network model.Network, windowHours int) (*model.ActivitySnapshot, error)
	SnapshotAll(ctx context.Context, windowHours int) ([]model.ActivitySnapshot, error)
	Activity(ctx context.Context, network model.Network, hours int) ([]model.ActivitySnapshot, error)
}
