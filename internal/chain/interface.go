package chain

import (
	"context"

	"github.com/dwarvesf/onchain-tracker/internal/model"
)

// IAdapter fetches and normalizes transactions of one chain.
// Implementations make a single attempt per call and never touch storage.
type IAdapter interface {
	Network() model.Network
	// Fetch returns transactions touching address at or after sinceBlock.
	// Failures are reported as *UpstreamError.
	Fetch(ctx context.Context, address string, sinceBlock uint64) ([]model.Transaction, error)
	LatestBlock(ctx context.Context) (uint64, error)
}
