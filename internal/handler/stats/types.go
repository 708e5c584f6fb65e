package stats

import "github.com/dwarvesf/onchain-tracker/internal/model"

// StatsResponse keeps the chain-named counters dashboards already consume.
// TotalValue is the EVM native-asset sum in wei; token transfers are counted but not summed.
type StatsResponse struct {
	TotalTransactions   int64                    `json:"total_transactions"`
	BaseTransactions    int64                    `json:"base_transactions"`
	SolanaTransactions  int64                    `json:"solana_transactions"`
	Recent24h           int64                    `json:"recent_24h"`
	TotalValue          string                   `json:"total_value"`
	TotalValueETH       string                   `json:"total_value_eth"`
	TotalValueByNetwork map[model.Network]string `json:"total_value_by_network"`
}

type GetActivityRequest struct {
	Hours   int    `form:"hours" binding:"omitempty,min=1"`
	Network string `form:"network" binding:"omitempty,oneof=evm nonevm all base solana"`
}
