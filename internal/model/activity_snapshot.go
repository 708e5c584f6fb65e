package model

import "time"

// ActivitySnapshot is an append-only rollup of activity over [WindowStart, WindowEnd).
type ActivitySnapshot struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Network     Network   `json:"network"`
	Count       int64     `json:"count"`
	TotalValue  string    `json:"total_value"`
	CreatedAt   time.Time `json:"created_at"`
}

func (ActivitySnapshot) TableName() string {
	return "activity_snapshots"
}

// TransactionStats is the live summary computed from stored transactions.
type TransactionStats struct {
	Total               int64
	CountByNetwork      map[Network]int64
	RecentWindowCount   int64
	TotalValueByNetwork map[Network]string
}

// ActivityAggregate is the count and value sum of transactions inside a window.
type ActivityAggregate struct {
	Count      int64
	TotalValue string
}
