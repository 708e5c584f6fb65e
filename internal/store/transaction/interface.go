package transaction

import (
	"time"

	"gorm.io/gorm"

	"github.com/dwarvesf/onchain-tracker/internal/model"
)

type UpsertOutcome string

const (
	Inserted UpsertOutcome = "inserted"
	Updated  UpsertOutcome = "updated"
)

type UpsertResult struct {
	Outcome UpsertOutcome
	// WasNewlyConfirmed is true only when this call moved the record into confirmed.
	WasNewlyConfirmed bool
}

type ListFilter struct {
	// Network is optional; empty lists every network.
	Network model.Network
	Limit   int
}

type IStore interface {
	Upsert(db *gorm.DB, tx *model.Transaction) (*UpsertResult, error)
	ListRecent(db *gorm.DB, filter ListFilter) ([]model.Transaction, error)
	Stats(db *gorm.DB, windowHours int, now time.Time) (*model.TransactionStats, error)
	LatestCursor(db *gorm.DB, network model.Network) (*uint64, error)
	Aggregate(db *gorm.DB, network model.Network, start, end time.Time) (*model.ActivityAggregate, error)
}
