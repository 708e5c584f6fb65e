package activitysnapshot

import (
	"time"

	"gorm.io/gorm"

	"github.com/dwarvesf/onchain-tracker/internal/model"
)

// IStore is append-only: snapshots are never updated or deleted, and each
// (network, window) is recorded at most once.
type IStore interface {
	Create(db *gorm.DB, snapshot *model.ActivitySnapshot) (*model.ActivitySnapshot, error)
	ListSince(db *gorm.DB, since time.Time, network model.Network) ([]model.ActivitySnapshot, error)
}
