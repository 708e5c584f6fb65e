package addresscursor

import (
	"gorm.io/gorm"

	"github.com/dwarvesf/onchain-tracker/internal/model"
)

type IStore interface {
	// Get returns nil when the address has never been fetched successfully.
	Get(db *gorm.DB, network model.Network, address string) (*uint64, error)
	Advance(db *gorm.DB, network model.Network, address string, blockNumber uint64) error
}
