package addresscursor

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dwarvesf/onchain-tracker/internal/model"
)

type store struct{}

func New() IStore {
	return &store{}
}

func (s *store) Get(db *gorm.DB, network model.Network, address string) (*uint64, error) {
	var cursor model.AddressCursor
	err := db.Where("network = ? AND address = ?", network, address).Take(&cursor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cursor.BlockNumber, nil
}

// Advance records blockNumber for the address. The cursor never moves backwards.
func (s *store) Advance(db *gorm.DB, network model.Network, address string, blockNumber uint64) error {
	cursor := &model.AddressCursor{
		Network:     network,
		Address:     address,
		BlockNumber: blockNumber,
		UpdatedAt:   time.Now(),
	}
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "network"}, {Name: "address"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "block_number"}, Value: gorm.Expr("GREATEST(address_cursors.block_number, excluded.block_number)")},
			{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
		},
	}).Create(cursor).Error
	return errors.Wrapf(err, "advance cursor %s:%s", network, address)
}
