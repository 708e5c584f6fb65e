package activitysnapshot

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

// Create appends snapshot. When its (network, window) is already recorded the
// stored row is returned unchanged.
func (s *store) Create(db *gorm.DB, snapshot *model.ActivitySnapshot) (*model.ActivitySnapshot, error) {
	if snapshot.TotalValue == "" {
		snapshot.TotalValue = "0"
	}

	created := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "network"}, {Name: "window_start"}, {Name: "window_end"}},
		DoNothing: true,
	}).Create(snapshot)
	if created.Error != nil {
		return nil, created.Error
	}
	if created.RowsAffected == 1 {
		return snapshot, nil
	}

	var existing model.ActivitySnapshot
	err := db.Where("network = ? AND window_start = ? AND window_end = ?", snapshot.Network, snapshot.WindowStart, snapshot.WindowEnd).
		Take(&existing).Error
	if err != nil {
		return nil, errors.Wrap(err, "re-read snapshot after window conflict")
	}
	return &existing, nil
}

// ListSince returns snapshots whose window ends after since, oldest first.
// An empty network returns every network including the "all" rollup.
func (s *store) ListSince(db *gorm.DB, since time.Time, network model.Network) ([]model.ActivitySnapshot, error) {
	query := db.Where("window_end > ?", since)
	if network != "" {
		query = query.Where("network = ?", network)
	}

	var snapshots []model.ActivitySnapshot
	err := query.Order("window_end ASC, id ASC").Find(&snapshots).Error
	return snapshots, err
}
