package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dwarvesf/onchain-tracker/internal/consts"
	"github.com/dwarvesf/onchain-tracker/internal/model"
	"github.com/dwarvesf/onchain-tracker/internal/store"
	"github.com/dwarvesf/onchain-tracker/internal/store/transaction"
	"github.com/dwarvesf/onchain-tracker/internal/utils/config"
	"github.com/dwarvesf/onchain-tracker/internal/utils/logger"
)

var snapshotNetworks = []model.Network{model.NetworkEVM, model.NetworkNonEVM, model.NetworkAll}

// Telemetry derives live statistics and immutable activity snapshots from
// stored transactions. It never writes transactions.
type Telemetry struct {
	db        *gorm.DB
	store     *store.Store
	appConfig *config.AppConfig
	logger    *logger.Logger
	now       func() time.Time
}

func New(db *gorm.DB, store *store.Store, appConfig *config.AppConfig, logger *logger.Logger) *Telemetry {
	return &Telemetry{
		db:        db,
		store:     store,
		appConfig: appConfig,
		logger:    logger,
		now:       time.Now,
	}
}

func (t *Telemetry) Stats(ctx context.Context, windowHours int) (*model.TransactionStats, error) {
	if windowHours <= 0 {
		windowHours = t.appConfig.Stats.RecentWindowHours
	}

	stats, err := t.store.Transaction.Stats(t.db.WithContext(ctx), windowHours, t.now())
	if err != nil {
		t.logger.Error("[Stats][Stats]", map[string]string{
			"error": err.Error(),
		})
		return nil, errors.Wrap(err, "failed to compute stats")
	}
	return stats, nil
}

func (t *Telemetry) RecentTransactions(ctx context.Context, network model.Network, limit int) ([]model.Transaction, error) {
	txs, err := t.store.Transaction.ListRecent(t.db.WithContext(ctx), transaction.ListFilter{
		Network: network,
		Limit:   limit,
	})
	if err != nil {
		t.logger.Error("[RecentTransactions][ListRecent]", map[string]string{
			"network": string(network),
			"error":   err.Error(),
		})
		return nil, errors.Wrap(err, "failed to list transactions")
	}
	return txs, nil
}

// Snapshot aggregates the window ending at the current hour boundary and
// appends it. A window that was already recorded is returned as is.
func (t *Telemetry) Snapshot(ctx context.Context, network model.Network, windowHours int) (*model.ActivitySnapshot, error) {
	start, end := t.window(windowHours)
	return t.snapshot(t.db.WithContext(ctx), network, start, end)
}

// SnapshotAll records evm, nonevm and the "all" rollup for the same window in one transaction.
func (t *Telemetry) SnapshotAll(ctx context.Context, windowHours int) ([]model.ActivitySnapshot, error) {
	t.logger.Info("[SnapshotAll] Start recording activity snapshots...")

	start, end := t.window(windowHours)
	snapshots := make([]model.ActivitySnapshot, 0, len(snapshotNetworks))

	err := store.DoInTx(t.db.WithContext(ctx), func(tx *gorm.DB) error {
		for _, network := range snapshotNetworks {
			snap, err := t.snapshot(tx, network, start, end)
			if err != nil {
				return err
			}
			snapshots = append(snapshots, *snap)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, s := range snapshots {
		t.logger.Info(fmt.Sprintf("[SnapshotAll] %s: %d txs, value %s", s.Network, s.Count, s.TotalValue), map[string]string{
			"window_start": s.WindowStart.Format(time.RFC3339),
			"window_end":   s.WindowEnd.Format(time.RFC3339),
		})
	}
	return snapshots, nil
}

// Activity lists snapshots whose window ends inside the trailing hours.
// An empty network lists every network.
func (t *Telemetry) Activity(ctx context.Context, network model.Network, hours int) ([]model.ActivitySnapshot, error) {
	if hours <= 0 {
		hours = consts.DefaultActivityHours
	}
	if hours > consts.MaxActivityHours {
		hours = consts.MaxActivityHours
	}

	since := t.now().Add(-time.Duration(hours) * time.Hour)
	snapshots, err := t.store.ActivitySnapshot.ListSince(t.db.WithContext(ctx), since, network)
	if err != nil {
		t.logger.Error("[Activity][ListSince]", map[string]string{
			"hours": strconv.Itoa(hours),
			"error": err.Error(),
		})
		return nil, errors.Wrap(err, "failed to list activity")
	}
	return snapshots, nil
}

// snapshot aggregates the window and records it. The store keeps the first
// row written for a window, so a concurrent or repeated run gets that row back.
func (t *Telemetry) snapshot(db *gorm.DB, network model.Network, start, end time.Time) (*model.ActivitySnapshot, error) {
	agg, err := t.store.Transaction.Aggregate(db, network, start, end)
	if err != nil {
		t.logger.Error("[Snapshot][Aggregate]", map[string]string{
			"network": string(network),
			"error":   err.Error(),
		})
		return nil, errors.Wrap(err, "failed to aggregate activity")
	}

	snap, err := t.store.ActivitySnapshot.Create(db, &model.ActivitySnapshot{
		WindowStart: start,
		WindowEnd:   end,
		Network:     network,
		Count:       agg.Count,
		TotalValue:  agg.TotalValue,
	})
	if err != nil {
		t.logger.Error("[Snapshot][Create]", map[string]string{
			"network": string(network),
			"error":   err.Error(),
		})
		return nil, errors.Wrap(err, "failed to create snapshot")
	}
	return snap, nil
}

// window is [end-windowHours, end) with end truncated to the hour, so
// repeated runs inside one hour resolve to the same window.
func (t *Telemetry) window(windowHours int) (time.Time, time.Time) {
	if windowHours <= 0 {
		windowHours = t.appConfig.Stats.SnapshotWindowHours
	}
	if windowHours <= 0 {
		windowHours = 1
	}
	end := t.now().UTC().Truncate(time.Hour)
	return end.Add(-time.Duration(windowHours) * time.Hour), end
}
