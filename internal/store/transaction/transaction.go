package transaction

import (
	"database/sql"
	"math/big"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dwarvesf/onchain-tracker/internal/consts"
	"github.com/dwarvesf/onchain-tracker/internal/model"
)

var ErrInvalidTransaction = errors.New("invalid transaction")

type store struct {
	mu    sync.Mutex
	locks map[model.Network]*sync.Mutex
}

func New() IStore {
	return &store{
		locks: make(map[model.Network]*sync.Mutex),
	}
}

func (s *store) networkLock(network model.Network) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[network]
	if !ok {
		l = &sync.Mutex{}
		s.locks[network] = l
	}
	return l
}

// Upsert inserts tx or updates the stored record with the same (network, hash).
// Writes for one network are serialized in process and the row is locked in the
// database, so concurrent writers cannot lose updates or double report a confirmation.
func (s *store) Upsert(db *gorm.DB, tx *model.Transaction) (*UpsertResult, error) {
	if err := validate(tx); err != nil {
		return nil, err
	}

	l := s.networkLock(tx.Network)
	l.Lock()
	defer l.Unlock()

	result := &UpsertResult{}
	err := db.Transaction(func(dbTx *gorm.DB) error {
		existing, err := lockRow(dbTx, tx.Network, tx.Hash)
		if err != nil {
			return err
		}

		if existing == nil {
			created := dbTx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "network"}, {Name: "hash"}},
				DoNothing: true,
			}).Create(tx)
			if created.Error != nil {
				return created.Error
			}
			if created.RowsAffected == 1 {
				result.Outcome = Inserted
				result.WasNewlyConfirmed = tx.IsConfirmed()
				return nil
			}

			// another writer inserted the row first
			if existing, err = lockRow(dbTx, tx.Network, tx.Hash); err != nil {
				return err
			}
			if existing == nil {
				return errors.New("row vanished after insert conflict")
			}
		}

		next := model.NextStatus(existing.Status, tx.Status)
		merged := merge(existing, tx, next)
		if err := dbTx.Model(&model.Transaction{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"from_address": merged.FromAddress,
				"to_address":   merged.ToAddress,
				"value":         merged.Value,
				"asset":         merged.Asset,
				"token_address": merged.TokenAddress,
				"decimals":      merged.Decimals,
				"timestamp":     merged.Timestamp,
				"block_number":  merged.BlockNumber,
				"status":        merged.Status,
				"updated_at":    time.Now(),
			}).Error; err != nil {
			return err
		}

		*tx = merged
		result.Outcome = Updated
		result.WasNewlyConfirmed = existing.Status != model.TransactionStatusConfirmed &&
			next == model.TransactionStatusConfirmed
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "upsert %s", tx.Key())
	}
	return result, nil
}

func lockRow(db *gorm.DB, network model.Network, hash string) (*model.Transaction, error) {
	var existing model.Transaction
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("network = ? AND hash = ?", network, hash).
		Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

// merge overlays an observation onto the stored record. Unknown fields of the
// observation (empty counterparty, zero value, missing block time) keep the
// stored values so a partially resolved re-fetch cannot erase known details.
// Asset, token and decimals always travel with the value they describe.
func merge(existing *model.Transaction, observed *model.Transaction, status model.TransactionStatus) model.Transaction {
	merged := *existing
	merged.Status = status
	merged.BlockNumber = observed.BlockNumber

	if observed.FromAddress != "" {
		merged.FromAddress = observed.FromAddress
	}
	if observed.ToAddress != "" {
		merged.ToAddress = observed.ToAddress
	}
	if observed.Value != "0" || existing.Value == "" {
		merged.Value = observed.Value
		merged.TokenAddress = observed.TokenAddress
		merged.Decimals = observed.Decimals
		if observed.Asset != "" {
			merged.Asset = observed.Asset
		}
	}
	if observed.Timestamp != 0 {
		merged.Timestamp = observed.Timestamp
	}
	return merged
}

func validate(tx *model.Transaction) error {
	if tx == nil || tx.Hash == "" {
		return errors.Wrap(ErrInvalidTransaction, "missing hash")
	}
	if !tx.Network.Valid() {
		return errors.Wrapf(ErrInvalidTransaction, "unknown network %q", tx.Network)
	}
	if tx.Value == "" {
		tx.Value = "0"
	}
	v, ok := new(big.Int).SetString(tx.Value, 10)
	if !ok || v.Sign() < 0 {
		return errors.Wrapf(ErrInvalidTransaction, "value %q is not an unsigned integer", tx.Value)
	}
	if tx.Decimals < 0 {
		return errors.Wrapf(ErrInvalidTransaction, "negative decimals %d", tx.Decimals)
	}
	switch tx.Status {
	case model.TransactionStatusPending, model.TransactionStatusConfirmed, model.TransactionStatusFailed:
	default:
		return errors.Wrapf(ErrInvalidTransaction, "unknown status %q", tx.Status)
	}
	return nil
}

func (s *store) ListRecent(db *gorm.DB, filter ListFilter) ([]model.Transaction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = consts.DefaultListLimit
	}
	if limit > consts.MaxListLimit {
		limit = consts.MaxListLimit
	}

	query := db.Model(&model.Transaction{})
	if filter.Network != "" {
		query = query.Where("network = ?", filter.Network)
	}

	var txs []model.Transaction
	err := query.Order(`"timestamp" DESC, block_number DESC, id ASC`).Limit(limit).Find(&txs).Error
	return txs, err
}

type networkTotals struct {
	Network    model.Network
	Count      int64
	TotalValue string
}

// nativeValueSum adds up native amounts only; token amounts use other units.
const nativeValueSum = "COALESCE(SUM(value) FILTER (WHERE token_address = ''), 0)::text AS total_value"

// Stats counts every transaction but sums the value of native transfers only.
func (s *store) Stats(db *gorm.DB, windowHours int, now time.Time) (*model.TransactionStats, error) {
	var rows []networkTotals
	err := db.Model(&model.Transaction{}).
		Select("network, COUNT(*) AS count, " + nativeValueSum).
		Group("network").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &model.TransactionStats{
		CountByNetwork:      map[model.Network]int64{model.NetworkEVM: 0, model.NetworkNonEVM: 0},
		TotalValueByNetwork: map[model.Network]string{model.NetworkEVM: "0", model.NetworkNonEVM: "0"},
	}
	for _, r := range rows {
		stats.Total += r.Count
		stats.CountByNetwork[r.Network] = r.Count
		stats.TotalValueByNetwork[r.Network] = r.TotalValue
	}

	since := now.Add(-time.Duration(windowHours) * time.Hour).Unix()
	err = db.Model(&model.Transaction{}).
		Where(`"timestamp" >= ?`, since).
		Count(&stats.RecentWindowCount).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// LatestCursor returns the highest stored block number of network, or nil when none is stored.
func (s *store) LatestCursor(db *gorm.DB, network model.Network) (*uint64, error) {
	var cursor sql.NullInt64
	err := db.Model(&model.Transaction{}).
		Select("MAX(block_number)").
		Where("network = ?", network).
		Row().
		Scan(&cursor)
	if err != nil {
		return nil, err
	}
	if !cursor.Valid {
		return nil, nil
	}
	v := uint64(cursor.Int64)
	return &v, nil
}

// Aggregate counts transactions with block time in [start, end) and sums their
// native value. NetworkAll aggregates across networks.
func (s *store) Aggregate(db *gorm.DB, network model.Network, start, end time.Time) (*model.ActivityAggregate, error) {
	query := db.Model(&model.Transaction{}).
		Select("COUNT(*) AS count, " + nativeValueSum).
		Where(`"timestamp" >= ? AND "timestamp" < ?`, start.Unix(), end.Unix())
	if network != model.NetworkAll {
		query = query.Where("network = ?", network)
	}

	var agg model.ActivityAggregate
	if err := query.Scan(&agg).Error; err != nil {
		return nil, err
	}
	return &agg, nil
}
