package model

import "time"

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is the canonical record of one on-chain event touching a watched address.
// Value is the amount in the smallest unit of Asset as a base-10 string, and
// Decimals is the number of decimals of that asset's display unit.
// TokenAddress is empty when Asset is the chain's native currency.
type Transaction struct {
	ID           int64             `json:"-" gorm:"primaryKey"`
	Hash         string            `json:"hash"`
	Network      Network           `json:"network"`
	FromAddress  string            `json:"from_address"`
	ToAddress    string            `json:"to_address"`
	Value        string            `json:"value"`
	Asset        string            `json:"asset,omitempty"`
	TokenAddress string            `json:"token_address,omitempty"`
	Decimals     int               `json:"decimals"`
	Timestamp    int64             `json:"timestamp"`
	BlockNumber  uint64            `json:"block_number"`
	Status       TransactionStatus `json:"status"`
	CreatedAt    time.Time         `json:"-"`
	UpdatedAt    time.Time         `json:"-"`
}

func (Transaction) TableName() string {
	return "transactions"
}

func (t *Transaction) Key() string {
	return string(t.Network) + ":" + t.Hash
}

func (t *Transaction) IsNative() bool {
	return t.TokenAddress == ""
}

func (t *Transaction) IsConfirmed() bool {
	return t.Status == TransactionStatusConfirmed
}

// NextStatus resolves the stored status when a record is observed again.
// Confirmed and failed are terminal so a stale re-fetch cannot regress them.
func NextStatus(stored, observed TransactionStatus) TransactionStatus {
	if stored == TransactionStatusPending || stored == "" {
		return observed
	}
	return stored
}
