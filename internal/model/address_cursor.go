package model

import "time"

// AddressCursor is the highest block up to which every transfer of one
// watched address has been fetched and stored.
type AddressCursor struct {
	Network     Network `gorm:"primaryKey"`
	Address     string  `gorm:"primaryKey"`
	BlockNumber uint64
	UpdatedAt   time.Time
}

func (AddressCursor) TableName() string {
	return "address_cursors"
}
