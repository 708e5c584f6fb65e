package store

import (
	"github.com/dwarvesf/onchain-tracker/internal/store/activitysnapshot"
	"github.com/dwarvesf/onchain-tracker/internal/store/addresscursor"
	"github.com/dwarvesf/onchain-tracker/internal/store/transaction"
)

type Store struct {
	Transaction      transaction.IStore
	ActivitySnapshot activitysnapshot.IStore
	AddressCursor    addresscursor.IStore
}

func New() *Store {
	return &Store{
		Transaction:      transaction.New(),
		ActivitySnapshot: activitysnapshot.New(),
		AddressCursor:    addresscursor.New(),
	}
}
