package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Web3BigInt is an integer amount in a chain's smallest unit plus the number of decimals of its display unit.
type Web3BigInt struct {
	Value   string `json:"value"`
	Decimal int    `json:"decimal"`
}

func (w *Web3BigInt) bigInt() *big.Int {
	num, ok := new(big.Int).SetString(w.Value, 10)
	if !ok {
		return new(big.Int)
	}
	return num
}

// ToDecimal returns the amount in display units.
func (w *Web3BigInt) ToDecimal() decimal.Decimal {
	return decimal.NewFromBigInt(w.bigInt(), int32(-w.Decimal))
}

// Format renders the display amount with a fixed number of decimal places.
func (w *Web3BigInt) Format(places int32) string {
	return w.ToDecimal().StringFixed(places)
}
