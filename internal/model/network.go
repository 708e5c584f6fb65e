package model

import "fmt"

// Network is the closed set of chains the tracker understands.
type Network string

const (
	NetworkEVM    Network = "evm"
	NetworkNonEVM Network = "nonevm"

	// NetworkAll is only valid on activity snapshots.
	NetworkAll Network = "all"
)

func (n Network) Valid() bool {
	return n == NetworkEVM || n == NetworkNonEVM
}

func ParseNetwork(s string) (Network, error) {
	switch s {
	case "evm", "base":
		return NetworkEVM, nil
	case "nonevm", "solana":
		return NetworkNonEVM, nil
	}
	return "", fmt.Errorf("unknown network %q", s)
}
