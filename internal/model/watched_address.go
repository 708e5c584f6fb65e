package model

import "strings"

// WatchedAddress is a configured polling target. It lives in process configuration only.
type WatchedAddress struct {
	Address string
	Network Network
}

func NewWatchedAddresses(network Network, addresses []string) []WatchedAddress {
	out := make([]WatchedAddress, 0, len(addresses))
	seen := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		key := a
		if network == NetworkEVM {
			key = strings.ToLower(a)
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, WatchedAddress{Address: a, Network: network})
	}
	return out
}

// Matches reports whether addr is this watched address. EVM addresses compare case-insensitively.
func (w WatchedAddress) Matches(addr string) bool {
	if w.Network == NetworkEVM {
		return strings.EqualFold(w.Address, addr)
	}
	return w.Address == addr
}
