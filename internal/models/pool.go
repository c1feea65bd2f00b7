package models

import "time"

// PoolSnapshot is a cached read of a pool account and its vault balances.
type PoolSnapshot struct {
	Address   string    `json:"address"`
	Authority string    `json:"authority"`
	MintA     string    `json:"mint_a"`
	MintB     string    `json:"mint_b"`
	VaultA    string    `json:"vault_a"`
	VaultB    string    `json:"vault_b"`
	FeeBps    uint16    `json:"fee_bps"`
	ReserveA  uint64    `json:"reserve_a"`
	ReserveB  uint64    `json:"reserve_b"`
	Slot      uint64    `json:"slot"`
	FetchedAt time.Time `json:"fetched_at"`
}
