package model

import (
	"math/big"
	"time"
)

// PendingPledge is an announced pledge waiting for its on-chain transfer.
// Keyed by (address, chain, pool); evicted after the staging TTL.
type PendingPledge struct {
	Address   string    `json:"address"`
	Chain     string    `json:"chain"`
	Pool      string    `json:"pool"`
	CreatedAt time.Time `json:"created_at"`
}

// ConfirmedPledge is a durable pledge record keyed by (address, pool, chain, epoch).
// Amount only ever grows: repeated matches for the same key accumulate.
type ConfirmedPledge struct {
	Address  string   `json:"address"`
	Chain    string   `json:"chain"`
	Pool     int64    `json:"pool"`
	PoolName string   `json:"pool_name"`
	Amount   *big.Int `json:"amount"`
	Epoch    uint64   `json:"epoch"`
}
