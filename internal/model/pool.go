package model

import "math/big"

// Pool is a registered competitive pool that pledges attach to.
// ID and Name are immutable once registered.
type Pool struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Chain         string   `json:"chain"`
	PooledPledges *big.Int `json:"pooled_pledges"`
}

// PoolData is the per-pool metadata read from the game contract.
type PoolData struct {
	Name          string
	StakedVolume  *big.Int
	StakerCount   uint64
	PooledRewards *big.Int
}
