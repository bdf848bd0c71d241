package model

import "math/big"

// Decision is the finalization outcome for an epoch.
type Decision int

const (
	DecisionBurn    Decision = 0
	DecisionBuyback Decision = 1
)

func (d Decision) String() string {
	switch d {
	case DecisionBurn:
		return "burn"
	case DecisionBuyback:
		return "buyback"
	default:
		return "unknown"
	}
}

// EpochDecision is the write-once burn-or-buyback record for an epoch.
// For a buyback, Amount holds the realized swap output, not the requested input.
type EpochDecision struct {
	Epoch    uint64   `json:"epoch"`
	Decision Decision `json:"decision"`
	Amount   *big.Int `json:"amount"`
	Pool     int64    `json:"pool"`
}
