package model

import "math/big"

// TransferEvent is a normalized ERC20 Transfer log observed on a chain.
// Addresses are lowercase hex.
type TransferEvent struct {
	Chain       string   `json:"chain"`
	BlockNumber uint64   `json:"block_number"`
	TxHash      string   `json:"tx_hash"`
	LogIndex    uint     `json:"log_index"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	Value       *big.Int `json:"value"`
}
