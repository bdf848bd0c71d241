package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"bribeLedger/internal/model"
)

// Source binds a client, the pledge token, the settlement address, and the
// game contract into the per-chain read surface reconciliation consumes.
type Source struct {
	client     *Client
	token      common.Address
	settlement common.Address
	game       *GameReader
}

func NewSource(client *Client, token, settlement common.Address, game *GameReader) *Source {
	return &Source{client: client, token: token, settlement: settlement, game: game}
}

// LatestBlock returns the latest block number.
func (s *Source) LatestBlock(ctx context.Context) (uint64, error) {
	return s.client.LatestBlockNumber(ctx)
}

// Transfers returns pledge-token transfers to the settlement address in the
// inclusive block range.
func (s *Source) Transfers(ctx context.Context, fromBlock, toBlock uint64) ([]model.TransferEvent, error) {
	return s.client.FilterTransfers(ctx, s.token, s.settlement, fromBlock, toBlock)
}

// CurrentEpoch returns the current epoch from the game contract.
func (s *Source) CurrentEpoch(ctx context.Context) (uint64, error) {
	return s.game.CurrentEpoch(ctx)
}
