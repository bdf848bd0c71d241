package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"bribeLedger/internal/model"
)

// Client wraps go-ethereum RPC and provides helper methods for one chain.
type Client struct {
	name      string
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, name, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		name:      name,
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}, nil
}

// Name returns the configured chain name.
func (c *Client) Name() string {
	return c.name
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// RPC exposes the raw RPC client for collaborators that need it.
func (c *Client) RPC() *rpc.Client {
	return c.rpcClient
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}

// FilterTransfers returns all Transfer events on token directed at recipient
// within the inclusive block range.
func (c *Client) FilterTransfers(
	ctx context.Context,
	token common.Address,
	recipient common.Address,
	fromBlock uint64,
	toBlock uint64,
) ([]model.TransferEvent, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{token},
		Topics: [][]common.Hash{
			{TransferTopic()},
			nil,
			{common.BytesToHash(recipient.Bytes())},
		},
	}

	logs, err := c.ethClient.FilterLogs(ctx, query)
	if err != nil {
		return nil, err
	}

	events := make([]model.TransferEvent, 0, len(logs))
	for _, log := range logs {
		event, err := ParseTransferLog(c.name, log)
		if err != nil {
			return nil, fmt.Errorf("parse transfer log %s:%d: %w", log.TxHash.Hex(), log.Index, err)
		}
		events = append(events, event)
	}
	return events, nil
}

// BalanceOf reads the ERC20 balance of owner on token at the latest block.
func (c *Client) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	data, err := parsed.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	resp, err := c.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}

	values, err := parsed.Unpack("balanceOf", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf: unexpected type %T", values[0])
	}
	return balance, nil
}

// ParseTransferLog converts a raw Transfer log into a normalized event.
func ParseTransferLog(chainName string, log types.Log) (model.TransferEvent, error) {
	if len(log.Topics) != 3 {
		return model.TransferEvent{}, fmt.Errorf("expected 3 topics, got %d", len(log.Topics))
	}
	if log.Topics[0] != TransferTopic() {
		return model.TransferEvent{}, fmt.Errorf("unexpected topic0 %s", log.Topics[0].Hex())
	}

	return model.TransferEvent{
		Chain:       chainName,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    log.Index,
		From:        LowerHex(common.BytesToAddress(log.Topics[1].Bytes())),
		To:          LowerHex(common.BytesToAddress(log.Topics[2].Bytes())),
		Value:       new(big.Int).SetBytes(log.Data),
	}, nil
}

// LowerHex formats an address as lowercase hex, the canonical form used in
// storage keys.
func LowerHex(addr common.Address) string {
	return "0x" + common.Bytes2Hex(addr.Bytes())
}
