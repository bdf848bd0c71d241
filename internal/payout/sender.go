package payout

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// TxRequest describes a transaction to submit.
type TxRequest struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// TxSender submits a transaction and blocks until it is mined. Key
// management and signing live behind this interface; the core never touches
// private keys.
type TxSender interface {
	Send(ctx context.Context, req TxRequest) (common.Hash, error)
}

// NodeSender submits transactions through eth_sendTransaction, delegating
// signing to an account managed by the node.
type NodeSender struct {
	rpc  *rpc.Client
	eth  *ethclient.Client
	from common.Address

	pollInterval time.Duration
}

func NewNodeSender(rpcClient *rpc.Client, from common.Address) *NodeSender {
	return &NodeSender{
		rpc:          rpcClient,
		eth:          ethclient.NewClient(rpcClient),
		from:         from,
		pollInterval: 2 * time.Second,
	}
}

// Send submits the transaction and waits for a successful receipt.
func (s *NodeSender) Send(ctx context.Context, req TxRequest) (common.Hash, error) {
	arg := map[string]interface{}{
		"from": s.from,
		"to":   req.To,
		"data": hexutil.Bytes(req.Data),
	}
	if req.Value != nil && req.Value.Sign() > 0 {
		arg["value"] = (*hexutil.Big)(req.Value)
	}

	var hash common.Hash
	if err := s.rpc.CallContext(ctx, &hash, "eth_sendTransaction", arg); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}

	if err := s.waitMined(ctx, hash); err != nil {
		return hash, err
	}
	return hash, nil
}

func (s *NodeSender) waitMined(ctx context.Context, hash common.Hash) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("transaction %s reverted", hash.Hex())
			}
			return nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return fmt.Errorf("receipt %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
