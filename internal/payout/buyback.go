package payout

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"bribeLedger/internal/chain"
)

// BalanceReader reads ERC20 balances, used to measure realized swap output.
type BalanceReader interface {
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
}

// BuybackExecutor swaps pledge tokens for reward tokens through the
// aggregator and reports the realized output as the settlement wallet's
// reward-token balance delta.
type BuybackExecutor struct {
	api        *SwapAPI
	balances   BalanceReader
	sender     TxSender
	tokenIn    common.Address
	tokenOut   common.Address
	settlement common.Address
	slippage   float64
	logger     *zap.Logger
}

func NewBuybackExecutor(
	api *SwapAPI,
	balances BalanceReader,
	sender TxSender,
	tokenIn, tokenOut, settlement common.Address,
	slippage float64,
	logger *zap.Logger,
) *BuybackExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BuybackExecutor{
		api:        api,
		balances:   balances,
		sender:     sender,
		tokenIn:    tokenIn,
		tokenOut:   tokenOut,
		settlement: settlement,
		slippage:   slippage,
		logger:     logger,
	}
}

var _ BalanceReader = (*chain.Client)(nil)

// Buyback swaps amount of the pledge token for the reward token and returns
// the realized output.
func (b *BuybackExecutor) Buyback(ctx context.Context, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("buyback amount must be positive")
	}

	before, err := b.balances.BalanceOf(ctx, b.tokenOut, b.settlement)
	if err != nil {
		return nil, fmt.Errorf("read balance before swap: %w", err)
	}

	allowance, err := b.api.Allowance(ctx, b.tokenIn, b.settlement)
	if err != nil {
		return nil, fmt.Errorf("read allowance: %w", err)
	}
	if allowance.Cmp(amount) < 0 {
		missing := new(big.Int).Sub(amount, allowance)
		approveTx, err := b.api.ApproveTx(ctx, b.tokenIn, missing)
		if err != nil {
			return nil, fmt.Errorf("build approve: %w", err)
		}
		if _, err := b.sender.Send(ctx, approveTx.Request()); err != nil {
			return nil, fmt.Errorf("approve: %w", err)
		}
	}

	swapTx, err := b.api.BuildSwapTx(ctx, b.tokenIn, b.tokenOut, b.settlement, amount, b.slippage)
	if err != nil {
		return nil, fmt.Errorf("build swap: %w", err)
	}
	hash, err := b.sender.Send(ctx, swapTx.Request())
	if err != nil {
		return nil, fmt.Errorf("swap: %w", err)
	}

	after, err := b.balances.BalanceOf(ctx, b.tokenOut, b.settlement)
	if err != nil {
		return nil, fmt.Errorf("read balance after swap: %w", err)
	}

	realized := new(big.Int).Sub(after, before)
	if realized.Sign() <= 0 {
		return nil, fmt.Errorf("swap %s produced no output", hash.Hex())
	}

	b.logger.Info("buyback complete",
		zap.String("input", amount.String()),
		zap.String("realized", realized.String()),
		zap.String("tx", hash.Hex()),
	)
	return realized, nil
}
