package payout

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"bribeLedger/internal/chain"
)

func packTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	parsed, err := chain.ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := parsed.Pack("transfer", to, amount)
	if err != nil {
		return nil, fmt.Errorf("pack transfer: %w", err)
	}
	return data, nil
}

// Burner destroys pledge tokens by transferring them to the burn address.
type Burner struct {
	token    common.Address
	burnAddr common.Address
	sender   TxSender
	logger   *zap.Logger
}

func NewBurner(token, burnAddr common.Address, sender TxSender, logger *zap.Logger) *Burner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Burner{token: token, burnAddr: burnAddr, sender: sender, logger: logger}
}

// Burn transfers amount of the pledge token to the burn address.
func (b *Burner) Burn(ctx context.Context, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("burn amount must be positive")
	}

	data, err := packTransfer(b.burnAddr, amount)
	if err != nil {
		return err
	}

	hash, err := b.sender.Send(ctx, TxRequest{To: b.token, Data: data})
	if err != nil {
		return fmt.Errorf("burn transfer: %w", err)
	}

	b.logger.Info("burn complete", zap.String("amount", amount.String()), zap.String("tx", hash.Hex()))
	return nil
}

// Rewarder transfers reward tokens to claimants.
type Rewarder struct {
	token  common.Address
	sender TxSender
	logger *zap.Logger
}

func NewRewarder(token common.Address, sender TxSender, logger *zap.Logger) *Rewarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rewarder{token: token, sender: sender, logger: logger}
}

// Transfer sends amount of the reward token to the given address.
func (r *Rewarder) Transfer(ctx context.Context, to string, amount *big.Int) error {
	if !common.IsHexAddress(to) {
		return fmt.Errorf("invalid recipient address %q", to)
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("transfer amount must be positive")
	}

	data, err := packTransfer(common.HexToAddress(to), amount)
	if err != nil {
		return err
	}

	hash, err := r.sender.Send(ctx, TxRequest{To: r.token, Data: data})
	if err != nil {
		return fmt.Errorf("reward transfer: %w", err)
	}

	r.logger.Info("reward transferred",
		zap.String("to", to),
		zap.String("amount", amount.String()),
		zap.String("tx", hash.Hex()),
	)
	return nil
}
