package settle

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"bribeLedger/internal/model"
)

// ClaimLedger is the pledge and decision persistence claims read from.
type ClaimLedger interface {
	GetEpochDecision(ctx context.Context, epoch uint64) (model.EpochDecision, error)
	TotalPledged(ctx context.Context, poolID int64, epoch uint64) (*big.Int, error)
	UserPledge(ctx context.Context, address string, poolID int64, epoch uint64) (*big.Int, error)
	BeginClaim(ctx context.Context, address string, epoch uint64, amount *big.Int) (ClaimTx, error)
}

// ClaimTx is an open, uncommitted claim marker.
type ClaimTx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// EpochReader reads the current epoch from the source contract.
type EpochReader interface {
	CurrentEpoch(ctx context.Context) (uint64, error)
}

// Rewarder transfers reward tokens to a claimant.
type Rewarder interface {
	Transfer(ctx context.Context, to string, amount *big.Int) error
}

// Calculator computes and pays a pledger's proportional share of a buyback.
type Calculator struct {
	ledger   ClaimLedger
	epochs   EpochReader
	rewarder Rewarder
	logger   *zap.Logger
}

func NewCalculator(ledger ClaimLedger, epochs EpochReader, rewarder Rewarder, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{ledger: ledger, epochs: epochs, rewarder: rewarder, logger: logger}
}

// Claim pays userAddress its share of the buyback for epoch and returns the
// paid amount: floor(userPledged * decision.amount / totalPledged). Each
// (address, epoch) pays out at most once; a failed transfer leaves no claim
// marker behind.
func (c *Calculator) Claim(ctx context.Context, userAddress string, epoch uint64) (*big.Int, error) {
	userAddress = strings.ToLower(strings.TrimSpace(userAddress))
	if userAddress == "" {
		return nil, fmt.Errorf("%w: empty address", model.ErrInvalidInput)
	}
	if epoch == 0 {
		return nil, fmt.Errorf("%w: epoch must be >= 1", model.ErrInvalidInput)
	}

	current, err := c.epochs.CurrentEpoch(ctx)
	if err != nil {
		return nil, fmt.Errorf("current epoch: %w", err)
	}
	if epoch > current {
		return nil, model.ErrEpochNotReached
	}

	decision, err := c.ledger.GetEpochDecision(ctx, epoch)
	if err != nil {
		return nil, err
	}
	if decision.Decision == model.DecisionBurn {
		return nil, model.ErrNoBuyback
	}

	total, err := c.ledger.TotalPledged(ctx, decision.Pool, epoch)
	if err != nil {
		return nil, err
	}
	if total.Sign() == 0 {
		return nil, model.ErrNothingToClaim
	}

	pledged, err := c.ledger.UserPledge(ctx, userAddress, decision.Pool, epoch)
	if err != nil {
		return nil, err
	}

	share := new(big.Int).Mul(pledged, decision.Amount)
	share.Div(share, total)
	if share.Sign() <= 0 {
		return nil, model.ErrNothingToClaim
	}

	claimTx, err := c.ledger.BeginClaim(ctx, userAddress, epoch, share)
	if err != nil {
		return nil, err
	}

	if err := c.rewarder.Transfer(ctx, userAddress, share); err != nil {
		claimTx.Rollback(ctx)
		return nil, fmt.Errorf("reward transfer: %w", err)
	}
	if err := claimTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	c.logger.Info("claim paid",
		zap.String("address", userAddress),
		zap.Uint64("epoch", epoch),
		zap.String("share", share.String()),
	)
	return share, nil
}
