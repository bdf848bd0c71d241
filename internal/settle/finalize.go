package settle

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"bribeLedger/internal/model"
)

// Ledger is the decision persistence the finalizer needs.
type Ledger interface {
	MostPledgedPool(ctx context.Context) (model.Pool, error)
	BeginEpochDecision(ctx context.Context, d model.EpochDecision) (DecisionTx, error)
}

// DecisionTx is an open, uncommitted epoch decision. The payout action runs
// between Begin and Commit so a failed payout never leaves a decision behind.
type DecisionTx interface {
	SetAmount(ctx context.Context, amount *big.Int) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// GameReader provides the raid data driving the burn-or-buyback decision.
type GameReader interface {
	RaidLosses(ctx context.Context, id uint64) (*big.Int, error)
	PoolData(ctx context.Context, id uint64) (model.PoolData, error)
}

// Payout executes the finalization side effects.
type Payout interface {
	// Burn destroys amount of the pledge token.
	Burn(ctx context.Context, amount *big.Int) error
	// Buyback swaps amount of the pledge token for the reward token and
	// returns the realized output.
	Buyback(ctx context.Context, amount *big.Int) (*big.Int, error)
}

// Finalizer records the write-once burn-or-buyback decision for an epoch.
type Finalizer struct {
	ledger Ledger
	game   GameReader
	payout Payout
	logger *zap.Logger
}

func NewFinalizer(ledger Ledger, game GameReader, payout Payout, logger *zap.Logger) *Finalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finalizer{ledger: ledger, game: game, payout: payout, logger: logger}
}

// Finalize decides burn or buyback for an epoch and records the outcome
// exactly once. Raid losses under 5% of staked volume burn the lost amount;
// anything above buys back with 1.25x the pool's pooled pledges and records
// the realized swap output. A second call for the same epoch returns
// ErrDecisionExists and leaves the stored row untouched.
func (f *Finalizer) Finalize(ctx context.Context, epoch uint64) (model.EpochDecision, error) {
	if epoch == 0 {
		return model.EpochDecision{}, fmt.Errorf("%w: epoch must be >= 1", model.ErrInvalidInput)
	}

	pool, err := f.ledger.MostPledgedPool(ctx)
	if err != nil {
		return model.EpochDecision{}, fmt.Errorf("most pledged pool: %w", err)
	}

	lost, err := f.game.RaidLosses(ctx, uint64(pool.ID))
	if err != nil {
		return model.EpochDecision{}, fmt.Errorf("raid losses: %w", err)
	}
	data, err := f.game.PoolData(ctx, uint64(pool.ID))
	if err != nil {
		return model.EpochDecision{}, fmt.Errorf("pool data: %w", err)
	}
	if data.StakedVolume == nil || data.StakedVolume.Sign() == 0 {
		return model.EpochDecision{}, fmt.Errorf("pool %d has no staked volume", pool.ID)
	}

	// lossRatio < 5% without division: lost * 20 < staked.
	burn := new(big.Int).Mul(lost, big.NewInt(20)).Cmp(data.StakedVolume) < 0

	decision := model.EpochDecision{Epoch: epoch, Pool: pool.ID}
	if burn {
		decision.Decision = model.DecisionBurn
		decision.Amount = new(big.Int).Set(lost)
	} else {
		decision.Decision = model.DecisionBuyback
		decision.Amount = big.NewInt(0)
	}

	dtx, err := f.ledger.BeginEpochDecision(ctx, decision)
	if err != nil {
		return model.EpochDecision{}, err
	}

	if burn {
		if err := f.payout.Burn(ctx, decision.Amount); err != nil {
			dtx.Rollback(ctx)
			return model.EpochDecision{}, fmt.Errorf("burn payout: %w", err)
		}
	} else {
		// Requested input is 1.25x the pool's pooled pledges; what gets
		// recorded is the realized output the swap produced.
		input := new(big.Int).Mul(pool.PooledPledges, big.NewInt(5))
		input.Div(input, big.NewInt(4))

		realized, err := f.payout.Buyback(ctx, input)
		if err != nil {
			dtx.Rollback(ctx)
			return model.EpochDecision{}, fmt.Errorf("buyback payout: %w", err)
		}
		if err := dtx.SetAmount(ctx, realized); err != nil {
			dtx.Rollback(ctx)
			return model.EpochDecision{}, err
		}
		decision.Amount = realized
	}

	if err := dtx.Commit(ctx); err != nil {
		return model.EpochDecision{}, fmt.Errorf("commit decision: %w", err)
	}

	f.logger.Info("epoch finalized",
		zap.Uint64("epoch", epoch),
		zap.Int64("pool", pool.ID),
		zap.String("decision", decision.Decision.String()),
		zap.String("amount", decision.Amount.String()),
	)
	return decision, nil
}
