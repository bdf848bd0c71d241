package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"bribeLedger/internal/model"
)

// Store is the ledger persistence one reconciliation cycle needs.
type Store interface {
	ListStagedByChain(ctx context.Context, chain string) ([]model.PendingPledge, error)
	GetPoolByName(ctx context.Context, name string) (model.Pool, error)
	LoadCursor(ctx context.Context, chain string) (uint64, bool, error)
	ApplyReconcileBatch(ctx context.Context, chain string, promotions []model.ConfirmedPledge, evictions []model.PendingPledge, lastBlock uint64) error
}

// ChainSource provides the per-chain reads a cycle depends on.
type ChainSource interface {
	LatestBlock(ctx context.Context) (uint64, error)
	Transfers(ctx context.Context, fromBlock, toBlock uint64) ([]model.TransferEvent, error)
	CurrentEpoch(ctx context.Context) (uint64, error)
}

// Config holds reconciliation settings shared by all chains.
type Config struct {
	WindowBlocks uint64
	StagingTTL   time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Reconciler matches staged pledges against observed transfers and promotes
// or evicts them, one chain per cycle.
type Reconciler struct {
	cfg     Config
	store   Store
	sources map[string]ChainSource
	logger  *zap.Logger
	now     func() time.Time
}

func New(cfg Config, store Store, sources map[string]ChainSource, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WindowBlocks == 0 {
		cfg.WindowBlocks = 50
	}
	if cfg.StagingTTL <= 0 {
		cfg.StagingTTL = 600 * time.Second
	}
	return &Reconciler{
		cfg:     cfg,
		store:   store,
		sources: sources,
		logger:  logger,
		now:     time.Now,
	}
}

// RunChain executes one reconciliation cycle for a chain. All reads happen
// up front; promotions, evictions, and the cursor advance commit as one
// batch, so a failed cycle mutates nothing and is safe to retry on the next
// tick.
func (r *Reconciler) RunChain(ctx context.Context, chain string) error {
	source, ok := r.sources[chain]
	if !ok {
		return fmt.Errorf("%w: %q", model.ErrUnknownChain, chain)
	}

	staged, err := r.store.ListStagedByChain(ctx, chain)
	if err != nil {
		return fmt.Errorf("list staged: %w", err)
	}
	if len(staged) == 0 {
		return nil
	}

	latest, err := r.latestBlockWithRetry(ctx, source)
	if err != nil {
		return fmt.Errorf("latest block: %w", err)
	}

	cursor, _, err := r.store.LoadCursor(ctx, chain)
	if err != nil {
		return err
	}

	// Scan only the slice of the trailing window above the cursor so a
	// transfer is consumed at most once across cycles.
	from := uint64(1)
	if latest >= r.cfg.WindowBlocks {
		from = latest - r.cfg.WindowBlocks + 1
	}
	if cursor+1 > from {
		from = cursor + 1
	}

	var events []model.TransferEvent
	if from <= latest {
		events, err = r.transfersWithRetry(ctx, source, chain, from, latest)
		if err != nil {
			return fmt.Errorf("fetch transfers: %w", err)
		}
	}

	epoch, err := r.currentEpochWithRetry(ctx, source)
	if err != nil {
		return fmt.Errorf("current epoch: %w", err)
	}

	totals := attribute(events)
	now := r.now()

	promotions := make([]model.ConfirmedPledge, 0, len(staged))
	evictions := make([]model.PendingPledge, 0)

	for _, pledge := range staged {
		amount := totals[pledge.Address]

		if amount != nil && amount.Sign() > 0 {
			pool, err := r.store.GetPoolByName(ctx, pledge.Pool)
			if err == nil {
				promotions = append(promotions, model.ConfirmedPledge{
					Address:  pledge.Address,
					Chain:    pledge.Chain,
					Pool:     pool.ID,
					PoolName: pool.Name,
					Amount:   new(big.Int).Set(amount),
					Epoch:    epoch,
				})
				// A sender's attributed total is consumed by the first pledge
				// it matches. Staged entries come back ordered by creation
				// time, so the earliest pledge wins and a later one from the
				// same sender waits for its own transfer.
				delete(totals, pledge.Address)
				continue
			}
			if !errors.Is(err, model.ErrPoolNotRegistered) {
				return fmt.Errorf("lookup pool %q: %w", pledge.Pool, err)
			}
			r.logger.Warn("matched pledge for unregistered pool",
				zap.String("chain", chain),
				zap.String("address", pledge.Address),
				zap.String("pool", pledge.Pool),
			)
		}

		if now.Sub(pledge.CreatedAt) >= r.cfg.StagingTTL {
			evictions = append(evictions, pledge)
		}
	}

	if len(promotions) == 0 && len(evictions) == 0 && len(events) == 0 {
		return nil
	}

	if err := r.store.ApplyReconcileBatch(ctx, chain, promotions, evictions, latest); err != nil {
		return fmt.Errorf("apply batch: %w", err)
	}

	r.logger.Info("cycle complete",
		zap.String("chain", chain),
		zap.Uint64("from", from),
		zap.Uint64("to", latest),
		zap.Int("staged", len(staged)),
		zap.Int("events", len(events)),
		zap.Int("promoted", len(promotions)),
		zap.Int("evicted", len(evictions)),
		zap.Uint64("epoch", epoch),
	)
	return nil
}

func (r *Reconciler) latestBlockWithRetry(ctx context.Context, source ChainSource) (uint64, error) {
	var latest uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context, attempt int) error {
		var err error
		latest, err = source.LatestBlock(ctx)
		if err != nil {
			r.logger.Warn("latest block fetch failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	})
	return latest, err
}

func (r *Reconciler) transfersWithRetry(ctx context.Context, source ChainSource, chain string, fromBlock, toBlock uint64) ([]model.TransferEvent, error) {
	var events []model.TransferEvent
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context, attempt int) error {
		var err error
		events, err = source.Transfers(ctx, fromBlock, toBlock)
		if err != nil {
			r.logger.Warn("transfer fetch failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
				zap.String("chain", chain),
				zap.Uint64("from", fromBlock),
				zap.Uint64("to", toBlock),
			)
		}
		return err
	})
	return events, err
}

func (r *Reconciler) currentEpochWithRetry(ctx context.Context, source ChainSource) (uint64, error) {
	var epoch uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context, attempt int) error {
		var err error
		epoch, err = source.CurrentEpoch(ctx)
		if err != nil {
			r.logger.Warn("epoch fetch failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	})
	return epoch, err
}
