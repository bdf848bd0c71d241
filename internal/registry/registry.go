package registry

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"bribeLedger/internal/model"
)

// Store is the pool persistence the registry needs.
type Store interface {
	RegisterPool(ctx context.Context, pool model.Pool) (bool, error)
	GetPoolByName(ctx context.Context, name string) (model.Pool, error)
	IsPoolRegistered(ctx context.Context, name string) (bool, error)
	ListPools(ctx context.Context) ([]model.Pool, error)
	DeregisterPool(ctx context.Context, id int64) (bool, error)
}

// PoolReader enumerates pools from the source-of-truth contract.
type PoolReader interface {
	NumberOfPools(ctx context.Context) (uint64, error)
	PoolData(ctx context.Context, id uint64) (model.PoolData, error)
	IsWhitelisted(ctx context.Context, id uint64) (bool, error)
}

// Registry mirrors on-chain pool enumeration into the local store.
type Registry struct {
	store  Store
	logger *zap.Logger
}

func New(store Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: store, logger: logger}
}

// Sync reads the pool count and per-pool metadata from the contract and
// upserts each pool, skipping pools already present. Idempotent: existing
// rows are never updated.
func (r *Registry) Sync(ctx context.Context, chain string, reader PoolReader) error {
	count, err := reader.NumberOfPools(ctx)
	if err != nil {
		return fmt.Errorf("read pool count: %w", err)
	}

	var added int
	for id := uint64(1); id <= count; id++ {
		data, err := reader.PoolData(ctx, id)
		if err != nil {
			return fmt.Errorf("read pool %d: %w", id, err)
		}

		pooled := data.PooledRewards
		if pooled == nil {
			pooled = big.NewInt(0)
		}
		inserted, err := r.store.RegisterPool(ctx, model.Pool{
			ID:            int64(id),
			Name:          data.Name,
			Chain:         chain,
			PooledPledges: pooled,
		})
		if err != nil {
			return err
		}
		if inserted {
			added++
			r.logger.Info("pool registered",
				zap.Int64("id", int64(id)),
				zap.String("name", data.Name),
				zap.String("chain", chain),
			)
		}
	}

	r.logger.Info("pool sync complete", zap.String("chain", chain), zap.Uint64("total", count), zap.Int("added", added))
	return nil
}

// IsRegistered reports whether a pool name is in the registry.
func (r *Registry) IsRegistered(ctx context.Context, name string) (bool, error) {
	return r.store.IsPoolRegistered(ctx, name)
}

// GetByName returns a pool by name.
func (r *Registry) GetByName(ctx context.Context, name string) (model.Pool, error) {
	return r.store.GetPoolByName(ctx, name)
}

// Deregister removes a pool and its pledges. Returns false when the pool is
// absent; callers must not treat a no-op deletion as an error.
func (r *Registry) Deregister(ctx context.Context, id int64) (bool, error) {
	return r.store.DeregisterPool(ctx, id)
}

// DeregisterBlacklisted removes every registered pool whose eligibility flag
// the contract reports as cleared. A read failure for one pool is logged and
// skipped so the rest of the sweep proceeds.
func (r *Registry) DeregisterBlacklisted(ctx context.Context, reader PoolReader) (int, error) {
	pools, err := r.store.ListPools(ctx)
	if err != nil {
		return 0, err
	}

	var removed int
	for _, pool := range pools {
		whitelisted, err := reader.IsWhitelisted(ctx, uint64(pool.ID))
		if err != nil {
			r.logger.Warn("whitelist check failed", zap.Int64("pool", pool.ID), zap.Error(err))
			continue
		}
		if whitelisted {
			continue
		}

		deleted, err := r.store.DeregisterPool(ctx, pool.ID)
		if err != nil {
			return removed, err
		}
		if deleted {
			removed++
			r.logger.Info("blacklisted pool removed", zap.Int64("pool", pool.ID), zap.String("name", pool.Name))
		}
	}
	return removed, nil
}
