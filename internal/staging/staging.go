package staging

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bribeLedger/internal/model"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

// Store is the staging persistence.
type Store interface {
	StagePledge(ctx context.Context, pledge model.PendingPledge) error
	ListStagedByChain(ctx context.Context, chain string) ([]model.PendingPledge, error)
	RemoveStaged(ctx context.Context, address, chain, pool string) error
}

// Registry answers pool registration checks at the staging boundary.
type Registry interface {
	IsRegistered(ctx context.Context, name string) (bool, error)
}

// Staging validates announced pledges and holds them until reconciliation
// promotes or evicts them. Input here is already structured; anything
// malformed is rejected before any write.
type Staging struct {
	store    Store
	registry Registry
	chains   map[string]struct{}
}

func New(store Store, registry Registry, chains []string) *Staging {
	known := make(map[string]struct{}, len(chains))
	for _, chain := range chains {
		known[strings.ToLower(chain)] = struct{}{}
	}
	return &Staging{store: store, registry: registry, chains: known}
}

// Stage validates and records an announced pledge. Re-staging an unresolved
// (address, chain, pool) refreshes its timestamp: the latest announcement
// wins.
func (s *Staging) Stage(ctx context.Context, address, chain, pool string, ts time.Time) error {
	address = strings.ToLower(strings.TrimSpace(address))
	chain = strings.ToLower(strings.TrimSpace(chain))
	pool = strings.TrimSpace(pool)

	if !addressPattern.MatchString(address) {
		return fmt.Errorf("%w: address %q", model.ErrInvalidInput, address)
	}
	if pool == "" {
		return fmt.Errorf("%w: empty pool name", model.ErrInvalidInput)
	}
	if _, ok := s.chains[chain]; !ok {
		return fmt.Errorf("%w: %q", model.ErrUnknownChain, chain)
	}

	registered, err := s.registry.IsRegistered(ctx, pool)
	if err != nil {
		return err
	}
	if !registered {
		return fmt.Errorf("%w: %q", model.ErrPoolNotRegistered, pool)
	}

	return s.store.StagePledge(ctx, model.PendingPledge{
		Address:   address,
		Chain:     chain,
		Pool:      pool,
		CreatedAt: ts.UTC(),
	})
}

// ListByChain returns all pending pledges for a chain.
func (s *Staging) ListByChain(ctx context.Context, chain string) ([]model.PendingPledge, error) {
	return s.store.ListStagedByChain(ctx, strings.ToLower(chain))
}

// Remove deletes a pending pledge. Removing an absent entry is not an error.
func (s *Staging) Remove(ctx context.Context, address, chain, pool string) error {
	return s.store.RemoveStaged(ctx, strings.ToLower(address), strings.ToLower(chain), pool)
}
