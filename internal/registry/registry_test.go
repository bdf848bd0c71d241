package registry

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"bribeLedger/internal/model"
)

type fakeStore struct {
	pools map[int64]model.Pool
}

func newFakeStore() *fakeStore {
	return &fakeStore{pools: make(map[int64]model.Pool)}
}

func (s *fakeStore) RegisterPool(_ context.Context, pool model.Pool) (bool, error) {
	if _, ok := s.pools[pool.ID]; ok {
		return false, nil
	}
	s.pools[pool.ID] = pool
	return true, nil
}

func (s *fakeStore) GetPoolByName(_ context.Context, name string) (model.Pool, error) {
	for _, pool := range s.pools {
		if pool.Name == name {
			return pool, nil
		}
	}
	return model.Pool{}, model.ErrPoolNotRegistered
}

func (s *fakeStore) IsPoolRegistered(_ context.Context, name string) (bool, error) {
	_, err := s.GetPoolByName(context.Background(), name)
	return err == nil, nil
}

func (s *fakeStore) ListPools(context.Context) ([]model.Pool, error) {
	out := make([]model.Pool, 0, len(s.pools))
	for _, pool := range s.pools {
		out = append(out, pool)
	}
	return out, nil
}

func (s *fakeStore) DeregisterPool(_ context.Context, id int64) (bool, error) {
	if _, ok := s.pools[id]; !ok {
		return false, nil
	}
	delete(s.pools, id)
	return true, nil
}

type fakeReader struct {
	count       uint64
	data        map[uint64]model.PoolData
	whitelisted map[uint64]bool
	readErrs    map[uint64]error
}

func (r *fakeReader) NumberOfPools(context.Context) (uint64, error) {
	return r.count, nil
}

func (r *fakeReader) PoolData(_ context.Context, id uint64) (model.PoolData, error) {
	return r.data[id], nil
}

func (r *fakeReader) IsWhitelisted(_ context.Context, id uint64) (bool, error) {
	if err := r.readErrs[id]; err != nil {
		return false, err
	}
	return r.whitelisted[id], nil
}

func TestSyncRegistersAllPools(t *testing.T) {
	store := newFakeStore()
	reader := &fakeReader{
		count: 2,
		data: map[uint64]model.PoolData{
			1: {Name: "bakeland", PooledRewards: big.NewInt(100)},
			2: {Name: "honeypot", PooledRewards: big.NewInt(50)},
		},
	}

	r := New(store, nil)
	if err := r.Sync(context.Background(), "berachain", reader); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.pools) != 2 {
		t.Fatalf("registered %d pools, want 2", len(store.pools))
	}
	if got := store.pools[1]; got.Name != "bakeland" || got.Chain != "berachain" {
		t.Fatalf("pool 1 mismatch: %+v", got)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	store := newFakeStore()
	reader := &fakeReader{
		count: 1,
		data:  map[uint64]model.PoolData{1: {Name: "bakeland", PooledRewards: big.NewInt(100)}},
	}

	r := New(store, nil)
	if err := r.Sync(context.Background(), "berachain", reader); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	// Second sync sees a different pooled amount; the stored row keeps the
	// original value because existing pools are never updated.
	reader.data[1] = model.PoolData{Name: "bakeland", PooledRewards: big.NewInt(999)}
	if err := r.Sync(context.Background(), "berachain", reader); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	if got := store.pools[1].PooledPledges; got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("pooled pledges = %s, want original 100", got)
	}
}

func TestDeregisterAbsentPool(t *testing.T) {
	r := New(newFakeStore(), nil)

	deleted, err := r.Deregister(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted {
		t.Fatalf("deleted an absent pool")
	}
}

func TestDeregisterBlacklistedContinuesPastReadErrors(t *testing.T) {
	store := newFakeStore()
	store.pools[1] = model.Pool{ID: 1, Name: "bakeland"}
	store.pools[2] = model.Pool{ID: 2, Name: "honeypot"}
	store.pools[3] = model.Pool{ID: 3, Name: "moonshot"}

	reader := &fakeReader{
		whitelisted: map[uint64]bool{1: true, 3: false},
		readErrs:    map[uint64]error{2: errors.New("rpc timeout")},
	}

	r := New(store, nil)
	removed, err := r.DeregisterBlacklisted(context.Background(), reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := store.pools[3]; ok {
		t.Fatalf("blacklisted pool 3 still registered")
	}
	if _, ok := store.pools[2]; !ok {
		t.Fatalf("pool with failed read was removed")
	}
}
