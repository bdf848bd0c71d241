package staging

import (
	"context"
	"errors"
	"testing"
	"time"

	"bribeLedger/internal/model"
)

type fakeStore struct {
	staged  map[string]model.PendingPledge
	removes int
}

func newFakeStore() *fakeStore {
	return &fakeStore{staged: make(map[string]model.PendingPledge)}
}

func key(address, chain, pool string) string {
	return address + "|" + chain + "|" + pool
}

func (s *fakeStore) StagePledge(_ context.Context, pledge model.PendingPledge) error {
	s.staged[key(pledge.Address, pledge.Chain, pledge.Pool)] = pledge
	return nil
}

func (s *fakeStore) ListStagedByChain(_ context.Context, chain string) ([]model.PendingPledge, error) {
	var out []model.PendingPledge
	for _, pledge := range s.staged {
		if pledge.Chain == chain {
			out = append(out, pledge)
		}
	}
	return out, nil
}

func (s *fakeStore) RemoveStaged(_ context.Context, address, chain, pool string) error {
	s.removes++
	delete(s.staged, key(address, chain, pool))
	return nil
}

type fakeRegistry struct {
	registered map[string]bool
}

func (r *fakeRegistry) IsRegistered(_ context.Context, name string) (bool, error) {
	return r.registered[name], nil
}

const validAddr = "0x1111111111111111111111111111111111111111"

func newTestStaging(store *fakeStore) *Staging {
	registry := &fakeRegistry{registered: map[string]bool{"bakeland": true}}
	return New(store, registry, []string{"berachain", "base"})
}

func TestStageNormalizesAndStores(t *testing.T) {
	store := newFakeStore()
	s := newTestStaging(store)

	ts := time.Now()
	err := s.Stage(context.Background(), " 0x1111111111111111111111111111111111111111 ", "Berachain", "bakeland", ts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pledge, ok := store.staged[key(validAddr, "berachain", "bakeland")]
	if !ok {
		t.Fatalf("pledge not staged: %v", store.staged)
	}
	if !pledge.CreatedAt.Equal(ts.UTC()) {
		t.Fatalf("created at %v, want %v", pledge.CreatedAt, ts.UTC())
	}
}

func TestStageRejectsMalformedAddress(t *testing.T) {
	s := newTestStaging(newFakeStore())

	for _, address := range []string{"", "0x123", "not-an-address", "0xZZ11111111111111111111111111111111111111"} {
		err := s.Stage(context.Background(), address, "berachain", "bakeland", time.Now())
		if !errors.Is(err, model.ErrInvalidInput) {
			t.Fatalf("address %q: err = %v, want ErrInvalidInput", address, err)
		}
	}
}

func TestStageRejectsUnknownChain(t *testing.T) {
	s := newTestStaging(newFakeStore())

	err := s.Stage(context.Background(), validAddr, "solana", "bakeland", time.Now())
	if !errors.Is(err, model.ErrUnknownChain) {
		t.Fatalf("err = %v, want ErrUnknownChain", err)
	}
}

func TestStageRejectsUnregisteredPool(t *testing.T) {
	s := newTestStaging(newFakeStore())

	err := s.Stage(context.Background(), validAddr, "berachain", "unknown-pool", time.Now())
	if !errors.Is(err, model.ErrPoolNotRegistered) {
		t.Fatalf("err = %v, want ErrPoolNotRegistered", err)
	}
}

func TestStageRejectsEmptyPool(t *testing.T) {
	s := newTestStaging(newFakeStore())

	err := s.Stage(context.Background(), validAddr, "berachain", "  ", time.Now())
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestStageLatestAnnouncementWins(t *testing.T) {
	store := newFakeStore()
	s := newTestStaging(store)

	first := time.Now().Add(-5 * time.Minute)
	second := time.Now()

	if err := s.Stage(context.Background(), validAddr, "berachain", "bakeland", first); err != nil {
		t.Fatalf("first stage: %v", err)
	}
	if err := s.Stage(context.Background(), validAddr, "berachain", "bakeland", second); err != nil {
		t.Fatalf("second stage: %v", err)
	}

	if len(store.staged) != 1 {
		t.Fatalf("staged %d pledges, want 1", len(store.staged))
	}
	pledge := store.staged[key(validAddr, "berachain", "bakeland")]
	if !pledge.CreatedAt.Equal(second.UTC()) {
		t.Fatalf("created at %v, want refreshed %v", pledge.CreatedAt, second.UTC())
	}
}

func TestRemoveAbsentIsNoError(t *testing.T) {
	store := newFakeStore()
	s := newTestStaging(store)

	if err := s.Remove(context.Background(), validAddr, "berachain", "bakeland"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.removes != 1 {
		t.Fatalf("remove not forwarded to store")
	}
}
