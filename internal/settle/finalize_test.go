package settle

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"bribeLedger/internal/model"
)

type fakeDecisionTx struct {
	amount     *big.Int
	committed  bool
	rolledBack bool
}

func (tx *fakeDecisionTx) SetAmount(_ context.Context, amount *big.Int) error {
	tx.amount = amount
	return nil
}

func (tx *fakeDecisionTx) Commit(context.Context) error {
	tx.committed = true
	return nil
}

func (tx *fakeDecisionTx) Rollback(context.Context) error {
	tx.rolledBack = true
	return nil
}

type fakeLedger struct {
	pool     model.Pool
	poolErr  error
	beginErr error
	begun    *model.EpochDecision
	tx       *fakeDecisionTx
}

func (l *fakeLedger) MostPledgedPool(context.Context) (model.Pool, error) {
	return l.pool, l.poolErr
}

func (l *fakeLedger) BeginEpochDecision(_ context.Context, d model.EpochDecision) (DecisionTx, error) {
	if l.beginErr != nil {
		return nil, l.beginErr
	}
	l.begun = &d
	l.tx = &fakeDecisionTx{}
	return l.tx, nil
}

type fakeGame struct {
	lost   *big.Int
	staked *big.Int
	epoch  uint64
}

func (g *fakeGame) RaidLosses(context.Context, uint64) (*big.Int, error) {
	return g.lost, nil
}

func (g *fakeGame) PoolData(context.Context, uint64) (model.PoolData, error) {
	return model.PoolData{StakedVolume: g.staked}, nil
}

func (g *fakeGame) CurrentEpoch(context.Context) (uint64, error) {
	return g.epoch, nil
}

type fakePayout struct {
	burned    *big.Int
	burnErr   error
	swapInput *big.Int
	realized  *big.Int
	swapErr   error
}

func (p *fakePayout) Burn(_ context.Context, amount *big.Int) error {
	p.burned = amount
	return p.burnErr
}

func (p *fakePayout) Buyback(_ context.Context, amount *big.Int) (*big.Int, error) {
	p.swapInput = amount
	return p.realized, p.swapErr
}

func TestFinalizeBurnsOnLowLoss(t *testing.T) {
	// 3% loss: 30 of 1000 staked.
	ledger := &fakeLedger{pool: model.Pool{ID: 7, PooledPledges: big.NewInt(400)}}
	game := &fakeGame{lost: big.NewInt(30), staked: big.NewInt(1000)}
	payout := &fakePayout{}

	f := NewFinalizer(ledger, game, payout, nil)
	decision, err := f.Finalize(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if decision.Decision != model.DecisionBurn {
		t.Fatalf("decision = %s, want burn", decision.Decision)
	}
	if decision.Amount.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("burn amount = %s, want 30", decision.Amount)
	}
	if payout.burned == nil || payout.burned.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("payout burned %v, want 30", payout.burned)
	}
	if !ledger.tx.committed {
		t.Fatalf("decision never committed")
	}
}

func TestFinalizeBuysBackOnHighLoss(t *testing.T) {
	// 8% loss: 80 of 1000 staked. Swap input is 1.25x pooled pledges; the
	// recorded amount is the realized output.
	ledger := &fakeLedger{pool: model.Pool{ID: 7, PooledPledges: big.NewInt(400)}}
	game := &fakeGame{lost: big.NewInt(80), staked: big.NewInt(1000)}
	payout := &fakePayout{realized: big.NewInt(473)}

	f := NewFinalizer(ledger, game, payout, nil)
	decision, err := f.Finalize(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if decision.Decision != model.DecisionBuyback {
		t.Fatalf("decision = %s, want buyback", decision.Decision)
	}
	if payout.swapInput.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("swap input = %s, want 500 (1.25 * 400)", payout.swapInput)
	}
	if decision.Amount.Cmp(big.NewInt(473)) != 0 {
		t.Fatalf("recorded amount = %s, want realized 473", decision.Amount)
	}
	if ledger.tx.amount == nil || ledger.tx.amount.Cmp(big.NewInt(473)) != 0 {
		t.Fatalf("tx amount = %v, want 473", ledger.tx.amount)
	}
	if !ledger.tx.committed {
		t.Fatalf("decision never committed")
	}
}

func TestFinalizeExactBoundaryBuysBack(t *testing.T) {
	// Exactly 5%: not under the threshold, so buyback.
	ledger := &fakeLedger{pool: model.Pool{ID: 7, PooledPledges: big.NewInt(4)}}
	game := &fakeGame{lost: big.NewInt(50), staked: big.NewInt(1000)}
	payout := &fakePayout{realized: big.NewInt(9)}

	f := NewFinalizer(ledger, game, payout, nil)
	decision, err := f.Finalize(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Decision != model.DecisionBuyback {
		t.Fatalf("decision = %s, want buyback at the 5%% boundary", decision.Decision)
	}
}

func TestFinalizeSecondCallReturnsExisting(t *testing.T) {
	ledger := &fakeLedger{
		pool:     model.Pool{ID: 7, PooledPledges: big.NewInt(400)},
		beginErr: model.ErrDecisionExists,
	}
	game := &fakeGame{lost: big.NewInt(30), staked: big.NewInt(1000)}
	payout := &fakePayout{}

	f := NewFinalizer(ledger, game, payout, nil)
	_, err := f.Finalize(context.Background(), 5)
	if !errors.Is(err, model.ErrDecisionExists) {
		t.Fatalf("err = %v, want ErrDecisionExists", err)
	}
	if payout.burned != nil || payout.swapInput != nil {
		t.Fatalf("payout ran despite existing decision")
	}
}

func TestFinalizePayoutFailureRollsBack(t *testing.T) {
	ledger := &fakeLedger{pool: model.Pool{ID: 7, PooledPledges: big.NewInt(400)}}
	game := &fakeGame{lost: big.NewInt(80), staked: big.NewInt(1000)}
	payout := &fakePayout{swapErr: errors.New("aggregator down")}

	f := NewFinalizer(ledger, game, payout, nil)
	if _, err := f.Finalize(context.Background(), 5); err == nil {
		t.Fatalf("expected error when swap fails")
	}

	if ledger.tx.committed {
		t.Fatalf("decision committed despite payout failure")
	}
	if !ledger.tx.rolledBack {
		t.Fatalf("decision not rolled back")
	}
}

func TestFinalizeRejectsEpochZero(t *testing.T) {
	f := NewFinalizer(&fakeLedger{}, &fakeGame{}, &fakePayout{}, nil)
	_, err := f.Finalize(context.Background(), 0)
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}
