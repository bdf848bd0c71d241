package settle

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"bribeLedger/internal/model"
)

type fakeClaimTx struct {
	committed  bool
	rolledBack bool
}

func (tx *fakeClaimTx) Commit(context.Context) error {
	tx.committed = true
	return nil
}

func (tx *fakeClaimTx) Rollback(context.Context) error {
	tx.rolledBack = true
	return nil
}

type fakeClaimLedger struct {
	decision    model.EpochDecision
	decisionErr error
	total       *big.Int
	pledges     map[string]*big.Int
	beginErr    error
	tx          *fakeClaimTx
	beganAmount *big.Int
}

func (l *fakeClaimLedger) GetEpochDecision(_ context.Context, _ uint64) (model.EpochDecision, error) {
	return l.decision, l.decisionErr
}

func (l *fakeClaimLedger) TotalPledged(context.Context, int64, uint64) (*big.Int, error) {
	return l.total, nil
}

func (l *fakeClaimLedger) UserPledge(_ context.Context, address string, _ int64, _ uint64) (*big.Int, error) {
	pledged, ok := l.pledges[address]
	if !ok {
		return nil, model.ErrNoPledge
	}
	return pledged, nil
}

func (l *fakeClaimLedger) BeginClaim(_ context.Context, _ string, _ uint64, amount *big.Int) (ClaimTx, error) {
	if l.beginErr != nil {
		return nil, l.beginErr
	}
	l.beganAmount = amount
	l.tx = &fakeClaimTx{}
	return l.tx, nil
}

type fakeEpochs struct {
	current uint64
}

func (e *fakeEpochs) CurrentEpoch(context.Context) (uint64, error) {
	return e.current, nil
}

type fakeRewarder struct {
	to     string
	amount *big.Int
	err    error
}

func (r *fakeRewarder) Transfer(_ context.Context, to string, amount *big.Int) error {
	r.to = to
	r.amount = amount
	return r.err
}

func buybackLedger(amount int64) *fakeClaimLedger {
	return &fakeClaimLedger{
		decision: model.EpochDecision{
			Epoch:    5,
			Decision: model.DecisionBuyback,
			Amount:   big.NewInt(amount),
			Pool:     7,
		},
	}
}

func TestClaimPaysFlooredShare(t *testing.T) {
	ledger := buybackLedger(40)
	ledger.total = big.NewInt(100)
	ledger.pledges = map[string]*big.Int{"0xabc": big.NewInt(25)}
	rewarder := &fakeRewarder{}

	c := NewCalculator(ledger, &fakeEpochs{current: 6}, rewarder, nil)
	share, err := c.Claim(context.Background(), "0xABC", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// floor(25 * 40 / 100) = 10
	if share.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("share = %s, want 10", share)
	}
	if rewarder.to != "0xabc" {
		t.Fatalf("transfer to %q, want lowercased address", rewarder.to)
	}
	if rewarder.amount.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("transferred %s, want 10", rewarder.amount)
	}
	if !ledger.tx.committed {
		t.Fatalf("claim never committed")
	}
}

func TestClaimFloorsTowardZero(t *testing.T) {
	ledger := buybackLedger(10)
	ledger.total = big.NewInt(3)
	ledger.pledges = map[string]*big.Int{"0xabc": big.NewInt(1)}

	c := NewCalculator(ledger, &fakeEpochs{current: 6}, &fakeRewarder{}, nil)
	share, err := c.Claim(context.Background(), "0xabc", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// floor(1 * 10 / 3) = 3
	if share.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("share = %s, want 3", share)
	}
}

func TestClaimBurnEpoch(t *testing.T) {
	ledger := &fakeClaimLedger{
		decision: model.EpochDecision{Epoch: 5, Decision: model.DecisionBurn, Amount: big.NewInt(30), Pool: 7},
	}

	c := NewCalculator(ledger, &fakeEpochs{current: 6}, &fakeRewarder{}, nil)
	_, err := c.Claim(context.Background(), "0xabc", 5)
	if !errors.Is(err, model.ErrNoBuyback) {
		t.Fatalf("err = %v, want ErrNoBuyback", err)
	}
}

func TestClaimEpochNotReached(t *testing.T) {
	c := NewCalculator(buybackLedger(40), &fakeEpochs{current: 4}, &fakeRewarder{}, nil)
	_, err := c.Claim(context.Background(), "0xabc", 5)
	if !errors.Is(err, model.ErrEpochNotReached) {
		t.Fatalf("err = %v, want ErrEpochNotReached", err)
	}
}

func TestClaimNotFinalized(t *testing.T) {
	ledger := &fakeClaimLedger{decisionErr: model.ErrNotFinalized}

	c := NewCalculator(ledger, &fakeEpochs{current: 6}, &fakeRewarder{}, nil)
	_, err := c.Claim(context.Background(), "0xabc", 5)
	if !errors.Is(err, model.ErrNotFinalized) {
		t.Fatalf("err = %v, want ErrNotFinalized", err)
	}
}

func TestClaimNoPledge(t *testing.T) {
	ledger := buybackLedger(40)
	ledger.total = big.NewInt(100)
	ledger.pledges = map[string]*big.Int{}

	c := NewCalculator(ledger, &fakeEpochs{current: 6}, &fakeRewarder{}, nil)
	_, err := c.Claim(context.Background(), "0xabc", 5)
	if !errors.Is(err, model.ErrNoPledge) {
		t.Fatalf("err = %v, want ErrNoPledge", err)
	}
}

func TestClaimZeroTotal(t *testing.T) {
	ledger := buybackLedger(40)
	ledger.total = big.NewInt(0)

	c := NewCalculator(ledger, &fakeEpochs{current: 6}, &fakeRewarder{}, nil)
	_, err := c.Claim(context.Background(), "0xabc", 5)
	if !errors.Is(err, model.ErrNothingToClaim) {
		t.Fatalf("err = %v, want ErrNothingToClaim", err)
	}
}

func TestClaimAlreadyClaimed(t *testing.T) {
	ledger := buybackLedger(40)
	ledger.total = big.NewInt(100)
	ledger.pledges = map[string]*big.Int{"0xabc": big.NewInt(25)}
	ledger.beginErr = model.ErrAlreadyClaimed
	rewarder := &fakeRewarder{}

	c := NewCalculator(ledger, &fakeEpochs{current: 6}, rewarder, nil)
	_, err := c.Claim(context.Background(), "0xabc", 5)
	if !errors.Is(err, model.ErrAlreadyClaimed) {
		t.Fatalf("err = %v, want ErrAlreadyClaimed", err)
	}
	if rewarder.amount != nil {
		t.Fatalf("transfer ran despite existing claim")
	}
}

func TestClaimTransferFailureRollsBack(t *testing.T) {
	ledger := buybackLedger(40)
	ledger.total = big.NewInt(100)
	ledger.pledges = map[string]*big.Int{"0xabc": big.NewInt(25)}
	rewarder := &fakeRewarder{err: errors.New("node down")}

	c := NewCalculator(ledger, &fakeEpochs{current: 6}, rewarder, nil)
	if _, err := c.Claim(context.Background(), "0xabc", 5); err == nil {
		t.Fatalf("expected error when transfer fails")
	}

	if ledger.tx.committed {
		t.Fatalf("claim committed despite transfer failure")
	}
	if !ledger.tx.rolledBack {
		t.Fatalf("claim not rolled back")
	}
}
