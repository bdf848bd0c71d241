package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"

	"bribeLedger/internal/model"
)

// DecisionTx holds an open transaction that has claimed an epoch's decision
// row. The row becomes visible only on Commit; a concurrent finalize for the
// same epoch blocks on the primary key until then and observes a conflict.
type DecisionTx struct {
	tx    pgx.Tx
	epoch uint64
}

// BeginEpochDecision inserts the decision row for an epoch inside a new
// transaction. The epoch_decision primary key is the uniqueness guard: a
// second finalize gets ErrDecisionExists, never a silent overwrite.
func (s *Store) BeginEpochDecision(ctx context.Context, d model.EpochDecision) (*DecisionTx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin epoch decision: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO epoch_decision (epoch, decision, amount, pool)
		VALUES ($1, $2, $3::numeric, $4)
	`, int64(d.Epoch), int16(d.Decision), bigString(d.Amount), d.Pool)
	if err != nil {
		tx.Rollback(ctx)
		if isUniqueViolation(err) {
			return nil, model.ErrDecisionExists
		}
		return nil, fmt.Errorf("insert epoch decision: %w", err)
	}

	return &DecisionTx{tx: tx, epoch: d.Epoch}, nil
}

// SetAmount updates the uncommitted decision amount. Used by the buyback
// path, where the recorded amount is the realized swap output.
func (t *DecisionTx) SetAmount(ctx context.Context, amount *big.Int) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE epoch_decision SET amount = $1::numeric WHERE epoch = $2
	`, bigString(amount), int64(t.epoch))
	if err != nil {
		return fmt.Errorf("set decision amount: %w", err)
	}
	return nil
}

func (t *DecisionTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *DecisionTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// ClaimTx holds an open transaction that has claimed the (address, epoch)
// marker row. The reward transfer happens between Begin and Commit, so a
// failed payout leaves no marker behind.
type ClaimTx struct {
	tx pgx.Tx
}

// BeginClaim inserts the claim marker inside a new transaction. A second
// claim for the same (address, epoch) gets ErrAlreadyClaimed.
func (s *Store) BeginClaim(ctx context.Context, address string, epoch uint64, amount *big.Int) (*ClaimTx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO claims (address, epoch, amount)
		VALUES ($1, $2, $3::numeric)
	`, address, int64(epoch), bigString(amount))
	if err != nil {
		tx.Rollback(ctx)
		if isUniqueViolation(err) {
			return nil, model.ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("insert claim: %w", err)
	}

	return &ClaimTx{tx: tx}, nil
}

func (t *ClaimTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *ClaimTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}
