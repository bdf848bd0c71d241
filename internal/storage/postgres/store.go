package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bribeLedger/internal/model"
)

// Store provides Postgres persistence for pools, pledges, and decisions.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// RegisterPool inserts a pool row, skipping pools already present.
// Returns true if a new row was inserted.
func (s *Store) RegisterPool(ctx context.Context, pool model.Pool) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO pools (id, name, chain, pooled_pledges)
		VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (id) DO NOTHING
	`, pool.ID, pool.Name, pool.Chain, bigString(pool.PooledPledges))
	if err != nil {
		return false, fmt.Errorf("register pool %s: %w", pool.Name, err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetPoolByName returns the pool with the given name, or
// ErrPoolNotRegistered when absent.
func (s *Store) GetPoolByName(ctx context.Context, name string) (model.Pool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, chain, pooled_pledges::text
		FROM pools
		WHERE name = $1
	`, name)
	pool, err := scanPool(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Pool{}, fmt.Errorf("%w: %q", model.ErrPoolNotRegistered, name)
		}
		return model.Pool{}, err
	}
	return pool, nil
}

// IsPoolRegistered reports whether a pool with the given name exists.
func (s *Store) IsPoolRegistered(ctx context.Context, name string) (bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM pools WHERE name = $1`, name).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check pool %s: %w", name, err)
	}
	return true, nil
}

// ListPools returns all registered pools.
func (s *Store) ListPools(ctx context.Context) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, chain, pooled_pledges::text
		FROM pools
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	defer rows.Close()

	pools := make([]model.Pool, 0)
	for rows.Next() {
		pool, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	return pools, rows.Err()
}

// DeregisterPool removes a pool and its confirmed pledges in one transaction.
// Returns false without error when the pool does not exist.
func (s *Store) DeregisterPool(ctx context.Context, id int64) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin deregister: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM pledges WHERE pool = $1`, id); err != nil {
		return false, fmt.Errorf("delete pledges for pool %d: %w", id, err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM pools WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete pool %d: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit deregister: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// StagePledge upserts a pending pledge. Re-staging an unresolved entry
// refreshes created_at, so the latest announcement wins.
func (s *Store) StagePledge(ctx context.Context, pledge model.PendingPledge) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pledge_staging (user_address, chain, pool, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_address, chain, pool)
		DO UPDATE SET created_at = EXCLUDED.created_at
	`, pledge.Address, pledge.Chain, pledge.Pool, pledge.CreatedAt)
	if err != nil {
		return fmt.Errorf("stage pledge: %w", err)
	}
	return nil
}

// ListStagedByChain returns all pending pledges for a chain.
func (s *Store) ListStagedByChain(ctx context.Context, chain string) ([]model.PendingPledge, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_address, chain, pool, created_at
		FROM pledge_staging
		WHERE chain = $1
		ORDER BY created_at
	`, chain)
	if err != nil {
		return nil, fmt.Errorf("list staged: %w", err)
	}
	defer rows.Close()

	pledges := make([]model.PendingPledge, 0)
	for rows.Next() {
		var p model.PendingPledge
		if err := rows.Scan(&p.Address, &p.Chain, &p.Pool, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan staged pledge: %w", err)
		}
		pledges = append(pledges, p)
	}
	return pledges, rows.Err()
}

// RemoveStaged deletes a pending pledge. Removing an absent entry is a no-op.
func (s *Store) RemoveStaged(ctx context.Context, address, chain, pool string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM pledge_staging
		WHERE user_address = $1 AND chain = $2 AND pool = $3
	`, address, chain, pool)
	if err != nil {
		return fmt.Errorf("remove staged: %w", err)
	}
	return nil
}

// LoadCursor returns the reconciliation high-water-mark block for a chain.
func (s *Store) LoadCursor(ctx context.Context, chain string) (uint64, bool, error) {
	var last int64
	err := s.pool.QueryRow(ctx, `SELECT last_block FROM chain_cursor WHERE chain = $1`, chain).Scan(&last)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("load cursor: %w", err)
	}
	return uint64(last), true, nil
}

// ApplyReconcileBatch applies one chain cycle atomically: promoted pledges
// are added to the confirmed ledger and removed from staging, expired
// pledges are evicted, and the chain cursor advances to lastBlock. Either
// the whole batch commits or none of it does.
func (s *Store) ApplyReconcileBatch(
	ctx context.Context,
	chain string,
	promotions []model.ConfirmedPledge,
	evictions []model.PendingPledge,
	lastBlock uint64,
) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reconcile batch: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range promotions {
		// Storage-level atomic add: concurrent increments for the same key
		// serialize on the row instead of losing updates.
		_, err := tx.Exec(ctx, `
			INSERT INTO pledges (address, chain, pool, pool_name, amount, epoch)
			VALUES ($1, $2, $3, $4, $5::numeric, $6)
			ON CONFLICT (address, pool, chain, epoch)
			DO UPDATE SET amount = pledges.amount + EXCLUDED.amount
		`, p.Address, p.Chain, p.Pool, p.PoolName, bigString(p.Amount), int64(p.Epoch))
		if err != nil {
			return fmt.Errorf("confirm pledge %s/%s: %w", p.Address, p.PoolName, err)
		}
		_, err = tx.Exec(ctx, `
			DELETE FROM pledge_staging
			WHERE user_address = $1 AND chain = $2 AND pool = $3
		`, p.Address, p.Chain, p.PoolName)
		if err != nil {
			return fmt.Errorf("unstage pledge %s/%s: %w", p.Address, p.PoolName, err)
		}
	}

	for _, p := range evictions {
		_, err := tx.Exec(ctx, `
			DELETE FROM pledge_staging
			WHERE user_address = $1 AND chain = $2 AND pool = $3
		`, p.Address, p.Chain, p.Pool)
		if err != nil {
			return fmt.Errorf("evict pledge %s/%s: %w", p.Address, p.Pool, err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO chain_cursor (chain, last_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (chain) DO UPDATE
		SET last_block = GREATEST(chain_cursor.last_block, EXCLUDED.last_block), updated_at = now()
	`, chain, int64(lastBlock))
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reconcile batch: %w", err)
	}
	return nil
}

// PledgesByUser returns all confirmed pledges for an address.
func (s *Store) PledgesByUser(ctx context.Context, address string) ([]model.ConfirmedPledge, error) {
	return s.queryPledges(ctx, `
		SELECT address, chain, pool, pool_name, amount::text, epoch
		FROM pledges
		WHERE address = $1
	`, address)
}

// PledgesByPool returns all confirmed pledges for a pool.
func (s *Store) PledgesByPool(ctx context.Context, poolID int64) ([]model.ConfirmedPledge, error) {
	return s.queryPledges(ctx, `
		SELECT address, chain, pool, pool_name, amount::text, epoch
		FROM pledges
		WHERE pool = $1
	`, poolID)
}

// TotalPledged returns the sum of confirmed pledge amounts for (pool, epoch).
func (s *Store) TotalPledged(ctx context.Context, poolID int64, epoch uint64) (*big.Int, error) {
	var total string
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::text
		FROM pledges
		WHERE pool = $1 AND epoch = $2
	`, poolID, int64(epoch)).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("total pledged: %w", err)
	}
	return parseBig(total)
}

// TotalForPool returns the all-epoch pledge total for a pool.
func (s *Store) TotalForPool(ctx context.Context, poolID int64) (*big.Int, error) {
	var total string
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::text
		FROM pledges
		WHERE pool = $1
	`, poolID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("total for pool: %w", err)
	}
	return parseBig(total)
}

// UserPledge returns the confirmed amount for (address, pool, epoch) across
// all chains, or ErrNoPledge when none exists.
func (s *Store) UserPledge(ctx context.Context, address string, poolID int64, epoch uint64) (*big.Int, error) {
	var amount string
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::text
		FROM pledges
		WHERE address = $1 AND pool = $2 AND epoch = $3
	`, address, poolID, int64(epoch)).Scan(&amount)
	if err != nil {
		return nil, fmt.Errorf("user pledge: %w", err)
	}
	value, err := parseBig(amount)
	if err != nil {
		return nil, err
	}
	if value.Sign() == 0 {
		return nil, model.ErrNoPledge
	}
	return value, nil
}

// MostPledgedPool returns the pool with the highest all-epoch pledge total,
// or ErrNoPledge when the ledger is empty.
func (s *Store) MostPledgedPool(ctx context.Context) (model.Pool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT p.id, p.name, p.chain, p.pooled_pledges::text
		FROM pools p
		INNER JOIN (
			SELECT pool, SUM(amount) AS total
			FROM pledges
			GROUP BY pool
		) b ON p.id = b.pool
		ORDER BY b.total DESC
		LIMIT 1
	`)
	pool, err := scanPool(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Pool{}, model.ErrNoPledge
		}
		return model.Pool{}, err
	}
	return pool, nil
}

// GetEpochDecision returns the decision for an epoch, or ErrNotFinalized.
func (s *Store) GetEpochDecision(ctx context.Context, epoch uint64) (model.EpochDecision, error) {
	var (
		d      model.EpochDecision
		ep     int64
		dec    int16
		amount string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT epoch, decision, amount::text, pool
		FROM epoch_decision
		WHERE epoch = $1
	`, int64(epoch)).Scan(&ep, &dec, &amount, &d.Pool)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.EpochDecision{}, model.ErrNotFinalized
		}
		return model.EpochDecision{}, fmt.Errorf("get epoch decision: %w", err)
	}
	d.Epoch = uint64(ep)
	d.Decision = model.Decision(dec)
	d.Amount, err = parseBig(amount)
	if err != nil {
		return model.EpochDecision{}, err
	}
	return d, nil
}

// ListEpochDecisions returns all decisions ordered by epoch.
func (s *Store) ListEpochDecisions(ctx context.Context) ([]model.EpochDecision, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT epoch, decision, amount::text, pool
		FROM epoch_decision
		ORDER BY epoch
	`)
	if err != nil {
		return nil, fmt.Errorf("list epoch decisions: %w", err)
	}
	defer rows.Close()

	decisions := make([]model.EpochDecision, 0)
	for rows.Next() {
		var (
			d      model.EpochDecision
			ep     int64
			dec    int16
			amount string
		)
		if err := rows.Scan(&ep, &dec, &amount, &d.Pool); err != nil {
			return nil, fmt.Errorf("scan epoch decision: %w", err)
		}
		d.Epoch = uint64(ep)
		d.Decision = model.Decision(dec)
		d.Amount, err = parseBig(amount)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

func (s *Store) queryPledges(ctx context.Context, query string, args ...interface{}) ([]model.ConfirmedPledge, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pledges: %w", err)
	}
	defer rows.Close()

	pledges := make([]model.ConfirmedPledge, 0)
	for rows.Next() {
		var (
			p      model.ConfirmedPledge
			amount string
			epoch  int64
		)
		if err := rows.Scan(&p.Address, &p.Chain, &p.Pool, &p.PoolName, &amount, &epoch); err != nil {
			return nil, fmt.Errorf("scan pledge: %w", err)
		}
		p.Amount, err = parseBig(amount)
		if err != nil {
			return nil, err
		}
		p.Epoch = uint64(epoch)
		pledges = append(pledges, p)
	}
	return pledges, rows.Err()
}

func scanPool(row pgx.Row) (model.Pool, error) {
	var (
		pool   model.Pool
		pooled string
	)
	if err := row.Scan(&pool.ID, &pool.Name, &pool.Chain, &pooled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Pool{}, err
		}
		return model.Pool{}, fmt.Errorf("scan pool: %w", err)
	}
	var err error
	pool.PooledPledges, err = parseBig(pooled)
	if err != nil {
		return model.Pool{}, err
	}
	return pool, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("parse numeric %q", s)
	}
	return v, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
