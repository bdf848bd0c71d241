package postgres

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS pools (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		chain TEXT NOT NULL,
		pooled_pledges NUMERIC(78,0) NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS pledges (
		address TEXT NOT NULL,
		chain TEXT NOT NULL,
		pool BIGINT NOT NULL REFERENCES pools(id),
		pool_name TEXT NOT NULL,
		amount NUMERIC(78,0) NOT NULL,
		epoch BIGINT NOT NULL,
		PRIMARY KEY (address, pool, chain, epoch)
	)`,
	`CREATE TABLE IF NOT EXISTS epoch_decision (
		epoch BIGINT PRIMARY KEY,
		decision SMALLINT NOT NULL CHECK (decision IN (0, 1)),
		amount NUMERIC(78,0) NOT NULL,
		pool BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pledge_staging (
		id BIGSERIAL PRIMARY KEY,
		user_address TEXT NOT NULL,
		chain TEXT NOT NULL,
		pool TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_address, chain, pool)
	)`,
	`CREATE TABLE IF NOT EXISTS chain_cursor (
		chain TEXT PRIMARY KEY,
		last_block BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS claims (
		address TEXT NOT NULL,
		epoch BIGINT NOT NULL,
		amount NUMERIC(78,0) NOT NULL,
		claimed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (address, epoch)
	)`,
}

// InitSchema creates all tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
