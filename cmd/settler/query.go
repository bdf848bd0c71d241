package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bribeLedger/internal/model"
)

func runListPools(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	pools, err := a.store.ListPools(ctx)
	if err != nil {
		return err
	}
	for _, pool := range pools {
		total, err := a.store.TotalForPool(ctx, pool.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%d\t%s\t%s\tpooled=%s\tpledged=%s\n", pool.ID, pool.Name, pool.Chain, pool.PooledPledges, total)
	}
	return nil
}

func runListPledges(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	address, _ := cmd.Flags().GetString("address")
	poolID, _ := cmd.Flags().GetInt64("pool")
	if (address == "") == (poolID == 0) {
		return fmt.Errorf("exactly one of --address or --pool is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var pledges []model.ConfirmedPledge
	if address != "" {
		pledges, err = a.store.PledgesByUser(ctx, address)
	} else {
		pledges, err = a.store.PledgesByPool(ctx, poolID)
	}
	if err != nil {
		return err
	}
	for _, pledge := range pledges {
		fmt.Printf("%s\t%s\t%s\tepoch=%d\tamount=%s\n", pledge.Address, pledge.Chain, pledge.PoolName, pledge.Epoch, pledge.Amount)
	}
	return nil
}

func runListDecisions(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	decisions, err := a.store.ListEpochDecisions(ctx)
	if err != nil {
		return err
	}
	for _, d := range decisions {
		fmt.Printf("epoch=%d\t%s\tamount=%s\tpool=%d\n", d.Epoch, d.Decision, d.Amount, d.Pool)
	}
	return nil
}

func runUnstage(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	address, err := requiredString(cmd, "address")
	if err != nil {
		return err
	}
	chainName, err := requiredString(cmd, "chain")
	if err != nil {
		return err
	}
	pool, err := requiredString(cmd, "pool")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.staging.Remove(ctx, address, chainName, pool); err != nil {
		return err
	}
	logger.Info("pledge unstaged", zap.String("address", address), zap.String("chain", chainName), zap.String("pool", pool))
	return nil
}

func runDeregisterPool(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	id, _ := cmd.Flags().GetInt64("id")
	if id == 0 {
		return fmt.Errorf("--id is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	deleted, err := a.registry.Deregister(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		logger.Info("pool not found", zap.Int64("id", id))
		return nil
	}
	logger.Info("pool deregistered", zap.Int64("id", id))
	return nil
}
