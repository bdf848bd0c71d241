package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bribeLedger/internal/model"
)

func runInitDB(cmd *cobra.Command, _ []string) error {
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

	if err := a.store.InitSchema(ctx); err != nil {
		return err
	}
	logger.Info("schema ready")
	return nil
}

func runSyncPools(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	chainName, err := requiredString(cmd, "chain")
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

	game, ok := a.games[chainName]
	if !ok {
		return fmt.Errorf("%w: %q", model.ErrUnknownChain, chainName)
	}
	return a.registry.Sync(ctx, chainName, game)
}

func runPrunePools(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	chainName, err := requiredString(cmd, "chain")
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

	game, ok := a.games[chainName]
	if !ok {
		return fmt.Errorf("%w: %q", model.ErrUnknownChain, chainName)
	}

	removed, err := a.registry.DeregisterBlacklisted(ctx, game)
	if err != nil {
		return err
	}
	logger.Info("prune complete", zap.Int("removed", removed))
	return nil
}

func runStage(cmd *cobra.Command, _ []string) error {
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

	if err := a.staging.Stage(ctx, address, chainName, pool, time.Now()); err != nil {
		return err
	}
	logger.Info("pledge staged", zap.String("address", address), zap.String("chain", chainName), zap.String("pool", pool))
	return nil
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	chainName, err := requiredString(cmd, "chain")
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

	return a.reconciler.RunChain(ctx, chainName)
}

func runFinalize(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	epoch, _ := cmd.Flags().GetUint64("epoch")
	if epoch == 0 {
		return fmt.Errorf("--epoch is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	finalizer, err := a.newFinalizer()
	if err != nil {
		return err
	}

	decision, err := finalizer.Finalize(ctx, epoch)
	if err != nil {
		if errors.Is(err, model.ErrDecisionExists) {
			logger.Info("epoch already finalized", zap.Uint64("epoch", epoch))
			return nil
		}
		return err
	}
	logger.Info("finalized",
		zap.Uint64("epoch", decision.Epoch),
		zap.String("decision", decision.Decision.String()),
		zap.String("amount", decision.Amount.String()),
	)
	return nil
}

func runClaim(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	address, err := requiredString(cmd, "address")
	if err != nil {
		return err
	}
	epoch, _ := cmd.Flags().GetUint64("epoch")
	if epoch == 0 {
		return fmt.Errorf("--epoch is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	calculator, err := a.newCalculator()
	if err != nil {
		return err
	}

	share, err := calculator.Claim(ctx, address, epoch)
	if err != nil {
		return err
	}
	logger.Info("claimed", zap.String("address", address), zap.Uint64("epoch", epoch), zap.String("share", share.String()))
	return nil
}
