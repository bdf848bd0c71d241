package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bribeLedger/internal/model"
)

// runDaemon drives the scheduler: one reconcile job per configured chain on
// the reconcile tick, plus an epoch watcher on the home chain that finalizes
// each epoch once its successor begins.
func runDaemon(cmd *cobra.Command, _ []string) error {
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

	scheduler := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
		cron.Recover(cron.DiscardLogger),
	))

	tick := fmt.Sprintf("@every %s", cfg.ReconcileTick)
	for _, name := range cfg.ChainNames() {
		name := name
		_, err := scheduler.AddFunc(tick, func() {
			if err := a.reconciler.RunChain(ctx, name); err != nil {
				logger.Error("reconcile failed", zap.String("chain", name), zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("schedule reconcile for %s: %w", name, err)
		}
	}

	watcher, err := newEpochWatcher(a, logger)
	if err != nil {
		return err
	}
	if _, err := scheduler.AddFunc(tick, func() { watcher.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule epoch watcher: %w", err)
	}

	logger.Info("scheduler started",
		zap.Strings("chains", cfg.ChainNames()),
		zap.Duration("tick", cfg.ReconcileTick),
		zap.String("home_chain", cfg.HomeChain),
	)

	scheduler.Start()
	<-ctx.Done()
	logger.Info("shutting down")

	// Let in-flight jobs drain before closing clients.
	<-scheduler.Stop().Done()
	return nil
}

// epochWatcher polls the home chain's current epoch and finalizes the
// previous one when it advances. A decision already recorded by another
// operator is not an error.
type epochWatcher struct {
	app    *app
	logger *zap.Logger

	mu       sync.Mutex
	lastSeen uint64
}

func newEpochWatcher(a *app, logger *zap.Logger) (*epochWatcher, error) {
	if _, err := a.homeGame(); err != nil {
		return nil, err
	}
	return &epochWatcher{app: a, logger: logger}, nil
}

func (w *epochWatcher) tick(ctx context.Context) {
	game, err := w.app.homeGame()
	if err != nil {
		w.logger.Error("epoch watcher", zap.Error(err))
		return
	}

	current, err := game.CurrentEpoch(ctx)
	if err != nil {
		w.logger.Warn("epoch fetch failed", zap.Error(err))
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.lastSeen == 0 {
		w.lastSeen = current
		return
	}
	if current <= w.lastSeen {
		return
	}

	// Finalize every epoch that closed since the last observation. Each
	// finalization is write-once, so a crash between epochs only delays the
	// retry to the next tick.
	for epoch := w.lastSeen; epoch < current; epoch++ {
		if err := w.finalize(ctx, epoch); err != nil {
			w.logger.Error("finalize failed", zap.Uint64("epoch", epoch), zap.Error(err))
			return
		}
		w.lastSeen = epoch + 1
	}
}

func (w *epochWatcher) finalize(ctx context.Context, epoch uint64) error {
	finalizer, err := w.app.newFinalizer()
	if err != nil {
		return err
	}

	decision, err := finalizer.Finalize(ctx, epoch)
	if err != nil {
		if errors.Is(err, model.ErrDecisionExists) {
			w.logger.Info("epoch already finalized", zap.Uint64("epoch", epoch))
			return nil
		}
		return err
	}

	w.logger.Info("epoch settled",
		zap.Uint64("epoch", decision.Epoch),
		zap.String("decision", decision.Decision.String()),
		zap.String("amount", decision.Amount.String()),
	)
	return nil
}
