package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bribeLedger/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:          "settler",
		Short:        "Pledge reconciliation and epoch settlement",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the reconcile and finalize scheduler",
		RunE:  runDaemon,
	}
	runCmd.Flags().Duration("reconcile-tick", 60*time.Second, "reconcile interval per chain")

	initCmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create database tables",
		RunE:  runInitDB,
	}

	syncCmd := &cobra.Command{
		Use:   "sync-pools",
		Short: "Mirror on-chain pools into the registry",
		RunE:  runSyncPools,
	}
	syncCmd.Flags().String("chain", "", "chain to sync pools from")

	pruneCmd := &cobra.Command{
		Use:   "prune-pools",
		Short: "Deregister pools no longer whitelisted on-chain",
		RunE:  runPrunePools,
	}
	pruneCmd.Flags().String("chain", "", "chain whose contract reports eligibility")

	stageCmd := &cobra.Command{
		Use:   "stage",
		Short: "Stage an announced pledge",
		RunE:  runStage,
	}
	stageCmd.Flags().String("address", "", "pledger address")
	stageCmd.Flags().String("chain", "", "chain the transfer will arrive on")
	stageCmd.Flags().String("pool", "", "pool name the pledge supports")

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation cycle for a chain",
		RunE:  runReconcile,
	}
	reconcileCmd.Flags().String("chain", "", "chain to reconcile")

	finalizeCmd := &cobra.Command{
		Use:   "finalize",
		Short: "Finalize the burn-or-buyback decision for an epoch",
		RunE:  runFinalize,
	}
	finalizeCmd.Flags().Uint64("epoch", 0, "epoch to finalize")

	claimCmd := &cobra.Command{
		Use:   "claim",
		Short: "Pay a pledger's buyback share for an epoch",
		RunE:  runClaim,
	}
	claimCmd.Flags().String("address", "", "claimant address")
	claimCmd.Flags().Uint64("epoch", 0, "epoch to claim")

	poolsCmd := &cobra.Command{
		Use:   "pools",
		Short: "List registered pools with their pledge totals",
		RunE:  runListPools,
	}

	pledgesCmd := &cobra.Command{
		Use:   "pledges",
		Short: "List confirmed pledges by address or pool",
		RunE:  runListPledges,
	}
	pledgesCmd.Flags().String("address", "", "filter by pledger address")
	pledgesCmd.Flags().Int64("pool", 0, "filter by pool id")

	decisionsCmd := &cobra.Command{
		Use:   "decisions",
		Short: "List recorded epoch decisions",
		RunE:  runListDecisions,
	}

	unstageCmd := &cobra.Command{
		Use:   "unstage",
		Short: "Remove a pending pledge from staging",
		RunE:  runUnstage,
	}
	unstageCmd.Flags().String("address", "", "pledger address")
	unstageCmd.Flags().String("chain", "", "chain the pledge was staged for")
	unstageCmd.Flags().String("pool", "", "pool name")

	deregisterCmd := &cobra.Command{
		Use:   "deregister-pool",
		Short: "Remove a pool and its confirmed pledges",
		RunE:  runDeregisterPool,
	}
	deregisterCmd.Flags().Int64("id", 0, "pool id")

	root.AddCommand(
		runCmd, initCmd, syncCmd, pruneCmd, stageCmd, reconcileCmd,
		finalizeCmd, claimCmd, poolsCmd, pledgesCmd, decisionsCmd,
		unstageCmd, deregisterCmd,
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func requiredString(cmd *cobra.Command, name string) (string, error) {
	value, _ := cmd.Flags().GetString(name)
	if value == "" {
		return "", fmt.Errorf("--%s is required", name)
	}
	return value, nil
}
