package main

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"bribeLedger/internal/chain"
	"bribeLedger/internal/config"
	"bribeLedger/internal/model"
	"bribeLedger/internal/payout"
	"bribeLedger/internal/reconcile"
	"bribeLedger/internal/registry"
	"bribeLedger/internal/settle"
	"bribeLedger/internal/staging"
	"bribeLedger/internal/storage/postgres"
)

// app wires the settlement components from configuration. Clients are
// constructed here and injected; nothing below cmd reaches for globals.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	store   *postgres.Store
	clients map[string]*chain.Client
	games   map[string]*chain.GameReader

	registry   *registry.Registry
	staging    *staging.Staging
	reconciler *reconcile.Reconciler
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	if cfg.PGDSN == "" {
		return nil, fmt.Errorf("pg-dsn is required")
	}
	if len(cfg.Chains) == 0 {
		return nil, fmt.Errorf("at least one chain must be configured")
	}
	if !common.IsHexAddress(cfg.SettlementAddress) {
		return nil, fmt.Errorf("settlement-address is required")
	}

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		clients: make(map[string]*chain.Client, len(cfg.Chains)),
		games:   make(map[string]*chain.GameReader, len(cfg.Chains)),
	}

	settlement := common.HexToAddress(cfg.SettlementAddress)
	sources := make(map[string]reconcile.ChainSource, len(cfg.Chains))

	for name, chainCfg := range cfg.Chains {
		name = strings.ToLower(name)
		if chainCfg.RPCURL == "" {
			a.Close()
			return nil, fmt.Errorf("chain %s: rpc url is required", name)
		}
		client, err := chain.NewClient(ctx, name, chainCfg.RPCURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect %s rpc: %w", name, err)
		}
		a.clients[name] = client

		game := chain.NewGameReader(client, common.HexToAddress(chainCfg.Game))
		a.games[name] = game

		sources[name] = chain.NewSource(client, common.HexToAddress(chainCfg.Token), settlement, game)
	}

	a.registry = registry.New(store, logger)
	a.staging = staging.New(store, a.registry, cfg.ChainNames())
	a.reconciler = reconcile.New(reconcile.Config{
		WindowBlocks: cfg.WindowBlocks,
		StagingTTL:   cfg.StagingTTL,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, store, sources, logger)

	return a, nil
}

func (a *app) Close() {
	for _, client := range a.clients {
		client.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// homeGame returns the game reader on the home chain, where epochs and raid
// data live.
func (a *app) homeGame() (*chain.GameReader, error) {
	game, ok := a.games[strings.ToLower(a.cfg.HomeChain)]
	if !ok {
		return nil, fmt.Errorf("home-chain %q is not a configured chain", a.cfg.HomeChain)
	}
	return game, nil
}

func (a *app) homeClient() (*chain.Client, error) {
	client, ok := a.clients[strings.ToLower(a.cfg.HomeChain)]
	if !ok {
		return nil, fmt.Errorf("home-chain %q is not a configured chain", a.cfg.HomeChain)
	}
	return client, nil
}

// newFinalizer builds the finalizer with its payout executors on the home
// chain.
func (a *app) newFinalizer() (*settle.Finalizer, error) {
	game, err := a.homeGame()
	if err != nil {
		return nil, err
	}
	client, err := a.homeClient()
	if err != nil {
		return nil, err
	}
	sender, err := a.newSender(client)
	if err != nil {
		return nil, err
	}

	homeCfg := a.cfg.Chains[strings.ToLower(a.cfg.HomeChain)]
	token := common.HexToAddress(homeCfg.Token)

	burner := payout.NewBurner(token, common.HexToAddress(config.BurnAddress), sender, a.logger)
	buyback := payout.NewBuybackExecutor(
		payout.NewSwapAPI(a.cfg.SwapAPIURL, a.cfg.SwapAPIKey),
		client,
		sender,
		token,
		common.HexToAddress(a.cfg.RewardToken),
		common.HexToAddress(a.cfg.SettlementAddress),
		a.cfg.Slippage,
		a.logger,
	)

	return settle.NewFinalizer(
		decisionLedger{a.store},
		game,
		payoutActions{burner, buyback},
		a.logger,
	), nil
}

// newCalculator builds the claim calculator with its reward transferer.
func (a *app) newCalculator() (*settle.Calculator, error) {
	game, err := a.homeGame()
	if err != nil {
		return nil, err
	}
	client, err := a.homeClient()
	if err != nil {
		return nil, err
	}
	sender, err := a.newSender(client)
	if err != nil {
		return nil, err
	}

	rewarder := payout.NewRewarder(common.HexToAddress(a.cfg.RewardToken), sender, a.logger)
	return settle.NewCalculator(claimLedger{a.store}, game, rewarder, a.logger), nil
}

func (a *app) newSender(client *chain.Client) (payout.TxSender, error) {
	if !common.IsHexAddress(a.cfg.SenderAddress) {
		return nil, fmt.Errorf("sender-address is required for payout actions")
	}
	return payout.NewNodeSender(client.RPC(), common.HexToAddress(a.cfg.SenderAddress)), nil
}

// payoutActions joins the burn and buyback executors into the finalizer's
// payout surface.
type payoutActions struct {
	*payout.Burner
	*payout.BuybackExecutor
}

// decisionLedger adapts the concrete store transaction to the settle
// interface.
type decisionLedger struct {
	*postgres.Store
}

func (l decisionLedger) BeginEpochDecision(ctx context.Context, d model.EpochDecision) (settle.DecisionTx, error) {
	tx, err := l.Store.BeginEpochDecision(ctx, d)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

type claimLedger struct {
	*postgres.Store
}

func (l claimLedger) BeginClaim(ctx context.Context, address string, epoch uint64, amount *big.Int) (settle.ClaimTx, error) {
	tx, err := l.Store.BeginClaim(ctx, address, epoch, amount)
	if err != nil {
		return nil, err
	}
	return tx, nil
}
