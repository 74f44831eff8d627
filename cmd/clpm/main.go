package main

import (
	"context"
	"errors"
	"math"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/clpm/internal/config"
	"github.com/elys-network/clpm/internal/datafetcher"
	"github.com/elys-network/clpm/internal/logger"
	"github.com/elys-network/clpm/internal/manager"
	"github.com/elys-network/clpm/internal/metrics"
	"github.com/elys-network/clpm/internal/oracle"
	"github.com/elys-network/clpm/internal/reporter"
	"github.com/elys-network/clpm/internal/simulations"
	"github.com/elys-network/clpm/internal/state"
	"github.com/elys-network/clpm/internal/tickmath"
	"github.com/elys-network/clpm/internal/types"
	"github.com/elys-network/clpm/internal/utils"
	"github.com/elys-network/clpm/internal/venue"
	"github.com/elys-network/clpm/internal/wallet"
	"github.com/elys-network/clpm/internal/web"
)

const (
	paperQuoteDecimals = 8
	paperQuoteRefresh  = time.Minute
	shutdownTimeout    = 15 * time.Second
)

// minApproval is the allowance below which the position manager is re-approved.
var minApproval = new(big.Int).Lsh(big.NewInt(1), 128)

// runtimeDeps are the venue-side dependencies that differ between live and paper mode.
type runtimeDeps struct {
	gateway venue.Gateway
	custody venue.Custody
	source  oracle.Source
	caller  common.Address // Address the keeper compounds as
	paper   *simulations.Venue
	cleanup func()
}

// main is the entry point for the position manager.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := logger.Configure(logger.Options{
		Level:  config.LogLevel,
		Format: config.LogFormat,
		File:   os.Getenv("LOG_FILE"),
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to configure logger")
	}
	log.Info().Str("mode", string(config.RunMode)).Msg("Position manager starting...")

	strategy, err := config.LoadStrategy(os.Getenv("STRATEGY_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load strategy")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer store.Close()

	collectors := metrics.New("clpm")

	// --- 2. Venue and Oracle (with Safety Switch) ---
	var deps runtimeDeps
	if config.RunMode == config.ModeLive {
		log.Warn().Msg("Initializing in LIVE mode. Real transactions will be broadcast.")
		deps, err = liveDeps(ctx)
	} else {
		log.Info().Float64("price", config.PaperPrice).Msg("Initializing in PAPER mode against the simulated venue.")
		deps, err = paperDeps(ctx)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize venue")
	}
	defer deps.cleanup()

	if deps.paper != nil {
		if err := clearPaperPosition(ctx, store); err != nil {
			log.Fatal().Err(err).Msg("Failed to clear persisted paper position")
		}
	}

	priceOracle, err := oracle.NewGateway(deps.source, oracle.Config{StalenessBound: strategy.OracleStaleness})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize oracle gateway")
	}

	// --- 3. Manager and Keeper ---
	mgr, err := manager.NewManager(ctx, manager.Config{
		Gateway:      deps.gateway,
		Custody:      deps.custody,
		Oracle:       priceOracle,
		Store:        store,
		Observer:     collectors,
		Owner:        config.OwnerAddress,
		RangePercent: strategy.RangePercent,
		DecimalsA:    config.TokenADecimals,
		DecimalsB:    config.TokenBDecimals,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create position manager")
	}
	snap := mgr.Snapshot()
	log.Info().
		Str("state", string(snap.State)).
		Uint64("positionID", uint64(snap.Position.ID)).
		Float64("rangePercent", snap.Range.RangePercent).
		Msg("Position manager ready")

	if deps.paper != nil {
		seedPaperPosition(ctx, mgr, deps.paper)
	}

	keeper := manager.NewKeeper(mgr, deps.caller, store)

	rep, err := reporter.NewReporter(store, strategy.TargetAnnualFeesUSD, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create reporter")
	}

	// --- 4. Web Server ---
	webServer, err := web.NewWebServer(web.Config{
		Port:        config.WebPort,
		Manager:     mgr,
		Store:       store,
		Reports:     rep,
		ReportWeeks: strategy.ReportWeeks,
		Advisory:    advisoryFunc(strategy, mgr),
		Compounder:  keeper,
		Metrics:     collectors.Handler(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create web server")
	}
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting web API")
		if err := webServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Web server failed")
			stop()
		}
	}()

	// --- 5. Keeper Loop ---
	log.Info().Str("interval", strategy.KeeperInterval.String()).Msg("Starting keeper loop")
	keeper.RunLoop(ctx, strategy.KeeperInterval)

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Web server shutdown failed")
	}
}

func openStore(ctx context.Context) (*state.Store, error) {
	db := config.Database
	if db.Driver == config.DriverSQLite {
		log.Info().Str("path", db.SQLitePath).Msg("Opening SQLite state store")
		return state.OpenSQLite(ctx, db.SQLitePath)
	}
	log.Info().Str("host", db.Host).Int("port", db.Port).Str("dbname", db.Name).Msg("Opening Postgres state store")
	return state.OpenPostgres(ctx, state.DBConfig{
		Host:     db.Host,
		Port:     db.Port,
		User:     db.User,
		Password: db.Password,
		DBName:   db.Name,
		SSLMode:  db.SSLMode,
	})
}

func liveDeps(ctx context.Context) (runtimeDeps, error) {
	spacing, err := config.TickSpacingForFeeTier(config.FeeTier)
	if err != nil {
		return runtimeDeps{}, err
	}

	client, err := ethclient.DialContext(ctx, config.NodeRPC)
	if err != nil {
		return runtimeDeps{}, err
	}
	log.Info().Str("endpoint", config.NodeRPC).Msg("RPC connected")

	signer, err := wallet.NewSigningClient(client, wallet.Config{
		PrivateKeyHex:   config.ManagerPrivateKey,
		ChainID:         config.ChainID,
		DefaultGasLimit: config.DefaultGasLimit,
		GasPriceBuffer:  0.10,
		GasLimitBuffer:  0.20,
		ReceiptTimeout:  3 * time.Minute,
		PollInterval:    2 * time.Second,
	})
	if err != nil {
		client.Close()
		return runtimeDeps{}, err
	}

	uni, err := venue.NewUniswapV3(signer, venue.UniswapV3Config{
		PositionManager: config.PositionManagerAddress,
		Pool:            config.PoolAddress,
		TokenA:          config.TokenAAddress,
		TokenB:          config.TokenBAddress,
		FeeTier:         config.FeeTier,
		TickSpacing:     spacing,
		DeadlineWindow:  10 * time.Minute,
	})
	if err != nil {
		client.Close()
		return runtimeDeps{}, err
	}
	if err := uni.EnsureApprovals(ctx, minApproval); err != nil {
		client.Close()
		return runtimeDeps{}, err
	}

	feed, err := oracle.NewChainlinkSource(client, config.OracleFeedAddress)
	if err != nil {
		client.Close()
		return runtimeDeps{}, err
	}

	return runtimeDeps{
		gateway: uni,
		custody: uni,
		source:  feed,
		caller:  signer.Address(),
		cleanup: client.Close,
	}, nil
}

// paperDeps builds the simulated venue at PAPER_PRICE. Every minute the quote is re-stamped so
// the oracle gateway keeps accepting it, and the configured paper fees accrue.
func paperDeps(ctx context.Context) (runtimeDeps, error) {
	spacing, err := config.TickSpacingForFeeTier(config.FeeTier)
	if err != nil {
		return runtimeDeps{}, err
	}

	rawPrice := config.PaperPrice * math.Pow(10, float64(config.TokenBDecimals-config.TokenADecimals))
	tick, err := tickmath.PriceToTick(rawPrice)
	if err != nil {
		return runtimeDeps{}, err
	}

	custody := common.BytesToAddress(crypto.Keccak256([]byte("clpm/paper/custody")))
	sim := simulations.NewVenue(spacing, tick, custody)

	value, err := utils.Float64ToSDKInt(config.PaperPrice, paperQuoteDecimals)
	if err != nil {
		return runtimeDeps{}, err
	}
	quote := func() types.PriceQuote {
		return types.PriceQuote{Value: value, Decimals: paperQuoteDecimals, ObservedAt: time.Now()}
	}
	q := quote()
	source := simulations.NewPriceSource(q.Value, q.Decimals, q.ObservedAt)

	feesA := sdkmath.NewIntFromUint64(config.PaperFeesPerMinuteA)
	feesB := sdkmath.NewIntFromUint64(config.PaperFeesPerMinuteB)
	accrue := feesA.IsPositive() || feesB.IsPositive()

	refreshCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(paperQuoteRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-refreshCtx.Done():
				return
			case <-ticker.C:
				source.Set(quote())
				if accrue {
					sim.AccrueAll(feesA, feesB)
				}
			}
		}
	}()

	log.Info().
		Int32("tick", tick).
		Int32("tickSpacing", spacing).
		Str("custody", custody.Hex()).
		Msg("Paper venue ready")

	return runtimeDeps{
		gateway: sim,
		custody: sim,
		source:  source,
		caller:  custody,
		paper:   sim,
		cleanup: cancel,
	}, nil
}

// clearPaperPosition forgets a position id persisted by a previous paper run. The paper venue
// starts empty on every run, so that id cannot be restored. The range percent is kept.
func clearPaperPosition(ctx context.Context, store *state.Store) error {
	saved, found, err := store.LoadManagerState(ctx)
	if err != nil || !found || saved.PositionID == types.NoPosition {
		return err
	}
	log.Warn().Uint64("positionID", uint64(saved.PositionID)).Msg("Dropping position from a previous paper run")
	saved.PositionID = types.NoPosition
	saved.TickLower, saved.TickUpper = 0, 0
	saved.Closing = nil
	saved.UpdatedAt = time.Now()
	return store.SaveManagerState(ctx, saved)
}

// seedPaperPosition credits PAPER_SEED_A/B to the paper custody and deploys them as a position.
func seedPaperPosition(ctx context.Context, mgr *manager.Manager, sim *simulations.Venue) {
	seedA := sdkmath.NewIntFromUint64(config.PaperSeedA)
	seedB := sdkmath.NewIntFromUint64(config.PaperSeedB)
	if seedA.IsZero() && seedB.IsZero() {
		return
	}
	sim.Fund(sim.Address(), types.AssetA, seedA)
	sim.Fund(sim.Address(), types.AssetB, seedB)

	res, err := mgr.AddLiquidityFromHoldings(ctx, config.OwnerAddress)
	if err != nil {
		log.Error().Err(err).Msg("Failed to deploy paper seed")
		return
	}
	log.Info().
		Uint64("positionID", uint64(res.PositionID)).
		Int32("tickLower", res.TickLower).
		Int32("tickUpper", res.TickUpper).
		Msg("Paper position opened from seed")
}

// advisoryFunc returns nil when the advisory is disabled, which leaves /api/advisory unrouted.
func advisoryFunc(strategy config.Strategy, mgr *manager.Manager) web.AdvisoryFunc {
	adv := strategy.Advisory
	if !adv.Enabled {
		return nil
	}
	pair := adv.PairAddress
	if pair == "" && config.PoolAddress != (common.Address{}) {
		pair = config.PoolAddress.Hex()
	}
	if pair == "" {
		log.Warn().Msg("Advisory enabled without a pair address, disabling it")
		return nil
	}

	client := datafetcher.NewClient(datafetcher.ClientConfig{
		CoinGeckoBaseURL:   config.CoinGeckoBaseURL,
		CoinGeckoAPIKey:    config.CoinGeckoAPIKey,
		DexScreenerBaseURL: config.DexScreenerBaseURL,
	})

	return func(ctx context.Context) (reporter.Advisory, error) {
		return reporter.BuildAdvisory(ctx, client, reporter.AdvisoryRequest{
			ChainID:              adv.ChainID,
			PairAddress:          pair,
			CoinID:               adv.CoinGeckoID,
			FeeTier:              config.FeeTier,
			RangePercent:         mgr.RangeConfig().RangePercent,
			ActiveLiquidityShare: adv.ActiveLiquidityShare,
			TargetAnnualFeesUSD:  strategy.TargetAnnualFeesUSD,
			CapitalUSD:           adv.CapitalUSD,
			VolatilityDays:       adv.VolatilityDays,
			HorizonDays:          adv.HorizonDays,
			ZScore:               adv.ZScore,
		}, time.Now())
	}
}
