package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/verichain-labs/verification-node/internal/api"
	"github.com/verichain-labs/verification-node/internal/cache"
	"github.com/verichain-labs/verification-node/internal/config"
	"github.com/verichain-labs/verification-node/internal/core/domain"
	"github.com/verichain-labs/verification-node/internal/core/ports"
	"github.com/verichain-labs/verification-node/internal/core/services"
	"github.com/verichain-labs/verification-node/internal/db"
	"github.com/verichain-labs/verification-node/internal/gateways/ethereum"
	"github.com/verichain-labs/verification-node/internal/gateways/oracle"
	"github.com/verichain-labs/verification-node/internal/gateways/solana"
	"github.com/verichain-labs/verification-node/internal/health"
	"github.com/verichain-labs/verification-node/internal/log"
	"github.com/verichain-labs/verification-node/internal/pubsub"
	"github.com/verichain-labs/verification-node/internal/redis"
	"github.com/verichain-labs/verification-node/internal/repositories"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Error(context.Background(), "cannot load config", "err", err)
		os.Exit(1)
	}

	// Context with log
	ctx := log.NewContext(context.Background(), cfg.Log.Level, cfg.Log.Mode, os.Stdout)

	storage, err := db.NewStorage(cfg.Database.URL)
	if err != nil {
		log.Error(ctx, "cannot connect to database", "err", err)
		os.Exit(1)
	}
	defer func() { _ = storage.Close() }()

	rdb, err := redis.Open(ctx, cfg.Cache.RedisURL)
	if err != nil {
		log.Error(ctx, "cannot connect to redis", "err", err)
		os.Exit(1)
	}
	priceCache := cache.NewRedisCache(rdb)
	publisher := pubsub.NewRedis(rdb)

	settings, err := config.SettingsFromConfig(cfg.Chains)
	if err != nil {
		log.Error(ctx, "cannot load chain settings", "err", err)
		os.Exit(1)
	}

	backends, err := buildBackends(ctx, cfg, settings, storage, priceCache, publisher)
	if err != nil {
		log.Error(ctx, "cannot assemble chain backends", "err", err)
		os.Exit(1)
	}
	router := services.NewRouter(backends, domain.Chain(cfg.Router.DefaultChain))

	healthStatus := health.New(storage.Pgx, redis.NewWrapper(rdb))
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: api.NewServer(router, healthStatus).Routes(ctx),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info(ctx, "server started", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "starting http server", "err", err)
		}
	}()

	<-quit
	log.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "shutting down http server", "err", err)
	}
}

// buildBackends instantiates one protocol backend per configured chain
func buildBackends(
	ctx context.Context,
	cfg *config.Configuration,
	settings map[domain.Chain]config.ChainSettings,
	storage *db.Storage,
	priceCache cache.Cache,
	publisher pubsub.Publisher,
) ([]*services.ChainBackend, error) {
	oracleClient := oracle.NewClient(cfg.Oracle.URL, cfg.Oracle.Timeout)

	var backends []*services.ChainBackend
	for _, chain := range domain.AllChains {
		chainCfg, found := settings[chain]
		if !found {
			log.Warn(ctx, "chain not configured, skipping", "chain", chain)
			continue
		}

		ledger, err := openLedger(chain, chainCfg, cfg.HTTPClient)
		if err != nil {
			return nil, fmt.Errorf("opening %s ledger: %w", chain, err)
		}

		authorizer := services.NewStaticAuthorizer(chainCfg.Owner, map[ports.Capability][]string{
			ports.CapabilityOracle:     chainCfg.OracleAccounts,
			ports.CapabilityRelay:      append([]string{chainCfg.ServiceAccount}, chainCfg.RelayAccounts...),
			ports.CapabilityFeeManager: chainCfg.FeeManagerAccounts,
		})

		participants := repositories.NewParticipants(*storage)
		relayer := services.NewRelayer(chain,
			repositories.NewAttestations(*storage),
			participants,
			oracleClient, oracleClient, authorizer, publisher, priceCache,
			services.RelayerConfig{
				Owner:          chainCfg.Owner,
				AssetID:        chainCfg.AssetID,
				NativeDecimals: uint32(chainCfg.NativeDecimals),
			})
		issuer := services.NewIssuer(chain, repositories.NewCertificates(*storage))

		registryCfg, err := registryConfig(cfg, chainCfg)
		if err != nil {
			return nil, fmt.Errorf("chain %s: %w", chain, err)
		}
		registry := services.NewRegistry(chain,
			repositories.NewRequests(*storage),
			repositories.NewActivity(*storage),
			participants,
			relayer, issuer, ledger, authorizer, publisher, registryCfg)

		backends = append(backends, &services.ChainBackend{
			Chain:    chain,
			Registry: registry,
			Relayer:  relayer,
			Issuer:   issuer,
			Ledger:   ledger,
		})
		log.Info(ctx, "chain backend ready", "chain", chain)
	}
	if len(backends) == 0 {
		return nil, errors.New("no chain backends configured")
	}
	return backends, nil
}

func openLedger(chain domain.Chain, chainCfg config.ChainSettings, timeout time.Duration) (ports.LedgerClient, error) {
	switch chain {
	case domain.ChainEthereum:
		return ethereum.Open(chainCfg.RPCURL, chainCfg.TreasuryPrivKey, ethereum.ClientConfig{
			ChainID:            chainCfg.ChainID,
			RPCResponseTimeout: timeout,
		})
	case domain.ChainSolana:
		return solana.NewClient(chainCfg.RPCURL, chainCfg.WalletURL, timeout), nil
	default:
		return nil, domain.ErrUnsupportedChain
	}
}

func registryConfig(cfg *config.Configuration, chainCfg config.ChainSettings) (services.RegistryConfig, error) {
	staticMin, err := parseFee(chainCfg.StaticMinFee)
	if err != nil {
		return services.RegistryConfig{}, fmt.Errorf("static min fee: %w", err)
	}
	staticMax, err := parseFee(chainCfg.StaticMaxFee)
	if err != nil {
		return services.RegistryConfig{}, fmt.Errorf("static max fee: %w", err)
	}
	return services.RegistryConfig{
		ServiceAccount: chainCfg.ServiceAccount,
		Treasury:       chainCfg.Treasury,
		FeeUSDCents:    cfg.Fees.TargetUSDCents,
		MinFeeBPS:      cfg.Fees.MinBPS,
		MaxFeeBPS:      cfg.Fees.MaxBPS,
		StaticMinFee:   staticMin,
		StaticMaxFee:   staticMax,
	}, nil
}

func parseFee(raw string) (*big.Int, error) {
	fee, ok := new(big.Int).SetString(raw, 10)
	if !ok || fee.Sign() < 0 {
		return nil, fmt.Errorf("invalid fee amount %q", raw)
	}
	return fee, nil
}
