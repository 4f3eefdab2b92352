package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	billinghandler "notary/internal/billing/handler"
	billingservice "notary/internal/billing/service"
	billingstore "notary/internal/billing/store"
	"notary/internal/billing/treasury"
	"notary/internal/content"
	"notary/internal/content/ipfs"
	httpapi "notary/internal/http"
	jwttoken "notary/internal/jwt_token"
	"notary/internal/notarization/guard"
	notarizationhandler "notary/internal/notarization/handler"
	notarizationservice "notary/internal/notarization/service"
	notarizationstore "notary/internal/notarization/store"
	"notary/internal/platform/config"
	"notary/internal/platform/httpserver"
	"notary/internal/platform/logger"
	"notary/internal/platform/metrics"
	"notary/internal/platform/middleware"
	"notary/internal/platform/postgres"
	platformredis "notary/internal/platform/redis"
	"notary/internal/pricing"
	"notary/internal/registry"
	"notary/internal/stamp"
	id "notary/pkg/domain"
	"notary/pkg/platform/audit/publishers/compliance"
	auditpostgres "notary/pkg/platform/audit/store/postgres"
	"notary/pkg/platform/audit/worker"
	"notary/pkg/secrets"
)

// main wires dependencies and runs the HTTP server and the audit relay until
// SIGINT or SIGTERM. Business logic lives in internal service packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "notary: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".", "/etc/notary")
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if db == nil {
		return errors.New("database.url is required")
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	box, err := secrets.NewBox(cfg.Secrets.KeyEncryptionKey)
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}

	rpc, err := registry.Dial(ctx, cfg.Ledger.RPCEndpoint, cfg.Ledger.DialTimeout, cfg.Ledger.RequestTimeout)
	if err != nil {
		return fmt.Errorf("ledger node: %w", err)
	}
	defer rpc.Close()

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}

	accounts := billingstore.NewPostgres(db)
	auditStore := auditpostgres.New(db)
	publisher := compliance.New(auditStore,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics()),
	)

	vault, err := newTreasury(cfg, accounts, rpc, log)
	if err != nil {
		return err
	}
	quoteOpts := []pricing.ClientOption{
		pricing.WithHTTPClient(&http.Client{Timeout: cfg.Pricing.Timeout}),
		pricing.WithRateLimit(cfg.Pricing.RequestsPerSecond),
		pricing.WithRetries(cfg.Pricing.MaxRetries, 250*time.Millisecond),
		pricing.WithClientLogger(log),
	}
	oracle := pricing.NewOracle(
		pricing.NewTokenPriceClient(cfg.Pricing.TokenPriceURL, cfg.Pricing.TokenID, cfg.Pricing.ReferenceCurrency, cfg.Pricing.TokenPriceAPIKey, quoteOpts...),
		pricing.NewFXRateClient(cfg.Pricing.FXRateURL, cfg.Pricing.ReferenceCurrency, cfg.Pricing.OperatingCurrency, quoteOpts...),
		pricing.WithLogger(log),
		pricing.WithMetrics(m),
	)
	funding := billingservice.NewFundingAgent(accounts, oracle, vault, publisher,
		billingservice.WithFundingLogger(log),
		billingservice.WithFundingMetrics(m),
	)
	ledger := billingservice.NewLedger(accounts, funding, publisher,
		billingservice.WithLogger(log),
		billingservice.WithMetrics(m),
		billingservice.WithAutoTopUpPlan(cfg.Billing.AutoTopUpPlan),
	)
	provisioner := billingservice.NewProvisioner(accounts, func() (string, []byte, error) {
		sub, err := registry.NewSubmitter(box)
		return sub.Address, sub.SealedKey, err
	}, log)

	contract, err := util.Uint160DecodeStringLE(strings.TrimPrefix(cfg.Ledger.ContractHash, "0x"))
	if err != nil {
		return fmt.Errorf("ledger.contract_hash: %w", err)
	}
	reg := registry.New(contract, rpc, registry.NewActorFactory(rpc), box,
		registry.WithLogger(log),
		registry.WithMaxGas(cfg.MaxGas().Shift(8).IntPart()),
		registry.WithWaitTimeout(cfg.Ledger.WaitTimeout),
	)

	addresser := content.NewAddresser(ipfs.New(cfg.IPFS.APIURL, cfg.IPFS.Timeout),
		content.WithLogger(log),
		content.WithMetrics(m),
		content.WithRetry(cfg.IPFS.MaxRetries, 200*time.Millisecond),
	)

	var inflight notarizationservice.Guard = guard.NewMemory(cfg.Redis.GuardTTL)
	if redisClient != nil {
		defer redisClient.Close()
		inflight = guard.NewRedis(redisClient.Client, cfg.Redis.GuardTTL)
	}
	notary := notarizationservice.New(addresser, ledger, reg, notarizationstore.NewPostgres(db), publisher, stamp.New(),
		notarizationservice.WithLogger(log),
		notarizationservice.WithMetrics(m),
		notarizationservice.WithGasCost(cfg.GasCost()),
		notarizationservice.WithFinalizeTimeout(cfg.Ledger.FinalizeTimeout),
		notarizationservice.WithGuard(inflight),
	)

	var validator middleware.JWTValidator
	if cfg.Auth.Required {
		validator = jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience))
	}
	health := map[string]httpapi.HealthCheck{
		"database": db.PingContext,
		"ledger": func(context.Context) error {
			_, err := rpc.GetBlockCount()
			return err
		},
	}
	if redisClient != nil {
		health["redis"] = redisClient.Health
	}
	router := httpapi.NewRouter(httpapi.Options{
		Logger:         log,
		Metrics:        m,
		Gatherer:       prometheus.DefaultGatherer,
		RequestTimeout: cfg.Server.RequestTimeout,
		Authenticate:   middleware.Authenticate(cfg.Auth.Required, validator, log),
		Health:         health,
	},
		notarizationhandler.New(notary, log),
		billinghandler.New(ledger, funding, provisioner, log),
	)
	srv := httpserver.New(cfg.Server.Addr, router, cfg.Server.ReadHeaderTimeout, cfg.Server.RequestTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting notary", "addr", cfg.Server.Addr, "treasury_mode", cfg.Billing.TreasuryMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.Kafka.Brokers...),
			kgo.RequiredAcks(kgo.AllISRAcks()),
		)
		if err != nil {
			return fmt.Errorf("kafka client: %w", err)
		}
		defer producer.Close()
		relay := worker.NewWorker(auditStore, producer, cfg.Kafka.AuditTopic,
			worker.WithBatchSize(cfg.Kafka.BatchSize),
			worker.WithInterval(cfg.Kafka.FlushInterval),
			worker.WithLogger(log),
		)
		g.Go(func() error {
			if err := relay.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		log.Warn("no kafka brokers configured; audit entries stay in the outbox")
	}

	return g.Wait()
}

// newTreasury picks the funding source for top-ups.
func newTreasury(cfg *config.Config, accounts *billingstore.PostgresStore, rpc *rpcclient.Client, log *slog.Logger) (billingservice.Treasury, error) {
	switch cfg.Billing.TreasuryMode {
	case config.TreasuryOnChain:
		acc, err := wallet.NewAccountFromWIF(cfg.Billing.TreasuryWIF)
		if err != nil {
			return nil, fmt.Errorf("billing.treasury_wif: %w", err)
		}
		act, err := actor.NewSimple(rpc, acc)
		if err != nil {
			return nil, fmt.Errorf("treasury actor: %w", err)
		}
		return treasury.NewOnChain(act, cfg.Ledger.WaitTimeout, log), nil
	default:
		treasuryID, err := id.ParseAccountID(cfg.Billing.TreasuryAccountID)
		if err != nil {
			return nil, fmt.Errorf("billing.treasury_account_id: %w", err)
		}
		return treasury.NewBookkeeping(accounts, treasuryID), nil
	}
}
