// Package main runs the token market service:
// - HTTP API: pricing previews, treasury purchases, exchange orders,
//   matching, irrigation, reconciliation
// - Match sweeper (scheduled): periodic bounded matching per token
// - Reconcile loop (scheduled + chain-event driven): ledger vs chain
//
// Claim payout runs as a separate process (cmd/payout); the server
// only records payment obligations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"token-market/internal/api"
	"token-market/internal/chain"
	"token-market/internal/dividend"
	"token-market/internal/matching"
	"token-market/internal/observability"
	"token-market/internal/pricing"
	"token-market/internal/reconcile"
	"token-market/internal/storage"
	chstore "token-market/internal/storage/clickhouse"
	"token-market/internal/storage/memory"
	"token-market/internal/storage/migrations"
	pgstore "token-market/internal/storage/postgres"
)

// Server holds all components of the market service.
type Server struct {
	httpAddr          string
	metricsAddr       string
	matchInterval     time.Duration
	reconcileInterval time.Duration
	maxMatches        int

	stores     *marketStores
	engine     *matching.Engine
	reconciler *reconcile.Reconciler
	listener   *chain.TreasuryListener
	logger     *log.Logger
}

// marketStores holds all storage implementations.
type marketStores struct {
	tokens        storage.TokenStore
	holders       storage.HolderStore
	orders        storage.OrderStore
	trades        storage.TradeStore
	distributions storage.DistributionStore
	ticks         storage.TickStore
	ledger        storage.Ledger
}

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	rpcEndpoint := flag.String("chain-rpc-endpoint", os.Getenv("CHAIN_RPC_ENDPOINT"), "Chain oracle RPC HTTP endpoint")
	wsEndpoint := flag.String("chain-ws-endpoint", os.Getenv("CHAIN_WS_ENDPOINT"), "Chain WebSocket endpoint for treasury updates (optional)")
	httpAddr := flag.String("http-addr", ":8080", "API HTTP address")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	matchInterval := flag.Duration("match-interval", 30*time.Second, "Batch matching sweep interval")
	reconcileInterval := flag.Duration("reconcile-interval", 10*time.Minute, "Treasury reconciliation interval")
	maxMatches := flag.Int("max-matches", api.DefaultMaxMatches, "Per-run matching budget")
	priceTTL := flag.Duration("price-ttl", 5*time.Second, "Treasury price cache TTL")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *rpcEndpoint == "" {
		logger.Fatal("--chain-rpc-endpoint is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	oracle := chain.NewHTTPClient(*rpcEndpoint)
	priceCache := pricing.NewPriceCache(*priceTTL)

	engine := matching.NewEngine(matching.EngineOptions{
		Ledger: stores.ledger,
		Orders: stores.orders,
		Ticks:  stores.ticks,
		Cache:  priceCache,
		Logger: log.New(os.Stdout, "[matching] ", log.LstdFlags),
	})
	distributor := dividend.NewDistributor(dividend.Options{
		Tokens: stores.tokens,
		Ledger: stores.ledger,
		Logger: log.New(os.Stdout, "[dividend] ", log.LstdFlags),
	})
	reconciler := reconcile.NewReconciler(reconcile.Options{
		Tokens:  stores.tokens,
		Holders: stores.holders,
		Oracle:  oracle,
		Logger:  log.New(os.Stdout, "[reconcile] ", log.LstdFlags),
	})

	server := &Server{
		httpAddr:          *httpAddr,
		metricsAddr:       *metricsAddr,
		matchInterval:     *matchInterval,
		reconcileInterval: *reconcileInterval,
		maxMatches:        *maxMatches,
		stores:            stores,
		engine:            engine,
		reconciler:        reconciler,
		logger:            logger,
	}

	if *wsEndpoint != "" {
		addresses, err := treasuryAddresses(ctx, stores.tokens)
		if err != nil {
			logger.Fatalf("Failed to load treasury addresses: %v", err)
		}
		if len(addresses) > 0 {
			listener, err := chain.NewTreasuryListener(ctx, *wsEndpoint, addresses, nil,
				log.New(os.Stdout, "[chain-ws] ", log.LstdFlags))
			if err != nil {
				logger.Fatalf("Failed to connect treasury listener: %v", err)
			}
			defer listener.Close()
			server.listener = listener
		} else {
			logger.Println("No token carries a treasury address, skipping chain listener")
		}
	}

	apiServer := api.NewServer(api.Options{
		Tokens:        stores.tokens,
		Holders:       stores.holders,
		Orders:        stores.orders,
		Trades:        stores.trades,
		Distributions: stores.distributions,
		Ticks:         stores.ticks,
		Ledger:        stores.ledger,
		Engine:        engine,
		Distributor:   distributor,
		Reconciler:    reconciler,
		PriceCache:    priceCache,
		MaxMatches:    *maxMatches,
		Logger:        log.New(os.Stdout, "[api] ", log.LstdFlags),
	})

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go server.startMetricsServer()

	err = server.Run(ctx, apiServer)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// treasuryAddresses collects the on-chain treasury addresses to watch.
func treasuryAddresses(ctx context.Context, tokens storage.TokenStore) ([]string, error) {
	all, err := tokens.List(ctx)
	if err != nil {
		return nil, err
	}
	var addresses []string
	for _, t := range all {
		if t.TreasuryAddress != "" {
			addresses = append(addresses, t.TreasuryAddress)
		}
	}
	return addresses, nil
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*marketStores, func(), error) {
	if useMemory {
		core := memory.NewStore()
		stores := &marketStores{
			tokens:        memory.NewTokenStore(core),
			holders:       memory.NewHolderStore(core),
			orders:        memory.NewOrderStore(core),
			trades:        memory.NewTradeStore(core),
			distributions: memory.NewDistributionStore(core),
			ticks:         memory.NewTickStore(),
			ledger:        memory.NewLedger(core),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL: relational source of truth
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	// ClickHouse: trade tick timeseries
	chConn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := migrations.RunClickHouseMigrations(ctx, chConn); err != nil {
		chConn.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}

	stores := &marketStores{
		tokens:        pgstore.NewTokenStore(pool),
		holders:       pgstore.NewHolderStore(pool),
		orders:        pgstore.NewOrderStore(pool),
		trades:        pgstore.NewTradeStore(pool),
		distributions: pgstore.NewDistributionStore(pool),
		ticks:         chstore.NewTickStore(chConn),
		ledger:        pgstore.NewLedger(pool),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// Run starts the API server and the background loops.
func (s *Server) Run(ctx context.Context, apiServer *api.Server) error {
	s.logger.Println("Starting token market server...")

	errCh := make(chan error, 3)

	httpServer := &http.Server{
		Addr:    s.httpAddr,
		Handler: apiServer.Router(),
	}
	go func() {
		s.logger.Printf("API listening on %s", s.httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	go func() {
		if err := s.runMatchSweeper(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("match sweeper: %w", err)
		}
	}()

	go func() {
		if err := s.runReconcileLoop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("reconcile loop: %w", err)
		}
	}()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		s.logger.Printf("HTTP shutdown error: %v", shutdownErr)
	}
	return err
}

// runMatchSweeper periodically runs one bounded matching pass per
// token. The sweep and the synchronous post-order pass call the same
// idempotent engine, so overlap is harmless.
func (s *Server) runMatchSweeper(ctx context.Context) error {
	s.logger.Printf("Starting match sweeper (interval: %v)...", s.matchInterval)

	ticker := time.NewTicker(s.matchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Server) sweepOnce(ctx context.Context) {
	tokens, err := s.stores.tokens.List(ctx)
	if err != nil {
		s.logger.Printf("Match sweep: list tokens: %v", err)
		return
	}
	for _, tok := range tokens {
		start := time.Now()
		result, err := s.engine.Run(ctx, tok.TokenID, s.maxMatches)
		if err != nil {
			s.logger.Printf("Match sweep %s: %v", tok.TokenID, err)
			observability.RecordMatchingRun("error", time.Since(start).Seconds(), 0)
			continue
		}
		observability.RecordMatchingRun("success", time.Since(start).Seconds(), len(result.Errors))
		if len(result.TradesExecuted) > 0 {
			var volume int64
			for _, tr := range result.TradesExecuted {
				volume += tr.TotalSats
			}
			observability.RecordTrades(len(result.TradesExecuted), volume)
			s.logger.Printf("Match sweep %s: %d trades", tok.TokenID, len(result.TradesExecuted))
		}
	}
}

// runReconcileLoop reconciles every token on a schedule, and
// immediately when the chain listener reports treasury movement.
func (s *Server) runReconcileLoop(ctx context.Context) error {
	s.logger.Printf("Starting reconcile loop (interval: %v)...", s.reconcileInterval)

	var updates <-chan chain.BalanceUpdate
	if s.listener != nil {
		updates = s.listener.Updates()
	}

	ticker := time.NewTicker(s.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.reconcileAll(ctx)
		case update, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			s.logger.Printf("Treasury movement on %s (tx %s), reconciling", update.Address, update.TxID)
			s.reconcileAll(ctx)
		}
	}
}

func (s *Server) reconcileAll(ctx context.Context) {
	tokens, err := s.stores.tokens.List(ctx)
	if err != nil {
		s.logger.Printf("Reconcile: list tokens: %v", err)
		return
	}
	for _, tok := range tokens {
		start := time.Now()
		report, err := s.reconciler.Reconcile(ctx, tok.TokenID)
		if err != nil {
			s.logger.Printf("Reconcile %s: %v", tok.TokenID, err)
			observability.RecordReconcileRun("error", time.Since(start).Seconds(), 0)
			continue
		}
		result := "in_sync"
		if !report.InSync {
			result = "out_of_sync"
		}
		observability.RecordReconcileRun(result, time.Since(start).Seconds(), len(report.Discrepancies))
	}
}

// startMetricsServer serves health and Prometheus metrics.
func (s *Server) startMetricsServer() {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	s.logger.Printf("Metrics listening on %s", s.metricsAddr)
	if err := http.ListenAndServe(s.metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Printf("Metrics server error: %v", err)
	}
}
