// Package main runs the claim payout process: it pays pending
// dividend claims over the payment rail and marks them claimed.
// Deployed as a single instance; concurrent payout runs against the
// same database risk paying a claim twice.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"token-market/internal/payment"
	"token-market/internal/payout"
	pgstore "token-market/internal/storage/postgres"
)

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	paymentEndpoint := flag.String("payment-endpoint", os.Getenv("PAYMENT_ENDPOINT"), "Payment rail HTTP endpoint")
	paymentToken := flag.String("payment-auth-token", os.Getenv("PAYMENT_AUTH_TOKEN"), "Payment rail auth token")
	interval := flag.Duration("interval", 1*time.Minute, "Payout run interval")
	batchSize := flag.Int("batch-size", payout.DefaultBatchSize, "Claims paid per run")
	once := flag.Bool("once", false, "Run a single payout pass and exit")

	flag.Parse()

	logger := log.New(os.Stdout, "[payout] ", log.LstdFlags|log.Lshortfile)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}
	if *paymentEndpoint == "" {
		logger.Fatal("--payment-endpoint is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if err := run(ctx, *postgresDSN, *paymentEndpoint, *paymentToken, *interval, *batchSize, *once, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Payout error: %v", err)
	}
	logger.Println("Shutdown complete")
}

func run(ctx context.Context, postgresDSN, paymentEndpoint, paymentToken string, interval time.Duration, batchSize int, once bool, logger *log.Logger) error {
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	runner := payout.NewRunner(payout.Options{
		Distributions: pgstore.NewDistributionStore(pool),
		Ledger:        pgstore.NewLedger(pool),
		Executor:      payment.NewHTTPClient(paymentEndpoint, paymentToken),
		BatchSize:     batchSize,
		Logger:        logger,
	})

	if once {
		result, err := runner.Run(ctx)
		if err != nil {
			return err
		}
		logger.Printf("Paid %d claims (%d sats), %d errors", result.ClaimsPaid, result.SatsPaid, len(result.Errors))
		return nil
	}

	logger.Printf("Starting payout loop (interval: %v, batch: %d)...", interval, batchSize)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("Payout run failed: %v", err)
			}
		}
	}
}
