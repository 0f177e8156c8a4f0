package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"token-market/internal/domain"
	"token-market/internal/storage/migrations"
)

// setupTestDB creates a PostgreSQL container for testing and applies
// the embedded migrations. Returns a cleanup function that must be
// called after tests complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	err = migrations.RunPostgresMigrations(ctx, pool)
	require.NoError(t, err, "failed to apply migrations")

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// seedToken inserts a token for ledger tests.
func seedToken(t *testing.T, pool *Pool, tokenID, symbol string) {
	t.Helper()

	err := NewTokenStore(pool).Insert(context.Background(), &domain.Token{
		TokenID:         tokenID,
		Symbol:          symbol,
		PricingModel:    domain.ModelSqrtDecay,
		BasePriceSats:   1000,
		TotalSupply:     1_000_000,
		TreasuryBalance: 900_000,
		CreatedAt:       1,
	})
	require.NoError(t, err, "failed to seed token")
}

// seedHolder inserts a holder position for ledger tests.
func seedHolder(t *testing.T, pool *Pool, holderID, tokenID string, balance, proceeds int64) {
	t.Helper()

	err := NewHolderStore(pool).Upsert(context.Background(), &domain.Holder{
		HolderID:     holderID,
		TokenID:      tokenID,
		Handle:       "$" + holderID,
		Balance:      balance,
		ProceedsSats: proceeds,
		UpdatedAt:    1,
	})
	require.NoError(t, err, "failed to seed holder")
}
