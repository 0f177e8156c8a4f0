package clickhouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"token-market/internal/domain"
	"token-market/internal/storage/migrations"
)

// setupTestDB creates a ClickHouse container and returns a connection.
// Returns a cleanup function that must be called when done.
func setupTestDB(t *testing.T) (*Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60*time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_DB":       "test",
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port())

	conn, err := NewConn(ctx, dsn)
	require.NoError(t, err)

	err = migrations.RunClickHouseMigrations(ctx, conn)
	require.NoError(t, err)

	cleanup := func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}

	return conn, cleanup
}

func TestTickStore_InsertAndGetRecent(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTickStore(conn)
	ctx := context.Background()

	err := store.InsertTicks(ctx, []*domain.TradeTick{
		{TokenID: "tok-1", TradeID: "t-1", PriceSats: 100, Quantity: 3, TotalSats: 300, ExecutedAt: 1000},
		{TokenID: "tok-1", TradeID: "t-2", PriceSats: 150, Quantity: 2, TotalSats: 300, ExecutedAt: 2000},
		{TokenID: "tok-2", TradeID: "t-3", PriceSats: 999, Quantity: 1, TotalSats: 999, ExecutedAt: 1500},
	})
	require.NoError(t, err)

	ticks, err := store.GetRecent(ctx, "tok-1", 10)
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	assert.Equal(t, "t-2", ticks[0].TradeID)
	assert.Equal(t, "t-1", ticks[1].TradeID)
	assert.Equal(t, int64(150), ticks[0].PriceSats)
	assert.Equal(t, int64(2000), ticks[0].ExecutedAt)
}

func TestTickStore_Stats(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTickStore(conn)
	ctx := context.Background()

	err := store.InsertTicks(ctx, []*domain.TradeTick{
		{TokenID: "tok-1", TradeID: "t-1", PriceSats: 100, Quantity: 3, TotalSats: 300, ExecutedAt: 1000},
		{TokenID: "tok-1", TradeID: "t-2", PriceSats: 150, Quantity: 2, TotalSats: 300, ExecutedAt: 2000},
		{TokenID: "tok-1", TradeID: "t-3", PriceSats: 90, Quantity: 1, TotalSats: 90, ExecutedAt: 500},
	})
	require.NoError(t, err)

	stats, err := store.Stats(ctx, "tok-1", 1000)
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.TradeCount)
	assert.Equal(t, int64(5), stats.VolumeUnits)
	assert.Equal(t, int64(600), stats.VolumeSats)
	assert.Equal(t, int64(150), stats.HighPriceSats)
	assert.Equal(t, int64(100), stats.LowPriceSats)
	assert.Equal(t, int64(150), stats.LastPriceSats)
}

func TestTickStore_StatsEmptyWindow(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTickStore(conn)

	stats, err := store.Stats(context.Background(), "tok-missing", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TradeCount)
	assert.Equal(t, int64(0), stats.VolumeSats)
}
