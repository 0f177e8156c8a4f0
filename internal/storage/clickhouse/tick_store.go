package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"token-market/internal/domain"
	"token-market/internal/observability"
	"token-market/internal/storage"
)

// TickStore implements storage.TickStore using ClickHouse. Ticks land
// in a ReplacingMergeTree keyed (token_id, trade_id), so replayed
// inserts from an idempotent matching run collapse on merge.
type TickStore struct {
	conn *Conn
}

// NewTickStore creates a new TickStore.
func NewTickStore(conn *Conn) *TickStore {
	return &TickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TickStore = (*TickStore)(nil)

// InsertTicks appends trade ticks in one batch.
func (s *TickStore) InsertTicks(ctx context.Context, ticks []*domain.TradeTick) (err error) {
	if len(ticks) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "insert_ticks", time.Since(start).Seconds(), err)
	}()

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_ticks (
			token_id, trade_id, price_sats, quantity, total_sats, executed_at_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, tick := range ticks {
		err = batch.Append(
			tick.TokenID, tick.TradeID,
			tick.PriceSats, tick.Quantity, tick.TotalSats,
			uint64(tick.ExecutedAt),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetRecent retrieves the most recent ticks for a token, ordered by
// executed_at DESC, up to limit.
func (s *TickStore) GetRecent(ctx context.Context, tokenID string, limit int) ([]*domain.TradeTick, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT token_id, trade_id, price_sats, quantity, total_sats, executed_at_ms
		FROM trade_ticks FINAL
		WHERE token_id = ?
		ORDER BY executed_at_ms DESC, trade_id DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, tokenID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent ticks: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

// Stats aggregates trade count, volume and high/low/last price for a
// token over ticks with executed_at >= sinceMs.
func (s *TickStore) Stats(ctx context.Context, tokenID string, sinceMs int64) (*domain.MarketStats, error) {
	query := `
		SELECT
			count(),
			sum(quantity),
			sum(total_sats),
			max(price_sats),
			min(price_sats),
			argMax(price_sats, (executed_at_ms, trade_id))
		FROM trade_ticks FINAL
		WHERE token_id = ? AND executed_at_ms >= ?
	`

	var count uint64
	var volumeUnits, volumeSats int64
	var high, low, last int64
	start := time.Now()
	err := s.conn.QueryRow(ctx, query, tokenID, uint64(sinceMs)).Scan(
		&count, &volumeUnits, &volumeSats, &high, &low, &last,
	)
	observability.RecordDBQuery("clickhouse", "tick_stats", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("query tick stats: %w", err)
	}

	stats := &domain.MarketStats{
		TokenID:       tokenID,
		WindowStartMs: sinceMs,
		TradeCount:    int64(count),
	}
	if count > 0 {
		stats.VolumeUnits = volumeUnits
		stats.VolumeSats = volumeSats
		stats.HighPriceSats = high
		stats.LowPriceSats = low
		stats.LastPriceSats = last
	}
	return stats, nil
}

// scanTicks scans multiple rows into a slice of TradeTick.
func scanTicks(rows driver.Rows) ([]*domain.TradeTick, error) {
	var ticks []*domain.TradeTick

	for rows.Next() {
		var tick domain.TradeTick
		var executedAt uint64

		err := rows.Scan(
			&tick.TokenID,
			&tick.TradeID,
			&tick.PriceSats,
			&tick.Quantity,
			&tick.TotalSats,
			&executedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}

		tick.ExecutedAt = int64(executedAt)
		ticks = append(ticks, &tick)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticks: %w", err)
	}
	return ticks, nil
}
