package matching

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"token-market/internal/domain"
	"token-market/internal/market"
	"token-market/internal/pricing"
	"token-market/internal/storage"
)

// Result reports one matching run.
type Result struct {
	MatchesFound   int
	TradesExecuted []*domain.Trade
	Errors         []string
}

// Engine matches resting orders per token. Both entry points, the
// synchronous post-order match and the scheduled sweep, call the same
// Run method; it is idempotent on a book with no new orders.
type Engine struct {
	ledger storage.Ledger
	orders storage.OrderStore
	ticks  storage.TickStore
	cache  *pricing.PriceCache
	logger *log.Logger
	now    func() int64
}

// EngineOptions configures an Engine. Ledger and Orders are required;
// the rest are optional.
type EngineOptions struct {
	Ledger storage.Ledger
	Orders storage.OrderStore

	// Ticks, when set, receives one tick per executed trade.
	Ticks storage.TickStore

	// Cache, when set, is invalidated per token after trades execute.
	Cache *pricing.PriceCache

	Logger *log.Logger

	// Now overrides the execution timestamp source. Tests use this.
	Now func() int64
}

// NewEngine creates a matching engine.
func NewEngine(opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Engine{
		ledger: opts.Ledger,
		orders: opts.Orders,
		ticks:  opts.Ticks,
		cache:  opts.Cache,
		logger: logger,
		now:    now,
	}
}

// Run matches crossing orders for one token until the book no longer
// crosses or maxMatches trades have executed. Failed pairings are
// skipped with a per-item error; the run continues with the rest of
// the book. Serialized per token via the ledger's token lock.
func (e *Engine) Run(ctx context.Context, tokenID string, maxMatches int) (*Result, error) {
	if tokenID == "" {
		return nil, market.Validationf("token_id is required")
	}
	if maxMatches < 1 {
		return nil, market.Validationf("max_matches must be >= 1, got %d", maxMatches)
	}

	result := &Result{TradesExecuted: []*domain.Trade{}, Errors: []string{}}

	err := e.ledger.WithTokenLock(ctx, tokenID, func(ctx context.Context) error {
		open, err := e.orders.GetOpenByToken(ctx, tokenID)
		if err != nil {
			return fmt.Errorf("load open orders: %w", err)
		}

		b := newBook(open)
		for b.crossed() && len(result.TradesExecuted) < maxMatches {
			if err := ctx.Err(); err != nil {
				return err
			}

			bid, ask := b.bestBid(), b.bestAsk()
			result.MatchesFound++

			trade := e.buildTrade(tokenID, bid, ask)
			if err := e.ledger.ApplyTrade(ctx, trade); err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("match %s/%s: %v", bid.order.OrderID, ask.order.OrderID, err))
				e.logger.Printf("[matching] skipping pairing %s/%s on %s: %v",
					bid.order.OrderID, ask.order.OrderID, tokenID, err)
				b.dropTop()
				continue
			}

			result.TradesExecuted = append(result.TradesExecuted, trade)
			b.consume(trade.Quantity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.afterTrades(ctx, tokenID, result.TradesExecuted)
	return result, nil
}

// buildTrade prices a bid/ask pairing at the maker's limit. The maker
// is whichever order was resting first; ties go to the ask.
func (e *Engine) buildTrade(tokenID string, bid, ask *bookEntry) *domain.Trade {
	quantity := bid.remaining
	if ask.remaining < quantity {
		quantity = ask.remaining
	}

	price := ask.order.LimitPriceSats
	if bid.order.CreatedAt < ask.order.CreatedAt {
		price = bid.order.LimitPriceSats
	}

	return &domain.Trade{
		TradeID:     uuid.NewString(),
		TokenID:     tokenID,
		BuyOrderID:  bid.order.OrderID,
		SellOrderID: ask.order.OrderID,
		BuyerID:     bid.order.HolderID,
		SellerID:    ask.order.HolderID,
		Quantity:    quantity,
		PriceSats:   price,
		TotalSats:   quantity * price,
		ExecutedAt:  e.now(),
	}
}

// afterTrades projects committed trades into the tick store and drops
// the cached reference price. Both are best-effort: the trades are
// already committed and the tick store is rebuildable from the tape.
func (e *Engine) afterTrades(ctx context.Context, tokenID string, trades []*domain.Trade) {
	if len(trades) == 0 {
		return
	}

	if e.cache != nil {
		e.cache.Invalidate(tokenID)
	}

	if e.ticks == nil {
		return
	}
	ticks := make([]*domain.TradeTick, 0, len(trades))
	for _, t := range trades {
		ticks = append(ticks, &domain.TradeTick{
			TokenID:    t.TokenID,
			TradeID:    t.TradeID,
			PriceSats:  t.PriceSats,
			Quantity:   t.Quantity,
			TotalSats:  t.TotalSats,
			ExecutedAt: t.ExecutedAt,
		})
	}
	if err := e.ticks.InsertTicks(ctx, ticks); err != nil {
		e.logger.Printf("[matching] record ticks for %s: %v", tokenID, err)
	}
}

// Book returns the aggregated order book for a token.
func (e *Engine) Book(ctx context.Context, tokenID string) (*OrderBook, error) {
	if tokenID == "" {
		return nil, market.Validationf("token_id is required")
	}
	open, err := e.orders.GetOpenByToken(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("load open orders: %w", err)
	}
	return BuildOrderBook(tokenID, open), nil
}
