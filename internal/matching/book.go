package matching

import (
	"container/heap"

	"token-market/internal/domain"
)

// bookEntry is one resting order on the book with its live remaining
// quantity. The heap orders entries by price priority, then strict
// time priority, then order ID for determinism.
type bookEntry struct {
	order     *domain.Order
	remaining int64
}

type bidHeap []*bookEntry

func (h bidHeap) Len() int { return len(h) }

func (h bidHeap) Less(i, j int) bool {
	if h[i].order.LimitPriceSats != h[j].order.LimitPriceSats {
		return h[i].order.LimitPriceSats > h[j].order.LimitPriceSats
	}
	if h[i].order.CreatedAt != h[j].order.CreatedAt {
		return h[i].order.CreatedAt < h[j].order.CreatedAt
	}
	return h[i].order.OrderID < h[j].order.OrderID
}

func (h bidHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *bidHeap) Push(x any) { *h = append(*h, x.(*bookEntry)) }

func (h *bidHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return entry
}

type askHeap []*bookEntry

func (h askHeap) Len() int { return len(h) }

func (h askHeap) Less(i, j int) bool {
	if h[i].order.LimitPriceSats != h[j].order.LimitPriceSats {
		return h[i].order.LimitPriceSats < h[j].order.LimitPriceSats
	}
	if h[i].order.CreatedAt != h[j].order.CreatedAt {
		return h[i].order.CreatedAt < h[j].order.CreatedAt
	}
	return h[i].order.OrderID < h[j].order.OrderID
}

func (h askHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *askHeap) Push(x any) { *h = append(*h, x.(*bookEntry)) }

func (h *askHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return entry
}

// book is the per-run order book: a max-heap of bids and a min-heap of
// asks, both keyed (price, created_at, order_id).
type book struct {
	bids bidHeap
	asks askHeap
}

// newBook builds a book from open orders. Orders with no remaining
// quantity are excluded.
func newBook(orders []*domain.Order) *book {
	b := &book{}
	for _, o := range orders {
		remaining := o.RemainingQuantity()
		if remaining <= 0 || o.Status.Terminal() {
			continue
		}
		entry := &bookEntry{order: o, remaining: remaining}
		switch o.Side {
		case domain.SideBuy:
			b.bids = append(b.bids, entry)
		case domain.SideSell:
			b.asks = append(b.asks, entry)
		}
	}
	heap.Init(&b.bids)
	heap.Init(&b.asks)
	return b
}

// bestBid returns the highest-priced bid without removing it.
func (b *book) bestBid() *bookEntry {
	if len(b.bids) == 0 {
		return nil
	}
	return b.bids[0]
}

// bestAsk returns the lowest-priced ask without removing it.
func (b *book) bestAsk() *bookEntry {
	if len(b.asks) == 0 {
		return nil
	}
	return b.asks[0]
}

// crossed reports whether the best bid price reaches the best ask price.
func (b *book) crossed() bool {
	bid, ask := b.bestBid(), b.bestAsk()
	return bid != nil && ask != nil && bid.order.LimitPriceSats >= ask.order.LimitPriceSats
}

// consume reduces the top entries by quantity, removing either side
// that reaches zero remaining.
func (b *book) consume(quantity int64) {
	bid, ask := b.bestBid(), b.bestAsk()
	bid.remaining -= quantity
	ask.remaining -= quantity
	if bid.remaining <= 0 {
		heap.Pop(&b.bids)
	}
	if ask.remaining <= 0 {
		heap.Pop(&b.asks)
	}
}

// dropTop removes both top entries after a failed pairing so matching
// can continue with the rest of the book.
func (b *book) dropTop() {
	if len(b.bids) > 0 {
		heap.Pop(&b.bids)
	}
	if len(b.asks) > 0 {
		heap.Pop(&b.asks)
	}
}

// PriceLevel is one aggregated price level of the order book.
type PriceLevel struct {
	PriceSats int64 `json:"price_sats"`
	Quantity  int64 `json:"quantity"`
	Orders    int   `json:"orders"`
}

// OrderBook is the aggregated depth view: bids best-first (price
// descending), asks best-first (price ascending).
type OrderBook struct {
	TokenID string       `json:"token_id"`
	Bids    []PriceLevel `json:"bids"`
	Asks    []PriceLevel `json:"asks"`
}

// BuildOrderBook aggregates open orders into per-price levels.
func BuildOrderBook(tokenID string, orders []*domain.Order) *OrderBook {
	b := newBook(orders)

	ob := &OrderBook{TokenID: tokenID, Bids: []PriceLevel{}, Asks: []PriceLevel{}}
	for len(b.bids) > 0 {
		entry := heap.Pop(&b.bids).(*bookEntry)
		ob.Bids = appendLevel(ob.Bids, entry)
	}
	for len(b.asks) > 0 {
		entry := heap.Pop(&b.asks).(*bookEntry)
		ob.Asks = appendLevel(ob.Asks, entry)
	}
	return ob
}

func appendLevel(levels []PriceLevel, entry *bookEntry) []PriceLevel {
	price := entry.order.LimitPriceSats
	if n := len(levels); n > 0 && levels[n-1].PriceSats == price {
		levels[n-1].Quantity += entry.remaining
		levels[n-1].Orders++
		return levels
	}
	return append(levels, PriceLevel{PriceSats: price, Quantity: entry.remaining, Orders: 1})
}
