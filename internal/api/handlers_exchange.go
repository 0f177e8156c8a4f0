package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"token-market/internal/domain"
	"token-market/internal/market"
	"token-market/internal/matching"
	"token-market/internal/observability"
)

type createOrderRequest struct {
	TokenID        string `json:"token_id"`
	HolderID       string `json:"holder_id"`
	Side           string `json:"side"`
	LimitPriceSats int64  `json:"limit_price_sats"`
	Quantity       int64  `json:"quantity"`
}

type createOrderResponse struct {
	Order orderView      `json:"order"`
	Match *matchResponse `json:"match,omitempty"`
}

type matchResponse struct {
	MatchesFound   int                 `json:"matches_found"`
	TradesExecuted []tradeView         `json:"trades_executed"`
	Errors         []string            `json:"errors"`
	OrderBook      *matching.OrderBook `json:"order_book,omitempty"`
}

// handleCreateOrder inserts a limit order and immediately runs one
// bounded matching pass on the token's book.
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	side := domain.OrderSide(req.Side)
	if !side.Valid() {
		s.writeError(w, r, market.Validationf("side must be buy or sell, got %q", req.Side))
		return
	}
	if req.LimitPriceSats <= 0 {
		s.writeError(w, r, market.Validationf("limit_price_sats must be positive, got %d", req.LimitPriceSats))
		return
	}
	if req.Quantity <= 0 {
		s.writeError(w, r, market.Validationf("quantity must be positive, got %d", req.Quantity))
		return
	}

	order := &domain.Order{
		OrderID:        uuid.NewString(),
		TokenID:        req.TokenID,
		HolderID:       req.HolderID,
		Side:           side,
		LimitPriceSats: req.LimitPriceSats,
		Quantity:       req.Quantity,
		Status:         domain.OrderOpen,
		CreatedAt:      s.now(),
	}
	if err := s.ledger.CreateOrder(r.Context(), order); err != nil {
		s.writeError(w, r, err)
		return
	}
	observability.RecordOrderCreated(string(side))

	match, err := s.runMatch(r, req.TokenID, s.maxMatches, false)
	if err != nil {
		// The order stands; only the synchronous sweep failed.
		s.logger.Printf("[api] post-order match for %s failed: %v", req.TokenID, err)
	}

	// Report the order as the book now sees it.
	current, err := s.orders.GetByID(r.Context(), order.OrderID)
	if err != nil {
		current = order
	}
	writeJSON(w, http.StatusCreated, createOrderResponse{
		Order: toOrderView(current),
		Match: match,
	})
}

// handleCancelOrder cancels a resting order and releases its remaining
// stake or escrow.
func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	order, err := s.ledger.CancelOrder(r.Context(), orderID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	observability.RecordOrderCancelled()
	writeJSON(w, http.StatusOK, map[string]any{"order": toOrderView(order)})
}

type matchRequest struct {
	TokenID    string `json:"token_id"`
	MaxMatches int    `json:"max_matches"`
}

// handleMatch runs one bounded matching pass and returns the executed
// trades plus the book that remains.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	maxMatches := req.MaxMatches
	if maxMatches <= 0 {
		maxMatches = s.maxMatches
	}

	resp, err := s.runMatch(r, req.TokenID, maxMatches, true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) runMatch(r *http.Request, tokenID string, maxMatches int, includeBook bool) (*matchResponse, error) {
	start := time.Now()
	result, err := s.engine.Run(r.Context(), tokenID, maxMatches)
	if err != nil {
		observability.RecordMatchingRun("error", time.Since(start).Seconds(), 0)
		return nil, err
	}
	observability.RecordMatchingRun("success", time.Since(start).Seconds(), len(result.Errors))

	var volume int64
	for _, t := range result.TradesExecuted {
		volume += t.TotalSats
	}
	observability.RecordTrades(len(result.TradesExecuted), volume)

	resp := &matchResponse{
		MatchesFound:   result.MatchesFound,
		TradesExecuted: toTradeViews(result.TradesExecuted),
		Errors:         result.Errors,
	}
	if includeBook {
		book, err := s.engine.Book(r.Context(), tokenID)
		if err != nil {
			return nil, err
		}
		resp.OrderBook = book
	}
	return resp, nil
}

// handleOrderBook returns the aggregated bid/ask levels for a token.
func (s *Server) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	tokenID := r.URL.Query().Get("token_id")
	if tokenID == "" {
		s.writeError(w, r, market.Validationf("token_id is required"))
		return
	}
	book, err := s.engine.Book(r.Context(), tokenID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_book": book})
}

type tradeStats struct {
	Volume24hSats int64 `json:"volume_24h_sats"`
	TradeCount24h int64 `json:"trade_count_24h"`
	HighPrice24h  int64 `json:"high_price_24h"`
	LowPrice24h   int64 `json:"low_price_24h"`
	LastPriceSats int64 `json:"last_price_sats"`
}

// handleTrades returns the recent trade tape plus 24h statistics from
// the tick projection.
func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	tokenID := r.URL.Query().Get("token_id")
	if tokenID == "" {
		s.writeError(w, r, market.Validationf("token_id is required"))
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, r, market.Validationf("limit must be a positive integer, got %q", raw))
			return
		}
		limit = n
	}

	trades, err := s.trades.GetByToken(r.Context(), tokenID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	since := s.now() - 24*time.Hour.Milliseconds()
	stats, err := s.ticks.Stats(r.Context(), tokenID, since)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"trades": toTradeViews(trades),
		"stats": tradeStats{
			Volume24hSats: stats.VolumeSats,
			TradeCount24h: stats.TradeCount,
			HighPrice24h:  stats.HighPriceSats,
			LowPrice24h:   stats.LowPriceSats,
			LastPriceSats: stats.LastPriceSats,
		},
	})
}
