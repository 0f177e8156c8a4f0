// Package api exposes the market over HTTP. Handlers translate JSON
// requests into engine calls and map the error taxonomy onto status
// codes; no business logic lives here.
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"token-market/internal/dividend"
	"token-market/internal/matching"
	"token-market/internal/observability"
	"token-market/internal/pricing"
	"token-market/internal/reconcile"
	"token-market/internal/storage"
)

// DefaultMaxMatches bounds the synchronous matching run after order
// creation and any batch call that omits max_matches.
const DefaultMaxMatches = 100

// Server holds the handler dependencies.
type Server struct {
	tokens        storage.TokenStore
	holders       storage.HolderStore
	orders        storage.OrderStore
	trades        storage.TradeStore
	distributions storage.DistributionStore
	ticks         storage.TickStore
	ledger        storage.Ledger

	engine      *matching.Engine
	distributor *dividend.Distributor
	reconciler  *reconcile.Reconciler
	priceCache  *pricing.PriceCache

	maxMatches int
	logger     *log.Logger
	now        func() int64
}

// Options configures a Server. Every store, the ledger, and the three
// engines are required; PriceCache is optional.
type Options struct {
	Tokens        storage.TokenStore
	Holders       storage.HolderStore
	Orders        storage.OrderStore
	Trades        storage.TradeStore
	Distributions storage.DistributionStore
	Ticks         storage.TickStore
	Ledger        storage.Ledger

	Engine      *matching.Engine
	Distributor *dividend.Distributor
	Reconciler  *reconcile.Reconciler
	PriceCache  *pricing.PriceCache

	MaxMatches int
	Logger     *log.Logger
	Now        func() int64
}

// NewServer creates an API server.
func NewServer(opts Options) *Server {
	maxMatches := opts.MaxMatches
	if maxMatches <= 0 {
		maxMatches = DefaultMaxMatches
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Server{
		tokens:        opts.Tokens,
		holders:       opts.Holders,
		orders:        opts.Orders,
		trades:        opts.Trades,
		distributions: opts.Distributions,
		ticks:         opts.Ticks,
		ledger:        opts.Ledger,
		engine:        opts.Engine,
		distributor:   opts.Distributor,
		reconciler:    opts.Reconciler,
		priceCache:    opts.PriceCache,
		maxMatches:    maxMatches,
		logger:        logger,
		now:           now,
	}
}

// Router builds the HTTP route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestMetrics)

	r.Route("/token", func(r chi.Router) {
		r.Post("/", s.handleMintToken)
		r.Get("/", s.handleListTokens)
		r.Get("/{tokenID}", s.handleGetToken)
		r.Get("/preview", s.handlePreview)
		r.Post("/purchase", s.handlePurchase)
		r.Get("/onchain", s.handleOnChain)
		r.Get("/{tokenID}/holders/{holderID}", s.handleGetHolder)
	})

	r.Route("/exchange", func(r chi.Router) {
		r.Post("/orders", s.handleCreateOrder)
		r.Delete("/orders/{orderID}", s.handleCancelOrder)
		r.Post("/match", s.handleMatch)
		r.Get("/match", s.handleOrderBook)
		r.Get("/trades", s.handleTrades)
	})

	r.Route("/ledger", func(r chi.Router) {
		r.Post("/irrigate", s.handleIrrigate)
		r.Get("/distributions/{distributionID}", s.handleGetDistribution)
	})

	r.Get("/health", s.handleHealth)
	return r
}

// requestMetrics times every request under its chi route pattern.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		observability.RecordHTTPRequest(route, r.Method, strconv.Itoa(ww.Status()), time.Since(start).Seconds())
	})
}
