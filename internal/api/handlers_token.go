package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"token-market/internal/chain"
	"token-market/internal/domain"
	"token-market/internal/market"
	"token-market/internal/observability"
	"token-market/internal/pricing"
)

type mintTokenRequest struct {
	TokenID         string  `json:"token_id"`
	Symbol          string  `json:"symbol"`
	PricingModel    string  `json:"pricing_model"`
	BasePriceSats   int64   `json:"base_price_sats"`
	DecayFactor     float64 `json:"decay_factor"`
	TotalSupply     int64   `json:"total_supply"`
	TreasuryAddress string  `json:"treasury_address"`
}

// handleMintToken creates a token with the full supply in the
// treasury.
func (s *Server) handleMintToken(w http.ResponseWriter, r *http.Request) {
	var req mintTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Symbol == "" {
		s.writeError(w, r, market.Validationf("symbol is required"))
		return
	}
	if req.TreasuryAddress != "" && !chain.ValidAddress(req.TreasuryAddress) {
		s.writeError(w, r, market.Validationf("treasury_address %q is not a valid chain address", req.TreasuryAddress))
		return
	}

	tokenID := req.TokenID
	if tokenID == "" {
		tokenID = uuid.NewString()
	}
	token := &domain.Token{
		TokenID:         tokenID,
		Symbol:          req.Symbol,
		PricingModel:    domain.PricingModel(req.PricingModel),
		BasePriceSats:   req.BasePriceSats,
		DecayFactor:     req.DecayFactor,
		TotalSupply:     req.TotalSupply,
		TreasuryBalance: req.TotalSupply,
		TreasuryAddress: req.TreasuryAddress,
		CreatedAt:       s.now(),
	}
	curve := pricing.CurveForToken(token)
	if err := curve.Validate(); err != nil {
		s.writeError(w, r, market.Validationf("%v", err))
		return
	}

	if err := s.tokens.Insert(r.Context(), token); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.toTokenView(token, curve.PriceAt(token.TreasuryBalance)))
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.tokens.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]tokenView, 0, len(tokens))
	for _, t := range tokens {
		views = append(views, s.toTokenView(t, s.currentPrice(t)))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": views})
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.tokens.GetByID(r.Context(), chi.URLParam(r, "tokenID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toTokenView(token, s.currentPrice(token)))
}

func (s *Server) handleGetHolder(w http.ResponseWriter, r *http.Request) {
	holder, err := s.holders.Get(r.Context(), chi.URLParam(r, "holderID"), chi.URLParam(r, "tokenID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHolderView(holder))
}

// currentPrice returns the marginal treasury price, cached per token.
func (s *Server) currentPrice(t *domain.Token) int64 {
	if s.priceCache != nil {
		if price, ok := s.priceCache.Get(t.TokenID); ok {
			return price
		}
	}
	price := pricing.CurveForToken(t).PriceAt(t.TreasuryBalance)
	if s.priceCache != nil {
		s.priceCache.Set(t.TokenID, price)
	}
	return price
}

// resolveToken reads the token_id query parameter. When it is absent
// and exactly one token exists, that token is used, so single-token
// deployments can omit the parameter.
func (s *Server) resolveToken(r *http.Request) (*domain.Token, error) {
	if tokenID := r.URL.Query().Get("token_id"); tokenID != "" {
		return s.tokens.GetByID(r.Context(), tokenID)
	}
	all, err := s.tokens.List(r.Context())
	if err != nil {
		return nil, err
	}
	if len(all) != 1 {
		return nil, market.Validationf("token_id is required when %d tokens exist", len(all))
	}
	return all[0], nil
}

type previewResponse struct {
	TokenCount    int64 `json:"tokenCount"`
	TotalCost     int64 `json:"totalCost"`
	AvgPrice      int64 `json:"avgPrice"`
	RemainingSats int64 `json:"remainingSats"`
	CurrentPrice  int64 `json:"currentPrice"`
	NextPrice     int64 `json:"nextPrice"`
}

// handlePreview quotes how many units a satoshi budget buys from the
// treasury at marginal prices. Read-only; nothing is reserved.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	spendRaw := r.URL.Query().Get("spendSats")
	spend, err := strconv.ParseInt(spendRaw, 10, 64)
	if err != nil || spend < 0 {
		s.writeError(w, r, market.Validationf("spendSats must be a non-negative integer, got %q", spendRaw))
		return
	}

	token, err := s.resolveToken(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	quote, err := pricing.CurveForToken(token).TokensForSpend(token.TreasuryBalance, spend)
	if err != nil {
		s.writeError(w, r, market.Validationf("%v", err))
		return
	}

	writeJSON(w, http.StatusOK, previewResponse{
		TokenCount:    quote.Tokens,
		TotalCost:     quote.TotalCost,
		AvgPrice:      quote.AvgPriceSats,
		RemainingSats: quote.RemainingSats,
		CurrentPrice:  quote.CurrentPrice,
		NextPrice:     quote.NextPrice,
	})
}

type purchaseRequest struct {
	TokenID   string `json:"token_id"`
	HolderID  string `json:"holder_id"`
	SpendSats int64  `json:"spend_sats"`
}

type purchaseResponse struct {
	TokensPurchased int64 `json:"tokens_purchased"`
	TotalCostSats   int64 `json:"total_cost_sats"`
	RemainingSats   int64 `json:"remaining_sats"`
	AvgPriceSats    int64 `json:"avg_price_sats"`
	NextPriceSats   int64 `json:"next_price_sats"`
}

// handlePurchase buys from the treasury at marginal curve prices. The
// quote is computed against the treasury balance read here; if the
// treasury moves before the ledger commits, the purchase conflicts and
// the caller requotes.
func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.SpendSats <= 0 {
		s.writeError(w, r, market.Validationf("spend_sats must be positive, got %d", req.SpendSats))
		return
	}

	token, err := s.tokens.GetByID(r.Context(), req.TokenID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	quote, err := pricing.CurveForToken(token).TokensForSpend(token.TreasuryBalance, req.SpendSats)
	if err != nil {
		s.writeError(w, r, market.Validationf("%v", err))
		return
	}
	if quote.Tokens == 0 {
		s.writeError(w, r, market.Validationf("spend_sats %d does not cover the current price %d", req.SpendSats, quote.CurrentPrice))
		return
	}

	err = s.ledger.PurchaseFromTreasury(r.Context(), req.TokenID, req.HolderID, quote.Tokens, token.TreasuryBalance, quote.TotalCost)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	observability.RecordTreasurySale()
	if s.priceCache != nil {
		s.priceCache.Invalidate(req.TokenID)
	}

	writeJSON(w, http.StatusOK, purchaseResponse{
		TokensPurchased: quote.Tokens,
		TotalCostSats:   quote.TotalCost,
		RemainingSats:   quote.RemainingSats,
		AvgPriceSats:    quote.AvgPriceSats,
		NextPriceSats:   quote.NextPrice,
	})
}

type onChainResponse struct {
	OnChain    onChainSide    `json:"onChain"`
	Database   onChainSide    `json:"database"`
	Comparison comparisonView `json:"comparison"`
}

type onChainSide struct {
	Treasury    int64 `json:"treasury"`
	Circulating int64 `json:"circulating"`
}

type comparisonView struct {
	InSync        bool              `json:"inSync"`
	Discrepancies []discrepancyView `json:"discrepancies"`
	ReconciledAt  int64             `json:"reconciledAt"`
}

type discrepancyView struct {
	HolderID     string `json:"holderId,omitempty"`
	ChainAddress string `json:"chainAddress"`
	DBBalance    int64  `json:"dbBalance"`
	ChainBalance int64  `json:"chainBalance"`
	Delta        int64  `json:"delta"`
}

// handleOnChain reconciles the database ledger against the chain
// oracle and reports both views side by side.
func (s *Server) handleOnChain(w http.ResponseWriter, r *http.Request) {
	token, err := s.resolveToken(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.reconciler.Reconcile(r.Context(), token.TokenID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	discrepancies := make([]discrepancyView, 0, len(report.Discrepancies))
	for _, d := range report.Discrepancies {
		discrepancies = append(discrepancies, discrepancyView{
			HolderID:     d.HolderID,
			ChainAddress: d.ChainAddress,
			DBBalance:    d.DBBalance,
			ChainBalance: d.ChainBalance,
			Delta:        d.Delta,
		})
	}

	writeJSON(w, http.StatusOK, onChainResponse{
		OnChain:  onChainSide{Treasury: report.ChainTreasury, Circulating: report.ChainCirculating},
		Database: onChainSide{Treasury: report.DBTreasury, Circulating: report.DBCirculating},
		Comparison: comparisonView{
			InSync:        report.InSync,
			Discrepancies: discrepancies,
			ReconciledAt:  report.ReconciledAt,
		},
	})
}
