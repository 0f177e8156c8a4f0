package api

import "token-market/internal/domain"

// View structs decouple the wire format from the domain structs.

type tokenView struct {
	TokenID           string  `json:"token_id"`
	Symbol            string  `json:"symbol"`
	PricingModel      string  `json:"pricing_model"`
	BasePriceSats     int64   `json:"base_price_sats"`
	DecayFactor       float64 `json:"decay_factor"`
	TotalSupply       int64   `json:"total_supply"`
	TreasuryBalance   int64   `json:"treasury_balance"`
	CirculatingSupply int64   `json:"circulating_supply"`
	TreasuryAddress   string  `json:"treasury_address,omitempty"`
	CurrentPriceSats  int64   `json:"current_price_sats"`
	CreatedAt         int64   `json:"created_at"`
}

type holderView struct {
	HolderID         string `json:"holder_id"`
	TokenID          string `json:"token_id"`
	Handle           string `json:"handle,omitempty"`
	Balance          int64  `json:"balance"`
	StakedBalance    int64  `json:"staked_balance"`
	AvailableBalance int64  `json:"available_balance"`
	EscrowSats       int64  `json:"escrow_sats"`
	ProceedsSats     int64  `json:"proceeds_sats"`
	TotalPurchased   int64  `json:"total_purchased"`
	TotalSpentSats   int64  `json:"total_spent_sats"`
}

type orderView struct {
	OrderID        string `json:"order_id"`
	TokenID        string `json:"token_id"`
	HolderID       string `json:"holder_id"`
	Side           string `json:"side"`
	LimitPriceSats int64  `json:"limit_price_sats"`
	Quantity       int64  `json:"quantity"`
	FilledQuantity int64  `json:"filled_quantity"`
	Status         string `json:"status"`
	CreatedAt      int64  `json:"created_at"`
}

type tradeView struct {
	TradeID     string `json:"trade_id"`
	TokenID     string `json:"token_id"`
	BuyOrderID  string `json:"buy_order_id"`
	SellOrderID string `json:"sell_order_id"`
	BuyerID     string `json:"buyer_id"`
	SellerID    string `json:"seller_id"`
	Quantity    int64  `json:"quantity"`
	PriceSats   int64  `json:"price_sats"`
	TotalSats   int64  `json:"total_sats"`
	ExecutedAt  int64  `json:"executed_at"`
}

type claimView struct {
	ClaimID         string `json:"claim_id"`
	HolderID        string `json:"holder_id"`
	Handle          string `json:"handle,omitempty"`
	BalanceSnapshot int64  `json:"balance_snapshot"`
	ClaimAmountSats int64  `json:"claim_amount_sats"`
	Status          string `json:"status"`
	PaymentTxID     string `json:"payment_tx_id,omitempty"`
	ClaimedAt       int64  `json:"claimed_at,omitempty"`
}

func toOrderView(o *domain.Order) orderView {
	return orderView{
		OrderID:        o.OrderID,
		TokenID:        o.TokenID,
		HolderID:       o.HolderID,
		Side:           string(o.Side),
		LimitPriceSats: o.LimitPriceSats,
		Quantity:       o.Quantity,
		FilledQuantity: o.FilledQuantity,
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt,
	}
}

func toTradeView(t *domain.Trade) tradeView {
	return tradeView{
		TradeID:     t.TradeID,
		TokenID:     t.TokenID,
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		BuyerID:     t.BuyerID,
		SellerID:    t.SellerID,
		Quantity:    t.Quantity,
		PriceSats:   t.PriceSats,
		TotalSats:   t.TotalSats,
		ExecutedAt:  t.ExecutedAt,
	}
}

func toTradeViews(trades []*domain.Trade) []tradeView {
	views := make([]tradeView, 0, len(trades))
	for _, t := range trades {
		views = append(views, toTradeView(t))
	}
	return views
}

func toHolderView(h *domain.Holder) holderView {
	return holderView{
		HolderID:         h.HolderID,
		TokenID:          h.TokenID,
		Handle:           h.Handle,
		Balance:          h.Balance,
		StakedBalance:    h.StakedBalance,
		AvailableBalance: h.AvailableBalance(),
		EscrowSats:       h.EscrowSats,
		ProceedsSats:     h.ProceedsSats,
		TotalPurchased:   h.TotalPurchased,
		TotalSpentSats:   h.TotalSpentSats,
	}
}

func toClaimView(c *domain.DividendClaim) claimView {
	return claimView{
		ClaimID:         c.ClaimID,
		HolderID:        c.HolderID,
		Handle:          c.Handle,
		BalanceSnapshot: c.BalanceSnapshot,
		ClaimAmountSats: c.ClaimAmountSats,
		Status:          string(c.Status),
		PaymentTxID:     c.PaymentTxID,
		ClaimedAt:       c.ClaimedAt,
	}
}

func (s *Server) toTokenView(t *domain.Token, currentPrice int64) tokenView {
	return tokenView{
		TokenID:           t.TokenID,
		Symbol:            t.Symbol,
		PricingModel:      string(t.PricingModel),
		BasePriceSats:     t.BasePriceSats,
		DecayFactor:       t.DecayFactor,
		TotalSupply:       t.TotalSupply,
		TreasuryBalance:   t.TreasuryBalance,
		CirculatingSupply: t.CirculatingSupply(),
		TreasuryAddress:   t.TreasuryAddress,
		CurrentPriceSats:  currentPrice,
		CreatedAt:         t.CreatedAt,
	}
}
