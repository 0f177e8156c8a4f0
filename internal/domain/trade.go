package domain

// Trade is an executed match between a buy and a sell order.
// Corresponds to the trades table. Immutable once created.
type Trade struct {
	TradeID     string
	TokenID     string
	BuyOrderID  string
	SellOrderID string
	BuyerID     string
	SellerID    string
	Quantity    int64 // units exchanged
	PriceSats   int64 // per-unit price, always the maker's limit price
	TotalSats   int64 // Quantity * PriceSats
	ExecutedAt  int64 // Unix timestamp in milliseconds
}
