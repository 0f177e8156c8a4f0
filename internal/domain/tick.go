package domain

// TradeTick is one executed trade projected into the timeseries store.
// Written by the matching engine after each fill commits; immutable.
type TradeTick struct {
	TokenID    string
	TradeID    string
	PriceSats  int64
	Quantity   int64
	TotalSats  int64
	ExecutedAt int64 // Unix timestamp in milliseconds
}

// MarketStats aggregates trading activity for one token over a window.
type MarketStats struct {
	TokenID       string
	WindowStartMs int64
	TradeCount    int64
	VolumeUnits   int64
	VolumeSats    int64
	HighPriceSats int64
	LowPriceSats  int64
	LastPriceSats int64 // price of the most recent trade in the window
}
