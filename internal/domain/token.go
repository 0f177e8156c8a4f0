package domain

// PricingModel identifies the bonding curve that prices a token's
// remaining treasury supply.
type PricingModel string

const (
	// ModelSqrtDecay prices inversely to the square root of remaining supply.
	ModelSqrtDecay PricingModel = "sqrt_decay"
	// ModelLinear ramps price linearly with units sold.
	ModelLinear PricingModel = "linear"
	// ModelExponential ramps price exponentially with units sold.
	ModelExponential PricingModel = "exponential"
)

// Valid reports whether the model is one of the supported curves.
func (m PricingModel) Valid() bool {
	switch m {
	case ModelSqrtDecay, ModelLinear, ModelExponential:
		return true
	}
	return false
}

// Token represents a fungible access token and its issuer treasury.
// Corresponds to the tokens table.
type Token struct {
	TokenID         string       // PRIMARY KEY
	Symbol          string       // e.g. "$402"
	PricingModel    PricingModel // sqrt_decay | linear | exponential
	BasePriceSats   int64        // curve base price in satoshis
	DecayFactor     float64      // curve steepness (linear/exponential)
	TotalSupply     int64        // fixed at mint, never changes
	TreasuryBalance int64        // unsold units held by issuer, only decreases
	TreasuryAddress string       // on-chain address holding treasury units
	CreatedAt       int64        // Unix timestamp in milliseconds
}

// CirculatingSupply is total supply minus treasury-held units. Always >= 0.
func (t *Token) CirculatingSupply() int64 {
	return t.TotalSupply - t.TreasuryBalance
}
