// Package pricing implements the bonding curves that price a token's
// remaining treasury supply. All functions are pure; amounts are integer
// satoshis throughout.
package pricing

import (
	"errors"
	"fmt"
	"math"

	"token-market/internal/domain"
)

// Pricing errors.
var (
	// ErrInsufficientSupply is returned when a batch quote asks for more
	// units than the treasury holds.
	ErrInsufficientSupply = errors.New("insufficient treasury supply")

	// ErrInvalidCurve is returned when curve parameters are unusable.
	ErrInvalidCurve = errors.New("invalid curve parameters")
)

// Curve is a bonding curve: a deterministic mapping from remaining
// treasury supply to per-unit price in satoshis.
type Curve struct {
	Model         domain.PricingModel
	BasePriceSats int64
	DecayFactor   float64
	TotalSupply   int64
}

// CurveForToken builds the pricing curve from a token's mint parameters.
func CurveForToken(t *domain.Token) Curve {
	return Curve{
		Model:         t.PricingModel,
		BasePriceSats: t.BasePriceSats,
		DecayFactor:   t.DecayFactor,
		TotalSupply:   t.TotalSupply,
	}
}

// Validate checks the curve parameters.
func (c Curve) Validate() error {
	if !c.Model.Valid() {
		return fmt.Errorf("%w: unknown model %q", ErrInvalidCurve, c.Model)
	}
	if c.BasePriceSats < 1 {
		return fmt.Errorf("%w: base price %d must be >= 1", ErrInvalidCurve, c.BasePriceSats)
	}
	if c.TotalSupply < 1 {
		return fmt.Errorf("%w: total supply %d must be >= 1", ErrInvalidCurve, c.TotalSupply)
	}
	if c.DecayFactor < 0 {
		return fmt.Errorf("%w: decay factor %f must be >= 0", ErrInvalidCurve, c.DecayFactor)
	}
	return nil
}

// PriceAt returns the per-unit price with `remaining` unsold units left
// in the treasury. The price is a positive integer, monotonically
// non-increasing in remaining. remaining <= 0 yields the curve's capped
// maximum, never infinity.
func (c Curve) PriceAt(remaining int64) int64 {
	if remaining < 0 {
		remaining = 0
	}

	var price float64
	switch c.Model {
	case domain.ModelSqrtDecay:
		// price = ceil(base / sqrt(remaining+1)); remaining=0 caps at base.
		price = float64(c.BasePriceSats) / math.Sqrt(float64(remaining)+1)
	case domain.ModelLinear:
		sold := c.soldFraction(remaining)
		price = float64(c.BasePriceSats) * (1 + c.DecayFactor*sold)
	case domain.ModelExponential:
		sold := c.soldFraction(remaining)
		price = float64(c.BasePriceSats) * math.Exp(c.DecayFactor*sold)
	default:
		price = float64(c.BasePriceSats)
	}

	p := int64(math.Ceil(price))
	if p < 1 {
		p = 1
	}
	return p
}

// soldFraction is (total - remaining) / total clamped to [0, 1].
func (c Curve) soldFraction(remaining int64) float64 {
	if c.TotalSupply <= 0 {
		return 0
	}
	sold := c.TotalSupply - remaining
	if sold < 0 {
		sold = 0
	}
	if sold > c.TotalSupply {
		sold = c.TotalSupply
	}
	return float64(sold) / float64(c.TotalSupply)
}

// TotalCost returns the exact cost of buying n units using marginal
// pricing: each unit sold shifts remaining and therefore the next
// unit's price. O(n); interactive quote sizes only. For very large n
// use ApproxTotalCost and verify against this in tests.
func (c Curve) TotalCost(remaining, n int64) (int64, error) {
	if n < 0 {
		return 0, fmt.Errorf("%w: negative quantity %d", ErrInvalidCurve, n)
	}
	if n > remaining {
		return 0, fmt.Errorf("%w: want %d units, %d remaining", ErrInsufficientSupply, n, remaining)
	}

	var total int64
	for i := int64(0); i < n; i++ {
		total += c.PriceAt(remaining - i)
	}
	return total, nil
}

// ApproxTotalCost estimates the cost of buying n units with a
// closed-form summation instead of the O(n) loop. The estimate replaces
// the unit-by-unit sum with the integral of the continuous curve; it is
// for display and sizing only, never for settlement.
func (c Curve) ApproxTotalCost(remaining, n int64) (int64, error) {
	if n < 0 {
		return 0, fmt.Errorf("%w: negative quantity %d", ErrInvalidCurve, n)
	}
	if n > remaining {
		return 0, fmt.Errorf("%w: want %d units, %d remaining", ErrInsufficientSupply, n, remaining)
	}
	if n == 0 {
		return 0, nil
	}

	base := float64(c.BasePriceSats)
	hi := float64(remaining) + 1 // first unit priced at remaining
	lo := float64(remaining-n) + 1

	var total float64
	switch c.Model {
	case domain.ModelSqrtDecay:
		// ∫ base/sqrt(x+1) dx = 2*base*sqrt(x+1)
		total = 2 * base * (math.Sqrt(hi+1) - math.Sqrt(lo+1))
	case domain.ModelLinear:
		// Arithmetic series: average of first and last marginal price.
		first := c.PriceAt(remaining)
		last := c.PriceAt(remaining - n + 1)
		total = float64(first+last) / 2 * float64(n)
	case domain.ModelExponential:
		if c.DecayFactor == 0 || c.TotalSupply <= 0 {
			total = base * float64(n)
			break
		}
		// ∫ base*exp(k*(T-x)/T) dx = -(T/k)*base*exp(k*(T-x)/T)
		k := c.DecayFactor
		T := float64(c.TotalSupply)
		total = (T / k) * base * (math.Exp(k*(T-lo)/T) - math.Exp(k*(T-hi)/T))
	default:
		total = base * float64(n)
	}

	if total < float64(n) {
		total = float64(n) // never below one sat per unit
	}
	return int64(math.Round(total)), nil
}

// SpendQuote is the result of converting a satoshi budget into the
// largest affordable unit count.
type SpendQuote struct {
	Tokens        int64 // units affordable
	TotalCost     int64 // exact marginal cost of those units
	RemainingSats int64 // budget - TotalCost; TotalCost + RemainingSats == budget
	AvgPriceSats  int64 // TotalCost / Tokens, 0 when Tokens == 0
	CurrentPrice  int64 // marginal price before the purchase
	NextPrice     int64 // marginal price after the purchase
}

// TokensForSpend greedily accumulates units while the running total
// plus the next unit's price stays within budget, stopping at the
// largest affordable integer count. No sats are lost or fabricated:
// TotalCost + RemainingSats == budget exactly.
func (c Curve) TokensForSpend(remaining, budget int64) (SpendQuote, error) {
	if budget < 0 {
		return SpendQuote{}, fmt.Errorf("%w: negative budget %d", ErrInvalidCurve, budget)
	}

	q := SpendQuote{CurrentPrice: c.PriceAt(remaining)}

	for q.Tokens < remaining {
		next := c.PriceAt(remaining - q.Tokens)
		if q.TotalCost+next > budget {
			break
		}
		q.TotalCost += next
		q.Tokens++
	}

	q.RemainingSats = budget - q.TotalCost
	q.NextPrice = c.PriceAt(remaining - q.Tokens)
	if q.Tokens > 0 {
		q.AvgPriceSats = q.TotalCost / q.Tokens
	}
	return q, nil
}
