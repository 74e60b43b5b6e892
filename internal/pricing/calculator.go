// Package pricing maps requested credit quantities to prices using a table of
// discount tiers. The calculator is a pure function over its inputs; table
// storage and caching live in the billing package.
package pricing

import "math"

const (
	// DefaultBasePricePerCredit applies when a table declares no base rate or
	// no table is available at all.
	DefaultBasePricePerCredit = 0.09
	// StandardRateTierName labels quotes computed without a tier table.
	StandardRateTierName = "Standard Rate"
)

// Tier is one contiguous credit range with its discount. Bounds are inclusive.
type Tier struct {
	MinCredits      int64   `json:"minCredits"`
	MaxCredits      int64   `json:"maxCredits"`
	DiscountPercent float64 `json:"discountPercent"`
	Name            string  `json:"name"`
}

// Contains reports whether the quantity falls inside the tier's bounds.
func (t Tier) Contains(credits int64) bool {
	return credits >= t.MinCredits && credits <= t.MaxCredits
}

// TierTable is an ordered discount table plus its base per-credit rate. Tiers
// are matched in table order; the table is trusted to be non-overlapping and
// is not validated here.
type TierTable struct {
	BasePricePerCredit float64 `json:"basePricePerCredit"`
	Tiers              []Tier  `json:"discountTiers"`
}

// Result is the fully derived quote for one credit quantity. BasePrice, Price
// and Savings carry whole currency units; PricePerCredit keeps full precision.
type Result struct {
	Credits         int64   `json:"credits"`
	BasePrice       int64   `json:"basePrice"`
	DiscountPercent float64 `json:"discountPercent"`
	Price           int64   `json:"price"`
	Savings         int64   `json:"savings"`
	PricePerCredit  float64 `json:"pricePerCredit"`
	TierName        string  `json:"tierName"`
}

// Price computes the quote for the requested quantity against the table.
//
// A nil or empty table falls back to the standard rate with zero discount.
// Quantities beyond every tier's range take the last tier in the table, which
// acts as an open-ended ceiling: overflow keeps the highest defined discount
// rather than reverting to zero. Callers must guarantee credits > 0; the
// calculator does not guard the per-credit division.
func Price(credits int64, table *TierTable) Result {
	if table == nil || len(table.Tiers) == 0 {
		basePrice := float64(credits) * DefaultBasePricePerCredit
		return Result{
			Credits:         credits,
			BasePrice:       roundCurrency(basePrice),
			DiscountPercent: 0,
			Price:           roundCurrency(basePrice),
			Savings:         0,
			PricePerCredit:  basePrice / float64(credits),
			TierName:        StandardRateTierName,
		}
	}

	basePricePerCredit := table.BasePricePerCredit
	if basePricePerCredit <= 0 {
		basePricePerCredit = DefaultBasePricePerCredit
	}

	tier := table.Tiers[len(table.Tiers)-1]
	for _, candidate := range table.Tiers {
		if candidate.Contains(credits) {
			tier = candidate
			break
		}
	}

	basePrice := float64(credits) * basePricePerCredit
	discounted := basePrice * (1 - tier.DiscountPercent/100)
	savings := basePrice - discounted

	return Result{
		Credits:         credits,
		BasePrice:       roundCurrency(basePrice),
		DiscountPercent: tier.DiscountPercent,
		Price:           roundCurrency(discounted),
		Savings:         roundCurrency(savings),
		PricePerCredit:  discounted / float64(credits),
		TierName:        tier.Name,
	}
}

func roundCurrency(value float64) int64 {
	return int64(math.Round(value))
}
