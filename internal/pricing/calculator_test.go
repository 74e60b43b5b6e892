package pricing

import (
	"math"
	"testing"
)

func bulkTable() *TierTable {
	return &TierTable{
		BasePricePerCredit: 0.09,
		Tiers: []Tier{
			{MinCredits: 0, MaxCredits: 10000, DiscountPercent: 0, Name: "Small"},
			{MinCredits: 10001, MaxCredits: 50000, DiscountPercent: 10, Name: "Bulk"},
		},
	}
}

func TestPriceMatchesBulkTier(t *testing.T) {
	result := Price(50000, bulkTable())

	if result.BasePrice != 4500 {
		t.Fatalf("expected base price 4500, got %d", result.BasePrice)
	}
	if result.DiscountPercent != 10 {
		t.Fatalf("expected 10%% discount, got %v", result.DiscountPercent)
	}
	if result.Price != 4050 {
		t.Fatalf("expected price 4050, got %d", result.Price)
	}
	if result.Savings != 450 {
		t.Fatalf("expected savings 450, got %d", result.Savings)
	}
	if result.TierName != "Bulk" {
		t.Fatalf("expected tier Bulk, got %s", result.TierName)
	}
}

func TestPriceOverflowTakesLastTier(t *testing.T) {
	result := Price(200000, bulkTable())

	if result.TierName != "Bulk" {
		t.Fatalf("overflow must apply the last tier, got %s", result.TierName)
	}
	if result.DiscountPercent != 10 {
		t.Fatalf("overflow must keep the last tier's discount, got %v", result.DiscountPercent)
	}
	if result.BasePrice != 18000 {
		t.Fatalf("expected base price 18000, got %d", result.BasePrice)
	}
	if result.Price != 16200 {
		t.Fatalf("expected price 16200, got %d", result.Price)
	}
}

func TestPriceWithoutTableUsesStandardRate(t *testing.T) {
	for _, table := range []*TierTable{nil, {}} {
		result := Price(1000, table)
		if result.BasePrice != 90 {
			t.Fatalf("expected base price 90, got %d", result.BasePrice)
		}
		if result.Price != 90 {
			t.Fatalf("expected price 90, got %d", result.Price)
		}
		if result.DiscountPercent != 0 {
			t.Fatalf("expected zero discount, got %v", result.DiscountPercent)
		}
		if result.TierName != StandardRateTierName {
			t.Fatalf("expected standard rate tier, got %s", result.TierName)
		}
		if math.Abs(result.PricePerCredit-0.09) > 1e-9 {
			t.Fatalf("expected per-credit rate 0.09, got %v", result.PricePerCredit)
		}
	}
}

func TestPriceDefaultsMissingBaseRate(t *testing.T) {
	table := &TierTable{
		Tiers: []Tier{{MinCredits: 0, MaxCredits: 100000, DiscountPercent: 0, Name: "Flat"}},
	}

	result := Price(1000, table)
	if result.BasePrice != 90 {
		t.Fatalf("expected base price from default rate, got %d", result.BasePrice)
	}
	if result.TierName != "Flat" {
		t.Fatalf("expected tier Flat, got %s", result.TierName)
	}
}

func TestPriceMonotonicWithinTier(t *testing.T) {
	table := bulkTable()
	previous := int64(-1)
	for credits := int64(10001); credits <= 50000; credits += 4999 {
		result := Price(credits, table)
		if result.Price < previous {
			t.Fatalf("price decreased within a tier at %d credits: %d < %d", credits, result.Price, previous)
		}
		previous = result.Price
	}
}

func TestPricePerCreditNonIncreasingAcrossTiers(t *testing.T) {
	table := &TierTable{
		BasePricePerCredit: 0.09,
		Tiers: []Tier{
			{MinCredits: 0, MaxCredits: 1000, DiscountPercent: 0, Name: "Starter"},
			{MinCredits: 1001, MaxCredits: 10000, DiscountPercent: 5, Name: "Indie"},
			{MinCredits: 10001, MaxCredits: 100000, DiscountPercent: 15, Name: "Studio"},
		},
	}

	rates := []float64{
		Price(500, table).PricePerCredit,
		Price(5000, table).PricePerCredit,
		Price(50000, table).PricePerCredit,
	}
	for i := 1; i < len(rates); i++ {
		if rates[i] > rates[i-1] {
			t.Fatalf("per-credit rate increased across tiers: %v", rates)
		}
	}
}

func TestPriceFirstMatchingTierWinsOnOverlap(t *testing.T) {
	table := &TierTable{
		BasePricePerCredit: 0.09,
		Tiers: []Tier{
			{MinCredits: 0, MaxCredits: 1000, DiscountPercent: 2, Name: "First"},
			{MinCredits: 500, MaxCredits: 2000, DiscountPercent: 8, Name: "Second"},
		},
	}

	result := Price(700, table)
	if result.TierName != "First" {
		t.Fatalf("expected first overlapping tier to win, got %s", result.TierName)
	}
}

func TestPriceRoundsToWholeCurrencyUnits(t *testing.T) {
	table := &TierTable{
		BasePricePerCredit: 0.09,
		Tiers:              []Tier{{MinCredits: 0, MaxCredits: 100000, DiscountPercent: 7, Name: "Odd"}},
	}

	result := Price(111, table)
	// 111 * 0.09 = 9.99 -> 10; discounted 9.2907 -> 9; savings 0.6993 -> 1.
	if result.BasePrice != 10 {
		t.Fatalf("expected rounded base price 10, got %d", result.BasePrice)
	}
	if result.Price != 9 {
		t.Fatalf("expected rounded price 9, got %d", result.Price)
	}
	if result.Savings != 1 {
		t.Fatalf("expected rounded savings 1, got %d", result.Savings)
	}
	expectedRate := (111 * 0.09 * 0.93) / 111
	if math.Abs(result.PricePerCredit-expectedRate) > 1e-9 {
		t.Fatalf("per-credit rate must keep full precision, got %v", result.PricePerCredit)
	}
}
