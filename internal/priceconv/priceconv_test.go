package priceconv

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestConvertUsesFixedRate(t *testing.T) {
	oracle := NewFixedRateOracle(decimal.NewFromInt(100), decimal.NewFromInt(1), "SOL", "USDC")
	c := NewConverter(oracle)

	amount, err := c.Convert(decimal.NewFromInt(160), "SOL")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !amount.Equal(decimal.NewFromFloat(1.6)) {
		t.Fatalf("expected 1.6 SOL, got %s", amount)
	}
}

func TestConvertCachesRateWithinTTL(t *testing.T) {
	calls := 0
	oracle := countingOracle{fn: func(currency string) (decimal.Decimal, error) {
		calls++
		return decimal.NewFromInt(100), nil
	}}
	c := NewConverter(&oracle)
	fakeNow := time.Unix(1700000000, 0)
	c.now = func() time.Time { return fakeNow }

	if _, err := c.Convert(decimal.NewFromInt(100), "SOL"); err != nil {
		t.Fatalf("Convert 1: %v", err)
	}
	if _, err := c.Convert(decimal.NewFromInt(200), "SOL"); err != nil {
		t.Fatalf("Convert 2: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 oracle call within TTL, got %d", calls)
	}

	fakeNow = fakeNow.Add(6 * time.Minute)
	if _, err := c.Convert(decimal.NewFromInt(300), "SOL"); err != nil {
		t.Fatalf("Convert 3: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected a refreshed oracle call after TTL expiry, got %d calls", calls)
	}
}

type countingOracle struct {
	fn func(currency string) (decimal.Decimal, error)
}

func (o *countingOracle) USDPrice(currency string) (decimal.Decimal, error) {
	return o.fn(currency)
}
