// Package priceconv converts a fiat final price into a crypto amount for
// payment instructions (spec §4.7). The use_fixed_rates=false behavior was
// an open question in the source spec; it is resolved here by introducing a
// RateOracle interface with a short-lived cache in front of it (spec §9).
package priceconv

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// RateOracle supplies the current USD price of one unit of a currency. No
// concrete backend (exchange API, on-chain pool) is wired; FixedRateOracle
// is the only built-in, used whenever use_fixed_rates=true or no oracle is
// configured.
type RateOracle interface {
	USDPrice(currency string) (decimal.Decimal, error)
}

// FixedRateOracle returns operator-configured constant rates.
type FixedRateOracle struct {
	rates map[string]decimal.Decimal
}

func NewFixedRateOracle(usdPerNative, usdPerStable decimal.Decimal, nativeCurrency, stableCurrency string) *FixedRateOracle {
	return &FixedRateOracle{
		rates: map[string]decimal.Decimal{
			nativeCurrency: usdPerNative,
			stableCurrency: usdPerStable,
		},
	}
}

func (o *FixedRateOracle) USDPrice(currency string) (decimal.Decimal, error) {
	rate, ok := o.rates[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("priceconv: no fixed rate configured for %q", currency)
	}
	return rate, nil
}

const cacheTTL = 5 * time.Minute

type cachedRate struct {
	rate      decimal.Decimal
	fetchedAt time.Time
}

// Converter turns a fiat amount into a crypto amount via an oracle, caching
// each currency's rate for cacheTTL so a slow upstream oracle isn't queried
// on every negotiation.
type Converter struct {
	oracle RateOracle

	mu    sync.Mutex
	cache map[string]cachedRate
	now   func() time.Time
}

func NewConverter(oracle RateOracle) *Converter {
	return &Converter{
		oracle: oracle,
		cache:  make(map[string]cachedRate),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Convert returns fiatAmount (assumed USD-equivalent) expressed in
// cryptoCurrency units, using the oracle's cached USD price for that currency.
func (c *Converter) Convert(fiatAmount decimal.Decimal, cryptoCurrency string) (decimal.Decimal, error) {
	rate, err := c.rateFor(cryptoCurrency)
	if err != nil {
		return decimal.Zero, err
	}
	if rate.IsZero() {
		return decimal.Zero, fmt.Errorf("priceconv: zero rate for %q", cryptoCurrency)
	}
	return fiatAmount.Div(rate), nil
}

func (c *Converter) rateFor(currency string) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.cache[currency]; ok && c.now().Sub(cached.fetchedAt) < cacheTTL {
		return cached.rate, nil
	}
	rate, err := c.oracle.USDPrice(currency)
	if err != nil {
		return decimal.Zero, err
	}
	c.cache[currency] = cachedRate{rate: rate, fetchedAt: c.now()}
	return rate, nil
}
