package model

import "github.com/shopspring/decimal"

// NegotiationRequest is the input to the negotiation handler (§4.3).
type NegotiationRequest struct {
	CorrelationID string
	IdentityID    string
	ItemID        string
	BidAmount     decimal.Decimal
	CurrencyCode  string
	Reputation    *float64
}

// AcceptedCurrencies is the set of currency codes the negotiation handler
// will accept on a bid. Crypto settlement currencies (SOL, USDC) are
// configured separately (see config.Options) and are not bid currencies.
var AcceptedCurrencies = map[string]bool{
	"USD": true,
	"EUR": true,
	"GBP": true,
}
