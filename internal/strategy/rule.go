package strategy

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"negotiation-engine/internal/model"
)

const defaultHighValueThreshold = "1000"

// ruleStrategy is the deterministic built-in (spec §4.4): a below-floor bid
// is countered at the floor price, an in-range bid is accepted at the bid
// price, and a bid above the high-value threshold requires UI confirmation.
type ruleStrategy struct {
	highValueThreshold decimal.Decimal
}

func newRuleStrategy(cfg map[string]string) (Strategy, error) {
	raw := cfg["high_value_threshold"]
	if raw == "" {
		raw = defaultHighValueThreshold
	}
	threshold, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("strategy: rule: invalid high_value_threshold %q: %w", raw, err)
	}
	return &ruleStrategy{highValueThreshold: threshold}, nil
}

func (r *ruleStrategy) Evaluate(ctx context.Context, item model.Item, bid decimal.Decimal, reputation *float64, correlationID string) (model.Decision, error) {
	if bid.LessThan(item.FloorPrice) {
		return model.Countered{
			ProposedPrice: item.FloorPrice,
			ReasonCode:    "BELOW_FLOOR",
		}, nil
	}
	if bid.GreaterThan(r.highValueThreshold) {
		return model.UiRequired{
			TemplateID: "high_value_confirm",
			Context: map[string]any{
				"item_name": item.Name,
				"price":     bid.String(),
			},
		}, nil
	}
	return model.Accepted{FinalPrice: bid}, nil
}
