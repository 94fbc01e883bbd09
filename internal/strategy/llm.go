package strategy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"negotiation-engine/internal/model"
)

// llmPromptFields mirrors spec §4.4's named prompt inputs for an LLM-backed
// strategy. Concrete prompting and model wiring are out of scope (Non-goals);
// this adapter only shapes the request/response contract and enforces the
// floor-price confidentiality invariant on the way back.
type llmPromptFields struct {
	BusinessType string          `json:"business_type"`
	ItemName     string          `json:"item_name"`
	BasePrice    decimal.Decimal `json:"base_price"`
	FloorPrice   decimal.Decimal `json:"floor_price"`
	MarketLoad   string          `json:"market_load"`
	TriggerPrice decimal.Decimal `json:"trigger_price"`
	Bid          decimal.Decimal `json:"bid"`
	Reputation   *float64        `json:"reputation"`
}

type llmResponse struct {
	Kind          string         `json:"kind"`
	FinalPrice    *string        `json:"final_price,omitempty"`
	ProposedPrice *string        `json:"proposed_price,omitempty"`
	ReasonCode    string         `json:"reason_code,omitempty"`
	Message       string         `json:"message,omitempty"`
	TemplateID    string         `json:"template_id,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
}

// llmStrategy delegates to an external text model over HTTP. The model tag
// (config key "model") and endpoint (config key "endpoint") select which
// deployed model answers; neither is interpreted further here.
type llmStrategy struct {
	endpoint     string
	model        string
	businessType string
	client       *http.Client
}

func newLLMStrategy(cfg map[string]string) (Strategy, error) {
	endpoint := cfg["endpoint"]
	if endpoint == "" {
		return nil, fmt.Errorf("strategy: llm: missing endpoint")
	}
	return &llmStrategy{
		endpoint:     endpoint,
		model:        cfg["model"],
		businessType: cfg["business_type"],
		client:       &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *llmStrategy) Evaluate(ctx context.Context, item model.Item, bid decimal.Decimal, reputation *float64, correlationID string) (model.Decision, error) {
	fields := llmPromptFields{
		BusinessType: s.businessType,
		ItemName:     item.Name,
		BasePrice:    item.BasePrice,
		FloorPrice:   item.FloorPrice,
		TriggerPrice: item.FloorPrice,
		Bid:          bid,
		Reputation:   reputation,
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("strategy: llm: encode prompt: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("strategy: llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", correlationID)
	if s.model != "" {
		req.Header.Set("X-Model", s.model)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("strategy: llm: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("strategy: llm: unexpected status %d", resp.StatusCode)
	}

	var lr llmResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("strategy: llm: decode response: %w", err)
	}
	return decisionFromLLMResponse(lr, item.FloorPrice)
}

// decisionFromLLMResponse converts the wire response into the closed
// Decision sum type, stripping the floor price from every caller-visible
// field the model might have echoed it back into (spec §4.4).
func decisionFromLLMResponse(lr llmResponse, floorPrice decimal.Decimal) (model.Decision, error) {
	stripFloorPrice(&lr, floorPrice)
	switch lr.Kind {
	case "accepted":
		if lr.FinalPrice == nil {
			return nil, fmt.Errorf("strategy: llm: accepted response missing final_price")
		}
		price, err := decimal.NewFromString(*lr.FinalPrice)
		if err != nil {
			return nil, fmt.Errorf("strategy: llm: invalid final_price: %w", err)
		}
		return model.Accepted{FinalPrice: price}, nil
	case "countered":
		if lr.ProposedPrice == nil {
			return nil, fmt.Errorf("strategy: llm: countered response missing proposed_price")
		}
		price, err := decimal.NewFromString(*lr.ProposedPrice)
		if err != nil {
			return nil, fmt.Errorf("strategy: llm: invalid proposed_price: %w", err)
		}
		if price.LessThan(floorPrice) {
			price = floorPrice
		}
		return model.Countered{ProposedPrice: price, ReasonCode: lr.ReasonCode, Message: lr.Message}, nil
	case "rejected":
		return model.Rejected{ReasonCode: lr.ReasonCode}, nil
	case "ui_required":
		return model.UiRequired{TemplateID: lr.TemplateID, Context: lr.Context}, nil
	default:
		return nil, fmt.Errorf("strategy: llm: unrecognized decision kind %q", lr.Kind)
	}
}

// stripFloorPrice removes the floor price from the context map's own
// floor_price/FloorPrice keys, any context value that echoes its literal
// decimal text, and any occurrence of that text in message or reason_code —
// a model response can leak the floor price through any of these, not only
// a named context key.
func stripFloorPrice(lr *llmResponse, floorPrice decimal.Decimal) {
	floorText := floorPrice.String()
	for k, v := range lr.Context {
		if k == "floor_price" || k == "FloorPrice" {
			delete(lr.Context, k)
			continue
		}
		if s, ok := v.(string); ok && strings.Contains(s, floorText) {
			delete(lr.Context, k)
		}
	}
	lr.Message = strings.ReplaceAll(lr.Message, floorText, "[redacted]")
	lr.ReasonCode = strings.ReplaceAll(lr.ReasonCode, floorText, "[redacted]")
}

func init() {
	Register("llm", newLLMStrategy)
}
