package strategy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"negotiation-engine/internal/model"
)

func testItem() model.Item {
	return model.Item{
		ID:         "room-101",
		Name:       "Room 101",
		BasePrice:  decimal.NewFromInt(200),
		FloorPrice: decimal.NewFromInt(150),
		Currency:   "USD",
		Active:     true,
	}
}

func TestRuleStrategyAccepts(t *testing.T) {
	s, err := Build("rule", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	d, err := s.Evaluate(context.Background(), testItem(), decimal.NewFromInt(160), nil, "corr-1")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	acc, ok := d.(model.Accepted)
	if !ok {
		t.Fatalf("expected Accepted, got %T", d)
	}
	if !acc.FinalPrice.Equal(decimal.NewFromInt(160)) {
		t.Fatalf("unexpected final price: %s", acc.FinalPrice)
	}
}

func TestRuleStrategyCounters(t *testing.T) {
	s, _ := Build("rule", nil)
	d, err := s.Evaluate(context.Background(), testItem(), decimal.NewFromInt(140), nil, "corr-2")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	c, ok := d.(model.Countered)
	if !ok {
		t.Fatalf("expected Countered, got %T", d)
	}
	if !c.ProposedPrice.Equal(decimal.NewFromInt(150)) || c.ReasonCode != "BELOW_FLOOR" {
		t.Fatalf("unexpected counter: %+v", c)
	}
}

func TestRuleStrategyRequiresUIAboveThreshold(t *testing.T) {
	s, _ := Build("rule", map[string]string{"high_value_threshold": "1000"})
	d, err := s.Evaluate(context.Background(), testItem(), decimal.NewFromInt(1200), nil, "corr-3")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	ui, ok := d.(model.UiRequired)
	if !ok {
		t.Fatalf("expected UiRequired, got %T", d)
	}
	if ui.TemplateID != "high_value_confirm" || ui.Context["item_name"] != "Room 101" {
		t.Fatalf("unexpected ui_required context: %+v", ui.Context)
	}
}

func TestBuildUnknownStrategyErrors(t *testing.T) {
	if _, err := Build("does-not-exist", nil); err == nil {
		t.Fatalf("expected error for unregistered strategy")
	}
}

func TestLLMStrategyStripsFloorPriceFromContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"kind":        "ui_required",
			"template_id": "high_value_confirm",
			"context": map[string]any{
				"item_name":   "Room 101",
				"floor_price": "150",
			},
		})
	}))
	defer srv.Close()

	s, err := Build("llm", map[string]string{"endpoint": srv.URL})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	d, err := s.Evaluate(context.Background(), testItem(), decimal.NewFromInt(1200), nil, "corr-4")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	ui, ok := d.(model.UiRequired)
	if !ok {
		t.Fatalf("expected UiRequired, got %T", d)
	}
	if _, leaked := ui.Context["floor_price"]; leaked {
		t.Fatalf("floor_price leaked into context: %+v", ui.Context)
	}
}

func TestLLMStrategyStripsFloorPriceFromMessageAndReasonCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		proposed := "140"
		_ = json.NewEncoder(w).Encode(map[string]any{
			"kind":           "countered",
			"proposed_price": &proposed,
			"reason_code":    "below floor of 150",
			"message":        "the floor for this item is 150, try again",
		})
	}))
	defer srv.Close()

	s, err := Build("llm", map[string]string{"endpoint": srv.URL})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	d, err := s.Evaluate(context.Background(), testItem(), decimal.NewFromInt(140), nil, "corr-6")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	c, ok := d.(model.Countered)
	if !ok {
		t.Fatalf("expected Countered, got %T", d)
	}
	if strings.Contains(c.Message, "150") || strings.Contains(c.ReasonCode, "150") {
		t.Fatalf("floor price leaked into message or reason_code: %+v", c)
	}
}

func TestLLMStrategyClampsCounterBelowFloor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		proposed := "50"
		_ = json.NewEncoder(w).Encode(map[string]any{
			"kind":           "countered",
			"proposed_price": &proposed,
			"reason_code":    "MARKET_LOW",
		})
	}))
	defer srv.Close()

	s, _ := Build("llm", map[string]string{"endpoint": srv.URL})
	d, err := s.Evaluate(context.Background(), testItem(), decimal.NewFromInt(100), nil, "corr-5")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	c, ok := d.(model.Countered)
	if !ok {
		t.Fatalf("expected Countered, got %T", d)
	}
	if !c.ProposedPrice.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected counter clamped to floor 150, got %s", c.ProposedPrice)
	}
}
