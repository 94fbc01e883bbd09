package enginerpc

import (
	"testing"

	"github.com/shopspring/decimal"

	"negotiation-engine/internal/model"
)

func TestEncodeDecodeDecisionRoundTripAccepted(t *testing.T) {
	d := model.Accepted{
		FinalPrice: decimal.NewFromInt(160),
		Reveal:     model.ReservationCode{Code: "RES-abc123"},
	}
	wire, err := EncodeDecision(d)
	if err != nil {
		t.Fatalf("EncodeDecision: %v", err)
	}
	if wire.Kind != "accepted" || wire.Reveal.Kind != "reservation_code" {
		t.Fatalf("unexpected wire shape: %+v", wire)
	}

	back, err := DecodeDecision(wire)
	if err != nil {
		t.Fatalf("DecodeDecision: %v", err)
	}
	acc, ok := back.(model.Accepted)
	if !ok {
		t.Fatalf("expected Accepted, got %T", back)
	}
	rc, ok := acc.Reveal.(model.ReservationCode)
	if !ok || rc.Code != "RES-abc123" {
		t.Fatalf("unexpected reveal after round trip: %+v", acc.Reveal)
	}
}

func TestEncodeDecodeDecisionRoundTripPaymentLock(t *testing.T) {
	d := model.Accepted{
		FinalPrice: decimal.NewFromInt(160),
		Reveal:     model.PaymentLock{DealID: "deal-1"},
	}
	wire, err := EncodeDecision(d)
	if err != nil {
		t.Fatalf("EncodeDecision: %v", err)
	}
	back, err := DecodeDecision(wire)
	if err != nil {
		t.Fatalf("DecodeDecision: %v", err)
	}
	acc := back.(model.Accepted)
	lock, ok := acc.Reveal.(model.PaymentLock)
	if !ok || lock.DealID != "deal-1" {
		t.Fatalf("unexpected reveal after round trip: %+v", acc.Reveal)
	}
}

func TestEncodeDecodeDecisionRoundTripCountered(t *testing.T) {
	d := model.Countered{ProposedPrice: decimal.NewFromInt(150), ReasonCode: "BELOW_FLOOR"}
	wire, err := EncodeDecision(d)
	if err != nil {
		t.Fatalf("EncodeDecision: %v", err)
	}
	back, err := DecodeDecision(wire)
	if err != nil {
		t.Fatalf("DecodeDecision: %v", err)
	}
	c, ok := back.(model.Countered)
	if !ok || c.ReasonCode != "BELOW_FLOOR" {
		t.Fatalf("unexpected decision after round trip: %+v", back)
	}
}

func TestDecodeDecisionRejectsUnknownKind(t *testing.T) {
	if _, err := DecodeDecision(DecisionWire{Kind: "bogus"}); err == nil {
		t.Fatalf("expected error for unrecognized decision kind")
	}
}
