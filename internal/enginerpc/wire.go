// Package enginerpc is the internal HTTP+JSON API between the edge and the
// engine (spec §6.2). Every teacher-pack HTTP service (walletserver,
// cmd/explorer) exposes its API this way rather than hand-rolling gRPC, so
// this transport choice matches the corpus's own texture; the Reveal field
// stays a true discriminated union in Go and is a tagged JSON object on the
// wire, never two optional fields (spec §9 redesign note).
package enginerpc

import (
	"fmt"

	"github.com/shopspring/decimal"

	"negotiation-engine/internal/apperr"
	"negotiation-engine/internal/model"
)

// NegotiateWireRequest is the JSON body of an internal Negotiate call.
type NegotiateWireRequest struct {
	CorrelationID string          `json:"correlation_id"`
	IdentityID    string          `json:"identity_id"`
	ItemID        string          `json:"item_id"`
	BidAmount     decimal.Decimal `json:"bid_amount"`
	CurrencyCode  string          `json:"currency_code"`
	Reputation    *float64        `json:"reputation,omitempty"`
}

// DecisionWire is the tagged-union wire shape for a Decision. Exactly the
// fields relevant to Kind are populated.
type DecisionWire struct {
	Kind          string          `json:"kind"`
	FinalPrice    decimal.Decimal `json:"final_price,omitempty"`
	Reveal        *RevealWire     `json:"reveal,omitempty"`
	ProposedPrice decimal.Decimal `json:"proposed_price,omitempty"`
	ReasonCode    string          `json:"reason_code,omitempty"`
	Message       string          `json:"message,omitempty"`
	TemplateID    string          `json:"template_id,omitempty"`
	Context       map[string]any  `json:"context,omitempty"`
}

// RevealWire is the tagged-union wire shape for a Reveal.
type RevealWire struct {
	Kind   string `json:"kind"`
	Code   string `json:"code,omitempty"`
	DealID string `json:"deal_id,omitempty"`
}

// ErrorWire is the body returned on a non-2xx internal RPC response.
type ErrorWire struct {
	Kind          string `json:"kind"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
}

func EncodeDecision(d model.Decision) (DecisionWire, error) {
	switch v := d.(type) {
	case model.Accepted:
		w := DecisionWire{Kind: "accepted", FinalPrice: v.FinalPrice}
		if v.Reveal != nil {
			rw, err := encodeReveal(v.Reveal)
			if err != nil {
				return DecisionWire{}, err
			}
			w.Reveal = &rw
		}
		return w, nil
	case model.Countered:
		return DecisionWire{Kind: "countered", ProposedPrice: v.ProposedPrice, ReasonCode: v.ReasonCode, Message: v.Message}, nil
	case model.Rejected:
		return DecisionWire{Kind: "rejected", ReasonCode: v.ReasonCode}, nil
	case model.UiRequired:
		return DecisionWire{Kind: "ui_required", TemplateID: v.TemplateID, Context: v.Context}, nil
	default:
		return DecisionWire{}, fmt.Errorf("enginerpc: unrecognized decision type %T", d)
	}
}

func encodeReveal(r model.Reveal) (RevealWire, error) {
	switch v := r.(type) {
	case model.ReservationCode:
		return RevealWire{Kind: "reservation_code", Code: v.Code}, nil
	case model.PaymentLock:
		return RevealWire{Kind: "payment_lock", DealID: v.DealID}, nil
	default:
		return RevealWire{}, fmt.Errorf("enginerpc: unrecognized reveal type %T", r)
	}
}

func DecodeDecision(w DecisionWire) (model.Decision, error) {
	switch w.Kind {
	case "accepted":
		d := model.Accepted{FinalPrice: w.FinalPrice}
		if w.Reveal != nil {
			r, err := decodeReveal(*w.Reveal)
			if err != nil {
				return nil, err
			}
			d.Reveal = r
		}
		return d, nil
	case "countered":
		return model.Countered{ProposedPrice: w.ProposedPrice, ReasonCode: w.ReasonCode, Message: w.Message}, nil
	case "rejected":
		return model.Rejected{ReasonCode: w.ReasonCode}, nil
	case "ui_required":
		return model.UiRequired{TemplateID: w.TemplateID, Context: w.Context}, nil
	default:
		return nil, fmt.Errorf("enginerpc: unrecognized wire decision kind %q", w.Kind)
	}
}

func decodeReveal(w RevealWire) (model.Reveal, error) {
	switch w.Kind {
	case "reservation_code":
		return model.ReservationCode{Code: w.Code}, nil
	case "payment_lock":
		return model.PaymentLock{DealID: w.DealID}, nil
	default:
		return nil, fmt.Errorf("enginerpc: unrecognized wire reveal kind %q", w.Kind)
	}
}

func EncodeError(err *apperr.Error) ErrorWire {
	return ErrorWire{Kind: string(err.Kind), Message: err.Message, CorrelationID: err.CorrelationID}
}
