package edgeserver

import (
	"time"

	"github.com/shopspring/decimal"

	"negotiation-engine/internal/model"
)

// negotiateRequestBody is the public wire shape of POST /v1/negotiate (spec
// §6.1). agent_did is carried in the body (not just the auth header) so a
// caller's stated identity is visible in the signed payload; the handler
// rejects a mismatch against the verified header identity as BadRequest.
type negotiateRequestBody struct {
	ItemID       string          `json:"item_id"`
	BidAmount    decimal.Decimal `json:"bid_amount"`
	CurrencyCode string          `json:"currency_code"`
	AgentDID     string          `json:"agent_did"`
}

// negotiateResponseBody is the public response shape for every Decision
// variant, matching spec §6.1's single discriminated envelope
// (status + data | action_required) rather than per-variant response types.
type negotiateResponseBody struct {
	SessionToken    string         `json:"session_token"`
	Status          string         `json:"status"`
	ValidUntil      int64          `json:"valid_until"`
	PaymentRequired bool           `json:"payment_required,omitempty"`
	Data            map[string]any `json:"data,omitempty"`
	ActionRequired  map[string]any `json:"action_required,omitempty"`
}

// dealStatusResponseBody is the public response shape for
// POST /v1/deals/{deal_id}/status.
type dealStatusResponseBody struct {
	Status              string               `json:"status"`
	Secret              *secretBody          `json:"secret,omitempty"`
	Proof               *proofBody           `json:"proof,omitempty"`
	PaymentInstructions *paymentInstructions `json:"payment_instructions,omitempty"`
}

type secretBody struct {
	ReservationCode string `json:"reservation_code"`
}

type proofBody struct {
	TransactionHash  string `json:"transaction_hash"`
	BlockOrSlot      uint64 `json:"block_or_slot"`
	SenderAddress    string `json:"sender_address"`
	ConfirmationTime int64  `json:"confirmation_time"`
}

type paymentInstructions struct {
	DealID        string          `json:"deal_id"`
	WalletAddress string          `json:"wallet_address"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Memo          string          `json:"memo"`
	Network       string          `json:"network"`
	ExpiresAt     int64           `json:"expires_at"`
}

func paymentInstructionsFromModel(p model.PaymentInstructions) paymentInstructions {
	return paymentInstructions{
		DealID:        p.DealID,
		WalletAddress: p.WalletAddress,
		Amount:        p.CryptoAmount,
		Currency:      p.Currency,
		Memo:          p.Memo,
		Network:       p.Network,
		ExpiresAt:     p.ExpiresAt.Unix(),
	}
}

func decisionToResponseBody(d model.Decision, token string, now time.Time, sessionTTL time.Duration) negotiateResponseBody {
	resp := negotiateResponseBody{
		SessionToken: token,
		ValidUntil:   now.Add(sessionTTL).Unix(),
	}
	switch v := d.(type) {
	case model.Accepted:
		resp.Status = "accepted"
		data := map[string]any{"final_price": v.FinalPrice}
		switch reveal := v.Reveal.(type) {
		case model.ReservationCode:
			resp.PaymentRequired = false
			data["reservation_code"] = reveal.Code
		case model.PaymentLock:
			resp.PaymentRequired = true
			data["deal_id"] = reveal.DealID
		}
		resp.Data = data
	case model.Countered:
		resp.Status = "countered"
		resp.Data = map[string]any{
			"proposed_price": v.ProposedPrice,
			"reason_code":    v.ReasonCode,
			"message":        v.Message,
		}
	case model.Rejected:
		resp.Status = "rejected"
		resp.Data = map[string]any{"reason_code": v.ReasonCode}
	case model.UiRequired:
		resp.Status = "ui_required"
		resp.ActionRequired = map[string]any{
			"template": v.TemplateID,
			"context":  v.Context,
		}
	}
	return resp
}
