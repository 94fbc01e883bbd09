package enginerpc

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"negotiation-engine/internal/apperr"
	"negotiation-engine/internal/model"
)

// EngineService is the subset of internal/engine.Engine the server needs.
// Declared here rather than imported to avoid enginerpc<->engine import
// cycles; internal/engine.Engine satisfies this interface.
type EngineService interface {
	Negotiate(ctx context.Context, req model.NegotiationRequest) (model.Decision, error)
	CheckDealStatus(correlationID, dealID string) (DealStatusResult, error)
}

// DealStatusResult is the engine-side result of a status check, already
// shaped for wire encoding.
type DealStatusResult struct {
	Status              string
	ReservationCode     string
	Proof               *model.PaymentProof
	PaymentInstructions *model.PaymentInstructions
}

// NewRouter builds the engine-side chi router for the internal API,
// matching the net/http+JSON texture of every teacher-pack service
// (walletserver, cmd/explorer) rather than a generated RPC stub.
func NewRouter(svc EngineService) chi.Router {
	r := chi.NewRouter()
	r.Post("/internal/v1/negotiate", handleNegotiate(svc))
	r.Post("/internal/v1/deals/{deal_id}/status", handleDealStatus(svc))
	return r
}

func handleNegotiate(svc EngineService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Request-Id")

		var wireReq NegotiateWireRequest
		if err := json.NewDecoder(r.Body).Decode(&wireReq); err != nil {
			writeError(w, apperr.New(apperr.BadRequest, correlationID, "malformed request body"))
			return
		}
		req := model.NegotiationRequest{
			CorrelationID: correlationID,
			IdentityID:    wireReq.IdentityID,
			ItemID:        wireReq.ItemID,
			BidAmount:     wireReq.BidAmount,
			CurrencyCode:  wireReq.CurrencyCode,
			Reputation:    wireReq.Reputation,
		}

		decision, err := svc.Negotiate(r.Context(), req)
		if err != nil {
			writeDomainError(w, correlationID, err)
			return
		}
		wire, err := EncodeDecision(decision)
		if err != nil {
			writeError(w, apperr.Wrap(apperr.Internal, correlationID, "encode decision", err))
			return
		}
		writeJSON(w, http.StatusOK, wire)
	}
}

func handleDealStatus(svc EngineService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Request-Id")
		dealID := chi.URLParam(r, "deal_id")

		result, err := svc.CheckDealStatus(correlationID, dealID)
		if err != nil {
			writeDomainError(w, correlationID, err)
			return
		}

		resp := dealStatusWire{Status: result.Status}
		if result.ReservationCode != "" {
			resp.ReservationCode = result.ReservationCode
		}
		if result.Proof != nil {
			resp.Proof = &paymentProofWire{
				TransactionHash:  result.Proof.TransactionHash,
				BlockOrSlot:      result.Proof.BlockOrSlot,
				SenderAddress:    result.Proof.SenderAddress,
				ConfirmationTime: result.Proof.ConfirmationTime.Unix(),
			}
		}
		if result.PaymentInstructions != nil {
			resp.PaymentInstructions = &paymentInstructionsWire{
				DealID:        result.PaymentInstructions.DealID,
				WalletAddress: result.PaymentInstructions.WalletAddress,
				CryptoAmount:  result.PaymentInstructions.CryptoAmount,
				Currency:      result.PaymentInstructions.Currency,
				Memo:          result.PaymentInstructions.Memo,
				Network:       result.PaymentInstructions.Network,
				ExpiresAt:     result.PaymentInstructions.ExpiresAt.Unix(),
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type dealStatusWire struct {
	Status              string                   `json:"status"`
	ReservationCode     string                   `json:"reservation_code,omitempty"`
	Proof               *paymentProofWire        `json:"proof,omitempty"`
	PaymentInstructions *paymentInstructionsWire `json:"payment_instructions,omitempty"`
}

type paymentProofWire struct {
	TransactionHash  string `json:"transaction_hash"`
	BlockOrSlot      uint64 `json:"block_or_slot"`
	SenderAddress    string `json:"sender_address"`
	ConfirmationTime int64  `json:"confirmation_time"`
}

type paymentInstructionsWire struct {
	DealID        string          `json:"deal_id"`
	WalletAddress string          `json:"wallet_address"`
	CryptoAmount  decimal.Decimal `json:"crypto_amount"`
	Currency      string          `json:"currency"`
	Memo          string          `json:"memo"`
	Network       string          `json:"network"`
	ExpiresAt     int64           `json:"expires_at"`
}

func writeDomainError(w http.ResponseWriter, correlationID string, err error) {
	if ae, ok := apperr.As(err); ok {
		writeError(w, ae)
		return
	}
	writeError(w, apperr.Wrap(apperr.Internal, correlationID, "unexpected engine error", err))
}

func writeError(w http.ResponseWriter, err *apperr.Error) {
	writeJSON(w, internalStatusFor(err.Kind), EncodeError(err))
}

// internalStatusFor is used only for the internal RPC's own transport
// status (to distinguish success from failure at this hop); the edge
// applies its own, separately-specified Kind->HTTP-status mapping (spec §7)
// to the caller-facing response.
func internalStatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.BadRequest:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.FeatureDisabled:
		return http.StatusNotImplemented
	case apperr.StrategyUnavail, apperr.ChainUnavail, apperr.StoreUnavail:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
