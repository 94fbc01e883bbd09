package edgeserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"negotiation-engine/internal/apperr"
	"negotiation-engine/internal/deal"
	"negotiation-engine/internal/model"
	"negotiation-engine/internal/obslog"
	"negotiation-engine/internal/trace"
)

func (s *Server) handleNegotiate(w http.ResponseWriter, r *http.Request) {
	correlationID := correlationIDFrom(r)
	identityID := identityIDFrom(r)

	var body negotiateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperr.New(apperr.BadRequest, correlationID, "malformed request body"))
		return
	}
	if body.AgentDID != "" && body.AgentDID != identityID {
		writeError(w, apperr.New(apperr.BadRequest, correlationID, "agent_did does not match the verified caller identity"))
		return
	}
	if body.ItemID == "" || !body.BidAmount.IsPositive() || !model.AcceptedCurrencies[body.CurrencyCode] {
		writeError(w, apperr.New(apperr.BadRequest, correlationID, "invalid item_id, bid_amount, or currency_code"))
		return
	}

	s.logger.Event(obslog.EventNegotiationStarted, correlationID, identityID, "", map[string]any{"item_id": body.ItemID})

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.NegotiateTimeout)
	defer cancel()

	decision, err := s.engine.Negotiate(ctx, model.NegotiationRequest{
		CorrelationID: correlationID,
		IdentityID:    identityID,
		ItemID:        body.ItemID,
		BidAmount:     body.BidAmount,
		CurrencyCode:  body.CurrencyCode,
	})
	if err != nil {
		writeDomainError(w, correlationID, err)
		return
	}

	token, err := sessionToken()
	if err != nil {
		writeError(w, apperr.Wrap(apperr.Internal, correlationID, "generate session token", err))
		return
	}
	resp := decisionToResponseBody(decision, token, time.Now().UTC(), s.opts.SessionTTL)

	if accepted, ok := decision.(model.Accepted); ok {
		if lock, ok := accepted.Reveal.(model.PaymentLock); ok {
			ctx = trace.WithDealID(ctx, lock.DealID)
			status, err := s.engine.CheckDealStatus(ctx, correlationID, lock.DealID)
			if err != nil {
				writeDomainError(w, correlationID, err)
				return
			}
			if status.PaymentInstructions != nil {
				resp.Data["payment_instructions"] = paymentInstructionsFromModel(*status.PaymentInstructions)
			}
			s.logger.Event(obslog.EventOfferLockedForPayment, correlationID, identityID, lock.DealID, nil)
		} else {
			s.logger.Event(obslog.EventOfferAccepted, correlationID, identityID, "", nil)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDealStatus(w http.ResponseWriter, r *http.Request) {
	correlationID := correlationIDFrom(r)

	if !s.opts.CryptoEnabled {
		writeError(w, apperr.New(apperr.FeatureDisabled, correlationID, "crypto settlement is disabled"))
		return
	}

	dealID := mux.Vars(r)["deal_id"]
	if _, err := uuid.Parse(dealID); err != nil {
		writeError(w, apperr.New(apperr.BadRequest, correlationID, "deal_id is not a valid uuid"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.StatusTimeout)
	defer cancel()

	status, err := s.engine.CheckDealStatus(ctx, correlationID, dealID)
	if err != nil {
		writeDomainError(w, correlationID, err)
		return
	}

	resp := dealStatusResponseBody{Status: status.Status}
	if status.ReservationCode != "" {
		resp.Secret = &secretBody{ReservationCode: status.ReservationCode}
	}
	if status.Proof != nil {
		resp.Proof = &proofBody{
			TransactionHash:  status.Proof.TransactionHash,
			BlockOrSlot:      status.Proof.BlockOrSlot,
			SenderAddress:    status.Proof.SenderAddress,
			ConfirmationTime: status.Proof.ConfirmationTime.Unix(),
		}
	}
	if status.PaymentInstructions != nil {
		pi := paymentInstructionsFromModel(*status.PaymentInstructions)
		resp.PaymentInstructions = &pi
	}
	if status.Status == string(deal.StatusExpired) {
		s.logger.Event(obslog.EventDealExpired, correlationID, "", dealID, nil)
	}
	if status.Status == string(deal.StatusPaid) {
		s.logger.Event(obslog.EventPaymentVerified, correlationID, "", dealID, nil)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.ReadyCheckTimeout)
	defer cancel()

	// A probe deal id that will never exist: any typed domain response (even
	// NotFound/FeatureDisabled) proves the engine process answered. Only a
	// raw transport failure (ChainUnavail from the client's own "engine
	// unreachable" wrap, or an error that never became a typed apperr.Error)
	// means the engine itself did not respond.
	deps := map[string]string{"engine": "ok"}
	status := http.StatusOK
	if _, err := s.engine.CheckDealStatus(ctx, "readyz", uuid.Nil.String()); err != nil {
		if ae, ok := apperr.As(err); !ok || ae.Kind == apperr.ChainUnavail {
			deps["engine"] = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, map[string]any{"dependencies": deps})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func metricsHandler(m *obslog.Metrics) http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
