package enginerpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"negotiation-engine/internal/apperr"
	"negotiation-engine/internal/model"
)

// Client is the edge-side caller of the engine's internal HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// Negotiate calls the engine's negotiate endpoint, carrying the
// correlation id as X-Request-Id (spec §6.2).
func (c *Client) Negotiate(ctx context.Context, req model.NegotiationRequest) (model.Decision, error) {
	wireReq := NegotiateWireRequest{
		CorrelationID: req.CorrelationID,
		IdentityID:    req.IdentityID,
		ItemID:        req.ItemID,
		BidAmount:     req.BidAmount,
		CurrencyCode:  req.CurrencyCode,
		Reputation:    req.Reputation,
	}
	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("enginerpc: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/v1/negotiate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("enginerpc: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-Id", req.CorrelationID)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apperr.Wrap(apperr.ChainUnavail, req.CorrelationID, "engine unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var ew ErrorWire
		_ = json.NewDecoder(resp.Body).Decode(&ew)
		if ew.Kind == "" {
			ew.Kind = string(apperr.Internal)
		}
		return nil, apperr.New(apperr.Kind(ew.Kind), req.CorrelationID, ew.Message)
	}

	var wire DecisionWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("enginerpc: decode response: %w", err)
	}
	return DecodeDecision(wire)
}

// CheckDealStatus calls the engine's deal status endpoint.
func (c *Client) CheckDealStatus(ctx context.Context, correlationID, dealID string) (DealStatusResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/v1/deals/"+dealID+"/status", nil)
	if err != nil {
		return DealStatusResult{}, fmt.Errorf("enginerpc: build request: %w", err)
	}
	httpReq.Header.Set("X-Request-Id", correlationID)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return DealStatusResult{}, apperr.Wrap(apperr.ChainUnavail, correlationID, "engine unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var ew ErrorWire
		_ = json.NewDecoder(resp.Body).Decode(&ew)
		if ew.Kind == "" {
			ew.Kind = string(apperr.Internal)
		}
		return DealStatusResult{}, apperr.New(apperr.Kind(ew.Kind), correlationID, ew.Message)
	}

	var wire dealStatusWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return DealStatusResult{}, fmt.Errorf("enginerpc: decode response: %w", err)
	}
	return decodeDealStatusWire(wire), nil
}

func decodeDealStatusWire(w dealStatusWire) DealStatusResult {
	result := DealStatusResult{Status: w.Status, ReservationCode: w.ReservationCode}
	if w.Proof != nil {
		result.Proof = &model.PaymentProof{
			TransactionHash:  w.Proof.TransactionHash,
			BlockOrSlot:      w.Proof.BlockOrSlot,
			SenderAddress:    w.Proof.SenderAddress,
			ConfirmationTime: time.Unix(w.Proof.ConfirmationTime, 0).UTC(),
		}
	}
	if w.PaymentInstructions != nil {
		result.PaymentInstructions = &model.PaymentInstructions{
			DealID:        w.PaymentInstructions.DealID,
			WalletAddress: w.PaymentInstructions.WalletAddress,
			CryptoAmount:  w.PaymentInstructions.CryptoAmount,
			Currency:      w.PaymentInstructions.Currency,
			Memo:          w.PaymentInstructions.Memo,
			Network:       w.PaymentInstructions.Network,
			ExpiresAt:     time.Unix(w.PaymentInstructions.ExpiresAt, 0).UTC(),
		}
	}
	return result
}
