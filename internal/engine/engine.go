// Package engine implements the negotiation handler (spec §4.3) and the
// deal status handler (spec §4.5 Read), wiring the catalog, pricing
// strategy, deal repository, price converter and chain watcher together
// behind the internal RPC boundary (internal/enginerpc.EngineService).
package engine

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"negotiation-engine/internal/apperr"
	"negotiation-engine/internal/catalog"
	"negotiation-engine/internal/deal"
	"negotiation-engine/internal/enginerpc"
	"negotiation-engine/internal/model"
	"negotiation-engine/internal/obslog"
	"negotiation-engine/internal/priceconv"
	"negotiation-engine/internal/strategy"
)

// Options configures an Engine beyond its wired collaborators.
type Options struct {
	CryptoEnabled  bool
	CryptoCurrency string
	ReceivingWallet string
	Network        string
	ChainDeadline  time.Duration
}

// Engine implements enginerpc.EngineService.
type Engine struct {
	catalog    catalog.Store
	strategy   strategy.Strategy
	deals      *deal.Store
	converter  *priceconv.Converter
	watcher    deal.ChainWatcher
	logger     *obslog.EngineLogger
	metrics    *obslog.Metrics
	opts       Options
}

func New(cat catalog.Store, strat strategy.Strategy, deals *deal.Store, converter *priceconv.Converter, watcher deal.ChainWatcher, logger *obslog.EngineLogger, metrics *obslog.Metrics, opts Options) *Engine {
	return &Engine{
		catalog:   cat,
		strategy:  strat,
		deals:     deals,
		converter: converter,
		watcher:   watcher,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
	}
}

// Negotiate implements spec §4.3's algorithm. ctx carries the inbound
// request's deadline through to the pricing strategy (spec §4.4/§5), so an
// out-of-process strategy's outbound call is bounded by the same deadline.
func (e *Engine) Negotiate(ctx context.Context, req model.NegotiationRequest) (model.Decision, error) {
	e.logger.Event(obslog.EventNegotiationStarted, req.CorrelationID, req.IdentityID, "", map[string]any{
		"item_id": req.ItemID,
	})

	item, err := e.catalog.Get(req.ItemID)
	if err != nil {
		if err == catalog.ErrNotFound {
			return model.Rejected{ReasonCode: "ITEM_NOT_FOUND"}, nil
		}
		return nil, apperr.Wrap(apperr.StoreUnavail, req.CorrelationID, "catalog lookup failed", err)
	}
	if !item.Active {
		return model.Rejected{ReasonCode: "ITEM_NOT_FOUND"}, nil
	}

	decision, err := e.strategy.Evaluate(ctx, item, req.BidAmount, req.Reputation, req.CorrelationID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StrategyUnavail, req.CorrelationID, "strategy evaluation failed", err)
	}

	accepted, ok := decision.(model.Accepted)
	if !ok {
		return decision, nil
	}

	if !e.opts.CryptoEnabled {
		code, err := generateReservationCode()
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, req.CorrelationID, "generate reservation code", err)
		}
		accepted.Reveal = model.ReservationCode{Code: code}
		e.logger.Event(obslog.EventOfferAccepted, req.CorrelationID, req.IdentityID, "", nil)
		e.metrics.DecisionsTotal.WithLabelValues("accepted").Inc()
		return accepted, nil
	}

	cryptoAmount, err := e.converter.Convert(accepted.FinalPrice, e.opts.CryptoCurrency)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, req.CorrelationID, "convert price to crypto amount", err)
	}

	d, _, err := e.deals.Lock(deal.LockParams{
		CorrelationID:  req.CorrelationID,
		ItemID:         item.ID,
		ItemName:       item.Name,
		FinalPriceFiat: accepted.FinalPrice,
		FiatCurrency:   item.Currency,
		CryptoCurrency: e.opts.CryptoCurrency,
		CryptoAmount:   cryptoAmount,
		WalletAddress:  e.opts.ReceivingWallet,
		Network:        e.opts.Network,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavail, req.CorrelationID, "lock deal", err)
	}

	accepted.Reveal = model.PaymentLock{DealID: d.ID}
	e.logger.Event(obslog.EventOfferLockedForPayment, req.CorrelationID, req.IdentityID, d.ID, map[string]any{
		"crypto_currency": e.opts.CryptoCurrency,
	})
	e.metrics.DecisionsTotal.WithLabelValues("accepted").Inc()
	e.metrics.DealsByStatus.WithLabelValues("PENDING").Inc()
	return accepted, nil
}

// CheckDealStatus implements spec §4.5's Read & transition algorithm,
// consulting the chain watcher when a deal is still PENDING and unexpired.
func (e *Engine) CheckDealStatus(correlationID, dealID string) (enginerpc.DealStatusResult, error) {
	if !e.opts.CryptoEnabled {
		return enginerpc.DealStatusResult{}, apperr.New(apperr.FeatureDisabled, correlationID, "crypto settlement is disabled")
	}

	view, err := e.deals.Check(dealID)
	if err != nil {
		return enginerpc.DealStatusResult{}, apperr.Wrap(apperr.StoreUnavail, correlationID, "check deal", err)
	}
	if view.Kind == deal.StatusNotFound {
		return enginerpc.DealStatusResult{}, apperr.New(apperr.NotFound, correlationID, "unknown deal id")
	}
	if view.Kind != deal.StatusPending {
		return e.statusResultFromView(view), nil
	}

	deadline := time.Now().Add(e.opts.ChainDeadline)
	proof, err := e.watcher.FindPayment(view.Deal.CryptoAmount, view.Deal.Memo, view.Deal.CryptoCurrency, deadline)
	if err != nil {
		// A failed chain probe is never a caller-visible error (spec §7);
		// the caller just sees PENDING again.
		e.logger.Event(obslog.EventChainProbeFailed, correlationID, "", dealID, map[string]any{"error": err.Error()})
		return e.statusResultFromView(view), nil
	}
	if proof == nil {
		return e.statusResultFromView(view), nil
	}

	paidView, err := e.deals.ApplyProof(dealID, *proof)
	if err != nil {
		return enginerpc.DealStatusResult{}, apperr.Wrap(apperr.StoreUnavail, correlationID, "apply payment proof", err)
	}
	e.logger.Event(obslog.EventPaymentVerified, correlationID, "", dealID, map[string]any{
		"transaction_hash": paidView.Deal.TransactionHash,
	})
	e.metrics.DealsByStatus.WithLabelValues("PAID").Inc()
	return e.statusResultFromView(paidView), nil
}

func (e *Engine) statusResultFromView(view deal.StatusView) enginerpc.DealStatusResult {
	result := enginerpc.DealStatusResult{Status: string(view.Kind)}
	switch view.Kind {
	case deal.StatusPaid:
		result.ReservationCode = view.ReservationPlaintext
		result.Proof = view.Proof
	case deal.StatusPending:
		instr := view.Instructions
		result.PaymentInstructions = &instr
	}
	return result
}

func generateReservationCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("engine: generate reservation code: %w", err)
	}
	return "RES-" + base64.RawURLEncoding.EncodeToString(buf), nil
}
