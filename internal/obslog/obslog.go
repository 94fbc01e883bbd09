// Package obslog provides the per-tier structured loggers and the ambient
// Prometheus metrics registry (spec §4.8 expansion). Edge uses logrus
// (teacher: walletserver/middleware.Logger, cmd/explorer); engine uses
// zap's SugaredLogger (teacher: core/resource_marketplace.go,
// core/compliance.go), matching the split already visible in the pack.
package obslog

import (
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

// Named log events (spec §4.8): one per significant state transition.
const (
	EventNegotiationStarted      = "negotiation_started"
	EventOfferAccepted           = "offer_accepted"
	EventOfferLockedForPayment   = "offer_locked_for_payment"
	EventPaymentVerified         = "payment_verified"
	EventDealExpired             = "deal_expired"
	EventRateLimiterUnavailable  = "rate_limiter_unavailable"
	EventChainProbeFailed        = "chain_probe_failed"
	EventPriceOracleUnconfigured = "price_oracle_unconfigured"
)

// EdgeLogger wraps logrus with the correlation-id/identity-id binding every
// edge log line must carry.
type EdgeLogger struct {
	base *logrus.Logger
}

func NewEdgeLogger(level logrus.Level) *EdgeLogger {
	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&logrus.JSONFormatter{})
	return &EdgeLogger{base: l}
}

// Event logs a named event with the fixed correlation/identity/deal fields
// plus any additional key-value pairs. Callers must never pass a secret,
// private key, or floor price in fields (spec §4.8).
func (l *EdgeLogger) Event(event, correlationID, identityID, dealID string, fields map[string]any) {
	entry := l.base.WithFields(logrus.Fields{
		"event":          event,
		"correlation_id": correlationID,
	})
	if identityID != "" {
		entry = entry.WithField("identity_id", identityID)
	}
	if dealID != "" {
		entry = entry.WithField("deal_id", dealID)
	}
	for k, v := range fields {
		entry = entry.WithField(k, v)
	}
	entry.Info(event)
}

// EngineLogger wraps zap's SugaredLogger with the same binding discipline.
type EngineLogger struct {
	base *zap.SugaredLogger
}

func NewEngineLogger(production bool) (*EngineLogger, error) {
	var z *zap.Logger
	var err error
	if production {
		z, err = zap.NewProduction()
	} else {
		z, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	return &EngineLogger{base: z.Sugar()}, nil
}

func (l *EngineLogger) Event(event, correlationID, identityID, dealID string, fields map[string]any) {
	kvs := []any{"event", event, "correlation_id", correlationID}
	if identityID != "" {
		kvs = append(kvs, "identity_id", identityID)
	}
	if dealID != "" {
		kvs = append(kvs, "deal_id", dealID)
	}
	for k, v := range fields {
		kvs = append(kvs, k, v)
	}
	l.base.Infow(event, kvs...)
}
