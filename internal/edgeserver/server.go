// Package edgeserver is the public HTTP edge (spec §6.1): authenticates
// signed requests, enforces the per-identity rate limit, and forwards to the
// engine over internal/enginerpc. Routed with gorilla/mux (teacher:
// walletserver/routes, cmd/explorer/server.go), deliberately distinct from
// the engine's own go-chi/chi router so both teacher-pack routers are
// exercised somewhere in this repo.
package edgeserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"negotiation-engine/internal/apperr"
	"negotiation-engine/internal/authsig"
	"negotiation-engine/internal/enginerpc"
	"negotiation-engine/internal/model"
	"negotiation-engine/internal/obslog"
	"negotiation-engine/internal/ratelimit"
)

// EngineCaller is the subset of enginerpc.Client the edge needs. Declared
// here rather than imported from enginerpc's client type directly so a test
// double can stand in without spinning up a real HTTP server.
type EngineCaller interface {
	Negotiate(ctx context.Context, req model.NegotiationRequest) (model.Decision, error)
	CheckDealStatus(ctx context.Context, correlationID, dealID string) (enginerpc.DealStatusResult, error)
}

// Options configures session/response behavior not otherwise owned by a
// collaborator.
type Options struct {
	SessionTTL        time.Duration
	NegotiateTimeout  time.Duration
	StatusTimeout     time.Duration
	ReadyCheckTimeout time.Duration
	CryptoEnabled     bool
}

// Server holds the edge's wired collaborators.
type Server struct {
	engine   EngineCaller
	verifier *authsig.Verifier
	limiter  *ratelimit.Limiter
	logger   *obslog.EdgeLogger
	metrics  *obslog.Metrics
	opts     Options
}

func New(engine EngineCaller, verifier *authsig.Verifier, limiter *ratelimit.Limiter, logger *obslog.EdgeLogger, metrics *obslog.Metrics, opts Options) *Server {
	if opts.SessionTTL == 0 {
		opts.SessionTTL = 10 * time.Minute
	}
	if opts.NegotiateTimeout == 0 {
		opts.NegotiateTimeout = 30 * time.Second
	}
	if opts.StatusTimeout == 0 {
		opts.StatusTimeout = 10 * time.Second
	}
	if opts.ReadyCheckTimeout == 0 {
		opts.ReadyCheckTimeout = 2 * time.Second
	}
	return &Server{engine: engine, verifier: verifier, limiter: limiter, logger: logger, metrics: metrics, opts: opts}
}

// Router builds the public mux.Router (spec §6.1's four routes plus the
// ambient unauthenticated /metrics).
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(metricsMiddleware(s.metrics))
	r.Use(correlationMiddleware)

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	r.Handle("/metrics", metricsHandler(s.metrics)).Methods(http.MethodGet)

	authed := r.NewRoute().Subrouter()
	authed.Use(authMiddleware(s.verifier))
	authed.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if rec.status == http.StatusTooManyRequests {
				s.metrics.RateLimitRejections.Inc()
			}
		})
	})
	authed.Use(rateLimitMiddleware(s.limiter, s.onRateLimiterUnavailable))
	authed.HandleFunc("/v1/negotiate", s.handleNegotiate).Methods(http.MethodPost)
	authed.HandleFunc("/v1/deals/{deal_id}/status", s.handleDealStatus).Methods(http.MethodPost)

	return r
}

func (s *Server) onRateLimiterUnavailable(correlationID, identityID string) {
	s.logger.Event(obslog.EventRateLimiterUnavailable, correlationID, identityID, "", nil)
}

func writeDomainError(w http.ResponseWriter, correlationID string, err error) {
	if ae, ok := apperr.As(err); ok {
		writeError(w, ae)
		return
	}
	writeError(w, apperr.Wrap(apperr.Internal, correlationID, "unexpected edge error", err))
}

// writeError maps an apperr.Kind to its caller-facing HTTP status (spec §7).
// This is the ONLY place that mapping exists; the engine never imports
// net/http and therefore can never make this decision itself.
func writeError(w http.ResponseWriter, err *apperr.Error) {
	status := statusForKind(err.Kind)
	writeJSON(w, status, errorBody{ReasonCode: string(err.Kind), Message: err.Message, CorrelationID: err.CorrelationID})
}

type errorBody struct {
	ReasonCode    string `json:"reason_code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.AuthMissing, apperr.AuthMalformed, apperr.AuthExpired, apperr.AuthBadSig:
		return http.StatusUnauthorized
	case apperr.RateLimited:
		return http.StatusTooManyRequests
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
