package edgeserver

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"negotiation-engine/internal/apperr"
	"negotiation-engine/internal/authsig"
	"negotiation-engine/internal/obslog"
	"negotiation-engine/internal/ratelimit"
	"negotiation-engine/internal/trace"
)

// metricsMiddleware records every response's route and status class into
// RequestsTotal (spec §4.8 expansion). It wraps the outermost router so it
// observes every route, including the unauthenticated health/ready/metrics
// ones.
func metricsMiddleware(m *obslog.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tmpl, err := cur.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			m.RequestsTotal.WithLabelValues(route, statusClass(rec.status)).Inc()
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func statusClass(status int) string {
	switch status / 100 {
	case 2:
		return "2xx"
	case 3:
		return "3xx"
	case 4:
		return "4xx"
	case 5:
		return "5xx"
	default:
		return "unknown"
	}
}

// correlationMiddleware stamps every request with a correlation id: the
// caller's X-Request-Id if present, otherwise a freshly generated uuid,
// matching spec §4.8's "cross-service correlation id is a first-class
// parameter" note applied at the edge's own ingress point. The id is bound
// into the request context as a trace.Attributes value so it, the verified
// identity (once authMiddleware runs), and a later deal id all travel on
// the same carrier across the edge/engine boundary.
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Request-Id")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", correlationID)
		ctx := trace.WithAttributes(r.Context(), trace.Attributes{CorrelationID: correlationID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func correlationIDFrom(r *http.Request) string {
	return trace.FromContext(r.Context()).CorrelationID
}

// authMiddleware verifies the three signature headers (spec §4.1) on every
// mutating request and binds the verified identity into the request context.
func authMiddleware(verifier *authsig.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := correlationIDFrom(r)

			identityID := r.Header.Get("X-Identity-Id")
			sig := r.Header.Get("X-Signature")
			tsHeader := r.Header.Get("X-Timestamp")
			ts, err := strconv.ParseInt(tsHeader, 10, 64)
			if tsHeader == "" || err != nil {
				writeError(w, apperr.New(apperr.AuthMalformed, correlationID, "missing or malformed X-Timestamp header"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, apperr.New(apperr.BadRequest, correlationID, "unreadable request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			identity, err := verifier.Verify(authsig.Envelope{
				Method:        r.Method,
				Path:          r.URL.Path,
				TimestampUnix: ts,
				Body:          body,
				IdentityID:    identityID,
				SignatureHex:  sig,
			}, correlationID)
			if err != nil {
				writeDomainError(w, correlationID, err)
				return
			}

			attrs := trace.FromContext(r.Context())
			attrs.IdentityID = identity.ID
			ctx := trace.WithAttributes(r.Context(), attrs)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func identityIDFrom(r *http.Request) string {
	return trace.FromContext(r.Context()).IdentityID
}

// rateLimitMiddleware enforces spec §4.2's fixed window per verified
// identity. It must run after authMiddleware, since it keys on the verified
// identity id rather than source IP (spec §9 Open Question disposition).
func rateLimitMiddleware(limiter *ratelimit.Limiter, onStoreErr func(correlationID, identityID string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := correlationIDFrom(r)
			identityID := identityIDFrom(r)

			allowed, retryAfter, storeErr := limiter.Allow(identityID)
			if storeErr != nil && onStoreErr != nil {
				onStoreErr(correlationID, identityID)
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				writeError(w, apperr.New(apperr.RateLimited, correlationID, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
