// Package trace carries a small set of span attributes through
// context.Context across the edge/engine boundary (spec §4.8). No tracing
// backend is wired (exporters/dashboards are out of scope per the
// Non-goals); this is the ambient attribute-carrying contract alone.
package trace

import "context"

type ctxKey struct{}

// Attributes is the fixed set of fields attached to every request's span.
type Attributes struct {
	CorrelationID string
	IdentityID    string
	DealID        string
}

// WithAttributes returns a context carrying attrs, replacing any previous
// value.
func WithAttributes(ctx context.Context, attrs Attributes) context.Context {
	return context.WithValue(ctx, ctxKey{}, attrs)
}

// FromContext returns the attributes bound to ctx, or a zero value if none.
func FromContext(ctx context.Context) Attributes {
	attrs, _ := ctx.Value(ctxKey{}).(Attributes)
	return attrs
}

// WithDealID returns a copy of ctx's attributes with DealID set, for the
// point in a request's lifetime where a deal is created.
func WithDealID(ctx context.Context, dealID string) context.Context {
	attrs := FromContext(ctx)
	attrs.DealID = dealID
	return WithAttributes(ctx, attrs)
}
