package obslog

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the ambient /metrics contract surface (spec §4.8 expansion):
// in-process counters and gauges only, no exporter backend wired (the
// Non-goals exclude observability backends, not the counters themselves).
type Metrics struct {
	Registry            *prometheus.Registry
	RequestsTotal       *prometheus.CounterVec
	DecisionsTotal      *prometheus.CounterVec
	DealsByStatus       *prometheus.GaugeVec
	RateLimitRejections prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "negotiation_engine_requests_total",
			Help: "Total HTTP requests handled, by route and status class.",
		}, []string{"route", "status_class"}),
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "negotiation_engine_decisions_total",
			Help: "Total pricing decisions, by decision kind.",
		}, []string{"kind"}),
		DealsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "negotiation_engine_deals_by_status",
			Help: "Locked deals counted as they enter PENDING or PAID; not decremented on later transitions, and expirations are not counted.",
		}, []string{"status"}),
		RateLimitRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "negotiation_engine_rate_limit_rejections_total",
			Help: "Total requests rejected by the rate limiter.",
		}),
	}
	reg.MustRegister(m.RequestsTotal, m.DecisionsTotal, m.DealsByStatus, m.RateLimitRejections)
	return m
}
