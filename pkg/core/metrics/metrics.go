// Package metrics exposes Prometheus instruments for valuation runs, offer
// generation and term sheet workflow.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "deal_valuation"

// Metrics owns a private registry so tests and multiple servers never collide.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	valuationRuns     *prometheus.CounterVec
	valuationDuration prometheus.Histogram
	methodSkipped     *prometheus.CounterVec
	monteCarloDraws   *prometheus.CounterVec
	offerStacks       prometheus.Counter
	offerScenarios    *prometheus.CounterVec
	termSheetMoves    *prometheus.CounterVec
	narrativeFallback prometheus.Counter
	httpRequests      *prometheus.CounterVec
}

// New registers every instrument plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		valuationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "valuation_runs_total",
			Help:      "Comprehensive valuation runs by outcome.",
		}, []string{"outcome"}),
		valuationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "valuation_run_seconds",
			Help:      "Wall time of a comprehensive valuation run.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		methodSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "valuation_method_skipped_total",
			Help:      "Optional valuation methods skipped for lack of inputs.",
		}, []string{"method"}),
		monteCarloDraws: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "montecarlo_draws_total",
			Help:      "Monte Carlo draws by validity.",
		}, []string{"valid"}),
		offerStacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offer_stacks_total",
			Help:      "Offer stacks generated.",
		}),
		offerScenarios: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offer_scenarios_total",
			Help:      "Offer scenarios generated by template.",
		}, []string{"template"}),
		termSheetMoves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "termsheet_transitions_total",
			Help:      "Term sheet status transitions by target status and result.",
		}, []string{"to", "result"}),
		narrativeFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narrative_fallback_total",
			Help:      "Narratives rendered from templates because the LLM call failed.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status code class.",
		}, []string{"route", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.valuationRuns,
		m.valuationDuration,
		m.methodSkipped,
		m.monteCarloDraws,
		m.offerStacks,
		m.offerScenarios,
		m.termSheetMoves,
		m.narrativeFallback,
		m.httpRequests,
	)
	return m
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ValuationRun(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.valuationRuns.WithLabelValues(outcome).Inc()
	m.valuationDuration.Observe(d.Seconds())
}

func (m *Metrics) MethodSkipped(method string) {
	if m == nil {
		return
	}
	m.methodSkipped.WithLabelValues(method).Inc()
}

func (m *Metrics) MonteCarloDraws(valid, invalid int) {
	if m == nil {
		return
	}
	m.monteCarloDraws.WithLabelValues("true").Add(float64(valid))
	m.monteCarloDraws.WithLabelValues("false").Add(float64(invalid))
}

func (m *Metrics) OfferStack(templates []string) {
	if m == nil {
		return
	}
	m.offerStacks.Inc()
	for _, t := range templates {
		m.offerScenarios.WithLabelValues(t).Inc()
	}
}

func (m *Metrics) TermSheetTransition(to string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	m.termSheetMoves.WithLabelValues(to, result).Inc()
}

func (m *Metrics) NarrativeFallback() {
	if m == nil {
		return
	}
	m.narrativeFallback.Inc()
}

// Instrument wraps a handler and counts responses by status class.
func (m *Metrics) Instrument(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.httpRequests.WithLabelValues(route, statusClass(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
