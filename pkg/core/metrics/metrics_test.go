package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ValuationRun(time.Second, nil)
		m.MethodSkipped("lbo")
		m.MonteCarloDraws(10, 1)
		m.OfferStack([]string{"conservative"})
		m.TermSheetTransition("APPROVED", nil)
		m.NarrativeFallback()
	})
	h := m.Instrument("x", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCounters(t *testing.T) {
	m := New()
	m.ValuationRun(10*time.Millisecond, nil)
	m.ValuationRun(10*time.Millisecond, errors.New("boom"))
	m.OfferStack([]string{"conservative", "aggressive"})
	m.MonteCarloDraws(98, 2)
	m.TermSheetTransition("APPROVED", errors.New("invalid"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.valuationRuns.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.valuationRuns.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.offerStacks))
	assert.Equal(t, 98.0, testutil.ToFloat64(m.monteCarloDraws.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.termSheetMoves.WithLabelValues("APPROVED", "rejected")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.OfferStack([]string{"creative"})

	wrapped := m.Instrument("/api/test", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/test", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `deal_valuation_offer_scenarios_total{template="creative"} 1`))
	assert.True(t, strings.Contains(body, `deal_valuation_http_requests_total{code="4xx",route="/api/test"} 1`))
}
