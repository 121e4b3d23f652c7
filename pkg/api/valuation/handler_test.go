package valuation

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deal_valuation/pkg/api/respond"
	"deal_valuation/pkg/core/assumption"
	"deal_valuation/pkg/core/financials"
	"deal_valuation/pkg/core/store"
	"deal_valuation/pkg/core/valuation"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	src := financials.NewMemorySource(assumption.CompanySnapshot{
		CompanyID:         "acme",
		Name:              "Acme Corp",
		Industry:          "technology",
		Revenue:           10_000_000,
		EBITDA:            2_000_000,
		HistoricalRevenue: []float64{8_000_000, 9_000_000, 10_000_000},
		NetDebt:           1_000_000,
	})
	repo, err := store.NewValuationRepo(nil, t.TempDir())
	require.NoError(t, err)

	engine := valuation.NewEngine(nil, valuation.WithSnapshotSource(src), valuation.WithMonteCarloDefaults(200, 2))
	mux := http.NewServeMux()
	NewHandler(engine, repo, nil).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func assertError(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	assert.Equal(t, status, resp.StatusCode)
	var body respond.ErrorBody
	decode(t, resp, &body)
	assert.Equal(t, code, body.Code)
	assert.NotEmpty(t, body.Error)
}

func TestHandleRun_StoresAndServesHistory(t *testing.T) {
	srv := newServer(t)

	resp := post(t, srv, "/api/valuation/run", `{"company_id":"acme"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cv valuation.ComprehensiveValuation
	decode(t, resp, &cv)
	require.NotEmpty(t, cv.ID)
	assert.Equal(t, "Acme Corp", cv.CompanyName)
	assert.Contains(t, cv.SkippedMethods, valuation.MethodLBO)

	resp = get(t, srv, "/api/valuation/"+cv.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stored valuation.ComprehensiveValuation
	decode(t, resp, &stored)
	assert.Equal(t, cv.Recommended, stored.Recommended)

	resp = get(t, srv, "/api/valuation/history?company_id=acme")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hist HistoryResponse
	decode(t, resp, &hist)
	require.Len(t, hist.Valuations, 1)
	assert.Equal(t, cv.ID, hist.Valuations[0].ID)
}

func TestHandleRun_Errors(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed", `{"company_id":`, http.StatusBadRequest, "invalid_request"},
		{"missing company", `{}`, http.StatusBadRequest, "validation_failed"},
		{"unknown company", `{"company_id":"ghost"}`, http.StatusNotFound, "unknown_company"},
		{
			"wacc below growth",
			`{"company_id":"acme","overrides":{"discount_rate":0.02,"terminal_growth":0.03}}`,
			http.StatusUnprocessableEntity, "invalid_terminal_spread",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertError(t, post(t, srv, "/api/valuation/run", tt.body), tt.status, tt.code)
		})
	}
}

func TestHandleHistory_Validation(t *testing.T) {
	srv := newServer(t)
	assertError(t, get(t, srv, "/api/valuation/history"), http.StatusBadRequest, "invalid_request")
	assertError(t, get(t, srv, "/api/valuation/history?company_id=acme&limit=-1"), http.StatusBadRequest, "invalid_request")

	resp := get(t, srv, "/api/valuation/history?company_id=nobody")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hist HistoryResponse
	decode(t, resp, &hist)
	assert.Empty(t, hist.Valuations)
}

func TestHandleGet_NotFound(t *testing.T) {
	srv := newServer(t)
	assertError(t, get(t, srv, "/api/valuation/missing"), http.StatusNotFound, "not_found")
}

func TestHandleSensitivity(t *testing.T) {
	srv := newServer(t)
	resp := post(t, srv, "/api/valuation/sensitivity", `{"company_id":"acme","waccs":[0.08,0.1,0.12],"terminal_growth":[0.02,0.03]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rep valuation.SensitivityReport
	decode(t, resp, &rep)
	require.NotNil(t, rep.DCF)
	assert.Len(t, rep.DCF.Rows, 3)
	assert.Len(t, rep.DCF.Cols, 2)
	assert.Nil(t, rep.LBO)
}

func TestHandleMonteCarlo(t *testing.T) {
	srv := newServer(t)

	resp := post(t, srv, "/api/valuation/montecarlo", `{"company_id":"acme"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res valuation.MonteCarloResult
	decode(t, resp, &res)
	assert.Equal(t, 200, res.Iterations)
	assert.Greater(t, res.ValidDraws, 0)

	resp = post(t, srv, "/api/valuation/montecarlo", `{"company_id":"acme","monte_carlo":{"iterations":0}}`)
	assertError(t, resp, http.StatusBadRequest, "validation_failed")
}
