package report

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deal_valuation/pkg/core/offer"
	"deal_valuation/pkg/core/store"
	"deal_valuation/pkg/core/valuation"
)

func newServer(t *testing.T) (*httptest.Server, *offer.OfferStack) {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	vals, err := store.NewValuationRepo(nil, dir)
	require.NoError(t, err)
	stacks, err := store.NewOfferRepo(nil, dir)
	require.NoError(t, err)

	require.NoError(t, vals.Save(ctx, &valuation.ComprehensiveValuation{
		ID:          "val-1",
		CompanyID:   "acme",
		CompanyName: "Acme Corp",
		CreatedAt:   time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
		Results: []valuation.ValuationResult{
			{Method: valuation.MethodDCF, Value: 8_000_000, Low: 6_000_000, High: 10_000_000, Confidence: 0.7},
		},
		Low:         6_000_000,
		High:        10_000_000,
		Recommended: 8_000_000,
		Confidence:  0.7,
		Narrative:   "Acme screens well.",
	}))

	gen, err := offer.NewGenerator(nil)
	require.NoError(t, err)
	stack, err := gen.Generate(ctx, offer.Request{CompanyID: "acme", Range: offer.NewRange(6_000_000, 10_000_000), SkipInsights: true})
	require.NoError(t, err)
	require.NoError(t, stacks.Save(ctx, stack))

	mux := http.NewServeMux()
	NewHandler(vals, stacks, nil).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, stack
}

func TestHandleReport_Formats(t *testing.T) {
	srv, stack := newServer(t)
	tests := []struct {
		file        string
		contentType string
		prefix      string
		attachment  bool
	}{
		{"val-1.html", "text/html; charset=utf-8", "<!DOCTYPE html>", false},
		{"val-1.pdf", "application/pdf", "%PDF-", true},
		{"val-1.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "PK", true},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/api/report/" + tt.file + "?offer_stack_id=" + stack.ID)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.contentType, resp.Header.Get("Content-Type"))
			assert.Equal(t, tt.attachment, strings.HasPrefix(resp.Header.Get("Content-Disposition"), "attachment"))

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(string(body), tt.prefix))
		})
	}
}

func TestHandleReport_HTMLIncludesOffers(t *testing.T) {
	srv, stack := newServer(t)
	resp, err := http.Get(srv.URL + "/api/report/val-1.html?offer_stack_id=" + stack.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Offer scenarios")
	assert.Contains(t, string(body), "Acme screens well.")
}

func TestHandleReport_Errors(t *testing.T) {
	srv, _ := newServer(t)
	tests := []struct {
		path   string
		status int
	}{
		{"/api/report/val-1.docx", http.StatusBadRequest},
		{"/api/report/val-1", http.StatusBadRequest},
		{"/api/report/.pdf", http.StatusBadRequest},
		{"/api/report/missing.pdf", http.StatusNotFound},
		{"/api/report/val-1.pdf?offer_stack_id=missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
