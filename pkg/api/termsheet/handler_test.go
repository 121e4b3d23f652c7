package termsheet

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deal_valuation/pkg/api/respond"
	"deal_valuation/pkg/core/offer"
	"deal_valuation/pkg/core/store"
	"deal_valuation/pkg/core/termsheet"
)

type fixture struct {
	srv   *httptest.Server
	stack *offer.OfferStack
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	sheets, err := store.NewTermSheetRepo(nil, dir)
	require.NoError(t, err)
	stacks, err := store.NewOfferRepo(nil, dir)
	require.NoError(t, err)

	gen, err := offer.NewGenerator(nil)
	require.NoError(t, err)
	stack, err := gen.Generate(context.Background(), offer.Request{CompanyID: "acme", Range: offer.NewRange(5_000_000, 10_000_000)})
	require.NoError(t, err)
	require.NoError(t, stacks.Save(context.Background(), stack))

	mux := http.NewServeMux()
	NewHandler(termsheet.NewService(sheets, nil, nil), stacks, nil).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fixture{srv: srv, stack: stack}
}

func (f fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func sheetFrom(t *testing.T, resp *http.Response) termsheet.TermSheet {
	t.Helper()
	var ts termsheet.TermSheet
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ts))
	return ts
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body respond.ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Code
}

func TestTermSheetWorkflow(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/termsheets",
		`{"company_id":"acme","title":"LOI","author":"alice","terms":{"purchase_price":"6500000","structure":"stock_purchase"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ts := sheetFrom(t, resp)
	assert.Equal(t, termsheet.StatusDraft, ts.Status)

	resp = f.do(t, http.MethodPost, "/api/termsheets/"+ts.ID+"/transition", `{"to":"APPROVED","actor":"bob"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_transition", errorCode(t, resp))

	resp = f.do(t, http.MethodPost, "/api/termsheets/"+ts.ID+"/revise",
		`{"terms":{"purchase_price":"6800000","structure":"stock_purchase"},"author":"alice","summary":"price bump"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, sheetFrom(t, resp).Versions, 2)

	resp = f.do(t, http.MethodPost, "/api/termsheets/"+ts.ID+"/transition", `{"to":"UNDER_REVIEW","actor":"bob","comment":"ready"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, termsheet.StatusUnderReview, sheetFrom(t, resp).Status)

	resp = f.do(t, http.MethodPost, "/api/termsheets/"+ts.ID+"/revise",
		`{"terms":{"purchase_price":"7000000"},"author":"alice"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "not_editable", errorCode(t, resp))

	resp = f.do(t, http.MethodGet, "/api/termsheets/"+ts.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := sheetFrom(t, resp)
	assert.Len(t, got.History, 1)
	assert.True(t, got.Current().Terms.PurchasePrice.Equal(decimal.NewFromInt(6_800_000)))
}

func TestCreate_SeedsFromOfferScenario(t *testing.T) {
	f := newFixture(t)
	creative, ok := f.stack.Scenario(offer.TemplateCreative)
	require.True(t, ok)

	body := `{"company_id":"acme","title":"LOI","author":"alice","offer_stack_id":"` + f.stack.ID + `","scenario_id":"` + creative.ID + `"}`
	resp := f.do(t, http.MethodPost, "/api/termsheets", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ts := sheetFrom(t, resp)
	terms := ts.Current().Terms
	assert.True(t, terms.PurchasePrice.Equal(creative.PurchasePrice))
	assert.Len(t, terms.Funding, len(creative.Funding))
	assert.Equal(t, creative.ID, ts.ScenarioID)
}

func TestTermSheetErrors(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name, method, path, body string
		status                   int
		code                     string
	}{
		{"missing author", http.MethodPost, "/api/termsheets", `{"company_id":"acme","title":"LOI","terms":{"purchase_price":"1"}}`, http.StatusBadRequest, "validation_failed"},
		{"zero price", http.MethodPost, "/api/termsheets", `{"company_id":"acme","title":"LOI","author":"a","terms":{"purchase_price":"0"}}`, http.StatusUnprocessableEntity, "invalid_terms"},
		{"unknown scenario", http.MethodPost, "/api/termsheets", `{"company_id":"acme","title":"LOI","author":"a","offer_stack_id":"` + f.stack.ID + `","scenario_id":"nope"}`, http.StatusBadRequest, "invalid_request"},
		{"missing sheet", http.MethodGet, "/api/termsheets/nope", "", http.StatusNotFound, "not_found"},
		{"unknown status", http.MethodPost, "/api/termsheets/nope/transition", `{"to":"LOST","actor":"bob"}`, http.StatusBadRequest, "unknown_status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, errorCode(t, resp))
		})
	}
}

func TestList(t *testing.T) {
	f := newFixture(t)
	for _, company := range []string{"acme", "northwind"} {
		resp := f.do(t, http.MethodPost, "/api/termsheets",
			`{"company_id":"`+company+`","title":"LOI","author":"alice","terms":{"purchase_price":"100"}}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := f.do(t, http.MethodGet, "/api/termsheets?company_id=northwind", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []termsheet.TermSheet
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "northwind", list[0].CompanyID)
}

func documentFrom(t *testing.T, resp *http.Response) termsheet.Document {
	t.Helper()
	var d termsheet.Document
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&d))
	return d
}

func TestAddDocument(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/api/termsheets",
		`{"company_id":"acme","title":"LOI","author":"alice","terms":{"purchase_price":"100"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ts := sheetFrom(t, resp)

	resp = f.do(t, http.MethodPost, "/api/termsheets/"+ts.ID+"/documents", `{"name":"spa.pdf","actor":"alice"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	doc := documentFrom(t, resp)
	assert.Equal(t, termsheet.DocumentUploaded, doc.Status)
	assert.Equal(t, ts.ID, doc.TermSheetID)
	assert.NotEmpty(t, doc.ID)

	resp = f.do(t, http.MethodGet, "/api/termsheets/"+ts.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := sheetFrom(t, resp)
	require.Len(t, got.Documents, 1)
	assert.Equal(t, "spa.pdf", got.Documents[0].Name)

	resp = f.do(t, http.MethodPost, "/api/termsheets/"+ts.ID+"/documents", `{"name":"spa.pdf"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_failed", errorCode(t, resp))

	resp = f.do(t, http.MethodPost, "/api/termsheets/nope/documents", `{"name":"spa.pdf","actor":"alice"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", errorCode(t, resp))
}

func TestDocumentTransition(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/api/termsheets",
		`{"company_id":"acme","title":"LOI","author":"alice","terms":{"purchase_price":"100"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ts := sheetFrom(t, resp)
	resp = f.do(t, http.MethodPost, "/api/termsheets/"+ts.ID+"/documents", `{"name":"spa.pdf","actor":"alice"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	doc := documentFrom(t, resp)
	base := "/api/termsheets/" + ts.ID + "/documents/" + doc.ID + "/transition"

	resp = f.do(t, http.MethodPost, base, `{"to":"PROCESSING","actor":"bob"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	moved := documentFrom(t, resp)
	assert.Equal(t, termsheet.DocumentProcessing, moved.Status)
	assert.Len(t, moved.History, 1)

	tests := []struct {
		name, path, body string
		status           int
		code             string
	}{
		{"skip review", base, `{"to":"APPROVED","actor":"bob"}`, http.StatusConflict, "invalid_transition"},
		{"unknown status", base, `{"to":"SHREDDED","actor":"bob"}`, http.StatusBadRequest, "unknown_status"},
		{"missing actor", base, `{"to":"IN_REVIEW"}`, http.StatusBadRequest, "validation_failed"},
		{"missing document", "/api/termsheets/" + ts.ID + "/documents/nope/transition", `{"to":"PROCESSING","actor":"bob"}`, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, errorCode(t, resp))
		})
	}

	resp = f.do(t, http.MethodGet, "/api/termsheets/"+ts.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := sheetFrom(t, resp)
	require.Len(t, got.Documents, 1)
	assert.Equal(t, termsheet.DocumentProcessing, got.Documents[0].Status)
}
