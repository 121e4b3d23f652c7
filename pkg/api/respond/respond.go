// Package respond holds the JSON plumbing shared by the HTTP handlers:
// request decoding with validation, CORS and error-to-status mapping.
package respond

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phuslu/log"

	"deal_valuation/pkg/core/calc"
	"deal_valuation/pkg/core/financials"
	"deal_valuation/pkg/core/offer"
	"deal_valuation/pkg/core/projection"
	"deal_valuation/pkg/core/report"
	"deal_valuation/pkg/core/store"
	"deal_valuation/pkg/core/termsheet"
	"deal_valuation/pkg/core/valuation"
)

// ErrBadRequest marks malformed input that never reached the domain layer.
var ErrBadRequest = errors.New("bad request")

var validate = validator.New()

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type rule struct {
	target error
	status int
	code   string
}

// Checked in order; the first match wins.
var rules = []rule{
	{ErrBadRequest, http.StatusBadRequest, "invalid_request"},
	{termsheet.ErrUnknownStatus, http.StatusBadRequest, "unknown_status"},
	{offer.ErrUnknownTemplate, http.StatusBadRequest, "unknown_template"},
	{offer.ErrNoScenarios, http.StatusBadRequest, "no_scenarios"},
	{valuation.ErrNoSnapshot, http.StatusBadRequest, "missing_snapshot"},

	{store.ErrNotFound, http.StatusNotFound, "not_found"},
	{termsheet.ErrNotFound, http.StatusNotFound, "not_found"},
	{termsheet.ErrDocumentNotFound, http.StatusNotFound, "not_found"},
	{financials.ErrUnknownCompany, http.StatusNotFound, "unknown_company"},
	{report.ErrNoValuation, http.StatusNotFound, "not_found"},

	{termsheet.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{termsheet.ErrNotEditable, http.StatusConflict, "not_editable"},
	{termsheet.ErrVersionConflict, http.StatusConflict, "version_conflict"},

	{valuation.ErrInvalidTerminalSpread, http.StatusUnprocessableEntity, "invalid_terminal_spread"},
	{valuation.ErrNoProjections, http.StatusUnprocessableEntity, "no_projections"},
	{projection.ErrNoBaseRevenue, http.StatusUnprocessableEntity, "no_base_revenue"},
	{valuation.ErrNoPeers, http.StatusUnprocessableEntity, "no_peers"},
	{valuation.ErrInvalidLBOInput, http.StatusUnprocessableEntity, "invalid_lbo_input"},
	{valuation.ErrNoValidDraws, http.StatusUnprocessableEntity, "no_valid_draws"},
	{valuation.ErrNoResults, http.StatusUnprocessableEntity, "no_results"},
	{offer.ErrInvalidRange, http.StatusUnprocessableEntity, "invalid_range"},
	{offer.ErrInvalidTemplate, http.StatusUnprocessableEntity, "invalid_template"},
	{offer.ErrFundingMismatch, http.StatusUnprocessableEntity, "funding_mismatch"},
	{termsheet.ErrInvalidTerms, http.StatusUnprocessableEntity, "invalid_terms"},
	{calc.ErrEmptySeries, http.StatusUnprocessableEntity, "empty_series"},
	{calc.ErrNoIRR, http.StatusUnprocessableEntity, "no_irr"},

	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// Status maps an error to its HTTP status and machine-readable code.
// Anything unrecognised is a 500.
func Status(err error) (int, string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest, "validation_failed"
	}
	for _, r := range rules {
		if errors.Is(err, r.target) {
			return r.status, r.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes the mapped error body. Internal errors are logged and their
// detail withheld from the client.
func Error(w http.ResponseWriter, logger *log.Logger, err error) {
	status, code := Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		if logger != nil {
			logger.Error().Err(err).Msg("request failed")
		}
		msg = "internal error"
	}
	JSON(w, status, ErrorBody{Error: msg, Code: code})
}

// Decode reads a JSON body into v and validates its struct tags.
func Decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return Validate(v)
}

// Validate runs the struct validator on v.
func Validate(v interface{}) error {
	return validate.Struct(v)
}

// CORS adds the cross-origin headers the dashboard needs and answers preflight requests.
func CORS(origin string, next http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
