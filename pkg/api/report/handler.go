package report

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/phuslu/log"

	"deal_valuation/pkg/api/respond"
	"deal_valuation/pkg/core/logging"
	"deal_valuation/pkg/core/offer"
	"deal_valuation/pkg/core/report"
	"deal_valuation/pkg/core/valuation"
)

// ValuationLookup loads a stored valuation.
type ValuationLookup interface {
	Get(ctx context.Context, id string) (*valuation.ComprehensiveValuation, error)
}

// OfferLookup loads a stored offer stack.
type OfferLookup interface {
	Get(ctx context.Context, id string) (*offer.OfferStack, error)
}

type format struct {
	contentType string
	write       func(*bytes.Buffer, report.Bundle) error
}

var formats = map[string]format{
	".xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", func(b *bytes.Buffer, bundle report.Bundle) error {
		return report.WriteWorkbook(b, bundle)
	}},
	".pdf": {"application/pdf", func(b *bytes.Buffer, bundle report.Bundle) error {
		return report.WritePDF(b, bundle)
	}},
	".html": {"text/html; charset=utf-8", func(b *bytes.Buffer, bundle report.Bundle) error {
		out, err := report.RenderHTML(bundle)
		b.Write(out)
		return err
	}},
}

// Handler serves report downloads
type Handler struct {
	Valuations ValuationLookup
	Offers     OfferLookup
	logger     *log.Logger
}

// NewHandler creates a new report handler
func NewHandler(valuations ValuationLookup, offers OfferLookup, logger *log.Logger) *Handler {
	return &Handler{Valuations: valuations, Offers: offers, logger: logging.Component(logger, "api.report")}
}

// Register mounts the report route.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/report/{file}", h.HandleReport)
}

// HandleReport serves /api/report/{valuation_id}.{xlsx|pdf|html}. An optional
// offer_stack_id query parameter adds that stack to the report.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	ext := path.Ext(file)
	f, ok := formats[ext]
	id := strings.TrimSuffix(file, ext)
	if !ok || id == "" {
		respond.Error(w, h.logger, fmt.Errorf("%w: expected <valuation_id>.xlsx, .pdf or .html, got %q", respond.ErrBadRequest, file))
		return
	}

	cv, err := h.Valuations.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	bundle := report.Bundle{Valuation: cv}
	if stackID := r.URL.Query().Get("offer_stack_id"); stackID != "" && h.Offers != nil {
		stack, err := h.Offers.Get(r.Context(), stackID)
		if err != nil {
			respond.Error(w, h.logger, err)
			return
		}
		bundle.Offers = stack
	}

	var buf bytes.Buffer
	if err := f.write(&buf, bundle); err != nil {
		respond.Error(w, h.logger, fmt.Errorf("render %s report for %s: %w", ext, id, err))
		return
	}
	w.Header().Set("Content-Type", f.contentType)
	if ext != ".html" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "valuation-"+file))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
	h.logger.Info().Str("id", id).Str("format", ext).Int("bytes", buf.Len()).Msg("report served")
}
