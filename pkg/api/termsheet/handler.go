package termsheet

import (
	"context"
	"fmt"
	"net/http"

	"github.com/phuslu/log"

	"deal_valuation/pkg/api/respond"
	"deal_valuation/pkg/core/logging"
	"deal_valuation/pkg/core/offer"
	"deal_valuation/pkg/core/termsheet"
)

// OfferLookup resolves an offer stack so a term sheet can be seeded from one of its scenarios.
type OfferLookup interface {
	Get(ctx context.Context, id string) (*offer.OfferStack, error)
}

// TransitionRequest moves a term sheet to a new status.
type TransitionRequest struct {
	To      string `json:"to" validate:"required"`
	Actor   string `json:"actor" validate:"required"`
	Comment string `json:"comment,omitempty"`
}

// ReviseRequest appends a new version of the terms.
type ReviseRequest struct {
	Terms   termsheet.Terms `json:"terms"`
	Author  string          `json:"author" validate:"required"`
	Summary string          `json:"summary,omitempty"`
}

// DocumentRequest attaches a deal document to a term sheet.
type DocumentRequest struct {
	Name  string `json:"name" validate:"required"`
	Actor string `json:"actor" validate:"required"`
}

// DocumentTransitionRequest moves an attached document to a new status.
type DocumentTransitionRequest struct {
	To    string `json:"to" validate:"required"`
	Actor string `json:"actor" validate:"required"`
}

// Handler holds dependencies for term sheet endpoints
type Handler struct {
	Service *termsheet.Service
	Offers  OfferLookup
	logger  *log.Logger
}

// NewHandler creates a new term sheet handler
func NewHandler(svc *termsheet.Service, offers OfferLookup, logger *log.Logger) *Handler {
	return &Handler{Service: svc, Offers: offers, logger: logging.Component(logger, "api.termsheet")}
}

// Register mounts the term sheet routes.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/termsheets", h.HandleCreate)
	mux.HandleFunc("GET /api/termsheets", h.HandleList)
	mux.HandleFunc("GET /api/termsheets/{id}", h.HandleGet)
	mux.HandleFunc("POST /api/termsheets/{id}/transition", h.HandleTransition)
	mux.HandleFunc("POST /api/termsheets/{id}/revise", h.HandleRevise)
	mux.HandleFunc("POST /api/termsheets/{id}/documents", h.HandleAddDocument)
	mux.HandleFunc("POST /api/termsheets/{id}/documents/{doc}/transition", h.HandleDocumentTransition)
}

// HandleCreate opens a draft. When the body names an offer stack and scenario
// but carries no price, the terms are seeded from that scenario.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req termsheet.CreateRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	if req.Terms.PurchasePrice.IsZero() && req.OfferStackID != "" {
		terms, err := h.seedTerms(r.Context(), req.OfferStackID, req.ScenarioID)
		if err != nil {
			respond.Error(w, h.logger, err)
			return
		}
		req.Terms = terms
	}

	ts, err := h.Service.Create(r.Context(), req)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, ts)
}

func (h *Handler) seedTerms(ctx context.Context, stackID, scenarioID string) (termsheet.Terms, error) {
	if h.Offers == nil {
		return termsheet.Terms{}, fmt.Errorf("%w: terms are required", respond.ErrBadRequest)
	}
	stack, err := h.Offers.Get(ctx, stackID)
	if err != nil {
		return termsheet.Terms{}, fmt.Errorf("offer stack %s: %w", stackID, err)
	}
	for _, sc := range stack.Scenarios {
		if sc.ID == scenarioID || (scenarioID == "" && sc.Template == offer.TemplateConservative) {
			return termsheet.TermsFromScenario(sc), nil
		}
	}
	return termsheet.Terms{}, fmt.Errorf("%w: scenario %q not in stack %s", respond.ErrBadRequest, scenarioID, stackID)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context(), r.URL.Query().Get("company_id"))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	if list == nil {
		list = []*termsheet.TermSheet{}
	}
	respond.JSON(w, http.StatusOK, list)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ts, err := h.Service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, ts)
}

func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	to, err := termsheet.ParseStatus(req.To)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	ts, err := h.Service.Transition(r.Context(), r.PathValue("id"), to, req.Actor, req.Comment)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, ts)
}

func (h *Handler) HandleRevise(w http.ResponseWriter, r *http.Request) {
	var req ReviseRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	ts, err := h.Service.Revise(r.Context(), r.PathValue("id"), req.Terms, req.Author, req.Summary)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, ts)
}

func (h *Handler) HandleAddDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	_, doc, err := h.Service.AddDocument(r.Context(), r.PathValue("id"), req.Name, req.Actor)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) HandleDocumentTransition(w http.ResponseWriter, r *http.Request) {
	var req DocumentTransitionRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	to, err := termsheet.ParseDocumentStatus(req.To)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	doc, err := h.Service.TransitionDocument(r.Context(), r.PathValue("id"), r.PathValue("doc"), to, req.Actor)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, doc)
}
