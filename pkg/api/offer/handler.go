package offer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/phuslu/log"

	"deal_valuation/pkg/api/respond"
	"deal_valuation/pkg/core/logging"
	"deal_valuation/pkg/core/offer"
	"deal_valuation/pkg/core/valuation"
)

// Repository persists generated offer stacks.
type Repository interface {
	Save(ctx context.Context, stack *offer.OfferStack) error
	Get(ctx context.Context, id string) (*offer.OfferStack, error)
}

// ValuationLookup resolves a stored valuation to take the range from.
type ValuationLookup interface {
	Get(ctx context.Context, id string) (*valuation.ComprehensiveValuation, error)
}

// GenerateRequest asks for an offer stack either over an explicit range or
// over the range of a stored valuation.
type GenerateRequest struct {
	CompanyID       string                `json:"company_id" validate:"required_without=ValuationID"`
	CompanyName     string                `json:"company_name,omitempty"`
	ValuationID     string                `json:"valuation_id,omitempty"`
	Range           *offer.ValuationRange `json:"valuation_range,omitempty" validate:"required_without=ValuationID"`
	IncludeOptional *bool                 `json:"include_optional,omitempty"`
	Templates       []offer.TemplateName  `json:"templates,omitempty"`
	SkipInsights    bool                  `json:"skip_insights,omitempty"`
}

// Handler holds dependencies for offer generation endpoints
type Handler struct {
	Generator       *offer.Generator
	Repo            Repository
	Valuations      ValuationLookup
	IncludeOptional bool
	logger          *log.Logger
}

// NewHandler creates a new offer handler
func NewHandler(gen *offer.Generator, repo Repository, valuations ValuationLookup, logger *log.Logger) *Handler {
	return &Handler{
		Generator:  gen,
		Repo:       repo,
		Valuations: valuations,
		logger:     logging.Component(logger, "api.offer"),
	}
}

// Register mounts the offer routes.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/offer-generation/generate-offer-stack", h.HandleGenerate)
	mux.HandleFunc("GET /api/offer-generation/stacks/{id}", h.HandleGet)
}

func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var body GenerateRequest
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	req, err := h.resolve(r.Context(), body)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	stack, err := h.Generator.Generate(r.Context(), req)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	if err := h.Repo.Save(r.Context(), stack); err != nil {
		respond.Error(w, h.logger, fmt.Errorf("save offer stack %s: %w", stack.ID, err))
		return
	}
	respond.JSON(w, http.StatusOK, stack)
}

// resolve turns the body into a generator request, pulling the range and
// company from the referenced valuation when one is given.
func (h *Handler) resolve(ctx context.Context, body GenerateRequest) (offer.Request, error) {
	req := offer.Request{
		CompanyID:       body.CompanyID,
		CompanyName:     body.CompanyName,
		ValuationID:     body.ValuationID,
		IncludeOptional: h.IncludeOptional,
		Templates:       body.Templates,
		SkipInsights:    body.SkipInsights,
	}
	if body.IncludeOptional != nil {
		req.IncludeOptional = *body.IncludeOptional
	}

	if body.Range != nil {
		req.Range = *body.Range
		return req, nil
	}
	if h.Valuations == nil {
		return req, fmt.Errorf("%w: valuation_range is required", respond.ErrBadRequest)
	}
	cv, err := h.Valuations.Get(ctx, body.ValuationID)
	if err != nil {
		return req, fmt.Errorf("valuation %s: %w", body.ValuationID, err)
	}
	req.Range = offer.NewRange(cv.Low, cv.High)
	if req.CompanyID == "" {
		req.CompanyID = cv.CompanyID
	}
	if req.CompanyName == "" {
		req.CompanyName = cv.CompanyName
	}
	return req, nil
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	stack, err := h.Repo.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, stack)
}
