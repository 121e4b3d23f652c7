package valuation

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/phuslu/log"

	"deal_valuation/pkg/api/respond"
	"deal_valuation/pkg/core/logging"
	"deal_valuation/pkg/core/valuation"
)

// Repository persists finished valuations.
type Repository interface {
	Save(ctx context.Context, cv *valuation.ComprehensiveValuation) error
	Get(ctx context.Context, id string) (*valuation.ComprehensiveValuation, error)
	History(ctx context.Context, companyID string, limit int) ([]*valuation.ComprehensiveValuation, error)
}

// HistoryResponse lists past runs for a company, newest first.
type HistoryResponse struct {
	CompanyID  string                              `json:"company_id"`
	Valuations []*valuation.ComprehensiveValuation `json:"valuations"`
}

const defaultHistoryLimit = 20

// Handler holds dependencies for valuation endpoints
type Handler struct {
	Engine *valuation.Engine
	Repo   Repository
	logger *log.Logger
}

// NewHandler creates a new valuation handler
func NewHandler(engine *valuation.Engine, repo Repository, logger *log.Logger) *Handler {
	return &Handler{Engine: engine, Repo: repo, logger: logging.Component(logger, "api.valuation")}
}

// Register mounts the valuation routes.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/valuation/run", h.HandleRun)
	mux.HandleFunc("GET /api/valuation/history", h.HandleHistory)
	mux.HandleFunc("GET /api/valuation/{id}", h.HandleGet)
	mux.HandleFunc("POST /api/valuation/sensitivity", h.HandleSensitivity)
	mux.HandleFunc("POST /api/valuation/montecarlo", h.HandleMonteCarlo)
}

func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req valuation.Request
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	cv, err := h.Engine.Run(r.Context(), req)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	if err := h.Repo.Save(r.Context(), cv); err != nil {
		respond.Error(w, h.logger, fmt.Errorf("save valuation %s: %w", cv.ID, err))
		return
	}
	h.logger.Info().Str("id", cv.ID).Str("company_id", cv.CompanyID).Msg("valuation stored")
	respond.JSON(w, http.StatusOK, cv)
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("company_id")
	if companyID == "" {
		respond.Error(w, h.logger, fmt.Errorf("%w: company_id is required", respond.ErrBadRequest))
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respond.Error(w, h.logger, fmt.Errorf("%w: limit must be a positive integer", respond.ErrBadRequest))
			return
		}
		limit = n
	}

	list, err := h.Repo.History(r.Context(), companyID, limit)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	if list == nil {
		list = []*valuation.ComprehensiveValuation{}
	}
	respond.JSON(w, http.StatusOK, HistoryResponse{CompanyID: companyID, Valuations: list})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	cv, err := h.Repo.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, cv)
}

func (h *Handler) HandleSensitivity(w http.ResponseWriter, r *http.Request) {
	var req valuation.SensitivityRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	rep, err := h.Engine.Sensitivity(r.Context(), req)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, rep)
}

func (h *Handler) HandleMonteCarlo(w http.ResponseWriter, r *http.Request) {
	var req valuation.Request
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	res, err := h.Engine.Simulate(r.Context(), req)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}
