package config

import (
	"fmt"
	"net/http"

	"github.com/phuslu/log"

	"deal_valuation/pkg/api/respond"
	"deal_valuation/pkg/core/agent"
	"deal_valuation/pkg/core/logging"
)

type Response struct {
	ActiveProvider string                       `json:"active_provider"`
	Available      []string                     `json:"available"`
	Agents         map[string]agent.AgentConfig `json:"agents"`
}

type SwitchRequest struct {
	Provider string `json:"provider" validate:"required"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	AgentMgr *agent.Manager
	logger   *log.Logger
}

// NewHandler creates a new config handler
func NewHandler(agentMgr *agent.Manager, logger *log.Logger) *Handler {
	return &Handler{
		AgentMgr: agentMgr,
		logger:   logging.Component(logger, "api.config"),
	}
}

// Register mounts the config routes.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/config", h.HandleConfig)
	mux.HandleFunc("POST /api/config/switch", h.HandleSwitch)
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, h.snapshot())
}

func (h *Handler) snapshot() Response {
	return Response{
		ActiveProvider: h.AgentMgr.GetActiveProvider(),
		Available:      h.AgentMgr.Providers(),
		Agents:         h.AgentMgr.Config().Agents,
	}
}

func (h *Handler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	var req SwitchRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	if err := h.AgentMgr.SetGlobalProvider(req.Provider); err != nil {
		respond.Error(w, h.logger, fmt.Errorf("%w: %v", respond.ErrBadRequest, err))
		return
	}
	h.logger.Info().Str("provider", req.Provider).Msg("switched active provider")
	respond.JSON(w, http.StatusOK, h.snapshot())
}
