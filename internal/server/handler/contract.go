package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/openslot/openslot/internal/domain"
	"github.com/openslot/openslot/internal/engine"
)

// ContractHandler serves contract lookup and completion.
type ContractHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewContractHandler creates a ContractHandler.
func NewContractHandler(e *engine.Engine, logger *slog.Logger) *ContractHandler {
	return &ContractHandler{engine: e, logger: logger}
}

// Get returns one contract.
// GET /api/contracts/{id}
func (h *ContractHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.engine.GetContract(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Complete marks a contract fulfilled. Only the slot's issuer may call it,
// and only before the deadline.
// POST /api/contracts/{id}/complete
func (h *ContractHandler) Complete(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	if caller == "" {
		writeError(w, fmt.Errorf("missing X-Principal-ID header: %w", domain.ErrUnauthorized))
		return
	}

	c, err := h.engine.CompleteContract(r.Context(), r.PathValue("id"), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
