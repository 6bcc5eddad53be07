package handler

import (
	"log/slog"
	"net/http"

	"github.com/openslot/openslot/internal/domain"
	"github.com/openslot/openslot/internal/engine"
)

// PrincipalHandler serves principal registration and lookup.
type PrincipalHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewPrincipalHandler creates a PrincipalHandler.
func NewPrincipalHandler(e *engine.Engine, logger *slog.Logger) *PrincipalHandler {
	return &PrincipalHandler{engine: e, logger: logger}
}

type registerRequest struct {
	Kind        string `json:"kind"`
	DisplayName string `json:"displayName"`
}

// Register creates a new unverified principal.
// POST /api/principals
func (h *PrincipalHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.engine.RegisterPrincipal(r.Context(), domain.PrincipalKind(req.Kind), req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// Verify marks a principal as verified.
// POST /api/principals/{id}/verify
func (h *PrincipalHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.engine.VerifyPrincipal(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "verified": true})
}

// Get returns one principal.
// GET /api/principals/{id}
func (h *PrincipalHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.engine.GetPrincipal(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
