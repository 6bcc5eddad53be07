package handler

import (
	"log/slog"
	"net/http"

	"github.com/openslot/openslot/internal/engine"
)

// SweepHandler exposes a manual trigger for the lifecycle sweeps, useful for
// operations and tests that cannot wait for the scheduler.
type SweepHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewSweepHandler creates a SweepHandler.
func NewSweepHandler(e *engine.Engine, logger *slog.Logger) *SweepHandler {
	return &SweepHandler{engine: e, logger: logger}
}

// Run executes one sweep pass and returns its report.
// POST /api/sweeps/run
func (h *SweepHandler) Run(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.Sweep(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
