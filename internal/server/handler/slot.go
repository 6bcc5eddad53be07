package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/openslot/openslot/internal/domain"
	"github.com/openslot/openslot/internal/engine"
)

// SlotHandler serves slot creation, lookup, bidding and auction close.
type SlotHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewSlotHandler creates a SlotHandler.
func NewSlotHandler(e *engine.Engine, logger *slog.Logger) *SlotHandler {
	return &SlotHandler{engine: e, logger: logger}
}

type createSlotRequest struct {
	Tier         string   `json:"tier"`
	Category     string   `json:"category"`
	Tags         []string `json:"tags"`
	ReservePrice int64    `json:"reservePrice"`
}

// Create opens a new slot for the calling issuer. The reserve price in the
// request stays private; it is never echoed back.
// POST /api/slots
func (h *SlotHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	if caller == "" {
		writeError(w, fmt.Errorf("missing X-Principal-ID header: %w", domain.ErrUnauthorized))
		return
	}

	var req createSlotRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	slot, err := h.engine.CreateSlot(r.Context(), caller, domain.Tier(req.Tier), req.Category, req.Tags, req.ReservePrice)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

// Get returns one slot.
// GET /api/slots/{id}
func (h *SlotHandler) Get(w http.ResponseWriter, r *http.Request) {
	slot, err := h.engine.GetSlot(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

type placeBidRequest struct {
	Amount int64 `json:"amount"`
}

// PlaceBid places a sealed bid on a slot for the calling bidder.
// POST /api/slots/{id}/bids
func (h *SlotHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	if caller == "" {
		writeError(w, fmt.Errorf("missing X-Principal-ID header: %w", domain.ErrUnauthorized))
		return
	}

	var req placeBidRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	bid, err := h.engine.PlaceBid(r.Context(), r.PathValue("id"), caller, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

// ListBids returns the bids on a slot in ranking order.
// GET /api/slots/{id}/bids
func (h *SlotHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	bids, err := h.engine.ListBids(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if bids == nil {
		bids = []domain.Bid{}
	}
	writeJSON(w, http.StatusOK, bids)
}

// Close settles a slot's auction immediately instead of waiting for the
// sweep. Responds 409 when the auction is not due or already closed.
// POST /api/slots/{id}/close
func (h *SlotHandler) Close(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.CloseAuction(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
