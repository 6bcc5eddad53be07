package domain

import "time"

// EscrowStatus tracks where a bid's locked funds stand. A bid starts LOCKED
// and moves to exactly one of RELEASED or REFUNDED, never back.
type EscrowStatus string

const (
	EscrowStatusLocked   EscrowStatus = "LOCKED"
	EscrowStatusReleased EscrowStatus = "RELEASED"
	EscrowStatusRefunded EscrowStatus = "REFUNDED"
)

// Bid is a sealed bid on a slot. Amount is in the smallest currency unit
// (cents). Bids are immutable except for EscrowStatus.
type Bid struct {
	ID           string       `json:"id"`
	SlotID       string       `json:"slotId"`
	BidderID     string       `json:"bidderId"`
	Amount       int64        `json:"amount"`
	EscrowStatus EscrowStatus `json:"escrowStatus"`
	CreatedAt    time.Time    `json:"createdAt"`
}
