package domain

import "time"

// SlotStatus tracks the slot lifecycle. Transitions are monotonic along
// OPEN -> AUCTION_CLOSED -> {IN_PROGRESS -> {COMPLETED | BREACH} | VOID}.
type SlotStatus string

const (
	SlotStatusOpen          SlotStatus = "OPEN"
	SlotStatusAuctionClosed SlotStatus = "AUCTION_CLOSED"
	SlotStatusInProgress    SlotStatus = "IN_PROGRESS"
	SlotStatusCompleted     SlotStatus = "COMPLETED"
	SlotStatusBreach        SlotStatus = "BREACH"
	SlotStatusVoid          SlotStatus = "VOID"
)

// Tier is the duration class of a slot's contract period.
type Tier string

const (
	TierSprint   Tier = "SPRINT"
	TierStandard Tier = "STANDARD"
	TierExtended Tier = "EXTENDED"
)

// tierDays maps each tier to its fixed contract period in days.
var tierDays = map[Tier]int{
	TierSprint:   7,
	TierStandard: 14,
	TierExtended: 30,
}

// Valid reports whether the tier is one of the known duration classes.
func (t Tier) Valid() bool {
	_, ok := tierDays[t]
	return ok
}

// Duration returns the contract period for the tier.
func (t Tier) Duration() time.Duration {
	return time.Duration(tierDays[t]) * 24 * time.Hour
}

// Slot is one auctionable access unit offered by an issuer. At most one slot
// per issuer may be open or in flight at any time; that invariant is held on
// the issuer's profile, not here.
type Slot struct {
	ID            string     `json:"id"`
	IssuerID      string     `json:"issuerId"`
	Tier          Tier       `json:"tier"`
	Category      string     `json:"category"`
	Status        SlotStatus `json:"status"`
	AuctionEndsAt time.Time  `json:"auctionEndsAt"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// IssuerProfile carries per-issuer auction state. ReservePrice is private to
// the issuer and must never be serialized outward. ActiveSlotID points at the
// issuer's single open/in-flight slot, or is nil when none exists.
type IssuerProfile struct {
	IssuerID     string    `json:"issuerId"`
	ReservePrice int64     `json:"-"`
	Tags         []string  `json:"tags"`
	ActiveSlotID *string   `json:"activeSlotId"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
