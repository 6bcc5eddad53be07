package domain

import "time"

// Signal bus channels for lifecycle events.
const (
	ChannelBids      = "bids"
	ChannelSlots     = "slots"
	ChannelContracts = "contracts"
)

// BidCreatedEvent is broadcast after a bid commits.
type BidCreatedEvent struct {
	ID           string       `json:"id"`
	SlotID       string       `json:"slotId"`
	BidderID     string       `json:"bidderId"`
	Amount       int64        `json:"amount"`
	EscrowStatus EscrowStatus `json:"escrowStatus"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// AuctionClosedEvent is broadcast after an auction close commits. The
// contract fields are set only on the IN_PROGRESS outcome.
type AuctionClosedEvent struct {
	SlotID        string     `json:"slotId"`
	Status        SlotStatus `json:"status"`
	ContractID    string     `json:"contractId,omitempty"`
	WinningBidID  string     `json:"winningBidId,omitempty"`
	ClearingPrice int64      `json:"clearingPrice,omitempty"`
}

// ContractResolvedEvent is broadcast when a contract reaches a terminal
// state, either by completion or breach.
type ContractResolvedEvent struct {
	ContractID string         `json:"contractId"`
	SlotID     string         `json:"slotId"`
	Status     ContractStatus `json:"status"`
}
