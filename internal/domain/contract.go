package domain

import "time"

// ContractStatus tracks the contract lifecycle. ACTIVE moves to exactly one
// of COMPLETED or BREACH, never back.
type ContractStatus string

const (
	ContractStatusActive    ContractStatus = "ACTIVE"
	ContractStatusCompleted ContractStatus = "COMPLETED"
	ContractStatusBreach    ContractStatus = "BREACH"
)

// Contract binds a slot to its winning bid after auction close. ClearingPrice
// is the second-price amount the winner actually pays, in cents.
type Contract struct {
	ID            string         `json:"id"`
	SlotID        string         `json:"slotId"`
	WinningBidID  string         `json:"winningBidId"`
	ClearingPrice int64          `json:"clearingPrice"`
	Status        ContractStatus `json:"status"`
	StartedAt     time.Time      `json:"startedAt"`
	DeadlineAt    time.Time      `json:"deadlineAt"`
}

// Terminal reports whether the contract has reached a final state.
func (c Contract) Terminal() bool {
	return c.Status == ContractStatusCompleted || c.Status == ContractStatusBreach
}
