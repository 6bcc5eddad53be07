package domain

import (
	"context"
	"time"
)

// PrincipalStore persists principals.
type PrincipalStore interface {
	Create(ctx context.Context, p Principal) error
	GetByID(ctx context.Context, id string) (Principal, error)
	SetVerified(ctx context.Context, id string, verified bool) error
}

// SlotStore persists slots.
type SlotStore interface {
	Create(ctx context.Context, s Slot) error
	GetByID(ctx context.Context, id string) (Slot, error)

	// MarkAuctionClosed transitions the slot from OPEN to AUCTION_CLOSED
	// only if its auction deadline is at or before now. It reports whether
	// the transition happened; false means another caller already closed
	// the slot, it is not yet due, or it does not exist. This conditional
	// update is the concurrency guard for auction close.
	MarkAuctionClosed(ctx context.Context, id string, now time.Time) (bool, error)

	UpdateStatus(ctx context.Context, id string, status SlotStatus) error

	// ListDueOpen returns OPEN slots whose auction deadline is at or before
	// now, oldest deadline first.
	ListDueOpen(ctx context.Context, now time.Time, limit int) ([]Slot, error)
}

// ProfileStore persists issuer profiles.
type ProfileStore interface {
	// Lock serializes concurrent slot creation for one issuer within the
	// current transaction. Implementations without row-level locking may
	// make this a no-op when transactions are already serialized.
	Lock(ctx context.Context, issuerID string) error

	Get(ctx context.Context, issuerID string) (IssuerProfile, error)
	Upsert(ctx context.Context, p IssuerProfile) error
	ClearActiveSlot(ctx context.Context, issuerID string) error
}

// BidStore persists bids.
type BidStore interface {
	Create(ctx context.Context, b Bid) error
	GetByID(ctx context.Context, id string) (Bid, error)

	// ListBySlot returns every bid for the slot in deterministic ranking
	// order: amount descending, then creation time ascending, then id
	// ascending.
	ListBySlot(ctx context.Context, slotID string) ([]Bid, error)

	// UpdateEscrowStatus transitions a bid's escrow status from exactly
	// `from` to `to` and reports whether the transition happened.
	UpdateEscrowStatus(ctx context.Context, id string, from, to EscrowStatus) (bool, error)

	// ListSettledBefore returns bids whose escrow reached RELEASED or
	// REFUNDED and that were created strictly before the cutoff.
	ListSettledBefore(ctx context.Context, before time.Time) ([]Bid, error)
}

// ContractStore persists contracts.
type ContractStore interface {
	Create(ctx context.Context, c Contract) error
	GetByID(ctx context.Context, id string) (Contract, error)
	GetBySlot(ctx context.Context, slotID string) (Contract, error)

	// UpdateStatus transitions the contract from exactly `from` to `to`
	// and reports whether the transition happened.
	UpdateStatus(ctx context.Context, id string, from, to ContractStatus) (bool, error)

	// ListOverdueActive returns ACTIVE contracts whose deadline is at or
	// before now, oldest deadline first.
	ListOverdueActive(ctx context.Context, now time.Time, limit int) ([]Contract, error)

	// ListTerminalBefore returns COMPLETED and BREACH contracts that
	// started strictly before the cutoff.
	ListTerminalBefore(ctx context.Context, before time.Time) ([]Contract, error)
}

// AuditEntry is a single append-only audit row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"createdAt"`
}

// AuditStore persists the append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
}

// Store bundles the entity stores behind a single transactional boundary.
// InTx runs fn against a Store view scoped to one transaction; the work
// commits only if fn returns nil, otherwise no effect remains.
type Store interface {
	Principals() PrincipalStore
	Slots() SlotStore
	Profiles() ProfileStore
	Bids() BidStore
	Contracts() ContractStore
	Audit() AuditStore

	InTx(ctx context.Context, fn func(Store) error) error
}
