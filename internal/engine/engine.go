// Package engine implements the slot auction lifecycle: slot creation, sealed
// bidding with escrow, second-price auction close, contract completion and
// automatic breach. Every state transition runs inside one store transaction
// with conditional updates guarding against concurrent actors.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/openslot/openslot/internal/domain"
	"github.com/openslot/openslot/internal/escrow"
)

// Notifier receives lifecycle alerts after the corresponding transaction has
// committed. Implementations must not block for long; delivery is
// best-effort.
type Notifier interface {
	NotifyAuctionClosed(ctx context.Context, ev domain.AuctionClosedEvent)
	NotifyContractResolved(ctx context.Context, ev domain.ContractResolvedEvent)
}

// Config holds the tunables of the auction lifecycle.
type Config struct {
	// AuctionWindow is how long a slot accepts bids after creation.
	AuctionWindow time.Duration

	// FeeRate is the platform's cut of the clearing price, in [0, 1).
	FeeRate float64

	// BidRateLimit and BidRateWindow bound how many bids one bidder may
	// place per window. A zero limit disables rate limiting.
	BidRateLimit  int
	BidRateWindow time.Duration
}

// Engine drives the auction lifecycle against a Store and an escrow Gateway.
type Engine struct {
	store    domain.Store
	gateway  escrow.Gateway
	cfg      Config
	bus      domain.SignalBus
	limiter  domain.RateLimiter
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithSignalBus attaches a pub/sub bus for post-commit event broadcast.
func WithSignalBus(bus domain.SignalBus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithRateLimiter attaches a per-bidder rate limiter.
func WithRateLimiter(l domain.RateLimiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// WithNotifier attaches a lifecycle notifier.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithClock overrides the engine clock. Test hook.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(store domain.Store, gateway escrow.Gateway, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		gateway: gateway,
		cfg:     cfg,
		log:     slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterPrincipal creates an unverified principal of the given kind.
func (e *Engine) RegisterPrincipal(ctx context.Context, kind domain.PrincipalKind, displayName string) (domain.Principal, error) {
	if kind != domain.PrincipalKindIssuer && kind != domain.PrincipalKindBidder {
		return domain.Principal{}, fmt.Errorf("unknown principal kind %q: %w", kind, domain.ErrValidation)
	}
	if displayName == "" {
		return domain.Principal{}, fmt.Errorf("display name is required: %w", domain.ErrValidation)
	}

	p := domain.Principal{
		ID:          uuid.NewString(),
		Kind:        kind,
		DisplayName: displayName,
		CreatedAt:   e.now(),
	}
	if err := e.store.Principals().Create(ctx, p); err != nil {
		return domain.Principal{}, fmt.Errorf("create principal: %w", err)
	}
	return p, nil
}

// VerifyPrincipal marks a principal as verified.
func (e *Engine) VerifyPrincipal(ctx context.Context, id string) error {
	if err := e.store.Principals().SetVerified(ctx, id, true); err != nil {
		return fmt.Errorf("verify principal %s: %w", id, err)
	}
	return nil
}

// GetPrincipal returns one principal.
func (e *Engine) GetPrincipal(ctx context.Context, id string) (domain.Principal, error) {
	return e.store.Principals().GetByID(ctx, id)
}

// GetSlot returns one slot.
func (e *Engine) GetSlot(ctx context.Context, id string) (domain.Slot, error) {
	return e.store.Slots().GetByID(ctx, id)
}

// GetContract returns one contract.
func (e *Engine) GetContract(ctx context.Context, id string) (domain.Contract, error) {
	return e.store.Contracts().GetByID(ctx, id)
}

// ListBids returns every bid on a slot in ranking order.
func (e *Engine) ListBids(ctx context.Context, slotID string) ([]domain.Bid, error) {
	return e.store.Bids().ListBySlot(ctx, slotID)
}

// CreateSlot opens a new slot for a verified issuer. The issuer's reserve
// price and category tags are recorded on their profile; the reserve price
// never leaves the service. An issuer with a slot still in flight cannot open
// another.
func (e *Engine) CreateSlot(ctx context.Context, issuerID string, tier domain.Tier, category string, tags []string, reservePrice int64) (domain.Slot, error) {
	if !tier.Valid() {
		return domain.Slot{}, fmt.Errorf("unknown tier %q: %w", tier, domain.ErrValidation)
	}
	if category == "" {
		return domain.Slot{}, fmt.Errorf("category is required: %w", domain.ErrValidation)
	}
	if len(tags) == 0 {
		return domain.Slot{}, fmt.Errorf("at least one tag is required: %w", domain.ErrValidation)
	}
	for _, tag := range tags {
		if tag == "" {
			return domain.Slot{}, fmt.Errorf("tags must not be empty: %w", domain.ErrValidation)
		}
	}
	if reservePrice <= 0 {
		return domain.Slot{}, fmt.Errorf("reserve price must be positive: %w", domain.ErrValidation)
	}

	now := e.now()
	slot := domain.Slot{
		ID:            uuid.NewString(),
		IssuerID:      issuerID,
		Tier:          tier,
		Category:      category,
		Status:        domain.SlotStatusOpen,
		AuctionEndsAt: now.Add(e.cfg.AuctionWindow),
		CreatedAt:     now,
	}

	err := e.store.InTx(ctx, func(tx domain.Store) error {
		issuer, err := tx.Principals().GetByID(ctx, issuerID)
		if err != nil {
			return fmt.Errorf("load issuer %s: %w", issuerID, err)
		}
		if !issuer.IsVerifiedIssuer() {
			return fmt.Errorf("principal %s is not a verified issuer: %w", issuerID, domain.ErrUnauthorized)
		}

		// Serializes concurrent slot creation for this issuer.
		if err := tx.Profiles().Lock(ctx, issuerID); err != nil {
			return fmt.Errorf("lock issuer profile %s: %w", issuerID, err)
		}

		profile, err := tx.Profiles().Get(ctx, issuerID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			profile = domain.IssuerProfile{IssuerID: issuerID}
		case err != nil:
			return fmt.Errorf("load issuer profile %s: %w", issuerID, err)
		}
		if profile.ActiveSlotID != nil {
			return fmt.Errorf("issuer %s already has slot %s in flight: %w",
				issuerID, *profile.ActiveSlotID, domain.ErrStateConflict)
		}

		if err := tx.Slots().Create(ctx, slot); err != nil {
			return fmt.Errorf("create slot: %w", err)
		}

		profile.ReservePrice = reservePrice
		profile.Tags = tags
		profile.ActiveSlotID = &slot.ID
		profile.UpdatedAt = now
		if err := tx.Profiles().Upsert(ctx, profile); err != nil {
			return fmt.Errorf("update issuer profile %s: %w", issuerID, err)
		}

		return tx.Audit().Log(ctx, "slot.created", map[string]any{
			"slotId":   slot.ID,
			"issuerId": issuerID,
			"tier":     string(tier),
			"category": category,
		})
	})
	if err != nil {
		return domain.Slot{}, err
	}

	e.publish(ctx, domain.ChannelSlots, slot)
	return slot, nil
}

// PlaceBid records a sealed bid on an open slot after locking the bid amount
// in escrow. The escrow lock happens inside the transaction before the bid
// row is written, so a failed lock leaves no bid behind.
func (e *Engine) PlaceBid(ctx context.Context, slotID, bidderID string, amount int64) (domain.Bid, error) {
	if amount <= 0 {
		return domain.Bid{}, fmt.Errorf("bid amount must be positive: %w", domain.ErrValidation)
	}

	if e.limiter != nil && e.cfg.BidRateLimit > 0 {
		allowed, err := e.limiter.Allow(ctx, "bid:"+bidderID, e.cfg.BidRateLimit, e.cfg.BidRateWindow)
		if err != nil {
			// The limiter is advisory; a broken limiter must not take
			// bidding down with it.
			e.log.Warn("rate limiter unavailable, allowing bid", "bidder_id", bidderID, "error", err)
		} else if !allowed {
			return domain.Bid{}, fmt.Errorf("bidder %s exceeded bid rate: %w", bidderID, domain.ErrRateLimited)
		}
	}

	now := e.now()
	bid := domain.Bid{
		ID:           uuid.NewString(),
		SlotID:       slotID,
		BidderID:     bidderID,
		Amount:       amount,
		EscrowStatus: domain.EscrowStatusLocked,
		CreatedAt:    now,
	}

	err := e.store.InTx(ctx, func(tx domain.Store) error {
		bidder, err := tx.Principals().GetByID(ctx, bidderID)
		if err != nil {
			return fmt.Errorf("load bidder %s: %w", bidderID, err)
		}
		if !bidder.IsVerifiedBidder() {
			return fmt.Errorf("principal %s is not a verified bidder: %w", bidderID, domain.ErrUnauthorized)
		}

		slot, err := tx.Slots().GetByID(ctx, slotID)
		if err != nil {
			return fmt.Errorf("load slot %s: %w", slotID, err)
		}
		if slot.IssuerID == bidderID {
			return fmt.Errorf("issuer cannot bid on own slot: %w", domain.ErrUnauthorized)
		}
		if slot.Status != domain.SlotStatusOpen {
			return fmt.Errorf("slot %s is %s, not open for bids: %w", slotID, slot.Status, domain.ErrStateConflict)
		}
		if !now.Before(slot.AuctionEndsAt) {
			return fmt.Errorf("auction for slot %s has ended: %w", slotID, domain.ErrStateConflict)
		}

		if err := e.gateway.LockFunds(ctx, bid.ID, bidderID, amount); err != nil {
			return fmt.Errorf("lock escrow for bid %s: %w", bid.ID, err)
		}

		if err := tx.Bids().Create(ctx, bid); err != nil {
			return fmt.Errorf("create bid: %w", err)
		}

		return tx.Audit().Log(ctx, "bid.placed", map[string]any{
			"bidId":    bid.ID,
			"slotId":   slotID,
			"bidderId": bidderID,
			"amount":   amount,
		})
	})
	if err != nil {
		return domain.Bid{}, err
	}

	e.publish(ctx, domain.ChannelBids, domain.BidCreatedEvent{
		ID:           bid.ID,
		SlotID:       bid.SlotID,
		BidderID:     bid.BidderID,
		Amount:       bid.Amount,
		EscrowStatus: bid.EscrowStatus,
		CreatedAt:    bid.CreatedAt,
	})
	return bid, nil
}

// CloseResult reports the outcome of one auction close.
type CloseResult struct {
	Slot     domain.Slot
	Contract *domain.Contract // nil on the VOID outcome
	Refunded []string         // bid ids refunded during the close
}

// CloseAuction settles a slot whose auction window has ended. The winner is
// the highest valid bid, paying the second-highest valid amount; with no
// valid bids the slot voids and every escrow refunds. Returns ErrNotClosable
// when the slot is not OPEN or not yet due, which makes the close safe to
// call repeatedly from sweeps.
func (e *Engine) CloseAuction(ctx context.Context, slotID string) (CloseResult, error) {
	now := e.now()
	var result CloseResult
	var ev domain.AuctionClosedEvent

	err := e.store.InTx(ctx, func(tx domain.Store) error {
		closed, err := tx.Slots().MarkAuctionClosed(ctx, slotID, now)
		if err != nil {
			return fmt.Errorf("mark auction closed %s: %w", slotID, err)
		}
		if !closed {
			return fmt.Errorf("slot %s: %w", slotID, domain.ErrNotClosable)
		}

		slot, err := tx.Slots().GetByID(ctx, slotID)
		if err != nil {
			return fmt.Errorf("load slot %s: %w", slotID, err)
		}

		profile, err := tx.Profiles().Get(ctx, slot.IssuerID)
		if err != nil {
			return fmt.Errorf("load issuer profile %s for slot %s: %w: %w",
				slot.IssuerID, slotID, err, domain.ErrIntegrity)
		}

		bids, err := tx.Bids().ListBySlot(ctx, slotID)
		if err != nil {
			return fmt.Errorf("list bids for slot %s: %w", slotID, err)
		}

		// Bids below the issuer's reserve never win but still refund.
		var valid []domain.Bid
		for _, b := range bids {
			if b.Amount >= profile.ReservePrice {
				valid = append(valid, b)
			}
		}

		if len(valid) == 0 {
			refunded, err := e.refundBids(ctx, tx, bids, nil)
			result.Refunded = refunded
			if err != nil {
				return err
			}
			if err := tx.Slots().UpdateStatus(ctx, slotID, domain.SlotStatusVoid); err != nil {
				return fmt.Errorf("void slot %s: %w", slotID, err)
			}
			if err := tx.Profiles().ClearActiveSlot(ctx, slot.IssuerID); err != nil {
				return fmt.Errorf("clear active slot for issuer %s: %w", slot.IssuerID, err)
			}
			if err := tx.Audit().Log(ctx, "auction.void", map[string]any{
				"slotId":   slotID,
				"bidCount": len(bids),
			}); err != nil {
				return err
			}
			slot.Status = domain.SlotStatusVoid
			result.Slot = slot
			ev = domain.AuctionClosedEvent{SlotID: slotID, Status: domain.SlotStatusVoid}
			return nil
		}

		winner := valid[0]
		clearing := winner.Amount
		if len(valid) > 1 {
			clearing = valid[1].Amount
		}

		refunded, err := e.refundBids(ctx, tx, bids, &winner)
		result.Refunded = refunded
		if err != nil {
			return err
		}

		// The winner's escrow keeps only the clearing price; the rest goes
		// back immediately under a distinct reference so a later breach
		// refund of the clearing amount cannot collide with it.
		if excess := winner.Amount - clearing; excess > 0 {
			if err := e.gateway.RefundToOwner(ctx, winner.ID+":excess", winner.BidderID, excess); err != nil {
				return fmt.Errorf("refund excess for winning bid %s: %w", winner.ID, err)
			}
		}

		contract := domain.Contract{
			ID:            uuid.NewString(),
			SlotID:        slotID,
			WinningBidID:  winner.ID,
			ClearingPrice: clearing,
			Status:        domain.ContractStatusActive,
			StartedAt:     now,
			DeadlineAt:    now.Add(slot.Tier.Duration()),
		}
		if err := tx.Contracts().Create(ctx, contract); err != nil {
			return fmt.Errorf("create contract for slot %s: %w", slotID, err)
		}
		if err := tx.Slots().UpdateStatus(ctx, slotID, domain.SlotStatusInProgress); err != nil {
			return fmt.Errorf("start slot %s: %w", slotID, err)
		}
		if err := tx.Audit().Log(ctx, "auction.closed", map[string]any{
			"slotId":        slotID,
			"contractId":    contract.ID,
			"winningBidId":  winner.ID,
			"clearingPrice": clearing,
			"bidCount":      len(bids),
		}); err != nil {
			return err
		}

		slot.Status = domain.SlotStatusInProgress
		result.Slot = slot
		result.Contract = &contract
		ev = domain.AuctionClosedEvent{
			SlotID:        slotID,
			Status:        domain.SlotStatusInProgress,
			ContractID:    contract.ID,
			WinningBidID:  winner.ID,
			ClearingPrice: clearing,
		}
		return nil
	})
	if err != nil {
		return CloseResult{}, err
	}

	e.publish(ctx, domain.ChannelSlots, ev)
	if e.notifier != nil {
		e.notifier.NotifyAuctionClosed(ctx, ev)
	}
	return result, nil
}

// refundBids refunds every bid except the winner, in ranking order. All
// refunds are attempted even after a failure so the gateway sees as many as
// possible; any failure still aborts the surrounding transaction, and the
// gateway's idempotency lets a retried close converge.
func (e *Engine) refundBids(ctx context.Context, tx domain.Store, bids []domain.Bid, winner *domain.Bid) ([]string, error) {
	var refunded []string
	var errs []error
	for _, b := range bids {
		if winner != nil && b.ID == winner.ID {
			continue
		}
		updated, err := tx.Bids().UpdateEscrowStatus(ctx, b.ID, domain.EscrowStatusLocked, domain.EscrowStatusRefunded)
		if err != nil {
			errs = append(errs, fmt.Errorf("mark bid %s refunded: %w", b.ID, err))
			continue
		}
		if !updated {
			continue // already settled
		}
		if err := e.gateway.RefundToOwner(ctx, b.ID, b.BidderID, b.Amount); err != nil {
			errs = append(errs, fmt.Errorf("refund bid %s: %w", b.ID, err))
			continue
		}
		refunded = append(refunded, b.ID)
	}
	return refunded, errors.Join(errs...)
}

// CompleteContract settles an active contract at or before its deadline: the
// clearing price minus the platform fee releases to the issuer and the
// winner's escrow closes as RELEASED. Only the slot's issuer may complete.
func (e *Engine) CompleteContract(ctx context.Context, contractID, issuerID string) (domain.Contract, error) {
	now := e.now()
	var out domain.Contract
	var ev domain.ContractResolvedEvent

	err := e.store.InTx(ctx, func(tx domain.Store) error {
		contract, err := tx.Contracts().GetByID(ctx, contractID)
		if err != nil {
			return fmt.Errorf("load contract %s: %w", contractID, err)
		}

		slot, err := tx.Slots().GetByID(ctx, contract.SlotID)
		if err != nil {
			return fmt.Errorf("load slot %s for contract %s: %w: %w",
				contract.SlotID, contractID, err, domain.ErrIntegrity)
		}
		if slot.IssuerID != issuerID {
			return fmt.Errorf("principal %s does not own contract %s: %w",
				issuerID, contractID, domain.ErrUnauthorized)
		}

		if contract.Status != domain.ContractStatusActive {
			return fmt.Errorf("contract %s is %s, not active: %w",
				contractID, contract.Status, domain.ErrStateConflict)
		}
		// Completion at exactly the deadline still counts as on time.
		if now.After(contract.DeadlineAt) {
			return fmt.Errorf("contract %s: %w", contractID, domain.ErrDeadlinePassed)
		}

		bid, err := tx.Bids().GetByID(ctx, contract.WinningBidID)
		if err != nil {
			return fmt.Errorf("load winning bid %s: %w: %w", contract.WinningBidID, err, domain.ErrIntegrity)
		}
		if bid.EscrowStatus != domain.EscrowStatusLocked {
			return fmt.Errorf("winning bid %s escrow is %s, expected locked: %w",
				bid.ID, bid.EscrowStatus, domain.ErrIntegrity)
		}

		fee := PlatformFee(contract.ClearingPrice, e.cfg.FeeRate)
		if err := e.gateway.ReleaseToExecutive(ctx, bid.ID, issuerID, contract.ClearingPrice-fee, fee); err != nil {
			return fmt.Errorf("release escrow for bid %s: %w", bid.ID, err)
		}

		updated, err := tx.Bids().UpdateEscrowStatus(ctx, bid.ID, domain.EscrowStatusLocked, domain.EscrowStatusReleased)
		if err != nil {
			return fmt.Errorf("mark bid %s released: %w", bid.ID, err)
		}
		if !updated {
			return fmt.Errorf("bid %s escrow changed during completion: %w", bid.ID, domain.ErrIntegrity)
		}

		updated, err = tx.Contracts().UpdateStatus(ctx, contractID, domain.ContractStatusActive, domain.ContractStatusCompleted)
		if err != nil {
			return fmt.Errorf("complete contract %s: %w", contractID, err)
		}
		if !updated {
			return fmt.Errorf("contract %s left active during completion: %w", contractID, domain.ErrStateConflict)
		}

		if err := tx.Slots().UpdateStatus(ctx, contract.SlotID, domain.SlotStatusCompleted); err != nil {
			return fmt.Errorf("complete slot %s: %w", contract.SlotID, err)
		}
		if err := tx.Profiles().ClearActiveSlot(ctx, issuerID); err != nil {
			return fmt.Errorf("clear active slot for issuer %s: %w", issuerID, err)
		}
		if err := tx.Audit().Log(ctx, "contract.completed", map[string]any{
			"contractId":  contractID,
			"slotId":      contract.SlotID,
			"platformFee": fee,
			"netAmount":   contract.ClearingPrice - fee,
		}); err != nil {
			return err
		}

		contract.Status = domain.ContractStatusCompleted
		out = contract
		ev = domain.ContractResolvedEvent{
			ContractID: contractID,
			SlotID:     contract.SlotID,
			Status:     domain.ContractStatusCompleted,
		}
		return nil
	})
	if err != nil {
		return domain.Contract{}, err
	}

	e.publish(ctx, domain.ChannelContracts, ev)
	if e.notifier != nil {
		e.notifier.NotifyContractResolved(ctx, ev)
	}
	return out, nil
}

// AutoBreach marks an overdue active contract as breached and refunds the
// winner's remaining escrow. It reports whether any transition happened; a
// contract that is already terminal or not yet overdue is a no-op, so sweeps
// may call it repeatedly.
func (e *Engine) AutoBreach(ctx context.Context, contractID string) (bool, error) {
	now := e.now()
	acted := false
	var ev domain.ContractResolvedEvent

	err := e.store.InTx(ctx, func(tx domain.Store) error {
		contract, err := tx.Contracts().GetByID(ctx, contractID)
		if err != nil {
			return fmt.Errorf("load contract %s: %w", contractID, err)
		}
		// Breach fires only strictly past the deadline; at the deadline
		// itself the issuer may still complete.
		if contract.Status != domain.ContractStatusActive || !now.After(contract.DeadlineAt) {
			return nil
		}

		updated, err := tx.Contracts().UpdateStatus(ctx, contractID, domain.ContractStatusActive, domain.ContractStatusBreach)
		if err != nil {
			return fmt.Errorf("breach contract %s: %w", contractID, err)
		}
		if !updated {
			return nil
		}

		// The escrow still holds the clearing price; excess above it was
		// refunded at auction close.
		bid, err := tx.Bids().GetByID(ctx, contract.WinningBidID)
		if err != nil {
			return fmt.Errorf("load winning bid %s: %w: %w", contract.WinningBidID, err, domain.ErrIntegrity)
		}
		refund, err := tx.Bids().UpdateEscrowStatus(ctx, bid.ID, domain.EscrowStatusLocked, domain.EscrowStatusRefunded)
		if err != nil {
			return fmt.Errorf("mark bid %s refunded: %w", bid.ID, err)
		}
		if refund {
			if err := e.gateway.RefundToOwner(ctx, bid.ID, bid.BidderID, contract.ClearingPrice); err != nil {
				return fmt.Errorf("refund winning bid %s: %w", bid.ID, err)
			}
		}

		slot, err := tx.Slots().GetByID(ctx, contract.SlotID)
		if err != nil {
			return fmt.Errorf("load slot %s: %w: %w", contract.SlotID, err, domain.ErrIntegrity)
		}
		if err := tx.Slots().UpdateStatus(ctx, contract.SlotID, domain.SlotStatusBreach); err != nil {
			return fmt.Errorf("breach slot %s: %w", contract.SlotID, err)
		}
		if err := tx.Profiles().ClearActiveSlot(ctx, slot.IssuerID); err != nil {
			return fmt.Errorf("clear active slot for issuer %s: %w", slot.IssuerID, err)
		}
		if err := tx.Audit().Log(ctx, "contract.breached", map[string]any{
			"contractId":     contractID,
			"slotId":         contract.SlotID,
			"refundedEscrow": refund,
		}); err != nil {
			return err
		}

		acted = true
		ev = domain.ContractResolvedEvent{
			ContractID: contractID,
			SlotID:     contract.SlotID,
			Status:     domain.ContractStatusBreach,
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if acted {
		e.publish(ctx, domain.ChannelContracts, ev)
		if e.notifier != nil {
			e.notifier.NotifyContractResolved(ctx, ev)
		}
	}
	return acted, nil
}

// PlatformFee computes the platform's cut of a clearing price, rounded down.
func PlatformFee(clearingPrice int64, rate float64) int64 {
	return int64(math.Floor(float64(clearingPrice) * rate))
}

// publish broadcasts a payload on the signal bus. A publish failure is logged
// and swallowed; the transaction already committed.
func (e *Engine) publish(ctx context.Context, channel string, v any) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		e.log.Error("marshal event", "channel", channel, "error", err)
		return
	}
	if err := e.bus.Publish(ctx, channel, payload); err != nil {
		e.log.Warn("publish event", "channel", channel, "error", err)
	}
}
