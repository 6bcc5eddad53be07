package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openslot/openslot/internal/domain"
	"github.com/openslot/openslot/internal/escrow"
	"github.com/openslot/openslot/internal/store/memory"
)

type fixture struct {
	engine  *Engine
	store   *memory.Store
	gateway *escrow.Simulator
	now     time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewStore(),
		gateway: escrow.NewSimulator(),
		now:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	cfg := Config{
		AuctionWindow: 24 * time.Hour,
		FeeRate:       0.12,
	}
	opts = append([]Option{WithClock(func() time.Time { return f.now })}, opts...)
	f.engine = New(f.store, f.gateway, cfg, opts...)
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) issuer(t *testing.T) domain.Principal {
	t.Helper()
	p, err := f.engine.RegisterPrincipal(context.Background(), domain.PrincipalKindIssuer, "issuer")
	if err != nil {
		t.Fatalf("register issuer: %v", err)
	}
	if err := f.engine.VerifyPrincipal(context.Background(), p.ID); err != nil {
		t.Fatalf("verify issuer: %v", err)
	}
	p.Verified = true
	return p
}

func (f *fixture) bidder(t *testing.T, name string) domain.Principal {
	t.Helper()
	p, err := f.engine.RegisterPrincipal(context.Background(), domain.PrincipalKindBidder, name)
	if err != nil {
		t.Fatalf("register bidder %s: %v", name, err)
	}
	if err := f.engine.VerifyPrincipal(context.Background(), p.ID); err != nil {
		t.Fatalf("verify bidder %s: %v", name, err)
	}
	p.Verified = true
	return p
}

func (f *fixture) openSlot(t *testing.T, issuerID string, reserve int64) domain.Slot {
	t.Helper()
	slot, err := f.engine.CreateSlot(context.Background(), issuerID, domain.TierStandard, "analytics", []string{"analytics"}, reserve)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	return slot
}

func (f *fixture) placeBid(t *testing.T, slotID, bidderID string, amount int64) domain.Bid {
	t.Helper()
	bid, err := f.engine.PlaceBid(context.Background(), slotID, bidderID, amount)
	if err != nil {
		t.Fatalf("place bid of %d: %v", amount, err)
	}
	return bid
}

func TestCreateSlotRequiresVerifiedIssuer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.engine.RegisterPrincipal(ctx, domain.PrincipalKindIssuer, "unverified")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := f.engine.CreateSlot(ctx, p.ID, domain.TierSprint, "data", []string{"data"}, 10); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unverified issuer, got %v", err)
	}

	b := f.bidder(t, "b")
	if _, err := f.engine.CreateSlot(ctx, b.ID, domain.TierSprint, "data", []string{"data"}, 10); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for bidder kind, got %v", err)
	}
}

func TestCreateSlotRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iss := f.issuer(t)

	if _, err := f.engine.CreateSlot(ctx, iss.ID, "WEEKLY", "data", []string{"data"}, 10); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown tier, got %v", err)
	}
	if _, err := f.engine.CreateSlot(ctx, iss.ID, domain.TierSprint, "", []string{"data"}, 10); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty category, got %v", err)
	}
	if _, err := f.engine.CreateSlot(ctx, iss.ID, domain.TierSprint, "data", nil, 10); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing tags, got %v", err)
	}
	if _, err := f.engine.CreateSlot(ctx, iss.ID, domain.TierSprint, "data", []string{"data", ""}, 10); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for blank tag, got %v", err)
	}
	if _, err := f.engine.CreateSlot(ctx, iss.ID, domain.TierSprint, "data", []string{"data"}, -1); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for negative reserve, got %v", err)
	}
	if _, err := f.engine.CreateSlot(ctx, iss.ID, domain.TierSprint, "data", []string{"data"}, 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for zero reserve, got %v", err)
	}
}

func TestCreateSlotRecordsProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iss := f.issuer(t)

	tags := []string{"analytics", "weekly-report"}
	slot, err := f.engine.CreateSlot(ctx, iss.ID, domain.TierStandard, "analytics", tags, 500)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}

	profile, err := f.store.Profiles().Get(ctx, iss.ID)
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if profile.ReservePrice != 500 {
		t.Fatalf("expected reserve price 500 on profile, got %d", profile.ReservePrice)
	}
	if len(profile.Tags) != 2 || profile.Tags[0] != "analytics" || profile.Tags[1] != "weekly-report" {
		t.Fatalf("expected tags %v on profile, got %v", tags, profile.Tags)
	}
	if profile.ActiveSlotID == nil || *profile.ActiveSlotID != slot.ID {
		t.Fatalf("expected active slot %s on profile, got %v", slot.ID, profile.ActiveSlotID)
	}
}

func TestReservePriceNeverSerialized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iss := f.issuer(t)

	slot, err := f.engine.CreateSlot(ctx, iss.ID, domain.TierStandard, "analytics", []string{"analytics"}, 77777)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	profile, err := f.store.Profiles().Get(ctx, iss.ID)
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if profile.ReservePrice != 77777 {
		t.Fatalf("expected reserve price stored, got %d", profile.ReservePrice)
	}

	// Both shapes cross the API; neither may carry the reserve price.
	for name, v := range map[string]any{"slot": slot, "profile": profile} {
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %s: %v", name, err)
		}
		if strings.Contains(string(raw), "77777") {
			t.Fatalf("%s serialization leaks the reserve price: %s", name, raw)
		}
		if strings.Contains(string(raw), "reservePrice") {
			t.Fatalf("%s serialization carries a reservePrice field: %s", name, raw)
		}
	}
}

func TestCreateSlotOneActivePerIssuer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iss := f.issuer(t)

	f.openSlot(t, iss.ID, 100)
	if _, err := f.engine.CreateSlot(ctx, iss.ID, domain.TierSprint, "data", []string{"data"}, 50); !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict for second active slot, got %v", err)
	}
}

func TestPlaceBidLocksEscrow(t *testing.T) {
	f := newFixture(t)
	iss := f.issuer(t)
	slot := f.openSlot(t, iss.ID, 1)
	b := f.bidder(t, "alice")

	bid := f.placeBid(t, slot.ID, b.ID, 5000)
	if bid.EscrowStatus != domain.EscrowStatusLocked {
		t.Fatalf("expected new bid escrow LOCKED, got %s", bid.EscrowStatus)
	}
	if n := f.gateway.CallCount(bid.ID, escrow.OpLock); n != 1 {
		t.Fatalf("expected one lock call, got %d", n)
	}
}

func TestPlaceBidRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iss := f.issuer(t)
	slot := f.openSlot(t, iss.ID, 1)
	b := f.bidder(t, "alice")

	if _, err := f.engine.PlaceBid(ctx, slot.ID, b.ID, 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for zero amount, got %v", err)
	}

	unverified, err := f.engine.RegisterPrincipal(ctx, domain.PrincipalKindBidder, "ghost")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := f.engine.PlaceBid(ctx, slot.ID, unverified.ID, 100); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unverified bidder, got %v", err)
	}

	if _, err := f.engine.PlaceBid(ctx, slot.ID, iss.ID, 100); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for issuer bidding, got %v", err)
	}

	f.advance(24 * time.Hour)
	if _, err := f.engine.PlaceBid(ctx, slot.ID, b.ID, 100); !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict after auction window, got %v", err)
	}
}

func TestPlaceBidGatewayFailureLeavesNoBid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iss := f.issuer(t)
	slot := f.openSlot(t, iss.ID, 1)
	b := f.bidder(t, "alice")

	f.gateway.FailWith(escrow.OpLock, errors.New("insufficient balance"))
	if _, err := f.engine.PlaceBid(ctx, slot.ID, b.ID, 900); !errors.Is(err, domain.ErrGateway) {
		t.Fatalf("expected ErrGateway, got %v", err)
	}

	bids, err := f.engine.ListBids(ctx, slot.ID)
	if err != nil {
		t.Fatalf("list bids: %v", err)
	}
	if len(bids) != 0 {
		t.Fatalf("expected no bid row after failed lock, got %d", len(bids))
	}
}

type stubLimiter struct{ allowed bool }

func (s stubLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return s.allowed, nil
}

func TestPlaceBidRateLimited(t *testing.T) {
	f := newFixture(t, WithRateLimiter(stubLimiter{allowed: false}))
	f.engine.cfg.BidRateLimit = 5
	f.engine.cfg.BidRateWindow = time.Minute

	iss := f.issuer(t)
	slot := f.openSlot(t, iss.ID, 1)
	b := f.bidder(t, "alice")

	if _, err := f.engine.PlaceBid(context.Background(), slot.ID, b.ID, 100); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestCloseAuctionSecondPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iss := f.issuer(t)
	slot := f.openSlot(t, iss.ID, 60)

	high := f.placeBid(t, slot.ID, f.bidder(t, "high").ID, 100)
	second := f.placeBid(t, slot.ID, f.bidder(t, "second").ID, 70)
	third := f.placeBid(t, slot.ID, f.bidder(t, "third").ID, 70)
	below := f.placeBid(t, slot.ID, f.bidder(t, "below").ID, 50)

	f.advance(24 * time.Hour)
	res, err := f.engine.CloseAuction(ctx, slot.ID)
	if err != nil {
		t.Fatalf("close auction: %v", err)
	}

	if res.Contract == nil {
		t.Fatal("expected a contract on the winning outcome")
	}
	if res.Contract.WinningBidID != high.ID {
		t.Fatalf("expected winner %s, got %s", high.ID, res.Contract.WinningBidID)
	}
	if res.Contract.ClearingPrice != 70 {
		t.Fatalf("expected clearing price 70, got %d", res.Contract.ClearingPrice)
	}
	if res.Slot.Status != domain.SlotStatusInProgress {
		t.Fatalf("expected slot IN_PROGRESS, got %s", res.Slot.Status)
	}
	wantDeadline := f.now.Add(domain.TierStandard.Duration())
	if !res.Contract.DeadlineAt.Equal(wantDeadline) {
		t.Fatalf("expected deadline %v, got %v", wantDeadline, res.Contract.DeadlineAt)
	}

	// Every loser refunds in full, including the below-reserve bid.
	for _, loser := range []domain.Bid{second, third, below} {
		got, err := f.store.Bids().GetByID(ctx, loser.ID)
		if err != nil {
			t.Fatalf("load bid: %v", err)
		}
		if got.EscrowStatus != domain.EscrowStatusRefunded {
			t.Fatalf("expected loser %s refunded, got %s", loser.ID, got.EscrowStatus)
		}
		if n := f.gateway.CallCount(loser.ID, escrow.OpRefund); n != 1 {
			t.Fatalf("expected one refund for loser %s, got %d", loser.ID, n)
		}
	}

	// The winner stays locked at the clearing price; the excess over it
	// refunds under a separate reference.
	winner, err := f.store.Bids().GetByID(ctx, high.ID)
	if err != nil {
		t.Fatalf("load winner: %v", err)
	}
	if winner.EscrowStatus != domain.EscrowStatusLocked {
		t.Fatalf("expected winner escrow LOCKED, got %s", winner.EscrowStatus)
	}
	if n := f.gateway.CallCount(high.ID+":excess", escrow.OpRefund); n != 1 {
		t.Fatalf("expected one excess refund, got %d", n)
	}
	for _, c := range f.gateway.Calls() {
		if c.ReferenceID == high.ID+":excess" && c.Amount != 30 {
			t.Fatalf("expected excess refund of 30, got %d", c.Amount)
		}
	}
}

func TestCloseAuctionTieBreaksByCreationTime(t *testing.T) {
	f := newFixture(t)
	iss := f.issuer(t)
	slot := f.openSlot(t, iss.ID, 1)

	early := f.placeBid(t, slot.ID, f.bidder(t, "early").ID, 70)
	f.advance(time.Minute)
	f.placeBid(t, slot.ID, f.bidder(t, "late").ID, 70)

	f.advance(24 * time.Hour)
	res, err := f.engine.CloseAuction(context.Background(), slot.ID)
	if err != nil {
		t.Fatalf("close auction: %v", err)
	}
	if res.Contract.WinningBidID != early.ID {
		t.Fatalf("expected earlier bid %s to win the tie, got %s", early.ID, res.Contract.WinningBidID)
	}
	if res.Contract.ClearingPrice != 70 {
		t.Fatalf("expected clearing price 70, got %d", res.Contract.ClearingPrice)
	}
}

func TestCloseAuctionSoleBidderPaysOwnBid(t *testing.T) {
	f := newFixture(t)
	iss := f.issuer(t)
	slot := f.openSlot(t, iss.ID, 50)
	only := f.placeBid(t, slot.ID, f.bidder(t, "only").ID, 80)

	f.advance(24 * time.Hour)
	res, err := f.engine.CloseAuction(context.Background(), slot.ID)
	if err != nil {
		t.Fatalf("close auction: %v", err)
	}
	if res.Contract.ClearingPrice != 80 {
		t.Fatalf("expected sole bidder to pay 80, got %d", res.Contract.ClearingPrice)
	}
	if n := f.gateway.CallCount(only.ID+":excess", escrow.OpRefund); n != 0 {
		t.Fatalf("expected no excess refund for sole bidder, got %d", n)
	}
}

func TestCloseAuctionVoidRefundsAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iss := f.issuer(t)
	slot := f.openSlot(t, iss.ID, 1000)

	b1 := f.placeBid(t, slot.ID, f.bidder(t, "b1").ID, 400)
	b2 := f.placeBid(t, slot.ID, f.bidder(t, "b2").ID, 700)

	f.advance(24 * time.Hour)
	res, err := f.engine.CloseAuction(ctx, slot.ID)
	if err != nil {
		t.Fatalf("close auction: %v", err)
	}
	if res.Contract != nil {
		t.Fatal("expected no contract on void outcome")
	}
	if res.Slot.Status != domain.SlotStatusVoid {
		t.Fatalf("expected slot VOID, got %s", res.Slot.Status)
	}
	for _, b := range []domain.Bid{b1, b2} {
		if n := f.gateway.CallCount(b.ID, escrow.OpRefund); n != 1 {
			t.Fatalf("expected one refund for %s, got %d", b.ID, n)
		}
	}

	// A void slot frees the issuer to open another.
	if _, err := f.engine.CreateSlot(ctx, iss.ID, domain.TierSprint, "data", []string{"data"}, 10); err != nil {
		t.Fatalf("expected issuer free after void, got %v", err)
	}
}

func TestCloseAuctionIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iss := f.issuer(t)
	slot := f.openSlot(t, iss.ID, 1)
	loser := f.placeBid(t, slot.ID, f.bidder(t, "l").ID, 10)
	f.placeBid(t, slot.ID, f.bidder(t, "w").ID, 20)

	f.advance(24 * time.Hour)
	if _, err := f.engine.CloseAuction(ctx, slot.ID); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if _, err := f.engine.CloseAuction(ctx, slot.ID); !errors.Is(err, domain.ErrNotClosable) {
		t.Fatalf("expected ErrNotClosable on repeat close, got %v", err)
	}
	if n := f.gateway.CallCount(loser.ID, escrow.OpRefund); n != 1 {
		t.Fatalf("expected refund count unchanged after repeat close, got %d", n)
	}
}

func TestCloseAuctionNotYetDue(t *testing.T) {
	f := newFixture(t)
	iss := f.issuer(t)
	slot := f.openSlot(t, iss.ID, 1)

	f.advance(23 * time.Hour)
	if _, err := f.engine.CloseAuction(context.Background(), slot.ID); !errors.Is(err, domain.ErrNotClosable) {
		t.Fatalf("expected ErrNotClosable before the window ends, got %v", err)
	}
}

func TestCompleteContractReleasesWithFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iss := f.issuer(t)
	slot := f.openSlot(t, iss.ID, 1)
	f.placeBid(t, slot.ID, f.bidder(t, "second").ID, 90000)
	win := f.placeBid(t, slot.ID, f.bidder(t, "winner").ID, 120000)

	f.advance(24 * time.Hour)
	res, err := f.engine.CloseAuction(ctx, slot.ID)
	if err != nil {
		t.Fatalf("close auction: %v", err)
	}
	if res.Contract.ClearingPrice != 90000 {
		t.Fatalf("expected clearing price 90000, got %d", res.Contract.ClearingPrice)
	}

	f.advance(time.Hour)
	contract, err := f.engine.CompleteContract(ctx, res.Contract.ID, iss.ID)
	if err != nil {
		t.Fatalf("complete contract: %v", err)
	}
	if contract.Status != domain.ContractStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", contract.Status)
	}

	// floor(90000 * 0.12) = 10800, net 79200.
	var release *escrow.Call
	for _, c := range f.gateway.Calls() {
		if c.Op == escrow.OpRelease && c.ReferenceID == win.ID {
			cc := c
			release = &cc
		}
	}
	if release == nil {
		t.Fatal("expected a release call for the winning bid")
	}
	if release.PlatformFee != 10800 || release.Amount != 79200 {
		t.Fatalf("expected net 79200 fee 10800, got net %d fee %d", release.Amount, release.PlatformFee)
	}

	got, err := f.store.Bids().GetByID(ctx, win.ID)
	if err != nil {
		t.Fatalf("load winning bid: %v", err)
	}
	if got.EscrowStatus != domain.EscrowStatusReleased {
		t.Fatalf("expected escrow RELEASED, got %s", got.EscrowStatus)
	}

	gotSlot, err := f.engine.GetSlot(ctx, slot.ID)
	if err != nil {
		t.Fatalf("load slot: %v", err)
	}
	if gotSlot.Status != domain.SlotStatusCompleted {
		t.Fatalf("expected slot COMPLETED, got %s", gotSlot.Status)
	}

	// Completion frees the issuer for a new slot.
	if _, err := f.engine.CreateSlot(ctx, iss.ID, domain.TierSprint, "data", []string{"data"}, 10); err != nil {
		t.Fatalf("expected issuer free after completion, got %v", err)
	}
}

func TestCompleteContractOnlyIssuer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iss := f.issuer(t)
	slot := f.openSlot(t, iss.ID, 1)
	b := f.bidder(t, "b")
	f.placeBid(t, slot.ID, b.ID, 100)

	f.advance(24 * time.Hour)
	res, err := f.engine.CloseAuction(ctx, slot.ID)
	if err != nil {
		t.Fatalf("close auction: %v", err)
	}

	if _, err := f.engine.CompleteContract(ctx, res.Contract.ID, b.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-issuer completion, got %v", err)
	}
}

func TestCompleteContractAfterDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iss := f.issuer(t)
	slot := f.openSlot(t, iss.ID, 1)
	win := f.placeBid(t, slot.ID, f.bidder(t, "w").ID, 100)

	f.advance(24 * time.Hour)
	res, err := f.engine.CloseAuction(ctx, slot.ID)
	if err != nil {
		t.Fatalf("close auction: %v", err)
	}

	f.advance(domain.TierStandard.Duration() + time.Hour)
	_, err = f.engine.CompleteContract(ctx, res.Contract.ID, iss.ID)
	if !errors.Is(err, domain.ErrDeadlinePassed) {
		t.Fatalf("expected ErrDeadlinePassed, got %v", err)
	}
	if !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("expected deadline error to classify as state conflict, got %v", err)
	}

	// The escrow is untouched; breach handles it.
	got, err := f.store.Bids().GetByID(ctx, win.ID)
	if err != nil {
		t.Fatalf("load winning bid: %v", err)
	}
	if got.EscrowStatus != domain.EscrowStatusLocked {
		t.Fatalf("expected escrow still LOCKED, got %s", got.EscrowStatus)
	}
	if n := f.gateway.CallCount(win.ID, escrow.OpRelease); n != 0 {
		t.Fatalf("expected no release call, got %d", n)
	}
}

func TestCompleteContractAtExactDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iss := f.issuer(t)
	slot := f.openSlot(t, iss.ID, 1)
	f.placeBid(t, slot.ID, f.bidder(t, "w").ID, 100)

	f.advance(24 * time.Hour)
	res, err := f.engine.CloseAuction(ctx, slot.ID)
	if err != nil {
		t.Fatalf("close auction: %v", err)
	}

	// Land exactly on the deadline: the issuer is still on time, and a
	// breach sweep arriving at the same instant must not act first.
	f.advance(domain.TierStandard.Duration())
	if !f.now.Equal(res.Contract.DeadlineAt) {
		t.Fatalf("expected clock at deadline %v, got %v", res.Contract.DeadlineAt, f.now)
	}

	acted, err := f.engine.AutoBreach(ctx, res.Contract.ID)
	if err != nil {
		t.Fatalf("breach at deadline: %v", err)
	}
	if acted {
		t.Fatal("expected no breach at the deadline instant")
	}

	contract, err := f.engine.CompleteContract(ctx, res.Contract.ID, iss.ID)
	if err != nil {
		t.Fatalf("complete at deadline: %v", err)
	}
	if contract.Status != domain.ContractStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", contract.Status)
	}
}

func TestAutoBreachRefundsWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iss := f.issuer(t)
	slot := f.openSlot(t, iss.ID, 1)
	f.placeBid(t, slot.ID, f.bidder(t, "second").ID, 60)
	win := f.placeBid(t, slot.ID, f.bidder(t, "w").ID, 100)

	f.advance(24 * time.Hour)
	res, err := f.engine.CloseAuction(ctx, slot.ID)
	if err != nil {
		t.Fatalf("close auction: %v", err)
	}

	// Not overdue yet.
	acted, err := f.engine.AutoBreach(ctx, res.Contract.ID)
	if err != nil {
		t.Fatalf("breach before deadline: %v", err)
	}
	if acted {
		t.Fatal("expected no action before the deadline")
	}

	f.advance(domain.TierStandard.Duration() + time.Minute)
	acted, err = f.engine.AutoBreach(ctx, res.Contract.ID)
	if err != nil {
		t.Fatalf("breach: %v", err)
	}
	if !acted {
		t.Fatal("expected breach to act on overdue contract")
	}

	// The refund covers the clearing price, not the full bid.
	found := false
	for _, c := range f.gateway.Calls() {
		if c.Op == escrow.OpRefund && c.ReferenceID == win.ID {
			found = true
			if c.Amount != 60 {
				t.Fatalf("expected breach refund of clearing price 60, got %d", c.Amount)
			}
		}
	}
	if !found {
		t.Fatal("expected a refund call for the winning bid")
	}

	gotSlot, err := f.engine.GetSlot(ctx, slot.ID)
	if err != nil {
		t.Fatalf("load slot: %v", err)
	}
	if gotSlot.Status != domain.SlotStatusBreach {
		t.Fatalf("expected slot BREACH, got %s", gotSlot.Status)
	}

	// Repeat is a no-op.
	acted, err = f.engine.AutoBreach(ctx, res.Contract.ID)
	if err != nil {
		t.Fatalf("repeat breach: %v", err)
	}
	if acted {
		t.Fatal("expected repeat breach to be a no-op")
	}
	if n := f.gateway.CallCount(win.ID, escrow.OpRefund); n != 1 {
		t.Fatalf("expected one refund call, got %d", n)
	}
}

func TestSweepClosesAndBreaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issA := f.issuer(t)
	slotA := f.openSlot(t, issA.ID, 1)
	f.placeBid(t, slotA.ID, f.bidder(t, "a").ID, 100)

	f.advance(24 * time.Hour)
	report, err := f.engine.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.AuctionsClosed != 1 {
		t.Fatalf("expected 1 auction closed, got %d", report.AuctionsClosed)
	}
	if report.ContractsBreached != 0 {
		t.Fatalf("expected 0 contracts breached, got %d", report.ContractsBreached)
	}

	f.advance(domain.TierStandard.Duration() + time.Minute)
	report, err = f.engine.Sweep(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if report.ContractsBreached != 1 {
		t.Fatalf("expected 1 contract breached, got %d", report.ContractsBreached)
	}

	// A third sweep finds nothing to do.
	report, err = f.engine.Sweep(ctx)
	if err != nil {
		t.Fatalf("third sweep: %v", err)
	}
	if report.AuctionsClosed != 0 || report.ContractsBreached != 0 || report.Errors != 0 {
		t.Fatalf("expected idle sweep, got %+v", report)
	}
}

func TestPlatformFeeRoundsDown(t *testing.T) {
	cases := []struct {
		price int64
		want  int64
	}{
		{100000, 12000},
		{99, 11},  // floor(11.88)
		{1, 0},    // floor(0.12)
		{0, 0},
	}
	for _, c := range cases {
		if got := PlatformFee(c.price, 0.12); got != c.want {
			t.Errorf("PlatformFee(%d) = %d, want %d", c.price, got, c.want)
		}
	}
}
