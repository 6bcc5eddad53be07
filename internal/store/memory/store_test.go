package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openslot/openslot/internal/domain"
)

func TestInTxRollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx domain.Store) error {
		if err := tx.Principals().Create(ctx, domain.Principal{ID: "p1", Kind: domain.PrincipalKindBidder}); err != nil {
			return err
		}
		if err := tx.Slots().Create(ctx, domain.Slot{ID: "s1", Status: domain.SlotStatusOpen}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error, got %v", err)
	}

	if _, err := s.Principals().GetByID(ctx, "p1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected principal rolled back, got %v", err)
	}
	if _, err := s.Slots().GetByID(ctx, "s1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected slot rolled back, got %v", err)
	}
}

func TestInTxCommits(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	err := s.InTx(ctx, func(tx domain.Store) error {
		return tx.Principals().Create(ctx, domain.Principal{ID: "p1", Kind: domain.PrincipalKindIssuer})
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := s.Principals().GetByID(ctx, "p1"); err != nil {
		t.Fatalf("expected principal persisted, got %v", err)
	}
}

func TestListBySlotRankingOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	bids := []domain.Bid{
		{ID: "b-late-tie", SlotID: "s1", Amount: 70, CreatedAt: base.Add(time.Minute)},
		{ID: "b-top", SlotID: "s1", Amount: 100, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "b-early-tie", SlotID: "s1", Amount: 70, CreatedAt: base},
		{ID: "b-low", SlotID: "s1", Amount: 50, CreatedAt: base},
		{ID: "b-other-slot", SlotID: "s2", Amount: 999, CreatedAt: base},
	}
	for _, b := range bids {
		b.EscrowStatus = domain.EscrowStatusLocked
		if err := s.Bids().Create(ctx, b); err != nil {
			t.Fatalf("create bid %s: %v", b.ID, err)
		}
	}

	got, err := s.Bids().ListBySlot(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"b-top", "b-early-tie", "b-late-tie", "b-low"}
	if len(got) != len(want) {
		t.Fatalf("expected %d bids, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestMarkAuctionClosedGuards(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	ends := time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC)
	if err := s.Slots().Create(ctx, domain.Slot{ID: "s1", Status: domain.SlotStatusOpen, AuctionEndsAt: ends}); err != nil {
		t.Fatalf("create slot: %v", err)
	}

	// Not yet due.
	closed, err := s.Slots().MarkAuctionClosed(ctx, "s1", ends.Add(-time.Second))
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if closed {
		t.Fatal("expected no close before the deadline")
	}

	// Due at exactly the deadline.
	closed, err = s.Slots().MarkAuctionClosed(ctx, "s1", ends)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if !closed {
		t.Fatal("expected close at the deadline")
	}

	// Second attempt loses.
	closed, err = s.Slots().MarkAuctionClosed(ctx, "s1", ends.Add(time.Hour))
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if closed {
		t.Fatal("expected repeat close to report false")
	}
}

func TestUpdateEscrowStatusConditional(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.Bids().Create(ctx, domain.Bid{ID: "b1", SlotID: "s1", EscrowStatus: domain.EscrowStatusLocked}); err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := s.Bids().UpdateEscrowStatus(ctx, "b1", domain.EscrowStatusLocked, domain.EscrowStatusRefunded)
	if err != nil || !updated {
		t.Fatalf("expected transition, got updated=%v err=%v", updated, err)
	}

	updated, err = s.Bids().UpdateEscrowStatus(ctx, "b1", domain.EscrowStatusLocked, domain.EscrowStatusReleased)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated {
		t.Fatal("expected no transition from a settled escrow")
	}

	b, err := s.Bids().GetByID(ctx, "b1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if b.EscrowStatus != domain.EscrowStatusRefunded {
		t.Fatalf("expected REFUNDED to stick, got %s", b.EscrowStatus)
	}
}

func TestContractUniquePerSlot(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	c := domain.Contract{ID: "c1", SlotID: "s1", WinningBidID: "b1", Status: domain.ContractStatusActive}
	if err := s.Contracts().Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := domain.Contract{ID: "c2", SlotID: "s1", WinningBidID: "b2", Status: domain.ContractStatusActive}
	if err := s.Contracts().Create(ctx, dup); !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("expected conflict for second contract on slot, got %v", err)
	}
}
