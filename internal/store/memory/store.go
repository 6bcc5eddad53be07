// Package memory implements the domain store interfaces with in-process
// maps. It backs tests and simulate mode; transactions are serialized on one
// mutex and rolled back by restoring a snapshot.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openslot/openslot/internal/domain"
)

type state struct {
	principals map[string]domain.Principal
	slots      map[string]domain.Slot
	profiles   map[string]domain.IssuerProfile
	bids       map[string]domain.Bid
	contracts  map[string]domain.Contract
	audit      []domain.AuditEntry
	auditSeq   int64
}

func newState() *state {
	return &state{
		principals: make(map[string]domain.Principal),
		slots:      make(map[string]domain.Slot),
		profiles:   make(map[string]domain.IssuerProfile),
		bids:       make(map[string]domain.Bid),
		contracts:  make(map[string]domain.Contract),
	}
}

func (st *state) clone() *state {
	cp := &state{
		principals: make(map[string]domain.Principal, len(st.principals)),
		slots:      make(map[string]domain.Slot, len(st.slots)),
		profiles:   make(map[string]domain.IssuerProfile, len(st.profiles)),
		bids:       make(map[string]domain.Bid, len(st.bids)),
		contracts:  make(map[string]domain.Contract, len(st.contracts)),
		audit:      make([]domain.AuditEntry, len(st.audit)),
		auditSeq:   st.auditSeq,
	}
	for k, v := range st.principals {
		cp.principals[k] = v
	}
	for k, v := range st.slots {
		cp.slots[k] = v
	}
	for k, v := range st.profiles {
		cp.profiles[k] = copyProfile(v)
	}
	for k, v := range st.bids {
		cp.bids[k] = v
	}
	for k, v := range st.contracts {
		cp.contracts[k] = v
	}
	copy(cp.audit, st.audit)
	return cp
}

func copyProfile(p domain.IssuerProfile) domain.IssuerProfile {
	cp := p
	if p.Tags != nil {
		cp.Tags = make([]string, len(p.Tags))
		copy(cp.Tags, p.Tags)
	}
	if p.ActiveSlotID != nil {
		id := *p.ActiveSlotID
		cp.ActiveSlotID = &id
	}
	return cp
}

// runner executes a function against the shared state. The root store locks
// around each call; the transaction view runs directly because InTx already
// holds the lock.
type runner interface {
	run(fn func(*state) error) error
}

// Store is the root in-memory store.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{st: newState()}
}

func (m *Store) run(fn func(*state) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.st)
}

// InTx runs fn against a transaction-scoped view. On error the pre-transaction
// snapshot is restored, so a failed fn leaves no effect.
func (m *Store) InTx(_ context.Context, fn func(domain.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.st.clone()
	if err := fn(&txStore{st: m.st}); err != nil {
		m.st = snap
		return err
	}
	return nil
}

func (m *Store) Principals() domain.PrincipalStore { return principalStore{m} }
func (m *Store) Slots() domain.SlotStore           { return slotStore{m} }
func (m *Store) Profiles() domain.ProfileStore     { return profileStore{m} }
func (m *Store) Bids() domain.BidStore             { return bidStore{m} }
func (m *Store) Contracts() domain.ContractStore   { return contractStore{m} }
func (m *Store) Audit() domain.AuditStore          { return auditStore{m} }

// txStore is the view handed to InTx callbacks. The root store's mutex is
// already held, so state access is direct.
type txStore struct {
	st *state
}

func (t *txStore) run(fn func(*state) error) error {
	return fn(t.st)
}

// Nested InTx reuses the outer transaction.
func (t *txStore) InTx(_ context.Context, fn func(domain.Store) error) error {
	return fn(t)
}

func (t *txStore) Principals() domain.PrincipalStore { return principalStore{t} }
func (t *txStore) Slots() domain.SlotStore           { return slotStore{t} }
func (t *txStore) Profiles() domain.ProfileStore     { return profileStore{t} }
func (t *txStore) Bids() domain.BidStore             { return bidStore{t} }
func (t *txStore) Contracts() domain.ContractStore   { return contractStore{t} }
func (t *txStore) Audit() domain.AuditStore          { return auditStore{t} }

// ---------------------------------------------------------------------------
// principals
// ---------------------------------------------------------------------------

type principalStore struct{ r runner }

func (s principalStore) Create(_ context.Context, p domain.Principal) error {
	return s.r.run(func(st *state) error {
		if _, exists := st.principals[p.ID]; exists {
			return domain.ErrStateConflict
		}
		st.principals[p.ID] = p
		return nil
	})
}

func (s principalStore) GetByID(_ context.Context, id string) (domain.Principal, error) {
	var out domain.Principal
	err := s.r.run(func(st *state) error {
		p, ok := st.principals[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = p
		return nil
	})
	return out, err
}

func (s principalStore) SetVerified(_ context.Context, id string, verified bool) error {
	return s.r.run(func(st *state) error {
		p, ok := st.principals[id]
		if !ok {
			return domain.ErrNotFound
		}
		p.Verified = verified
		st.principals[id] = p
		return nil
	})
}

// ---------------------------------------------------------------------------
// slots
// ---------------------------------------------------------------------------

type slotStore struct{ r runner }

func (s slotStore) Create(_ context.Context, sl domain.Slot) error {
	return s.r.run(func(st *state) error {
		if _, exists := st.slots[sl.ID]; exists {
			return domain.ErrStateConflict
		}
		st.slots[sl.ID] = sl
		return nil
	})
}

func (s slotStore) GetByID(_ context.Context, id string) (domain.Slot, error) {
	var out domain.Slot
	err := s.r.run(func(st *state) error {
		sl, ok := st.slots[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = sl
		return nil
	})
	return out, err
}

func (s slotStore) MarkAuctionClosed(_ context.Context, id string, now time.Time) (bool, error) {
	var closed bool
	err := s.r.run(func(st *state) error {
		sl, ok := st.slots[id]
		if !ok {
			return nil
		}
		if sl.Status != domain.SlotStatusOpen || sl.AuctionEndsAt.After(now) {
			return nil
		}
		sl.Status = domain.SlotStatusAuctionClosed
		st.slots[id] = sl
		closed = true
		return nil
	})
	return closed, err
}

func (s slotStore) UpdateStatus(_ context.Context, id string, status domain.SlotStatus) error {
	return s.r.run(func(st *state) error {
		sl, ok := st.slots[id]
		if !ok {
			return domain.ErrNotFound
		}
		sl.Status = status
		st.slots[id] = sl
		return nil
	})
}

func (s slotStore) ListDueOpen(_ context.Context, now time.Time, limit int) ([]domain.Slot, error) {
	var out []domain.Slot
	err := s.r.run(func(st *state) error {
		for _, sl := range st.slots {
			if sl.Status == domain.SlotStatusOpen && !sl.AuctionEndsAt.After(now) {
				out = append(out, sl)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].AuctionEndsAt.Equal(out[j].AuctionEndsAt) {
				return out[i].AuctionEndsAt.Before(out[j].AuctionEndsAt)
			}
			return out[i].ID < out[j].ID
		})
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

// ---------------------------------------------------------------------------
// profiles
// ---------------------------------------------------------------------------

type profileStore struct{ r runner }

// Lock is a no-op: the store mutex already serializes transactions.
func (s profileStore) Lock(_ context.Context, _ string) error {
	return nil
}

func (s profileStore) Get(_ context.Context, issuerID string) (domain.IssuerProfile, error) {
	var out domain.IssuerProfile
	err := s.r.run(func(st *state) error {
		p, ok := st.profiles[issuerID]
		if !ok {
			return domain.ErrNotFound
		}
		out = copyProfile(p)
		return nil
	})
	return out, err
}

func (s profileStore) Upsert(_ context.Context, p domain.IssuerProfile) error {
	return s.r.run(func(st *state) error {
		st.profiles[p.IssuerID] = copyProfile(p)
		return nil
	})
}

func (s profileStore) ClearActiveSlot(_ context.Context, issuerID string) error {
	return s.r.run(func(st *state) error {
		p, ok := st.profiles[issuerID]
		if !ok {
			return domain.ErrNotFound
		}
		p.ActiveSlotID = nil
		st.profiles[issuerID] = p
		return nil
	})
}

// ---------------------------------------------------------------------------
// bids
// ---------------------------------------------------------------------------

type bidStore struct{ r runner }

func (s bidStore) Create(_ context.Context, b domain.Bid) error {
	return s.r.run(func(st *state) error {
		if _, exists := st.bids[b.ID]; exists {
			return domain.ErrStateConflict
		}
		st.bids[b.ID] = b
		return nil
	})
}

func (s bidStore) GetByID(_ context.Context, id string) (domain.Bid, error) {
	var out domain.Bid
	err := s.r.run(func(st *state) error {
		b, ok := st.bids[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = b
		return nil
	})
	return out, err
}

func (s bidStore) ListBySlot(_ context.Context, slotID string) ([]domain.Bid, error) {
	var out []domain.Bid
	err := s.r.run(func(st *state) error {
		for _, b := range st.bids {
			if b.SlotID == slotID {
				out = append(out, b)
			}
		}
		sortBidsByRank(out)
		return nil
	})
	return out, err
}

func (s bidStore) UpdateEscrowStatus(_ context.Context, id string, from, to domain.EscrowStatus) (bool, error) {
	var updated bool
	err := s.r.run(func(st *state) error {
		b, ok := st.bids[id]
		if !ok || b.EscrowStatus != from {
			return nil
		}
		b.EscrowStatus = to
		st.bids[id] = b
		updated = true
		return nil
	})
	return updated, err
}

func (s bidStore) ListSettledBefore(_ context.Context, before time.Time) ([]domain.Bid, error) {
	var out []domain.Bid
	err := s.r.run(func(st *state) error {
		for _, b := range st.bids {
			if b.EscrowStatus != domain.EscrowStatusLocked && b.CreatedAt.Before(before) {
				out = append(out, b)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

// sortBidsByRank orders bids amount descending, then creation time ascending,
// then id ascending. This is the deterministic ranking every close relies on.
func sortBidsByRank(bids []domain.Bid) {
	sort.Slice(bids, func(i, j int) bool {
		if bids[i].Amount != bids[j].Amount {
			return bids[i].Amount > bids[j].Amount
		}
		if !bids[i].CreatedAt.Equal(bids[j].CreatedAt) {
			return bids[i].CreatedAt.Before(bids[j].CreatedAt)
		}
		return bids[i].ID < bids[j].ID
	})
}

// ---------------------------------------------------------------------------
// contracts
// ---------------------------------------------------------------------------

type contractStore struct{ r runner }

func (s contractStore) Create(_ context.Context, c domain.Contract) error {
	return s.r.run(func(st *state) error {
		if _, exists := st.contracts[c.ID]; exists {
			return domain.ErrStateConflict
		}
		for _, other := range st.contracts {
			if other.SlotID == c.SlotID || other.WinningBidID == c.WinningBidID {
				return domain.ErrStateConflict
			}
		}
		st.contracts[c.ID] = c
		return nil
	})
}

func (s contractStore) GetByID(_ context.Context, id string) (domain.Contract, error) {
	var out domain.Contract
	err := s.r.run(func(st *state) error {
		c, ok := st.contracts[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = c
		return nil
	})
	return out, err
}

func (s contractStore) GetBySlot(_ context.Context, slotID string) (domain.Contract, error) {
	var out domain.Contract
	err := s.r.run(func(st *state) error {
		for _, c := range st.contracts {
			if c.SlotID == slotID {
				out = c
				return nil
			}
		}
		return domain.ErrNotFound
	})
	return out, err
}

func (s contractStore) UpdateStatus(_ context.Context, id string, from, to domain.ContractStatus) (bool, error) {
	var updated bool
	err := s.r.run(func(st *state) error {
		c, ok := st.contracts[id]
		if !ok || c.Status != from {
			return nil
		}
		c.Status = to
		st.contracts[id] = c
		updated = true
		return nil
	})
	return updated, err
}

func (s contractStore) ListOverdueActive(_ context.Context, now time.Time, limit int) ([]domain.Contract, error) {
	var out []domain.Contract
	err := s.r.run(func(st *state) error {
		for _, c := range st.contracts {
			if c.Status == domain.ContractStatusActive && !c.DeadlineAt.After(now) {
				out = append(out, c)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].DeadlineAt.Equal(out[j].DeadlineAt) {
				return out[i].DeadlineAt.Before(out[j].DeadlineAt)
			}
			return out[i].ID < out[j].ID
		})
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (s contractStore) ListTerminalBefore(_ context.Context, before time.Time) ([]domain.Contract, error) {
	var out []domain.Contract
	err := s.r.run(func(st *state) error {
		for _, c := range st.contracts {
			if c.Terminal() && c.StartedAt.Before(before) {
				out = append(out, c)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

// ---------------------------------------------------------------------------
// audit
// ---------------------------------------------------------------------------

type auditStore struct{ r runner }

func (s auditStore) Log(_ context.Context, event string, detail map[string]any) error {
	return s.r.run(func(st *state) error {
		st.auditSeq++
		st.audit = append(st.audit, domain.AuditEntry{
			ID:        st.auditSeq,
			Event:     event,
			Detail:    detail,
			CreatedAt: time.Now().UTC(),
		})
		return nil
	})
}

// AuditEntries returns a copy of the audit log. Test hook.
func (m *Store) AuditEntries() []domain.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AuditEntry, len(m.st.audit))
	copy(out, m.st.audit)
	return out
}

// Compile-time interface checks.
var (
	_ domain.Store = (*Store)(nil)
	_ domain.Store = (*txStore)(nil)
)
