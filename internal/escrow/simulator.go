package escrow

import (
	"context"
	"fmt"
	"sync"

	"github.com/openslot/openslot/internal/domain"
)

// Call records one gateway invocation for inspection in tests and
// simulate-mode debugging.
type Call struct {
	Op          string
	ReferenceID string
	PrincipalID string
	Amount      int64
	PlatformFee int64
}

// Simulator is an in-memory Gateway. It performs no real fund movement but
// honours the idempotency contract: repeating a call with the same reference
// id and operation is a no-op success, and conflicting amounts under the same
// key are rejected.
type Simulator struct {
	mu    sync.Mutex
	seen  map[string]Call
	calls []Call
	fail  map[string]error // op -> injected failure
}

// NewSimulator creates an empty Simulator.
func NewSimulator() *Simulator {
	return &Simulator{
		seen: make(map[string]Call),
		fail: make(map[string]error),
	}
}

// FailWith makes every subsequent call of the given operation return err.
// Pass a nil error to clear the injection. Test hook.
func (s *Simulator) FailWith(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, op)
		return
	}
	s.fail[op] = err
}

// Calls returns a copy of every non-deduplicated call made so far.
func (s *Simulator) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many effective (non-deduplicated) calls of op were
// made against referenceID.
func (s *Simulator) CallCount(referenceID, op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.ReferenceID == referenceID && c.Op == op {
			n++
		}
	}
	return n
}

func (s *Simulator) record(c Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail[c.Op]; err != nil {
		return fmt.Errorf("escrow simulator: %s %s: %w: %w", c.Op, c.ReferenceID, err, domain.ErrGateway)
	}

	key := IdempotencyKey(c.ReferenceID, c.Op)
	if prev, ok := s.seen[key]; ok {
		if prev.Amount != c.Amount || prev.PrincipalID != c.PrincipalID {
			return fmt.Errorf("escrow simulator: %s %s replayed with different parameters: %w", c.Op, c.ReferenceID, domain.ErrGateway)
		}
		return nil // idempotent replay
	}

	s.seen[key] = c
	s.calls = append(s.calls, c)
	return nil
}

// LockFunds implements Gateway.
func (s *Simulator) LockFunds(_ context.Context, referenceID, principalID string, amount int64) error {
	return s.record(Call{Op: OpLock, ReferenceID: referenceID, PrincipalID: principalID, Amount: amount})
}

// RefundToOwner implements Gateway.
func (s *Simulator) RefundToOwner(_ context.Context, referenceID, principalID string, amount int64) error {
	return s.record(Call{Op: OpRefund, ReferenceID: referenceID, PrincipalID: principalID, Amount: amount})
}

// ReleaseToExecutive implements Gateway.
func (s *Simulator) ReleaseToExecutive(_ context.Context, referenceID, principalID string, netAmount, platformFee int64) error {
	return s.record(Call{Op: OpRelease, ReferenceID: referenceID, PrincipalID: principalID, Amount: netAmount, PlatformFee: platformFee})
}

// Compile-time interface check.
var _ Gateway = (*Simulator)(nil)
