package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openslot/openslot/internal/domain"
)

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, letting
// the entity stores run against either.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store bundles the entity stores over one querier. Outside a transaction
// the querier is the pool; inside InTx it is the transaction.
type Store struct {
	pool *pgxpool.Pool
	q    querier
}

// NewStore creates a Store over the client's pool.
func NewStore(c *Client) *Store {
	return &Store{pool: c.pool, q: c.pool}
}

func (s *Store) Principals() domain.PrincipalStore { return &PrincipalStore{q: s.q} }
func (s *Store) Slots() domain.SlotStore           { return &SlotStore{q: s.q} }
func (s *Store) Profiles() domain.ProfileStore     { return &ProfileStore{q: s.q} }
func (s *Store) Bids() domain.BidStore             { return &BidStore{q: s.q} }
func (s *Store) Contracts() domain.ContractStore   { return &ContractStore{q: s.q} }
func (s *Store) Audit() domain.AuditStore          { return &AuditStore{q: s.q} }

// InTx runs fn inside one database transaction. A nested call joins the
// transaction already in flight.
func (s *Store) InTx(ctx context.Context, fn func(domain.Store) error) error {
	if _, inTx := s.q.(pgx.Tx); inTx {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	if err := fn(&Store{pool: s.pool, q: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.Store = (*Store)(nil)
