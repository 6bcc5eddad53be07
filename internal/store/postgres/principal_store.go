package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/openslot/openslot/internal/domain"
)

// PrincipalStore implements domain.PrincipalStore using PostgreSQL.
type PrincipalStore struct {
	q querier
}

// Create inserts a new principal.
func (s *PrincipalStore) Create(ctx context.Context, p domain.Principal) error {
	const query = `
		INSERT INTO principals (id, kind, display_name, verified, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := s.q.Exec(ctx, query, p.ID, string(p.Kind), p.DisplayName, p.Verified, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create principal %s: %w", p.ID, err)
	}
	return nil
}

// GetByID retrieves a single principal.
func (s *PrincipalStore) GetByID(ctx context.Context, id string) (domain.Principal, error) {
	const query = `
		SELECT id, kind, display_name, verified, created_at
		FROM principals WHERE id = $1`

	var p domain.Principal
	var kind string
	err := s.q.QueryRow(ctx, query, id).Scan(&p.ID, &kind, &p.DisplayName, &p.Verified, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Principal{}, domain.ErrNotFound
		}
		return domain.Principal{}, fmt.Errorf("postgres: get principal %s: %w", id, err)
	}
	p.Kind = domain.PrincipalKind(kind)
	return p, nil
}

// SetVerified flips the verification flag.
func (s *PrincipalStore) SetVerified(ctx context.Context, id string, verified bool) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE principals SET verified = $1 WHERE id = $2`, verified, id)
	if err != nil {
		return fmt.Errorf("postgres: set principal %s verified: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
