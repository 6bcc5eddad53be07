package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/openslot/openslot/internal/domain"
)

// ProfileStore implements domain.ProfileStore using PostgreSQL.
type ProfileStore struct {
	q querier
}

// Lock takes a transaction-scoped advisory lock keyed on the issuer id,
// serializing concurrent slot creation for that issuer. It releases
// automatically at commit or rollback.
func (s *ProfileStore) Lock(ctx context.Context, issuerID string) error {
	if _, err := s.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, issuerID); err != nil {
		return fmt.Errorf("postgres: lock issuer %s: %w", issuerID, err)
	}
	return nil
}

// Get retrieves an issuer profile.
func (s *ProfileStore) Get(ctx context.Context, issuerID string) (domain.IssuerProfile, error) {
	const query = `
		SELECT issuer_id, reserve_price, tags, active_slot_id, updated_at
		FROM issuer_profiles WHERE issuer_id = $1`

	var p domain.IssuerProfile
	err := s.q.QueryRow(ctx, query, issuerID).Scan(
		&p.IssuerID, &p.ReservePrice, &p.Tags, &p.ActiveSlotID, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.IssuerProfile{}, domain.ErrNotFound
		}
		return domain.IssuerProfile{}, fmt.Errorf("postgres: get profile %s: %w", issuerID, err)
	}
	return p, nil
}

// Upsert writes the full profile row, inserting or replacing.
func (s *ProfileStore) Upsert(ctx context.Context, p domain.IssuerProfile) error {
	const query = `
		INSERT INTO issuer_profiles (issuer_id, reserve_price, tags, active_slot_id, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (issuer_id) DO UPDATE SET
			reserve_price = EXCLUDED.reserve_price,
			tags = EXCLUDED.tags,
			active_slot_id = EXCLUDED.active_slot_id,
			updated_at = EXCLUDED.updated_at`
	_, err := s.q.Exec(ctx, query,
		p.IssuerID, p.ReservePrice, p.Tags, p.ActiveSlotID, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert profile %s: %w", p.IssuerID, err)
	}
	return nil
}

// ClearActiveSlot detaches the issuer's in-flight slot.
func (s *ProfileStore) ClearActiveSlot(ctx context.Context, issuerID string) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE issuer_profiles SET active_slot_id = NULL, updated_at = NOW() WHERE issuer_id = $1`,
		issuerID)
	if err != nil {
		return fmt.Errorf("postgres: clear active slot %s: %w", issuerID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
