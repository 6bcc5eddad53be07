package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/openslot/openslot/internal/domain"
)

// SlotStore implements domain.SlotStore using PostgreSQL.
type SlotStore struct {
	q querier
}

const slotSelectCols = `id, issuer_id, tier, category, status, auction_ends_at, created_at`

func scanSlot(scanner interface{ Scan(dest ...any) error }) (domain.Slot, error) {
	var sl domain.Slot
	var tier, status string
	err := scanner.Scan(&sl.ID, &sl.IssuerID, &tier, &sl.Category, &status, &sl.AuctionEndsAt, &sl.CreatedAt)
	if err != nil {
		return domain.Slot{}, err
	}
	sl.Tier = domain.Tier(tier)
	sl.Status = domain.SlotStatus(status)
	return sl, nil
}

// Create inserts a new slot.
func (s *SlotStore) Create(ctx context.Context, sl domain.Slot) error {
	const query = `
		INSERT INTO slots (id, issuer_id, tier, category, status, auction_ends_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.q.Exec(ctx, query,
		sl.ID, sl.IssuerID, string(sl.Tier), sl.Category, string(sl.Status), sl.AuctionEndsAt, sl.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create slot %s: %w", sl.ID, err)
	}
	return nil
}

// GetByID retrieves a single slot.
func (s *SlotStore) GetByID(ctx context.Context, id string) (domain.Slot, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+slotSelectCols+` FROM slots WHERE id = $1`, id)

	sl, err := scanSlot(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Slot{}, domain.ErrNotFound
		}
		return domain.Slot{}, fmt.Errorf("postgres: get slot %s: %w", id, err)
	}
	return sl, nil
}

// MarkAuctionClosed flips an OPEN slot to AUCTION_CLOSED when its deadline is
// due. The conditional update makes concurrent closers race safely; exactly
// one sees a row affected.
func (s *SlotStore) MarkAuctionClosed(ctx context.Context, id string, now time.Time) (bool, error) {
	const query = `
		UPDATE slots SET status = $1
		WHERE id = $2 AND status = $3 AND auction_ends_at <= $4`
	tag, err := s.q.Exec(ctx, query,
		string(domain.SlotStatusAuctionClosed), id, string(domain.SlotStatusOpen), now)
	if err != nil {
		return false, fmt.Errorf("postgres: mark auction closed %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateStatus sets the slot status unconditionally.
func (s *SlotStore) UpdateStatus(ctx context.Context, id string, status domain.SlotStatus) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE slots SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("postgres: update slot status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListDueOpen returns OPEN slots whose auction deadline has passed.
func (s *SlotStore) ListDueOpen(ctx context.Context, now time.Time, limit int) ([]domain.Slot, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+slotSelectCols+` FROM slots
		 WHERE status = $1 AND auction_ends_at <= $2
		 ORDER BY auction_ends_at ASC, id ASC
		 LIMIT $3`,
		string(domain.SlotStatusOpen), now, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list due slots: %w", err)
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan due slot: %w", err)
		}
		slots = append(slots, sl)
	}
	return slots, rows.Err()
}
