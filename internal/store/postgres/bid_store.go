package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/openslot/openslot/internal/domain"
)

// BidStore implements domain.BidStore using PostgreSQL.
type BidStore struct {
	q querier
}

const bidSelectCols = `id, slot_id, bidder_id, amount, escrow_status, created_at`

func scanBid(scanner interface{ Scan(dest ...any) error }) (domain.Bid, error) {
	var b domain.Bid
	var escrow string
	err := scanner.Scan(&b.ID, &b.SlotID, &b.BidderID, &b.Amount, &escrow, &b.CreatedAt)
	if err != nil {
		return domain.Bid{}, err
	}
	b.EscrowStatus = domain.EscrowStatus(escrow)
	return b, nil
}

func scanBidRows(rows pgx.Rows) ([]domain.Bid, error) {
	var bids []domain.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// Create inserts a new bid.
func (s *BidStore) Create(ctx context.Context, b domain.Bid) error {
	const query = `
		INSERT INTO bids (id, slot_id, bidder_id, amount, escrow_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.q.Exec(ctx, query,
		b.ID, b.SlotID, b.BidderID, b.Amount, string(b.EscrowStatus), b.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create bid %s: %w", b.ID, err)
	}
	return nil
}

// GetByID retrieves a single bid.
func (s *BidStore) GetByID(ctx context.Context, id string) (domain.Bid, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+bidSelectCols+` FROM bids WHERE id = $1`, id)

	b, err := scanBid(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Bid{}, domain.ErrNotFound
		}
		return domain.Bid{}, fmt.Errorf("postgres: get bid %s: %w", id, err)
	}
	return b, nil
}

// ListBySlot returns every bid for the slot in ranking order: amount
// descending, then creation time ascending, then id ascending.
func (s *BidStore) ListBySlot(ctx context.Context, slotID string) ([]domain.Bid, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+bidSelectCols+` FROM bids
		 WHERE slot_id = $1
		 ORDER BY amount DESC, created_at ASC, id ASC`, slotID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids for slot %s: %w", slotID, err)
	}
	defer rows.Close()

	bids, err := scanBidRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bids for slot %s: %w", slotID, err)
	}
	return bids, nil
}

// UpdateEscrowStatus transitions escrow from exactly `from` to `to`. The
// conditional update keeps LOCKED -> settled a one-way, exactly-once move.
func (s *BidStore) UpdateEscrowStatus(ctx context.Context, id string, from, to domain.EscrowStatus) (bool, error) {
	tag, err := s.q.Exec(ctx,
		`UPDATE bids SET escrow_status = $1 WHERE id = $2 AND escrow_status = $3`,
		string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("postgres: update bid %s escrow: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListSettledBefore returns released and refunded bids created before the
// cutoff, for archival.
func (s *BidStore) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Bid, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+bidSelectCols+` FROM bids
		 WHERE escrow_status IN ($1, $2) AND created_at < $3
		 ORDER BY id ASC`,
		string(domain.EscrowStatusReleased), string(domain.EscrowStatusRefunded), before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled bids: %w", err)
	}
	defer rows.Close()

	bids, err := scanBidRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan settled bids: %w", err)
	}
	return bids, nil
}
