package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/openslot/openslot/internal/domain"
)

// ContractStore implements domain.ContractStore using PostgreSQL.
type ContractStore struct {
	q querier
}

const contractSelectCols = `id, slot_id, winning_bid_id, clearing_price, status, started_at, deadline_at`

func scanContract(scanner interface{ Scan(dest ...any) error }) (domain.Contract, error) {
	var c domain.Contract
	var status string
	err := scanner.Scan(&c.ID, &c.SlotID, &c.WinningBidID, &c.ClearingPrice, &status, &c.StartedAt, &c.DeadlineAt)
	if err != nil {
		return domain.Contract{}, err
	}
	c.Status = domain.ContractStatus(status)
	return c, nil
}

func scanContractRows(rows pgx.Rows) ([]domain.Contract, error) {
	var contracts []domain.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

// Create inserts a new contract. Unique constraints on slot_id and
// winning_bid_id hold the one-contract-per-slot invariant in the schema.
func (s *ContractStore) Create(ctx context.Context, c domain.Contract) error {
	const query = `
		INSERT INTO contracts (id, slot_id, winning_bid_id, clearing_price, status, started_at, deadline_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.q.Exec(ctx, query,
		c.ID, c.SlotID, c.WinningBidID, c.ClearingPrice, string(c.Status), c.StartedAt, c.DeadlineAt)
	if err != nil {
		return fmt.Errorf("postgres: create contract %s: %w", c.ID, err)
	}
	return nil
}

// GetByID retrieves a single contract.
func (s *ContractStore) GetByID(ctx context.Context, id string) (domain.Contract, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+contractSelectCols+` FROM contracts WHERE id = $1`, id)

	c, err := scanContract(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Contract{}, domain.ErrNotFound
		}
		return domain.Contract{}, fmt.Errorf("postgres: get contract %s: %w", id, err)
	}
	return c, nil
}

// GetBySlot retrieves the contract for a slot.
func (s *ContractStore) GetBySlot(ctx context.Context, slotID string) (domain.Contract, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+contractSelectCols+` FROM contracts WHERE slot_id = $1`, slotID)

	c, err := scanContract(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Contract{}, domain.ErrNotFound
		}
		return domain.Contract{}, fmt.Errorf("postgres: get contract for slot %s: %w", slotID, err)
	}
	return c, nil
}

// UpdateStatus transitions the contract from exactly `from` to `to`.
func (s *ContractStore) UpdateStatus(ctx context.Context, id string, from, to domain.ContractStatus) (bool, error) {
	tag, err := s.q.Exec(ctx,
		`UPDATE contracts SET status = $1 WHERE id = $2 AND status = $3`,
		string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("postgres: update contract %s status: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListOverdueActive returns ACTIVE contracts whose deadline has passed.
func (s *ContractStore) ListOverdueActive(ctx context.Context, now time.Time, limit int) ([]domain.Contract, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+contractSelectCols+` FROM contracts
		 WHERE status = $1 AND deadline_at <= $2
		 ORDER BY deadline_at ASC, id ASC
		 LIMIT $3`,
		string(domain.ContractStatusActive), now, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list overdue contracts: %w", err)
	}
	defer rows.Close()

	contracts, err := scanContractRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan overdue contracts: %w", err)
	}
	return contracts, nil
}

// ListTerminalBefore returns settled contracts started before the cutoff,
// for archival.
func (s *ContractStore) ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.Contract, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+contractSelectCols+` FROM contracts
		 WHERE status IN ($1, $2) AND started_at < $3
		 ORDER BY id ASC`,
		string(domain.ContractStatusCompleted), string(domain.ContractStatusBreach), before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal contracts: %w", err)
	}
	defer rows.Close()

	contracts, err := scanContractRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan terminal contracts: %w", err)
	}
	return contracts, nil
}
