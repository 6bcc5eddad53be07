package postgres

import (
	"context"
	"encoding/json"
	"fmt"
)

// AuditStore implements domain.AuditStore using PostgreSQL. Entries are
// append-only; the detail map is stored as JSONB.
type AuditStore struct {
	q querier
}

// Log appends one audit entry.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal audit detail: %w", err)
	}

	const query = `INSERT INTO audit_log (event, detail) VALUES ($1, $2)`
	if _, err := s.q.Exec(ctx, query, event, detailJSON); err != nil {
		return fmt.Errorf("postgres: log audit event %s: %w", event, err)
	}
	return nil
}
