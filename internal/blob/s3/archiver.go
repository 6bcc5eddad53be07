package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openslot/openslot/internal/domain"
)

// Archiver exports settled contracts and bids to JSONL files in object
// storage, partitioned by the year-month of the cutoff. Archived rows stay
// in the primary store; pruning is a separate, explicit step run only after
// the archive has been verified.
type Archiver struct {
	writer    domain.BlobWriter
	contracts domain.ContractStore
	bids      domain.BidStore
	audit     domain.AuditStore
}

// NewArchiver creates an Archiver over the given stores and blob writer.
func NewArchiver(writer domain.BlobWriter, contracts domain.ContractStore, bids domain.BidStore, audit domain.AuditStore) *Archiver {
	return &Archiver{
		writer:    writer,
		contracts: contracts,
		bids:      bids,
		audit:     audit,
	}
}

// ArchiveContracts uploads every terminal contract started before the cutoff
// to archive/contracts/YYYY-MM.jsonl and returns how many were written.
func (a *Archiver) ArchiveContracts(ctx context.Context, before time.Time) (int64, error) {
	contracts, err := a.contracts.ListTerminalBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive contracts query: %w", err)
	}
	if len(contracts) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(contracts)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive contracts marshal: %w", err)
	}

	path := archivePath("contracts", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive contracts upload: %w", err)
	}

	count := int64(len(contracts))
	if err := a.audit.Log(ctx, "archive.contracts", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive contracts audit log: %w", err)
	}
	return count, nil
}

// ArchiveBids uploads every settled bid created before the cutoff to
// archive/bids/YYYY-MM.jsonl and returns how many were written.
func (a *Archiver) ArchiveBids(ctx context.Context, before time.Time) (int64, error) {
	bids, err := a.bids.ListSettledBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive bids query: %w", err)
	}
	if len(bids) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(bids)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive bids marshal: %w", err)
	}

	path := archivePath("bids", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive bids upload: %w", err)
	}

	count := int64(len(bids))
	if err := a.audit.Log(ctx, "archive.bids", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive bids audit log: %w", err)
	}
	return count, nil
}

// archivePath builds the object key for one archive file, e.g.
// archive/contracts/2026-08.jsonl.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
