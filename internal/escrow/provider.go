package escrow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openslot/openslot/internal/domain"
)

// Provider is the HTTP-backed Gateway. The remote payment provider
// deduplicates on the Idempotency-Key header, so retrying any call with the
// same reference id and operation is safe.
type Provider struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewProvider creates a Provider for the given base URL and bearer token. It
// uses a default HTTP client with a 15-second timeout.
func NewProvider(baseURL, token string) *Provider {
	return &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type escrowRequest struct {
	ReferenceID string `json:"reference_id"`
	PrincipalID string `json:"principal_id"`
	Amount      int64  `json:"amount"`
	PlatformFee int64  `json:"platform_fee,omitempty"`
}

type escrowFailure struct {
	Error string `json:"error"`
}

// LockFunds implements Gateway.
func (p *Provider) LockFunds(ctx context.Context, referenceID, principalID string, amount int64) error {
	return p.post(ctx, OpLock, escrowRequest{
		ReferenceID: referenceID,
		PrincipalID: principalID,
		Amount:      amount,
	})
}

// RefundToOwner implements Gateway.
func (p *Provider) RefundToOwner(ctx context.Context, referenceID, principalID string, amount int64) error {
	return p.post(ctx, OpRefund, escrowRequest{
		ReferenceID: referenceID,
		PrincipalID: principalID,
		Amount:      amount,
	})
}

// ReleaseToExecutive implements Gateway.
func (p *Provider) ReleaseToExecutive(ctx context.Context, referenceID, principalID string, netAmount, platformFee int64) error {
	return p.post(ctx, OpRelease, escrowRequest{
		ReferenceID: referenceID,
		PrincipalID: principalID,
		Amount:      netAmount,
		PlatformFee: platformFee,
	})
}

// post sends one escrow operation and classifies any non-2xx response as a
// gateway failure carrying the provider's reason.
func (p *Provider) post(ctx context.Context, op string, payload escrowRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("escrow provider: marshal %s request: %w", op, err)
	}

	url := fmt.Sprintf("%s/v1/escrow/%s", p.baseURL, op)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("escrow provider: create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", IdempotencyKey(payload.ReferenceID, op))
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("escrow provider: %s %s: %w: %w", op, payload.ReferenceID, err, domain.ErrGateway)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	reason := readFailureReason(resp.Body)
	return fmt.Errorf("escrow provider: %s %s: status %d: %s: %w",
		op, payload.ReferenceID, resp.StatusCode, reason, domain.ErrGateway)
}

// readFailureReason extracts the provider's human-readable reason from a
// failure body, falling back to the raw text.
func readFailureReason(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 2048))
	var f escrowFailure
	if err := json.Unmarshal(raw, &f); err == nil && f.Error != "" {
		return f.Error
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "no reason given"
	}
	return text
}

// Compile-time interface check.
var _ Gateway = (*Provider)(nil)
