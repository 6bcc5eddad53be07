// Package escrow defines the gateway contract for holding bidder funds and
// provides the two implementations selected at startup: an in-process
// simulator and an HTTP-backed provider.
package escrow

import "context"

// Operation names used to build gateway idempotency keys.
const (
	OpLock    = "lock"
	OpRefund  = "refund"
	OpRelease = "release"
)

// Gateway moves escrowed funds against a reference id. All three calls are
// idempotent keyed by reference id plus operation, so callers may retry
// safely after partial failures. Amounts are in cents.
type Gateway interface {
	// LockFunds places amount on hold for the principal under referenceID.
	LockFunds(ctx context.Context, referenceID, principalID string, amount int64) error

	// RefundToOwner returns amount held under referenceID to the principal.
	RefundToOwner(ctx context.Context, referenceID, principalID string, amount int64) error

	// ReleaseToExecutive pays netAmount out to the principal and retains
	// platformFee for the platform.
	ReleaseToExecutive(ctx context.Context, referenceID, principalID string, netAmount, platformFee int64) error
}

// IdempotencyKey builds the key a gateway implementation deduplicates on.
func IdempotencyKey(referenceID, op string) string {
	return referenceID + ":" + op
}
