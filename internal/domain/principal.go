package domain

import "time"

// PrincipalKind distinguishes the two sides of the market.
type PrincipalKind string

const (
	PrincipalKindIssuer PrincipalKind = "ISSUER"
	PrincipalKindBidder PrincipalKind = "BIDDER"
)

// Principal is an identity that can either offer slots (issuer) or bid on
// them (bidder). Only verified principals may participate; the verification
// flow itself lives outside this service.
type Principal struct {
	ID          string        `json:"id"`
	Kind        PrincipalKind `json:"kind"`
	DisplayName string        `json:"displayName"`
	Verified    bool          `json:"verified"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// IsVerifiedIssuer reports whether the principal may create slots.
func (p Principal) IsVerifiedIssuer() bool {
	return p.Kind == PrincipalKindIssuer && p.Verified
}

// IsVerifiedBidder reports whether the principal may place bids.
func (p Principal) IsVerifiedBidder() bool {
	return p.Kind == PrincipalKindBidder && p.Verified
}
