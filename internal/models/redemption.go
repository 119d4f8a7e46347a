package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status tags a redemption. The set is closed, pending is the only
// non-terminal member.
type Status string

const (
	RedemptionPending  Status = "pending"
	RedemptionApproved Status = "approved"
	RedemptionRejected Status = "rejected"
	RedemptionExpired  Status = "expired"
)

// RewardRedemption is a customer's claim on a reward, paid with points and
// gated by a single-use code. Once the status leaves pending the record can
// never transition again.
type RewardRedemption struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	BusinessID uuid.UUID
	CampaignID uuid.UUID

	PointsSpent int64
	Status      Status

	// Opaque, globally unique, unguessable token shown to the business scanner
	Code string

	CreatedAt  time.Time
	RedeemedAt *time.Time
	ExpiresAt  time.Time
}

// Resolved reports whether the redemption reached a terminal status.
func (r RewardRedemption) Resolved() bool {
	switch r.Status {
	case RedemptionApproved, RedemptionRejected, RedemptionExpired:
		return true
	case RedemptionPending:
		return false
	default:
		// The schema enforces the closed set, reaching here is a bug
		panic(fmt.Sprintf("unknown redemption status: %q", r.Status))
	}
}

// DueToExpire reports whether a pending redemption has outlived its window
// and should be flipped to expired on the next touch.
func (r RewardRedemption) DueToExpire(now time.Time) bool {
	return r.Status == RedemptionPending && !now.Before(r.ExpiresAt)
}
