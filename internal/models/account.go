package models

import (
	"time"

	"github.com/google/uuid"
)

// LoyaltyAccount tracks points one customer holds with one business.
// Created lazily on the first earn event, never deleted.
// Invariant: PointsBalance == TotalEarned - TotalSpent
type LoyaltyAccount struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	BusinessID uuid.UUID

	PointsBalance int64
	TotalEarned   int64
	TotalSpent    int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
