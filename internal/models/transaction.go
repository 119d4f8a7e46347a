package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind tags a ledger transaction. The set is closed, every switch over it
// must be exhaustive.
type Kind string

const (
	KindEarn   Kind = "earn"
	KindSpend  Kind = "spend"
	KindExpire Kind = "expire"
	KindAdjust Kind = "adjust"
)

// LedgerTransaction is an immutable, append-only record of one point movement.
// Earn, spend and expire store a positive magnitude, the kind supplies the
// direction. Adjust is the only kind that keeps its sign (it may correct in
// either direction).
type LedgerTransaction struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	Kind        Kind
	Points      int64
	Description string

	// Link to the originating visit or redemption, if any
	ReferenceID *uuid.UUID

	CreatedAt time.Time
}

// Signed returns the balance effect of the transaction.
// Replaying Signed over all transactions of an account reproduces its balance.
func (t LedgerTransaction) Signed() int64 {
	switch t.Kind {
	case KindEarn:
		return t.Points
	case KindSpend, KindExpire:
		return -t.Points
	case KindAdjust:
		return t.Points
	default:
		// The schema enforces the closed set, reaching here is a bug
		panic(fmt.Sprintf("unknown ledger transaction kind: %q", t.Kind))
	}
}
