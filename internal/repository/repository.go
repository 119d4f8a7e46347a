package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/perkhub/loyalty/internal/models"
)

// LoyaltyAccount repository interface
type AccountRepo interface {
	// Get account for the (customer, business) pair
	// If the pair never earned points must return apperrors.ErrAccountNotFound
	Get(ctx context.Context, customerID uuid.UUID, businessID uuid.UUID) (models.LoyaltyAccount, error)

	// Apply signed points to the account balance as a single atomic
	// conditional write. Positive points create the account lazily.
	// Must return apperrors.ErrInsufficientBalance if the account does not
	// exist for a debit or the resulting balance would go negative.
	ApplyDelta(ctx context.Context, customerID uuid.UUID, businessID uuid.UUID, points int64, now time.Time) (models.LoyaltyAccount, error)
}

type ListTransactionsOpts struct {
	// Scope to one business of the customer, all businesses if nil
	BusinessID *uuid.UUID

	Limit  int
	Offset int
}

// LedgerTransaction repository interface. Append-only: no update, no delete.
type TransactionRepo interface {
	Create(ctx context.Context, t models.LedgerTransaction) (models.LedgerTransaction, error)

	// List customer transactions newest first
	List(ctx context.Context, customerID uuid.UUID, opts ListTransactionsOpts) ([]models.LedgerTransaction, error)
}

type ListRedemptionsOpts struct {
	// Exactly one of CustomerID/BusinessID is expected to be set
	CustomerID *uuid.UUID
	BusinessID *uuid.UUID

	// Filter by status, all statuses if empty
	Status models.Status

	Limit  int
	Offset int
}

// RewardRedemption repository interface
type RedemptionRepo interface {
	// Create redemption with status pending
	// If the code is already taken must return apperrors.ErrCodeTaken
	Create(ctx context.Context, r models.RewardRedemption) (models.RewardRedemption, error)

	// If not found must return apperrors.ErrRedemptionNotFound
	GetByID(ctx context.Context, id uuid.UUID) (models.RewardRedemption, error)
	GetByCode(ctx context.Context, code string) (models.RewardRedemption, error)

	// Compare-and-swap the status from pending to the given terminal one.
	// Approved sets redeemed_at to now. Exactly one of two concurrent calls
	// for the same id may succeed, the rest must get
	// apperrors.ErrRedemptionNotFound (no row matched the swap).
	TransitionFromPending(ctx context.Context, id uuid.UUID, toStatus models.Status, now time.Time) (models.RewardRedemption, error)

	// Flip every pending redemption past its expires_at to expired.
	// Idempotent: re-running over already expired rows changes nothing.
	ExpireDue(ctx context.Context, now time.Time, limit int) (int64, error)

	// List redemptions newest first
	List(ctx context.Context, opts ListRedemptionsOpts) ([]models.RewardRedemption, error)
}

// Storage aggregates the repositories over one connection, pool or transaction
type Storage interface {
	Account() AccountRepo
	Transaction() TransactionRepo
	Redemption() RedemptionRepo

	// Run fn inside one database transaction. Everything written through the
	// storage passed to fn commits or rolls back as a unit.
	InTx(ctx context.Context, fn func(Storage) error) error
}
