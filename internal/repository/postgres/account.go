package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/perkhub/loyalty/internal/apperrors"
	"github.com/perkhub/loyalty/internal/models"
)

type AccountRepo struct {
	DB DBTX
}

const getAccount = `-- name: GetAccount
SELECT id, customer_id, business_id, points_balance, total_earned, total_spent, created_at, updated_at
FROM loyalty_accounts
WHERE customer_id = $1 AND business_id = $2
`

func (r *AccountRepo) Get(ctx context.Context, customerID uuid.UUID, businessID uuid.UUID) (models.LoyaltyAccount, error) {
	rows, _ := r.DB.Query(ctx, getAccount, customerID, businessID)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	default:
		return account, wrapDBError(err)
	}
}

// Credit the account, creating it lazily on the first earn event.
// A single upsert statement, so two concurrent credits never lose an update.
const creditAccount = `-- name: CreditAccount
INSERT INTO loyalty_accounts (id, customer_id, business_id, points_balance, total_earned, total_spent, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4, 0, $5, $5)
ON CONFLICT (customer_id, business_id) DO UPDATE
SET points_balance = loyalty_accounts.points_balance + EXCLUDED.points_balance,
    total_earned   = loyalty_accounts.total_earned + EXCLUDED.total_earned,
    updated_at     = EXCLUDED.updated_at
RETURNING id, customer_id, business_id, points_balance, total_earned, total_spent, created_at, updated_at
`

// Debit the account only if the balance covers it. The balance condition
// rides on the UPDATE itself: no row matched means insufficient balance
// (or no account at all, which spends the same).
const debitAccount = `-- name: DebitAccount
UPDATE loyalty_accounts
SET points_balance = points_balance - $3,
    total_spent    = total_spent + $3,
    updated_at     = $4
WHERE customer_id = $1 AND business_id = $2 AND points_balance >= $3
RETURNING id, customer_id, business_id, points_balance, total_earned, total_spent, created_at, updated_at
`

func (r *AccountRepo) ApplyDelta(ctx context.Context, customerID uuid.UUID, businessID uuid.UUID, points int64, now time.Time) (models.LoyaltyAccount, error) {
	var account models.LoyaltyAccount

	if points == 0 {
		return account, apperrors.ErrAmountInvalid
	}

	var rows pgx.Rows
	if points > 0 {
		rows, _ = r.DB.Query(ctx, creditAccount, uuid.New(), customerID, businessID, points, now)
	} else {
		rows, _ = r.DB.Query(ctx, debitAccount, customerID, businessID, -points, now)
	}

	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Only the debit path can match nothing
		return account, fmt.Errorf("debit of %d points: %w", -points, apperrors.ErrInsufficientBalance)
	default:
		return account, wrapDBError(err)
	}
}

func rowToAccount(row pgx.CollectableRow) (models.LoyaltyAccount, error) {
	var a models.LoyaltyAccount
	err := row.Scan(&a.ID, &a.CustomerID, &a.BusinessID, &a.PointsBalance, &a.TotalEarned, &a.TotalSpent, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}
