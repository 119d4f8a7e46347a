package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/perkhub/loyalty/internal/apperrors"
	"github.com/perkhub/loyalty/internal/models"
	"github.com/perkhub/loyalty/internal/repository"
)

type TransactionRepo struct {
	DB DBTX
}

const createTransaction = `-- name: CreateTransaction
INSERT INTO ledger_transactions (id, account_id, kind, points, description, reference_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, account_id, kind, points, description, reference_id, created_at
`

func (r *TransactionRepo) Create(ctx context.Context, t models.LedgerTransaction) (models.LedgerTransaction, error) {
	rows, _ := r.DB.Query(ctx, createTransaction, t.ID, t.AccountID, t.Kind, t.Points, t.Description, t.ReferenceID, t.CreatedAt)
	created, err := pgx.CollectOneRow(rows, rowToTransaction)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return created, apperrors.ErrAccountNotFound
		}

		return created, wrapDBError(err)
	}

	return created, nil
}

const listTransactions = `-- name: ListTransactions
SELECT t.id, t.account_id, t.kind, t.points, t.description, t.reference_id, t.created_at
FROM ledger_transactions t
JOIN loyalty_accounts a ON a.id = t.account_id
WHERE a.customer_id = $1
  AND ($2::uuid IS NULL OR a.business_id = $2)
ORDER BY t.created_at DESC, t.id
LIMIT NULLIF($3::bigint, 0) OFFSET $4
`

func (r *TransactionRepo) List(ctx context.Context, customerID uuid.UUID, opts repository.ListTransactionsOpts) ([]models.LedgerTransaction, error) {
	rows, _ := r.DB.Query(ctx, listTransactions, customerID, opts.BusinessID, opts.Limit, opts.Offset)
	transactions, err := pgx.CollectRows(rows, rowToTransaction)

	if err != nil {
		return nil, wrapDBError(err)
	}

	return transactions, nil
}

func rowToTransaction(row pgx.CollectableRow) (models.LedgerTransaction, error) {
	var t models.LedgerTransaction
	err := row.Scan(&t.ID, &t.AccountID, &t.Kind, &t.Points, &t.Description, &t.ReferenceID, &t.CreatedAt)
	return t, err
}
