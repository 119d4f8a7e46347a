package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/perkhub/loyalty/internal/apperrors"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx, so every repo
// works the same on a pool or inside a transaction
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// wrapDBError marks retryable failures with apperrors.ErrStorageTransient.
// Serialization failures and deadlocks mean the conditional write lost a
// conflict, the whole logical operation may be replayed safely.
func wrapDBError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
			return fmt.Errorf("db conflict: %w: %w", apperrors.ErrStorageTransient, err)
		}
	}

	if pgconn.SafeToRetry(err) {
		return fmt.Errorf("db not reached: %w: %w", apperrors.ErrStorageTransient, err)
	}

	return fmt.Errorf("db error: %w", err)
}
