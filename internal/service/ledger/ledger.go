package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/perkhub/loyalty/internal/apperrors"
	"github.com/perkhub/loyalty/internal/logger"
	"github.com/perkhub/loyalty/internal/models"
	"github.com/perkhub/loyalty/internal/repository"
	"github.com/perkhub/loyalty/internal/retry"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Service is the single authority over balances: every mutation commits
// together with its ledger transaction or not at all.
type Service struct {
	storage repository.Storage
	logger  logger.Logger
}

func NewService(storage repository.Storage, l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{
		storage: storage,
		logger:  l,
	}
}

// GetBalance returns the account of the (customer, business) pair.
// A pair that never earned points gets apperrors.ErrAccountNotFound, not a
// zero balance: callers can tell "never participated" from "spent everything".
func (s *Service) GetBalance(ctx context.Context, customerID uuid.UUID, businessID uuid.UUID) (models.LoyaltyAccount, error) {
	return s.storage.Account().Get(ctx, customerID, businessID)
}

// ApplyDelta credits (points > 0) or debits (points < 0) the account and
// appends the matching earn/spend transaction atomically. A debit that the
// balance cannot cover fails with apperrors.ErrInsufficientBalance and
// leaves no trace in the log.
func (s *Service) ApplyDelta(ctx context.Context, customerID uuid.UUID, businessID uuid.UUID, points int64, description string, referenceID *uuid.UUID) (models.LoyaltyAccount, error) {
	var account models.LoyaltyAccount

	err := retry.Transient(ctx, s.logger, func() error {
		return s.storage.InTx(ctx, func(store repository.Storage) error {
			var err error
			account, err = s.ApplyDeltaIn(ctx, store, customerID, businessID, points, description, referenceID)
			return err
		})
	})

	return account, err
}

// ApplyDeltaIn is ApplyDelta for callers that compose the balance mutation
// with their own writes in one storage transaction. The caller owns the
// transaction boundary and retries.
func (s *Service) ApplyDeltaIn(ctx context.Context, store repository.Storage, customerID uuid.UUID, businessID uuid.UUID, points int64, description string, referenceID *uuid.UUID) (models.LoyaltyAccount, error) {
	var account models.LoyaltyAccount

	if points == 0 {
		return account, apperrors.ErrAmountInvalid
	}

	kind := models.KindEarn
	amount := points
	if points < 0 {
		kind = models.KindSpend
		amount = -points
	}

	return s.apply(ctx, store, customerID, businessID, kind, points, amount, description, referenceID)
}

// Adjust applies a signed operator correction with kind adjust. It follows
// the same balance rules as ApplyDelta but keeps its sign in the log, so a
// replay can tell corrections from organic movements.
func (s *Service) Adjust(ctx context.Context, customerID uuid.UUID, businessID uuid.UUID, points int64, description string, referenceID *uuid.UUID) (models.LoyaltyAccount, error) {
	var account models.LoyaltyAccount

	if points == 0 {
		return account, apperrors.ErrAmountInvalid
	}

	err := retry.Transient(ctx, s.logger, func() error {
		return s.storage.InTx(ctx, func(store repository.Storage) error {
			var err error
			account, err = s.apply(ctx, store, customerID, businessID, models.KindAdjust, points, points, description, referenceID)
			return err
		})
	})

	return account, err
}

// apply performs the paired mutation + append inside the caller's transaction
func (s *Service) apply(ctx context.Context, store repository.Storage, customerID uuid.UUID, businessID uuid.UUID, kind models.Kind, delta int64, logged int64, description string, referenceID *uuid.UUID) (models.LoyaltyAccount, error) {
	now := time.Now().UTC()

	account, err := store.Account().ApplyDelta(ctx, customerID, businessID, delta, now)
	if err != nil {
		return account, fmt.Errorf("can't apply %s of %d points: %w", kind, delta, err)
	}

	_, err = store.Transaction().Create(ctx, models.LedgerTransaction{
		ID:          uuid.New(),
		AccountID:   account.ID,
		Kind:        kind,
		Points:      logged,
		Description: description,
		ReferenceID: referenceID,
		CreatedAt:   now,
	})
	if err != nil {
		return account, fmt.Errorf("can't append ledger transaction: %w", err)
	}

	return account, nil
}

// ListTransactions returns the customer's transactions newest first,
// optionally scoped to one business. Restartable via limit/offset.
func (s *Service) ListTransactions(ctx context.Context, customerID uuid.UUID, opts repository.ListTransactionsOpts) ([]models.LedgerTransaction, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}
	if opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	return s.storage.Transaction().List(ctx, customerID, opts)
}
