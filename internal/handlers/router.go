package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/perkhub/loyalty/internal/handlers/middleware"
	"github.com/perkhub/loyalty/internal/logger"
	"github.com/perkhub/loyalty/internal/models"
	"github.com/perkhub/loyalty/internal/repository"
	"github.com/perkhub/loyalty/internal/service/query"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

// Callers arrive authenticated by the surrounding application, identity
// fields in requests are trusted here
func NewRouter(
	ledgerService ledgerService,
	redemptionService redemptionService,
	queryService queryService,
	l logger.Logger,
) http.Handler {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	api := http.NewServeMux()

	api.Handle("POST /loyalty/earn", handleEarn(ledgerService, l))
	api.Handle("POST /loyalty/adjust", handleAdjust(ledgerService, l))
	api.Handle("GET /loyalty/balance", handleBalance(queryService, l))
	api.Handle("GET /loyalty/transactions", handleListTransactions(queryService, l))

	api.Handle("POST /redemptions", handleCreateRedemption(redemptionService, l))
	api.Handle("POST /redemptions/verify", handleVerifyCode(redemptionService, l))
	api.Handle("POST /redemptions/{id}/approve", handleApproveRedemption(redemptionService, l))
	api.Handle("POST /redemptions/{id}/reject", handleRejectRedemption(redemptionService, l))
	api.Handle("GET /redemptions", handleListRedemptions(queryService, l))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))

	handler := chain(root,
		middleware.LoggerMiddleware(l),
	)

	return handler
}

type ledgerService interface {
	// Credit or debit points paired with an earn/spend ledger transaction
	// Has to return apperrors.ErrInsufficientBalance if the balance can't cover a debit
	ApplyDelta(ctx context.Context, customerID uuid.UUID, businessID uuid.UUID, points int64, description string, referenceID *uuid.UUID) (models.LoyaltyAccount, error)

	// Apply a signed operator correction with kind adjust
	Adjust(ctx context.Context, customerID uuid.UUID, businessID uuid.UUID, points int64, description string, referenceID *uuid.UUID) (models.LoyaltyAccount, error)
}

type redemptionService interface {
	// Debit points and open a pending redemption as one unit
	Create(ctx context.Context, customerID uuid.UUID, businessID uuid.UUID, campaignID uuid.UUID, points int64) (models.RewardRedemption, error)

	// Resolve a scanned code, pending and unexpired only
	// Everything else has to be apperrors.ErrRedemptionNotFound
	VerifyCode(ctx context.Context, code string) (models.RewardRedemption, error)

	// Settle a pending redemption exactly once
	// Has to return apperrors.ErrInvalidState or apperrors.ErrRedemptionExpired otherwise
	Approve(ctx context.Context, id uuid.UUID) (models.RewardRedemption, error)
	Reject(ctx context.Context, id uuid.UUID) (models.RewardRedemption, error)
}

type queryService interface {
	Balance(ctx context.Context, customerID uuid.UUID, businessID uuid.UUID) (query.BalanceView, error)
	History(ctx context.Context, customerID uuid.UUID, opts repository.ListTransactionsOpts) ([]query.TransactionView, error)
	Redemptions(ctx context.Context, opts repository.ListRedemptionsOpts) ([]query.RedemptionView, error)
}
