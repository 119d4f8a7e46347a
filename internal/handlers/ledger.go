package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/perkhub/loyalty/internal/apperrors"
	"github.com/perkhub/loyalty/internal/handlers/render"
	"github.com/perkhub/loyalty/internal/logger"
	"github.com/perkhub/loyalty/internal/models"
	"github.com/perkhub/loyalty/internal/repository"
)

type accountResponse struct {
	CustomerID  uuid.UUID `json:"customer_id"`
	BusinessID  uuid.UUID `json:"business_id"`
	Points      int64     `json:"points"`
	TotalEarned int64     `json:"total_earned"`
	TotalSpent  int64     `json:"total_spent"`
}

func toAccountResponse(a models.LoyaltyAccount) accountResponse {
	return accountResponse{
		CustomerID:  a.CustomerID,
		BusinessID:  a.BusinessID,
		Points:      a.PointsBalance,
		TotalEarned: a.TotalEarned,
		TotalSpent:  a.TotalSpent,
	}
}

// Called by the visit verification flow to credit points for a verified visit
func handleEarn(ledgerService ledgerService, l logger.Logger) http.Handler {
	type request struct {
		CustomerID  uuid.UUID  `json:"customer_id" validate:"required"`
		BusinessID  uuid.UUID  `json:"business_id" validate:"required"`
		Points      int64      `json:"points" validate:"required,gt=0"`
		Description string     `json:"description"`
		ReferenceID *uuid.UUID `json:"reference_id"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		earn, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		account, err := ledgerService.ApplyDelta(r.Context(), earn.CustomerID, earn.BusinessID, earn.Points, earn.Description, earn.ReferenceID)

		switch {
		case err == nil:
			render.JSON(w, toAccountResponse(account))
		case errors.Is(err, apperrors.ErrAmountInvalid):
			render.ServiceError(w, "Invalid points amount", http.StatusUnprocessableEntity)
		default:
			l.Error("Failed to credit points", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// Operator correction, signed. The manual path for refund decisions.
func handleAdjust(ledgerService ledgerService, l logger.Logger) http.Handler {
	type request struct {
		CustomerID  uuid.UUID  `json:"customer_id" validate:"required"`
		BusinessID  uuid.UUID  `json:"business_id" validate:"required"`
		Points      int64      `json:"points" validate:"required"`
		Description string     `json:"description" validate:"required"`
		ReferenceID *uuid.UUID `json:"reference_id"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		adjust, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		account, err := ledgerService.Adjust(r.Context(), adjust.CustomerID, adjust.BusinessID, adjust.Points, adjust.Description, adjust.ReferenceID)

		switch {
		case err == nil:
			render.JSON(w, toAccountResponse(account))
		case errors.Is(err, apperrors.ErrInsufficientBalance):
			render.ServiceError(w, "Insufficient points balance", http.StatusPaymentRequired)
		case errors.Is(err, apperrors.ErrAmountInvalid):
			render.ServiceError(w, "Invalid points amount", http.StatusUnprocessableEntity)
		default:
			l.Error("Failed to adjust points", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleBalance(queryService queryService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customerID, ok := uuidParam(r, "customer_id")
		if !ok {
			render.ServiceError(w, "Invalid customer_id", http.StatusBadRequest)
			return
		}
		businessID, ok := uuidParam(r, "business_id")
		if !ok {
			render.ServiceError(w, "Invalid business_id", http.StatusBadRequest)
			return
		}

		balance, err := queryService.Balance(r.Context(), customerID, businessID)

		switch {
		case err == nil:
			render.JSON(w, balance)
		case errors.Is(err, apperrors.ErrAccountNotFound):
			render.ServiceError(w, "Account not found", http.StatusNotFound)
		default:
			l.Error("Failed to get balance", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListTransactions(queryService queryService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customerID, ok := uuidParam(r, "customer_id")
		if !ok {
			render.ServiceError(w, "Invalid customer_id", http.StatusBadRequest)
			return
		}
		businessID, ok := optionalUUIDParam(r, "business_id")
		if !ok {
			render.ServiceError(w, "Invalid business_id", http.StatusBadRequest)
			return
		}
		limit, ok := intParam(r, "limit")
		if !ok {
			render.ServiceError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		offset, ok := intParam(r, "offset")
		if !ok {
			render.ServiceError(w, "Invalid offset", http.StatusBadRequest)
			return
		}

		transactions, err := queryService.History(r.Context(), customerID, repository.ListTransactionsOpts{
			BusinessID: businessID,
			Limit:      limit,
			Offset:     offset,
		})

		switch err {
		case nil:
			render.JSON(w, transactions)
		default:
			l.Error("Failed to list transactions", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
