package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/perkhub/loyalty/internal/apperrors"
	"github.com/perkhub/loyalty/internal/handlers/render"
	"github.com/perkhub/loyalty/internal/logger"
	"github.com/perkhub/loyalty/internal/models"
	"github.com/perkhub/loyalty/internal/repository"
)

type redemptionResponse struct {
	ID          uuid.UUID     `json:"id"`
	CustomerID  uuid.UUID     `json:"customer_id"`
	BusinessID  uuid.UUID     `json:"business_id"`
	CampaignID  uuid.UUID     `json:"campaign_id"`
	PointsSpent int64         `json:"points_spent"`
	Status      models.Status `json:"status"`
	Code        string        `json:"code,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	RedeemedAt  *time.Time    `json:"redeemed_at,omitempty"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

func toRedemptionResponse(r models.RewardRedemption, withCode bool) redemptionResponse {
	res := redemptionResponse{
		ID:          r.ID,
		CustomerID:  r.CustomerID,
		BusinessID:  r.BusinessID,
		CampaignID:  r.CampaignID,
		PointsSpent: r.PointsSpent,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		RedeemedAt:  r.RedeemedAt,
		ExpiresAt:   r.ExpiresAt,
	}
	if withCode {
		res.Code = r.Code
	}

	return res
}

// Called by the campaign reward flow when a customer claims a reward.
// The code in the response is shown to the customer exactly once.
func handleCreateRedemption(redemptionService redemptionService, l logger.Logger) http.Handler {
	type request struct {
		CustomerID uuid.UUID `json:"customer_id" validate:"required"`
		BusinessID uuid.UUID `json:"business_id" validate:"required"`
		CampaignID uuid.UUID `json:"campaign_id" validate:"required"`
		Points     int64     `json:"points" validate:"required,gt=0"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		redeem, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		redemption, err := redemptionService.Create(r.Context(), redeem.CustomerID, redeem.BusinessID, redeem.CampaignID, redeem.Points)

		switch {
		case err == nil:
			render.JSONWithStatus(w, toRedemptionResponse(redemption, true), http.StatusCreated)
		case errors.Is(err, apperrors.ErrInsufficientBalance):
			render.ServiceError(w, "Insufficient points balance", http.StatusPaymentRequired)
		case errors.Is(err, apperrors.ErrAmountInvalid):
			render.ServiceError(w, "Invalid points amount", http.StatusUnprocessableEntity)
		default:
			l.Error("Failed to create redemption", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// Called by the business scanning UI with a scanned code. Expired, resolved
// and unknown codes all answer 404: a scanner can't probe code state.
func handleVerifyCode(redemptionService redemptionService, l logger.Logger) http.Handler {
	type request struct {
		Code string `json:"code" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verify, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		redemption, err := redemptionService.VerifyCode(r.Context(), verify.Code)

		switch {
		case err == nil:
			render.JSON(w, toRedemptionResponse(redemption, true))
		case errors.Is(err, apperrors.ErrRedemptionNotFound):
			render.ServiceError(w, "Code not found", http.StatusNotFound)
		default:
			l.Error("Failed to verify code", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleApproveRedemption(redemptionService redemptionService, l logger.Logger) http.Handler {
	return resolveRedemption(redemptionService.Approve, "approve", l)
}

func handleRejectRedemption(redemptionService redemptionService, l logger.Logger) http.Handler {
	return resolveRedemption(redemptionService.Reject, "reject", l)
}

func resolveRedemption(resolve func(ctx context.Context, id uuid.UUID) (models.RewardRedemption, error), action string, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Invalid redemption id", http.StatusBadRequest)
			return
		}

		redemption, err := resolve(r.Context(), id)

		switch {
		case err == nil:
			render.JSON(w, toRedemptionResponse(redemption, false))
		case errors.Is(err, apperrors.ErrRedemptionNotFound):
			render.ServiceError(w, "Redemption not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrRedemptionExpired):
			render.ServiceError(w, "Redemption expired", http.StatusGone)
		case errors.Is(err, apperrors.ErrInvalidState):
			render.ServiceError(w, "Redemption already resolved", http.StatusConflict)
		default:
			l.Error("Failed to resolve redemption", "action", action, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListRedemptions(queryService queryService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customerID, ok := optionalUUIDParam(r, "customer_id")
		if !ok {
			render.ServiceError(w, "Invalid customer_id", http.StatusBadRequest)
			return
		}
		businessID, ok := optionalUUIDParam(r, "business_id")
		if !ok {
			render.ServiceError(w, "Invalid business_id", http.StatusBadRequest)
			return
		}
		if customerID == nil && businessID == nil {
			render.ServiceError(w, "Either customer_id or business_id is required", http.StatusBadRequest)
			return
		}

		status := models.Status(r.URL.Query().Get("status"))
		switch status {
		case "", models.RedemptionPending, models.RedemptionApproved, models.RedemptionRejected, models.RedemptionExpired:
		default:
			render.ServiceError(w, "Invalid status", http.StatusBadRequest)
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

		redemptions, err := queryService.Redemptions(r.Context(), repository.ListRedemptionsOpts{
			CustomerID: customerID,
			BusinessID: businessID,
			Status:     status,
			Limit:      limit,
			Offset:     offset,
		})

		switch err {
		case nil:
			render.JSON(w, redemptions)
		default:
			l.Error("Failed to list redemptions", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
