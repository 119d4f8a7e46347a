package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/perkhub/loyalty/internal/apperrors"
	"github.com/perkhub/loyalty/internal/models"
	"github.com/perkhub/loyalty/internal/repository"
)

type RedemptionRepo struct {
	DB DBTX
}

const createRedemption = `-- name: CreateRedemption
INSERT INTO reward_redemptions (id, customer_id, business_id, campaign_id, points_spent, status, code, created_at, redeemed_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, customer_id, business_id, campaign_id, points_spent, status, code, created_at, redeemed_at, expires_at
`

func (r *RedemptionRepo) Create(ctx context.Context, redemption models.RewardRedemption) (models.RewardRedemption, error) {
	rows, _ := r.DB.Query(ctx, createRedemption,
		redemption.ID,
		redemption.CustomerID,
		redemption.BusinessID,
		redemption.CampaignID,
		redemption.PointsSpent,
		redemption.Status,
		redemption.Code,
		redemption.CreatedAt,
		redemption.RedeemedAt,
		redemption.ExpiresAt,
	)
	created, err := pgx.CollectOneRow(rows, rowToRedemption)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return created, apperrors.ErrCodeTaken
		}

		return created, wrapDBError(err)
	}

	return created, nil
}

const getRedemptionByID = `-- name: GetRedemptionByID
SELECT id, customer_id, business_id, campaign_id, points_spent, status, code, created_at, redeemed_at, expires_at
FROM reward_redemptions
WHERE id = $1
`

func (r *RedemptionRepo) GetByID(ctx context.Context, id uuid.UUID) (models.RewardRedemption, error) {
	rows, _ := r.DB.Query(ctx, getRedemptionByID, id)
	return collectRedemption(rows)
}

const getRedemptionByCode = `-- name: GetRedemptionByCode
SELECT id, customer_id, business_id, campaign_id, points_spent, status, code, created_at, redeemed_at, expires_at
FROM reward_redemptions
WHERE code = $1
`

func (r *RedemptionRepo) GetByCode(ctx context.Context, code string) (models.RewardRedemption, error) {
	rows, _ := r.DB.Query(ctx, getRedemptionByCode, code)
	return collectRedemption(rows)
}

// Single-statement compare-and-swap out of pending. The time condition rides
// on the UPDATE: approve/reject require the window still open, the expired
// flip requires it closed. Concurrent transitions on one id race on
// status = 'pending', exactly one can win.
const transitionFromPending = `-- name: TransitionFromPending
UPDATE reward_redemptions
SET status      = $2,
    redeemed_at = CASE WHEN $2 = 'approved' THEN $3 ELSE redeemed_at END
WHERE id = $1
  AND status = 'pending'
  AND CASE WHEN $2 = 'expired' THEN expires_at <= $3 ELSE expires_at > $3 END
RETURNING id, customer_id, business_id, campaign_id, points_spent, status, code, created_at, redeemed_at, expires_at
`

func (r *RedemptionRepo) TransitionFromPending(ctx context.Context, id uuid.UUID, toStatus models.Status, now time.Time) (models.RewardRedemption, error) {
	rows, _ := r.DB.Query(ctx, transitionFromPending, id, toStatus, now)
	return collectRedemption(rows)
}

const expireDue = `-- name: ExpireDue
WITH due AS (
	SELECT id FROM reward_redemptions
	WHERE status = 'pending' AND expires_at <= $1
	ORDER BY expires_at
	LIMIT NULLIF($2::bigint, 0)
	FOR UPDATE SKIP LOCKED
)
UPDATE reward_redemptions r
SET status = 'expired'
FROM due
WHERE r.id = due.id
`

func (r *RedemptionRepo) ExpireDue(ctx context.Context, now time.Time, limit int) (int64, error) {
	tag, err := r.DB.Exec(ctx, expireDue, now, limit)
	if err != nil {
		return 0, wrapDBError(err)
	}

	return tag.RowsAffected(), nil
}

const listRedemptions = `-- name: ListRedemptions
SELECT id, customer_id, business_id, campaign_id, points_spent, status, code, created_at, redeemed_at, expires_at
FROM reward_redemptions
WHERE ($1::uuid IS NULL OR customer_id = $1)
  AND ($2::uuid IS NULL OR business_id = $2)
  AND ($3::text = '' OR status = $3)
ORDER BY created_at DESC, id
LIMIT NULLIF($4::bigint, 0) OFFSET $5
`

func (r *RedemptionRepo) List(ctx context.Context, opts repository.ListRedemptionsOpts) ([]models.RewardRedemption, error) {
	rows, _ := r.DB.Query(ctx, listRedemptions, opts.CustomerID, opts.BusinessID, opts.Status, opts.Limit, opts.Offset)
	redemptions, err := pgx.CollectRows(rows, rowToRedemption)

	if err != nil {
		return nil, wrapDBError(err)
	}

	return redemptions, nil
}

func collectRedemption(rows pgx.Rows) (models.RewardRedemption, error) {
	redemption, err := pgx.CollectOneRow(rows, rowToRedemption)

	switch {
	case err == nil:
		return redemption, nil
	case errors.Is(err, pgx.ErrNoRows):
		return redemption, apperrors.ErrRedemptionNotFound
	default:
		return redemption, wrapDBError(err)
	}
}

func rowToRedemption(row pgx.CollectableRow) (models.RewardRedemption, error) {
	var r models.RewardRedemption
	err := row.Scan(&r.ID, &r.CustomerID, &r.BusinessID, &r.CampaignID, &r.PointsSpent, &r.Status, &r.Code, &r.CreatedAt, &r.RedeemedAt, &r.ExpiresAt)
	return r, err
}
