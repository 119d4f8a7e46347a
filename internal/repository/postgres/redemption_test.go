package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/perkhub/loyalty/internal/apperrors"
	"github.com/perkhub/loyalty/internal/models"
	"github.com/perkhub/loyalty/internal/repository"
	"github.com/perkhub/loyalty/internal/testutil"
)

func TestRedemption(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	inTx := func(t *testing.T, outerTx DBTX, fn func(pgx.Tx, repository.Storage)) {
		testutil.InTx(outerTx, t, func(innerTx pgx.Tx) {
			storage := NewStorage(innerTx)
			fn(innerTx, storage)
		})
	}

	now := time.Now().UTC().Truncate(time.Microsecond)

	newRedemption := func(code string, expiresAt time.Time) models.RewardRedemption {
		return models.RewardRedemption{
			ID:          uuid.New(),
			CustomerID:  uuid.New(),
			BusinessID:  uuid.New(),
			CampaignID:  uuid.New(),
			PointsSpent: 60,
			Status:      models.RedemptionPending,
			Code:        code,
			CreatedAt:   now,
			ExpiresAt:   expiresAt,
		}
	}

	t.Run("Create", func(t *testing.T) {
		t.Run("create ok", func(t *testing.T) {
			inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
				redemption := newRedemption("CODE-1", now.Add(time.Hour))

				created, err := storage.Redemption().Create(t.Context(), redemption)

				require.NoError(t, err, "redemption has to be created ok")
				require.Equal(t, redemption.ID, created.ID)
				require.Equal(t, models.RedemptionPending, created.Status)
				require.Equal(t, "CODE-1", created.Code)
				require.Nil(t, created.RedeemedAt, "redeemed at should not be set on creation")
			})
		})

		t.Run("duplicate code fails", func(t *testing.T) {
			inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
				_, err := storage.Redemption().Create(t.Context(), newRedemption("CODE-1", now.Add(time.Hour)))
				require.NoError(t, err, "first redemption creation should be ok")

				_, err = storage.Redemption().Create(t.Context(), newRedemption("CODE-1", now.Add(time.Hour)))

				require.Error(t, err, "creating redemption with taken code should fail")
				require.ErrorIs(t, err, apperrors.ErrCodeTaken, "should return well known error")
			})
		})
	})

	t.Run("Get", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			redemption, err := storage.Redemption().Create(t.Context(), newRedemption("CODE-1", now.Add(time.Hour)))
			require.NoError(t, err)

			t.Run("by id", func(t *testing.T) {
				got, err := storage.Redemption().GetByID(t.Context(), redemption.ID)

				require.NoError(t, err)
				require.Equal(t, redemption.ID, got.ID)
			})

			t.Run("by code", func(t *testing.T) {
				got, err := storage.Redemption().GetByCode(t.Context(), "CODE-1")

				require.NoError(t, err)
				require.Equal(t, redemption.ID, got.ID)
			})

			t.Run("unknown id", func(t *testing.T) {
				_, err := storage.Redemption().GetByID(t.Context(), uuid.New())

				require.ErrorIs(t, err, apperrors.ErrRedemptionNotFound)
			})

			t.Run("unknown code", func(t *testing.T) {
				_, err := storage.Redemption().GetByCode(t.Context(), "NO-SUCH-CODE")

				require.ErrorIs(t, err, apperrors.ErrRedemptionNotFound)
			})
		})
	})

	t.Run("TransitionFromPending", func(t *testing.T) {
		t.Run("approve pending", func(t *testing.T) {
			inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
				redemption, err := storage.Redemption().Create(t.Context(), newRedemption("CODE-1", now.Add(time.Hour)))
				require.NoError(t, err)

				got, err := storage.Redemption().TransitionFromPending(t.Context(), redemption.ID, models.RedemptionApproved, now)

				require.NoError(t, err, "approving pending redemption should not fail")
				require.Equal(t, models.RedemptionApproved, got.Status)
				require.NotNil(t, got.RedeemedAt, "approval should set redeemed at")
				require.Equal(t, now, got.RedeemedAt.UTC())
			})
		})

		t.Run("reject pending keeps redeemed at empty", func(t *testing.T) {
			inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
				redemption, err := storage.Redemption().Create(t.Context(), newRedemption("CODE-1", now.Add(time.Hour)))
				require.NoError(t, err)

				got, err := storage.Redemption().TransitionFromPending(t.Context(), redemption.ID, models.RedemptionRejected, now)

				require.NoError(t, err)
				require.Equal(t, models.RedemptionRejected, got.Status)
				require.Nil(t, got.RedeemedAt)
			})
		})

		t.Run("second transition misses", func(t *testing.T) {
			inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
				redemption, err := storage.Redemption().Create(t.Context(), newRedemption("CODE-1", now.Add(time.Hour)))
				require.NoError(t, err)

				_, err = storage.Redemption().TransitionFromPending(t.Context(), redemption.ID, models.RedemptionApproved, now)
				require.NoError(t, err)

				_, err = storage.Redemption().TransitionFromPending(t.Context(), redemption.ID, models.RedemptionRejected, now)

				require.Error(t, err, "transition out of non-pending status should miss")
				require.ErrorIs(t, err, apperrors.ErrRedemptionNotFound)
			})
		})

		t.Run("approve past expiry misses", func(t *testing.T) {
			inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
				redemption, err := storage.Redemption().Create(t.Context(), newRedemption("CODE-1", now.Add(-time.Minute)))
				require.NoError(t, err)

				_, err = storage.Redemption().TransitionFromPending(t.Context(), redemption.ID, models.RedemptionApproved, now)

				require.ErrorIs(t, err, apperrors.ErrRedemptionNotFound, "approving past expiry should miss")
			})
		})

		t.Run("expire flip requires closed window", func(t *testing.T) {
			inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
				fresh, err := storage.Redemption().Create(t.Context(), newRedemption("CODE-1", now.Add(time.Hour)))
				require.NoError(t, err)
				due, err := storage.Redemption().Create(t.Context(), newRedemption("CODE-2", now.Add(-time.Minute)))
				require.NoError(t, err)

				_, err = storage.Redemption().TransitionFromPending(t.Context(), fresh.ID, models.RedemptionExpired, now)
				require.ErrorIs(t, err, apperrors.ErrRedemptionNotFound, "expiring fresh redemption should miss")

				got, err := storage.Redemption().TransitionFromPending(t.Context(), due.ID, models.RedemptionExpired, now)
				require.NoError(t, err, "expiring due redemption should not fail")
				require.Equal(t, models.RedemptionExpired, got.Status)
				require.Nil(t, got.RedeemedAt)
			})
		})
	})

	t.Run("ExpireDue", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			due, err := storage.Redemption().Create(t.Context(), newRedemption("CODE-1", now.Add(-time.Minute)))
			require.NoError(t, err)
			fresh, err := storage.Redemption().Create(t.Context(), newRedemption("CODE-2", now.Add(time.Hour)))
			require.NoError(t, err)

			expired, err := storage.Redemption().ExpireDue(t.Context(), now, 0)

			require.NoError(t, err, "expiring due redemptions should not fail")
			require.Equal(t, int64(1), expired, "only the due redemption should be expired")

			got, err := storage.Redemption().GetByID(t.Context(), due.ID)
			require.NoError(t, err)
			require.Equal(t, models.RedemptionExpired, got.Status)

			got, err = storage.Redemption().GetByID(t.Context(), fresh.ID)
			require.NoError(t, err)
			require.Equal(t, models.RedemptionPending, got.Status)

			// Idempotent: the second run is a no-op
			expired, err = storage.Redemption().ExpireDue(t.Context(), now, 0)
			require.NoError(t, err)
			require.Zero(t, expired, "rerunning the sweep should change nothing")
		})
	})

	t.Run("List", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			customerID := uuid.New()
			businessID := uuid.New()

			first := newRedemption("CODE-1", now.Add(time.Hour))
			first.CustomerID = customerID
			first.BusinessID = businessID
			first.CreatedAt = now.Add(-time.Hour)

			second := newRedemption("CODE-2", now.Add(time.Hour))
			second.CustomerID = customerID
			second.BusinessID = businessID
			second.Status = models.RedemptionApproved

			other := newRedemption("CODE-3", now.Add(time.Hour))

			for _, r := range []models.RewardRedemption{first, second, other} {
				_, err := storage.Redemption().Create(t.Context(), r)
				require.NoError(t, err)
			}

			t.Run("by customer newest first", func(t *testing.T) {
				redemptions, err := storage.Redemption().List(t.Context(), repository.ListRedemptionsOpts{CustomerID: &customerID})

				require.NoError(t, err)
				require.Len(t, redemptions, 2)
				require.Equal(t, second.ID, redemptions[0].ID, "first should be the most recent")
				require.Equal(t, first.ID, redemptions[1].ID)
			})

			t.Run("by business with status filter", func(t *testing.T) {
				redemptions, err := storage.Redemption().List(t.Context(), repository.ListRedemptionsOpts{
					BusinessID: &businessID,
					Status:     models.RedemptionApproved,
				})

				require.NoError(t, err)
				require.Len(t, redemptions, 1)
				require.Equal(t, second.ID, redemptions[0].ID)
			})

			t.Run("empty for unknown customer", func(t *testing.T) {
				unknown := uuid.New()
				redemptions, err := storage.Redemption().List(t.Context(), repository.ListRedemptionsOpts{CustomerID: &unknown})

				require.NoError(t, err)
				require.Empty(t, redemptions)
			})
		})
	})
}
