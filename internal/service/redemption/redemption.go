package redemption

import (
	"context"
	"errors"
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
	// Redemption window, fixed at creation time
	defaultTTL = 30 * 24 * time.Hour

	// Attempts to commit a redemption before giving up on code collisions,
	// with a fresh code each attempt
	defaultCreateAttempts = 5

	defaultListLimit = 50
	maxListLimit     = 500
)

// pointsLedger is the one and only way the engine touches balances
type pointsLedger interface {
	ApplyDeltaIn(ctx context.Context, store repository.Storage, customerID uuid.UUID, businessID uuid.UUID, points int64, description string, referenceID *uuid.UUID) (models.LoyaltyAccount, error)
}

type Config struct {
	// Zero means the 30 day default
	TTL time.Duration

	CreateAttempts int
}

// Service issues single-use, time-limited redemption codes against a points
// debit and settles each of them exactly once.
type Service struct {
	storage repository.Storage
	ledger  pointsLedger
	logger  logger.Logger

	ttl            time.Duration
	createAttempts int
}

func NewService(c Config, storage repository.Storage, ledger pointsLedger, l logger.Logger) *Service {
	if c.TTL == 0 {
		c.TTL = defaultTTL
	}
	if c.CreateAttempts <= 0 {
		c.CreateAttempts = defaultCreateAttempts
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{
		storage:        storage,
		ledger:         ledger,
		logger:         l,
		ttl:            c.TTL,
		createAttempts: c.CreateAttempts,
	}
}

// Create debits the points and opens a pending redemption as one logical
// unit: the spend transaction references the redemption id, and neither the
// debit nor the redemption row can commit without the other. On
// apperrors.ErrInsufficientBalance nothing is written at all.
func (s *Service) Create(ctx context.Context, customerID uuid.UUID, businessID uuid.UUID, campaignID uuid.UUID, points int64) (models.RewardRedemption, error) {
	var created models.RewardRedemption

	if points <= 0 {
		return created, apperrors.ErrAmountInvalid
	}

	var err error
	for attempt := 0; attempt < s.createAttempts; attempt++ {
		created, err = s.tryCreate(ctx, customerID, businessID, campaignID, points)

		switch {
		case err == nil:
			return created, nil
		case errors.Is(err, apperrors.ErrCodeTaken):
			s.logger.Warn("Redemption code collision, regenerating", "attempt", attempt)
		default:
			return created, err
		}
	}

	return created, fmt.Errorf("can't create redemption after %d attempts: %w", s.createAttempts, err)
}

func (s *Service) tryCreate(ctx context.Context, customerID uuid.UUID, businessID uuid.UUID, campaignID uuid.UUID, points int64) (models.RewardRedemption, error) {
	var created models.RewardRedemption

	code, err := NewCode()
	if err != nil {
		return created, err
	}

	id := uuid.New()
	now := time.Now().UTC()

	// The whole logical unit is replayed on transient failures: a failed
	// attempt commits nothing, so the same code is still free to reuse
	err = retry.Transient(ctx, s.logger, func() error {
		return s.storage.InTx(ctx, func(store repository.Storage) error {
			_, err := s.ledger.ApplyDeltaIn(ctx, store, customerID, businessID, -points, "reward redemption", &id)
			if err != nil {
				return err
			}

			created, err = store.Redemption().Create(ctx, models.RewardRedemption{
				ID:          id,
				CustomerID:  customerID,
				BusinessID:  businessID,
				CampaignID:  campaignID,
				PointsSpent: points,
				Status:      models.RedemptionPending,
				Code:        code,
				CreatedAt:   now,
				ExpiresAt:   now.Add(s.ttl),
			})

			return err
		})
	})

	return created, err
}

// VerifyCode resolves a scanned code to its pending, unexpired redemption.
// Expired, resolved and unknown codes are all apperrors.ErrRedemptionNotFound:
// a scanning customer can't probe what state a code is in.
func (s *Service) VerifyCode(ctx context.Context, code string) (models.RewardRedemption, error) {
	var redemption models.RewardRedemption

	err := retry.Transient(ctx, s.logger, func() error {
		var err error
		redemption, err = s.storage.Redemption().GetByCode(ctx, code)
		return err
	})
	if err != nil {
		return redemption, err
	}

	now := time.Now().UTC()

	if redemption.DueToExpire(now) {
		s.lazyExpire(ctx, redemption.ID, now)
		return models.RewardRedemption{}, apperrors.ErrRedemptionNotFound
	}

	if redemption.Status != models.RedemptionPending {
		return models.RewardRedemption{}, apperrors.ErrRedemptionNotFound
	}

	return redemption, nil
}

// Approve settles a pending redemption before its window closes.
// Exactly one of any concurrent approvals wins, the rest get
// apperrors.ErrInvalidState. The balance is untouched: points were spent at
// creation time.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (models.RewardRedemption, error) {
	return s.resolve(ctx, id, models.RedemptionApproved)
}

// Reject declines a pending redemption. The points stay spent: there is no
// automatic refund on rejection, corrections go through the ledger's adjust
// operation.
func (s *Service) Reject(ctx context.Context, id uuid.UUID) (models.RewardRedemption, error) {
	return s.resolve(ctx, id, models.RedemptionRejected)
}

func (s *Service) resolve(ctx context.Context, id uuid.UUID, toStatus models.Status) (models.RewardRedemption, error) {
	now := time.Now().UTC()

	var redemption models.RewardRedemption
	err := retry.Transient(ctx, s.logger, func() error {
		var err error
		redemption, err = s.storage.Redemption().TransitionFromPending(ctx, id, toStatus, now)
		return err
	})
	if err == nil {
		return redemption, nil
	}
	if !errors.Is(err, apperrors.ErrRedemptionNotFound) {
		return redemption, err
	}

	// The swap matched no row: unknown id, lost race, closed window or
	// already terminal. Look at the record to answer which.
	var current models.RewardRedemption
	err = retry.Transient(ctx, s.logger, func() error {
		var err error
		current, err = s.storage.Redemption().GetByID(ctx, id)
		return err
	})
	if err != nil {
		return models.RewardRedemption{}, err
	}

	switch {
	case current.DueToExpire(now):
		s.lazyExpire(ctx, id, now)
		current.Status = models.RedemptionExpired
		return current, apperrors.ErrRedemptionExpired
	case current.Status == models.RedemptionExpired:
		return current, apperrors.ErrRedemptionExpired
	default:
		return current, apperrors.ErrInvalidState
	}
}

type ListOpts = repository.ListRedemptionsOpts

// List returns redemptions newest first, scoped per customer or business and
// optionally filtered by status. Due pending rows are flipped to expired
// before they are returned.
func (s *Service) List(ctx context.Context, opts ListOpts) ([]models.RewardRedemption, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}
	if opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	now := time.Now().UTC()

	// Opportunistic sweep, same terminal state the background sweeper
	// converges to. A failure here must not fail the read.
	if _, err := s.storage.Redemption().ExpireDue(ctx, now, 0); err != nil {
		s.logger.Warn("Lazy expiry failed on list", "error", err)
	}

	var redemptions []models.RewardRedemption
	err := retry.Transient(ctx, s.logger, func() error {
		var err error
		redemptions, err = s.storage.Redemption().List(ctx, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	// The sweep may have failed or raced, never hand out a due row as pending
	result := redemptions[:0]
	for _, r := range redemptions {
		if r.DueToExpire(now) {
			r.Status = models.RedemptionExpired
			if opts.Status != "" && opts.Status != models.RedemptionExpired {
				continue
			}
		}
		result = append(result, r)
	}

	return result, nil
}

// lazyExpire flips one due redemption to expired. Losing the race to another
// reader or the sweeper is fine, everybody converges on the same state.
func (s *Service) lazyExpire(ctx context.Context, id uuid.UUID, now time.Time) {
	_, err := s.storage.Redemption().TransitionFromPending(ctx, id, models.RedemptionExpired, now)
	if err != nil && !errors.Is(err, apperrors.ErrRedemptionNotFound) {
		s.logger.Warn("Lazy expiry failed", "redemption_id", id, "error", err)
	}
}
