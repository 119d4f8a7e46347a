// Package query is the read side: projections of balances, transaction
// history and redemption lists for UI consumption. It never mutates and
// holds no business rules beyond filtering and sorting.
package query

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/perkhub/loyalty/internal/models"
	"github.com/perkhub/loyalty/internal/repository"
)

type accountGetter interface {
	GetBalance(ctx context.Context, customerID uuid.UUID, businessID uuid.UUID) (models.LoyaltyAccount, error)
	ListTransactions(ctx context.Context, customerID uuid.UUID, opts repository.ListTransactionsOpts) ([]models.LedgerTransaction, error)
}

type redemptionLister interface {
	List(ctx context.Context, opts repository.ListRedemptionsOpts) ([]models.RewardRedemption, error)
}

type Service struct {
	ledger      accountGetter
	redemptions redemptionLister
}

func NewService(ledger accountGetter, redemptions redemptionLister) *Service {
	return &Service{
		ledger:      ledger,
		redemptions: redemptions,
	}
}

type BalanceView struct {
	CustomerID uuid.UUID `json:"customer_id"`
	BusinessID uuid.UUID `json:"business_id"`
	Points     int64     `json:"points"`
	Earned     int64     `json:"total_earned"`
	Spent      int64     `json:"total_spent"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type TransactionView struct {
	ID          uuid.UUID   `json:"id"`
	Kind        models.Kind `json:"kind"`
	Points      int64       `json:"points"`
	Description string      `json:"description,omitempty"`
	ReferenceID *uuid.UUID  `json:"reference_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

type RedemptionView struct {
	ID          uuid.UUID     `json:"id"`
	CustomerID  uuid.UUID     `json:"customer_id"`
	BusinessID  uuid.UUID     `json:"business_id"`
	CampaignID  uuid.UUID     `json:"campaign_id"`
	PointsSpent int64         `json:"points_spent"`
	Status      models.Status `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	RedeemedAt  *time.Time    `json:"redeemed_at,omitempty"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

// Balance projects the current account state of the (customer, business) pair
func (s *Service) Balance(ctx context.Context, customerID uuid.UUID, businessID uuid.UUID) (BalanceView, error) {
	account, err := s.ledger.GetBalance(ctx, customerID, businessID)
	if err != nil {
		return BalanceView{}, err
	}

	return BalanceView{
		CustomerID: account.CustomerID,
		BusinessID: account.BusinessID,
		Points:     account.PointsBalance,
		Earned:     account.TotalEarned,
		Spent:      account.TotalSpent,
		UpdatedAt:  account.UpdatedAt,
	}, nil
}

// History projects the customer's transactions newest first. The signed
// points column shows the balance effect directly, the way a statement would.
func (s *Service) History(ctx context.Context, customerID uuid.UUID, opts repository.ListTransactionsOpts) ([]TransactionView, error) {
	transactions, err := s.ledger.ListTransactions(ctx, customerID, opts)
	if err != nil {
		return nil, err
	}

	views := make([]TransactionView, 0, len(transactions))
	for _, t := range transactions {
		views = append(views, TransactionView{
			ID:          t.ID,
			Kind:        t.Kind,
			Points:      t.Signed(),
			Description: t.Description,
			ReferenceID: t.ReferenceID,
			CreatedAt:   t.CreatedAt,
		})
	}

	return views, nil
}

// Redemptions projects redemption lists filtered by customer or business and
// status. The single-use code is deliberately absent from the view: it is
// shown once, to its customer, at creation time.
func (s *Service) Redemptions(ctx context.Context, opts repository.ListRedemptionsOpts) ([]RedemptionView, error) {
	redemptions, err := s.redemptions.List(ctx, opts)
	if err != nil {
		return nil, err
	}

	views := make([]RedemptionView, 0, len(redemptions))
	for _, r := range redemptions {
		views = append(views, RedemptionView{
			ID:          r.ID,
			CustomerID:  r.CustomerID,
			BusinessID:  r.BusinessID,
			CampaignID:  r.CampaignID,
			PointsSpent: r.PointsSpent,
			Status:      r.Status,
			CreatedAt:   r.CreatedAt,
			RedeemedAt:  r.RedeemedAt,
			ExpiresAt:   r.ExpiresAt,
		})
	}

	return views, nil
}
