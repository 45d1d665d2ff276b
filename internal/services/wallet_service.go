package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/sellerdesk/api/internal/domain"
	"github.com/sellerdesk/api/internal/repositories"
)

// Sentinel errors returned by the wallet service.
var (
	ErrWalletInvalidInput = errors.New("wallet: invalid input")
	ErrWalletUnavailable  = errors.New("wallet: storage unavailable")
)

// WalletServiceDeps wires the sources the wallet aggregation reads from.
type WalletServiceDeps struct {
	Orders  repositories.OrderRepository
	Payouts repositories.PayoutTransactionRepository
	Wallets repositories.WalletRepository
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type walletService struct {
	orders  repositories.OrderRepository
	payouts repositories.PayoutTransactionRepository
	wallets repositories.WalletRepository
	clock   func() time.Time
	logger  func(ctx context.Context, event string, fields map[string]any)
}

// NewWalletService constructs the derived wallet view service.
func NewWalletService(deps WalletServiceDeps) (WalletService, error) {
	if deps.Orders == nil {
		return nil, errors.New("wallet service requires order repository")
	}
	if deps.Payouts == nil {
		return nil, errors.New("wallet service requires payout repository")
	}
	if deps.Wallets == nil {
		return nil, errors.New("wallet service requires wallet repository")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &walletService{
		orders:  deps.Orders,
		payouts: deps.Payouts,
		wallets: deps.Wallets,
		clock:   func() time.Time { return clock().UTC() },
		logger:  logger,
	}, nil
}

// GetWallet refreshes and returns the wallet. The stored document is only a
// cache of the aggregation, so reads always recompute rather than trust it.
func (s *walletService) GetWallet(ctx context.Context, sellerID string) (SellerWallet, error) {
	return s.RefreshWallet(ctx, sellerID)
}

// RefreshWallet rebuilds the wallet from the order and payout collections and
// overwrites the stored document. Every figure is recomputed from scratch;
// nothing is incremented in place, so a missed event can never leave the
// wallet permanently skewed.
func (s *walletService) RefreshWallet(ctx context.Context, sellerID string) (SellerWallet, error) {
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return SellerWallet{}, fmt.Errorf("%w: seller id is required", ErrWalletInvalidInput)
	}

	orders, err := s.orders.ListEarningsBySeller(ctx, sellerID)
	if err != nil {
		return SellerWallet{}, fmt.Errorf("list earnings: %w", mapWalletRepositoryError(err))
	}
	completed, err := s.payouts.ListCompletedBySeller(ctx, sellerID)
	if err != nil {
		return SellerWallet{}, fmt.Errorf("list completed payouts: %w", mapWalletRepositoryError(err))
	}

	now := s.clock()
	wallet := aggregateWallet(sellerID, orders, completed, now)

	if err := s.wallets.Save(ctx, wallet); err != nil {
		return SellerWallet{}, fmt.Errorf("save wallet: %w", mapWalletRepositoryError(err))
	}
	s.logger(ctx, "wallet.refreshed", map[string]any{
		"sellerId":       sellerID,
		"pendingOrders":  wallet.PendingOrders,
		"upcomingOrders": wallet.UpcomingOrders,
		"paidOrders":     wallet.PaidOrders,
	})
	return wallet, nil
}

// aggregateWallet buckets delivered orders with a positive net earning by
// payout state, mirroring the claimable set. Pending covers earnings still
// inside the return window, upcoming covers claimable earnings, and
// completed sums the disbursed batches. Returned or refunded orders and
// negative nets fall out of every bucket; orders claimed by an in-flight
// payout sit in none of them until the batch settles or fails.
func aggregateWallet(sellerID string, orders []domain.Order, completed []domain.PayoutTransaction, now time.Time) SellerWallet {
	wallet := SellerWallet{
		SellerID:        sellerID,
		PendingAmount:   decimal.Zero,
		UpcomingPayout:  decimal.Zero,
		CompletedPayout: decimal.Zero,
		TotalEarnings:   decimal.Zero,
		RefreshedAt:     now,
	}

	var nextPayoutAt *time.Time
	for _, order := range orders {
		if order.Status != domain.OrderStatusDelivered || order.Earnings == nil {
			continue
		}
		net := order.Earnings.NetSellerEarning
		if !net.IsPositive() {
			continue
		}
		switch order.Payout.Status {
		case domain.PayoutStatusHeld:
			if order.Payout.EligibleAt != nil && now.Before(*order.Payout.EligibleAt) {
				wallet.PendingAmount = wallet.PendingAmount.Add(net)
				wallet.PendingOrders++
				if nextPayoutAt == nil || order.Payout.EligibleAt.Before(*nextPayoutAt) {
					eligibleAt := *order.Payout.EligibleAt
					nextPayoutAt = &eligibleAt
				}
				continue
			}
			wallet.UpcomingPayout = wallet.UpcomingPayout.Add(net)
			wallet.UpcomingOrders++
		case domain.PayoutStatusReady, domain.PayoutStatusFailed:
			wallet.UpcomingPayout = wallet.UpcomingPayout.Add(net)
			wallet.UpcomingOrders++
		case domain.PayoutStatusPaid:
			wallet.PaidOrders++
		}
	}

	var lastPayoutAt *time.Time
	for _, txn := range completed {
		wallet.CompletedPayout = wallet.CompletedPayout.Add(txn.Amount)
		if txn.CompletedAt == nil {
			continue
		}
		if lastPayoutAt == nil || txn.CompletedAt.After(*lastPayoutAt) {
			completedAt := *txn.CompletedAt
			lastPayoutAt = &completedAt
		}
	}

	wallet.TotalEarnings = wallet.PendingAmount.Add(wallet.UpcomingPayout).Add(wallet.CompletedPayout)
	wallet.NextPayoutAt = nextPayoutAt
	wallet.LastPayoutAt = lastPayoutAt
	return wallet
}

func mapWalletRepositoryError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
		return fmt.Errorf("%w: %v", ErrWalletUnavailable, err)
	}
	return err
}
