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

// Sentinel errors returned by the payout service.
var (
	ErrPayoutInvalidInput     = errors.New("payout: invalid input")
	ErrPayoutNotFound         = errors.New("payout: not found")
	ErrPayoutInvalidState     = errors.New("payout: invalid state")
	ErrPayoutConflict         = errors.New("payout: conflict")
	ErrPayoutUnavailable      = errors.New("payout: storage unavailable")
	ErrPayoutSellerIneligible = errors.New("payout: seller not eligible")
	ErrPayoutNoEligibleOrders = errors.New("payout: no eligible orders")
	ErrPayoutBelowMinimum     = errors.New("payout: amount below minimum")
)

const payoutsCounterID = "payouts"

// PayoutServiceDeps wires the collaborators of the payout batch service.
type PayoutServiceDeps struct {
	Payouts   repositories.PayoutTransactionRepository
	Orders    repositories.OrderRepository
	Sellers   repositories.SellerRepository
	Counters  repositories.CounterRepository
	Publisher PayoutEventPublisher
	// MinAmount rejects batches whose claimable total falls below it. Zero
	// disables the check.
	MinAmount decimal.Decimal
	Clock     func() time.Time
	IDGen     func() string
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type payoutService struct {
	payouts   repositories.PayoutTransactionRepository
	orders    repositories.OrderRepository
	sellers   repositories.SellerRepository
	counters  repositories.CounterRepository
	publisher PayoutEventPublisher
	minAmount decimal.Decimal
	clock     func() time.Time
	idGen     func() string
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewPayoutService constructs the payout batch service.
func NewPayoutService(deps PayoutServiceDeps) (PayoutService, error) {
	if deps.Payouts == nil {
		return nil, errors.New("payout service requires payout repository")
	}
	if deps.Orders == nil {
		return nil, errors.New("payout service requires order repository")
	}
	if deps.Sellers == nil {
		return nil, errors.New("payout service requires seller repository")
	}
	if deps.Counters == nil {
		return nil, errors.New("payout service requires counter repository")
	}
	if deps.IDGen == nil {
		return nil, errors.New("payout service requires id generator")
	}
	if deps.MinAmount.IsNegative() {
		return nil, errors.New("payout service minimum amount must not be negative")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &payoutService{
		payouts:   deps.Payouts,
		orders:    deps.Orders,
		sellers:   deps.Sellers,
		counters:  deps.Counters,
		publisher: deps.Publisher,
		minAmount: deps.MinAmount,
		clock:     func() time.Time { return clock().UTC() },
		idGen:     deps.IDGen,
		logger:    logger,
	}, nil
}

// RequestPayout opens a payout batch over the seller's claimable earnings.
// The claim is transactional: either the batch is created and every order is
// flipped to a processing payout state, or nothing changes. An order already
// claimed by another batch surfaces as a conflict.
func (s *payoutService) RequestPayout(ctx context.Context, cmd RequestPayoutCommand) (PayoutTransaction, error) {
	sellerID := strings.TrimSpace(cmd.SellerID)
	if sellerID == "" {
		return PayoutTransaction{}, fmt.Errorf("%w: seller id is required", ErrPayoutInvalidInput)
	}

	seller, err := s.sellers.FindByID(ctx, sellerID)
	if err != nil {
		return PayoutTransaction{}, mapPayoutRepositoryError(err)
	}
	if !seller.Active {
		return PayoutTransaction{}, fmt.Errorf("%w: seller %s is inactive", ErrPayoutSellerIneligible, sellerID)
	}
	if seller.BankDetails == nil || !seller.BankDetails.Verified {
		return PayoutTransaction{}, fmt.Errorf("%w: seller %s has no verified disbursal details", ErrPayoutSellerIneligible, sellerID)
	}

	now := s.clock()
	eligible, err := s.collectEligibleOrders(ctx, sellerID, cmd.OrderIDs, now)
	if err != nil {
		return PayoutTransaction{}, err
	}
	if len(eligible) == 0 {
		return PayoutTransaction{}, fmt.Errorf("%w: seller %s has nothing to claim", ErrPayoutNoEligibleOrders, sellerID)
	}

	amount := decimal.Zero
	orderIDs := make([]string, 0, len(eligible))
	breakdown := make([]PayoutOrderLine, 0, len(eligible))
	for _, order := range eligible {
		net := order.Earnings.NetSellerEarning
		amount = amount.Add(net)
		orderIDs = append(orderIDs, order.ID)
		breakdown = append(breakdown, PayoutOrderLine{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			NetEarning:  net,
			DeliveredAt: *order.DeliveredAt,
		})
	}
	if s.minAmount.IsPositive() && amount.LessThan(s.minAmount) {
		return PayoutTransaction{}, fmt.Errorf("%w: %s is below %s", ErrPayoutBelowMinimum, amount.StringFixed(2), s.minAmount.StringFixed(2))
	}

	seq, err := s.counters.Next(ctx, payoutsCounterID, 1)
	if err != nil {
		return PayoutTransaction{}, fmt.Errorf("allocate payout number: %w", mapPayoutRepositoryError(err))
	}

	txn := PayoutTransaction{
		ID:          s.idGen(),
		Number:      fmt.Sprintf("PO-%04d-%06d", now.Year(), seq),
		SellerID:    sellerID,
		OrderIDs:    orderIDs,
		Amount:      amount.Round(2),
		Breakdown:   breakdown,
		Destination: destinationSnapshot(*seller.BankDetails),
		Status:      domain.PayoutTransactionPending,
		CreatedAt:   now,
	}

	result, err := s.payouts.CreateClaim(ctx, repositories.PayoutClaimRequest{Transaction: txn, Now: now})
	if err != nil {
		return PayoutTransaction{}, fmt.Errorf("claim payout: %w", mapPayoutRepositoryError(err))
	}
	s.publishRequested(ctx, result.Transaction)
	return result.Transaction, nil
}

// collectEligibleOrders resolves the claim set. Explicit order IDs must all
// qualify; without them every claimable order for the seller is taken.
func (s *payoutService) collectEligibleOrders(ctx context.Context, sellerID string, orderIDs []string, now time.Time) ([]Order, error) {
	if len(orderIDs) > 0 {
		orders, err := s.orders.FindByIDs(ctx, normaliseOrderIDs(orderIDs))
		if err != nil {
			return nil, mapPayoutRepositoryError(err)
		}
		for _, order := range orders {
			if order.SellerID != sellerID {
				return nil, fmt.Errorf("%w: order %s belongs to another seller", ErrPayoutInvalidInput, order.ID)
			}
			if !orderClaimable(order, now) {
				return nil, fmt.Errorf("%w: order %s is not claimable", ErrPayoutInvalidState, order.ID)
			}
		}
		return orders, nil
	}

	orders, err := s.orders.ListEarningsBySeller(ctx, sellerID)
	if err != nil {
		return nil, mapPayoutRepositoryError(err)
	}
	eligible := make([]Order, 0, len(orders))
	for _, order := range orders {
		if orderClaimable(order, now) {
			eligible = append(eligible, order)
		}
	}
	return eligible, nil
}

// orderClaimable reports whether the order's earning can enter a payout
// batch: delivered with a positive net earning, past the return window, and
// not already claimed.
func orderClaimable(order Order, now time.Time) bool {
	if order.Status != domain.OrderStatusDelivered || order.DeliveredAt == nil {
		return false
	}
	if order.Earnings == nil || !order.Earnings.NetSellerEarning.IsPositive() || order.Earnings.Stale {
		return false
	}
	if order.Payout.TransactionRef != "" {
		return false
	}
	switch order.Payout.Status {
	case domain.PayoutStatusReady, domain.PayoutStatusFailed:
		return true
	case domain.PayoutStatusHeld:
		return order.Payout.EligibleAt != nil && !now.Before(*order.Payout.EligibleAt)
	default:
		return false
	}
}

// GetPayout loads one payout batch.
func (s *payoutService) GetPayout(ctx context.Context, payoutID string) (PayoutTransaction, error) {
	payoutID = strings.TrimSpace(payoutID)
	if payoutID == "" {
		return PayoutTransaction{}, fmt.Errorf("%w: payout id is required", ErrPayoutInvalidInput)
	}
	txn, err := s.payouts.FindByID(ctx, payoutID)
	if err != nil {
		return PayoutTransaction{}, mapPayoutRepositoryError(err)
	}
	return txn, nil
}

// ListPayouts pages through a seller's payout batches.
func (s *payoutService) ListPayouts(ctx context.Context, sellerID string, filter PayoutListFilter) (domain.CursorPage[PayoutTransaction], error) {
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return domain.CursorPage[PayoutTransaction]{}, fmt.Errorf("%w: seller id is required", ErrPayoutInvalidInput)
	}
	page, err := s.payouts.ListBySeller(ctx, sellerID, filter)
	if err != nil {
		return domain.CursorPage[PayoutTransaction]{}, mapPayoutRepositoryError(err)
	}
	return page, nil
}

// MarkProcessing records that the payment executor picked up the batch.
func (s *payoutService) MarkProcessing(ctx context.Context, cmd PayoutProcessingCommand) (PayoutTransaction, error) {
	payoutID := strings.TrimSpace(cmd.PayoutID)
	if payoutID == "" {
		return PayoutTransaction{}, fmt.Errorf("%w: payout id is required", ErrPayoutInvalidInput)
	}
	txn, err := s.payouts.MarkProcessing(ctx, payoutID, s.clock())
	if err != nil {
		return PayoutTransaction{}, mapPayoutRepositoryError(err)
	}
	return txn, nil
}

// CompletePayout finalises the batch after the executor confirms disbursal,
// flipping every claimed order to paid.
func (s *payoutService) CompletePayout(ctx context.Context, cmd CompletePayoutCommand) (PayoutTransaction, error) {
	payoutID := strings.TrimSpace(cmd.PayoutID)
	if payoutID == "" {
		return PayoutTransaction{}, fmt.Errorf("%w: payout id is required", ErrPayoutInvalidInput)
	}
	result, err := s.payouts.Complete(ctx, repositories.PayoutCompleteRequest{PayoutID: payoutID, Now: s.clock()})
	if err != nil {
		return PayoutTransaction{}, mapPayoutRepositoryError(err)
	}
	s.publishCompleted(ctx, result.Transaction)
	return result.Transaction, nil
}

// FailPayout records an executor failure and releases the claimed orders back
// to the eligible pool so a later batch can pick them up.
func (s *payoutService) FailPayout(ctx context.Context, cmd FailPayoutCommand) (PayoutTransaction, error) {
	payoutID := strings.TrimSpace(cmd.PayoutID)
	if payoutID == "" {
		return PayoutTransaction{}, fmt.Errorf("%w: payout id is required", ErrPayoutInvalidInput)
	}
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return PayoutTransaction{}, fmt.Errorf("%w: failure reason is required", ErrPayoutInvalidInput)
	}
	result, err := s.payouts.Fail(ctx, repositories.PayoutFailRequest{PayoutID: payoutID, Reason: reason, Now: s.clock()})
	if err != nil {
		return PayoutTransaction{}, mapPayoutRepositoryError(err)
	}
	s.publishFailed(ctx, result.Transaction)
	return result.Transaction, nil
}

func (s *payoutService) publishRequested(ctx context.Context, txn PayoutTransaction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishPayoutRequested(ctx, txn); err != nil {
		s.logger(ctx, "payout.requested_event_failed", map[string]any{
			"payoutId": txn.ID,
			"error":    err.Error(),
		})
	}
}

func (s *payoutService) publishCompleted(ctx context.Context, txn PayoutTransaction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishPayoutCompleted(ctx, txn); err != nil {
		s.logger(ctx, "payout.completed_event_failed", map[string]any{
			"payoutId": txn.ID,
			"error":    err.Error(),
		})
	}
}

func (s *payoutService) publishFailed(ctx context.Context, txn PayoutTransaction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishPayoutFailed(ctx, txn); err != nil {
		s.logger(ctx, "payout.failed_event_failed", map[string]any{
			"payoutId": txn.ID,
			"error":    err.Error(),
		})
	}
}

func destinationSnapshot(details SellerBankDetails) PayoutDestination {
	return PayoutDestination{
		Mode:          details.Mode,
		HolderName:    details.HolderName,
		AccountNumber: details.AccountNumber,
		IFSC:          details.IFSC,
		UPIHandle:     details.UPIHandle,
	}
}

func normaliseOrderIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// mapPayoutRepositoryError converts repository failures into payout sentinels.
func mapPayoutRepositoryError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrPayoutNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrPayoutConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrPayoutUnavailable, err)
		}
	}
	return err
}
