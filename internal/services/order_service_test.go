package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/sellerdesk/api/internal/domain"
	"github.com/sellerdesk/api/internal/repositories"
)

type stubOrderRepo struct {
	insertFn       func(context.Context, domain.Order) error
	updateFn       func(context.Context, domain.Order) error
	findFn         func(context.Context, string) (domain.Order, error)
	findByIDsFn    func(context.Context, []string) ([]domain.Order, error)
	listFn         func(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
	listEarningsFn func(context.Context, string) ([]domain.Order, error)
}

func (s *stubOrderRepo) Insert(ctx context.Context, order domain.Order) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) Update(ctx context.Context, order domain.Order) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findFn != nil {
		return s.findFn(ctx, orderID)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderRepo) FindByIDs(ctx context.Context, orderIDs []string) ([]domain.Order, error) {
	if s.findByIDsFn != nil {
		return s.findByIDsFn(ctx, orderIDs)
	}
	return nil, errors.New("not implemented")
}

func (s *stubOrderRepo) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

func (s *stubOrderRepo) ListEarningsBySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	if s.listEarningsFn != nil {
		return s.listEarningsFn(ctx, sellerID)
	}
	return nil, nil
}

type stubCounterRepo struct {
	nextFn func(context.Context, string, int64) (int64, error)
}

func (s *stubCounterRepo) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if s.nextFn != nil {
		return s.nextFn(ctx, counterID, step)
	}
	return 1, nil
}

func (s *stubCounterRepo) Configure(context.Context, string, repositories.CounterConfig) error {
	return nil
}

type stubCalculator struct {
	calculateFn func(context.Context, Order, time.Time) (OrderEarnings, OrderPayout, error)
}

func (s *stubCalculator) Calculate(ctx context.Context, order Order, deliveredAt time.Time) (OrderEarnings, OrderPayout, error) {
	if s.calculateFn != nil {
		return s.calculateFn(ctx, order, deliveredAt)
	}
	return OrderEarnings{}, order.Payout, nil
}

type captureOrderEvents struct {
	statusChanges []StatusChange
	earnings      []Order
	err           error
}

func (c *captureOrderEvents) PublishOrderStatusChanged(_ context.Context, _ Order, change StatusChange) error {
	c.statusChanges = append(c.statusChanges, change)
	return c.err
}

func (c *captureOrderEvents) PublishEarningsCalculated(_ context.Context, order Order) error {
	c.earnings = append(c.earnings, order)
	return c.err
}

// repoError mimics categorised persistence failures.
type repoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e repoError) Error() string       { return "repository error" }
func (e repoError) IsNotFound() bool    { return e.notFound }
func (e repoError) IsConflict() bool    { return e.conflict }
func (e repoError) IsUnavailable() bool { return e.unavailable }

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testOrderService(t *testing.T, deps OrderServiceDeps) OrderService {
	t.Helper()
	if deps.Orders == nil {
		deps.Orders = &stubOrderRepo{}
	}
	if deps.Counters == nil {
		deps.Counters = &stubCounterRepo{}
	}
	if deps.Calculator == nil {
		deps.Calculator = &stubCalculator{}
	}
	if deps.Clock == nil {
		deps.Clock = fixedClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	}
	if deps.IDGen == nil {
		counter := 0
		deps.IDGen = func() string {
			counter++
			return fmt.Sprintf("ord_%06d", counter)
		}
	}
	svc, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	return svc
}

func pendingOrder(id string) domain.Order {
	return domain.Order{
		ID:            id,
		OrderNumber:   "SD-2024-000042",
		BuyerID:       "buyer-1",
		SellerID:      "seller-1",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		Pricing: domain.OrderPricing{
			ItemsTotal:     dec("1000"),
			ShippingCharge: dec("40"),
			GrandTotal:     dec("1040"),
		},
	}
}

func TestCreateOrderAssignsNumberAndHistory(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var inserted domain.Order
	repo := &stubOrderRepo{
		insertFn: func(_ context.Context, order domain.Order) error {
			inserted = order
			return nil
		},
	}
	counters := &stubCounterRepo{
		nextFn: func(_ context.Context, counterID string, _ int64) (int64, error) {
			if counterID != "orders" {
				t.Fatalf("expected orders counter, got %s", counterID)
			}
			return 42, nil
		},
	}
	svc := testOrderService(t, OrderServiceDeps{Orders: repo, Counters: counters, Clock: fixedClock(now)})

	order, err := svc.CreateOrder(context.Background(), CreateOrderCommand{
		BuyerID:  "buyer-1",
		SellerID: "seller-1",
		ActorID:  "buyer-1",
		Items: []OrderItem{{
			ProductRef: "products/p1",
			UnitPrice:  dec("500"),
			Quantity:   2,
			Subtotal:   dec("1000"),
		}},
		Pricing: OrderPricing{
			ItemsTotal:     dec("1000"),
			ShippingCharge: dec("40"),
			GrandTotal:     dec("1040"),
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.OrderNumber != "SD-2024-000042" {
		t.Fatalf("unexpected order number %s", order.OrderNumber)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending status, got %s", order.Status)
	}
	if order.PaymentStatus != domain.PaymentStatusPending {
		t.Fatalf("expected pending payment, got %s", order.PaymentStatus)
	}
	if len(order.StatusHistory) != 1 || order.StatusHistory[0].To != domain.OrderStatusPending {
		t.Fatalf("expected initial history entry, got %+v", order.StatusHistory)
	}
	if inserted.ID != order.ID {
		t.Fatalf("expected insert of %s, got %s", order.ID, inserted.ID)
	}
}

func TestCreateOrderRejectsMismatchedTotals(t *testing.T) {
	svc := testOrderService(t, OrderServiceDeps{})

	_, err := svc.CreateOrder(context.Background(), CreateOrderCommand{
		BuyerID:  "buyer-1",
		SellerID: "seller-1",
		Items: []OrderItem{{
			ProductRef: "products/p1",
			UnitPrice:  dec("500"),
			Quantity:   2,
			Subtotal:   dec("1000"),
		}},
		Pricing: OrderPricing{
			ItemsTotal:     dec("900"),
			ShippingCharge: dec("40"),
			GrandTotal:     dec("940"),
		},
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestTransitionStatusRejectsIllegalJump(t *testing.T) {
	repo := &stubOrderRepo{
		findFn: func(_ context.Context, orderID string) (domain.Order, error) {
			return pendingOrder(orderID), nil
		},
	}
	svc := testOrderService(t, OrderServiceDeps{Orders: repo})

	_, err := svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusDelivered,
		ActorID:      "ops-1",
	})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestTransitionStatusSameStatusIsNoOp(t *testing.T) {
	updates := 0
	repo := &stubOrderRepo{
		findFn: func(_ context.Context, orderID string) (domain.Order, error) {
			return pendingOrder(orderID), nil
		},
		updateFn: func(context.Context, domain.Order) error {
			updates++
			return nil
		},
	}
	svc := testOrderService(t, OrderServiceDeps{Orders: repo})

	order, err := svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusPending,
		ActorID:      "ops-1",
	})
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if updates != 0 {
		t.Fatalf("expected no update for repeated status, got %d", updates)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("unexpected status %s", order.Status)
	}
}

func TestTransitionStatusHonoursExpectedStatus(t *testing.T) {
	repo := &stubOrderRepo{
		findFn: func(_ context.Context, orderID string) (domain.Order, error) {
			order := pendingOrder(orderID)
			order.Status = domain.OrderStatusConfirmed
			return order, nil
		},
	}
	svc := testOrderService(t, OrderServiceDeps{Orders: repo})

	expected := domain.OrderStatusPending
	_, err := svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID:        "ord_1",
		TargetStatus:   domain.OrderStatusProcessing,
		ActorID:        "seller-1",
		ExpectedStatus: &expected,
	})
	if !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestTransitionShippedRequiresCarrierAndTracking(t *testing.T) {
	repo := &stubOrderRepo{
		findFn: func(_ context.Context, orderID string) (domain.Order, error) {
			order := pendingOrder(orderID)
			order.Status = domain.OrderStatusProcessing
			return order, nil
		},
	}
	svc := testOrderService(t, OrderServiceDeps{Orders: repo})

	_, err := svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusShipped,
		ActorID:      "seller-1",
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	var updated domain.Order
	repo.updateFn = func(_ context.Context, order domain.Order) error {
		updated = order
		return nil
	}
	_, err = svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID:        "ord_1",
		TargetStatus:   domain.OrderStatusShipped,
		ActorID:        "seller-1",
		Carrier:        "bluedart",
		TrackingNumber: "BD123456",
	})
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if updated.Shipping.Carrier != "bluedart" || updated.Shipping.TrackingNumber != "BD123456" {
		t.Fatalf("expected shipping metadata, got %+v", updated.Shipping)
	}
	if updated.Shipping.ShippedAt == nil {
		t.Fatalf("expected shippedAt to be set")
	}
}

func TestTransitionDeliveredComputesEarnings(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	eligibleAt := now.Add(7 * 24 * time.Hour)
	repo := &stubOrderRepo{
		findFn: func(_ context.Context, orderID string) (domain.Order, error) {
			order := pendingOrder(orderID)
			order.Status = domain.OrderStatusOutForDelivery
			return order, nil
		},
	}
	var updated domain.Order
	repo.updateFn = func(_ context.Context, order domain.Order) error {
		updated = order
		return nil
	}
	calc := &stubCalculator{
		calculateFn: func(_ context.Context, order Order, deliveredAt time.Time) (OrderEarnings, OrderPayout, error) {
			if !deliveredAt.Equal(now) {
				t.Fatalf("expected deliveredAt %s, got %s", now, deliveredAt)
			}
			return OrderEarnings{NetSellerEarning: dec("842"), CalculatedAt: deliveredAt},
				OrderPayout{Status: domain.PayoutStatusHeld, EligibleAt: &eligibleAt}, nil
		},
	}
	events := &captureOrderEvents{}
	svc := testOrderService(t, OrderServiceDeps{Orders: repo, Calculator: calc, Publisher: events, Clock: fixedClock(now)})

	order, err := svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusDelivered,
		ActorID:      "carrier-webhook",
	})
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if order.DeliveredAt == nil || !order.DeliveredAt.Equal(now) {
		t.Fatalf("expected deliveredAt %s, got %v", now, order.DeliveredAt)
	}
	if order.PaymentStatus != domain.PaymentStatusCompleted {
		t.Fatalf("expected payment completed, got %s", order.PaymentStatus)
	}
	if order.Earnings == nil || !order.Earnings.NetSellerEarning.Equal(dec("842")) {
		t.Fatalf("expected net earning 842, got %+v", order.Earnings)
	}
	if order.Payout.Status != domain.PayoutStatusHeld || order.Payout.EligibleAt == nil {
		t.Fatalf("expected held payout, got %+v", order.Payout)
	}
	if updated.Earnings == nil {
		t.Fatalf("expected persisted earnings")
	}
	if len(events.earnings) != 1 {
		t.Fatalf("expected one earnings event, got %d", len(events.earnings))
	}
	if len(events.statusChanges) != 1 || events.statusChanges[0].To != domain.OrderStatusDelivered {
		t.Fatalf("expected delivered status event, got %+v", events.statusChanges)
	}
}

func TestTransitionDeliveredCommitsWhenCalculatorFails(t *testing.T) {
	repo := &stubOrderRepo{
		findFn: func(_ context.Context, orderID string) (domain.Order, error) {
			order := pendingOrder(orderID)
			order.Status = domain.OrderStatusShipped
			order.Earnings = &domain.OrderEarnings{NetSellerEarning: dec("100")}
			return order, nil
		},
	}
	var updated domain.Order
	repo.updateFn = func(_ context.Context, order domain.Order) error {
		updated = order
		return nil
	}
	calc := &stubCalculator{
		calculateFn: func(context.Context, Order, time.Time) (OrderEarnings, OrderPayout, error) {
			return OrderEarnings{}, OrderPayout{}, errors.New("commission lookup unavailable")
		},
	}
	svc := testOrderService(t, OrderServiceDeps{Orders: repo, Calculator: calc})

	order, err := svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusDelivered,
		ActorID:      "carrier-webhook",
	})
	if err != nil {
		t.Fatalf("expected delivery to commit despite calculator failure, got %v", err)
	}
	if order.Status != domain.OrderStatusDelivered {
		t.Fatalf("expected delivered, got %s", order.Status)
	}
	if order.Earnings == nil || !order.Earnings.Stale {
		t.Fatalf("expected stale earnings flag, got %+v", order.Earnings)
	}
	if updated.Status != domain.OrderStatusDelivered {
		t.Fatalf("expected persisted delivered status, got %s", updated.Status)
	}
}

func TestReturnFlowRequiresReasonAndTracksSubRecord(t *testing.T) {
	current := pendingOrder("ord_1")
	current.Status = domain.OrderStatusDelivered
	repo := &stubOrderRepo{
		findFn: func(context.Context, string) (domain.Order, error) {
			return current, nil
		},
		updateFn: func(_ context.Context, order domain.Order) error {
			current = order
			return nil
		},
	}
	svc := testOrderService(t, OrderServiceDeps{Orders: repo})
	ctx := context.Background()

	_, err := svc.TransitionStatus(ctx, OrderStatusTransitionCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusReturnRequested,
		ActorID:      "buyer-1",
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected reason to be required, got %v", err)
	}

	order, err := svc.TransitionStatus(ctx, OrderStatusTransitionCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusReturnRequested,
		ActorID:      "buyer-1",
		Reason:       "damaged on arrival",
	})
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if order.Return == nil || order.Return.Status != domain.ReturnStatusRequested {
		t.Fatalf("expected requested return record, got %+v", order.Return)
	}

	// Rejecting the return lands the order back on delivered.
	order, err = svc.TransitionStatus(ctx, OrderStatusTransitionCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusDelivered,
		ActorID:      "seller-1",
		Note:         "no damage found",
	})
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if order.Status != domain.OrderStatusDelivered {
		t.Fatalf("expected delivered, got %s", order.Status)
	}
	if order.Return == nil || order.Return.Status != domain.ReturnStatusRejected || order.Return.RejectedAt == nil {
		t.Fatalf("expected rejected return record, got %+v", order.Return)
	}
	if order.DeliveredAt != nil {
		// The original delivery must not be re-recorded by the rejection.
		t.Fatalf("expected deliveredAt untouched, got %v", order.DeliveredAt)
	}
}

func TestReturnApprovalThroughRefund(t *testing.T) {
	requestedAt := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	current := pendingOrder("ord_1")
	current.Status = domain.OrderStatusReturnRequested
	current.PaymentStatus = domain.PaymentStatusCompleted
	current.Return = &domain.ReturnRequest{
		Reason:      "damaged on arrival",
		Status:      domain.ReturnStatusRequested,
		RequestedAt: requestedAt,
	}
	repo := &stubOrderRepo{
		findFn: func(context.Context, string) (domain.Order, error) {
			return current, nil
		},
		updateFn: func(_ context.Context, order domain.Order) error {
			current = order
			return nil
		},
	}
	svc := testOrderService(t, OrderServiceDeps{Orders: repo})
	ctx := context.Background()

	order, err := svc.TransitionStatus(ctx, OrderStatusTransitionCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusReturnApproved,
		ActorID:      "seller-1",
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if order.Return.Status != domain.ReturnStatusApproved || order.Return.ApprovedAt == nil {
		t.Fatalf("expected approved return, got %+v", order.Return)
	}

	if _, err = svc.TransitionStatus(ctx, OrderStatusTransitionCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusReturned,
		ActorID:      "seller-1",
	}); err != nil {
		t.Fatalf("returned: %v", err)
	}

	order, err = svc.TransitionStatus(ctx, OrderStatusTransitionCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusRefunded,
		ActorID:      "ops-1",
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if order.PaymentStatus != domain.PaymentStatusRefunded {
		t.Fatalf("expected refunded payment, got %s", order.PaymentStatus)
	}
	if order.Return.Status != domain.ReturnStatusCompleted || order.Return.CompletedAt == nil {
		t.Fatalf("expected completed return, got %+v", order.Return)
	}
	if len(order.StatusHistory) != 3 {
		t.Fatalf("expected three history entries, got %d", len(order.StatusHistory))
	}
}

func TestTransitionCancelRequiresReason(t *testing.T) {
	repo := &stubOrderRepo{
		findFn: func(_ context.Context, orderID string) (domain.Order, error) {
			return pendingOrder(orderID), nil
		},
	}
	svc := testOrderService(t, OrderServiceDeps{Orders: repo})

	_, err := svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusCancelled,
		ActorID:      "buyer-1",
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected reason to be required, got %v", err)
	}

	var updated domain.Order
	repo.updateFn = func(_ context.Context, order domain.Order) error {
		updated = order
		return nil
	}
	order, err := svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusCancelled,
		ActorID:      "buyer-1",
		Reason:       "ordered by mistake",
	})
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if order.CancelledAt == nil {
		t.Fatalf("expected cancelledAt to be set")
	}
	if updated.StatusHistory[len(updated.StatusHistory)-1].Note != "ordered by mistake" {
		t.Fatalf("expected reason recorded in history, got %+v", updated.StatusHistory)
	}
}

func TestGetOrderMapsNotFound(t *testing.T) {
	repo := &stubOrderRepo{
		findFn: func(context.Context, string) (domain.Order, error) {
			return domain.Order{}, repoError{notFound: true}
		},
	}
	svc := testOrderService(t, OrderServiceDeps{Orders: repo})

	_, err := svc.GetOrder(context.Background(), "ord_missing")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRecalculateEarningsAppliesPenaltyAndKeepsPayout(t *testing.T) {
	deliveredAt := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	eligibleAt := deliveredAt.Add(7 * 24 * time.Hour)
	current := pendingOrder("ord_1")
	current.Status = domain.OrderStatusDelivered
	current.DeliveredAt = &deliveredAt
	current.Earnings = &domain.OrderEarnings{NetSellerEarning: dec("842")}
	current.Payout = domain.OrderPayout{Status: domain.PayoutStatusHeld, EligibleAt: &eligibleAt}

	repo := &stubOrderRepo{
		findFn: func(context.Context, string) (domain.Order, error) {
			return current, nil
		},
		updateFn: func(_ context.Context, order domain.Order) error {
			current = order
			return nil
		},
	}
	var seenPenalty decimal.Decimal
	calc := &stubCalculator{
		calculateFn: func(_ context.Context, order Order, _ time.Time) (OrderEarnings, OrderPayout, error) {
			seenPenalty = order.Earnings.Penalty
			return OrderEarnings{NetSellerEarning: dec("792"), Penalty: order.Earnings.Penalty}, order.Payout, nil
		},
	}
	svc := testOrderService(t, OrderServiceDeps{Orders: repo, Calculator: calc})

	penalty := dec("50")
	order, err := svc.RecalculateEarnings(context.Background(), RecalculateEarningsCommand{
		OrderID: "ord_1",
		ActorID: "ops-1",
		Penalty: &penalty,
	})
	if err != nil {
		t.Fatalf("RecalculateEarnings: %v", err)
	}
	if !seenPenalty.Equal(dec("50")) {
		t.Fatalf("expected penalty 50 passed to calculator, got %s", seenPenalty)
	}
	if !order.Earnings.NetSellerEarning.Equal(dec("792")) {
		t.Fatalf("expected recomputed net 792, got %s", order.Earnings.NetSellerEarning)
	}
	if order.Payout.Status != domain.PayoutStatusHeld || !order.Payout.EligibleAt.Equal(eligibleAt) {
		t.Fatalf("expected payout untouched, got %+v", order.Payout)
	}
}

func TestRecalculateEarningsRejectsUndelivered(t *testing.T) {
	repo := &stubOrderRepo{
		findFn: func(_ context.Context, orderID string) (domain.Order, error) {
			return pendingOrder(orderID), nil
		},
	}
	svc := testOrderService(t, OrderServiceDeps{Orders: repo})

	_, err := svc.RecalculateEarnings(context.Background(), RecalculateEarningsCommand{OrderID: "ord_1"})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}
