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

// Sentinel errors returned by the order service.
var (
	ErrOrderInvalidInput = errors.New("order: invalid input")
	ErrOrderNotFound     = errors.New("order: not found")
	ErrOrderInvalidState = errors.New("order: invalid state")
	ErrOrderConflict     = errors.New("order: conflict")
	ErrOrderUnavailable  = errors.New("order: storage unavailable")
)

const ordersCounterID = "orders"

// orderTransitions encodes the legal lifecycle graph. A status absent from
// the map is terminal.
var orderTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:         {domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed:       {domain.OrderStatusProcessing, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing:      {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:         {domain.OrderStatusOutForDelivery, domain.OrderStatusDelivered, domain.OrderStatusCancelled},
	domain.OrderStatusOutForDelivery:  {domain.OrderStatusDelivered, domain.OrderStatusCancelled},
	domain.OrderStatusDelivered:       {domain.OrderStatusReturnRequested},
	domain.OrderStatusReturnRequested: {domain.OrderStatusReturnApproved, domain.OrderStatusDelivered},
	domain.OrderStatusReturnApproved:  {domain.OrderStatusReturned},
	domain.OrderStatusReturned:        {domain.OrderStatusRefunded},
}

func canTransition(current, target domain.OrderStatus) bool {
	if current == target {
		return true
	}
	for _, allowed := range orderTransitions[current] {
		if allowed == target {
			return true
		}
	}
	return false
}

// OrderServiceDeps wires the repositories and collaborators the order service
// depends on.
type OrderServiceDeps struct {
	Orders     repositories.OrderRepository
	Counters   repositories.CounterRepository
	Calculator EarningsCalculator
	Publisher  OrderEventPublisher
	Tx         repositories.UnitOfWork
	Clock      func() time.Time
	IDGen      func() string
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	counters   repositories.CounterRepository
	calculator EarningsCalculator
	publisher  OrderEventPublisher
	tx         repositories.UnitOfWork
	clock      func() time.Time
	idGen      func() string
	logger     func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderService constructs the order lifecycle service.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service requires order repository")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service requires counter repository")
	}
	if deps.Calculator == nil {
		return nil, errors.New("order service requires earnings calculator")
	}
	if deps.IDGen == nil {
		return nil, errors.New("order service requires id generator")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	tx := deps.Tx
	if tx == nil {
		tx = noopUnitOfWork{}
	}
	return &orderService{
		orders:     deps.Orders,
		counters:   deps.Counters,
		calculator: deps.Calculator,
		publisher:  deps.Publisher,
		tx:         tx,
		clock:      func() time.Time { return clock().UTC() },
		idGen:      deps.IDGen,
		logger:     logger,
	}, nil
}

// CreateOrder records a new order in pending state with the buyer payment
// still unsettled.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	buyerID := strings.TrimSpace(cmd.BuyerID)
	sellerID := strings.TrimSpace(cmd.SellerID)
	if buyerID == "" || sellerID == "" {
		return Order{}, fmt.Errorf("%w: buyer and seller are required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}
	if err := validateOrderItems(cmd.Items); err != nil {
		return Order{}, err
	}
	if err := validateOrderPricing(cmd.Pricing, cmd.Items); err != nil {
		return Order{}, err
	}

	now := s.clock()
	seq, err := s.counters.Next(ctx, ordersCounterID, 1)
	if err != nil {
		return Order{}, fmt.Errorf("allocate order number: %w", mapOrderRepositoryError(err))
	}

	order := Order{
		ID:            s.idGen(),
		OrderNumber:   fmt.Sprintf("SD-%04d-%06d", now.Year(), seq),
		BuyerID:       buyerID,
		SellerID:      sellerID,
		Items:         append([]OrderItem(nil), cmd.Items...),
		Pricing:       cmd.Pricing,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		StatusHistory: []StatusChange{{
			To:        domain.OrderStatusPending,
			ChangedBy: strings.TrimSpace(cmd.ActorID),
			ChangedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		return Order{}, fmt.Errorf("insert order: %w", mapOrderRepositoryError(err))
	}
	return order, nil
}

// GetOrder loads a single order.
func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapOrderRepositoryError(err)
	}
	return order, nil
}

// ListOrders pages through orders matching the filter.
func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, mapOrderRepositoryError(err)
	}
	return page, nil
}

// TransitionStatus moves an order along the lifecycle graph, applying the
// side effects each target status demands. Repeating the current status is a
// no-op so retried webhooks stay idempotent.
func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := domain.OrderStatus(strings.TrimSpace(string(cmd.TargetStatus)))
	if target == "" {
		return Order{}, fmt.Errorf("%w: target status is required", ErrOrderInvalidInput)
	}

	var updated Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return mapOrderRepositoryError(err)
		}
		if cmd.ExpectedStatus != nil && order.Status != *cmd.ExpectedStatus {
			return fmt.Errorf("%w: order %s is %s, expected %s", ErrOrderConflict, orderID, order.Status, *cmd.ExpectedStatus)
		}
		if order.Status == target {
			updated = order
			return nil
		}
		if !canTransition(order.Status, target) {
			return fmt.Errorf("%w: cannot move order %s from %s to %s", ErrOrderInvalidState, orderID, order.Status, target)
		}

		now := s.clock()
		if err := s.applyTransitionEffects(ctx, &order, cmd, target, now); err != nil {
			return err
		}

		change := StatusChange{
			From:      order.Status,
			To:        target,
			Note:      transitionNote(cmd),
			ChangedBy: strings.TrimSpace(cmd.ActorID),
			ChangedAt: now,
		}
		order.Status = target
		order.StatusHistory = append(order.StatusHistory, change)
		order.UpdatedAt = now

		if err := s.orders.Update(ctx, order); err != nil {
			return fmt.Errorf("update order: %w", mapOrderRepositoryError(err))
		}
		updated = order
		s.publishStatusChanged(ctx, order, change)
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return updated, nil
}

// applyTransitionEffects mutates the order with the side effects of reaching
// the target status. The status itself and the history entry are written by
// the caller.
func (s *orderService) applyTransitionEffects(ctx context.Context, order *Order, cmd OrderStatusTransitionCommand, target domain.OrderStatus, now time.Time) error {
	switch target {
	case domain.OrderStatusShipped:
		carrier := strings.TrimSpace(cmd.Carrier)
		tracking := strings.TrimSpace(cmd.TrackingNumber)
		if carrier == "" || tracking == "" {
			return fmt.Errorf("%w: carrier and tracking number are required to ship", ErrOrderInvalidInput)
		}
		shippedAt := now
		order.Shipping = OrderShipping{
			Carrier:        carrier,
			TrackingNumber: tracking,
			ShippedAt:      &shippedAt,
		}
	case domain.OrderStatusDelivered:
		if order.Status == domain.OrderStatusReturnRequested {
			// Rejecting a return puts the order back to delivered.
			if order.Return == nil {
				return fmt.Errorf("%w: order %s has no return request", ErrOrderInvalidState, order.ID)
			}
			rejectedAt := now
			order.Return.Status = domain.ReturnStatusRejected
			order.Return.RejectedAt = &rejectedAt
			return nil
		}
		deliveredAt := now
		order.DeliveredAt = &deliveredAt
		order.PaymentStatus = domain.PaymentStatusCompleted
		s.computeEarnings(ctx, order, deliveredAt)
	case domain.OrderStatusCancelled:
		if strings.TrimSpace(cmd.Reason) == "" {
			return fmt.Errorf("%w: cancellation reason is required", ErrOrderInvalidInput)
		}
		cancelledAt := now
		order.CancelledAt = &cancelledAt
	case domain.OrderStatusReturnRequested:
		if strings.TrimSpace(cmd.Reason) == "" {
			return fmt.Errorf("%w: return reason is required", ErrOrderInvalidInput)
		}
		order.Return = &ReturnRequest{
			Reason:      strings.TrimSpace(cmd.Reason),
			Status:      domain.ReturnStatusRequested,
			RequestedAt: now,
		}
	case domain.OrderStatusReturnApproved:
		if order.Return == nil {
			return fmt.Errorf("%w: order %s has no return request", ErrOrderInvalidState, order.ID)
		}
		approvedAt := now
		order.Return.Status = domain.ReturnStatusApproved
		order.Return.ApprovedAt = &approvedAt
	case domain.OrderStatusRefunded:
		if order.Return != nil {
			completedAt := now
			order.Return.Status = domain.ReturnStatusCompleted
			order.Return.CompletedAt = &completedAt
		}
		order.PaymentStatus = domain.PaymentStatusRefunded
	}
	return nil
}

// computeEarnings runs the earnings pipeline on delivery. A calculator
// failure never blocks the transition: the order is committed with its
// previous breakdown flagged stale and the failure is logged for the
// recalculation path to pick up.
func (s *orderService) computeEarnings(ctx context.Context, order *Order, deliveredAt time.Time) {
	earnings, payout, err := s.calculator.Calculate(ctx, *order, deliveredAt)
	if err != nil {
		s.logger(ctx, "order.earnings_calculation_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
		if order.Earnings != nil {
			order.Earnings.Stale = true
		}
		return
	}
	order.Earnings = &earnings
	order.Payout = payout
	s.publishEarningsCalculated(ctx, *order)
}

// RecalculateEarnings re-runs the earnings pipeline for a delivered order,
// optionally replacing the stored penalty first. The payout record survives
// unchanged so claimed or completed payouts are never rewound.
func (s *orderService) RecalculateEarnings(ctx context.Context, cmd RecalculateEarningsCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if cmd.Penalty != nil && cmd.Penalty.IsNegative() {
		return Order{}, fmt.Errorf("%w: penalty must not be negative", ErrOrderInvalidInput)
	}

	var updated Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return mapOrderRepositoryError(err)
		}
		if order.DeliveredAt == nil {
			return fmt.Errorf("%w: order %s has not been delivered", ErrOrderInvalidState, orderID)
		}
		if cmd.Penalty != nil {
			if order.Earnings == nil {
				order.Earnings = &OrderEarnings{}
			}
			order.Earnings.Penalty = cmd.Penalty.Round(2)
		}

		earnings, payout, err := s.calculator.Calculate(ctx, order, *order.DeliveredAt)
		if err != nil {
			return fmt.Errorf("calculate earnings: %w", err)
		}
		order.Earnings = &earnings
		order.Payout = payout
		order.UpdatedAt = s.clock()

		if err := s.orders.Update(ctx, order); err != nil {
			return fmt.Errorf("update order: %w", mapOrderRepositoryError(err))
		}
		updated = order
		s.publishEarningsCalculated(ctx, order)
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return updated, nil
}

func (s *orderService) publishStatusChanged(ctx context.Context, order Order, change StatusChange) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishOrderStatusChanged(ctx, order, change); err != nil {
		s.logger(ctx, "order.status_event_failed", map[string]any{
			"orderId": order.ID,
			"status":  string(order.Status),
			"error":   err.Error(),
		})
	}
}

func (s *orderService) publishEarningsCalculated(ctx context.Context, order Order) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEarningsCalculated(ctx, order); err != nil {
		s.logger(ctx, "order.earnings_event_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
}

func transitionNote(cmd OrderStatusTransitionCommand) string {
	note := strings.TrimSpace(cmd.Note)
	if note != "" {
		return note
	}
	return strings.TrimSpace(cmd.Reason)
}

func validateOrderItems(items []OrderItem) error {
	for i, item := range items {
		if strings.TrimSpace(item.ProductRef) == "" {
			return fmt.Errorf("%w: item %d is missing product reference", ErrOrderInvalidInput, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", ErrOrderInvalidInput, i)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %d unit price must not be negative", ErrOrderInvalidInput, i)
		}
		expected := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		if !item.Subtotal.Round(2).Equal(expected) {
			return fmt.Errorf("%w: item %d subtotal does not match unit price", ErrOrderInvalidInput, i)
		}
	}
	return nil
}

func validateOrderPricing(pricing OrderPricing, items []OrderItem) error {
	itemsTotal := decimal.Zero
	for _, item := range items {
		itemsTotal = itemsTotal.Add(item.Subtotal)
	}
	if !pricing.ItemsTotal.Round(2).Equal(itemsTotal.Round(2)) {
		return fmt.Errorf("%w: items total does not match item subtotals", ErrOrderInvalidInput)
	}
	if pricing.ShippingCharge.IsNegative() || pricing.Tax.IsNegative() || pricing.Discount.IsNegative() {
		return fmt.Errorf("%w: pricing components must not be negative", ErrOrderInvalidInput)
	}
	expectedTotal := pricing.ItemsTotal.Add(pricing.ShippingCharge).Add(pricing.Tax).Sub(pricing.Discount).Round(2)
	if !pricing.GrandTotal.Round(2).Equal(expectedTotal) {
		return fmt.Errorf("%w: grand total does not match pricing components", ErrOrderInvalidInput)
	}
	return nil
}

// mapOrderRepositoryError converts repository failures into order sentinels.
func mapOrderRepositoryError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}
	return err
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}
