package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/sellerdesk/api/internal/domain"
	"github.com/sellerdesk/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination              = domain.Pagination
	SortOrder               = domain.SortOrder
	Order                   = domain.Order
	OrderItem               = domain.OrderItem
	OrderPricing            = domain.OrderPricing
	OrderEarnings           = domain.OrderEarnings
	OrderPayout             = domain.OrderPayout
	OrderShipping           = domain.OrderShipping
	OrderStatus             = domain.OrderStatus
	PaymentStatus           = domain.PaymentStatus
	PayoutStatus            = domain.PayoutStatus
	ReturnRequest           = domain.ReturnRequest
	ReturnStatus            = domain.ReturnStatus
	StatusChange            = domain.StatusChange
	SellerWallet            = domain.SellerWallet
	PayoutTransaction       = domain.PayoutTransaction
	PayoutTransactionStatus = domain.PayoutTransactionStatus
	PayoutOrderLine         = domain.PayoutOrderLine
	PayoutDestination       = domain.PayoutDestination
	PayoutMode              = domain.PayoutMode
	Seller                  = domain.Seller
	SellerBankDetails       = domain.SellerBankDetails
	Category                = domain.Category
	SystemHealthReport      = domain.SystemHealthReport
)

// OrderService owns the order lifecycle: creation, status transitions, the
// return flow, and the delivery hook that computes seller earnings.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
	// RecalculateEarnings recomputes the earnings breakdown for a delivered
	// order, preserving any payout scheduling already attached to it.
	RecalculateEarnings(ctx context.Context, cmd RecalculateEarningsCommand) (Order, error)
}

// WalletService exposes the derived per-seller wallet view.
type WalletService interface {
	// GetWallet refreshes and returns the wallet so callers always observe
	// figures consistent with the current order and payout state.
	GetWallet(ctx context.Context, sellerID string) (SellerWallet, error)
	RefreshWallet(ctx context.Context, sellerID string) (SellerWallet, error)
}

// PayoutService manages payout batches from claim through completion or failure.
type PayoutService interface {
	RequestPayout(ctx context.Context, cmd RequestPayoutCommand) (PayoutTransaction, error)
	GetPayout(ctx context.Context, payoutID string) (PayoutTransaction, error)
	ListPayouts(ctx context.Context, sellerID string, filter PayoutListFilter) (domain.CursorPage[PayoutTransaction], error)
	MarkProcessing(ctx context.Context, cmd PayoutProcessingCommand) (PayoutTransaction, error)
	CompletePayout(ctx context.Context, cmd CompletePayoutCommand) (PayoutTransaction, error)
	FailPayout(ctx context.Context, cmd FailPayoutCommand) (PayoutTransaction, error)
}

// CommissionResolver picks the commission percentage for an order. Category
// overrides win over seller overrides, which win over the platform default.
type CommissionResolver interface {
	Resolve(ctx context.Context, order Order) (decimal.Decimal, error)
}

// EarningsCalculator computes the seller earnings breakdown for an order and
// schedules its payout window on first delivery.
type EarningsCalculator interface {
	Calculate(ctx context.Context, order Order, deliveredAt time.Time) (OrderEarnings, OrderPayout, error)
}

// OrderEventPublisher emits order lifecycle events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderStatusChanged(ctx context.Context, order Order, change StatusChange) error
	PublishEarningsCalculated(ctx context.Context, order Order) error
}

// PayoutEventPublisher emits payout batch events for downstream consumers.
type PayoutEventPublisher interface {
	PublishPayoutRequested(ctx context.Context, txn PayoutTransaction) error
	PublishPayoutCompleted(ctx context.Context, txn PayoutTransaction) error
	PublishPayoutFailed(ctx context.Context, txn PayoutTransaction) error
}

// SystemService aggregates utility endpoints (health checks, build info).
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// BuildInfo carries release metadata surfaced through health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// Command and DTO definitions ------------------------------------------------

type OrderListFilter = repositories.OrderListFilter

type PayoutListFilter = repositories.PayoutListFilter

// CreateOrderCommand captures the inputs needed to record a new order in
// pending state. Item subtotals and pricing totals are validated, not derived.
type CreateOrderCommand struct {
	BuyerID  string
	SellerID string
	Items    []OrderItem
	Pricing  OrderPricing
	ActorID  string
}

// OrderStatusTransitionCommand moves an order to a target lifecycle status.
// Carrier and tracking number are required when the target is shipped; Reason
// is required when the target is cancelled or return_requested.
type OrderStatusTransitionCommand struct {
	OrderID        string
	TargetStatus   OrderStatus
	ActorID        string
	Reason         string
	Note           string
	Carrier        string
	TrackingNumber string
	ExpectedStatus *OrderStatus
}

// RecalculateEarningsCommand re-runs the earnings pipeline for one order.
// Penalty, when set, replaces the stored penalty before the recompute.
type RecalculateEarningsCommand struct {
	OrderID string
	ActorID string
	Penalty *decimal.Decimal
}

// RequestPayoutCommand opens a payout batch over the seller's eligible orders.
// When OrderIDs is empty every eligible order is claimed.
type RequestPayoutCommand struct {
	SellerID string
	OrderIDs []string
	ActorID  string
}

type PayoutProcessingCommand struct {
	PayoutID string
	ActorID  string
}

type CompletePayoutCommand struct {
	PayoutID string
	ActorID  string
}

type FailPayoutCommand struct {
	PayoutID string
	Reason   string
	ActorID  string
}
