package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	// OrderStatusPending indicates the order was placed but not yet confirmed.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed indicates the seller accepted the order.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing indicates the order is being prepared.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the order was handed to a carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusOutForDelivery indicates last-mile delivery is in progress.
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	// OrderStatusDelivered indicates the buyer received the order.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusReturnRequested indicates the buyer asked to return the order.
	OrderStatusReturnRequested OrderStatus = "return_requested"
	// OrderStatusReturnApproved indicates the seller approved the return.
	OrderStatusReturnApproved OrderStatus = "return_approved"
	// OrderStatusReturned indicates the returned goods reached the seller.
	OrderStatusReturned OrderStatus = "returned"
	// OrderStatusCancelled indicates the order was cancelled before delivery.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded indicates the buyer was refunded after a return.
	OrderStatusRefunded OrderStatus = "refunded"
)

// PaymentStatus tracks the buyer-side payment state of an order.
type PaymentStatus string

const (
	// PaymentStatusPending indicates buyer payment has not settled yet.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusCompleted indicates buyer payment settled.
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusRefunded indicates the buyer payment was returned.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// PayoutStatus tracks where an order's seller earning sits in the payout pipeline.
type PayoutStatus string

const (
	// PayoutStatusNone indicates the order has no payout scheduled yet.
	PayoutStatusNone PayoutStatus = ""
	// PayoutStatusHeld indicates the earning is inside the return window.
	PayoutStatusHeld PayoutStatus = "held"
	// PayoutStatusReady indicates the return window elapsed and the earning can be claimed.
	PayoutStatusReady PayoutStatus = "ready"
	// PayoutStatusProcessing indicates the earning was claimed by a payout transaction.
	PayoutStatusProcessing PayoutStatus = "processing"
	// PayoutStatusPaid indicates the earning was disbursed.
	PayoutStatusPaid PayoutStatus = "paid"
	// PayoutStatusFailed indicates a payout attempt for the earning failed.
	PayoutStatusFailed PayoutStatus = "failed"
)

// Order captures a marketplace order together with its earnings and payout state.
type Order struct {
	ID            string
	OrderNumber   string
	BuyerID       string
	SellerID      string
	Items         []OrderItem
	Pricing       OrderPricing
	Status        OrderStatus
	PaymentStatus PaymentStatus
	Earnings      *OrderEarnings
	Payout        OrderPayout
	Shipping      OrderShipping
	Return        *ReturnRequest
	StatusHistory []StatusChange
	DeliveredAt   *time.Time
	CancelledAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem mirrors a purchased line at the time the order was placed.
type OrderItem struct {
	ProductRef  string
	ProductName string
	CategoryID  string
	UnitPrice   decimal.Decimal
	Quantity    int
	Subtotal    decimal.Decimal
}

// OrderPricing holds the buyer-facing totals of an order.
type OrderPricing struct {
	ItemsTotal     decimal.Decimal
	ShippingCharge decimal.Decimal
	Tax            decimal.Decimal
	Discount       decimal.Decimal
	GrandTotal     decimal.Decimal
}

// OrderEarnings is the seller earnings breakdown computed at delivery time.
// Every monetary field is rounded to two decimal places when written.
type OrderEarnings struct {
	CommissionPercent decimal.Decimal
	CommissionAmount  decimal.Decimal
	ShippingCost      decimal.Decimal
	CGST              decimal.Decimal
	SGST              decimal.Decimal
	TotalTax          decimal.Decimal
	Penalty           decimal.Decimal
	NetSellerEarning  decimal.Decimal
	CalculatedAt      time.Time
	Stale             bool
}

// OrderPayout tracks the payout scheduling state attached to an order.
type OrderPayout struct {
	Status         PayoutStatus
	EligibleAt     *time.Time
	CompletedAt    *time.Time
	TransactionRef string
}

// OrderShipping stores carrier metadata recorded when the order ships.
type OrderShipping struct {
	Carrier        string
	TrackingNumber string
	ShippedAt      *time.Time
}

// ReturnStatus enumerates return request states.
type ReturnStatus string

const (
	// ReturnStatusRequested indicates the buyer opened a return.
	ReturnStatusRequested ReturnStatus = "requested"
	// ReturnStatusApproved indicates the seller accepted the return.
	ReturnStatusApproved ReturnStatus = "approved"
	// ReturnStatusRejected indicates the seller declined the return.
	ReturnStatusRejected ReturnStatus = "rejected"
	// ReturnStatusCompleted indicates the goods came back and the buyer was refunded.
	ReturnStatusCompleted ReturnStatus = "completed"
)

// ReturnRequest captures the return sub-record attached to an order.
type ReturnRequest struct {
	Reason      string
	Status      ReturnStatus
	RequestedAt time.Time
	ApprovedAt  *time.Time
	RejectedAt  *time.Time
	CompletedAt *time.Time
}

// StatusChange is one append-only entry in an order's status history.
type StatusChange struct {
	From      OrderStatus
	To        OrderStatus
	Note      string
	ChangedBy string
	ChangedAt time.Time
}

// SellerWallet aggregates a seller's earnings into payout buckets. It is a
// derived view: every refresh recomputes all fields from the order and
// payout collections.
type SellerWallet struct {
	SellerID        string
	PendingAmount   decimal.Decimal
	UpcomingPayout  decimal.Decimal
	CompletedPayout decimal.Decimal
	TotalEarnings   decimal.Decimal
	PendingOrders   int
	UpcomingOrders  int
	PaidOrders      int
	LastPayoutAt    *time.Time
	NextPayoutAt    *time.Time
	RefreshedAt     time.Time
}

// PayoutTransactionStatus enumerates payout transaction states.
type PayoutTransactionStatus string

const (
	// PayoutTransactionPending indicates the batch was created and awaits execution.
	PayoutTransactionPending PayoutTransactionStatus = "pending"
	// PayoutTransactionProcessing indicates the payment executor picked up the batch.
	PayoutTransactionProcessing PayoutTransactionStatus = "processing"
	// PayoutTransactionCompleted indicates funds were disbursed.
	PayoutTransactionCompleted PayoutTransactionStatus = "completed"
	// PayoutTransactionFailed indicates the disbursal attempt failed.
	PayoutTransactionFailed PayoutTransactionStatus = "failed"
)

// PayoutTransaction is a batch disbursal covering one or more delivered orders.
// OrderIDs and Breakdown are immutable once the transaction is created.
type PayoutTransaction struct {
	ID            string
	Number        string
	SellerID      string
	OrderIDs      []string
	Amount        decimal.Decimal
	Breakdown     []PayoutOrderLine
	Destination   PayoutDestination
	Status        PayoutTransactionStatus
	FailureReason string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// PayoutOrderLine snapshots one order's contribution to a payout batch.
type PayoutOrderLine struct {
	OrderID     string
	OrderNumber string
	NetEarning  decimal.Decimal
	DeliveredAt time.Time
}

// PayoutMode selects the disbursal rail for a payout destination.
type PayoutMode string

const (
	// PayoutModeBank disburses to a bank account.
	PayoutModeBank PayoutMode = "bank"
	// PayoutModeUPI disburses to a UPI handle.
	PayoutModeUPI PayoutMode = "upi"
)

// PayoutDestination snapshots the seller's disbursal details at claim time.
type PayoutDestination struct {
	Mode          PayoutMode
	HolderName    string
	AccountNumber string
	IFSC          string
	UPIHandle     string
}

// SellerBankDetails stores the seller's verified disbursal details.
type SellerBankDetails struct {
	Mode          PayoutMode
	HolderName    string
	AccountNumber string
	IFSC          string
	UPIHandle     string
	Verified      bool
}

// Seller captures the seller profile fields the payout engine reads.
type Seller struct {
	ID                string
	DisplayName       string
	CommissionPercent decimal.Decimal
	BankDetails       *SellerBankDetails
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Category carries the category-level commission override.
type Category struct {
	ID                string
	Name              string
	CommissionPercent decimal.Decimal
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
