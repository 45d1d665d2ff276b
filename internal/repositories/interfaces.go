package repositories

import (
	"context"
	"time"

	domain "github.com/sellerdesk/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Wallets() WalletRepository
	Payouts() PayoutTransactionRepository
	Sellers() SellerRepository
	Categories() CategoryRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order documents and provides the query helpers the
// earnings and wallet flows depend on.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// FindByIDs loads the given orders, returning IsNotFound when any ID is absent.
	FindByIDs(ctx context.Context, orderIDs []string) ([]domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	// ListEarningsBySeller returns every order for the seller that carries an
	// earnings breakdown. Wallet aggregation reads this as its source of truth.
	ListEarningsBySeller(ctx context.Context, sellerID string) ([]domain.Order, error)
}

// WalletRepository stores the derived per-seller wallet document.
type WalletRepository interface {
	Get(ctx context.Context, sellerID string) (domain.SellerWallet, error)
	// Save overwrites the wallet document, creating it when absent.
	Save(ctx context.Context, wallet domain.SellerWallet) error
}

// PayoutTransactionRepository persists payout batches. Claim, completion, and
// failure are transactional: the payout document and the affected order
// documents move together or not at all.
type PayoutTransactionRepository interface {
	// CreateClaim writes the payout transaction and flips every referenced
	// order to payout status processing in one transaction. It returns
	// IsConflict when any order is already claimed by another transaction.
	CreateClaim(ctx context.Context, req PayoutClaimRequest) (PayoutClaimResult, error)
	// MarkProcessing records that the payment executor picked up the batch.
	MarkProcessing(ctx context.Context, payoutID string, now time.Time) (domain.PayoutTransaction, error)
	// Complete marks the batch completed and the claimed orders paid.
	Complete(ctx context.Context, req PayoutCompleteRequest) (PayoutCompleteResult, error)
	// Fail marks the batch failed and releases the claimed orders back to
	// the eligible pool.
	Fail(ctx context.Context, req PayoutFailRequest) (PayoutFailResult, error)
	FindByID(ctx context.Context, payoutID string) (domain.PayoutTransaction, error)
	ListBySeller(ctx context.Context, sellerID string, filter PayoutListFilter) (domain.CursorPage[domain.PayoutTransaction], error)
	// ListCompletedBySeller returns completed batches without pagination for
	// wallet aggregation.
	ListCompletedBySeller(ctx context.Context, sellerID string) ([]domain.PayoutTransaction, error)
}

// PayoutClaimRequest carries the fully-built transaction and the claim time.
type PayoutClaimRequest struct {
	Transaction domain.PayoutTransaction
	Now         time.Time
}

// PayoutClaimResult returns the stored transaction and the claimed orders.
type PayoutClaimResult struct {
	Transaction domain.PayoutTransaction
	Orders      []domain.Order
}

// PayoutCompleteRequest finalises a batch after the executor confirms disbursal.
type PayoutCompleteRequest struct {
	PayoutID string
	Now      time.Time
}

// PayoutCompleteResult reports the completed transaction and updated orders.
type PayoutCompleteResult struct {
	Transaction domain.PayoutTransaction
	Orders      []domain.Order
}

// PayoutFailRequest records an executor failure and releases the claim.
type PayoutFailRequest struct {
	PayoutID string
	Reason   string
	Now      time.Time
}

// PayoutFailResult reports the failed transaction and released orders.
type PayoutFailResult struct {
	Transaction domain.PayoutTransaction
	Orders      []domain.Order
}

// SellerRepository reads seller profiles for commission and destination lookup.
type SellerRepository interface {
	FindByID(ctx context.Context, sellerID string) (domain.Seller, error)
}

// CategoryRepository reads category documents for commission overrides.
type CategoryRepository interface {
	FindByID(ctx context.Context, categoryID string) (domain.Category, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

type OrderListFilter struct {
	SellerID     string
	BuyerID      string
	Status       []string
	PayoutStatus []string
	DateRange    domain.RangeQuery[time.Time]
	Pagination   domain.Pagination
}

type PayoutListFilter struct {
	Status     []string
	Pagination domain.Pagination
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
