package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/sellerdesk/api/internal/platform/firestore"
	"github.com/sellerdesk/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the
// repositories.Registry contract.
type Registry struct {
	provider   *pfirestore.Provider
	orders     *OrderRepository
	wallets    *WalletRepository
	payouts    *PayoutTransactionRepository
	sellers    *SellerRepository
	categories *CategoryRepository
	counters   *CounterRepository
	health     repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires every Firestore repository against the shared provider.
// The health repository is injected because its probe set is assembled at
// process start.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry: firestore provider is required")
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	wallets, err := NewWalletRepository(provider)
	if err != nil {
		return nil, err
	}
	payouts, err := NewPayoutTransactionRepository(provider)
	if err != nil {
		return nil, err
	}
	sellers, err := NewSellerRepository(provider)
	if err != nil {
		return nil, err
	}
	categories, err := NewCategoryRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}
	return &Registry{
		provider:   provider,
		orders:     orders,
		wallets:    wallets,
		payouts:    payouts,
		sellers:    sellers,
		categories: categories,
		counters:   counters,
		health:     health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) Wallets() repositories.WalletRepository { return r.wallets }

func (r *Registry) Payouts() repositories.PayoutTransactionRepository { return r.payouts }

func (r *Registry) Sellers() repositories.SellerRepository { return r.sellers }

func (r *Registry) Categories() repositories.CategoryRepository { return r.categories }

func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx executes fn directly. Multi-document writes that must be atomic
// (payout claim, completion, failure) are owned by the payout repository,
// which runs its own Firestore transactions.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}
