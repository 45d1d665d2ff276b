package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/sellerdesk/api/internal/domain"
	pfirestore "github.com/sellerdesk/api/internal/platform/firestore"
)

const walletsCollection = "sellerWallets"

// WalletRepository stores the derived per-seller wallet document keyed by seller ID.
type WalletRepository struct {
	base *pfirestore.BaseRepository[walletDocument]
}

// NewWalletRepository constructs a Firestore-backed wallet repository.
func NewWalletRepository(provider *pfirestore.Provider) (*WalletRepository, error) {
	if provider == nil {
		return nil, errors.New("wallet repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[walletDocument](provider, walletsCollection)
	return &WalletRepository{base: base}, nil
}

// Get fetches the wallet for the seller.
func (r *WalletRepository) Get(ctx context.Context, sellerID string) (domain.SellerWallet, error) {
	if r == nil || r.base == nil {
		return domain.SellerWallet{}, errors.New("wallet repository not initialised")
	}
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return domain.SellerWallet{}, errors.New("wallet repository: seller id is required")
	}
	doc, err := r.base.Get(ctx, sellerID)
	if err != nil {
		return domain.SellerWallet{}, err
	}
	return decodeWalletDocument(sellerID, doc.Data), nil
}

// Save overwrites the wallet document, creating it when absent. The wallet is
// a derived view so a plain upsert is always safe.
func (r *WalletRepository) Save(ctx context.Context, wallet domain.SellerWallet) error {
	if r == nil || r.base == nil {
		return errors.New("wallet repository not initialised")
	}
	sellerID := strings.TrimSpace(wallet.SellerID)
	if sellerID == "" {
		return errors.New("wallet repository: seller id is required")
	}
	return r.base.Set(ctx, sellerID, encodeWalletDocument(wallet))
}

type walletDocument struct {
	SellerID        string     `firestore:"sellerId"`
	PendingAmount   float64    `firestore:"pendingAmount"`
	UpcomingPayout  float64    `firestore:"upcomingPayout"`
	CompletedPayout float64    `firestore:"completedPayout"`
	TotalEarnings   float64    `firestore:"totalEarnings"`
	PendingOrders   int        `firestore:"pendingOrders"`
	UpcomingOrders  int        `firestore:"upcomingOrders"`
	PaidOrders      int        `firestore:"paidOrders"`
	LastPayoutAt    *time.Time `firestore:"lastPayoutAt,omitempty"`
	NextPayoutAt    *time.Time `firestore:"nextPayoutAt,omitempty"`
	RefreshedAt     time.Time  `firestore:"refreshedAt"`
}

func encodeWalletDocument(wallet domain.SellerWallet) walletDocument {
	return walletDocument{
		SellerID:        strings.TrimSpace(wallet.SellerID),
		PendingAmount:   encodeAmount(wallet.PendingAmount),
		UpcomingPayout:  encodeAmount(wallet.UpcomingPayout),
		CompletedPayout: encodeAmount(wallet.CompletedPayout),
		TotalEarnings:   encodeAmount(wallet.TotalEarnings),
		PendingOrders:   wallet.PendingOrders,
		UpcomingOrders:  wallet.UpcomingOrders,
		PaidOrders:      wallet.PaidOrders,
		LastPayoutAt:    normalizeTimePointer(wallet.LastPayoutAt),
		NextPayoutAt:    normalizeTimePointer(wallet.NextPayoutAt),
		RefreshedAt:     wallet.RefreshedAt.UTC(),
	}
}

func decodeWalletDocument(sellerID string, doc walletDocument) domain.SellerWallet {
	return domain.SellerWallet{
		SellerID:        strings.TrimSpace(sellerID),
		PendingAmount:   decodeAmount(doc.PendingAmount),
		UpcomingPayout:  decodeAmount(doc.UpcomingPayout),
		CompletedPayout: decodeAmount(doc.CompletedPayout),
		TotalEarnings:   decodeAmount(doc.TotalEarnings),
		PendingOrders:   doc.PendingOrders,
		UpcomingOrders:  doc.UpcomingOrders,
		PaidOrders:      doc.PaidOrders,
		LastPayoutAt:    normalizeTimePointer(doc.LastPayoutAt),
		NextPayoutAt:    normalizeTimePointer(doc.NextPayoutAt),
		RefreshedAt:     doc.RefreshedAt.UTC(),
	}
}
