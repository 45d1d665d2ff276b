package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/sellerdesk/api/internal/domain"
	pfirestore "github.com/sellerdesk/api/internal/platform/firestore"
)

const sellersCollection = "sellers"

// SellerRepository reads seller profiles for commission and destination lookup.
type SellerRepository struct {
	base *pfirestore.BaseRepository[sellerDocument]
}

// NewSellerRepository constructs a Firestore-backed seller repository.
func NewSellerRepository(provider *pfirestore.Provider) (*SellerRepository, error) {
	if provider == nil {
		return nil, errors.New("seller repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[sellerDocument](provider, sellersCollection)
	return &SellerRepository{base: base}, nil
}

// FindByID fetches a single seller profile.
func (r *SellerRepository) FindByID(ctx context.Context, sellerID string) (domain.Seller, error) {
	if r == nil || r.base == nil {
		return domain.Seller{}, errors.New("seller repository not initialised")
	}
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return domain.Seller{}, errors.New("seller repository: seller id is required")
	}
	doc, err := r.base.Get(ctx, sellerID)
	if err != nil {
		return domain.Seller{}, err
	}
	return decodeSellerDocument(sellerID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

type sellerDocument struct {
	DisplayName       string         `firestore:"displayName"`
	CommissionPercent float64        `firestore:"commissionPercent"`
	BankDetails       *sellerBankDoc `firestore:"bankDetails,omitempty"`
	Active            bool           `firestore:"active"`
	CreatedAt         time.Time      `firestore:"createdAt"`
	UpdatedAt         time.Time      `firestore:"updatedAt"`
}

type sellerBankDoc struct {
	Mode          string `firestore:"mode"`
	HolderName    string `firestore:"holderName,omitempty"`
	AccountNumber string `firestore:"accountNumber,omitempty"`
	IFSC          string `firestore:"ifsc,omitempty"`
	UPIHandle     string `firestore:"upiHandle,omitempty"`
	Verified      bool   `firestore:"verified"`
}

func decodeSellerDocument(id string, doc sellerDocument, createdAt, updatedAt time.Time) domain.Seller {
	seller := domain.Seller{
		ID:                strings.TrimSpace(id),
		DisplayName:       strings.TrimSpace(doc.DisplayName),
		CommissionPercent: decodeAmount(doc.CommissionPercent),
		Active:            doc.Active,
		CreatedAt:         chooseTime(doc.CreatedAt, createdAt),
		UpdatedAt:         chooseTime(doc.UpdatedAt, updatedAt),
	}
	if doc.BankDetails != nil {
		seller.BankDetails = &domain.SellerBankDetails{
			Mode:          domain.PayoutMode(strings.TrimSpace(doc.BankDetails.Mode)),
			HolderName:    strings.TrimSpace(doc.BankDetails.HolderName),
			AccountNumber: strings.TrimSpace(doc.BankDetails.AccountNumber),
			IFSC:          strings.TrimSpace(doc.BankDetails.IFSC),
			UPIHandle:     strings.TrimSpace(doc.BankDetails.UPIHandle),
			Verified:      doc.BankDetails.Verified,
		}
	}
	return seller
}
