package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/sellerdesk/api/internal/domain"
	pfirestore "github.com/sellerdesk/api/internal/platform/firestore"
)

const categoriesCollection = "categories"

// CategoryRepository reads category documents for commission overrides.
type CategoryRepository struct {
	base *pfirestore.BaseRepository[categoryDocument]
}

// NewCategoryRepository constructs a Firestore-backed category repository.
func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[categoryDocument](provider, categoriesCollection)
	return &CategoryRepository{base: base}, nil
}

// FindByID fetches a single category.
func (r *CategoryRepository) FindByID(ctx context.Context, categoryID string) (domain.Category, error) {
	if r == nil || r.base == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return domain.Category{}, errors.New("category repository: category id is required")
	}
	doc, err := r.base.Get(ctx, categoryID)
	if err != nil {
		return domain.Category{}, err
	}
	return domain.Category{
		ID:                categoryID,
		Name:              strings.TrimSpace(doc.Data.Name),
		CommissionPercent: decodeAmount(doc.Data.CommissionPercent),
	}, nil
}

type categoryDocument struct {
	Name              string  `firestore:"name"`
	CommissionPercent float64 `firestore:"commissionPercent"`
}
