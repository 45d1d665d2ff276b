package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sellerdesk/api/internal/repositories"
)

var percentCeiling = decimal.NewFromInt(100)

// CommissionResolverDeps wires the lookups used during commission resolution.
type CommissionResolverDeps struct {
	Categories repositories.CategoryRepository
	Sellers    repositories.SellerRepository
	// DefaultPercent applies when neither category nor seller carries an
	// override.
	DefaultPercent decimal.Decimal
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

type commissionResolver struct {
	categories     repositories.CategoryRepository
	sellers        repositories.SellerRepository
	defaultPercent decimal.Decimal
	logger         func(ctx context.Context, event string, fields map[string]any)
}

// NewCommissionResolver builds the resolver used by the earnings pipeline.
func NewCommissionResolver(deps CommissionResolverDeps) (CommissionResolver, error) {
	if deps.Categories == nil {
		return nil, errors.New("commission resolver requires category repository")
	}
	if deps.Sellers == nil {
		return nil, errors.New("commission resolver requires seller repository")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &commissionResolver{
		categories:     deps.Categories,
		sellers:        deps.Sellers,
		defaultPercent: clampPercent(deps.DefaultPercent),
		logger:         logger,
	}, nil
}

// Resolve returns the commission percentage for the order. A category override
// wins when every item shares one category; a seller override wins next; the
// platform default closes the chain. Missing documents fall through rather
// than fail, so a stale category reference never blocks delivery.
func (r *commissionResolver) Resolve(ctx context.Context, order Order) (decimal.Decimal, error) {
	if categoryID := sharedCategoryID(order.Items); categoryID != "" {
		category, err := r.categories.FindByID(ctx, categoryID)
		switch {
		case err == nil:
			if category.CommissionPercent.IsPositive() {
				return clampPercent(category.CommissionPercent), nil
			}
		case isNotFoundError(err):
			r.logger(ctx, "commission.category_missing", map[string]any{
				"orderId":    order.ID,
				"categoryId": categoryID,
			})
		default:
			return decimal.Zero, fmt.Errorf("resolve category commission: %w", err)
		}
	}

	sellerID := strings.TrimSpace(order.SellerID)
	if sellerID != "" {
		seller, err := r.sellers.FindByID(ctx, sellerID)
		switch {
		case err == nil:
			if seller.CommissionPercent.IsPositive() {
				return clampPercent(seller.CommissionPercent), nil
			}
		case isNotFoundError(err):
			r.logger(ctx, "commission.seller_missing", map[string]any{
				"orderId":  order.ID,
				"sellerId": sellerID,
			})
		default:
			return decimal.Zero, fmt.Errorf("resolve seller commission: %w", err)
		}
	}

	return r.defaultPercent, nil
}

// sharedCategoryID returns the category shared by every item, or empty when
// items span categories or carry none.
func sharedCategoryID(items []OrderItem) string {
	shared := ""
	for _, item := range items {
		categoryID := strings.TrimSpace(item.CategoryID)
		if categoryID == "" {
			return ""
		}
		if shared == "" {
			shared = categoryID
			continue
		}
		if shared != categoryID {
			return ""
		}
	}
	return shared
}

func clampPercent(value decimal.Decimal) decimal.Decimal {
	if value.IsNegative() {
		return decimal.Zero
	}
	if value.GreaterThan(percentCeiling) {
		return percentCeiling
	}
	return value
}

func isNotFoundError(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}
