package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/sellerdesk/api/internal/domain"
)

type stubSellerRepo struct {
	findFn func(context.Context, string) (domain.Seller, error)
}

func (s *stubSellerRepo) FindByID(ctx context.Context, sellerID string) (domain.Seller, error) {
	if s.findFn != nil {
		return s.findFn(ctx, sellerID)
	}
	return domain.Seller{}, repoError{notFound: true}
}

type stubCategoryRepo struct {
	findFn func(context.Context, string) (domain.Category, error)
}

func (s *stubCategoryRepo) FindByID(ctx context.Context, categoryID string) (domain.Category, error) {
	if s.findFn != nil {
		return s.findFn(ctx, categoryID)
	}
	return domain.Category{}, repoError{notFound: true}
}

func testResolver(t *testing.T, deps CommissionResolverDeps) CommissionResolver {
	t.Helper()
	if deps.Categories == nil {
		deps.Categories = &stubCategoryRepo{}
	}
	if deps.Sellers == nil {
		deps.Sellers = &stubSellerRepo{}
	}
	if deps.DefaultPercent.IsZero() {
		deps.DefaultPercent = dec("10")
	}
	resolver, err := NewCommissionResolver(deps)
	if err != nil {
		t.Fatalf("NewCommissionResolver: %v", err)
	}
	return resolver
}

func orderWithCategory(categoryID string) Order {
	return Order{
		ID:       "ord_1",
		SellerID: "seller-1",
		Items: []OrderItem{
			{ProductRef: "products/p1", CategoryID: categoryID, Quantity: 1},
			{ProductRef: "products/p2", CategoryID: categoryID, Quantity: 2},
		},
	}
}

func TestResolvePrefersCategoryOverride(t *testing.T) {
	categories := &stubCategoryRepo{
		findFn: func(_ context.Context, categoryID string) (domain.Category, error) {
			if categoryID != "cat-electronics" {
				t.Fatalf("unexpected category lookup %s", categoryID)
			}
			return domain.Category{ID: categoryID, CommissionPercent: dec("15")}, nil
		},
	}
	sellers := &stubSellerRepo{
		findFn: func(context.Context, string) (domain.Seller, error) {
			return domain.Seller{CommissionPercent: dec("8")}, nil
		},
	}
	resolver := testResolver(t, CommissionResolverDeps{Categories: categories, Sellers: sellers})

	percent, err := resolver.Resolve(context.Background(), orderWithCategory("cat-electronics"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !percent.Equal(dec("15")) {
		t.Fatalf("expected 15, got %s", percent)
	}
}

func TestResolveFallsBackToSellerOverride(t *testing.T) {
	sellers := &stubSellerRepo{
		findFn: func(context.Context, string) (domain.Seller, error) {
			return domain.Seller{CommissionPercent: dec("8")}, nil
		},
	}
	resolver := testResolver(t, CommissionResolverDeps{Sellers: sellers})

	// Items span two categories, so no category override applies.
	order := Order{
		SellerID: "seller-1",
		Items: []OrderItem{
			{ProductRef: "products/p1", CategoryID: "cat-a", Quantity: 1},
			{ProductRef: "products/p2", CategoryID: "cat-b", Quantity: 1},
		},
	}
	percent, err := resolver.Resolve(context.Background(), order)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !percent.Equal(dec("8")) {
		t.Fatalf("expected 8, got %s", percent)
	}
}

func TestResolveUsesDefaultWhenNoOverrides(t *testing.T) {
	resolver := testResolver(t, CommissionResolverDeps{})

	percent, err := resolver.Resolve(context.Background(), orderWithCategory("cat-unknown"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !percent.Equal(dec("10")) {
		t.Fatalf("expected default 10, got %s", percent)
	}
}

func TestResolveSwallowsMissingDocuments(t *testing.T) {
	categories := &stubCategoryRepo{
		findFn: func(context.Context, string) (domain.Category, error) {
			return domain.Category{}, repoError{notFound: true}
		},
	}
	sellers := &stubSellerRepo{
		findFn: func(context.Context, string) (domain.Seller, error) {
			return domain.Seller{}, repoError{notFound: true}
		},
	}
	resolver := testResolver(t, CommissionResolverDeps{Categories: categories, Sellers: sellers})

	percent, err := resolver.Resolve(context.Background(), orderWithCategory("cat-deleted"))
	if err != nil {
		t.Fatalf("expected missing documents to fall through, got %v", err)
	}
	if !percent.Equal(dec("10")) {
		t.Fatalf("expected default 10, got %s", percent)
	}
}

func TestResolvePropagatesStorageFailures(t *testing.T) {
	categories := &stubCategoryRepo{
		findFn: func(context.Context, string) (domain.Category, error) {
			return domain.Category{}, errors.New("deadline exceeded")
		},
	}
	resolver := testResolver(t, CommissionResolverDeps{Categories: categories})

	if _, err := resolver.Resolve(context.Background(), orderWithCategory("cat-a")); err == nil {
		t.Fatalf("expected storage failure to propagate")
	}
}

func TestResolveClampsOutOfRangePercentages(t *testing.T) {
	categories := &stubCategoryRepo{
		findFn: func(context.Context, string) (domain.Category, error) {
			return domain.Category{CommissionPercent: dec("150")}, nil
		},
	}
	resolver := testResolver(t, CommissionResolverDeps{Categories: categories})

	percent, err := resolver.Resolve(context.Background(), orderWithCategory("cat-a"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !percent.Equal(dec("100")) {
		t.Fatalf("expected clamp to 100, got %s", percent)
	}
}
