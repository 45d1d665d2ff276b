package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/sellerdesk/api/internal/domain"
)

type staticResolver struct {
	percent decimal.Decimal
	err     error
}

func (r staticResolver) Resolve(context.Context, Order) (decimal.Decimal, error) {
	return r.percent, r.err
}

func testCalculator(t *testing.T, resolver CommissionResolver) EarningsCalculator {
	t.Helper()
	calc, err := NewEarningsCalculator(EarningsCalculatorDeps{
		Resolver:             resolver,
		ReturnWindowDays:     7,
		CommissionTaxPercent: dec("18"),
		Clock:                fixedClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("NewEarningsCalculator: %v", err)
	}
	return calc
}

func TestCalculateBreaksDownEarnings(t *testing.T) {
	calc := testCalculator(t, staticResolver{percent: dec("10")})
	deliveredAt := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	order := Order{
		ID: "ord_1",
		Pricing: OrderPricing{
			ItemsTotal:     dec("1000"),
			ShippingCharge: dec("40"),
		},
	}

	earnings, payout, err := calc.Calculate(context.Background(), order, deliveredAt)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !earnings.CommissionAmount.Equal(dec("100")) {
		t.Fatalf("expected commission 100, got %s", earnings.CommissionAmount)
	}
	if !earnings.CGST.Equal(dec("9")) || !earnings.SGST.Equal(dec("9")) {
		t.Fatalf("expected CGST and SGST of 9, got %s and %s", earnings.CGST, earnings.SGST)
	}
	if !earnings.TotalTax.Equal(dec("18")) {
		t.Fatalf("expected total tax 18, got %s", earnings.TotalTax)
	}
	if !earnings.NetSellerEarning.Equal(dec("842")) {
		t.Fatalf("expected net 842, got %s", earnings.NetSellerEarning)
	}
	if earnings.Stale {
		t.Fatalf("fresh calculation must not be stale")
	}
	if payout.Status != domain.PayoutStatusHeld {
		t.Fatalf("expected held payout, got %s", payout.Status)
	}
	wantEligible := deliveredAt.Add(7 * 24 * time.Hour)
	if payout.EligibleAt == nil || !payout.EligibleAt.Equal(wantEligible) {
		t.Fatalf("expected eligibleAt %s, got %v", wantEligible, payout.EligibleAt)
	}
}

func TestCalculateAllowsNegativeNet(t *testing.T) {
	calc := testCalculator(t, staticResolver{percent: dec("10")})
	order := Order{
		Pricing: OrderPricing{
			ItemsTotal:     dec("50"),
			ShippingCharge: dec("60"),
		},
	}

	earnings, _, err := calc.Calculate(context.Background(), order, time.Now())
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	// 50 - 5 - 60 - 0.45 - 0.45 = -15.90; fees are owed regardless of value.
	if !earnings.NetSellerEarning.Equal(dec("-15.9")) {
		t.Fatalf("expected net -15.90, got %s", earnings.NetSellerEarning)
	}
}

func TestCalculateCarriesPenaltyForward(t *testing.T) {
	calc := testCalculator(t, staticResolver{percent: dec("10")})
	order := Order{
		Pricing: OrderPricing{
			ItemsTotal:     dec("1000"),
			ShippingCharge: dec("40"),
		},
		Earnings: &OrderEarnings{Penalty: dec("50")},
	}

	earnings, _, err := calc.Calculate(context.Background(), order, time.Now())
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !earnings.Penalty.Equal(dec("50")) {
		t.Fatalf("expected penalty 50, got %s", earnings.Penalty)
	}
	if !earnings.NetSellerEarning.Equal(dec("792")) {
		t.Fatalf("expected net 792, got %s", earnings.NetSellerEarning)
	}
}

func TestCalculateSchedulesPayoutExactlyOnce(t *testing.T) {
	calc := testCalculator(t, staticResolver{percent: dec("10")})
	deliveredAt := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	eligibleAt := deliveredAt.Add(7 * 24 * time.Hour)
	order := Order{
		Pricing: OrderPricing{ItemsTotal: dec("1000")},
		Payout: OrderPayout{
			Status:         domain.PayoutStatusProcessing,
			EligibleAt:     &eligibleAt,
			TransactionRef: "pay_1",
		},
	}

	_, payout, err := calc.Calculate(context.Background(), order, deliveredAt.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if payout.Status != domain.PayoutStatusProcessing || payout.TransactionRef != "pay_1" {
		t.Fatalf("expected claimed payout preserved, got %+v", payout)
	}
	if !payout.EligibleAt.Equal(eligibleAt) {
		t.Fatalf("expected original eligibleAt preserved, got %v", payout.EligibleAt)
	}
}

func TestCalculateIsIdempotent(t *testing.T) {
	calc := testCalculator(t, staticResolver{percent: dec("10")})
	deliveredAt := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	order := Order{
		Pricing: OrderPricing{
			ItemsTotal:     dec("1000"),
			ShippingCharge: dec("40"),
		},
	}

	first, payout, err := calc.Calculate(context.Background(), order, deliveredAt)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	order.Earnings = &first
	order.Payout = payout

	second, _, err := calc.Calculate(context.Background(), order, deliveredAt)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !second.NetSellerEarning.Equal(first.NetSellerEarning) {
		t.Fatalf("expected stable net, got %s then %s", first.NetSellerEarning, second.NetSellerEarning)
	}
}

func TestCalculatePropagatesResolverFailure(t *testing.T) {
	expected := errors.New("firestore unavailable")
	calc := testCalculator(t, staticResolver{err: expected})

	_, _, err := calc.Calculate(context.Background(), Order{}, time.Now())
	if !errors.Is(err, expected) {
		t.Fatalf("expected resolver error, got %v", err)
	}
}
