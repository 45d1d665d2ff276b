package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/sellerdesk/api/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// EarningsCalculatorDeps configures the earnings pipeline.
type EarningsCalculatorDeps struct {
	Resolver CommissionResolver
	// ReturnWindowDays is the hold period between delivery and payout
	// eligibility.
	ReturnWindowDays int
	// CommissionTaxPercent is the GST rate applied to the commission amount,
	// split evenly into CGST and SGST.
	CommissionTaxPercent decimal.Decimal
	Clock                func() time.Time
}

type earningsCalculator struct {
	resolver   CommissionResolver
	window     time.Duration
	taxPercent decimal.Decimal
	clock      func() time.Time
}

// NewEarningsCalculator builds the calculator invoked on delivery and on
// explicit recalculation.
func NewEarningsCalculator(deps EarningsCalculatorDeps) (EarningsCalculator, error) {
	if deps.Resolver == nil {
		return nil, errors.New("earnings calculator requires commission resolver")
	}
	if deps.ReturnWindowDays < 0 {
		return nil, errors.New("earnings calculator return window must not be negative")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	taxPercent := deps.CommissionTaxPercent
	if taxPercent.IsNegative() {
		return nil, errors.New("earnings calculator tax percent must not be negative")
	}
	return &earningsCalculator{
		resolver:   deps.Resolver,
		window:     time.Duration(deps.ReturnWindowDays) * 24 * time.Hour,
		taxPercent: taxPercent,
		clock:      func() time.Time { return clock().UTC() },
	}, nil
}

// Calculate produces the earnings breakdown for an order. Each monetary
// component is rounded to two decimal places independently before the net is
// derived, so the stored fields always sum exactly to the stored net. The
// net is allowed to go negative: commission, tax, shipping, and penalty are
// owed regardless of the order value.
//
// Payout scheduling happens exactly once: the first calculation holds the
// earning until the return window elapses, while recalculations leave any
// existing payout record untouched so a claimed or completed payout is never
// rewound.
func (c *earningsCalculator) Calculate(ctx context.Context, order Order, deliveredAt time.Time) (OrderEarnings, OrderPayout, error) {
	percent, err := c.resolver.Resolve(ctx, order)
	if err != nil {
		return OrderEarnings{}, OrderPayout{}, fmt.Errorf("resolve commission: %w", err)
	}

	itemsTotal := order.Pricing.ItemsTotal.Round(2)
	commission := itemsTotal.Mul(percent).Div(hundred).Round(2)
	halfTax := c.taxPercent.Div(decimal.NewFromInt(2))
	cgst := commission.Mul(halfTax).Div(hundred).Round(2)
	sgst := cgst
	shipping := order.Pricing.ShippingCharge.Round(2)

	penalty := decimal.Zero
	if order.Earnings != nil {
		penalty = order.Earnings.Penalty.Round(2)
	}

	net := itemsTotal.
		Sub(commission).
		Sub(shipping).
		Sub(cgst).
		Sub(sgst).
		Sub(penalty).
		Round(2)

	earnings := OrderEarnings{
		CommissionPercent: percent,
		CommissionAmount:  commission,
		ShippingCost:      shipping,
		CGST:              cgst,
		SGST:              sgst,
		TotalTax:          cgst.Add(sgst),
		Penalty:           penalty,
		NetSellerEarning:  net,
		CalculatedAt:      c.clock(),
		Stale:             false,
	}

	payout := order.Payout
	if payout.Status == domain.PayoutStatusNone {
		eligibleAt := deliveredAt.UTC().Add(c.window)
		payout = OrderPayout{
			Status:     domain.PayoutStatusHeld,
			EligibleAt: &eligibleAt,
		}
	}
	return earnings, payout, nil
}
