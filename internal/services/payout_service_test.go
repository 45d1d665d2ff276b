package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/sellerdesk/api/internal/domain"
	"github.com/sellerdesk/api/internal/repositories"
)

type capturePayoutEvents struct {
	requested []PayoutTransaction
	completed []PayoutTransaction
	failed    []PayoutTransaction
}

func (c *capturePayoutEvents) PublishPayoutRequested(_ context.Context, txn PayoutTransaction) error {
	c.requested = append(c.requested, txn)
	return nil
}

func (c *capturePayoutEvents) PublishPayoutCompleted(_ context.Context, txn PayoutTransaction) error {
	c.completed = append(c.completed, txn)
	return nil
}

func (c *capturePayoutEvents) PublishPayoutFailed(_ context.Context, txn PayoutTransaction) error {
	c.failed = append(c.failed, txn)
	return nil
}

func verifiedSeller() domain.Seller {
	return domain.Seller{
		ID:          "seller-1",
		DisplayName: "Acme Traders",
		Active:      true,
		BankDetails: &domain.SellerBankDetails{
			Mode:          domain.PayoutModeBank,
			HolderName:    "Acme Traders",
			AccountNumber: "1234567890",
			IFSC:          "HDFC0000001",
			Verified:      true,
		},
	}
}

func testPayoutService(t *testing.T, deps PayoutServiceDeps) PayoutService {
	t.Helper()
	if deps.Payouts == nil {
		deps.Payouts = &stubPayoutRepo{}
	}
	if deps.Orders == nil {
		deps.Orders = &stubOrderRepo{}
	}
	if deps.Sellers == nil {
		deps.Sellers = &stubSellerRepo{
			findFn: func(context.Context, string) (domain.Seller, error) {
				return verifiedSeller(), nil
			},
		}
	}
	if deps.Counters == nil {
		deps.Counters = &stubCounterRepo{
			nextFn: func(context.Context, string, int64) (int64, error) { return 7, nil },
		}
	}
	if deps.Clock == nil {
		deps.Clock = fixedClock(time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC))
	}
	if deps.IDGen == nil {
		deps.IDGen = func() string { return "pay_000001" }
	}
	svc, err := NewPayoutService(deps)
	if err != nil {
		t.Fatalf("NewPayoutService: %v", err)
	}
	return svc
}

func claimableOrder(id, net string) domain.Order {
	deliveredAt := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	eligibleAt := deliveredAt.Add(7 * 24 * time.Hour)
	return domain.Order{
		ID:          id,
		OrderNumber: "SD-2024-000001",
		SellerID:    "seller-1",
		Status:      domain.OrderStatusDelivered,
		DeliveredAt: &deliveredAt,
		Earnings:    &domain.OrderEarnings{NetSellerEarning: dec(net)},
		Payout:      domain.OrderPayout{Status: domain.PayoutStatusHeld, EligibleAt: &eligibleAt},
	}
}

func TestRequestPayoutClaimsEligibleOrders(t *testing.T) {
	orders := &stubOrderRepo{
		listEarningsFn: func(context.Context, string) ([]domain.Order, error) {
			held := claimableOrder("ord_1", "842")
			// Still inside the return window: must not be claimed.
			pending := claimableOrder("ord_2", "500")
			futureEligible := time.Date(2024, 3, 25, 12, 0, 0, 0, time.UTC)
			pending.Payout.EligibleAt = &futureEligible
			// Already claimed by another batch.
			claimed := claimableOrder("ord_3", "300")
			claimed.Payout.Status = domain.PayoutStatusProcessing
			claimed.Payout.TransactionRef = "pay_other"
			ready := claimableOrder("ord_4", "250")
			ready.Payout = domain.OrderPayout{Status: domain.PayoutStatusReady}
			return []domain.Order{held, pending, claimed, ready}, nil
		},
	}
	var claim repositories.PayoutClaimRequest
	payouts := &stubPayoutRepo{
		createClaimFn: func(_ context.Context, req repositories.PayoutClaimRequest) (repositories.PayoutClaimResult, error) {
			claim = req
			return repositories.PayoutClaimResult{Transaction: req.Transaction}, nil
		},
	}
	events := &capturePayoutEvents{}
	svc := testPayoutService(t, PayoutServiceDeps{Orders: orders, Payouts: payouts, Publisher: events})

	txn, err := svc.RequestPayout(context.Background(), RequestPayoutCommand{SellerID: "seller-1", ActorID: "seller-1"})
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}
	if txn.Number != "PO-2024-000007" {
		t.Fatalf("unexpected payout number %s", txn.Number)
	}
	if len(txn.OrderIDs) != 2 || txn.OrderIDs[0] != "ord_1" || txn.OrderIDs[1] != "ord_4" {
		t.Fatalf("expected ord_1 and ord_4 claimed, got %v", txn.OrderIDs)
	}
	if !txn.Amount.Equal(dec("1092")) {
		t.Fatalf("expected amount 1092, got %s", txn.Amount)
	}
	if len(txn.Breakdown) != 2 || !txn.Breakdown[0].NetEarning.Equal(dec("842")) {
		t.Fatalf("unexpected breakdown %+v", txn.Breakdown)
	}
	if txn.Destination.Mode != domain.PayoutModeBank || txn.Destination.AccountNumber != "1234567890" {
		t.Fatalf("expected destination snapshot, got %+v", txn.Destination)
	}
	if txn.Status != domain.PayoutTransactionPending {
		t.Fatalf("expected pending status, got %s", txn.Status)
	}
	if claim.Transaction.ID != "pay_000001" {
		t.Fatalf("expected claim request for pay_000001, got %+v", claim.Transaction)
	}
	if len(events.requested) != 1 {
		t.Fatalf("expected one requested event, got %d", len(events.requested))
	}
}

func TestRequestPayoutWithExplicitOrders(t *testing.T) {
	orders := &stubOrderRepo{
		findByIDsFn: func(_ context.Context, orderIDs []string) ([]domain.Order, error) {
			if len(orderIDs) != 1 || orderIDs[0] != "ord_1" {
				t.Fatalf("unexpected lookup %v", orderIDs)
			}
			return []domain.Order{claimableOrder("ord_1", "842")}, nil
		},
	}
	svc := testPayoutService(t, PayoutServiceDeps{Orders: orders})

	txn, err := svc.RequestPayout(context.Background(), RequestPayoutCommand{
		SellerID: "seller-1",
		OrderIDs: []string{"ord_1", " ord_1 "},
		ActorID:  "seller-1",
	})
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}
	if len(txn.OrderIDs) != 1 {
		t.Fatalf("expected deduplicated claim, got %v", txn.OrderIDs)
	}
}

func TestRequestPayoutRejectsUnclaimableExplicitOrder(t *testing.T) {
	orders := &stubOrderRepo{
		findByIDsFn: func(context.Context, []string) ([]domain.Order, error) {
			order := claimableOrder("ord_1", "842")
			order.Payout.Status = domain.PayoutStatusPaid
			return []domain.Order{order}, nil
		},
	}
	svc := testPayoutService(t, PayoutServiceDeps{Orders: orders})

	_, err := svc.RequestPayout(context.Background(), RequestPayoutCommand{
		SellerID: "seller-1",
		OrderIDs: []string{"ord_1"},
	})
	if !errors.Is(err, ErrPayoutInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestRequestPayoutNoEligibleOrders(t *testing.T) {
	svc := testPayoutService(t, PayoutServiceDeps{})

	_, err := svc.RequestPayout(context.Background(), RequestPayoutCommand{SellerID: "seller-1"})
	if !errors.Is(err, ErrPayoutNoEligibleOrders) {
		t.Fatalf("expected no eligible orders, got %v", err)
	}
}

func TestRequestPayoutRequiresVerifiedSeller(t *testing.T) {
	inactive := verifiedSeller()
	inactive.Active = false
	unverified := verifiedSeller()
	unverified.BankDetails.Verified = false

	for name, seller := range map[string]domain.Seller{"inactive": inactive, "unverified": unverified} {
		sellers := &stubSellerRepo{
			findFn: func(context.Context, string) (domain.Seller, error) { return seller, nil },
		}
		svc := testPayoutService(t, PayoutServiceDeps{Sellers: sellers})

		_, err := svc.RequestPayout(context.Background(), RequestPayoutCommand{SellerID: "seller-1"})
		if !errors.Is(err, ErrPayoutSellerIneligible) {
			t.Fatalf("%s: expected ineligible seller, got %v", name, err)
		}
	}
}

func TestRequestPayoutBelowMinimum(t *testing.T) {
	orders := &stubOrderRepo{
		listEarningsFn: func(context.Context, string) ([]domain.Order, error) {
			return []domain.Order{claimableOrder("ord_1", "50")}, nil
		},
	}
	svc := testPayoutService(t, PayoutServiceDeps{Orders: orders, MinAmount: dec("100")})

	_, err := svc.RequestPayout(context.Background(), RequestPayoutCommand{SellerID: "seller-1"})
	if !errors.Is(err, ErrPayoutBelowMinimum) {
		t.Fatalf("expected below minimum, got %v", err)
	}
}

func TestRequestPayoutDoubleClaimConflicts(t *testing.T) {
	orders := &stubOrderRepo{
		listEarningsFn: func(context.Context, string) ([]domain.Order, error) {
			return []domain.Order{claimableOrder("ord_1", "842")}, nil
		},
	}
	payouts := &stubPayoutRepo{
		createClaimFn: func(context.Context, repositories.PayoutClaimRequest) (repositories.PayoutClaimResult, error) {
			return repositories.PayoutClaimResult{}, repoError{conflict: true}
		},
	}
	svc := testPayoutService(t, PayoutServiceDeps{Orders: orders, Payouts: payouts})

	_, err := svc.RequestPayout(context.Background(), RequestPayoutCommand{SellerID: "seller-1"})
	if !errors.Is(err, ErrPayoutConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCompletePayoutPublishesEvent(t *testing.T) {
	now := time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)
	payouts := &stubPayoutRepo{
		completeFn: func(_ context.Context, req repositories.PayoutCompleteRequest) (repositories.PayoutCompleteResult, error) {
			if req.PayoutID != "pay_1" || !req.Now.Equal(now) {
				t.Fatalf("unexpected complete request %+v", req)
			}
			return repositories.PayoutCompleteResult{
				Transaction: domain.PayoutTransaction{ID: "pay_1", Status: domain.PayoutTransactionCompleted, CompletedAt: &now},
			}, nil
		},
	}
	events := &capturePayoutEvents{}
	svc := testPayoutService(t, PayoutServiceDeps{Payouts: payouts, Publisher: events, Clock: fixedClock(now)})

	txn, err := svc.CompletePayout(context.Background(), CompletePayoutCommand{PayoutID: "pay_1", ActorID: "executor"})
	if err != nil {
		t.Fatalf("CompletePayout: %v", err)
	}
	if txn.Status != domain.PayoutTransactionCompleted {
		t.Fatalf("expected completed, got %s", txn.Status)
	}
	if len(events.completed) != 1 {
		t.Fatalf("expected one completed event, got %d", len(events.completed))
	}
}

func TestFailPayoutRequiresReason(t *testing.T) {
	svc := testPayoutService(t, PayoutServiceDeps{})

	_, err := svc.FailPayout(context.Background(), FailPayoutCommand{PayoutID: "pay_1"})
	if !errors.Is(err, ErrPayoutInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestFailPayoutReleasesClaim(t *testing.T) {
	payouts := &stubPayoutRepo{
		failFn: func(_ context.Context, req repositories.PayoutFailRequest) (repositories.PayoutFailResult, error) {
			if req.Reason != "bank rejected transfer" {
				t.Fatalf("unexpected reason %q", req.Reason)
			}
			return repositories.PayoutFailResult{
				Transaction: domain.PayoutTransaction{ID: req.PayoutID, Status: domain.PayoutTransactionFailed, FailureReason: req.Reason},
			}, nil
		},
	}
	events := &capturePayoutEvents{}
	svc := testPayoutService(t, PayoutServiceDeps{Payouts: payouts, Publisher: events})

	txn, err := svc.FailPayout(context.Background(), FailPayoutCommand{PayoutID: "pay_1", Reason: "bank rejected transfer"})
	if err != nil {
		t.Fatalf("FailPayout: %v", err)
	}
	if txn.Status != domain.PayoutTransactionFailed {
		t.Fatalf("expected failed, got %s", txn.Status)
	}
	if len(events.failed) != 1 {
		t.Fatalf("expected one failed event, got %d", len(events.failed))
	}
}

func TestMarkProcessingDelegates(t *testing.T) {
	payouts := &stubPayoutRepo{
		markProcessingFn: func(_ context.Context, payoutID string, _ time.Time) (domain.PayoutTransaction, error) {
			return domain.PayoutTransaction{ID: payoutID, Status: domain.PayoutTransactionProcessing}, nil
		},
	}
	svc := testPayoutService(t, PayoutServiceDeps{Payouts: payouts})

	txn, err := svc.MarkProcessing(context.Background(), PayoutProcessingCommand{PayoutID: "pay_1", ActorID: "executor"})
	if err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if txn.Status != domain.PayoutTransactionProcessing {
		t.Fatalf("expected processing, got %s", txn.Status)
	}
}

func TestGetPayoutMapsNotFound(t *testing.T) {
	payouts := &stubPayoutRepo{
		findFn: func(context.Context, string) (domain.PayoutTransaction, error) {
			return domain.PayoutTransaction{}, repoError{notFound: true}
		},
	}
	svc := testPayoutService(t, PayoutServiceDeps{Payouts: payouts})

	_, err := svc.GetPayout(context.Background(), "pay_missing")
	if !errors.Is(err, ErrPayoutNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
