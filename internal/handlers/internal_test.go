package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/sellerdesk/api/internal/domain"
	"github.com/sellerdesk/api/internal/services"
)

func newInternalRouter(orders services.OrderService, payouts services.PayoutService) chi.Router {
	h := NewInternalHandlers(orders, payouts)
	r := chi.NewRouter()
	r.Route("/internal", h.Routes)
	return r
}

func TestInternalMarkProcessingEndpoint(t *testing.T) {
	var captured services.PayoutProcessingCommand
	payouts := &stubPayoutService{
		processFn: func(_ context.Context, cmd services.PayoutProcessingCommand) (services.PayoutTransaction, error) {
			captured = cmd
			txn := samplePayout()
			txn.Status = domain.PayoutTransactionProcessing
			return txn, nil
		},
	}
	router := newInternalRouter(&stubOrderService{}, payouts)

	body := `{"actor_id": "executor"}`
	req := httptest.NewRequest(http.MethodPost, "/internal/payouts/pay_000001:process", strings.NewReader(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.PayoutID != "pay_000001" || captured.ActorID != "executor" {
		t.Fatalf("unexpected command %#v", captured)
	}

	var resp struct {
		Payout struct {
			Status string `json:"status"`
		} `json:"payout"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Payout.Status != "processing" {
		t.Fatalf("expected processing, got %q", resp.Payout.Status)
	}
}

func TestInternalCompletePayoutEndpoint(t *testing.T) {
	completed := time.Date(2024, 3, 21, 9, 0, 0, 0, time.UTC)
	payouts := &stubPayoutService{
		completeFn: func(_ context.Context, cmd services.CompletePayoutCommand) (services.PayoutTransaction, error) {
			txn := samplePayout()
			txn.Status = domain.PayoutTransactionCompleted
			txn.CompletedAt = &completed
			return txn, nil
		},
	}
	router := newInternalRouter(&stubOrderService{}, payouts)

	req := httptest.NewRequest(http.MethodPost, "/internal/payouts/pay_000001:complete", strings.NewReader(`{"actor_id": "executor"}`))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Payout struct {
			Status      string `json:"status"`
			CompletedAt string `json:"completed_at"`
		} `json:"payout"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Payout.Status != "completed" || resp.Payout.CompletedAt != "2024-03-21T09:00:00Z" {
		t.Fatalf("unexpected payload %+v", resp.Payout)
	}
}

func TestInternalFailPayoutEndpoint(t *testing.T) {
	var captured services.FailPayoutCommand
	payouts := &stubPayoutService{
		failFn: func(_ context.Context, cmd services.FailPayoutCommand) (services.PayoutTransaction, error) {
			captured = cmd
			txn := samplePayout()
			txn.Status = domain.PayoutTransactionFailed
			txn.FailureReason = cmd.Reason
			return txn, nil
		},
	}
	router := newInternalRouter(&stubOrderService{}, payouts)

	body := `{"reason": "bank rejected transfer", "actor_id": "executor"}`
	req := httptest.NewRequest(http.MethodPost, "/internal/payouts/pay_000001:fail", strings.NewReader(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Reason != "bank rejected transfer" {
		t.Fatalf("unexpected command %#v", captured)
	}
}

func TestInternalFailPayoutEndpointMapsMissingReason(t *testing.T) {
	payouts := &stubPayoutService{
		failFn: func(context.Context, services.FailPayoutCommand) (services.PayoutTransaction, error) {
			return services.PayoutTransaction{}, fmt.Errorf("%w: reason is required", services.ErrPayoutInvalidInput)
		},
	}
	router := newInternalRouter(&stubOrderService{}, payouts)

	req := httptest.NewRequest(http.MethodPost, "/internal/payouts/pay_000001:fail", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestInternalRecalculateEndpoint(t *testing.T) {
	var captured services.RecalculateEarningsCommand
	orders := &stubOrderService{
		recalculateFn: func(_ context.Context, cmd services.RecalculateEarningsCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(), nil
		},
	}
	router := newInternalRouter(orders, &stubPayoutService{})

	body := `{"penalty": "50", "actor_id": "ops"}`
	req := httptest.NewRequest(http.MethodPost, "/internal/orders/ord_1:recalculate", strings.NewReader(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord_1" || captured.ActorID != "ops" {
		t.Fatalf("unexpected command %#v", captured)
	}
	if captured.Penalty == nil || !captured.Penalty.Equal(decimal.RequireFromString("50")) {
		t.Fatalf("expected penalty 50, got %v", captured.Penalty)
	}
}

func TestInternalRecalculateEndpointRejectsNegativePenalty(t *testing.T) {
	router := newInternalRouter(&stubOrderService{}, &stubPayoutService{})

	body := `{"penalty": "-5"}`
	req := httptest.NewRequest(http.MethodPost, "/internal/orders/ord_1:recalculate", strings.NewReader(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
