package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sellerdesk/api/internal/platform/httpx"
	"github.com/sellerdesk/api/internal/services"
)

// InternalHandlers exposes callbacks for the payment executor and back-office
// tooling. These routes sit behind the internal auth middleware.
type InternalHandlers struct {
	orders  services.OrderService
	payouts services.PayoutService
}

// NewInternalHandlers constructs a new InternalHandlers instance.
func NewInternalHandlers(orders services.OrderService, payouts services.PayoutService) *InternalHandlers {
	return &InternalHandlers{orders: orders, payouts: payouts}
}

// Routes registers the /internal endpoints.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/payouts/{payoutID}:process", h.markProcessing)
	r.Post("/payouts/{payoutID}:complete", h.completePayout)
	r.Post("/payouts/{payoutID}:fail", h.failPayout)
	r.Post("/orders/{orderID}:recalculate", h.recalculateEarnings)
}

// InternalAuth rejects requests that do not carry the expected bearer token.
// An empty token disables the internal surface entirely.
func InternalAuth(token string) func(http.Handler) http.Handler {
	expected := strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected == "" {
				httpx.WriteError(r.Context(), w, httpx.NewError("internal_disabled", "internal endpoints are disabled", http.StatusServiceUnavailable))
				return
			}
			supplied := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
			if supplied == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(expected)) != 1 {
				httpx.WriteError(r.Context(), w, httpx.NewError("unauthorized", "invalid internal credentials", http.StatusUnauthorized))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type failPayoutRequest struct {
	Reason  string `json:"reason"`
	ActorID string `json:"actor_id"`
}

type internalActorRequest struct {
	ActorID string `json:"actor_id"`
}

type recalculateEarningsRequest struct {
	Penalty *string `json:"penalty"`
	ActorID string  `json:"actor_id"`
}

func (h *InternalHandlers) markProcessing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payouts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payout_service_unavailable", "payout service unavailable", http.StatusServiceUnavailable))
		return
	}

	payoutID := strings.TrimSpace(chi.URLParam(r, "payoutID"))
	if payoutID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "payout id is required", http.StatusBadRequest))
		return
	}

	var req internalActorRequest
	if !decodeRequestBody(ctx, w, r, &req) {
		return
	}

	txn, err := h.payouts.MarkProcessing(ctx, services.PayoutProcessingCommand{
		PayoutID: payoutID,
		ActorID:  strings.TrimSpace(req.ActorID),
	})
	if err != nil {
		writePayoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, payoutResponse{Payout: buildPayoutPayload(txn)})
}

func (h *InternalHandlers) completePayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payouts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payout_service_unavailable", "payout service unavailable", http.StatusServiceUnavailable))
		return
	}

	payoutID := strings.TrimSpace(chi.URLParam(r, "payoutID"))
	if payoutID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "payout id is required", http.StatusBadRequest))
		return
	}

	var req internalActorRequest
	if !decodeRequestBody(ctx, w, r, &req) {
		return
	}

	txn, err := h.payouts.CompletePayout(ctx, services.CompletePayoutCommand{
		PayoutID: payoutID,
		ActorID:  strings.TrimSpace(req.ActorID),
	})
	if err != nil {
		writePayoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, payoutResponse{Payout: buildPayoutPayload(txn)})
}

func (h *InternalHandlers) failPayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payouts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payout_service_unavailable", "payout service unavailable", http.StatusServiceUnavailable))
		return
	}

	payoutID := strings.TrimSpace(chi.URLParam(r, "payoutID"))
	if payoutID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "payout id is required", http.StatusBadRequest))
		return
	}

	var req failPayoutRequest
	if !decodeRequestBody(ctx, w, r, &req) {
		return
	}

	txn, err := h.payouts.FailPayout(ctx, services.FailPayoutCommand{
		PayoutID: payoutID,
		Reason:   strings.TrimSpace(req.Reason),
		ActorID:  strings.TrimSpace(req.ActorID),
	})
	if err != nil {
		writePayoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, payoutResponse{Payout: buildPayoutPayload(txn)})
}

func (h *InternalHandlers) recalculateEarnings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req recalculateEarningsRequest
	if !decodeRequestBody(ctx, w, r, &req) {
		return
	}

	cmd := services.RecalculateEarningsCommand{
		OrderID: orderID,
		ActorID: strings.TrimSpace(req.ActorID),
	}
	if req.Penalty != nil {
		penalty, err := parseAmount(*req.Penalty)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "penalty must be a decimal amount", http.StatusBadRequest))
			return
		}
		if penalty.LessThan(decimal.Zero) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "penalty must not be negative", http.StatusBadRequest))
			return
		}
		cmd.Penalty = &penalty
	}

	order, err := h.orders.RecalculateEarnings(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}
