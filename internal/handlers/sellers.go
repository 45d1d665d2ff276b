package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sellerdesk/api/internal/platform/httpx"
	"github.com/sellerdesk/api/internal/services"
)

const (
	defaultPayoutPageSize = 20
	maxPayoutPageSize     = 100
)

// SellerHandlers exposes the wallet and payout endpoints scoped to a seller.
type SellerHandlers struct {
	wallet  services.WalletService
	payouts services.PayoutService
}

// NewSellerHandlers constructs a new SellerHandlers instance.
func NewSellerHandlers(wallet services.WalletService, payouts services.PayoutService) *SellerHandlers {
	return &SellerHandlers{wallet: wallet, payouts: payouts}
}

// Routes registers the /sellers endpoints.
func (h *SellerHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{sellerID}/wallet", h.getWallet)
	r.Post("/{sellerID}/wallet:refresh", h.refreshWallet)
	r.Post("/{sellerID}/payouts", h.requestPayout)
	r.Get("/{sellerID}/payouts", h.listPayouts)
	r.Get("/{sellerID}/payouts/{payoutID}", h.getPayout)
}

type requestPayoutRequest struct {
	OrderIDs []string `json:"order_ids"`
	ActorID  string   `json:"actor_id"`
}

func (h *SellerHandlers) getWallet(w http.ResponseWriter, r *http.Request) {
	h.serveWallet(w, r, func(ctx context.Context, sellerID string) (services.SellerWallet, error) {
		return h.wallet.GetWallet(ctx, sellerID)
	})
}

func (h *SellerHandlers) refreshWallet(w http.ResponseWriter, r *http.Request) {
	h.serveWallet(w, r, func(ctx context.Context, sellerID string) (services.SellerWallet, error) {
		return h.wallet.RefreshWallet(ctx, sellerID)
	})
}

func (h *SellerHandlers) serveWallet(w http.ResponseWriter, r *http.Request, load func(context.Context, string) (services.SellerWallet, error)) {
	ctx := r.Context()
	if h.wallet == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wallet_service_unavailable", "wallet service unavailable", http.StatusServiceUnavailable))
		return
	}

	sellerID := strings.TrimSpace(chi.URLParam(r, "sellerID"))
	if sellerID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "seller id is required", http.StatusBadRequest))
		return
	}

	wallet, err := load(ctx, sellerID)
	if err != nil {
		writeWalletError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, walletResponse{Wallet: buildWalletPayload(wallet)})
}

func (h *SellerHandlers) requestPayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payouts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payout_service_unavailable", "payout service unavailable", http.StatusServiceUnavailable))
		return
	}

	sellerID := strings.TrimSpace(chi.URLParam(r, "sellerID"))
	if sellerID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "seller id is required", http.StatusBadRequest))
		return
	}

	var req requestPayoutRequest
	if !decodeRequestBody(ctx, w, r, &req) {
		return
	}

	txn, err := h.payouts.RequestPayout(ctx, services.RequestPayoutCommand{
		SellerID: sellerID,
		OrderIDs: req.OrderIDs,
		ActorID:  strings.TrimSpace(req.ActorID),
	})
	if err != nil {
		writePayoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, payoutResponse{Payout: buildPayoutPayload(txn)})
}

func (h *SellerHandlers) listPayouts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payouts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payout_service_unavailable", "payout service unavailable", http.StatusServiceUnavailable))
		return
	}

	sellerID := strings.TrimSpace(chi.URLParam(r, "sellerID"))
	if sellerID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "seller id is required", http.StatusBadRequest))
		return
	}

	query := r.URL.Query()
	pageSize, err := parsePageSize(query.Get("page_size"), defaultPayoutPageSize, maxPayoutPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
		return
	}

	filter := services.PayoutListFilter{
		Status: parseFilterValues(query["status"]),
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	}

	page, err := h.payouts.ListPayouts(ctx, sellerID, filter)
	if err != nil {
		writePayoutError(ctx, w, err)
		return
	}

	items := make([]payoutPayload, 0, len(page.Items))
	for _, txn := range page.Items {
		items = append(items, buildPayoutPayload(txn))
	}
	writeJSONResponse(w, http.StatusOK, payoutListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *SellerHandlers) getPayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payouts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payout_service_unavailable", "payout service unavailable", http.StatusServiceUnavailable))
		return
	}

	sellerID := strings.TrimSpace(chi.URLParam(r, "sellerID"))
	payoutID := strings.TrimSpace(chi.URLParam(r, "payoutID"))
	if sellerID == "" || payoutID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "seller id and payout id are required", http.StatusBadRequest))
		return
	}

	txn, err := h.payouts.GetPayout(ctx, payoutID)
	if err != nil {
		writePayoutError(ctx, w, err)
		return
	}
	if txn.SellerID != sellerID {
		httpx.WriteError(ctx, w, httpx.NewError("payout_not_found", "payout not found", http.StatusNotFound))
		return
	}
	writeJSONResponse(w, http.StatusOK, payoutResponse{Payout: buildPayoutPayload(txn)})
}

type walletResponse struct {
	Wallet walletPayload `json:"wallet"`
}

type walletPayload struct {
	SellerID        string `json:"seller_id"`
	PendingAmount   string `json:"pending_amount"`
	UpcomingPayout  string `json:"upcoming_payout"`
	CompletedPayout string `json:"completed_payout"`
	TotalEarnings   string `json:"total_earnings"`
	PendingOrders   int    `json:"pending_orders"`
	UpcomingOrders  int    `json:"upcoming_orders"`
	PaidOrders      int    `json:"paid_orders"`
	LastPayoutAt    string `json:"last_payout_at,omitempty"`
	NextPayoutAt    string `json:"next_payout_at,omitempty"`
	RefreshedAt     string `json:"refreshed_at"`
}

type payoutResponse struct {
	Payout payoutPayload `json:"payout"`
}

type payoutListResponse struct {
	Items         []payoutPayload `json:"items"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

type payoutPayload struct {
	ID            string                   `json:"id"`
	Number        string                   `json:"number"`
	SellerID      string                   `json:"seller_id"`
	OrderIDs      []string                 `json:"order_ids"`
	Amount        string                   `json:"amount"`
	Breakdown     []payoutOrderLinePayload `json:"breakdown,omitempty"`
	Destination   payoutDestinationPayload `json:"destination"`
	Status        string                   `json:"status"`
	FailureReason string                   `json:"failure_reason,omitempty"`
	CreatedAt     string                   `json:"created_at"`
	CompletedAt   string                   `json:"completed_at,omitempty"`
}

type payoutOrderLinePayload struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	NetEarning  string `json:"net_earning"`
	DeliveredAt string `json:"delivered_at"`
}

type payoutDestinationPayload struct {
	Mode          string `json:"mode"`
	HolderName    string `json:"holder_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	IFSC          string `json:"ifsc,omitempty"`
	UPIHandle     string `json:"upi_handle,omitempty"`
}

func buildWalletPayload(wallet services.SellerWallet) walletPayload {
	return walletPayload{
		SellerID:        wallet.SellerID,
		PendingAmount:   amountString(wallet.PendingAmount),
		UpcomingPayout:  amountString(wallet.UpcomingPayout),
		CompletedPayout: amountString(wallet.CompletedPayout),
		TotalEarnings:   amountString(wallet.TotalEarnings),
		PendingOrders:   wallet.PendingOrders,
		UpcomingOrders:  wallet.UpcomingOrders,
		PaidOrders:      wallet.PaidOrders,
		LastPayoutAt:    formatTime(pointerTime(wallet.LastPayoutAt)),
		NextPayoutAt:    formatTime(pointerTime(wallet.NextPayoutAt)),
		RefreshedAt:     formatTime(wallet.RefreshedAt),
	}
}

func buildPayoutPayload(txn services.PayoutTransaction) payoutPayload {
	payload := payoutPayload{
		ID:            txn.ID,
		Number:        txn.Number,
		SellerID:      txn.SellerID,
		OrderIDs:      txn.OrderIDs,
		Amount:        amountString(txn.Amount),
		Status:        string(txn.Status),
		FailureReason: txn.FailureReason,
		Destination: payoutDestinationPayload{
			Mode:          string(txn.Destination.Mode),
			HolderName:    txn.Destination.HolderName,
			AccountNumber: txn.Destination.AccountNumber,
			IFSC:          txn.Destination.IFSC,
			UPIHandle:     txn.Destination.UPIHandle,
		},
		CreatedAt:   formatTime(txn.CreatedAt),
		CompletedAt: formatTime(pointerTime(txn.CompletedAt)),
	}
	for _, line := range txn.Breakdown {
		payload.Breakdown = append(payload.Breakdown, payoutOrderLinePayload{
			OrderID:     line.OrderID,
			OrderNumber: line.OrderNumber,
			NetEarning:  amountString(line.NetEarning),
			DeliveredAt: formatTime(line.DeliveredAt),
		})
	}
	return payload
}

func writeWalletError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrWalletInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrWalletUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("wallet_unavailable", "wallet storage unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("wallet_error", "failed to process wallet request", http.StatusInternalServerError))
	}
}

func writePayoutError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrPayoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPayoutNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("payout_not_found", "payout not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPayoutSellerIneligible):
		httpx.WriteError(ctx, w, httpx.NewError("seller_ineligible", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrPayoutNoEligibleOrders):
		httpx.WriteError(ctx, w, httpx.NewError("no_eligible_orders", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrPayoutBelowMinimum):
		httpx.WriteError(ctx, w, httpx.NewError("below_minimum_amount", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrPayoutConflict):
		httpx.WriteError(ctx, w, httpx.NewError("payout_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPayoutInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("payout_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPayoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("payout_unavailable", "payout storage unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("payout_error", "failed to process payout request", http.StatusInternalServerError))
	}
}
