package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/sellerdesk/api/internal/domain"
	"github.com/sellerdesk/api/internal/platform/httpx"
	"github.com/sellerdesk/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderBodySize     = 64 * 1024
)

var validOrderStatuses = map[domain.OrderStatus]struct{}{
	domain.OrderStatusPending:         {},
	domain.OrderStatusConfirmed:       {},
	domain.OrderStatusProcessing:      {},
	domain.OrderStatusShipped:         {},
	domain.OrderStatusOutForDelivery:  {},
	domain.OrderStatusDelivered:       {},
	domain.OrderStatusReturnRequested: {},
	domain.OrderStatusReturnApproved:  {},
	domain.OrderStatusReturned:        {},
	domain.OrderStatusCancelled:       {},
	domain.OrderStatusRefunded:        {},
}

// OrderHandlers exposes the order lifecycle endpoints.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}:transition", h.transitionOrder)
}

type createOrderRequest struct {
	BuyerID  string                   `json:"buyer_id"`
	SellerID string                   `json:"seller_id"`
	Items    []createOrderItemRequest `json:"items"`
	Pricing  orderPricingRequest      `json:"pricing"`
	ActorID  string                   `json:"actor_id"`
}

type createOrderItemRequest struct {
	ProductRef  string `json:"product_ref"`
	ProductName string `json:"product_name"`
	CategoryID  string `json:"category_id"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	Subtotal    string `json:"subtotal"`
}

type orderPricingRequest struct {
	ItemsTotal     string `json:"items_total"`
	ShippingCharge string `json:"shipping_charge"`
	Tax            string `json:"tax"`
	Discount       string `json:"discount"`
	GrandTotal     string `json:"grand_total"`
}

type transitionOrderRequest struct {
	Status         string `json:"status"`
	Reason         string `json:"reason"`
	Note           string `json:"note"`
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
	ActorID        string `json:"actor_id"`
	ExpectedStatus string `json:"expected_status"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createOrderRequest
	if !decodeRequestBody(ctx, w, r, &req) {
		return
	}

	items := make([]services.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		unitPrice, err := parseAmount(item.UnitPrice)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unit_price must be a decimal amount", http.StatusBadRequest))
			return
		}
		subtotal, err := parseAmount(item.Subtotal)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "subtotal must be a decimal amount", http.StatusBadRequest))
			return
		}
		items = append(items, services.OrderItem{
			ProductRef:  strings.TrimSpace(item.ProductRef),
			ProductName: strings.TrimSpace(item.ProductName),
			CategoryID:  strings.TrimSpace(item.CategoryID),
			UnitPrice:   unitPrice,
			Quantity:    item.Quantity,
			Subtotal:    subtotal,
		})
	}

	pricing, err := parseOrderPricing(req.Pricing)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	order, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		BuyerID:  req.BuyerID,
		SellerID: req.SellerID,
		Items:    items,
		Pricing:  pricing,
		ActorID:  req.ActorID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()

	var dateRange domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.To = &ts
	}

	pageSize, err := parsePageSize(query.Get("page_size"), defaultOrderPageSize, maxOrderPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
		return
	}

	filter := services.OrderListFilter{
		SellerID:     strings.TrimSpace(query.Get("seller_id")),
		BuyerID:      strings.TrimSpace(query.Get("buyer_id")),
		Status:       parseFilterValues(query["status"]),
		PayoutStatus: parseFilterValues(query["payout_status"]),
		DateRange:    dateRange,
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderSummary(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
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

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) transitionOrder(w http.ResponseWriter, r *http.Request) {
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

	var req transitionOrderRequest
	if !decodeRequestBody(ctx, w, r, &req) {
		return
	}

	target, ok := parseOrderStatus(req.Status)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be a valid order status", http.StatusBadRequest))
		return
	}

	cmd := services.OrderStatusTransitionCommand{
		OrderID:        orderID,
		TargetStatus:   target,
		ActorID:        strings.TrimSpace(req.ActorID),
		Reason:         strings.TrimSpace(req.Reason),
		Note:           strings.TrimSpace(req.Note),
		Carrier:        strings.TrimSpace(req.Carrier),
		TrackingNumber: strings.TrimSpace(req.TrackingNumber),
	}
	if raw := strings.TrimSpace(req.ExpectedStatus); raw != "" {
		expected, ok := parseOrderStatus(raw)
		if !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expected_status must be a valid order status", http.StatusBadRequest))
			return
		}
		cmd.ExpectedStatus = &expected
	}

	order, err := h.orders.TransitionStatus(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type orderSummaryPayload struct {
	ID           string `json:"id"`
	OrderNumber  string `json:"order_number"`
	SellerID     string `json:"seller_id"`
	BuyerID      string `json:"buyer_id"`
	Status       string `json:"status"`
	PayoutStatus string `json:"payout_status,omitempty"`
	GrandTotal   string `json:"grand_total"`
	NetEarning   string `json:"net_seller_earning,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID            string                `json:"id"`
	OrderNumber   string                `json:"order_number"`
	BuyerID       string                `json:"buyer_id"`
	SellerID      string                `json:"seller_id"`
	Status        string                `json:"status"`
	PaymentStatus string                `json:"payment_status"`
	Items         []orderItemPayload    `json:"items"`
	Pricing       orderPricingPayload   `json:"pricing"`
	Earnings      *orderEarningsPayload `json:"earnings,omitempty"`
	Payout        *orderPayoutPayload   `json:"payout,omitempty"`
	Shipping      *orderShippingPayload `json:"shipping,omitempty"`
	Return        *orderReturnPayload   `json:"return,omitempty"`
	StatusHistory []statusChangePayload `json:"status_history,omitempty"`
	DeliveredAt   string                `json:"delivered_at,omitempty"`
	CancelledAt   string                `json:"cancelled_at,omitempty"`
	CreatedAt     string                `json:"created_at"`
	UpdatedAt     string                `json:"updated_at,omitempty"`
}

type orderItemPayload struct {
	ProductRef  string `json:"product_ref"`
	ProductName string `json:"product_name,omitempty"`
	CategoryID  string `json:"category_id,omitempty"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	Subtotal    string `json:"subtotal"`
}

type orderPricingPayload struct {
	ItemsTotal     string `json:"items_total"`
	ShippingCharge string `json:"shipping_charge"`
	Tax            string `json:"tax"`
	Discount       string `json:"discount"`
	GrandTotal     string `json:"grand_total"`
}

type orderEarningsPayload struct {
	CommissionPercent string `json:"commission_percent"`
	CommissionAmount  string `json:"commission_amount"`
	ShippingCost      string `json:"shipping_cost"`
	CGST              string `json:"cgst"`
	SGST              string `json:"sgst"`
	TotalTax          string `json:"total_tax"`
	Penalty           string `json:"penalty"`
	NetSellerEarning  string `json:"net_seller_earning"`
	CalculatedAt      string `json:"calculated_at"`
	Stale             bool   `json:"stale,omitempty"`
}

type orderPayoutPayload struct {
	Status         string `json:"status"`
	EligibleAt     string `json:"eligible_at,omitempty"`
	CompletedAt    string `json:"completed_at,omitempty"`
	TransactionRef string `json:"transaction_ref,omitempty"`
}

type orderShippingPayload struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
	ShippedAt      string `json:"shipped_at,omitempty"`
}

type orderReturnPayload struct {
	Reason      string `json:"reason"`
	Status      string `json:"status"`
	RequestedAt string `json:"requested_at"`
	ApprovedAt  string `json:"approved_at,omitempty"`
	RejectedAt  string `json:"rejected_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

type statusChangePayload struct {
	From      string `json:"from,omitempty"`
	To        string `json:"to"`
	Note      string `json:"note,omitempty"`
	ChangedBy string `json:"changed_by,omitempty"`
	ChangedAt string `json:"changed_at"`
}

func buildOrderSummary(order services.Order) orderSummaryPayload {
	summary := orderSummaryPayload{
		ID:           strings.TrimSpace(order.ID),
		OrderNumber:  strings.TrimSpace(order.OrderNumber),
		SellerID:     strings.TrimSpace(order.SellerID),
		BuyerID:      strings.TrimSpace(order.BuyerID),
		Status:       string(order.Status),
		PayoutStatus: string(order.Payout.Status),
		GrandTotal:   amountString(order.Pricing.GrandTotal),
		CreatedAt:    formatTime(order.CreatedAt),
	}
	if order.Earnings != nil {
		summary.NetEarning = amountString(order.Earnings.NetSellerEarning)
	}
	return summary
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:            strings.TrimSpace(order.ID),
		OrderNumber:   strings.TrimSpace(order.OrderNumber),
		BuyerID:       strings.TrimSpace(order.BuyerID),
		SellerID:      strings.TrimSpace(order.SellerID),
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Items:         make([]orderItemPayload, 0, len(order.Items)),
		Pricing: orderPricingPayload{
			ItemsTotal:     amountString(order.Pricing.ItemsTotal),
			ShippingCharge: amountString(order.Pricing.ShippingCharge),
			Tax:            amountString(order.Pricing.Tax),
			Discount:       amountString(order.Pricing.Discount),
			GrandTotal:     amountString(order.Pricing.GrandTotal),
		},
		DeliveredAt: formatTime(pointerTime(order.DeliveredAt)),
		CancelledAt: formatTime(pointerTime(order.CancelledAt)),
		CreatedAt:   formatTime(order.CreatedAt),
		UpdatedAt:   formatTime(order.UpdatedAt),
	}

	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductRef:  strings.TrimSpace(item.ProductRef),
			ProductName: strings.TrimSpace(item.ProductName),
			CategoryID:  strings.TrimSpace(item.CategoryID),
			UnitPrice:   amountString(item.UnitPrice),
			Quantity:    item.Quantity,
			Subtotal:    amountString(item.Subtotal),
		})
	}

	if order.Earnings != nil {
		payload.Earnings = &orderEarningsPayload{
			CommissionPercent: order.Earnings.CommissionPercent.String(),
			CommissionAmount:  amountString(order.Earnings.CommissionAmount),
			ShippingCost:      amountString(order.Earnings.ShippingCost),
			CGST:              amountString(order.Earnings.CGST),
			SGST:              amountString(order.Earnings.SGST),
			TotalTax:          amountString(order.Earnings.TotalTax),
			Penalty:           amountString(order.Earnings.Penalty),
			NetSellerEarning:  amountString(order.Earnings.NetSellerEarning),
			CalculatedAt:      formatTime(order.Earnings.CalculatedAt),
			Stale:             order.Earnings.Stale,
		}
	}

	if order.Payout.Status != domain.PayoutStatusNone {
		payload.Payout = &orderPayoutPayload{
			Status:         string(order.Payout.Status),
			EligibleAt:     formatTime(pointerTime(order.Payout.EligibleAt)),
			CompletedAt:    formatTime(pointerTime(order.Payout.CompletedAt)),
			TransactionRef: strings.TrimSpace(order.Payout.TransactionRef),
		}
	}

	if order.Shipping.Carrier != "" || order.Shipping.TrackingNumber != "" {
		payload.Shipping = &orderShippingPayload{
			Carrier:        strings.TrimSpace(order.Shipping.Carrier),
			TrackingNumber: strings.TrimSpace(order.Shipping.TrackingNumber),
			ShippedAt:      formatTime(pointerTime(order.Shipping.ShippedAt)),
		}
	}

	if order.Return != nil {
		payload.Return = &orderReturnPayload{
			Reason:      strings.TrimSpace(order.Return.Reason),
			Status:      string(order.Return.Status),
			RequestedAt: formatTime(order.Return.RequestedAt),
			ApprovedAt:  formatTime(pointerTime(order.Return.ApprovedAt)),
			RejectedAt:  formatTime(pointerTime(order.Return.RejectedAt)),
			CompletedAt: formatTime(pointerTime(order.Return.CompletedAt)),
		}
	}

	for _, change := range order.StatusHistory {
		payload.StatusHistory = append(payload.StatusHistory, statusChangePayload{
			From:      string(change.From),
			To:        string(change.To),
			Note:      change.Note,
			ChangedBy: change.ChangedBy,
			ChangedAt: formatTime(change.ChangedAt),
		})
	}

	return payload
}

func parseOrderPricing(req orderPricingRequest) (services.OrderPricing, error) {
	var pricing services.OrderPricing
	var err error
	if pricing.ItemsTotal, err = parseAmount(req.ItemsTotal); err != nil {
		return services.OrderPricing{}, errors.New("items_total must be a decimal amount")
	}
	if pricing.ShippingCharge, err = parseAmount(zeroWhenEmpty(req.ShippingCharge)); err != nil {
		return services.OrderPricing{}, errors.New("shipping_charge must be a decimal amount")
	}
	if pricing.Tax, err = parseAmount(zeroWhenEmpty(req.Tax)); err != nil {
		return services.OrderPricing{}, errors.New("tax must be a decimal amount")
	}
	if pricing.Discount, err = parseAmount(zeroWhenEmpty(req.Discount)); err != nil {
		return services.OrderPricing{}, errors.New("discount must be a decimal amount")
	}
	if pricing.GrandTotal, err = parseAmount(req.GrandTotal); err != nil {
		return services.OrderPricing{}, errors.New("grand_total must be a decimal amount")
	}
	return pricing, nil
}

func zeroWhenEmpty(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "0"
	}
	return raw
}

func decodeRequestBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", "order storage unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

func parseOrderStatus(raw string) (services.OrderStatus, bool) {
	status := domain.OrderStatus(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := validOrderStatuses[status]; !ok {
		return "", false
	}
	return status, true
}
