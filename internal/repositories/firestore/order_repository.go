package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/sellerdesk/api/internal/domain"
	pfirestore "github.com/sellerdesk/api/internal/platform/firestore"
	"github.com/sellerdesk/api/internal/platform/pagination"
	"github.com/sellerdesk/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists order documents together with their earnings and
// payout sub-records.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection)
	return &OrderRepository{base: base}, nil
}

// Insert stores a new order document. The ID must be unique.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return err
	}
	doc := encodeOrderDocument(order)
	if _, err := docRef.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update replaces the persisted order state with the provided snapshot.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return err
	}
	doc := encodeOrderDocument(order)
	if _, err := docRef.Set(ctx, doc); err != nil {
		return pfirestore.WrapError("orders.update", err)
	}
	return nil
}

// FindByID fetches a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrderDocument(orderID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// FindByIDs loads every listed order, failing with not-found when any is absent.
func (r *OrderRepository) FindByIDs(ctx context.Context, orderIDs []string) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	ids := cloneStrings(orderIDs)
	orders := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			return nil, errors.New("order repository: order id is required")
		}
		order, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// List returns orders matching the filter ordered by most recent creation.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: %w", err)
		}
		startAfter = []any{cursor.CreatedAt, cursor.ID}
	}

	statusFilters := normaliseFilterValues(filter.Status)
	payoutFilters := normaliseFilterValues(filter.PayoutStatus)
	sellerID := strings.TrimSpace(filter.SellerID)
	buyerID := strings.TrimSpace(filter.BuyerID)

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if sellerID != "" {
			q = q.Where("sellerId", "==", sellerID)
		}
		if buyerID != "" {
			q = q.Where("buyerId", "==", buyerID)
		}

		if len(statusFilters) == 1 {
			q = q.Where("status", "==", statusFilters[0])
		} else if len(statusFilters) > 1 {
			// Firestore in clause supports up to 10 values.
			if len(statusFilters) > 10 {
				statusFilters = statusFilters[:10]
			}
			q = q.Where("status", "in", statusFilters)
		}

		if len(payoutFilters) == 1 {
			q = q.Where("payout.status", "==", payoutFilters[0])
		} else if len(payoutFilters) > 1 {
			if len(payoutFilters) > 10 {
				payoutFilters = payoutFilters[:10]
			}
			q = q.Where("payout.status", "in", payoutFilters)
		}

		if filter.DateRange.From != nil {
			q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			q = q.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}

		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if limit > 0 && len(valueDocs) == fetchLimit {
		last := valueDocs[len(valueDocs)-1]
		tokenTime := last.Data.CreatedAt
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken = pagination.EncodeCursor(pagination.Cursor{CreatedAt: tokenTime, ID: last.ID})
		valueDocs = valueDocs[:len(valueDocs)-1]
	}

	items := make([]domain.Order, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, decodeOrderDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}

	return domain.CursorPage[domain.Order]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// ListEarningsBySeller returns every order for the seller carrying an earnings
// breakdown, unpaginated, for wallet aggregation.
func (r *OrderRepository) ListEarningsBySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return nil, errors.New("order repository: seller id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.
			Where("sellerId", "==", sellerID).
			Where("hasEarnings", "==", true).
			OrderBy("deliveredAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, decodeOrderDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}
	return orders, nil
}

type orderDocument struct {
	OrderNumber   string                 `firestore:"orderNumber"`
	BuyerID       string                 `firestore:"buyerId"`
	SellerID      string                 `firestore:"sellerId"`
	Items         []orderItemDocument    `firestore:"items"`
	Pricing       orderPricingDocument   `firestore:"pricing"`
	Status        string                 `firestore:"status"`
	PaymentStatus string                 `firestore:"paymentStatus"`
	Earnings      *orderEarningsDocument `firestore:"earnings,omitempty"`
	HasEarnings   bool                   `firestore:"hasEarnings"`
	Payout        orderPayoutDocument    `firestore:"payout"`
	Shipping      *orderShippingDocument `firestore:"shipping,omitempty"`
	Return        *returnRequestDocument `firestore:"return,omitempty"`
	StatusHistory []statusChangeDocument `firestore:"statusHistory"`
	DeliveredAt   *time.Time             `firestore:"deliveredAt,omitempty"`
	CancelledAt   *time.Time             `firestore:"cancelledAt,omitempty"`
	CreatedAt     time.Time              `firestore:"createdAt"`
	UpdatedAt     time.Time              `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductRef  string  `firestore:"productRef"`
	ProductName string  `firestore:"productName"`
	CategoryID  string  `firestore:"categoryId"`
	UnitPrice   float64 `firestore:"unitPrice"`
	Quantity    int     `firestore:"quantity"`
	Subtotal    float64 `firestore:"subtotal"`
}

type orderPricingDocument struct {
	ItemsTotal     float64 `firestore:"itemsTotal"`
	ShippingCharge float64 `firestore:"shippingCharge"`
	Tax            float64 `firestore:"tax"`
	Discount       float64 `firestore:"discount"`
	GrandTotal     float64 `firestore:"grandTotal"`
}

type orderEarningsDocument struct {
	CommissionPercent float64   `firestore:"commissionPercent"`
	CommissionAmount  float64   `firestore:"commissionAmount"`
	ShippingCost      float64   `firestore:"shippingCost"`
	CGST              float64   `firestore:"cgst"`
	SGST              float64   `firestore:"sgst"`
	TotalTax          float64   `firestore:"totalTax"`
	Penalty           float64   `firestore:"penalty"`
	NetSellerEarning  float64   `firestore:"netSellerEarning"`
	CalculatedAt      time.Time `firestore:"calculatedAt"`
	Stale             bool      `firestore:"stale"`
}

type orderPayoutDocument struct {
	Status         string     `firestore:"status"`
	EligibleAt     *time.Time `firestore:"eligibleAt,omitempty"`
	CompletedAt    *time.Time `firestore:"completedAt,omitempty"`
	TransactionRef string     `firestore:"transactionRef,omitempty"`
}

type orderShippingDocument struct {
	Carrier        string     `firestore:"carrier"`
	TrackingNumber string     `firestore:"trackingNumber"`
	ShippedAt      *time.Time `firestore:"shippedAt,omitempty"`
}

type returnRequestDocument struct {
	Reason      string     `firestore:"reason"`
	Status      string     `firestore:"status"`
	RequestedAt time.Time  `firestore:"requestedAt"`
	ApprovedAt  *time.Time `firestore:"approvedAt,omitempty"`
	RejectedAt  *time.Time `firestore:"rejectedAt,omitempty"`
	CompletedAt *time.Time `firestore:"completedAt,omitempty"`
}

type statusChangeDocument struct {
	From      string    `firestore:"from"`
	To        string    `firestore:"to"`
	Note      string    `firestore:"note,omitempty"`
	ChangedBy string    `firestore:"changedBy,omitempty"`
	ChangedAt time.Time `firestore:"changedAt"`
}

func encodeOrderDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		OrderNumber:   strings.TrimSpace(order.OrderNumber),
		BuyerID:       strings.TrimSpace(order.BuyerID),
		SellerID:      strings.TrimSpace(order.SellerID),
		Items:         make([]orderItemDocument, 0, len(order.Items)),
		Pricing:       encodeOrderPricing(order.Pricing),
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		HasEarnings:   order.Earnings != nil,
		Payout:        encodeOrderPayout(order.Payout),
		StatusHistory: make([]statusChangeDocument, 0, len(order.StatusHistory)),
		DeliveredAt:   normalizeTimePointer(order.DeliveredAt),
		CancelledAt:   normalizeTimePointer(order.CancelledAt),
		CreatedAt:     order.CreatedAt.UTC(),
		UpdatedAt:     order.UpdatedAt.UTC(),
	}
	for _, item := range order.Items {
		doc.Items = append(doc.Items, orderItemDocument{
			ProductRef:  strings.TrimSpace(item.ProductRef),
			ProductName: strings.TrimSpace(item.ProductName),
			CategoryID:  strings.TrimSpace(item.CategoryID),
			UnitPrice:   encodeAmount(item.UnitPrice),
			Quantity:    item.Quantity,
			Subtotal:    encodeAmount(item.Subtotal),
		})
	}
	if order.Earnings != nil {
		doc.Earnings = &orderEarningsDocument{
			CommissionPercent: encodeAmount(order.Earnings.CommissionPercent),
			CommissionAmount:  encodeAmount(order.Earnings.CommissionAmount),
			ShippingCost:      encodeAmount(order.Earnings.ShippingCost),
			CGST:              encodeAmount(order.Earnings.CGST),
			SGST:              encodeAmount(order.Earnings.SGST),
			TotalTax:          encodeAmount(order.Earnings.TotalTax),
			Penalty:           encodeAmount(order.Earnings.Penalty),
			NetSellerEarning:  encodeAmount(order.Earnings.NetSellerEarning),
			CalculatedAt:      order.Earnings.CalculatedAt.UTC(),
			Stale:             order.Earnings.Stale,
		}
	}
	if order.Shipping.Carrier != "" || order.Shipping.TrackingNumber != "" || order.Shipping.ShippedAt != nil {
		doc.Shipping = &orderShippingDocument{
			Carrier:        strings.TrimSpace(order.Shipping.Carrier),
			TrackingNumber: strings.TrimSpace(order.Shipping.TrackingNumber),
			ShippedAt:      normalizeTimePointer(order.Shipping.ShippedAt),
		}
	}
	if order.Return != nil {
		doc.Return = &returnRequestDocument{
			Reason:      strings.TrimSpace(order.Return.Reason),
			Status:      string(order.Return.Status),
			RequestedAt: order.Return.RequestedAt.UTC(),
			ApprovedAt:  normalizeTimePointer(order.Return.ApprovedAt),
			RejectedAt:  normalizeTimePointer(order.Return.RejectedAt),
			CompletedAt: normalizeTimePointer(order.Return.CompletedAt),
		}
	}
	for _, change := range order.StatusHistory {
		doc.StatusHistory = append(doc.StatusHistory, statusChangeDocument{
			From:      string(change.From),
			To:        string(change.To),
			Note:      strings.TrimSpace(change.Note),
			ChangedBy: strings.TrimSpace(change.ChangedBy),
			ChangedAt: change.ChangedAt.UTC(),
		})
	}
	return doc
}

func encodeOrderPricing(pricing domain.OrderPricing) orderPricingDocument {
	return orderPricingDocument{
		ItemsTotal:     encodeAmount(pricing.ItemsTotal),
		ShippingCharge: encodeAmount(pricing.ShippingCharge),
		Tax:            encodeAmount(pricing.Tax),
		Discount:       encodeAmount(pricing.Discount),
		GrandTotal:     encodeAmount(pricing.GrandTotal),
	}
}

func encodeOrderPayout(payout domain.OrderPayout) orderPayoutDocument {
	return orderPayoutDocument{
		Status:         string(payout.Status),
		EligibleAt:     normalizeTimePointer(payout.EligibleAt),
		CompletedAt:    normalizeTimePointer(payout.CompletedAt),
		TransactionRef: strings.TrimSpace(payout.TransactionRef),
	}
}

func decodeOrderDocument(id string, doc orderDocument, createdAt, updatedAt time.Time) domain.Order {
	order := domain.Order{
		ID:            strings.TrimSpace(id),
		OrderNumber:   strings.TrimSpace(doc.OrderNumber),
		BuyerID:       strings.TrimSpace(doc.BuyerID),
		SellerID:      strings.TrimSpace(doc.SellerID),
		Items:         make([]domain.OrderItem, 0, len(doc.Items)),
		Pricing:       decodeOrderPricing(doc.Pricing),
		Status:        domain.OrderStatus(strings.TrimSpace(doc.Status)),
		PaymentStatus: domain.PaymentStatus(strings.TrimSpace(doc.PaymentStatus)),
		Payout:        decodeOrderPayout(doc.Payout),
		StatusHistory: make([]domain.StatusChange, 0, len(doc.StatusHistory)),
		DeliveredAt:   normalizeTimePointer(doc.DeliveredAt),
		CancelledAt:   normalizeTimePointer(doc.CancelledAt),
		CreatedAt:     chooseTime(doc.CreatedAt, createdAt),
		UpdatedAt:     chooseTime(doc.UpdatedAt, updatedAt),
	}
	for _, item := range doc.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductRef:  strings.TrimSpace(item.ProductRef),
			ProductName: strings.TrimSpace(item.ProductName),
			CategoryID:  strings.TrimSpace(item.CategoryID),
			UnitPrice:   decodeAmount(item.UnitPrice),
			Quantity:    item.Quantity,
			Subtotal:    decodeAmount(item.Subtotal),
		})
	}
	if doc.Earnings != nil {
		order.Earnings = &domain.OrderEarnings{
			CommissionPercent: decodeAmount(doc.Earnings.CommissionPercent),
			CommissionAmount:  decodeAmount(doc.Earnings.CommissionAmount),
			ShippingCost:      decodeAmount(doc.Earnings.ShippingCost),
			CGST:              decodeAmount(doc.Earnings.CGST),
			SGST:              decodeAmount(doc.Earnings.SGST),
			TotalTax:          decodeAmount(doc.Earnings.TotalTax),
			Penalty:           decodeAmount(doc.Earnings.Penalty),
			NetSellerEarning:  decodeAmount(doc.Earnings.NetSellerEarning),
			CalculatedAt:      doc.Earnings.CalculatedAt.UTC(),
			Stale:             doc.Earnings.Stale,
		}
	}
	if doc.Shipping != nil {
		order.Shipping = domain.OrderShipping{
			Carrier:        strings.TrimSpace(doc.Shipping.Carrier),
			TrackingNumber: strings.TrimSpace(doc.Shipping.TrackingNumber),
			ShippedAt:      normalizeTimePointer(doc.Shipping.ShippedAt),
		}
	}
	if doc.Return != nil {
		order.Return = &domain.ReturnRequest{
			Reason:      strings.TrimSpace(doc.Return.Reason),
			Status:      domain.ReturnStatus(strings.TrimSpace(doc.Return.Status)),
			RequestedAt: doc.Return.RequestedAt.UTC(),
			ApprovedAt:  normalizeTimePointer(doc.Return.ApprovedAt),
			RejectedAt:  normalizeTimePointer(doc.Return.RejectedAt),
			CompletedAt: normalizeTimePointer(doc.Return.CompletedAt),
		}
	}
	for _, change := range doc.StatusHistory {
		order.StatusHistory = append(order.StatusHistory, domain.StatusChange{
			From:      domain.OrderStatus(strings.TrimSpace(change.From)),
			To:        domain.OrderStatus(strings.TrimSpace(change.To)),
			Note:      strings.TrimSpace(change.Note),
			ChangedBy: strings.TrimSpace(change.ChangedBy),
			ChangedAt: change.ChangedAt.UTC(),
		})
	}
	return order
}

func decodeOrderPricing(doc orderPricingDocument) domain.OrderPricing {
	return domain.OrderPricing{
		ItemsTotal:     decodeAmount(doc.ItemsTotal),
		ShippingCharge: decodeAmount(doc.ShippingCharge),
		Tax:            decodeAmount(doc.Tax),
		Discount:       decodeAmount(doc.Discount),
		GrandTotal:     decodeAmount(doc.GrandTotal),
	}
}

func decodeOrderPayout(doc orderPayoutDocument) domain.OrderPayout {
	return domain.OrderPayout{
		Status:         domain.PayoutStatus(strings.TrimSpace(doc.Status)),
		EligibleAt:     normalizeTimePointer(doc.EligibleAt),
		CompletedAt:    normalizeTimePointer(doc.CompletedAt),
		TransactionRef: strings.TrimSpace(doc.TransactionRef),
	}
}

// claimOrderUpdates builds the payout mutation applied to an order inside the
// claim transaction.
func claimOrderUpdates(transactionRef string, now time.Time) []firestore.Update {
	return []firestore.Update{
		{Path: "payout.status", Value: string(domain.PayoutStatusProcessing)},
		{Path: "payout.transactionRef", Value: transactionRef},
		{Path: "updatedAt", Value: now.UTC()},
	}
}
