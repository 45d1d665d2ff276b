package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/sellerdesk/api/internal/domain"
	pfirestore "github.com/sellerdesk/api/internal/platform/firestore"
	"github.com/sellerdesk/api/internal/platform/pagination"
	"github.com/sellerdesk/api/internal/repositories"
)

const payoutsCollection = "payoutTransactions"

// PayoutTransactionRepository persists payout batches. Claim, completion, and
// failure run as Firestore transactions so the batch document and the claimed
// order documents always move together.
type PayoutTransactionRepository struct {
	provider *pfirestore.Provider
	payouts  *pfirestore.BaseRepository[payoutDocument]
	orders   *pfirestore.BaseRepository[orderDocument]
}

// NewPayoutTransactionRepository constructs a Firestore-backed payout repository.
func NewPayoutTransactionRepository(provider *pfirestore.Provider) (*PayoutTransactionRepository, error) {
	if provider == nil {
		return nil, errors.New("payout repository: firestore provider is required")
	}
	return &PayoutTransactionRepository{
		provider: provider,
		payouts:  pfirestore.NewBaseRepository[payoutDocument](provider, payoutsCollection),
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection),
	}, nil
}

// CreateClaim writes the payout transaction and flips every referenced order
// to payout status processing. Any order already carrying a transaction ref
// aborts the whole transaction with a conflict.
func (r *PayoutTransactionRepository) CreateClaim(ctx context.Context, req repositories.PayoutClaimRequest) (repositories.PayoutClaimResult, error) {
	if r == nil || r.provider == nil {
		return repositories.PayoutClaimResult{}, errors.New("payout repository not initialised")
	}
	txn := req.Transaction
	payoutID := strings.TrimSpace(txn.ID)
	if payoutID == "" {
		return repositories.PayoutClaimResult{}, errors.New("payout repository: transaction id is required")
	}
	if len(txn.OrderIDs) == 0 {
		return repositories.PayoutClaimResult{}, errors.New("payout repository: transaction requires at least one order")
	}
	now := req.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var result repositories.PayoutClaimResult
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		payoutRef, err := r.payouts.DocumentRef(ctx, payoutID)
		if err != nil {
			return err
		}

		// All reads happen before any write.
		orderRefs := make([]*firestore.DocumentRef, 0, len(txn.OrderIDs))
		claimed := make([]domain.Order, 0, len(txn.OrderIDs))
		for _, orderID := range txn.OrderIDs {
			orderID = strings.TrimSpace(orderID)
			if orderID == "" {
				return errors.New("payout repository: order id is required")
			}
			ref, err := r.orders.DocumentRef(ctx, orderID)
			if err != nil {
				return err
			}
			snap, err := tx.Get(ref)
			if err != nil {
				return err
			}
			var doc orderDocument
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("firestore payouts decode order %s: %w", orderID, err)
			}
			order := decodeOrderDocument(orderID, doc, snap.CreateTime, snap.UpdateTime)
			if order.Payout.TransactionRef != "" {
				return status.Errorf(codes.FailedPrecondition, "order %s already claimed by %s", orderID, order.Payout.TransactionRef)
			}
			switch order.Payout.Status {
			case domain.PayoutStatusHeld, domain.PayoutStatusReady, domain.PayoutStatusFailed:
				// claimable
			default:
				return status.Errorf(codes.FailedPrecondition, "order %s payout status %q is not claimable", orderID, order.Payout.Status)
			}
			orderRefs = append(orderRefs, ref)
			claimed = append(claimed, order)
		}

		doc := encodePayoutDocument(txn)
		doc.Status = string(domain.PayoutTransactionPending)
		doc.CreatedAt = now
		if err := tx.Create(payoutRef, doc); err != nil {
			return err
		}
		for i, ref := range orderRefs {
			if err := tx.Update(ref, claimOrderUpdates(payoutID, now)); err != nil {
				return err
			}
			claimed[i].Payout.Status = domain.PayoutStatusProcessing
			claimed[i].Payout.TransactionRef = payoutID
			claimed[i].UpdatedAt = now
		}

		stored := txn
		stored.Status = domain.PayoutTransactionPending
		stored.CreatedAt = now
		result = repositories.PayoutClaimResult{Transaction: stored, Orders: claimed}
		return nil
	})
	if err != nil {
		return repositories.PayoutClaimResult{}, pfirestore.WrapError("payouts.claim", err)
	}
	return result, nil
}

// MarkProcessing records that the payment executor picked up the batch.
func (r *PayoutTransactionRepository) MarkProcessing(ctx context.Context, payoutID string, now time.Time) (domain.PayoutTransaction, error) {
	if r == nil || r.provider == nil {
		return domain.PayoutTransaction{}, errors.New("payout repository not initialised")
	}
	payoutID = strings.TrimSpace(payoutID)
	if payoutID == "" {
		return domain.PayoutTransaction{}, errors.New("payout repository: payout id is required")
	}

	var result domain.PayoutTransaction
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, doc, err := r.getPayout(ctx, tx, payoutID)
		if err != nil {
			return err
		}
		if doc.Status != string(domain.PayoutTransactionPending) {
			return status.Errorf(codes.FailedPrecondition, "payout %s status %q cannot move to processing", payoutID, doc.Status)
		}
		updates := []firestore.Update{
			{Path: "status", Value: string(domain.PayoutTransactionProcessing)},
		}
		if err := tx.Update(ref, updates); err != nil {
			return err
		}
		doc.Status = string(domain.PayoutTransactionProcessing)
		result = decodePayoutDocument(payoutID, doc)
		return nil
	})
	if err != nil {
		return domain.PayoutTransaction{}, pfirestore.WrapError("payouts.mark_processing", err)
	}
	return result, nil
}

// Complete marks the batch completed and every claimed order paid.
func (r *PayoutTransactionRepository) Complete(ctx context.Context, req repositories.PayoutCompleteRequest) (repositories.PayoutCompleteResult, error) {
	if r == nil || r.provider == nil {
		return repositories.PayoutCompleteResult{}, errors.New("payout repository not initialised")
	}
	payoutID := strings.TrimSpace(req.PayoutID)
	if payoutID == "" {
		return repositories.PayoutCompleteResult{}, errors.New("payout repository: payout id is required")
	}
	now := req.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var result repositories.PayoutCompleteResult
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		payoutRef, doc, err := r.getPayout(ctx, tx, payoutID)
		if err != nil {
			return err
		}
		switch doc.Status {
		case string(domain.PayoutTransactionPending), string(domain.PayoutTransactionProcessing):
			// completable
		default:
			return status.Errorf(codes.FailedPrecondition, "payout %s status %q cannot complete", payoutID, doc.Status)
		}

		orderRefs, orders, err := r.getClaimedOrders(ctx, tx, payoutID, doc.OrderIDs)
		if err != nil {
			return err
		}

		payoutUpdates := []firestore.Update{
			{Path: "status", Value: string(domain.PayoutTransactionCompleted)},
			{Path: "completedAt", Value: now},
		}
		if err := tx.Update(payoutRef, payoutUpdates); err != nil {
			return err
		}
		for i, ref := range orderRefs {
			updates := []firestore.Update{
				{Path: "payout.status", Value: string(domain.PayoutStatusPaid)},
				{Path: "payout.completedAt", Value: now},
				{Path: "updatedAt", Value: now},
			}
			if err := tx.Update(ref, updates); err != nil {
				return err
			}
			orders[i].Payout.Status = domain.PayoutStatusPaid
			orders[i].Payout.CompletedAt = &now
			orders[i].UpdatedAt = now
		}

		txn := decodePayoutDocument(payoutID, doc)
		txn.Status = domain.PayoutTransactionCompleted
		txn.CompletedAt = &now
		result = repositories.PayoutCompleteResult{Transaction: txn, Orders: orders}
		return nil
	})
	if err != nil {
		return repositories.PayoutCompleteResult{}, pfirestore.WrapError("payouts.complete", err)
	}
	return result, nil
}

// Fail marks the batch failed and releases the claimed orders back to the
// eligible pool: held while still inside the return window, ready otherwise.
func (r *PayoutTransactionRepository) Fail(ctx context.Context, req repositories.PayoutFailRequest) (repositories.PayoutFailResult, error) {
	if r == nil || r.provider == nil {
		return repositories.PayoutFailResult{}, errors.New("payout repository not initialised")
	}
	payoutID := strings.TrimSpace(req.PayoutID)
	if payoutID == "" {
		return repositories.PayoutFailResult{}, errors.New("payout repository: payout id is required")
	}
	now := req.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var result repositories.PayoutFailResult
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		payoutRef, doc, err := r.getPayout(ctx, tx, payoutID)
		if err != nil {
			return err
		}
		switch doc.Status {
		case string(domain.PayoutTransactionPending), string(domain.PayoutTransactionProcessing):
			// failable
		default:
			return status.Errorf(codes.FailedPrecondition, "payout %s status %q cannot fail", payoutID, doc.Status)
		}

		orderRefs, orders, err := r.getClaimedOrders(ctx, tx, payoutID, doc.OrderIDs)
		if err != nil {
			return err
		}

		payoutUpdates := []firestore.Update{
			{Path: "status", Value: string(domain.PayoutTransactionFailed)},
			{Path: "failureReason", Value: strings.TrimSpace(req.Reason)},
		}
		if err := tx.Update(payoutRef, payoutUpdates); err != nil {
			return err
		}
		for i, ref := range orderRefs {
			released := domain.PayoutStatusReady
			if eligible := orders[i].Payout.EligibleAt; eligible != nil && now.Before(*eligible) {
				released = domain.PayoutStatusHeld
			}
			updates := []firestore.Update{
				{Path: "payout.status", Value: string(released)},
				{Path: "payout.transactionRef", Value: ""},
				{Path: "updatedAt", Value: now},
			}
			if err := tx.Update(ref, updates); err != nil {
				return err
			}
			orders[i].Payout.Status = released
			orders[i].Payout.TransactionRef = ""
			orders[i].UpdatedAt = now
		}

		txn := decodePayoutDocument(payoutID, doc)
		txn.Status = domain.PayoutTransactionFailed
		txn.FailureReason = strings.TrimSpace(req.Reason)
		result = repositories.PayoutFailResult{Transaction: txn, Orders: orders}
		return nil
	})
	if err != nil {
		return repositories.PayoutFailResult{}, pfirestore.WrapError("payouts.fail", err)
	}
	return result, nil
}

// FindByID fetches a single payout transaction.
func (r *PayoutTransactionRepository) FindByID(ctx context.Context, payoutID string) (domain.PayoutTransaction, error) {
	if r == nil || r.payouts == nil {
		return domain.PayoutTransaction{}, errors.New("payout repository not initialised")
	}
	payoutID = strings.TrimSpace(payoutID)
	if payoutID == "" {
		return domain.PayoutTransaction{}, errors.New("payout repository: payout id is required")
	}
	doc, err := r.payouts.Get(ctx, payoutID)
	if err != nil {
		return domain.PayoutTransaction{}, err
	}
	return decodePayoutDocument(payoutID, doc.Data), nil
}

// ListBySeller returns payout batches for the seller ordered by most recent creation.
func (r *PayoutTransactionRepository) ListBySeller(ctx context.Context, sellerID string, filter repositories.PayoutListFilter) (domain.CursorPage[domain.PayoutTransaction], error) {
	if r == nil || r.payouts == nil {
		return domain.CursorPage[domain.PayoutTransaction]{}, errors.New("payout repository not initialised")
	}
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return domain.CursorPage[domain.PayoutTransaction]{}, errors.New("payout repository: seller id is required")
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
			return domain.CursorPage[domain.PayoutTransaction]{}, fmt.Errorf("payout repository: %w", err)
		}
		startAfter = []any{cursor.CreatedAt, cursor.ID}
	}

	statusFilters := normaliseFilterValues(filter.Status)

	docs, err := r.payouts.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("sellerId", "==", sellerID)
		if len(statusFilters) == 1 {
			q = q.Where("status", "==", statusFilters[0])
		} else if len(statusFilters) > 1 {
			if len(statusFilters) > 10 {
				statusFilters = statusFilters[:10]
			}
			q = q.Where("status", "in", statusFilters)
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
		return domain.CursorPage[domain.PayoutTransaction]{}, err
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

	items := make([]domain.PayoutTransaction, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, decodePayoutDocument(doc.ID, doc.Data))
	}

	return domain.CursorPage[domain.PayoutTransaction]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// ListCompletedBySeller returns completed batches unpaginated for wallet aggregation.
func (r *PayoutTransactionRepository) ListCompletedBySeller(ctx context.Context, sellerID string) ([]domain.PayoutTransaction, error) {
	if r == nil || r.payouts == nil {
		return nil, errors.New("payout repository not initialised")
	}
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return nil, errors.New("payout repository: seller id is required")
	}

	docs, err := r.payouts.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.
			Where("sellerId", "==", sellerID).
			Where("status", "==", string(domain.PayoutTransactionCompleted)).
			OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	items := make([]domain.PayoutTransaction, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodePayoutDocument(doc.ID, doc.Data))
	}
	return items, nil
}

func (r *PayoutTransactionRepository) getPayout(ctx context.Context, tx *firestore.Transaction, payoutID string) (*firestore.DocumentRef, payoutDocument, error) {
	ref, err := r.payouts.DocumentRef(ctx, payoutID)
	if err != nil {
		return nil, payoutDocument{}, err
	}
	snap, err := tx.Get(ref)
	if err != nil {
		return nil, payoutDocument{}, err
	}
	var doc payoutDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, payoutDocument{}, fmt.Errorf("firestore payouts decode %s: %w", payoutID, err)
	}
	return ref, doc, nil
}

func (r *PayoutTransactionRepository) getClaimedOrders(ctx context.Context, tx *firestore.Transaction, payoutID string, orderIDs []string) ([]*firestore.DocumentRef, []domain.Order, error) {
	refs := make([]*firestore.DocumentRef, 0, len(orderIDs))
	orders := make([]domain.Order, 0, len(orderIDs))
	for _, orderID := range orderIDs {
		orderID = strings.TrimSpace(orderID)
		ref, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return nil, nil, err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return nil, nil, err
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, nil, fmt.Errorf("firestore payouts decode order %s: %w", orderID, err)
		}
		order := decodeOrderDocument(orderID, doc, snap.CreateTime, snap.UpdateTime)
		if order.Payout.TransactionRef != payoutID {
			return nil, nil, status.Errorf(codes.FailedPrecondition, "order %s is not claimed by payout %s", orderID, payoutID)
		}
		refs = append(refs, ref)
		orders = append(orders, order)
	}
	return refs, orders, nil
}

type payoutDocument struct {
	Number        string                    `firestore:"number"`
	SellerID      string                    `firestore:"sellerId"`
	OrderIDs      []string                  `firestore:"orderIds"`
	Amount        float64                   `firestore:"amount"`
	Breakdown     []payoutOrderLineDocument `firestore:"breakdown"`
	Destination   payoutDestinationDocument `firestore:"destination"`
	Status        string                    `firestore:"status"`
	FailureReason string                    `firestore:"failureReason,omitempty"`
	CreatedAt     time.Time                 `firestore:"createdAt"`
	CompletedAt   *time.Time                `firestore:"completedAt,omitempty"`
}

type payoutOrderLineDocument struct {
	OrderID     string    `firestore:"orderId"`
	OrderNumber string    `firestore:"orderNumber"`
	NetEarning  float64   `firestore:"netEarning"`
	DeliveredAt time.Time `firestore:"deliveredAt"`
}

type payoutDestinationDocument struct {
	Mode          string `firestore:"mode"`
	HolderName    string `firestore:"holderName,omitempty"`
	AccountNumber string `firestore:"accountNumber,omitempty"`
	IFSC          string `firestore:"ifsc,omitempty"`
	UPIHandle     string `firestore:"upiHandle,omitempty"`
}

func encodePayoutDocument(txn domain.PayoutTransaction) payoutDocument {
	doc := payoutDocument{
		Number:        strings.TrimSpace(txn.Number),
		SellerID:      strings.TrimSpace(txn.SellerID),
		OrderIDs:      cloneStrings(txn.OrderIDs),
		Amount:        encodeAmount(txn.Amount),
		Breakdown:     make([]payoutOrderLineDocument, 0, len(txn.Breakdown)),
		Destination:   encodePayoutDestination(txn.Destination),
		Status:        string(txn.Status),
		FailureReason: strings.TrimSpace(txn.FailureReason),
		CreatedAt:     txn.CreatedAt.UTC(),
		CompletedAt:   normalizeTimePointer(txn.CompletedAt),
	}
	for _, line := range txn.Breakdown {
		doc.Breakdown = append(doc.Breakdown, payoutOrderLineDocument{
			OrderID:     strings.TrimSpace(line.OrderID),
			OrderNumber: strings.TrimSpace(line.OrderNumber),
			NetEarning:  encodeAmount(line.NetEarning),
			DeliveredAt: line.DeliveredAt.UTC(),
		})
	}
	return doc
}

func encodePayoutDestination(dest domain.PayoutDestination) payoutDestinationDocument {
	return payoutDestinationDocument{
		Mode:          string(dest.Mode),
		HolderName:    strings.TrimSpace(dest.HolderName),
		AccountNumber: strings.TrimSpace(dest.AccountNumber),
		IFSC:          strings.TrimSpace(dest.IFSC),
		UPIHandle:     strings.TrimSpace(dest.UPIHandle),
	}
}

func decodePayoutDocument(id string, doc payoutDocument) domain.PayoutTransaction {
	txn := domain.PayoutTransaction{
		ID:            strings.TrimSpace(id),
		Number:        strings.TrimSpace(doc.Number),
		SellerID:      strings.TrimSpace(doc.SellerID),
		OrderIDs:      cloneStrings(doc.OrderIDs),
		Amount:        decodeAmount(doc.Amount),
		Breakdown:     make([]domain.PayoutOrderLine, 0, len(doc.Breakdown)),
		Destination:   decodePayoutDestination(doc.Destination),
		Status:        domain.PayoutTransactionStatus(strings.TrimSpace(doc.Status)),
		FailureReason: strings.TrimSpace(doc.FailureReason),
		CreatedAt:     doc.CreatedAt.UTC(),
		CompletedAt:   normalizeTimePointer(doc.CompletedAt),
	}
	for _, line := range doc.Breakdown {
		txn.Breakdown = append(txn.Breakdown, domain.PayoutOrderLine{
			OrderID:     strings.TrimSpace(line.OrderID),
			OrderNumber: strings.TrimSpace(line.OrderNumber),
			NetEarning:  decodeAmount(line.NetEarning),
			DeliveredAt: line.DeliveredAt.UTC(),
		})
	}
	return txn
}

func decodePayoutDestination(doc payoutDestinationDocument) domain.PayoutDestination {
	return domain.PayoutDestination{
		Mode:          domain.PayoutMode(strings.TrimSpace(doc.Mode)),
		HolderName:    strings.TrimSpace(doc.HolderName),
		AccountNumber: strings.TrimSpace(doc.AccountNumber),
		IFSC:          strings.TrimSpace(doc.IFSC),
		UPIHandle:     strings.TrimSpace(doc.UPIHandle),
	}
}
