package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/shopspring/decimal"

	"github.com/sellerdesk/api/internal/services"
)

// Event names carried in the "event" message attribute.
const (
	EventOrderStatusChanged      = "order.status.changed"
	EventOrderEarningsCalculated = "order.earnings.calculated"
	EventPayoutRequested         = "payout.requested"
	EventPayoutCompleted         = "payout.completed"
	EventPayoutFailed            = "payout.failed"
)

// OrderStatusChangedMessage is the wire payload for order lifecycle events.
type OrderStatusChangedMessage struct {
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	SellerID    string    `json:"sellerId"`
	BuyerID     string    `json:"buyerId"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to"`
	Note        string    `json:"note,omitempty"`
	ChangedBy   string    `json:"changedBy,omitempty"`
	ChangedAt   time.Time `json:"changedAt"`
}

// EarningsCalculatedMessage is the wire payload emitted after the earnings
// pipeline runs for an order.
type EarningsCalculatedMessage struct {
	OrderID          string          `json:"orderId"`
	OrderNumber      string          `json:"orderNumber"`
	SellerID         string          `json:"sellerId"`
	NetSellerEarning decimal.Decimal `json:"netSellerEarning"`
	CommissionAmount decimal.Decimal `json:"commissionAmount"`
	PayoutStatus     string          `json:"payoutStatus"`
	EligibleAt       *time.Time      `json:"eligibleAt,omitempty"`
	CalculatedAt     time.Time       `json:"calculatedAt"`
}

// PayoutMessage is the wire payload for payout batch events.
type PayoutMessage struct {
	PayoutID      string          `json:"payoutId"`
	Number        string          `json:"number"`
	SellerID      string          `json:"sellerId"`
	OrderIDs      []string        `json:"orderIds"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	FailureReason string          `json:"failureReason,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
}

// EventPublisher publishes order and payout events to a Pub/Sub topic.
type EventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var (
	_ services.OrderEventPublisher  = (*EventPublisher)(nil)
	_ services.PayoutEventPublisher = (*EventPublisher)(nil)
)

// NewEventPublisher constructs a Pub/Sub backed event publisher.
func NewEventPublisher(topic *pubsub.Topic) (*EventPublisher, error) {
	if topic == nil {
		return nil, errors.New("event publisher: topic is required")
	}
	return &EventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderStatusChanged emits an order lifecycle event.
func (p *EventPublisher) PublishOrderStatusChanged(ctx context.Context, order services.Order, change services.StatusChange) error {
	msg := OrderStatusChangedMessage{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		SellerID:    order.SellerID,
		BuyerID:     order.BuyerID,
		From:        string(change.From),
		To:          string(change.To),
		Note:        change.Note,
		ChangedBy:   change.ChangedBy,
		ChangedAt:   change.ChangedAt,
	}
	attrs := map[string]string{}
	setAttr(attrs, "orderId", order.ID)
	setAttr(attrs, "sellerId", order.SellerID)
	setAttr(attrs, "status", string(change.To))
	return p.publish(ctx, EventOrderStatusChanged, msg, attrs)
}

// PublishEarningsCalculated emits the earnings breakdown event for an order.
func (p *EventPublisher) PublishEarningsCalculated(ctx context.Context, order services.Order) error {
	if order.Earnings == nil {
		return errors.New("event publisher: order has no earnings")
	}
	msg := EarningsCalculatedMessage{
		OrderID:          order.ID,
		OrderNumber:      order.OrderNumber,
		SellerID:         order.SellerID,
		NetSellerEarning: order.Earnings.NetSellerEarning,
		CommissionAmount: order.Earnings.CommissionAmount,
		PayoutStatus:     string(order.Payout.Status),
		EligibleAt:       order.Payout.EligibleAt,
		CalculatedAt:     order.Earnings.CalculatedAt,
	}
	attrs := map[string]string{}
	setAttr(attrs, "orderId", order.ID)
	setAttr(attrs, "sellerId", order.SellerID)
	return p.publish(ctx, EventOrderEarningsCalculated, msg, attrs)
}

// PublishPayoutRequested emits the claim event for a new payout batch.
func (p *EventPublisher) PublishPayoutRequested(ctx context.Context, txn services.PayoutTransaction) error {
	return p.publishPayout(ctx, EventPayoutRequested, txn)
}

// PublishPayoutCompleted emits the settlement event for a payout batch.
func (p *EventPublisher) PublishPayoutCompleted(ctx context.Context, txn services.PayoutTransaction) error {
	return p.publishPayout(ctx, EventPayoutCompleted, txn)
}

// PublishPayoutFailed emits the failure event for a payout batch.
func (p *EventPublisher) PublishPayoutFailed(ctx context.Context, txn services.PayoutTransaction) error {
	return p.publishPayout(ctx, EventPayoutFailed, txn)
}

func (p *EventPublisher) publishPayout(ctx context.Context, event string, txn services.PayoutTransaction) error {
	msg := PayoutMessage{
		PayoutID:      txn.ID,
		Number:        txn.Number,
		SellerID:      txn.SellerID,
		OrderIDs:      txn.OrderIDs,
		Amount:        txn.Amount,
		Status:        string(txn.Status),
		FailureReason: txn.FailureReason,
		CreatedAt:     txn.CreatedAt,
		CompletedAt:   txn.CompletedAt,
	}
	attrs := map[string]string{}
	setAttr(attrs, "payoutId", txn.ID)
	setAttr(attrs, "sellerId", txn.SellerID)
	return p.publish(ctx, event, msg, attrs)
}

func (p *EventPublisher) publish(ctx context.Context, event string, payload any, attrs map[string]string) error {
	if p == nil || p.topic == nil {
		return errors.New("event publisher: not initialised")
	}
	data, err := p.marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	attrs["event"] = event

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
