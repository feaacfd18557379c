package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/settleflow/settleflow-backend/pkg/db/models"
	"github.com/settleflow/settleflow-backend/pkg/fee"
)

// OrderCreatedEventType is set as the event_type message attribute.
const OrderCreatedEventType = "order.created"

// OrderCreatedEvent is the message the order side sends for every publish attempt.
type OrderCreatedEvent struct {
	OrderID     int64           `json:"orderId"`
	UserID      int64           `json:"userId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	FeeRate     Rate            `json:"feeRate"`
	OrderedAt   string          `json:"orderedAt"`
}

// Rate is a fraction serialized as a bare JSON number. Decoding also accepts
// the quoted form.
type Rate struct {
	decimal.Decimal
}

// NewRate wraps d as a Rate.
func NewRate(d decimal.Decimal) Rate {
	return Rate{Decimal: d}
}

func (r Rate) MarshalJSON() ([]byte, error) {
	return []byte(r.Decimal.String()), nil
}

func (r *Rate) UnmarshalJSON(data []byte) error {
	return r.Decimal.UnmarshalJSON(data)
}

// NewOrderCreatedEvent snapshots the order's current fields with the given fee rate.
func NewOrderCreatedEvent(order models.Order, feeRate decimal.Decimal) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		FeeRate:     NewRate(feeRate),
		OrderedAt:   order.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Key returns the partition/ordering key: the order id in base 10.
func (e OrderCreatedEvent) Key() string {
	return strconv.FormatInt(e.OrderID, 10)
}

// Encode serializes the event for the wire.
func (e OrderCreatedEvent) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode order created event %d: %w", e.OrderID, err)
	}
	return data, nil
}

// Validate rejects events that cannot produce a settlement.
func (e OrderCreatedEvent) Validate() error {
	var errs []error
	if e.OrderID <= 0 {
		errs = append(errs, errors.New("orderId must be positive"))
	}
	if e.UserID <= 0 {
		errs = append(errs, errors.New("userId must be positive"))
	}
	if !e.TotalAmount.IsPositive() {
		errs = append(errs, errors.New("totalAmount must be positive"))
	}
	if !fee.HasScale(e.TotalAmount, fee.AmountScale) {
		errs = append(errs, errors.New("totalAmount must have at most 2 decimal places"))
	}
	if e.FeeRate.IsNegative() || e.FeeRate.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, errors.New("feeRate must be within [0, 1]"))
	}
	return errors.Join(errs...)
}

// ParseOrderCreated parses a wire payload without validating it.
func ParseOrderCreated(data []byte) (OrderCreatedEvent, error) {
	var event OrderCreatedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return OrderCreatedEvent{}, fmt.Errorf("decode order created event: %w", err)
	}
	return event, nil
}

// DecodeOrderCreated parses and validates a wire payload.
func DecodeOrderCreated(data []byte) (OrderCreatedEvent, error) {
	event, err := ParseOrderCreated(data)
	if err != nil {
		return OrderCreatedEvent{}, err
	}
	if err := event.Validate(); err != nil {
		return OrderCreatedEvent{}, fmt.Errorf("invalid order created event: %w", err)
	}
	return event, nil
}
