package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/settleflow/settleflow-backend/pkg/channel"
	"github.com/settleflow/settleflow-backend/pkg/config"
	"github.com/settleflow/settleflow-backend/pkg/db/models"
	"github.com/settleflow/settleflow-backend/pkg/events"
)

const defaultPublishTimeout = 10 * time.Second

// PublishOutcome is the result of a single publish attempt.
type PublishOutcome int

const (
	PublishSent PublishOutcome = iota + 1
	PublishFailed
)

func (o PublishOutcome) String() string {
	switch o {
	case PublishSent:
		return "sent"
	case PublishFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PublisherParams configure the order event publisher.
type PublisherParams struct {
	Sender     channel.Sender
	Settlement config.SettlementConfig
}

// Publisher sends one OrderCreatedEvent per call and never retries internally.
type Publisher struct {
	sender  channel.Sender
	feeRate decimal.Decimal
	timeout time.Duration
}

// NewPublisher validates params and builds a Publisher.
func NewPublisher(params PublisherParams) (*Publisher, error) {
	if params.Sender == nil {
		return nil, errors.New("channel sender required")
	}
	timeout := params.Settlement.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Publisher{
		sender:  params.Sender,
		feeRate: params.Settlement.FeeRate,
		timeout: timeout,
	}, nil
}

// Publish snapshots the order into an event and sends it keyed by order id.
// Every failure, including serialization and timeouts, maps to PublishFailed
// with the cause returned alongside.
func (p *Publisher) Publish(ctx context.Context, order models.Order) (PublishOutcome, error) {
	event := events.NewOrderCreatedEvent(order, p.feeRate)
	payload, err := event.Encode()
	if err != nil {
		return PublishFailed, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := channel.Message{
		Key:   event.Key(),
		Value: payload,
		Attributes: map[string]string{
			"event_type": events.OrderCreatedEventType,
		},
	}
	if err := p.sender.Send(sendCtx, msg); err != nil {
		return PublishFailed, fmt.Errorf("send order %d: %w", order.ID, err)
	}
	return PublishSent, nil
}
