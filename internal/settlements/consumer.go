package settlements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/settleflow/settleflow-backend/pkg/channel"
	"github.com/settleflow/settleflow-backend/pkg/config"
	"github.com/settleflow/settleflow-backend/pkg/db/models"
	"github.com/settleflow/settleflow-backend/pkg/enums"
	pkgerrors "github.com/settleflow/settleflow-backend/pkg/errors"
	"github.com/settleflow/settleflow-backend/pkg/events"
	"github.com/settleflow/settleflow-backend/pkg/fee"
	"github.com/settleflow/settleflow-backend/pkg/logger"
	"github.com/settleflow/settleflow-backend/pkg/metrics"
)

const defaultStoreTimeout = 5 * time.Second

// ConsumeOutcome classifies what happened to one delivered event.
type ConsumeOutcome int

const (
	ConsumeSettled ConsumeOutcome = iota + 1
	ConsumeDuplicate
	ConsumeFailed
	ConsumeRejected
)

func (o ConsumeOutcome) String() string {
	switch o {
	case ConsumeSettled:
		return "settled"
	case ConsumeDuplicate:
		return "duplicate"
	case ConsumeFailed:
		return "failed"
	case ConsumeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

type dlqWriter interface {
	Insert(ctx context.Context, entry models.SettlementDLQ) error
}

// ConsumerParams configure the settlement consumer.
type ConsumerParams struct {
	Repo       Repository
	DLQ        dlqWriter
	Settlement config.SettlementConfig
	Metrics    *metrics.PipelineMetrics
	Logger     *logger.Logger
}

// Consumer turns OrderCreatedEvents into settlements, at most one per order.
type Consumer struct {
	repo         Repository
	dlq          dlqWriter
	calc         fee.Calculator
	storeTimeout time.Duration
	metrics      *metrics.PipelineMetrics
	logg         *logger.Logger
	now          func() time.Time
}

// NewConsumer validates params and builds a Consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Repo == nil {
		return nil, errors.New("settlement repository required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	timeout := params.Settlement.StoreTimeout
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return &Consumer{
		repo:         params.Repo,
		dlq:          params.DLQ,
		calc:         fee.NewCalculator(params.Settlement.FeeScale),
		storeTimeout: timeout,
		metrics:      params.Metrics,
		logg:         params.Logger,
		now:          time.Now,
	}, nil
}

// HandleMessage implements channel.Handler. It parses the payload and runs
// Consume; the returned error is informational and the message is acked anyway.
func (c *Consumer) HandleMessage(ctx context.Context, msg channel.Message) error {
	event, err := events.ParseOrderCreated(msg.Value)
	if err != nil {
		logCtx := c.logg.WithField(ctx, "message_key", msg.Key)
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "rejecting undecodable order created event")
		c.finish(ConsumeRejected)
		c.deadLetter(logCtx, nil, msg, enums.SettlementDLQReasonUndecodable, err)
		return fmt.Errorf("rejected message %q: %w", msg.Key, err)
	}

	switch c.consume(ctx, event, msg) {
	case ConsumeFailed:
		return fmt.Errorf("settlement for order %d not stored", event.OrderID)
	case ConsumeRejected:
		return fmt.Errorf("rejected invalid event for order %d", event.OrderID)
	}
	return nil
}

// Consume computes the fee split and inserts the settlement. A duplicate key
// means the order was already settled and is not an error.
func (c *Consumer) Consume(ctx context.Context, event events.OrderCreatedEvent) ConsumeOutcome {
	msg := channel.Message{Key: event.Key()}
	if payload, err := event.Encode(); err == nil {
		msg.Value = payload
	}
	return c.consume(ctx, event, msg)
}

func (c *Consumer) consume(ctx context.Context, event events.OrderCreatedEvent, msg channel.Message) ConsumeOutcome {
	ctx = c.logg.WithOrderID(ctx, event.OrderID)
	orderID := event.OrderID

	if err := event.Validate(); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "rejecting invalid order created event")
		var dlqOrderID *int64
		if orderID > 0 {
			dlqOrderID = &orderID
		}
		c.deadLetter(ctx, dlqOrderID, msg, enums.SettlementDLQReasonInvalidEvent, err)
		return c.finish(ConsumeRejected)
	}

	feeAmount, settleAmount := c.calc.Calculate(event.TotalAmount, event.FeeRate.Decimal)
	settlement := &models.Settlement{
		OrderID:      event.OrderID,
		UserID:       event.UserID,
		TotalAmount:  event.TotalAmount,
		Fee:          feeAmount,
		SettleAmount: settleAmount,
		OrderedAt:    event.OrderedAt,
		Status:       enums.SettlementStatusWaiting,
	}

	storeCtx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()

	outcome, err := c.repo.InsertUnique(storeCtx, settlement)
	switch outcome {
	case InsertInserted:
		c.logg.Info(c.logg.WithFields(ctx, map[string]any{
			"fee":           feeAmount.String(),
			"settle_amount": settleAmount.String(),
		}), "settlement stored")
		return c.finish(ConsumeSettled)
	case InsertDuplicateKey:
		c.logg.Warn(ctx, "settlement already exists for order; duplicate delivery ignored")
		return c.finish(ConsumeDuplicate)
	default:
		if err == nil {
			err = fmt.Errorf("unexpected insert outcome %s", outcome)
		}
		c.logg.Error(c.logg.WithField(ctx, "error_dump", pkgerrors.Dump(err)), "settlement insert failed", err)
		c.deadLetter(ctx, &orderID, msg, enums.SettlementDLQReasonUnknownStoreFailure, err)
		return c.finish(ConsumeFailed)
	}
}

func (c *Consumer) finish(outcome ConsumeOutcome) ConsumeOutcome {
	c.metrics.IncConsume(outcome.String())
	return outcome
}

// deadLetter is best effort; its own failure is only logged.
func (c *Consumer) deadLetter(ctx context.Context, orderID *int64, msg channel.Message, reason enums.SettlementDLQReason, cause error) {
	if c.dlq == nil {
		return
	}
	message := cause.Error()
	entry := models.SettlementDLQ{
		OrderID:      orderID,
		MessageKey:   msg.Key,
		Payload:      string(msg.Value),
		ErrorReason:  reason,
		ErrorMessage: &message,
		FailedAt:     c.now().UTC(),
	}

	dlqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.storeTimeout)
	defer cancel()
	if err := c.dlq.Insert(dlqCtx, entry); err != nil {
		c.logg.Error(ctx, "failed to write settlement dlq entry", err)
	}
}
