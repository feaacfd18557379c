package cron

import (
	"context"
	"fmt"

	"github.com/settleflow/settleflow-backend/internal/orders"
	"github.com/settleflow/settleflow-backend/pkg/logger"
)

// OrderEventRetryJobName is also used to derive the job's lock key.
const OrderEventRetryJobName = "order-event-retry"

type pendingSweeper interface {
	RetryPending(ctx context.Context) (orders.SweepResult, error)
}

// OrderEventRetryJobParams configure the pending order event sweep.
type OrderEventRetryJobParams struct {
	Logger *logger.Logger
	Orders pendingSweeper
}

type orderEventRetryJob struct {
	logg   *logger.Logger
	orders pendingSweeper
}

// NewOrderEventRetryJob builds the job that re-publishes orders stuck in PENDING_EVENT.
func NewOrderEventRetryJob(params OrderEventRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders sweeper required")
	}
	return &orderEventRetryJob{logg: params.Logger, orders: params.Orders}, nil
}

func (j *orderEventRetryJob) Name() string { return OrderEventRetryJobName }

func (j *orderEventRetryJob) Run(ctx context.Context) error {
	result, err := j.orders.RetryPending(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned": result.Scanned,
		"sent":    result.Sent,
		"failed":  result.Failed,
		"skipped": result.Skipped,
	})
	if result.Scanned > 0 {
		j.logg.Info(logCtx, "order event retry sweep complete")
	} else {
		j.logg.Debug(logCtx, "no pending order events")
	}
	if err != nil {
		return fmt.Errorf("retry pending order events: %w", err)
	}
	return nil
}
