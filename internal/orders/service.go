package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/settleflow/settleflow-backend/pkg/db/models"
	"github.com/settleflow/settleflow-backend/pkg/enums"
	pkgerrors "github.com/settleflow/settleflow-backend/pkg/errors"
	"github.com/settleflow/settleflow-backend/pkg/fee"
	"github.com/settleflow/settleflow-backend/pkg/logger"
	"github.com/settleflow/settleflow-backend/pkg/metrics"
)

var minTotalAmount = decimal.New(1, -2)

// CreateOrderInput carries the buyer supplied fields of a new order.
type CreateOrderInput struct {
	UserID      int64
	TotalAmount decimal.Decimal
}

// SweepResult summarizes one pass over the pending orders.
type SweepResult struct {
	Scanned int
	Sent    int
	Failed  int
	Skipped int
}

type publishStep int

const (
	stepSkipped publishStep = iota
	stepSent
	stepFailed
)

// ServiceParams configure the order service.
type ServiceParams struct {
	Repo      Repository
	DB        txRunner
	Publisher orderPublisher
	Metrics   *metrics.PipelineMetrics
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	tx        txRunner
	publisher orderPublisher
	metrics   *metrics.PipelineMetrics
	logg      *logger.Logger
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Publisher == nil {
		return nil, fmt.Errorf("order publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      params.Repo,
		tx:        params.DB,
		publisher: params.Publisher,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

// CreateOrder persists the order as PENDING_EVENT and makes the first publish
// attempt. A failed publish never fails the call; the sweep picks it up.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if err := validateCreateOrder(input); err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:      input.UserID,
		TotalAmount: input.TotalAmount,
		Status:      enums.OrderStatusPendingEvent,
	}
	created, err := s.repo.Create(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}

	orderCtx := s.logg.WithOrderID(ctx, created.ID)
	step, err := s.publishOne(orderCtx, created.ID, metrics.PathCreate)
	if err != nil {
		s.logg.Error(orderCtx, "order event publish bookkeeping failed", err)
		return created, nil
	}
	switch step {
	case stepSent:
		created.Status = enums.OrderStatusOrdered
	case stepFailed:
		if current, findErr := s.repo.FindByID(ctx, created.ID); findErr == nil {
			created = current
		}
	}
	return created, nil
}

func (s *service) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// RetryPending re-publishes every PENDING_EVENT order once. Publish failures
// are counted, not returned; only store errors surface in the combined error.
func (s *service) RetryPending(ctx context.Context) (SweepResult, error) {
	pending, err := s.repo.FindByStatus(ctx, enums.OrderStatusPendingEvent)
	if err != nil {
		return SweepResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending orders")
	}
	s.metrics.SetPending(len(pending))

	result := SweepResult{Scanned: len(pending)}
	var errs error
	for _, order := range pending {
		if ctxErr := ctx.Err(); ctxErr != nil {
			errs = multierr.Append(errs, ctxErr)
			break
		}
		orderCtx := s.logg.WithOrderID(ctx, order.ID)
		step, err := s.publishOne(orderCtx, order.ID, metrics.PathRetry)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %d: %w", order.ID, err))
			continue
		}
		switch step {
		case stepSent:
			result.Sent++
		case stepFailed:
			result.Failed++
		default:
			result.Skipped++
		}
	}
	return result, errs
}

// publishOne holds the order row lock across the send so the create path and
// the sweep never publish the same order concurrently.
func (s *service) publishOne(ctx context.Context, id int64, path string) (publishStep, error) {
	step := stepSkipped
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockPending(ctx, id)
		if err != nil {
			return fmt.Errorf("lock pending order: %w", err)
		}
		if order == nil {
			step = stepSkipped
			return nil
		}

		outcome, pubErr := s.publisher.Publish(ctx, *order)
		s.metrics.IncPublish(path, outcome.String())
		if outcome == PublishSent {
			step = stepSent
			if err := repo.UpdateStatus(ctx, id, enums.OrderStatusOrdered); err != nil {
				return fmt.Errorf("mark order ordered: %w", err)
			}
			s.logg.Info(s.logg.WithField(ctx, "path", path), "order event published")
			return nil
		}

		step = stepFailed
		warnCtx := s.logg.WithFields(ctx, map[string]any{
			"path":     path,
			"attempts": order.PublishAttempts + 1,
			"error":    errorString(pubErr),
		})
		s.logg.Warn(warnCtx, "order event publish failed; order left pending")
		if err := repo.RecordPublishFailure(ctx, id, pubErr); err != nil {
			return fmt.Errorf("record publish failure: %w", err)
		}
		return nil
	})
	if err != nil {
		return stepSkipped, err
	}
	return step, nil
}

func validateCreateOrder(input CreateOrderInput) error {
	details := map[string]string{}
	if input.UserID <= 0 {
		details["userId"] = "must be greater than 0"
	}
	switch {
	case input.TotalAmount.LessThan(minTotalAmount):
		details["totalAmount"] = "must be at least 0.01"
	case !fee.HasScale(input.TotalAmount, fee.AmountScale):
		details["totalAmount"] = "must have at most 2 decimal places"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order").WithDetails(details)
	}
	return nil
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
