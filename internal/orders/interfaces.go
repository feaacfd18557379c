package orders

import (
	"context"

	"gorm.io/gorm"

	"github.com/settleflow/settleflow-backend/pkg/db/models"
	"github.com/settleflow/settleflow-backend/pkg/enums"
)

// Repository defines persistence operations for the orders table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id int64) (*models.Order, error)
	FindByStatus(ctx context.Context, status enums.OrderStatus) ([]models.Order, error)
	// LockPending row-locks the order while it is still PENDING_EVENT. It returns
	// nil, nil when the order is not pending or another transaction holds the lock.
	LockPending(ctx context.Context, id int64) (*models.Order, error)
	UpdateStatus(ctx context.Context, id int64, status enums.OrderStatus) error
	RecordPublishFailure(ctx context.Context, id int64, cause error) error
}

// Service defines order creation, reads and the pending event sweep.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	RetryPending(ctx context.Context) (SweepResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderPublisher interface {
	Publish(ctx context.Context, order models.Order) (PublishOutcome, error)
}
