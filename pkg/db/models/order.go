package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/settleflow/settleflow-backend/pkg/enums"
)

// Order is the buyer-facing order whose creation must reach the settlement side.
type Order struct {
	ID               int64             `gorm:"column:id;primaryKey;autoIncrement"`
	UserID           int64             `gorm:"column:user_id;not null"`
	TotalAmount      decimal.Decimal   `gorm:"column:total_amount;type:numeric(19,2);not null"`
	Status           enums.OrderStatus `gorm:"column:status;type:varchar(32);not null;index:idx_orders_status"`
	PublishAttempts  int               `gorm:"column:publish_attempts;not null;default:0"`
	LastPublishError *string           `gorm:"column:last_publish_error"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
