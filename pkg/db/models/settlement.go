package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/settleflow/settleflow-backend/pkg/enums"
)

// Settlement holds the fee split computed once per order. Fee and
// SettleAmount keep whatever precision the calculator produced.
type Settlement struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      int64                  `gorm:"column:order_id;not null;uniqueIndex:uq_settlements_order_id"`
	UserID       int64                  `gorm:"column:user_id;not null"`
	TotalAmount  decimal.Decimal        `gorm:"column:total_amount;type:numeric(19,2);not null"`
	Fee          decimal.Decimal        `gorm:"column:fee;type:numeric;not null"`
	SettleAmount decimal.Decimal        `gorm:"column:settle_amount;type:numeric;not null"`
	OrderedAt    string                 `gorm:"column:ordered_at;not null"`
	Status       enums.SettlementStatus `gorm:"column:status;type:varchar(32);not null"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
}
