package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/settleflow/settleflow-backend/pkg/enums"
)

// SettlementDLQ captures consumer failures that were acknowledged without a settlement.
type SettlementDLQ struct {
	ID           uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      *int64                    `gorm:"column:order_id"`
	MessageKey   string                    `gorm:"column:message_key"`
	Payload      string                    `gorm:"column:payload;not null"`
	ErrorReason  enums.SettlementDLQReason `gorm:"column:error_reason;type:varchar(64);not null"`
	ErrorMessage *string                   `gorm:"column:error_message"`
	FailedAt     time.Time                 `gorm:"column:failed_at"`
	CreatedAt    time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (SettlementDLQ) TableName() string {
	return "settlement_dlq"
}
