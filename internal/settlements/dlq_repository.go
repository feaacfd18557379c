package settlements

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgdb "github.com/settleflow/settleflow-backend/pkg/db"
	"github.com/settleflow/settleflow-backend/pkg/db/models"
)

const maxDLQErrorLen = 1024

// DLQRepository stores consumed messages that could not become settlements.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) Insert(ctx context.Context, entry models.SettlementDLQ) error {
	if !entry.ErrorReason.IsValid() {
		return errors.New("invalid dlq reason")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.ErrorMessage != nil {
		msg := pkgdb.TruncateText(*entry.ErrorMessage, maxDLQErrorLen)
		entry.ErrorMessage = &msg
	}
	entry.Payload = pkgdb.SanitizeText(entry.Payload)
	return r.db.WithContext(ctx).Create(&entry).Error
}

func (r *DLQRepository) FindByOrderID(ctx context.Context, orderID int64) ([]models.SettlementDLQ, error) {
	var rows []models.SettlementDLQ
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("failed_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *DLQRepository) List(ctx context.Context, limit int) ([]models.SettlementDLQ, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.SettlementDLQ
	err := r.db.WithContext(ctx).
		Order("failed_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
