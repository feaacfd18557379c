package settlements

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/settleflow/settleflow-backend/pkg/db"
	"github.com/settleflow/settleflow-backend/pkg/db/models"
)

// UniqueOrderIDConstraint is the index that makes settlement creation idempotent.
const UniqueOrderIDConstraint = "uq_settlements_order_id"

// InsertOutcome classifies the result of InsertUnique.
type InsertOutcome int

const (
	InsertInserted InsertOutcome = iota + 1
	InsertDuplicateKey
	InsertError
)

func (o InsertOutcome) String() string {
	switch o {
	case InsertInserted:
		return "inserted"
	case InsertDuplicateKey:
		return "duplicate_key"
	case InsertError:
		return "error"
	default:
		return "unknown"
	}
}

// Repository defines persistence operations for the settlements table.
type Repository interface {
	// InsertUnique attempts the insert and classifies a unique violation on
	// order_id as InsertDuplicateKey. It never reads before writing.
	InsertUnique(ctx context.Context, settlement *models.Settlement) (InsertOutcome, error)
	FindAll(ctx context.Context) ([]models.Settlement, error)
	FindByOrderID(ctx context.Context, orderID int64) (*models.Settlement, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a settlements repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) InsertUnique(ctx context.Context, settlement *models.Settlement) (InsertOutcome, error) {
	if settlement == nil {
		return InsertError, errors.New("settlement required")
	}
	if settlement.ID == uuid.Nil {
		settlement.ID = uuid.New()
	}
	err := r.db.WithContext(ctx).Create(settlement).Error
	switch {
	case err == nil:
		return InsertInserted, nil
	case db.IsUniqueViolation(err, UniqueOrderIDConstraint):
		return InsertDuplicateKey, err
	default:
		return InsertError, err
	}
}

func (r *repository) FindAll(ctx context.Context) ([]models.Settlement, error) {
	var rows []models.Settlement
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("order_id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID int64) (*models.Settlement, error) {
	var settlement models.Settlement
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Take(&settlement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settlement, nil
}
