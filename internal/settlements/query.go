package settlements

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/settleflow/settleflow-backend/pkg/db/models"
	"github.com/settleflow/settleflow-backend/pkg/enums"
	pkgerrors "github.com/settleflow/settleflow-backend/pkg/errors"
	"github.com/settleflow/settleflow-backend/pkg/logger"
	pkgredis "github.com/settleflow/settleflow-backend/pkg/redis"
)

const defaultCacheTTL = 10 * time.Minute

// SettlementView is the read model served by the API and stored in the cache.
type SettlementView struct {
	ID           uuid.UUID              `json:"id"`
	OrderID      int64                  `json:"orderId"`
	UserID       int64                  `json:"userId"`
	TotalAmount  decimal.Decimal        `json:"totalAmount"`
	Fee          decimal.Decimal        `json:"fee"`
	SettleAmount decimal.Decimal        `json:"settleAmount"`
	OrderedAt    string                 `json:"orderedAt"`
	Status       enums.SettlementStatus `json:"status"`
	CreatedAt    time.Time              `json:"createdAt"`
}

// NewSettlementView maps a stored settlement to its read model.
func NewSettlementView(s models.Settlement) SettlementView {
	return SettlementView{
		ID:           s.ID,
		OrderID:      s.OrderID,
		UserID:       s.UserID,
		TotalAmount:  s.TotalAmount,
		Fee:          s.Fee,
		SettleAmount: s.SettleAmount,
		OrderedAt:    s.OrderedAt,
		Status:       s.Status,
		CreatedAt:    s.CreatedAt.UTC(),
	}
}

type settlementCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SettlementKey(orderID int64) string
}

// QueryService serves settlement reads.
type QueryService interface {
	List(ctx context.Context) ([]SettlementView, error)
	GetByOrderID(ctx context.Context, orderID int64) (*SettlementView, error)
}

// QueryServiceParams configure the read service. Cache is optional.
type QueryServiceParams struct {
	Repo     Repository
	Cache    settlementCache
	CacheTTL time.Duration
	Logger   *logger.Logger
}

type queryService struct {
	repo  Repository
	cache settlementCache
	ttl   time.Duration
	logg  *logger.Logger
}

// NewQueryService builds the settlement read service.
func NewQueryService(params QueryServiceParams) (QueryService, error) {
	if params.Repo == nil {
		return nil, errors.New("settlement repository required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &queryService{
		repo:  params.Repo,
		cache: params.Cache,
		ttl:   ttl,
		logg:  params.Logger,
	}, nil
}

func (s *queryService) List(ctx context.Context) ([]SettlementView, error) {
	rows, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list settlements")
	}
	views := make([]SettlementView, 0, len(rows))
	for _, row := range rows {
		views = append(views, NewSettlementView(row))
	}
	return views, nil
}

// GetByOrderID reads through the cache. Cache failures fall back to the
// database and absent settlements are never cached.
func (s *queryService) GetByOrderID(ctx context.Context, orderID int64) (*SettlementView, error) {
	if orderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id must be positive")
	}
	ctx = s.logg.WithOrderID(ctx, orderID)

	if view, ok := s.fromCache(ctx, orderID); ok {
		return view, nil
	}

	settlement, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settlement")
	}
	if settlement == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "settlement not found")
	}

	view := NewSettlementView(*settlement)
	s.toCache(ctx, view)
	return &view, nil
}

func (s *queryService) fromCache(ctx context.Context, orderID int64) (*SettlementView, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, s.cache.SettlementKey(orderID))
	if err != nil {
		if !pkgredis.IsCacheMiss(err) {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "settlement cache read failed")
		}
		return nil, false
	}
	var view SettlementView
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "discarding malformed settlement cache entry")
		return nil, false
	}
	return &view, true
}

func (s *queryService) toCache(ctx context.Context, view SettlementView) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.SettlementKey(view.OrderID), string(payload), s.ttl); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "settlement cache write failed")
	}
}
