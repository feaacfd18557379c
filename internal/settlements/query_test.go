package settlements

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/settleflow/settleflow-backend/pkg/errors"
)

func newTestQueryService(t *testing.T, repo Repository, cache settlementCache) QueryService {
	t.Helper()
	svc, err := NewQueryService(QueryServiceParams{
		Repo:     repo,
		Cache:    cache,
		CacheTTL: time.Minute,
		Logger:   newTestLogger(),
	})
	require.NoError(t, err)
	return svc
}

func TestGetByOrderIDPopulatesCacheOnHit(t *testing.T) {
	repo := NewRepository(setupSettlementsTestDB(t))
	_, err := repo.InsertUnique(context.Background(), newSettlement(100, "10000.00", "300.00"))
	require.NoError(t, err)
	cache := newMemoryCache()
	svc := newTestQueryService(t, repo, cache)

	view, err := svc.GetByOrderID(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), view.OrderID)
	assert.True(t, view.Fee.Equal(decimal.RequireFromString("300")))

	raw, ok := cache.values["sf:settlement:100"]
	require.True(t, ok)
	assert.Equal(t, time.Minute, cache.ttls["sf:settlement:100"])

	var cached SettlementView
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Equal(t, view.ID, cached.ID)
}

func TestGetByOrderIDServesFromCache(t *testing.T) {
	cache := newMemoryCache()
	cached := SettlementView{OrderID: 100, Fee: decimal.RequireFromString("300"), Status: "WAITING"}
	payload, err := json.Marshal(cached)
	require.NoError(t, err)
	cache.values["sf:settlement:100"] = string(payload)

	svc := newTestQueryService(t, failingRepo{err: errStoreDown}, cache)
	view, err := svc.GetByOrderID(context.Background(), 100)
	require.NoError(t, err)
	assert.True(t, view.Fee.Equal(decimal.RequireFromString("300")))
}

func TestGetByOrderIDFallsBackWhenCacheFails(t *testing.T) {
	repo := NewRepository(setupSettlementsTestDB(t))
	_, err := repo.InsertUnique(context.Background(), newSettlement(100, "10000.00", "300.00"))
	require.NoError(t, err)
	cache := newMemoryCache()
	cache.getErr = errors.New("redis: connection refused")

	view, err := newTestQueryService(t, repo, cache).GetByOrderID(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), view.OrderID)
}

func TestGetByOrderIDNotFoundIsNotCached(t *testing.T) {
	cache := newMemoryCache()
	svc := newTestQueryService(t, NewRepository(setupSettlementsTestDB(t)), cache)

	_, err := svc.GetByOrderID(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Zero(t, cache.sets)
}

func TestGetByOrderIDValidatesID(t *testing.T) {
	svc := newTestQueryService(t, NewRepository(setupSettlementsTestDB(t)), nil)
	_, err := svc.GetByOrderID(context.Background(), 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListMapsRowsAndStoreErrors(t *testing.T) {
	repo := NewRepository(setupSettlementsTestDB(t))
	_, err := repo.InsertUnique(context.Background(), newSettlement(1, "10.00", "0.30"))
	require.NoError(t, err)

	views, err := newTestQueryService(t, repo, nil).List(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].SettleAmount.Equal(decimal.RequireFromString("9.70")))

	_, err = newTestQueryService(t, failingRepo{err: errStoreDown}, nil).List(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
