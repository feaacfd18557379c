package settlements

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/settleflow/settleflow-backend/pkg/db/models"
	"github.com/settleflow/settleflow-backend/pkg/logger"
	pkgredis "github.com/settleflow/settleflow-backend/pkg/redis"
)

func setupSettlementsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Settlement{}, &models.SettlementDLQ{}))

	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func newTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "settlements-test", Output: io.Discard})
}

// failingRepo simulates a store that is unreachable.
type failingRepo struct {
	err error
}

func (f failingRepo) InsertUnique(context.Context, *models.Settlement) (InsertOutcome, error) {
	return InsertError, f.err
}

func (f failingRepo) FindAll(context.Context) ([]models.Settlement, error) {
	return nil, f.err
}

func (f failingRepo) FindByOrderID(context.Context, int64) (*models.Settlement, error) {
	return nil, f.err
}

type recordingDLQ struct {
	mu      sync.Mutex
	entries []models.SettlementDLQ
	err     error
}

func (r *recordingDLQ) Insert(_ context.Context, entry models.SettlementDLQ) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

// memoryCache mimics the redis client's cache surface.
type memoryCache struct {
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
	sets   int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", pkgredis.ErrCacheMiss
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.sets++
	m.values[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCache) SettlementKey(orderID int64) string {
	return fmt.Sprintf("sf:settlement:%d", orderID)
}

var errStoreDown = errors.New("connection reset by peer")
