package orders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/settleflow/settleflow-backend/pkg/channel"
	"github.com/settleflow/settleflow-backend/pkg/db/models"
	"github.com/settleflow/settleflow-backend/pkg/logger"
)

var errBrokerUnavailable = errors.New("broker unavailable")

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Order{}))

	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func newTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
}

// fakeSender records every message and fails those whose key is listed.
type fakeSender struct {
	mu       sync.Mutex
	sent     []channel.Message
	attempts int
	failAll  bool
	failKeys map[string]bool
	onSend   func(channel.Message)
}

func (f *fakeSender) Send(ctx context.Context, msg channel.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.onSend != nil {
		f.onSend(msg)
	}
	if f.failAll || f.failKeys[msg.Key] {
		return errBrokerUnavailable
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) setFailAll(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = fail
}

func (f *fakeSender) messages() []channel.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]channel.Message, len(f.sent))
	copy(out, f.sent)
	return out
}
