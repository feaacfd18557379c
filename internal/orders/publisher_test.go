package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleflow/settleflow-backend/pkg/channel"
	"github.com/settleflow/settleflow-backend/pkg/config"
	"github.com/settleflow/settleflow-backend/pkg/db/models"
	"github.com/settleflow/settleflow-backend/pkg/enums"
	"github.com/settleflow/settleflow-backend/pkg/events"
)

func testSettlementConfig() config.SettlementConfig {
	return config.SettlementConfig{
		FeeRate:        decimal.RequireFromString("0.03"),
		PublishTimeout: time.Second,
	}
}

func TestPublisherSendsKeyedEvent(t *testing.T) {
	sender := &fakeSender{}
	pub, err := NewPublisher(PublisherParams{Sender: sender, Settlement: testSettlementConfig()})
	require.NoError(t, err)

	order := models.Order{
		ID:          100,
		UserID:      7,
		TotalAmount: decimal.RequireFromString("10000.00"),
		Status:      enums.OrderStatusPendingEvent,
		CreatedAt:   time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	outcome, err := pub.Publish(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, PublishSent, outcome)

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "100", msgs[0].Key)
	assert.Equal(t, events.OrderCreatedEventType, msgs[0].Attributes["event_type"])

	event, err := events.DecodeOrderCreated(msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, int64(100), event.OrderID)
	assert.Equal(t, int64(7), event.UserID)
	assert.True(t, event.TotalAmount.Equal(decimal.RequireFromString("10000.00")))
	assert.True(t, event.FeeRate.Equal(decimal.RequireFromString("0.03")))
	assert.Equal(t, "2026-01-01T10:00:00Z", event.OrderedAt)
}

func TestPublisherMapsSendErrorToFailed(t *testing.T) {
	pub, err := NewPublisher(PublisherParams{Sender: &fakeSender{failAll: true}, Settlement: testSettlementConfig()})
	require.NoError(t, err)

	outcome, err := pub.Publish(context.Background(), models.Order{ID: 1, UserID: 1, TotalAmount: decimal.NewFromInt(1)})
	assert.Equal(t, PublishFailed, outcome)
	assert.ErrorIs(t, err, errBrokerUnavailable)
}

func TestPublisherBoundsSendWithTimeout(t *testing.T) {
	blocking := channel.SenderFunc(func(ctx context.Context, _ channel.Message) error {
		<-ctx.Done()
		return ctx.Err()
	})
	cfg := testSettlementConfig()
	cfg.PublishTimeout = 20 * time.Millisecond
	pub, err := NewPublisher(PublisherParams{Sender: blocking, Settlement: cfg})
	require.NoError(t, err)

	start := time.Now()
	outcome, err := pub.Publish(context.Background(), models.Order{ID: 1, UserID: 1, TotalAmount: decimal.NewFromInt(1)})
	assert.Equal(t, PublishFailed, outcome)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNewPublisherRequiresSender(t *testing.T) {
	_, err := NewPublisher(PublisherParams{})
	assert.Error(t, err)
}

func TestPublishOutcomeString(t *testing.T) {
	assert.Equal(t, "sent", PublishSent.String())
	assert.Equal(t, "failed", PublishFailed.String())
	assert.Equal(t, "unknown", PublishOutcome(0).String())
}
