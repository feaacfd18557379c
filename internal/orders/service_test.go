package orders

import (
	"context"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleflow/settleflow-backend/pkg/channel"
	"github.com/settleflow/settleflow-backend/pkg/db"
	"github.com/settleflow/settleflow-backend/pkg/enums"
	pkgerrors "github.com/settleflow/settleflow-backend/pkg/errors"
	"github.com/settleflow/settleflow-backend/pkg/events"
	"github.com/settleflow/settleflow-backend/pkg/metrics"
)

type serviceFixture struct {
	svc     *service
	repo    Repository
	sender  *fakeSender
	reg     *prometheus.Registry
	metrics *metrics.PipelineMetrics
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	sender := &fakeSender{}
	pub, err := NewPublisher(PublisherParams{Sender: sender, Settlement: testSettlementConfig()})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	pipeline := metrics.NewPipelineMetrics(reg)
	svc, err := NewService(ServiceParams{
		Repo:      repo,
		DB:        db.NewFromGorm(conn),
		Publisher: pub,
		Metrics:   pipeline,
		Logger:    newTestLogger(),
	})
	require.NoError(t, err)

	return &serviceFixture{
		svc:     svc.(*service),
		repo:    repo,
		sender:  sender,
		reg:     reg,
		metrics: pipeline,
	}
}

func TestCreateOrderPublishesImmediately(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, CreateOrderInput{UserID: 7, TotalAmount: decimal.RequireFromString("10000.00")})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusOrdered, order.Status)

	msgs := f.sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, strconv.FormatInt(order.ID, 10), msgs[0].Key)

	stored, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusOrdered, stored.Status)
	assert.Equal(t, 1.0, counterValue(t, f.reg, "order_event_publish_total", map[string]string{"path": metrics.PathCreate, "outcome": "sent"}))
}

func TestCreateOrderPersistsBeforeSend(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	var seen events.OrderCreatedEvent
	f.sender.onSend = func(msg channel.Message) {
		event, err := events.DecodeOrderCreated(msg.Value)
		require.NoError(t, err)
		seen = event
	}

	order, err := f.svc.CreateOrder(ctx, CreateOrderInput{UserID: 7, TotalAmount: decimal.RequireFromString("50000.00")})
	require.NoError(t, err)
	assert.NotZero(t, seen.OrderID)
	assert.Equal(t, order.ID, seen.OrderID)
	assert.NotEmpty(t, seen.OrderedAt)
}

func TestCreateOrderSurvivesPublishFailureThenSweepConverges(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.sender.setFailAll(true)

	order, err := f.svc.CreateOrder(ctx, CreateOrderInput{UserID: 7, TotalAmount: decimal.RequireFromString("10000.00")})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPendingEvent, order.Status)
	assert.Equal(t, 1, order.PublishAttempts)
	require.NotNil(t, order.LastPublishError)

	stored, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPendingEvent, stored.Status)

	result, err := f.svc.RetryPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 1, Failed: 1}, result)

	f.sender.setFailAll(false)
	result, err = f.svc.RetryPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 1, Sent: 1}, result)

	stored, err = f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusOrdered, stored.Status)
	assert.Equal(t, 2, stored.PublishAttempts)

	result, err = f.svc.RetryPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, result)
	assert.Len(t, f.sender.messages(), 1)
	assert.Equal(t, 1.0, counterValue(t, f.reg, "order_event_publish_total", map[string]string{"path": metrics.PathRetry, "outcome": "sent"}))
	assert.Equal(t, 1.0, counterValue(t, f.reg, "order_event_publish_total", map[string]string{"path": metrics.PathCreate, "outcome": "failed"}))
}

func TestCreateOrderValidationHappensBeforePersistence(t *testing.T) {
	cases := []CreateOrderInput{
		{UserID: 0, TotalAmount: decimal.RequireFromString("10.00")},
		{UserID: 7, TotalAmount: decimal.RequireFromString("0.00")},
		{UserID: 7, TotalAmount: decimal.RequireFromString("0.009")},
		{UserID: 7, TotalAmount: decimal.RequireFromString("100.005")},
		{UserID: -1, TotalAmount: decimal.RequireFromString("-5")},
	}
	for i, input := range cases {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			f := newServiceFixture(t)
			_, err := f.svc.CreateOrder(context.Background(), input)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

			all, findErr := f.repo.FindByStatus(context.Background(), enums.OrderStatusPendingEvent)
			require.NoError(t, findErr)
			assert.Empty(t, all)
			assert.Zero(t, f.sender.attempts)
		})
	}
}

func TestCreateOrderRejectsSubCentTotal(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{UserID: 7, TotalAmount: decimal.RequireFromString("100.005")})
	require.Error(t, err)
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must have at most 2 decimal places", details["totalAmount"])

	order, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{UserID: 7, TotalAmount: decimal.RequireFromString("100.100")})
	require.NoError(t, err)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("100.1")))
}

func TestRetryPendingIsolatesFailures(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	first := seedOrder(t, f.repo, "100.00", enums.OrderStatusPendingEvent)
	second := seedOrder(t, f.repo, "200.00", enums.OrderStatusPendingEvent)
	seedOrder(t, f.repo, "300.00", enums.OrderStatusOrdered)
	f.sender.failKeys = map[string]bool{strconv.FormatInt(first.ID, 10): true}

	result, err := f.svc.RetryPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 2, Sent: 1, Failed: 1}, result)

	failed, err := f.repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPendingEvent, failed.Status)
	assert.Equal(t, 1, failed.PublishAttempts)

	sent, err := f.repo.FindByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusOrdered, sent.Status)
}

func TestPublishOneSkipsOrdersNoLongerPending(t *testing.T) {
	f := newServiceFixture(t)
	ordered := seedOrder(t, f.repo, "10.00", enums.OrderStatusOrdered)
	cancelled := seedOrder(t, f.repo, "10.00", enums.OrderStatusCancelled)

	for _, id := range []int64{ordered.ID, cancelled.ID} {
		step, err := f.svc.publishOne(context.Background(), id, metrics.PathRetry)
		require.NoError(t, err)
		assert.Equal(t, stepSkipped, step)
	}
	assert.Zero(t, f.sender.attempts)
}

func TestRetryPendingStopsOnCanceledContext(t *testing.T) {
	f := newServiceFixture(t)
	seedOrder(t, f.repo, "10.00", enums.OrderStatusPendingEvent)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := f.svc.RetryPending(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, result.Sent)
}

func TestGetOrderNotFound(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.svc.GetOrder(context.Background(), 424242)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m.GetLabel(), labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
