package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleflow/settleflow-backend/pkg/db/models"
	"github.com/settleflow/settleflow-backend/pkg/enums"
)

func TestOrderCreatedEventWireShape(t *testing.T) {
	order := models.Order{
		ID:          100,
		UserID:      7,
		TotalAmount: decimal.RequireFromString("10000.00"),
		Status:      enums.OrderStatusPendingEvent,
		CreatedAt:   time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC),
	}
	event := NewOrderCreatedEvent(order, decimal.RequireFromString("0.03"))

	data, err := event.Encode()
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "100", string(raw["orderId"]))
	assert.Equal(t, "7", string(raw["userId"]))
	assert.Equal(t, `"10000"`, string(raw["totalAmount"]))
	assert.Equal(t, "0.03", string(raw["feeRate"]))
	assert.Equal(t, `"2026-01-02T10:00:00Z"`, string(raw["orderedAt"]))
	assert.Equal(t, "100", event.Key())
}

func TestDecodeOrderCreatedAcceptsNumberAndStringForms(t *testing.T) {
	payloads := []string{
		`{"orderId":2000,"userId":1,"totalAmount":"50000.00","feeRate":0.05,"orderedAt":"2026-01-02T10:00:00Z"}`,
		`{"orderId":2000,"userId":1,"totalAmount":50000.00,"feeRate":"0.05","orderedAt":"2026-01-02T10:00:00Z"}`,
	}
	for _, payload := range payloads {
		event, err := DecodeOrderCreated([]byte(payload))
		require.NoError(t, err, payload)
		assert.Equal(t, int64(2000), event.OrderID)
		assert.True(t, event.TotalAmount.Equal(decimal.RequireFromString("50000")))
		assert.True(t, event.FeeRate.Equal(decimal.RequireFromString("0.05")))
	}
}

func TestDecodeOrderCreatedRejectsInvalid(t *testing.T) {
	_, err := DecodeOrderCreated([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeOrderCreated([]byte(`{"orderId":0,"userId":1,"totalAmount":"1.00","feeRate":0.03}`))
	assert.ErrorContains(t, err, "orderId must be positive")

	_, err = DecodeOrderCreated([]byte(`{"orderId":5,"userId":1,"totalAmount":"-1.00","feeRate":0.03}`))
	assert.ErrorContains(t, err, "totalAmount must be positive")

	_, err = DecodeOrderCreated([]byte(`{"orderId":5,"userId":1,"totalAmount":"100.005","feeRate":0.03}`))
	assert.ErrorContains(t, err, "at most 2 decimal places")
}

func TestParseOrderCreatedSkipsValidation(t *testing.T) {
	event, err := ParseOrderCreated([]byte(`{"orderId":5,"userId":1,"totalAmount":"100.005","feeRate":0.03}`))
	require.NoError(t, err)
	assert.Equal(t, int64(5), event.OrderID)
	assert.Error(t, event.Validate())

	_, err = ParseOrderCreated([]byte(`{"orderId":`))
	assert.Error(t, err)
}

func TestEncodeDecodePreservesExactDecimals(t *testing.T) {
	event := OrderCreatedEvent{
		OrderID:     1,
		UserID:      2,
		TotalAmount: decimal.RequireFromString("0.10"),
		FeeRate:     NewRate(decimal.RequireFromString("0.0175")),
		OrderedAt:   "2026-01-02T10:00:00Z",
	}
	data, err := event.Encode()
	require.NoError(t, err)

	decoded, err := DecodeOrderCreated(data)
	require.NoError(t, err)
	assert.True(t, decoded.TotalAmount.Equal(event.TotalAmount))
	assert.True(t, decoded.FeeRate.Equal(event.FeeRate.Decimal))
}
