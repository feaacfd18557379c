package settlements

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalsettlements "github.com/settleflow/settleflow-backend/internal/settlements"
	"github.com/settleflow/settleflow-backend/pkg/db/models"
	"github.com/settleflow/settleflow-backend/pkg/enums"
	pkgerrors "github.com/settleflow/settleflow-backend/pkg/errors"
)

type stubQueryService struct {
	views []internalsettlements.SettlementView
	err   error
}

func (s *stubQueryService) List(context.Context) ([]internalsettlements.SettlementView, error) {
	return s.views, s.err
}

func (s *stubQueryService) GetByOrderID(_ context.Context, orderID int64) (*internalsettlements.SettlementView, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.views {
		if s.views[i].OrderID == orderID {
			return &s.views[i], nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "settlement not found")
}

type stubDLQ struct {
	entries []models.SettlementDLQ
	limit   int
	err     error
}

func (s *stubDLQ) List(_ context.Context, limit int) ([]models.SettlementDLQ, error) {
	s.limit = limit
	return s.entries, s.err
}

func newRouter(svc internalsettlements.QueryService, dlq DLQLister) http.Handler {
	r := chi.NewRouter()
	r.Get("/settlements", ListSettlements(svc, nil))
	r.Get("/settlements/dlq", ListDeadLetters(dlq, nil))
	r.Get("/settlements/{orderId}", GetSettlement(svc, nil))
	return r
}

func sampleView() internalsettlements.SettlementView {
	return internalsettlements.SettlementView{
		OrderID:      100,
		UserID:       7,
		TotalAmount:  decimal.NewFromInt(10000),
		Fee:          decimal.NewFromInt(300),
		SettleAmount: decimal.NewFromInt(9700),
		OrderedAt:    "2026-01-01T00:00:00Z",
		Status:       enums.SettlementStatusWaiting,
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}
}

func TestListSettlements(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(&stubQueryService{views: []internalsettlements.SettlementView{sampleView()}}, &stubDLQ{}).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/settlements", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"settleAmount":"9700"`)
}

func TestListSettlementsEmptyIsArray(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(&stubQueryService{}, &stubDLQ{}).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/settlements", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())
}

func TestGetSettlement(t *testing.T) {
	svc := &stubQueryService{views: []internalsettlements.SettlementView{sampleView()}}

	w := httptest.NewRecorder()
	newRouter(svc, &stubDLQ{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/settlements/100", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"fee":"300"`)

	w = httptest.NewRecorder()
	newRouter(svc, &stubDLQ{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/settlements/101", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	newRouter(svc, &stubDLQ{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/settlements/0", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListDeadLetters(t *testing.T) {
	orderID := int64(5)
	dlq := &stubDLQ{entries: []models.SettlementDLQ{{
		OrderID:     &orderID,
		MessageKey:  "5",
		Payload:     `{"orderId":5}`,
		ErrorReason: enums.SettlementDLQReasonUnknownStoreFailure,
	}}}

	w := httptest.NewRecorder()
	newRouter(&stubQueryService{}, dlq).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/settlements/dlq?limit=10", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, dlq.limit)
	assert.Contains(t, w.Body.String(), "unknown_store_failure")
}

func TestListDeadLettersValidation(t *testing.T) {
	for _, raw := range []string{"0", "-1", "abc", "501"} {
		w := httptest.NewRecorder()
		newRouter(&stubQueryService{}, &stubDLQ{}).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/settlements/dlq?limit="+raw, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, raw)
	}
}

func TestListDeadLettersStoreFailure(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(&stubQueryService{}, &stubDLQ{err: errors.New("db down")}).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/settlements/dlq", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
