package settlements

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/settleflow/settleflow-backend/api/responses"
	"github.com/settleflow/settleflow-backend/api/validators"
	internalsettlements "github.com/settleflow/settleflow-backend/internal/settlements"
	"github.com/settleflow/settleflow-backend/pkg/db/models"
	"github.com/settleflow/settleflow-backend/pkg/enums"
	pkgerrors "github.com/settleflow/settleflow-backend/pkg/errors"
	"github.com/settleflow/settleflow-backend/pkg/logger"
)

const maxDLQLimit = 500

// DLQLister reads dead-lettered settlement messages.
type DLQLister interface {
	List(ctx context.Context, limit int) ([]models.SettlementDLQ, error)
}

// DLQEntryResponse is the public shape of a dead-letter row.
type DLQEntryResponse struct {
	ID           uuid.UUID                 `json:"id"`
	OrderID      *int64                    `json:"orderId,omitempty"`
	MessageKey   string                    `json:"messageKey"`
	Payload      string                    `json:"payload"`
	ErrorReason  enums.SettlementDLQReason `json:"errorReason"`
	ErrorMessage *string                   `json:"errorMessage,omitempty"`
	FailedAt     time.Time                 `json:"failedAt"`
}

func ListSettlements(svc internalsettlements.QueryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if views == nil {
			views = []internalsettlements.SettlementView{}
		}
		responses.WriteSuccess(w, views)
	}
}

func GetSettlement(svc internalsettlements.QueryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.GetByOrderID(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// ListDeadLetters returns the most recent dead-lettered messages, newest first.
func ListDeadLetters(dlq DLQLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 || parsed > maxDLQLimit {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "limit must be between 1 and 500").
						WithDetails(map[string]any{"field": "limit"}))
				return
			}
			limit = parsed
		}

		entries, err := dlq.List(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters"))
			return
		}
		out := make([]DLQEntryResponse, 0, len(entries))
		for _, e := range entries {
			out = append(out, DLQEntryResponse{
				ID:           e.ID,
				OrderID:      e.OrderID,
				MessageKey:   e.MessageKey,
				Payload:      e.Payload,
				ErrorReason:  e.ErrorReason,
				ErrorMessage: e.ErrorMessage,
				FailedAt:     e.FailedAt.UTC(),
			})
		}
		responses.WriteSuccess(w, out)
	}
}
