package orders

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/settleflow/settleflow-backend/api/responses"
	"github.com/settleflow/settleflow-backend/api/validators"
	internalorders "github.com/settleflow/settleflow-backend/internal/orders"
	"github.com/settleflow/settleflow-backend/pkg/db/models"
	"github.com/settleflow/settleflow-backend/pkg/enums"
	"github.com/settleflow/settleflow-backend/pkg/logger"
)

type createOrderRequest struct {
	UserID      int64           `json:"userId" validate:"gt=0"`
	TotalAmount decimal.Decimal `json:"totalAmount" validate:"money"`
}

// OrderResponse is the public shape of an order.
type OrderResponse struct {
	ID              int64             `json:"id"`
	UserID          int64             `json:"userId"`
	TotalAmount     string            `json:"totalAmount"`
	Status          enums.OrderStatus `json:"status"`
	PublishAttempts int               `json:"publishAttempts"`
	CreatedAt       time.Time         `json:"createdAt"`
}

func newOrderResponse(o *models.Order) OrderResponse {
	return OrderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		TotalAmount:     o.TotalAmount.StringFixed(2),
		Status:          o.Status,
		PublishAttempts: o.PublishAttempts,
		CreatedAt:       o.CreatedAt.UTC(),
	}
}

// CreateOrder accepts a new order. The response status reflects whether the
// order-created event went out immediately or was left for the retry sweep.
func CreateOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreateOrder(r.Context(), internalorders.CreateOrderInput{
			UserID:      req.UserID,
			TotalAmount: req.TotalAmount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

func GetOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetOrder(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}
