package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/davicafu/orderrouter/internal/order/domain"
	"github.com/davicafu/orderrouter/pkg/utils"
)

// OrderHandler da acceso de solo lectura a los pedidos para reconciliar
// registros que se quedaron en PROCESSING.
type OrderHandler struct {
	store domain.RecordStore
}

func NewOrderHandler(store domain.RecordStore) *OrderHandler {
	return &OrderHandler{store: store}
}

type orderResponse struct {
	*domain.OrderRecord
	StatusName string `json:"statusName"`
}

// GetOrder endpoint GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		utils.SendBadRequest(c, "invalid order id")
		return
	}

	order, err := h.store.Fetch(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			utils.SendNotFound(c, "order_not_found", "order not found")
		case errors.Is(err, domain.ErrStoreUnavailable):
			utils.SendServiceUnavailable(c, err.Error())
		default:
			utils.SendInternalServerError(c, err.Error())
		}
		return
	}

	utils.SendSuccess(c, http.StatusOK, orderResponse{OrderRecord: order, StatusName: order.Status.String()})
}
