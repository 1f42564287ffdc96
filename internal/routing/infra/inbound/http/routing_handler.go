package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/davicafu/orderrouter/internal/routing/application"
	"github.com/davicafu/orderrouter/internal/routing/domain"
	"github.com/davicafu/orderrouter/pkg/utils"
)

// RoutingHandler expone la tabla de reglas y los contadores, solo lectura.
type RoutingHandler struct {
	router *application.Router
}

func NewRoutingHandler(router *application.Router) *RoutingHandler {
	return &RoutingHandler{router: router}
}

// GetRoutes endpoint GET /routes
func (h *RoutingHandler) GetRoutes(c *gin.Context) {
	rules := h.router.Rules()
	utils.SendSuccess(c, http.StatusOK, gin.H{
		"rules":            rules.Rules(),
		"errorDestination": rules.ErrorDestination(),
	})
}

// GetStats endpoint GET /stats
func (h *RoutingHandler) GetStats(c *gin.Context) {
	utils.SendSuccess(c, http.StatusOK, h.router.Stats().Snapshot())
}

// PostResolve endpoint POST /routes/resolve: dice a qué destino iría un payload
// sin publicarlo.
func (h *RoutingHandler) PostResolve(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}
	d := h.router.Resolve(body)

	resp := gin.H{
		"state":       d.State,
		"outcome":     d.Outcome,
		"routingKey":  d.Key,
		"destination": d.Destination,
	}
	if d.Err != nil && d.Outcome == domain.OutcomeExtractionError {
		resp["error"] = d.Err.Error()
	}
	utils.SendSuccess(c, http.StatusOK, resp)
}
