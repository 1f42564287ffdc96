package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/orderrouter/internal/routing/application"
	"github.com/davicafu/orderrouter/internal/routing/domain"
	"github.com/davicafu/orderrouter/internal/shared/codec"
	sharedBus "github.com/davicafu/orderrouter/internal/shared/infra/platform/bus"
	"github.com/davicafu/orderrouter/tests/mocks"
)

func setupRouter(t *testing.T) (*gin.Engine, *application.Router) {
	gin.SetMode(gin.TestMode)
	rules, err := domain.NewRuleSet([]domain.RoutingRule{{Value: "ABC_FULFILLMENT_CENTER", Destination: "fc.abc"}}, "order.items.error")
	require.NoError(t, err)

	rt := application.NewRouter(rules, []string{"orderItemPayload", "fulfillmentCenter"}, codec.MustNew(codec.JSON), mocks.NewRecordingPublisher(), zap.NewNop())
	engine := gin.New()
	RegisterRoutingRoutes(engine, NewRoutingHandler(rt))
	return engine, rt
}

func TestRoutingHandler_GetRoutes(t *testing.T) {
	engine, _ := setupRouter(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/routes", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data struct {
			Rules            []domain.RoutingRule `json:"rules"`
			ErrorDestination string               `json:"errorDestination"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "order.items.error", body.Data.ErrorDestination)
	require.Len(t, body.Data.Rules, 1)
	assert.Equal(t, "fc.abc", body.Data.Rules[0].Destination)
}

func TestRoutingHandler_Resolve(t *testing.T) {
	engine, _ := setupRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/routes/resolve",
		bytes.NewBufferString(`{"orderItemPayload":{"fulfillmentCenter":"UNKNOWN_CENTER"}}`))
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"destination":"order.items.error"`)
	assert.Contains(t, w.Body.String(), `"outcome":"unmatched"`)
}

func TestRoutingHandler_Stats(t *testing.T) {
	engine, rt := setupRouter(t)
	msg := sharedBus.Message{Value: []byte(`{"orderItemPayload":{"fulfillmentCenter":"ABC_FULFILLMENT_CENTER"}}`)}
	require.NoError(t, rt.HandleMessage(context.Background(), msg))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"matched":1`)
}
