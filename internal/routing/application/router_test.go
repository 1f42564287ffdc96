package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	orderDomain "github.com/davicafu/orderrouter/internal/order/domain"
	"github.com/davicafu/orderrouter/internal/routing/domain"
	"github.com/davicafu/orderrouter/internal/shared/codec"
	sharedBus "github.com/davicafu/orderrouter/internal/shared/infra/platform/bus"
	"github.com/davicafu/orderrouter/tests/mocks"
)

const errorTopic = "order.items.error"

func testRules(t *testing.T) *domain.RuleSet {
	set, err := domain.NewRuleSet([]domain.RoutingRule{
		{Match: domain.MatchExact, Value: "ABC_FULFILLMENT_CENTER_EU", Destination: "fc.abc.eu"},
		{Match: domain.MatchExact, Value: "ABC_FULFILLMENT_CENTER", Destination: "fc.abc"},
		{Match: domain.MatchExact, Value: "DEF_FULFILLMENT_CENTER", Destination: "fc.def"},
	}, errorTopic)
	require.NoError(t, err)
	return set
}

func payloadFor(t *testing.T, center string) []byte {
	doc := orderDomain.PayloadDocument{OrderItemPayload: orderDomain.OrderItemPayload{
		MessageID:         "m-1",
		OrderID:           1,
		FulfillmentCenter: center,
	}}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

func message(id string, value []byte) sharedBus.Message {
	return sharedBus.Message{
		Key:     []byte("1"),
		Value:   value,
		Headers: map[string]string{sharedBus.HeaderMessageID: id},
	}
}

func newTestRouter(t *testing.T, pub sharedBus.Publisher, opts ...RouterOption) *Router {
	return NewRouter(testRules(t), orderDomain.RoutingKeyPath, codec.MustNew(codec.JSON), pub, zap.NewNop(), opts...)
}

func TestRouter_DispatchesToMatchedDestination(t *testing.T) {
	pub := mocks.NewRecordingPublisher()
	r := newTestRouter(t, pub)
	payload := payloadFor(t, "ABC_FULFILLMENT_CENTER")

	require.NoError(t, r.HandleMessage(context.Background(), message("m-1", payload)))

	msgs := pub.On("fc.abc")
	require.Len(t, msgs, 1)
	assert.Equal(t, 1, pub.Total())
	assert.Equal(t, payload, msgs[0].Value, "payload must not be mutated")
	assert.Equal(t, "matched", msgs[0].Header(sharedBus.HeaderRouteOutcome))
	assert.Equal(t, "m-1", msgs[0].Header(sharedBus.HeaderMessageID))
	assert.Equal(t, int64(1), r.Stats().Snapshot().Matched)
}

func TestRouter_UnmatchedGoesToErrorDestination(t *testing.T) {
	pub := mocks.NewRecordingPublisher()
	r := newTestRouter(t, pub)

	require.NoError(t, r.HandleMessage(context.Background(), message("m-2", payloadFor(t, "UNKNOWN_CENTER"))))

	require.Len(t, pub.On(errorTopic), 1)
	assert.Equal(t, 1, pub.Total())
	assert.Equal(t, "unmatched", pub.On(errorTopic)[0].Header(sharedBus.HeaderRouteOutcome))
	assert.Equal(t, int64(1), r.Stats().Snapshot().Unmatched)
}

func TestRouter_MalformedOrMissingKeyGoesToErrorDestination(t *testing.T) {
	cases := map[string][]byte{
		"malformed":     []byte("<order>not json</order>"),
		"missing field": []byte(`{"orderItemPayload":{"orderId":1}}`),
		"empty center":  payloadFor(t, ""),
		"empty body":    nil,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			pub := mocks.NewRecordingPublisher()
			r := newTestRouter(t, pub)

			require.NotPanics(t, func() {
				require.NoError(t, r.HandleMessage(context.Background(), message("m-x", payload)))
			})
			require.Len(t, pub.On(errorTopic), 1)
			assert.Equal(t, "extraction_error", pub.On(errorTopic)[0].Header(sharedBus.HeaderRouteOutcome))
		})
	}
}

func TestRouter_Resolve_FirstMatchWinsWithSharedPrefix(t *testing.T) {
	r := newTestRouter(t, mocks.NewRecordingPublisher())

	d := r.Resolve(payloadFor(t, "ABC_FULFILLMENT_CENTER"))
	assert.Equal(t, domain.StateMatched, d.State)
	assert.Equal(t, "fc.abc", d.Destination)

	d = r.Resolve(payloadFor(t, "ABC_FULFILLMENT_CENTER_EU"))
	assert.Equal(t, "fc.abc.eu", d.Destination)
}

func TestRouter_PublishFailureIsReturned(t *testing.T) {
	pub := new(mocks.MockPublisher)
	pub.On("Publish", mock.Anything, "fc.abc", mock.Anything).Return(errors.New("broker down")).Once()
	ledger := mocks.NewDummyCache()
	r := newTestRouter(t, pub, WithDispatchLedger(ledger, time.Hour))

	err := r.HandleMessage(context.Background(), message("m-3", payloadFor(t, "ABC_FULFILLMENT_CENTER")))

	assert.Error(t, err)
	assert.False(t, ledger.Has("route:dispatched:m-3"))
	assert.Equal(t, int64(1), r.Stats().Snapshot().PublishFailures)
	assert.Equal(t, int64(0), r.Stats().Snapshot().Matched)
}

func TestRouter_DispatchLedgerSuppressesRedelivery(t *testing.T) {
	pub := mocks.NewRecordingPublisher()
	ledger := mocks.NewDummyCache()
	r := newTestRouter(t, pub, WithDispatchLedger(ledger, time.Hour))
	msg := message("m-4", payloadFor(t, "DEF_FULFILLMENT_CENTER"))

	require.NoError(t, r.HandleMessage(context.Background(), msg))
	require.NoError(t, r.HandleMessage(context.Background(), msg))

	assert.Len(t, pub.On("fc.def"), 1)
	assert.Equal(t, int64(1), r.Stats().Snapshot().Duplicates)

	var dest string
	hit, err := ledger.Get(context.Background(), "route:dispatched:m-4", &dest)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "fc.def", dest)
}

func TestRouter_RecordsAudit(t *testing.T) {
	pub := mocks.NewRecordingPublisher()
	audit := &mocks.MemoryAuditRepo{}
	r := newTestRouter(t, pub, WithAudit(audit))

	require.NoError(t, r.HandleMessage(context.Background(), message("m-5", payloadFor(t, "ABC_FULFILLMENT_CENTER"))))

	entries := audit.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "m-5", entries[0].MessageID)
	assert.Equal(t, "1", entries[0].OrderKey)
	assert.Equal(t, "ABC_FULFILLMENT_CENTER", entries[0].RoutingKey)
	assert.Equal(t, "fc.abc", entries[0].Destination)
	assert.Equal(t, domain.OutcomeMatched, entries[0].Outcome)
}

func TestRouter_AuditFailureDoesNotFailDispatch(t *testing.T) {
	pub := mocks.NewRecordingPublisher()
	r := newTestRouter(t, pub, WithAudit(&mocks.MemoryAuditRepo{Err: errors.New("clickhouse down")}))

	assert.NoError(t, r.HandleMessage(context.Background(), message("m-6", payloadFor(t, "ABC_FULFILLMENT_CENTER"))))
	assert.Len(t, pub.On("fc.abc"), 1)
}
