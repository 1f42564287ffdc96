package app

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	orderApp "github.com/davicafu/orderrouter/internal/order/application"
	orderDomain "github.com/davicafu/orderrouter/internal/order/domain"
	"github.com/davicafu/orderrouter/internal/order/infra/outbound/db/sqlite"
	routingDomain "github.com/davicafu/orderrouter/internal/routing/domain"
	"github.com/davicafu/orderrouter/internal/shared/codec"
	"github.com/davicafu/orderrouter/internal/shared/infra/events"
	sharedBus "github.com/davicafu/orderrouter/internal/shared/infra/platform/bus"
	"github.com/davicafu/orderrouter/tests/mocks"
)

const (
	inputTopic = "order.items.new"
	errorTopic = "order.items.error"
	abcTopic   = "fc.abc.orders"
)

func setupDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, sqlite.InitSQLite(db))
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`INSERT INTO customers (id, first_name, last_name, email) VALUES (1, 'Larry', 'Horse', 'larry@hello.com')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO catalog_items (id, item_number, item_name, item_type) VALUES (1, '078-1344200444', 'Build Your Own JavaScript Framework', 'Book')`)
	require.NoError(t, err)
	return db
}

func insertOrder(t *testing.T, db *sql.DB, id int64, center string) {
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO orders (id, customer_id, order_number, fulfillment_center, time_order_placed, last_update, status)
		VALUES (?, 1, ?, ?, ?, ?, 'N')`, id, fmt.Sprintf("ORD-%d", id), center, now, now)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO order_items (id, order_id, catalog_item_id, status, price, quantity, last_update)
		VALUES (?, ?, 1, 'N', '29.99', 2, ?)`, id, id, now)
	require.NoError(t, err)
}

func statusOf(t *testing.T, db *sql.DB, id int64) orderDomain.OrderStatus {
	var s string
	require.NoError(t, db.QueryRow(`SELECT status FROM orders WHERE id = ?`, id).Scan(&s))
	return orderDomain.OrderStatus(s)
}

func newEngine(t *testing.T, db *sql.DB, broker *events.InMemoryBroker, codecName string, audit routingDomain.RouteAuditRepository) *Engine {
	c, err := codec.New(codecName)
	require.NoError(t, err)

	e, err := New(Settings{
		InputTopic: inputTopic,
		ErrorTopic: errorTopic,
		Rules: []routingDomain.RoutingRule{
			{Match: routingDomain.MatchExact, Value: "ABC_FULFILLMENT_CENTER", Destination: abcTopic},
		},
		Poll:          orderApp.PollerConfig{Interval: time.Hour, Workers: 2},
		RetryDelay:    time.Millisecond,
		LedgerTTL:     time.Minute,
		AuditInterval: 10 * time.Millisecond,
	}, Deps{
		Store:     sqlite.NewOrderRepoSQLite(db),
		Publisher: broker,
		Codec:     c,
		Ledger:    mocks.NewDummyCache(),
		Audit:     audit,
		Log:       zap.NewNop(),
	})
	require.NoError(t, err)
	return e
}

func TestEngine_EndToEnd(t *testing.T) {
	for _, codecName := range []string{codec.JSON, codec.Msgpack} {
		t.Run(codecName, func(t *testing.T) {
			db := setupDB(t)
			insertOrder(t, db, 1, "ABC_FULFILLMENT_CENTER")
			insertOrder(t, db, 2, "UNKNOWN_CENTER")

			broker := events.NewInMemoryBroker(16)
			e := newEngine(t, db, broker, codecName, nil)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			broker.Start(ctx, inputTopic, e.Router(), zap.NewNop())

			res := e.Poller().Tick(ctx)
			require.NoError(t, res.Err)
			assert.Equal(t, 2, res.Claimed)
			assert.Equal(t, 2, res.Published)

			require.Eventually(t, func() bool {
				return broker.Len(abcTopic) == 1 && broker.Len(errorTopic) == 1
			}, 2*time.Second, 10*time.Millisecond)

			abc := broker.Drain(abcTopic)
			errs := broker.Drain(errorTopic)
			require.Len(t, abc, 1)
			require.Len(t, errs, 1)
			assert.Equal(t, "1", string(abc[0].Key))
			assert.Equal(t, "2", string(errs[0].Key))
			assert.Equal(t, string(routingDomain.OutcomeMatched), abc[0].Header(sharedBus.HeaderRouteOutcome))
			assert.Equal(t, string(routingDomain.OutcomeUnmatched), errs[0].Header(sharedBus.HeaderRouteOutcome))

			key, err := routingDomain.ExtractKey(codec.MustNew(codecName), abc[0].Value, orderDomain.RoutingKeyPath)
			require.NoError(t, err)
			assert.Equal(t, "ABC_FULFILLMENT_CENTER", key)

			assert.Equal(t, orderDomain.OrderProcessing, statusOf(t, db, 1))
			assert.Equal(t, orderDomain.OrderProcessing, statusOf(t, db, 2))

			again := e.Poller().Tick(ctx)
			require.NoError(t, again.Err)
			assert.Zero(t, again.Claimed)

			time.Sleep(30 * time.Millisecond)
			assert.Zero(t, broker.Len(abcTopic)+broker.Len(errorTopic))

			snap := e.Router().Stats().Snapshot()
			assert.Equal(t, int64(1), snap.Matched)
			assert.Equal(t, int64(1), snap.Unmatched)
		})
	}
}

func TestEngine_RunWritesAudit(t *testing.T) {
	db := setupDB(t)
	insertOrder(t, db, 1, "ABC_FULFILLMENT_CENTER")

	broker := events.NewInMemoryBroker(16)
	audit := &mocks.MemoryAuditRepo{}
	e := newEngine(t, db, broker, codec.JSON, audit)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- e.Run(ctx, func(ctx context.Context, _ int, h sharedBus.MessageHandler) <-chan struct{} {
			return broker.Start(ctx, inputTopic, h, zap.NewNop())
		})
	}()

	// El intervalo es de una hora: el pedido lo reclama el tick inicial de Start.

	require.Eventually(t, func() bool {
		return len(audit.Snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	entry := audit.Snapshot()[0]
	assert.Equal(t, abcTopic, entry.Destination)
	assert.Equal(t, routingDomain.OutcomeMatched, entry.Outcome)
	assert.Equal(t, "1", entry.OrderKey)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestNew_RejectsInvalidRules(t *testing.T) {
	_, err := New(Settings{
		InputTopic: inputTopic,
		ErrorTopic: "",
	}, Deps{Log: zap.NewNop(), Codec: codec.MustNew(codec.JSON)})
	assert.Error(t, err)
}

func TestEngine_RunWaitsForInFlightDispatchBeforeFlushingAudit(t *testing.T) {
	db := setupDB(t)
	audit := &mocks.MemoryAuditRepo{}
	publisher := mocks.NewRecordingPublisher()

	e, err := New(Settings{
		InputTopic:    inputTopic,
		ErrorTopic:    errorTopic,
		Rules:         []routingDomain.RoutingRule{{Value: "ABC_FULFILLMENT_CENTER", Destination: abcTopic}},
		Poll:          orderApp.PollerConfig{Interval: time.Hour},
		AuditInterval: time.Hour,
	}, Deps{
		Store:     sqlite.NewOrderRepoSQLite(db),
		Publisher: publisher,
		Codec:     codec.MustNew(codec.JSON),
		Audit:     audit,
		Log:       zap.NewNop(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	// El consumidor termina un despacho justo después de la cancelación.
	starter := func(ctx context.Context, _ int, h sharedBus.MessageHandler) <-chan struct{} {
		stopped := make(chan struct{})
		go func() {
			defer close(stopped)
			<-ctx.Done()
			time.Sleep(20 * time.Millisecond)
			msg := sharedBus.Message{
				Key:     []byte("9"),
				Value:   []byte(`{"orderItemPayload":{"fulfillmentCenter":"ABC_FULFILLMENT_CENTER"}}`),
				Headers: map[string]string{sharedBus.HeaderMessageID: "late"},
			}
			assert.NoError(t, h.HandleMessage(context.Background(), msg))
		}()
		return stopped
	}

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, starter) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}

	entries := audit.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "late", entries[0].MessageID)
	assert.Equal(t, 1, publisher.Total())
}
