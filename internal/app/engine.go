package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	orderApp "github.com/davicafu/orderrouter/internal/order/application"
	orderDomain "github.com/davicafu/orderrouter/internal/order/domain"
	routingApp "github.com/davicafu/orderrouter/internal/routing/application"
	routingDomain "github.com/davicafu/orderrouter/internal/routing/domain"
	"github.com/davicafu/orderrouter/internal/shared/codec"
	sharedBus "github.com/davicafu/orderrouter/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/orderrouter/internal/shared/infra/platform/cache"
)

// ConsumerStarter arranca un consumidor del topic de entrada que entrega los
// mensajes a handler. worker identifica la réplica (0..RouterWorkers-1).
// Devuelve un canal que se cierra cuando el consumidor ha terminado.
type ConsumerStarter func(ctx context.Context, worker int, handler sharedBus.MessageHandler) <-chan struct{}

type Settings struct {
	InputTopic    string
	ErrorTopic    string
	Rules         []routingDomain.RoutingRule
	Poll          orderApp.PollerConfig
	RouterWorkers int
	RetryDelay    time.Duration
	LedgerTTL     time.Duration
	AuditBatch    int
	AuditInterval time.Duration
}

type Deps struct {
	Store     orderDomain.RecordStore
	Publisher sharedBus.Publisher
	Codec     codec.Codec
	Ledger    sharedCache.Cache                  // opcional
	Audit     routingDomain.RouteAuditRepository // opcional
	Log       *zap.Logger
}

// Engine agrupa las dos mitades del sistema: la que saca pedidos del store
// hacia el topic de entrada y la que enruta desde ese topic.
type Engine struct {
	poller        *orderApp.Poller
	router        *routingApp.Router
	audit         *routingApp.AuditBuffer
	inputTopic    string
	routerWorkers int
	log           *zap.Logger
}

func New(s Settings, d Deps) (*Engine, error) {
	rules, err := routingDomain.NewRuleSet(s.Rules, s.ErrorTopic)
	if err != nil {
		return nil, fmt.Errorf("invalid routing rules: %w", err)
	}
	if s.RetryDelay <= 0 {
		s.RetryDelay = 200 * time.Millisecond
	}
	if s.AuditInterval <= 0 {
		s.AuditInterval = time.Second
	}

	translator := orderApp.NewTranslator(d.Store, d.Codec, d.Log)
	publisher := orderApp.NewOrderPublisher(d.Publisher, s.InputTopic, s.RetryDelay, d.Log)
	poller := orderApp.NewPoller(d.Store, translator, publisher, s.Poll, d.Log)

	var opts []routingApp.RouterOption
	if d.Ledger != nil {
		opts = append(opts, routingApp.WithDispatchLedger(d.Ledger, s.LedgerTTL))
	}
	var audit *routingApp.AuditBuffer
	if d.Audit != nil {
		audit = routingApp.NewAuditBuffer(d.Audit, s.AuditBatch, s.AuditInterval, d.Log)
		opts = append(opts, routingApp.WithAudit(audit))
	}
	router := routingApp.NewRouter(rules, orderDomain.RoutingKeyPath, d.Codec, d.Publisher, d.Log, opts...)

	workers := s.RouterWorkers
	if workers < 1 {
		workers = 1
	}

	return &Engine{
		poller:        poller,
		router:        router,
		audit:         audit,
		inputTopic:    s.InputTopic,
		routerWorkers: workers,
		log:           d.Log,
	}, nil
}

func (e *Engine) Poller() *orderApp.Poller { return e.poller }

func (e *Engine) Router() *routingApp.Router { return e.router }

// Run arranca los consumidores del router, el buffer de auditoría y el poller,
// y bloquea hasta que se cancele ctx. Antes de volver espera a que todos los
// consumidores terminen y vacía la auditoría pendiente.
func (e *Engine) Run(ctx context.Context, startConsumer ConsumerStarter) error {
	e.log.Info("🚀 Engine arrancando",
		zap.String("input_topic", e.inputTopic),
		zap.Int("router_workers", e.routerWorkers),
		zap.Strings("destinations", e.router.Rules().Destinations()),
	)

	// la auditoría vive más que los consumidores: recibe sus últimos despachos
	var auditDone chan struct{}
	stopAudit := func() {}
	if e.audit != nil {
		var auditCtx context.Context
		auditCtx, stopAudit = context.WithCancel(context.Background())
		auditDone = make(chan struct{})
		go func() {
			defer close(auditDone)
			e.audit.Start(auditCtx)
		}()
	}

	g, ctx := errgroup.WithContext(ctx)

	consumers := make([]<-chan struct{}, 0, e.routerWorkers)
	for i := 0; i < e.routerWorkers; i++ {
		consumers = append(consumers, startConsumer(ctx, i, e.router))
	}
	g.Go(func() error {
		for _, done := range consumers {
			<-done
		}
		return nil
	})

	g.Go(func() error {
		e.poller.Start(ctx)
		return nil
	})

	err := g.Wait()

	stopAudit()
	if auditDone != nil {
		<-auditDone
	}

	e.log.Info("🛑 Engine detenido", zap.Any("stats", e.router.Stats().Snapshot()))
	return err
}
