package application

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davicafu/orderrouter/internal/order/domain"
)

// Poller reclama pedidos nuevos de forma periódica y los empuja por
// Translator -> Publisher. La exclusión entre instancias la da ClaimNew.
type Poller struct {
	store      domain.RecordStore
	translator *Translator
	publisher  *OrderPublisher
	policy     FailurePolicy
	interval   time.Duration
	limit      int
	workers    int
	log        *zap.Logger
}

type PollerConfig struct {
	Interval time.Duration
	Limit    int // <= 0: todos los pedidos en N
	Workers  int
	Policy   FailurePolicy
}

// TickResult resume un tick.
type TickResult struct {
	Claimed   int
	Published int
	Failed    int
	Err       error
}

func NewPoller(store domain.RecordStore, translator *Translator, publisher *OrderPublisher, cfg PollerConfig, log *zap.Logger) *Poller {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Poller{
		store:      store,
		translator: translator,
		publisher:  publisher,
		policy:     cfg.Policy,
		interval:   cfg.Interval,
		limit:      cfg.Limit,
		workers:    workers,
		log:        log,
	}
}

// Start ejecuta un tick inmediato y luego uno por intervalo hasta que se
// cancele el contexto. Los ticks no se solapan.
func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info("🚀 Order poller iniciado", zap.Duration("interval", p.interval), zap.String("policy", string(p.policy)))
	if ctx.Err() == nil {
		p.Tick(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			p.log.Info("🛑 Order poller detenido.")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick hace un claim atómico y procesa cada fila reclamada.
func (p *Poller) Tick(ctx context.Context) TickResult {
	rows, err := p.store.ClaimNew(ctx, p.limit)
	if err != nil {
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
		}
		if len(rows) == 0 {
			p.log.Warn("⚠️ Claim abandonado, se reintentará en el próximo tick", zap.Error(err))
			return TickResult{Err: err}
		}
		// las filas devueltas ya están en P: se procesan igualmente
		p.log.Warn("⚠️ Claim parcial, se procesan las filas ya reclamadas",
			zap.Int("count", len(rows)), zap.Error(err))
	}
	if len(rows) == 0 {
		return TickResult{}
	}
	p.log.Info("📬 Pedidos reclamados", zap.Int("count", len(rows)))

	var published, failed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, row := range rows {
		row := row
		g.Go(func() error {
			if p.process(gctx, row) {
				atomic.AddInt64(&published, 1)
			} else {
				atomic.AddInt64(&failed, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return TickResult{Claimed: len(rows), Published: int(published), Failed: int(failed), Err: err}
}

func (p *Poller) process(ctx context.Context, row domain.ClaimedRow) bool {
	out, err := p.translator.TranslateRow(ctx, row)
	if err != nil {
		p.onFailure(ctx, row, err)
		return false
	}

	if err := p.publisher.Publish(ctx, out); err != nil {
		p.onFailure(ctx, row, err)
		return false
	}

	p.log.Info("✅ Pedido publicado",
		zap.Int64("order_id", out.OrderID),
		zap.String("message_id", out.MessageID),
		zap.String("topic", p.publisher.Topic()),
	)
	return true
}

func (p *Poller) onFailure(ctx context.Context, row domain.ClaimedRow, err error) {
	id, ok := row.ClaimedID()
	fields := []zap.Field{zap.Any("row", map[string]interface{}(row)), zap.Error(err)}

	var deliveryErr *domain.DeliveryError
	switch {
	case domain.IsValidationError(err):
		p.log.Error("Order processing failed: invalid claimed row", fields...)
	case errors.As(err, &deliveryErr):
		p.log.Error("Order delivery failed", fields...)
	default:
		p.log.Error("Order translation failed", fields...)
	}

	if !ok {
		// sin id no hay pedido al que aplicar la política
		return
	}
	if perr := p.policy.apply(ctx, p.store, id); perr != nil {
		p.log.Warn("⚠️ No se pudo aplicar la política de fallo", zap.Int64("order_id", id), zap.String("policy", string(p.policy)), zap.Error(perr))
		return
	}
	if p.policy == MarkFailed {
		p.log.Warn("Pedido marcado como fallido", zap.Int64("order_id", id))
	} else {
		p.log.Warn("Pedido queda en PROCESSING, requiere reconciliación", zap.Int64("order_id", id))
	}
}
