package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/orderrouter/internal/routing/domain"
)

// AuditBuffer acumula registros y los escribe por lotes en el repositorio real.
// LogBatch nunca bloquea: si el buffer está lleno el registro se descarta.
type AuditBuffer struct {
	repo      domain.RouteAuditRepository
	entries   chan domain.RouteAudit
	batchSize int
	interval  time.Duration
	log       *zap.Logger
}

var _ domain.RouteAuditRepository = (*AuditBuffer)(nil)

func NewAuditBuffer(repo domain.RouteAuditRepository, batchSize int, interval time.Duration, log *zap.Logger) *AuditBuffer {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &AuditBuffer{
		repo:      repo,
		entries:   make(chan domain.RouteAudit, batchSize*4),
		batchSize: batchSize,
		interval:  interval,
		log:       log,
	}
}

func (b *AuditBuffer) LogBatch(ctx context.Context, entries []domain.RouteAudit) error {
	for _, e := range entries {
		select {
		case b.entries <- e:
		default:
			b.log.Warn("Audit buffer full, entry dropped", zap.String("message_id", e.MessageID))
		}
	}
	return nil
}

// Start vacía el buffer cada interval o al llenar un lote, hasta que se cancele ctx.
func (b *AuditBuffer) Start(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	batch := make([]domain.RouteAudit, 0, b.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		// contexto propio: el último flush ocurre con ctx ya cancelado
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.repo.LogBatch(flushCtx, batch); err != nil {
			b.log.Warn("Audit flush failed", zap.Int("entries", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-b.entries:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		case e := <-b.entries:
			batch = append(batch, e)
			if len(batch) >= b.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
