package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/orderrouter/internal/routing/domain"
	"github.com/davicafu/orderrouter/internal/shared/codec"
	sharedBus "github.com/davicafu/orderrouter/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/orderrouter/internal/shared/infra/platform/cache"
)

// Router es el content-based router: lee la clave de enrutado del payload y
// reenvía el mensaje, sin modificarlo, al destino elegido por la tabla de reglas.
type Router struct {
	rules     *domain.RuleSet
	keyPath   []string
	codec     codec.Codec
	publisher sharedBus.Publisher
	ledger    sharedCache.Cache
	ledgerTTL time.Duration
	audit     domain.RouteAuditRepository
	stats     *Stats
	log       *zap.Logger
}

type RouterOption func(*Router)

// WithDispatchLedger evita despachar dos veces el mismo message-id tras una
// reentrega.
func WithDispatchLedger(c sharedCache.Cache, ttl time.Duration) RouterOption {
	return func(r *Router) {
		r.ledger = c
		r.ledgerTTL = ttl
	}
}

func WithAudit(repo domain.RouteAuditRepository) RouterOption {
	return func(r *Router) { r.audit = repo }
}

func NewRouter(rules *domain.RuleSet, keyPath []string, c codec.Codec, publisher sharedBus.Publisher, log *zap.Logger, opts ...RouterOption) *Router {
	r := &Router{
		rules:     rules,
		keyPath:   keyPath,
		codec:     c,
		publisher: publisher,
		stats:     &Stats{},
		log:       log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Stats() *Stats { return r.stats }

func (r *Router) Rules() *domain.RuleSet { return r.rules }

// Resolve evalúa un payload y devuelve la decisión sin efectos secundarios.
func (r *Router) Resolve(payload []byte) domain.Decision {
	key, err := domain.ExtractKey(r.codec, payload, r.keyPath)
	return r.rules.Resolve(key, err)
}

// HandleMessage resuelve y despacha. Devuelve error solo si la publicación
// falla; en ese caso el mensaje no se confirma y el broker lo reentrega.
func (r *Router) HandleMessage(ctx context.Context, msg sharedBus.Message) error {
	messageID := msg.Header(sharedBus.HeaderMessageID)
	if r.alreadyDispatched(ctx, messageID) {
		r.stats.duplicates.Add(1)
		r.log.Info("Mensaje duplicado ignorado", zap.String("message_id", messageID))
		return nil
	}

	decision := r.Resolve(msg.Value)
	fields := []zap.Field{
		zap.String("message_id", messageID),
		zap.ByteString("key", msg.Key),
		zap.String("routing_key", decision.Key),
		zap.String("state", string(decision.State)),
		zap.String("outcome", string(decision.Outcome)),
		zap.String("destination", decision.Destination),
	}
	switch decision.Outcome {
	case domain.OutcomeExtractionError:
		r.log.Warn("⚠️ Routing key extraction failed", append(fields, zap.Error(decision.Err))...)
	case domain.OutcomeUnmatched:
		r.log.Warn("No routing rule matched, sending to error destination", fields...)
	}

	out := sharedBus.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: make(map[string]string, len(msg.Headers)+1),
	}
	for k, v := range msg.Headers {
		out.Headers[k] = v
	}
	out.Headers[sharedBus.HeaderRouteOutcome] = string(decision.Outcome)

	if err := r.publisher.Publish(ctx, decision.Destination, out); err != nil {
		r.stats.publishFailures.Add(1)
		r.log.Error("Dispatch failed, message will be redelivered", append(fields, zap.Error(err))...)
		return err
	}

	decision.State = domain.StateDispatched
	r.stats.recordOutcome(decision.Outcome)
	r.log.Info("✅ Mensaje despachado", fields...)

	r.markDispatched(messageID, decision.Destination)
	r.recordAudit(ctx, messageID, string(msg.Key), decision)
	return nil
}

func ledgerKey(messageID string) string {
	return "route:dispatched:" + messageID
}

func (r *Router) alreadyDispatched(ctx context.Context, messageID string) bool {
	if r.ledger == nil || messageID == "" {
		return false
	}
	var dest string
	ok, err := r.ledger.Get(ctx, ledgerKey(messageID), &dest)
	if err != nil {
		// sin ledger se prefiere un duplicado a perder el mensaje
		r.log.Warn("Dispatch ledger unavailable", zap.String("message_id", messageID), zap.Error(err))
		return false
	}
	return ok
}

func (r *Router) markDispatched(messageID, destination string) {
	if r.ledger == nil || messageID == "" {
		return
	}
	sharedCache.SetWithTimeout(r.ledger, ledgerKey(messageID), destination, int(r.ledgerTTL.Seconds()), 200*time.Millisecond, r.log)
}

func (r *Router) recordAudit(ctx context.Context, messageID, orderKey string, d domain.Decision) {
	if r.audit == nil {
		return
	}
	entry := domain.RouteAudit{
		MessageID:   messageID,
		OrderKey:    orderKey,
		RoutingKey:  d.Key,
		Destination: d.Destination,
		Outcome:     d.Outcome,
		RoutedAt:    time.Now().UTC(),
	}
	if err := r.audit.LogBatch(ctx, []domain.RouteAudit{entry}); err != nil && !errors.Is(err, context.Canceled) {
		r.log.Warn("Route audit failed", zap.String("message_id", messageID), zap.Error(err))
	}
}
