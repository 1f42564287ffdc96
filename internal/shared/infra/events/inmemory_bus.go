package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	sharedBus "github.com/davicafu/orderrouter/internal/shared/infra/platform/bus"
)

// InMemoryBroker implementa un broker con una cola (canal) por topic.
// Publish bloquea si la cola está llena y un mensaje rechazado por el handler
// se vuelve a encolar.
type InMemoryBroker struct {
	mu         sync.Mutex
	queues     map[string]chan sharedBus.Message
	bufferSize int
}

// Verifica en tiempo de compilación que cumple la interfaz
var _ sharedBus.Publisher = (*InMemoryBroker)(nil)

func NewInMemoryBroker(bufferSize int) *InMemoryBroker {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &InMemoryBroker{
		queues:     make(map[string]chan sharedBus.Message),
		bufferSize: bufferSize,
	}
}

func (b *InMemoryBroker) queue(topic string) chan sharedBus.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[topic]
	if !ok {
		q = make(chan sharedBus.Message, b.bufferSize)
		b.queues[topic] = q
	}
	return q
}

func (b *InMemoryBroker) Publish(ctx context.Context, topic string, msg sharedBus.Message) error {
	msg.Topic = topic
	msg.Headers = copyHeaders(msg.Headers)

	select {
	case b.queue(topic) <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume procesa mensajes del topic hasta que se cancele el contexto.
// Es bloqueante; varias llamadas sobre el mismo topic compiten por los mensajes.
func (b *InMemoryBroker) Consume(ctx context.Context, topic string, handler sharedBus.MessageHandler, log *zap.Logger) {
	q := b.queue(topic)
	for {
		select {
		case <-ctx.Done():
			log.Info("In-memory consumer stopped", zap.String("topic", topic))
			return
		case msg := <-q:
			if err := handler.HandleMessage(ctx, msg); err != nil {
				log.Warn("⚠️ Mensaje rechazado, se reencola", zap.String("topic", topic), zap.Error(err))
				b.redeliver(ctx, q, msg)
			}
		}
	}
}

func (b *InMemoryBroker) redeliver(ctx context.Context, q chan sharedBus.Message, msg sharedBus.Message) {
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Millisecond):
		select {
		case q <- msg:
		case <-ctx.Done():
		}
	}
}

// Start lanza Consume en una goroutine, con la misma forma que ConsumerAdapter.
// El canal devuelto se cierra cuando el consumidor termina su último mensaje.
func (b *InMemoryBroker) Start(ctx context.Context, topic string, handler sharedBus.MessageHandler, log *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Consume(ctx, topic, handler, log)
	}()
	return done
}

// Drain retira sin bloquear todos los mensajes pendientes de un topic.
func (b *InMemoryBroker) Drain(topic string) []sharedBus.Message {
	q := b.queue(topic)
	var out []sharedBus.Message
	for {
		select {
		case msg := <-q:
			out = append(out, msg)
		default:
			return out
		}
	}
}

// Len devuelve cuántos mensajes esperan en un topic.
func (b *InMemoryBroker) Len(topic string) int {
	return len(b.queue(topic))
}

func copyHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
