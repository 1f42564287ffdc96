package bus

import (
	"context"
	"errors"
)

// Cabeceras que viajan con cada mensaje.
const (
	HeaderMessageID    = "message-id"
	HeaderContentType  = "content-type"
	HeaderRouteOutcome = "x-route-outcome"
)

// ErrTransient marca fallos del broker que merecen un reintento (conexión, timeouts).
// Los adapters lo envuelven junto al error original.
var ErrTransient = errors.New("transient broker failure")

// Message es la unidad que se publica y consume, independiente del broker.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Header devuelve el valor de una cabecera o "" si no existe.
func (m Message) Header(key string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[key]
}

// Publisher publica de forma síncrona: retorna cuando el broker confirma o falla.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg Message) error
}

// MessageHandler procesa un mensaje consumido. Un error indica que el mensaje
// NO debe confirmarse y el broker lo volverá a entregar.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message) error
}

// HandlerFunc adapta una función a MessageHandler.
type HandlerFunc func(ctx context.Context, msg Message) error

func (f HandlerFunc) HandleMessage(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// IsTransient indica si el error fue clasificado como transitorio por un adapter.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
