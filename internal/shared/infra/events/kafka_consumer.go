package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/orderrouter/internal/shared/infra/platform/bus"
)

// ConsumerAdapter es el "oído" que escucha en Kafka. Solo confirma el offset
// cuando el handler termina sin error (at-least-once).
type ConsumerAdapter struct {
	reader     *kafka.Reader
	handler    sharedBus.MessageHandler
	retryDelay time.Duration
	log        *zap.Logger
}

func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
}

func NewConsumerAdapter(reader *kafka.Reader, handler sharedBus.MessageHandler, log *zap.Logger) *ConsumerAdapter {
	return &ConsumerAdapter{
		reader:     reader,
		handler:    handler,
		retryDelay: 500 * time.Millisecond,
		log:        log,
	}
}

// Start inicia el bucle de consumo en una goroutine. El canal devuelto se
// cierra cuando el bucle sale, sin ningún mensaje a medio procesar.
func (c *ConsumerAdapter) Start(ctx context.Context) <-chan struct{} {
	c.log.Info("🎧 Iniciando consumidor de Kafka...",
		zap.String("topic", c.reader.Config().Topic),
		zap.Strings("brokers", c.reader.Config().Brokers),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			// FetchMessage no confirma el offset; lo hacemos tras procesar.
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.log.Info("Consumidor de Kafka detenido.", zap.String("topic", c.reader.Config().Topic))
					return
				}
				c.log.Error("Error al leer mensaje de Kafka", zap.Error(err))
				continue
			}

			if !c.handleUntilDone(ctx, toBusMessage(msg)) {
				return
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.log.Warn("⚠️ No se pudo confirmar el offset", zap.Int64("offset", msg.Offset), zap.Error(err))
			}
		}
	}()
	return done
}

// handleUntilDone reintenta el mensaje actual hasta que el handler lo acepte.
// Confirmar un offset posterior implicaría confirmar también este, así que no
// se avanza. Devuelve false si el contexto se canceló.
func (c *ConsumerAdapter) handleUntilDone(ctx context.Context, msg sharedBus.Message) bool {
	for {
		err := c.handler.HandleMessage(ctx, msg)
		if err == nil {
			return true
		}
		c.log.Warn("⚠️ Mensaje no procesado, se reintentará",
			zap.String("topic", msg.Topic),
			zap.ByteString("key", msg.Key),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.retryDelay):
		}
	}
}

func toBusMessage(msg kafka.Message) sharedBus.Message {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return sharedBus.Message{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
}
