package events

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/orderrouter/internal/shared/infra/platform/bus"
)

// KafkaPublisher escribe en cualquier topic: el writer no fija topic y cada
// mensaje lleva el suyo.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(writer *kafka.Writer, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, msg sharedBus.Message) error {
	km := kafka.Message{
		Topic: topic,
		Key:   msg.Key,
		Value: msg.Value,
	}
	for k, v := range msg.Headers {
		km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	if err := p.writer.WriteMessages(ctx, km); err != nil {
		err = classifyKafkaError(err)
		p.log.Error("Error publishing to Kafka", zap.String("topic", topic), zap.Error(err))
		return err
	}

	p.log.Debug("Message published", zap.String("topic", topic), zap.ByteString("key", msg.Key))
	return nil
}

// classifyKafkaError envuelve con ErrTransient los fallos de red y los códigos
// de Kafka marcados como temporales.
func classifyKafkaError(err error) error {
	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) && len(writeErrs) > 0 && writeErrs[0] != nil {
		err = writeErrs[0]
	}

	// kafka.Error también cumple net.Error: se decide solo por su código.
	var kerr kafka.Error
	if errors.As(err, &kerr) {
		if kerr.Temporary() {
			return fmt.Errorf("%w: %w", sharedBus.ErrTransient, err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", sharedBus.ErrTransient, err)
	}
	return err
}

// Verificación estática
var _ sharedBus.Publisher = (*KafkaPublisher)(nil)
