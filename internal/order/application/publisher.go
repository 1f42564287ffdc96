package application

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/orderrouter/internal/order/domain"
	sharedBus "github.com/davicafu/orderrouter/internal/shared/infra/platform/bus"
	sharedUtils "github.com/davicafu/orderrouter/internal/shared/infra/utils"
)

// OrderPublisher reenvía payloads ya serializados al destino de entrada.
// No transforma nada y no guarda estado.
type OrderPublisher struct {
	bus        sharedBus.Publisher
	topic      string
	retryDelay time.Duration
	log        *zap.Logger
}

func NewOrderPublisher(bus sharedBus.Publisher, topic string, retryDelay time.Duration, log *zap.Logger) *OrderPublisher {
	return &OrderPublisher{bus: bus, topic: topic, retryDelay: retryDelay, log: log}
}

func (p *OrderPublisher) Topic() string { return p.topic }

// Publish hace un único reintento si el fallo es transitorio.
func (p *OrderPublisher) Publish(ctx context.Context, out *domain.OutboundMessage) error {
	msg := sharedBus.Message{
		Key:   []byte(strconv.FormatInt(out.OrderID, 10)),
		Value: out.Body,
		Headers: map[string]string{
			sharedBus.HeaderMessageID:   out.MessageID,
			sharedBus.HeaderContentType: out.ContentType,
		},
	}

	attempt := 0
	err := sharedUtils.RetryIf(ctx, 2, p.retryDelay, sharedBus.IsTransient, func() error {
		attempt++
		if attempt > 1 {
			p.log.Info("🔁 Reintentando publicación", zap.Int64("order_id", out.OrderID))
		}
		return p.bus.Publish(ctx, p.topic, msg)
	})
	if err != nil {
		return &domain.DeliveryError{OrderID: out.OrderID, Topic: p.topic, Err: err}
	}
	return nil
}
