package application

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/davicafu/orderrouter/internal/order/domain"
	"github.com/davicafu/orderrouter/internal/shared/codec"
)

// Translator convierte una fila reclamada en el payload serializado del pedido.
type Translator struct {
	store domain.RecordStore
	codec codec.Codec
	log   *zap.Logger
}

func NewTranslator(store domain.RecordStore, c codec.Codec, log *zap.Logger) *Translator {
	return &Translator{store: store, codec: c, log: log}
}

// TranslateRow valida que la fila traiga un "id" int64 y traduce el pedido.
func (t *Translator) TranslateRow(ctx context.Context, row domain.ClaimedRow) (*domain.OutboundMessage, error) {
	if row == nil {
		return nil, &domain.ValidationError{Reason: "order id was not bound to the claimed row"}
	}
	raw, ok := row["id"]
	if !ok {
		return nil, &domain.ValidationError{Reason: "could not find a valid key of 'id' for the order"}
	}
	id, ok := raw.(int64)
	if raw == nil || !ok {
		return nil, &domain.ValidationError{Reason: fmt.Sprintf("order id was not correctly provided or formatted (%T)", raw)}
	}
	return t.Translate(ctx, id)
}

func (t *Translator) Translate(ctx context.Context, id int64) (*domain.OutboundMessage, error) {
	order, err := t.store.Fetch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch order %d: %w", id, err)
	}

	payload := domain.NewOrderItemPayload(order)
	body, err := t.codec.Marshal(domain.PayloadDocument{OrderItemPayload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode order %d: %w", id, err)
	}

	t.log.Debug("Order translated",
		zap.Int64("order_id", id),
		zap.String("message_id", payload.MessageID),
		zap.String("fulfillment_center", payload.FulfillmentCenter),
		zap.Int("items", len(payload.Items)),
	)

	return &domain.OutboundMessage{
		OrderID:     id,
		MessageID:   payload.MessageID,
		ContentType: t.codec.ContentType(),
		Body:        body,
	}, nil
}
