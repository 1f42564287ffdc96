package domain

import (
	"time"

	"github.com/google/uuid"
)

// RoutingKeyPath es la ruta del campo que usa el router para elegir destino.
var RoutingKeyPath = []string{"orderItemPayload", "fulfillmentCenter"}

// OrderItemPayload es el documento que viaja por el broker.
// Se construye una vez y no se modifica después.
type OrderItemPayload struct {
	MessageID         string        `json:"messageId"`
	OrderID           int64         `json:"orderId"`
	OrderNumber       string        `json:"orderNumber"`
	CustomerRef       int64         `json:"customerRef"`
	Customer          PayloadParty  `json:"customer"`
	PlacedAt          time.Time     `json:"placedAt"`
	FulfillmentCenter string        `json:"fulfillmentCenter"`
	Items             []PayloadItem `json:"items"`
}

type PayloadParty struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// PayloadItem lleva el precio como texto decimal para no depender del codec.
type PayloadItem struct {
	ItemNumber string `json:"itemNumber"`
	ItemName   string `json:"itemName"`
	ItemType   string `json:"itemType"`
	Price      string `json:"price"`
	Quantity   int    `json:"quantity"`
}

// PayloadDocument es el envoltorio raíz del documento serializado.
type PayloadDocument struct {
	OrderItemPayload OrderItemPayload `json:"orderItemPayload"`
}

// NewOrderItemPayload deriva el payload de un pedido y sus líneas.
func NewOrderItemPayload(o *OrderRecord) OrderItemPayload {
	items := make([]PayloadItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, PayloadItem{
			ItemNumber: it.CatalogItem.ItemNumber,
			ItemName:   it.CatalogItem.ItemName,
			ItemType:   it.CatalogItem.ItemType,
			Price:      it.Price.StringFixed(2),
			Quantity:   it.Quantity,
		})
	}

	return OrderItemPayload{
		MessageID:   uuid.NewString(),
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerRef: o.CustomerRef,
		Customer: PayloadParty{
			FirstName: o.Customer.FirstName,
			LastName:  o.Customer.LastName,
			Email:     o.Customer.Email,
		},
		PlacedAt:          o.PlacedAt.UTC(),
		FulfillmentCenter: o.FulfillmentCenter,
		Items:             items,
	}
}

// OutboundMessage es un payload serializado listo para publicar.
type OutboundMessage struct {
	OrderID     int64
	MessageID   string
	ContentType string
	Body        []byte
}
