package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus usa los códigos de una letra del esquema de pedidos.
type OrderStatus string

const (
	OrderNew        OrderStatus = "N"
	OrderProcessing OrderStatus = "P"
	OrderFailed     OrderStatus = "F"
)

func (s OrderStatus) String() string {
	switch s {
	case OrderNew:
		return "NEW"
	case OrderProcessing:
		return "PROCESSING"
	case OrderFailed:
		return "FAILED"
	default:
		return "UNKNOWN(" + string(s) + ")"
	}
}

type Customer struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type CatalogItem struct {
	ID         int64  `json:"id"`
	ItemNumber string `json:"itemNumber"`
	ItemName   string `json:"itemName"`
	ItemType   string `json:"itemType"`
}

type OrderItem struct {
	ID          int64           `json:"id"`
	CatalogItem CatalogItem     `json:"catalogItem"`
	Status      OrderStatus     `json:"status"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	LastUpdate  time.Time       `json:"lastUpdate"`
}

// OrderRecord es un pedido tal y como lo guarda el RecordStore.
// Solo cambia de estado a través de ClaimNew (N->P) y MarkFailed (P->F).
type OrderRecord struct {
	ID                int64       `json:"id"`
	Status            OrderStatus `json:"status"`
	CustomerRef       int64       `json:"customerRef"`
	OrderNumber       string      `json:"orderNumber"`
	FulfillmentCenter string      `json:"fulfillmentCenter"`
	PlacedAt          time.Time   `json:"placedAt"`
	LastUpdate        time.Time   `json:"lastUpdate"`
	Customer          Customer    `json:"customer"`
	Items             []OrderItem `json:"items"`
}

// ClaimedRow son las columnas devueltas por un claim; contiene al menos "id".
type ClaimedRow map[string]interface{}

// ClaimedID intenta leer "id" sin validar; útil para logs y políticas de fallo.
func (r ClaimedRow) ClaimedID() (int64, bool) {
	if r == nil {
		return 0, false
	}
	id, ok := r["id"].(int64)
	return id, ok
}
