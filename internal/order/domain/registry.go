package domain

// Destinos por defecto; se pueden sobrescribir por configuración.
const (
	NewOrderItemsTopic = "order.items.new"
	ErrorTopic         = "order.items.error"
)
