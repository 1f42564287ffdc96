package cache

import (
	"context"
)

// Cache es el almacén clave-valor con TTL detrás del dispatch ledger del
// router: guarda "route:dispatched:<message-id>" -> destino durante
// DISPATCH_LEDGER_TTL para descartar reentregas ya despachadas.
type Cache interface {
	// Get rellena dest (un puntero) si la clave existe: (true, nil) en hit,
	// (false, nil) en miss. Un error significa que el ledger no está disponible.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set guarda el valor serializado con un TTL en segundos.
	Set(ctx context.Context, key string, val interface{}, ttlSecs int) error

	Delete(ctx context.Context, key string) error
}
