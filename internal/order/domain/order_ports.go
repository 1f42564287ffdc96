package domain

import "context"

// RecordStore es el contrato mínimo con el almacén de pedidos.
type RecordStore interface {
	// ClaimNew selecciona pedidos en estado N y los pasa a P en una sola
	// operación atómica. limit <= 0 reclama todos. Un mismo pedido nunca se
	// devuelve en dos llamadas. Si falla después de haber pasado filas a P,
	// devuelve esas filas junto al error para que no queden huérfanas.
	ClaimNew(ctx context.Context, limit int) ([]ClaimedRow, error)

	// Fetch devuelve el pedido con cliente y líneas. ErrOrderNotFound si no existe.
	Fetch(ctx context.Context, id int64) (*OrderRecord, error)

	// MarkFailed pasa un pedido de P a F. ErrOrderNotFound si no está en P.
	MarkFailed(ctx context.Context, id int64) error
}
