package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound = errors.New("order not found")

	// ErrStoreUnavailable: el tick se abandona y se reintenta en el siguiente.
	ErrStoreUnavailable = errors.New("record store unavailable")
)

// ValidationError: la fila reclamada no trae un id utilizable; no se genera payload.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "order validation failed: " + e.Reason
}

// DeliveryError: la publicación falló tras el reintento.
type DeliveryError struct {
	OrderID int64
	Topic   string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery of order %d to %q failed: %v", e.OrderID, e.Topic, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
