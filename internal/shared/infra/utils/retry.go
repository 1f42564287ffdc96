package utils

import (
	"context"
	"time"
)

// RetryIf ejecuta fn hasta attempts veces y solo reintenta mientras
// retryable(err) sea true. No espera tras el último intento.
func RetryIf(ctx context.Context, attempts int, delay time.Duration, retryable func(error) bool, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-time.After(delay):
			// espera antes del siguiente intento
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
