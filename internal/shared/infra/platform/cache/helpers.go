package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SetWithTimeout guarda en caché con un timeout propio. Usa context.Background()
// para que la escritura no dependa del contexto del mensaje que la origina.
func SetWithTimeout(c Cache, key string, value interface{}, ttlSecs int, timeout time.Duration, log *zap.Logger) {
	if c == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := c.Set(ctx, key, value, ttlSecs); err != nil {
		log.Warn("Cache update failed",
			zap.String("key", key),
			zap.Error(err))
	}
}
