package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AsyncCacheSet actualiza caché en background sin bloquear
func AsyncCacheSet(ctx context.Context, cache Cache, key string, value interface{}, ttl int, log *zap.Logger) {
	if cache == nil {
		return
	}

	go func() {
		// La petición original puede haber terminado ya
		cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 200*time.Millisecond)
		defer cancel()

		if err := cache.Set(cacheCtx, key, value, ttl); err != nil {
			log.Warn("Cache update failed",
				zap.String("key", key),
				zap.Error(err))
		}
	}()
}

// Invalidate borra la clave de forma síncrona. Tras una escritura la caché no
// puede servir una versión anterior a la confirmada.
func Invalidate(ctx context.Context, cache Cache, key string, log *zap.Logger) {
	if cache == nil {
		return
	}
	if err := cache.Delete(ctx, key); err != nil {
		log.Warn("Cache deletion failed",
			zap.String("key", key),
			zap.Error(err))
	}
}
