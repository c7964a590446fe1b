package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultLease es el tiempo máximo que una reserva de comando bloquea su clave.
const DefaultLease = 30 * time.Second

// Guard envuelve comandos con una clave de idempotencia.
type Guard struct {
	store Store
	lease time.Duration
	log   *zap.Logger
}

func NewGuard(store Store, lease time.Duration, log *zap.Logger) *Guard {
	if lease <= 0 {
		lease = DefaultLease
	}
	return &Guard{store: store, lease: lease, log: log}
}

// CommandKey compone la clave de un comando a partir de la clave del cliente.
// Sin clave del cliente devuelve "" y el comando se ejecuta sin deduplicar.
func CommandKey(operation, clientKey string) string {
	if clientKey == "" {
		return ""
	}
	return "cmd:" + operation + ":" + clientKey
}

// Execute ejecuta fn una sola vez por clave.
// Con clave vacía o sin guard ejecuta fn sin deduplicar.
// replayed indica que el resultado viene de una ejecución anterior.
func Execute[T any](ctx context.Context, g *Guard, key string, fn func(ctx context.Context) (T, error)) (result T, replayed bool, err error) {
	if g == nil || key == "" {
		result, err = fn(ctx)
		return result, false, err
	}

	res, err := g.store.CheckAndReserve(ctx, key, g.lease)
	if err != nil {
		return result, false, err
	}

	if res.Status == StatusCompleted {
		if err := json.Unmarshal(res.Result, &result); err != nil {
			return result, false, fmt.Errorf("decoding stored result for %s: %w", key, err)
		}
		return result, true, nil
	}

	result, err = fn(ctx)
	if err != nil {
		// Liberar aunque ctx esté cancelado para que el cliente pueda reintentar
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if relErr := g.store.Release(releaseCtx, key, res.Token); relErr != nil {
			g.log.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(relErr))
		}
		return result, false, err
	}

	raw, mErr := json.Marshal(result)
	if mErr == nil {
		mErr = g.store.Complete(ctx, key, res.Token, raw)
	}
	if mErr != nil {
		// El comando ya está confirmado; la reserva caduca con el lease.
		g.log.Error("Failed to store idempotency result", zap.String("key", key), zap.Error(mErr))
	}
	return result, false, nil
}
