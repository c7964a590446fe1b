package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/davicafu/placementlab/internal/shared/domain/events"
	"github.com/davicafu/placementlab/internal/shared/infra/metrics"
	"github.com/davicafu/placementlab/internal/shared/infra/queue"
	"go.uber.org/zap"
)

// Dispatcher encola cada envelope en todas las colas suscritas a su tipo.
type Dispatcher struct {
	routes  RoutingTable
	sender  queue.Sender
	retries uint64
	log     *zap.Logger
}

func NewDispatcher(routes RoutingTable, sender queue.Sender, log *zap.Logger) *Dispatcher {
	return &Dispatcher{routes: routes, sender: sender, retries: 3, log: log}
}

// Dispatch entrega el envelope a cada cola de forma independiente: el fallo de
// una no impide la entrega a las demás. Devuelve los errores de las colas que
// fallaron para que el bus lo vuelva a entregar; Send es idempotente por cola.
// Un tipo sin suscriptores se registra y se descarta.
func (d *Dispatcher) Dispatch(ctx context.Context, env events.Envelope) error {
	queues := d.routes.QueuesFor(env.Type)
	if len(queues) == 0 {
		metrics.UnroutableEvents.WithLabelValues(env.Type).Inc()
		d.log.Warn("Unroutable event dropped",
			zap.String("event_id", env.ID.String()),
			zap.String("event_type", env.Type))
		return nil
	}

	body, err := events.Encode(env)
	if err != nil {
		return err
	}

	var errs []error
	for _, q := range queues {
		if err := d.send(ctx, q, env, body); err != nil {
			metrics.DispatchFailures.WithLabelValues(q).Inc()
			d.log.Error("Failed to enqueue event",
				zap.String("queue", q),
				zap.String("event_id", env.ID.String()),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("queue %s: %w", q, err))
			continue
		}
		metrics.DispatchedMessages.WithLabelValues(q).Inc()
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) send(ctx context.Context, q string, env events.Envelope, body []byte) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxInterval = 500 * time.Millisecond

	return backoff.Retry(func() error {
		return d.sender.Send(ctx, q, env.ID, env.Type, body)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, d.retries), ctx))
}

// HandleMessage adapta el dispatcher a los consumidores del bus que entregan bytes.
// Un envelope ilegible no se puede reintentar con éxito: se registra y se descarta.
func (d *Dispatcher) HandleMessage(ctx context.Context, key string, payload []byte) error {
	env, err := events.Decode(payload)
	if err != nil {
		d.log.Error("Discarding malformed envelope", zap.String("key", key), zap.Error(err))
		return nil
	}
	return d.Dispatch(ctx, env)
}
