package relayer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	sharedDomainEvents "github.com/davicafu/placementlab/internal/shared/domain/events"
	"github.com/davicafu/placementlab/internal/shared/infra/metrics"
	sharedBus "github.com/davicafu/placementlab/internal/shared/infra/platform/bus"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Config agrupa la política del relayer.
type Config struct {
	Interval       time.Duration // periodo del sondeo
	BatchSize      int
	Lease          time.Duration // tiempo que un lote reclamado queda oculto a otros relayers
	PublishRetries uint64        // reintentos inmediatos por evento dentro de un lote
	RetryBaseDelay time.Duration // primer aplazamiento tras agotar los reintentos
	RetryMaxDelay  time.Duration
	Retention      time.Duration // antigüedad a partir de la que se purgan filas publicadas
	PurgeInterval  time.Duration
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.Lease <= 0 {
		c.Lease = 30 * time.Second
	}
	if c.PublishRetries == 0 {
		c.PublishRetries = 2
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 5 * time.Minute
	}
	if c.Retention <= 0 {
		c.Retention = 7 * 24 * time.Hour
	}
	if c.PurgeInterval <= 0 {
		c.PurgeInterval = time.Hour
	}
}

type pendingCounter interface {
	CountPending(ctx context.Context) (int64, error)
}

// Worker drena la tabla outbox hacia el bus de eventos.
// Un evento sólo se marca como procesado cuando el bus confirma la publicación.
type Worker struct {
	repo          sharedDomain.OutboxRepository
	publisher     sharedBus.EventBus
	eventRegistry sharedDomainEvents.Registry
	cfg           Config
	breaker       *gobreaker.CircuitBreaker[struct{}]
	nudge         chan struct{}
	log           *zap.Logger
}

func NewOutboxWorker(
	repo sharedDomain.OutboxRepository,
	publisher sharedBus.EventBus,
	registry sharedDomainEvents.Registry,
	cfg Config,
	log *zap.Logger,
) *Worker {
	cfg.defaults()
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "outbox-publisher",
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.OutboxBreakerState.Set(float64(to))
			log.Warn("Circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Worker{
		repo:          repo,
		publisher:     publisher,
		eventRegistry: registry,
		cfg:           cfg,
		breaker:       breaker,
		nudge:         make(chan struct{}, 1),
		log:           log,
	}
}

// Nudge pide un sondeo inmediato. Nunca bloquea.
func (w *Worker) Nudge() {
	select {
	case w.nudge <- struct{}{}:
	default:
	}
}

// Serve inicia el bucle de sondeo. Implementa suture.Service.
func (w *Worker) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	purge := time.NewTicker(w.cfg.PurgeInterval)
	defer purge.Stop()

	w.log.Info("🚀 Outbox worker iniciado", zap.Duration("interval", w.cfg.Interval))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("🛑 Outbox worker detenido.")
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		case <-w.nudge:
			w.drain(ctx)
		case <-purge.C:
			w.Purge(ctx)
		}
	}
}

func (w *Worker) String() string { return "outbox-relayer" }

// drain procesa lotes hasta vaciar el outbox o hasta que un lote no avance.
func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		published, claimed := w.ProcessBatch(ctx)
		if claimed < w.cfg.BatchSize || published == 0 {
			return
		}
	}
}

// ProcessBatch reclama un lote y lo publica en orden.
// Devuelve los eventos publicados y los reclamados.
func (w *Worker) ProcessBatch(ctx context.Context) (published, claimed int) {
	events, err := w.repo.FetchPendingOutbox(ctx, w.cfg.BatchSize, w.cfg.Lease)
	if err != nil {
		w.log.Warn("⚠️ Error al obtener eventos pendientes", zap.Error(err))
		return 0, 0
	}
	if len(events) > 0 {
		w.log.Debug(fmt.Sprintf("📬 %d eventos encontrados para procesar", len(events)))
	}

	for _, evt := range events {
		if w.publishAndMark(ctx, evt) {
			published++
		}
	}

	if counter, ok := w.repo.(pendingCounter); ok {
		if n, err := counter.CountPending(ctx); err == nil {
			metrics.OutboxPending.Set(float64(n))
		}
	}
	return published, len(events)
}

func (w *Worker) publishAndMark(ctx context.Context, evt sharedDomain.OutboxEvent) bool {
	log := w.log.With(zap.String("event_id", evt.ID.String()), zap.String("event_type", evt.EventType))

	// 1. Resolver el esquema; un tipo desconocido viaja al topic por defecto
	metadata, ok := w.eventRegistry.Lookup(evt.EventType)
	if !ok {
		log.Warn("Tipo de evento desconocido en registro, se publica en el topic por defecto")
		metadata = sharedDomainEvents.EventMetadata{Topic: sharedDomainEvents.DefaultTopic, SchemaVersion: 1}
	}

	env, err := sharedDomainEvents.FromOutbox(evt, metadata)
	if err == nil && ok {
		_, err = w.eventRegistry.DecodePayload(evt.EventType, env.Data)
	}
	if err != nil {
		log.Error("Error al decodificar payload del evento", zap.Error(err))
		w.recordFailure(ctx, evt, err)
		return false
	}

	// 2. Publicar con reintentos acotados detrás del circuit breaker
	if err := w.publish(ctx, metadata.Topic, env); err != nil {
		metrics.OutboxPublishFailures.Inc()
		log.Warn("⚠️ No se pudo publicar evento", zap.Int("attempts", evt.Attempts+1), zap.Error(err))
		w.recordFailure(ctx, evt, err)
		return false
	}

	// 3. Marcar como procesado. Si falla, el lease caduca y se republica (duplicado tolerado)
	if err := w.repo.MarkOutboxProcessed(ctx, evt.ID); err != nil {
		log.Warn("⚠️ No se pudo marcar evento como procesado", zap.Error(err))
		return false
	}
	metrics.OutboxPublished.WithLabelValues(evt.EventType).Inc()
	log.Debug("✅ Evento publicado y marcado")
	return true
}

func (w *Worker) publish(ctx context.Context, topic string, env sharedDomainEvents.Envelope) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = time.Second

	op := func() error {
		_, err := w.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, w.publisher.Publish(ctx, topic, env)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, w.cfg.PublishRetries), ctx))
}

func (w *Worker) recordFailure(ctx context.Context, evt sharedDomain.OutboxEvent, cause error) {
	retryAt := time.Now().Add(w.retryDelay(evt.Attempts))
	if err := w.repo.RecordOutboxFailure(ctx, evt.ID, cause, retryAt); err != nil {
		w.log.Warn("No se pudo registrar el fallo del evento", zap.String("event_id", evt.ID.String()), zap.Error(err))
	}
}

// retryDelay crece exponencialmente con los intentos previos hasta RetryMaxDelay.
func (w *Worker) retryDelay(attempts int) time.Duration {
	delay := w.cfg.RetryBaseDelay
	for i := 0; i < attempts && delay < w.cfg.RetryMaxDelay; i++ {
		delay *= 2
	}
	if delay > w.cfg.RetryMaxDelay {
		delay = w.cfg.RetryMaxDelay
	}
	return delay
}

// Purge elimina las filas publicadas más antiguas que la retención. El log de auditoría se conserva.
func (w *Worker) Purge(ctx context.Context) {
	n, err := w.repo.PurgeProcessed(ctx, time.Now().Add(-w.cfg.Retention))
	if err != nil {
		w.log.Warn("Outbox purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		w.log.Info("🧹 Outbox purgado", zap.Int64("rows", n))
	}
}
