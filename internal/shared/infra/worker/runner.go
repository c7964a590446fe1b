// Package worker implementa el bucle genérico de los consumidores de cola:
// recibir, deduplicar, procesar, confirmar, reintentar o mandar a la DLQ.
// Cada tipo de worker aporta sólo su Processor.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/domain/events"
	"github.com/davicafu/placementlab/internal/shared/infra/idempotency"
	"github.com/davicafu/placementlab/internal/shared/infra/metrics"
	"github.com/davicafu/placementlab/internal/shared/infra/queue"
	"go.uber.org/zap"
)

// Processor ejecuta la lógica de negocio de un mensaje y devuelve el resultado
// que se guarda en el store de idempotencia. Debe poder abandonarse a mitad:
// ctx vence con el visibility timeout.
type Processor func(ctx context.Context, env events.Envelope) ([]byte, error)

// DeadLetterHook registra el estado terminal cuando un mensaje acaba en la DLQ.
type DeadLetterHook func(ctx context.Context, env events.Envelope, cause error) error

// Outcome es el resultado de una entrega.
type Outcome string

const (
	OutcomeCompleted    Outcome = "completed"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeRetry        Outcome = "retry"
	OutcomeDeadLettered Outcome = "dead_lettered"
	OutcomeBusy         Outcome = "busy"
)

// Config es la política del worker.
type Config struct {
	Queue             string
	BatchSize         int
	PollInterval      time.Duration
	VisibilityTimeout time.Duration // también es el timeout de procesamiento
	MaxReceives       int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
}

func (c *Config) defaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = 30 * time.Second
	}
	if c.MaxReceives <= 0 {
		c.MaxReceives = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = time.Minute
	}
}

// Runner consume una cola con un Processor inyectado.
type Runner struct {
	cfg      Config
	queue    queue.Queue
	store    idempotency.Store
	registry events.Registry
	process  Processor
	onDead   DeadLetterHook
	log      *zap.Logger
}

func NewRunner(cfg Config, q queue.Queue, store idempotency.Store, registry events.Registry, process Processor, log *zap.Logger) *Runner {
	cfg.defaults()
	return &Runner{
		cfg:      cfg,
		queue:    q,
		store:    store,
		registry: registry,
		process:  process,
		log:      log.With(zap.String("queue", cfg.Queue)),
	}
}

// OnDeadLetter registra el hook que se ejecuta al mandar un mensaje a la DLQ.
func (r *Runner) OnDeadLetter(hook DeadLetterHook) *Runner {
	r.onDead = hook
	return r
}

// Serve sondea la cola hasta que ctx se cancela. Implementa suture.Service.
func (r *Runner) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	r.log.Info("👷 Worker iniciado", zap.Duration("poll", r.cfg.PollInterval), zap.Int("max_receives", r.cfg.MaxReceives))
	for {
		// Vaciar mientras haya lotes completos
		for ctx.Err() == nil {
			n, err := r.RunOnce(ctx)
			if err != nil {
				r.log.Warn("⚠️ Error al recibir mensajes", zap.Error(err))
				break
			}
			if n < r.cfg.BatchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			r.log.Info("🛑 Worker detenido")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Runner) String() string { return "worker:" + r.cfg.Queue }

// RunOnce recibe un lote y lo procesa. Devuelve cuántos mensajes recibió.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	msgs, err := r.queue.Receive(ctx, r.cfg.Queue, r.cfg.BatchSize, r.cfg.VisibilityTimeout)
	if err != nil {
		return 0, err
	}
	for _, msg := range msgs {
		r.Handle(ctx, msg)
	}
	return len(msgs), nil
}

// Handle recorre la máquina de estados de una entrega:
// received -> processing -> completed | failed-retryable | failed-terminal.
func (r *Runner) Handle(ctx context.Context, msg queue.Message) Outcome {
	log := r.log.With(
		zap.String("event_id", msg.EventID.String()),
		zap.String("event_type", msg.EventType),
		zap.Int("receive_count", msg.ReceiveCount),
	)
	started := time.Now()
	outcome := r.handle(ctx, msg, log)
	metrics.WorkerOutcomes.WithLabelValues(r.cfg.Queue, string(outcome)).Inc()
	metrics.WorkerDuration.WithLabelValues(r.cfg.Queue).Observe(time.Since(started).Seconds())
	return outcome
}

func (r *Runner) handle(ctx context.Context, msg queue.Message, log *zap.Logger) Outcome {
	env, err := events.Decode(msg.Body)
	if err == nil {
		err = r.registry.Check(env)
	}
	if err != nil {
		return r.deadLetter(ctx, msg, env, sharedDomain.Terminal("unreadable message", err), log)
	}
	ctx = sharedDomain.WithCorrelationID(ctx, env.CorrelationID)
	if msg.Redriven {
		ctx = sharedDomain.WithRedrive(ctx)
	}

	key := r.cfg.Queue + ":" + msg.EventID.String()
	res, err := r.store.CheckAndReserve(ctx, key, r.cfg.VisibilityTimeout)
	switch {
	case errors.Is(err, sharedDomain.ErrAlreadyProcessing):
		// Otra instancia lo tiene entre manos: vuelve a la cola sin gastar un intento
		if err := r.queue.Defer(ctx, msg, r.cfg.VisibilityTimeout); err != nil {
			log.Warn("Failed to return busy message to queue", zap.Error(err))
		}
		return OutcomeBusy
	case err != nil:
		r.nack(ctx, msg, r.retryDelay(msg.ReceiveCount), err, log)
		return OutcomeRetry
	case res.Status == idempotency.StatusCompleted:
		r.ack(ctx, msg, log)
		log.Debug("Duplicate delivery acknowledged")
		return OutcomeDuplicate
	}

	result, perr := r.run(ctx, env)
	if perr == nil {
		if err := r.store.Complete(ctx, key, res.Token, result); err != nil {
			// Sin resultado guardado no se confirma: la siguiente entrega repetirá un trabajo idempotente
			log.Warn("Failed to store idempotency result", zap.Error(err))
			r.nack(ctx, msg, r.retryDelay(msg.ReceiveCount), err, log)
			return OutcomeRetry
		}
		r.ack(ctx, msg, log)
		log.Debug("✅ Message processed")
		return OutcomeCompleted
	}

	if err := r.store.Release(context.WithoutCancel(ctx), key, res.Token); err != nil {
		log.Warn("Failed to release idempotency key", zap.Error(err))
	}

	if sharedDomain.IsTerminal(perr) || msg.ReceiveCount >= r.cfg.MaxReceives {
		return r.deadLetter(ctx, msg, env, perr, log)
	}

	delay := r.retryDelay(msg.ReceiveCount)
	log.Warn("Processing failed, will retry", zap.Duration("delay", delay), zap.Error(perr))
	r.nack(ctx, msg, delay, perr, log)
	return OutcomeRetry
}

// run ejecuta el processor con el visibility timeout como límite y convierte un panic en error.
func (r *Runner) run(ctx context.Context, env events.Envelope) (result []byte, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.VisibilityTimeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			err = sharedDomain.Terminal("processor panic", fmt.Errorf("%v", p))
		}
	}()
	return r.process(ctx, env)
}

func (r *Runner) deadLetter(ctx context.Context, msg queue.Message, env events.Envelope, cause error, log *zap.Logger) Outcome {
	if _, err := r.queue.DeadLetter(ctx, msg, cause); err != nil {
		log.Error("Failed to move message to dead-letter queue", zap.Error(err))
		return OutcomeRetry
	}
	metrics.DeadLetters.WithLabelValues(r.cfg.Queue).Inc()
	log.Error("☠️ Message moved to dead-letter queue", zap.Error(cause))

	if r.onDead != nil && env.ID == msg.EventID {
		if err := r.onDead(context.WithoutCancel(ctx), env, cause); err != nil {
			log.Error("Dead-letter hook failed", zap.Error(err))
		}
	}
	return OutcomeDeadLettered
}

func (r *Runner) ack(ctx context.Context, msg queue.Message, log *zap.Logger) {
	if err := r.queue.Ack(ctx, msg); err != nil {
		// Receipt caducado: otra entrega lo confirmará gracias al store de idempotencia
		log.Warn("Failed to acknowledge message", zap.Error(err))
	}
}

func (r *Runner) nack(ctx context.Context, msg queue.Message, delay time.Duration, cause error, log *zap.Logger) {
	if err := r.queue.Nack(ctx, msg, delay, cause); err != nil {
		log.Warn("Failed to return message to queue", zap.Error(err))
	}
}

// retryDelay: base * 2^(receive_count-1), acotado.
func (r *Runner) retryDelay(receiveCount int) time.Duration {
	exp := math.Max(float64(receiveCount-1), 0)
	delay := time.Duration(float64(r.cfg.RetryBaseDelay) * math.Pow(2, exp))
	if delay > r.cfg.RetryMaxDelay || delay <= 0 {
		return r.cfg.RetryMaxDelay
	}
	return delay
}
