package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OutboxEvent representa un evento pendiente de publicar en el broker.
// Se escribe en la misma transacción que la mutación del agregado que lo causa.
type OutboxEvent struct {
	Seq           int64       `json:"seq"`
	ID            uuid.UUID   `json:"id"`             // event_id, único por evento
	AggregateType string      `json:"aggregate_type"` // ej. "placement", "video"
	AggregateID   string      `json:"aggregate_id"`
	EventType     string      `json:"event_type"` // ej. "com.nedlia.placement.created"
	Payload       interface{} `json:"payload"`    // JSON serializable; json.RawMessage al leer
	CorrelationID string      `json:"correlation_id"`
	CreatedAt     time.Time   `json:"created_at"`
	Processed     bool        `json:"processed"`
	Attempts      int         `json:"attempts"`
	LastError     string      `json:"last_error,omitempty"`
}

// NewOutboxEvent construye un evento con id nuevo, timestamp UTC y el correlation id del contexto.
func NewOutboxEvent(ctx context.Context, aggregateType, aggregateID, eventType string, payload interface{}) OutboxEvent {
	return OutboxEvent{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CorrelationID: CorrelationIDFrom(ctx),
		CreatedAt:     Now(),
	}
}

// OutboxRepository define el contrato que necesita el relayer sobre la tabla outbox.
type OutboxRepository interface {
	// FetchPendingOutbox reclama hasta limit eventos no publicados durante lease.
	FetchPendingOutbox(ctx context.Context, limit int, lease time.Duration) ([]OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error
	// RecordOutboxFailure anota el intento fallido y aplaza el siguiente hasta retryAt.
	RecordOutboxFailure(ctx context.Context, id uuid.UUID, cause error, retryAt time.Time) error
	PurgeProcessed(ctx context.Context, olderThan time.Time) (int64, error)
}

// LoggedEvent es una fila del log de eventos de auditoría (append-only).
type LoggedEvent struct {
	Seq           int64       `json:"seq"`
	ID            uuid.UUID   `json:"id"`
	EventType     string      `json:"event_type"`
	AggregateType string      `json:"aggregate_type"`
	AggregateID   string      `json:"aggregate_id"`
	Payload       interface{} `json:"payload"`
	CorrelationID string      `json:"correlation_id"`
	OccurredAt    time.Time   `json:"occurred_at"`
}

// EventLogReader expone el log de auditoría.
type EventLogReader interface {
	ListByAggregate(ctx context.Context, aggregateID string, limit int) ([]LoggedEvent, error)
}

// OutboxNotifier recibe un aviso cuando hay eventos recién confirmados.
type OutboxNotifier interface {
	Nudge()
}

// NopNotifier ignora los avisos.
type NopNotifier struct{}

func (NopNotifier) Nudge() {}

// Now devuelve la hora UTC truncada a microsegundos, la precisión que guardan las bases de datos.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
