package domain

import (
	"context"
	"errors"
	"time"

	"github.com/davicafu/placementlab/internal/shared/domain/events"
	"github.com/google/uuid"
)

// ErrAnalyticsDisabled indica que no hay un sink consultable configurado.
var ErrAnalyticsDisabled = errors.New("analytics sink is not configured")

// EventRecord es una fila del log analítico de eventos.
type EventRecord struct {
	EventID       uuid.UUID
	EventType     string
	AggregateType string
	AggregateID   string
	CorrelationID string
	SchemaVersion int
	OccurredAt    time.Time
	Payload       string
}

// DailyCount es el número de eventos distintos de un tipo en un día (UTC).
type DailyCount struct {
	Day       time.Time `json:"day"`
	EventType string    `json:"event_type"`
	Count     uint64    `json:"count"`
}

func RecordFromEnvelope(env events.Envelope) EventRecord {
	return EventRecord{
		EventID:       env.ID,
		EventType:     env.Type,
		AggregateType: env.AggregateType,
		AggregateID:   env.Subject,
		CorrelationID: env.CorrelationID,
		SchemaVersion: env.SchemaVersion,
		OccurredAt:    env.Time.UTC(),
		Payload:       string(env.Data),
	}
}

// EventSink es el almacén analítico. Append debe tolerar eventos repetidos:
// DailyCounts cuenta ids distintos.
type EventSink interface {
	Append(ctx context.Context, records []EventRecord) error
	DailyCounts(ctx context.Context, from, to time.Time) ([]DailyCount, error)
}
