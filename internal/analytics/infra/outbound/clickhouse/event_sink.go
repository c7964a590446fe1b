package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	analyticsDomain "github.com/davicafu/placementlab/internal/analytics/domain"
)

// EventSinkClickHouse implementa EventSink sobre ClickHouse.
type EventSinkClickHouse struct {
	db *sql.DB
}

// Options son los datos de conexión.
type Options struct {
	Addr     string
	Database string
	Username string
	Password string
}

// NewEventSinkClickHouse abre la conexión y comprueba que responde.
func NewEventSinkClickHouse(ctx context.Context, opts Options) (*EventSinkClickHouse, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}
	return &EventSinkClickHouse{db: conn}, nil
}

// NewEventSinkFromDB reutiliza una conexión ya abierta (tests con sqlmock).
func NewEventSinkFromDB(db *sql.DB) *EventSinkClickHouse {
	return &EventSinkClickHouse{db: db}
}

// Append inserta el lote en una sola transacción: ClickHouse rinde mejor con inserciones en lote.
func (s *EventSinkClickHouse) Append(ctx context.Context, records []analyticsDomain.EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO placement_events (event_id, event_type, aggregate_type, aggregate_id, correlation_id, schema_version, occurred_at, payload)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.EventID,
			r.EventType,
			r.AggregateType,
			r.AggregateID,
			r.CorrelationID,
			uint16(r.SchemaVersion),
			r.OccurredAt,
			r.Payload,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to exec statement for event %s: %w", r.EventID, err)
		}
	}
	return tx.Commit()
}

// DailyCounts agrupa por día y tipo. uniqExact descarta las entregas repetidas
// que la ReplacingMergeTree aún no ha fusionado.
func (s *EventSinkClickHouse) DailyCounts(ctx context.Context, from, to time.Time) ([]analyticsDomain.DailyCount, error) {
	query := `
		SELECT
			toStartOfDay(occurred_at) AS day,
			event_type,
			uniqExact(event_id) AS events
		FROM placement_events
		WHERE occurred_at >= ? AND occurred_at < ?
		GROUP BY day, event_type
		ORDER BY day, event_type
	`
	rows, err := s.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []analyticsDomain.DailyCount{}
	for rows.Next() {
		var dc analyticsDomain.DailyCount
		if err := rows.Scan(&dc.Day, &dc.EventType, &dc.Count); err != nil {
			return nil, err
		}
		dc.Day = dc.Day.UTC()
		out = append(out, dc)
	}
	return out, rows.Err()
}

// InitSchema crea la tabla si no existe. Se particiona por mes y se ordena
// por los campos de consulta habituales.
func (s *EventSinkClickHouse) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS placement_events (
			event_id       UUID,
			event_type     LowCardinality(String),
			aggregate_type LowCardinality(String),
			aggregate_id   String,
			correlation_id String,
			schema_version UInt16,
			occurred_at    DateTime64(3),
			payload        String
		) ENGINE = ReplacingMergeTree()
		PARTITION BY toYYYYMM(occurred_at)
		ORDER BY (event_type, occurred_at, event_id);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *EventSinkClickHouse) Close() error {
	return s.db.Close()
}

var _ analyticsDomain.EventSink = (*EventSinkClickHouse)(nil)
