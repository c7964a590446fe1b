package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/google/uuid"
)

// ------------------ Escritura transaccional ------------------

// InsertOutboxTx añade el evento al outbox y al log de auditoría dentro de la transacción del agregado.
func InsertOutboxTx(ctx context.Context, tx *Tx, evt sharedDomain.OutboxEvent) error {
	payloadBytes, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, correlation_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		evt.ID.String(), evt.AggregateType, evt.AggregateID, evt.EventType, string(payloadBytes), evt.CorrelationID, evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO event_log (id, event_type, aggregate_type, aggregate_id, payload, correlation_id, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		evt.ID.String(), evt.EventType, evt.AggregateType, evt.AggregateID, string(payloadBytes), evt.CorrelationID, evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append event log: %w", err)
	}
	return nil
}

// InsertOutboxEventsTx inserta varios eventos en orden.
func InsertOutboxEventsTx(ctx context.Context, tx *Tx, evts ...sharedDomain.OutboxEvent) error {
	for _, evt := range evts {
		if err := InsertOutboxTx(ctx, tx, evt); err != nil {
			return err
		}
	}
	return nil
}

// ------------------ OutboxRepo ------------------

// OutboxRepo implementa sharedDomain.OutboxRepository sobre SQL (SQLite o Postgres).
type OutboxRepo struct {
	db *DB
}

func NewOutboxRepo(db *DB) *OutboxRepo {
	return &OutboxRepo{db: db}
}

// FetchPendingOutbox reclama eventos pendientes marcando locked_until, de modo que
// varios relayers en paralelo no publiquen la misma fila en el mismo ciclo.
func (r *OutboxRepo) FetchPendingOutbox(ctx context.Context, limit int, lease time.Duration) ([]sharedDomain.OutboxEvent, error) {
	now := time.Now()
	rows, err := r.db.QueryContext(ctx,
		`UPDATE outbox SET locked_until = ?
		 WHERE seq IN (
		     SELECT seq FROM outbox
		     WHERE processed = FALSE AND locked_until <= ?
		     ORDER BY seq
		     LIMIT ?`+r.db.SkipLocked()+`
		 )
		 RETURNING seq, id, aggregate_type, aggregate_id, event_type, payload, correlation_id, created_at, attempts`,
		Millis(now.Add(lease)), Millis(now), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []sharedDomain.OutboxEvent
	for rows.Next() {
		var evt sharedDomain.OutboxEvent
		var payloadBytes []byte
		var createdAt Timestamp

		if err := rows.Scan(&evt.Seq, &evt.ID, &evt.AggregateType, &evt.AggregateID, &evt.EventType,
			&payloadBytes, &evt.CorrelationID, &createdAt, &evt.Attempts); err != nil {
			return nil, err
		}
		evt.Payload = json.RawMessage(payloadBytes)
		evt.CreatedAt = createdAt.Time
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// RETURNING no garantiza orden.
	sort.Slice(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })
	return events, nil
}

func (r *OutboxRepo) MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET processed = TRUE, processed_at = ?, locked_until = 0 WHERE id = ?`,
		sharedDomain.Now(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("outbox event not found: %s", id)
	}
	return nil
}

func (r *OutboxRepo) RecordOutboxFailure(ctx context.Context, id uuid.UUID, cause error, retryAt time.Time) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET attempts = attempts + 1, last_error = ?, locked_until = ? WHERE id = ?`,
		msg, Millis(retryAt), id.String(),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// PurgeProcessed borra del outbox los eventos ya publicados. El log de auditoría se conserva.
func (r *OutboxRepo) PurgeProcessed(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM outbox WHERE processed = TRUE AND processed_at < ?`, olderThan.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

// CountPending devuelve cuántos eventos quedan por publicar.
func (r *OutboxRepo) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox WHERE processed = FALSE`).Scan(&n)
	return n, err
}

var _ sharedDomain.OutboxRepository = (*OutboxRepo)(nil)

// ------------------ EventLogRepo ------------------

// EventLogRepo lee el log de auditoría append-only.
type EventLogRepo struct {
	db *DB
}

func NewEventLogRepo(db *DB) *EventLogRepo {
	return &EventLogRepo{db: db}
}

func (r *EventLogRepo) ListByAggregate(ctx context.Context, aggregateID string, limit int) ([]sharedDomain.LoggedEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, id, event_type, aggregate_type, aggregate_id, payload, correlation_id, occurred_at
		 FROM event_log WHERE aggregate_id = ? ORDER BY seq LIMIT ?`,
		aggregateID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []sharedDomain.LoggedEvent{}
	for rows.Next() {
		var e sharedDomain.LoggedEvent
		var payloadBytes []byte
		var occurredAt Timestamp
		if err := rows.Scan(&e.Seq, &e.ID, &e.EventType, &e.AggregateType, &e.AggregateID,
			&payloadBytes, &e.CorrelationID, &occurredAt); err != nil {
			return nil, err
		}
		e.Payload = json.RawMessage(payloadBytes)
		e.OccurredAt = occurredAt.Time
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ sharedDomain.EventLogReader = (*EventLogRepo)(nil)
