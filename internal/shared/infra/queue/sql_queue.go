package queue

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence"
	"github.com/google/uuid"
)

// SQLQueue implementa Queue y DeadLetterStore sobre las tablas queue_messages y dead_letters.
type SQLQueue struct {
	db *persistence.DB
}

func NewSQLQueue(db *persistence.DB) *SQLQueue {
	return &SQLQueue{db: db}
}

func (q *SQLQueue) Send(ctx context.Context, queue string, eventID uuid.UUID, eventType string, body []byte) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO queue_messages (id, queue, event_id, event_type, body, receive_count, visible_at, enqueued_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT (queue, event_id) DO NOTHING`,
		uuid.NewString(), queue, eventID.String(), eventType, string(body), persistence.Millis(time.Now()), sharedDomain.Now(),
	)
	if err != nil {
		return sharedDomain.Transient("queue.send", err)
	}
	return nil
}

// Receive reclama hasta max mensajes visibles: los oculta durante visibility,
// incrementa receive_count y les asigna un receipt nuevo.
func (q *SQLQueue) Receive(ctx context.Context, queue string, max int, visibility time.Duration) ([]Message, error) {
	now := time.Now()
	receipt := uuid.NewString()

	rows, err := q.db.QueryContext(ctx,
		`UPDATE queue_messages
		 SET receive_count = receive_count + 1, visible_at = ?, receipt = ?
		 WHERE seq IN (
		     SELECT seq FROM queue_messages
		     WHERE queue = ? AND visible_at <= ?
		     ORDER BY seq
		     LIMIT ?`+q.db.SkipLocked()+`
		 )
		 RETURNING seq, id, queue, event_id, event_type, body, receive_count, enqueued_at, redriven`,
		persistence.Millis(now.Add(visibility)), receipt, queue, persistence.Millis(now), max,
	)
	if err != nil {
		return nil, sharedDomain.Transient("queue.receive", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var body []byte
		var enqueuedAt persistence.Timestamp
		var redriven int
		if err := rows.Scan(&m.Seq, &m.ID, &m.Queue, &m.EventID, &m.EventType, &body, &m.ReceiveCount, &enqueuedAt, &redriven); err != nil {
			return nil, err
		}
		m.Body = body
		m.EnqueuedAt = enqueuedAt.Time
		m.Receipt = receipt
		m.Redriven = redriven != 0
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Seq < msgs[j].Seq })
	return msgs, nil
}

// Ack elimina el mensaje si el receipt sigue vigente.
func (q *SQLQueue) Ack(ctx context.Context, msg Message) error {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM queue_messages WHERE id = ? AND receipt = ?`, msg.ID.String(), msg.Receipt,
	)
	if err != nil {
		return sharedDomain.Transient("queue.ack", err)
	}
	return expectOne(res)
}

// Nack devuelve el mensaje a la cola, visible tras delay.
func (q *SQLQueue) Nack(ctx context.Context, msg Message, delay time.Duration, cause error) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE queue_messages SET visible_at = ?, receipt = NULL, last_error = ? WHERE id = ? AND receipt = ?`,
		persistence.Millis(time.Now().Add(delay)), errorText(cause), msg.ID.String(), msg.Receipt,
	)
	if err != nil {
		return sharedDomain.Transient("queue.nack", err)
	}
	return expectOne(res)
}

// Defer devuelve el mensaje visible tras delay y descuenta la entrega que lo reclamó.
func (q *SQLQueue) Defer(ctx context.Context, msg Message, delay time.Duration) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE queue_messages
		 SET visible_at = ?, receipt = NULL,
		     receive_count = CASE WHEN receive_count > 0 THEN receive_count - 1 ELSE 0 END
		 WHERE id = ? AND receipt = ?`,
		persistence.Millis(time.Now().Add(delay)), msg.ID.String(), msg.Receipt,
	)
	if err != nil {
		return sharedDomain.Transient("queue.defer", err)
	}
	return expectOne(res)
}

// DeadLetter mueve el mensaje a la DLQ en una sola transacción.
func (q *SQLQueue) DeadLetter(ctx context.Context, msg Message, cause error) (DeadLetter, error) {
	dl := DeadLetter{
		ID:           uuid.New(),
		Queue:        msg.Queue,
		MessageID:    msg.ID,
		EventID:      msg.EventID,
		EventType:    msg.EventType,
		Body:         msg.Body,
		ReceiveCount: msg.ReceiveCount,
		Error:        errorText(cause),
		FailedAt:     sharedDomain.Now(),
	}

	err := persistence.WithTx(ctx, q.db, func(tx *persistence.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM queue_messages WHERE id = ? AND receipt = ?`, msg.ID.String(), msg.Receipt,
		)
		if err != nil {
			return err
		}
		if err := expectOne(res); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO dead_letters (id, queue, message_id, event_id, event_type, body, receive_count, error, failed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			dl.ID.String(), dl.Queue, dl.MessageID.String(), dl.EventID.String(), dl.EventType, string(dl.Body),
			dl.ReceiveCount, dl.Error, dl.FailedAt,
		)
		return err
	})
	if err != nil {
		return DeadLetter{}, err
	}
	return dl, nil
}

func (q *SQLQueue) Depth(ctx context.Context, queue string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue_messages WHERE queue = ?`, queue).Scan(&n)
	return n, err
}

// ListDeadLetters lista la DLQ; con queue vacío devuelve todas las colas.
func (q *SQLQueue) ListDeadLetters(ctx context.Context, queue string, limit int) ([]DeadLetter, error) {
	query := `SELECT id, queue, message_id, event_id, event_type, body, receive_count, error, failed_at, redriven_at FROM dead_letters`
	var args []interface{}
	if queue != "" {
		query += ` WHERE queue = ?`
		args = append(args, queue)
	}
	query += ` ORDER BY failed_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []DeadLetter{}
	for rows.Next() {
		dl, err := scanDeadLetter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, dl)
	}
	return out, rows.Err()
}

// Redrive devuelve un dead letter a su cola con receive_count a cero y marcado como reenviado.
func (q *SQLQueue) Redrive(ctx context.Context, id uuid.UUID) (Message, error) {
	var msg Message
	err := persistence.WithTx(ctx, q.db, func(tx *persistence.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT id, queue, message_id, event_id, event_type, body, receive_count, error, failed_at, redriven_at
			 FROM dead_letters WHERE id = ? AND redriven_at IS NULL`+tx.ForUpdate(), id.String(),
		)
		dl, err := scanDeadLetter(row)
		if persistence.IsNoRows(err) {
			return ErrDeadLetterNotFound
		}
		if err != nil {
			return err
		}

		now := sharedDomain.Now()
		msg = Message{
			ID:         uuid.New(),
			Queue:      dl.Queue,
			EventID:    dl.EventID,
			EventType:  dl.EventType,
			Body:       dl.Body,
			EnqueuedAt: now,
			Redriven:   true,
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO queue_messages (id, queue, event_id, event_type, body, receive_count, visible_at, enqueued_at, redriven)
			 VALUES (?, ?, ?, ?, ?, 0, ?, ?, 1)
			 ON CONFLICT (queue, event_id) DO NOTHING`,
			msg.ID.String(), msg.Queue, msg.EventID.String(), msg.EventType, string(msg.Body), persistence.Millis(now), now,
		)
		if err != nil {
			return err
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get RowsAffected: %w", err)
		}
		if inserted == 0 {
			return fmt.Errorf("%w: %s in %s", ErrAlreadyQueued, dl.EventID, dl.Queue)
		}

		_, err = tx.ExecContext(ctx, `UPDATE dead_letters SET redriven_at = ? WHERE id = ?`, now, id.String())
		return err
	})
	return msg, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDeadLetter(s scanner) (DeadLetter, error) {
	var dl DeadLetter
	var body []byte
	var failedAt, redrivenAt persistence.Timestamp
	if err := s.Scan(&dl.ID, &dl.Queue, &dl.MessageID, &dl.EventID, &dl.EventType, &body,
		&dl.ReceiveCount, &dl.Error, &failedAt, &redrivenAt); err != nil {
		return DeadLetter{}, err
	}
	dl.Body = body
	dl.FailedAt = failedAt.Time
	dl.RedrivenAt = redrivenAt.Ptr()
	return dl, nil
}

func expectOne(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows == 0 {
		return ErrReceiptExpired
	}
	return nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

var (
	_ Queue           = (*SQLQueue)(nil)
	_ DeadLetterStore = (*SQLQueue)(nil)
)
