// Package queue implementa colas durables sobre la base de datos relacional:
// entrega at-least-once, visibility timeout, receive_count y dead-letter queue.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Nombres de las colas de suscriptores.
const (
	FileGeneration = "file-generation"
	Validation     = "validation"
	Notification   = "notification"
	Sync           = "sync"
)

// All devuelve todas las colas conocidas.
func All() []string {
	return []string{FileGeneration, Validation, Notification, Sync}
}

var (
	// ErrReceiptExpired indica que el mensaje ya no pertenece a este consumidor
	// (venció su visibility timeout y se volvió a entregar, o ya se reconoció).
	ErrReceiptExpired = errors.New("queue receipt expired")
	// ErrDeadLetterNotFound indica un dead letter inexistente o ya reenviado.
	ErrDeadLetterNotFound = errors.New("dead letter not found")
	// ErrAlreadyQueued indica que la cola ya tiene un mensaje para el mismo evento.
	ErrAlreadyQueued = errors.New("event is already queued")
)

// Message es un evento envuelto para un suscriptor concreto.
type Message struct {
	Seq          int64
	ID           uuid.UUID
	Queue        string
	EventID      uuid.UUID
	EventType    string
	Body         []byte // envelope JSON
	ReceiveCount int
	Receipt      string
	EnqueuedAt   time.Time
	// Redriven marca los mensajes que un operador devolvió desde la DLQ.
	Redriven bool
}

// DeadLetter es un mensaje que agotó su presupuesto de reintentos.
type DeadLetter struct {
	ID           uuid.UUID  `json:"id"`
	Queue        string     `json:"queue"`
	MessageID    uuid.UUID  `json:"message_id"`
	EventID      uuid.UUID  `json:"event_id"`
	EventType    string     `json:"event_type"`
	Body         []byte     `json:"-"`
	ReceiveCount int        `json:"receive_count"`
	Error        string     `json:"error"`
	FailedAt     time.Time  `json:"failed_at"`
	RedrivenAt   *time.Time `json:"redriven_at,omitempty"`
}

// Sender es lo que necesita el dispatcher.
type Sender interface {
	// Send encola el evento en la cola. Es idempotente por (queue, event_id) mientras el mensaje exista.
	Send(ctx context.Context, queue string, eventID uuid.UUID, eventType string, body []byte) error
}

// Queue es el contrato completo que usan los workers.
type Queue interface {
	Sender
	Receive(ctx context.Context, queue string, max int, visibility time.Duration) ([]Message, error)
	Ack(ctx context.Context, msg Message) error
	Nack(ctx context.Context, msg Message, delay time.Duration, cause error) error
	// Defer devuelve el mensaje sin contar la entrega: no se llegó a procesar.
	Defer(ctx context.Context, msg Message, delay time.Duration) error
	DeadLetter(ctx context.Context, msg Message, cause error) (DeadLetter, error)
	Depth(ctx context.Context, queue string) (int64, error)
}

// DeadLetterStore expone la DLQ a los operadores.
type DeadLetterStore interface {
	ListDeadLetters(ctx context.Context, queue string, limit int) ([]DeadLetter, error)
	// Redrive devuelve ErrAlreadyQueued sin marcar el dead letter si el evento sigue en la cola.
	Redrive(ctx context.Context, id uuid.UUID) (Message, error)
}
