package domain

import (
	"context"
	"errors"
)

var (
	ErrUnsupportedEvent = errors.New("event does not produce notifications")
	ErrInvalidPayload   = errors.New("invalid notification payload")
)

// NotificationRepository guarda las notificaciones indexadas por id de evento.
type NotificationRepository interface {
	// Upsert inserta la notificación si no existía. inserted=false en una repetición.
	Upsert(ctx context.Context, n *Notification) (inserted bool, err error)
	ListByAggregate(ctx context.Context, aggregateID string, limit int) ([]*Notification, error)
}
