// Package idempotency deduplica el procesamiento de comandos y eventos por clave.
package idempotency

import (
	"context"
	"errors"
	"time"
)

// DefaultRetention es la ventana durante la que se recuerda un resultado.
const DefaultRetention = 24 * time.Hour

// Status es el resultado de CheckAndReserve.
type Status string

const (
	StatusNew        Status = "new"         // la clave queda reservada para quien llamó
	StatusInProgress Status = "in_progress" // otro proceso la tiene reservada
	StatusCompleted  Status = "completed"   // ya se procesó; Result contiene lo guardado
)

// ErrReservationLost indica que la reserva caducó y ahora pertenece a otro intento.
var ErrReservationLost = errors.New("idempotency reservation lost")

// Reservation describe el estado de una clave.
// Token identifica al dueño de una reserva StatusNew; Complete y Release lo exigen.
type Reservation struct {
	Key    string
	Status Status
	Result []byte
	Token  string
}

// Store es compartido entre procesos: nunca memoria local.
type Store interface {
	// CheckAndReserve reserva la clave durante lease si está libre o expirada.
	// Si otro proceso la tiene reservada devuelve StatusInProgress junto a sharedDomain.ErrAlreadyProcessing.
	CheckAndReserve(ctx context.Context, key string, lease time.Duration) (Reservation, error)
	// Complete guarda el resultado y mantiene la clave durante la retención.
	// Devuelve ErrReservationLost si token ya no es el dueño de la reserva.
	Complete(ctx context.Context, key, token string, result []byte) error
	// Release libera la reserva en curso de token para que otro intento pueda procesarla.
	// Una reserva ajena o completada no se toca.
	Release(ctx context.Context, key, token string) error
	// Expire purga las entradas fuera de la ventana de retención.
	Expire(ctx context.Context) (int64, error)
}
