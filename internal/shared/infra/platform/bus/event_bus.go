package bus

import (
	"context"

	"github.com/davicafu/placementlab/internal/shared/domain/events"
)

type Keyer interface {
	PartitionKey() string
}

// EventBus publica envelopes en un topic. El adapter decide cómo se serializa
// y qué clave de partición usa (Keyer).
type EventBus interface {
	Publish(ctx context.Context, topic string, env events.Envelope) error
}

// Handler procesa un envelope recibido del bus. Un error deja el mensaje sin confirmar.
type Handler func(ctx context.Context, env events.Envelope) error
