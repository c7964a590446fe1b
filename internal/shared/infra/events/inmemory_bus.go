package events

import (
	"context"
	"errors"
	"sync"

	domainEvents "github.com/davicafu/placementlab/internal/shared/domain/events"
	sharedBus "github.com/davicafu/placementlab/internal/shared/infra/platform/bus"
)

// InMemoryEventBus entrega cada envelope de forma síncrona a todos los handlers.
// Publish sólo devuelve nil cuando todos lo aceptaron, igual que un broker con ack.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	handlers []sharedBus.Handler
}

// Verifica en tiempo de compilación que cumple la interfaz
var _ sharedBus.EventBus = (*InMemoryEventBus)(nil)

func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{}
}

func (b *InMemoryEventBus) Publish(ctx context.Context, topic string, env domainEvents.Envelope) error {
	b.mu.RLock()
	handlers := append([]sharedBus.Handler(nil), b.handlers...)
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribe registra un handler para todos los topics.
func (b *InMemoryEventBus) Subscribe(handler sharedBus.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}
