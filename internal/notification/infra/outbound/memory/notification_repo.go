package memory

import (
	"context"
	"sort"
	"sync"

	notificationDomain "github.com/davicafu/placementlab/internal/notification/domain"
	"github.com/google/uuid"
)

// NotificationRepoInMemory es el almacén por defecto cuando no hay MongoDB configurado.
type NotificationRepoInMemory struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*notificationDomain.Notification
}

func NewNotificationRepoInMemory() *NotificationRepoInMemory {
	return &NotificationRepoInMemory{items: make(map[uuid.UUID]*notificationDomain.Notification)}
}

func (r *NotificationRepoInMemory) Upsert(ctx context.Context, n *notificationDomain.Notification) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[n.ID]; ok {
		return false, nil
	}
	cp := *n
	r.items[n.ID] = &cp
	return true, nil
}

func (r *NotificationRepoInMemory) ListByAggregate(ctx context.Context, aggregateID string, limit int) ([]*notificationDomain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*notificationDomain.Notification{}
	for _, n := range r.items {
		if n.AggregateID == aggregateID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ notificationDomain.NotificationRepository = (*NotificationRepoInMemory)(nil)
