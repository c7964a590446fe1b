package application

import (
	"context"

	"go.uber.org/zap"

	notificationDomain "github.com/davicafu/placementlab/internal/notification/domain"
	"github.com/davicafu/placementlab/internal/shared/domain/events"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type NotificationService struct {
	repo notificationDomain.NotificationRepository
	log  *zap.Logger
}

func NewNotificationService(repo notificationDomain.NotificationRepository, log *zap.Logger) *NotificationService {
	return &NotificationService{repo: repo, log: log}
}

// Record guarda la notificación del evento. Un evento repetido no crea otra.
func (s *NotificationService) Record(ctx context.Context, env events.Envelope) (*notificationDomain.Notification, bool, error) {
	n, err := notificationDomain.FromEnvelope(env)
	if err != nil {
		return nil, false, err
	}
	inserted, err := s.repo.Upsert(ctx, n)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		s.log.Debug("Notification already stored", zap.String("event_id", env.ID.String()))
	}
	return n, inserted, nil
}

// ListByAggregate devuelve las notificaciones de un agregado en orden cronológico.
func (s *NotificationService) ListByAggregate(ctx context.Context, aggregateID string, limit int) ([]*notificationDomain.Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.ListByAggregate(ctx, aggregateID, limit)
}
