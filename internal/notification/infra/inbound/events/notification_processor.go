package events

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/davicafu/placementlab/internal/notification/application"
	notificationDomain "github.com/davicafu/placementlab/internal/notification/domain"
	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	sharedEvents "github.com/davicafu/placementlab/internal/shared/domain/events"
	"github.com/davicafu/placementlab/internal/shared/infra/worker"
)

// NotificationConsumer procesa la cola "notification".
type NotificationConsumer struct {
	service *application.NotificationService
	log     *zap.Logger
}

func NewNotificationConsumer(service *application.NotificationService, log *zap.Logger) *NotificationConsumer {
	return &NotificationConsumer{service: service, log: log}
}

func (c *NotificationConsumer) Process(ctx context.Context, env sharedEvents.Envelope) ([]byte, error) {
	n, inserted, err := c.service.Record(ctx, env)
	if errors.Is(err, notificationDomain.ErrUnsupportedEvent) || errors.Is(err, notificationDomain.ErrInvalidPayload) {
		return nil, sharedDomain.Terminal("cannot build notification", err)
	}
	if err != nil {
		return nil, sharedDomain.Transient("store notification", err)
	}

	if inserted {
		c.log.Info("🔔 Notification stored",
			zap.String("event_type", env.Type),
			zap.String("aggregate_id", n.AggregateID),
			zap.String("severity", string(n.Severity)))
	}
	return json.Marshal(map[string]interface{}{"notification_id": n.ID, "inserted": inserted})
}

var _ worker.Processor = (*NotificationConsumer)(nil).Process
