package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/davicafu/placementlab/internal/analytics/application"
	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	sharedEvents "github.com/davicafu/placementlab/internal/shared/domain/events"
	"github.com/davicafu/placementlab/internal/shared/infra/worker"
)

// SyncConsumer procesa la cola "sync": copia cada evento al almacén analítico.
type SyncConsumer struct {
	service *application.AnalyticsService
	log     *zap.Logger
}

func NewSyncConsumer(service *application.AnalyticsService, log *zap.Logger) *SyncConsumer {
	return &SyncConsumer{service: service, log: log}
}

func (c *SyncConsumer) Process(ctx context.Context, env sharedEvents.Envelope) ([]byte, error) {
	if err := c.service.Record(ctx, env); err != nil {
		return nil, sharedDomain.Transient("append analytics event", err)
	}
	c.log.Debug("📊 Event synced", zap.String("event_type", env.Type), zap.String("aggregate_id", env.Subject))
	return nil, nil
}

var _ worker.Processor = (*SyncConsumer)(nil).Process
