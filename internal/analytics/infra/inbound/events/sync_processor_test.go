package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/placementlab/internal/analytics/application"
	analyticsDomain "github.com/davicafu/placementlab/internal/analytics/domain"
	"github.com/davicafu/placementlab/internal/analytics/infra/outbound/memory"
	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	sharedEvents "github.com/davicafu/placementlab/internal/shared/domain/events"
)

type brokenSink struct{ memory.NoopSink }

func (brokenSink) Append(ctx context.Context, records []analyticsDomain.EventRecord) error {
	return errors.New("clickhouse down")
}

func TestSyncConsumer_AppendsEvent(t *testing.T) {
	sink := memory.NewEventSinkInMemory()
	consumer := NewSyncConsumer(application.NewAnalyticsService(sink, zap.NewNop()), zap.NewNop())
	now := time.Now().UTC()

	_, err := consumer.Process(context.Background(), sharedEvents.Envelope{Type: sharedEvents.VideoCreated, ID: uuid.New(), Time: now})

	require.NoError(t, err)
	counts, err := sink.DailyCounts(context.Background(), now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, counts, 1)
}

func TestSyncConsumer_SinkFailureIsRetryable(t *testing.T) {
	consumer := NewSyncConsumer(application.NewAnalyticsService(brokenSink{}, zap.NewNop()), zap.NewNop())

	_, err := consumer.Process(context.Background(), sharedEvents.Envelope{Type: sharedEvents.VideoCreated, ID: uuid.New()})

	assert.True(t, sharedDomain.IsTransient(err))
}
