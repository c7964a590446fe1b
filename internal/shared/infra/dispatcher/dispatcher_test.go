package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/davicafu/placementlab/internal/shared/domain/events"
	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence/persistencetest"
	"github.com/davicafu/placementlab/internal/shared/infra/queue"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func envelope(eventType string) events.Envelope {
	return events.Envelope{
		SpecVersion:   events.SpecVersion,
		Type:          eventType,
		Source:        events.SourcePrefix + "placement",
		ID:            uuid.New(),
		Time:          time.Now().UTC(),
		Subject:       uuid.NewString(),
		SchemaVersion: 1,
		CorrelationID: uuid.NewString(),
		Data:          json.RawMessage(`{}`),
	}
}

// flakySender falla siempre para las colas indicadas.
type flakySender struct {
	mu      sync.Mutex
	failing map[string]bool
	sent    map[string][]uuid.UUID
}

func (s *flakySender) Send(ctx context.Context, q string, eventID uuid.UUID, eventType string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing[q] {
		return errors.New("queue unavailable")
	}
	if s.sent == nil {
		s.sent = map[string][]uuid.UUID{}
	}
	s.sent[q] = append(s.sent[q], eventID)
	return nil
}

func TestDefaultRoutes_PlacementCreatedFansOut(t *testing.T) {
	routes := DefaultRoutes()

	assert.ElementsMatch(t,
		[]string{queue.FileGeneration, queue.Notification, queue.Sync},
		routes.QueuesFor(events.PlacementCreated))
	assert.Equal(t, []string{queue.Validation}, routes.QueuesFor(events.VideoValidationRequested))
	assert.Empty(t, routes.QueuesFor("com.nedlia.unknown"))
	assert.Equal(t, []string{events.VideoValidationRequested}, routes.Subscribers(queue.Validation))
}

func TestDispatcher_ScenarioA_EnqueuesToSubscribers(t *testing.T) {
	// Arrange
	q := queue.NewSQLQueue(persistencetest.OpenSQLite(t))
	d := NewDispatcher(DefaultRoutes(), q, zap.NewNop())
	ctx := context.Background()
	env := envelope(events.PlacementCreated)

	// Act
	require.NoError(t, d.Dispatch(ctx, env))
	// Una segunda entrega del bus no duplica mensajes
	require.NoError(t, d.Dispatch(ctx, env))

	// Assert
	for _, name := range []string{queue.FileGeneration, queue.Notification, queue.Sync} {
		depth, err := q.Depth(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, int64(1), depth, name)
	}
	depth, err := q.Depth(ctx, queue.Validation)
	require.NoError(t, err)
	assert.Zero(t, depth)

	msgs, err := q.Receive(ctx, queue.FileGeneration, 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	decoded, err := events.Decode(msgs[0].Body)
	require.NoError(t, err)
	assert.Equal(t, env.CorrelationID, decoded.CorrelationID)
}

func TestDispatcher_FailingQueueDoesNotBlockOthers(t *testing.T) {
	sender := &flakySender{failing: map[string]bool{queue.Notification: true}}
	d := NewDispatcher(DefaultRoutes(), sender, zap.NewNop())
	d.retries = 0
	env := envelope(events.PlacementCreated)

	err := d.Dispatch(context.Background(), env)

	require.Error(t, err)
	assert.Contains(t, err.Error(), queue.Notification)
	assert.Equal(t, []uuid.UUID{env.ID}, sender.sent[queue.FileGeneration])
	assert.Equal(t, []uuid.UUID{env.ID}, sender.sent[queue.Sync])
}

func TestDispatcher_UnroutableEventIsDropped(t *testing.T) {
	sender := &flakySender{}
	d := NewDispatcher(DefaultRoutes(), sender, zap.NewNop())

	err := d.Dispatch(context.Background(), envelope("com.nedlia.placement.future_thing"))

	assert.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestDispatcher_HandleMessageDropsMalformedPayload(t *testing.T) {
	d := NewDispatcher(DefaultRoutes(), &flakySender{}, zap.NewNop())

	assert.NoError(t, d.HandleMessage(context.Background(), "k", []byte(`{"type":"x"}`)))
}
