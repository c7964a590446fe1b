package mocks

import (
	"context"
	"sync/atomic"
	"time"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/domain/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockOutboxRepository simula la tabla outbox que drena el relayer.
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) FetchPendingOutbox(ctx context.Context, limit int, lease time.Duration) ([]sharedDomain.OutboxEvent, error) {
	args := m.Called(ctx, limit, lease)
	return args.Get(0).([]sharedDomain.OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) RecordOutboxFailure(ctx context.Context, id uuid.UUID, cause error, retryAt time.Time) error {
	args := m.Called(ctx, id, cause, retryAt)
	return args.Error(0)
}

func (m *MockOutboxRepository) PurgeProcessed(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

// MockPublisher simula el bus de eventos.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, env events.Envelope) error {
	args := m.Called(ctx, topic, env)
	return args.Error(0)
}

// MockNotifier cuenta los avisos al relayer.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Nudge() {
	m.Called()
}

// CountingNotifier cuenta los avisos sin expectativas previas.
type CountingNotifier struct {
	n atomic.Int32
}

func (c *CountingNotifier) Nudge() { c.n.Add(1) }

func (c *CountingNotifier) Count() int { return int(c.n.Load()) }
