package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	analyticsDomain "github.com/davicafu/placementlab/internal/analytics/domain"
	"github.com/google/uuid"
)

// EventSinkInMemory es el sink por defecto sin ClickHouse. Sólo ve los eventos
// que procesa el propio proceso.
type EventSinkInMemory struct {
	mu      sync.RWMutex
	records map[uuid.UUID]analyticsDomain.EventRecord
}

func NewEventSinkInMemory() *EventSinkInMemory {
	return &EventSinkInMemory{records: make(map[uuid.UUID]analyticsDomain.EventRecord)}
}

func (s *EventSinkInMemory) Append(ctx context.Context, records []analyticsDomain.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.EventID] = r
	}
	return nil
}

func (s *EventSinkInMemory) DailyCounts(ctx context.Context, from, to time.Time) ([]analyticsDomain.DailyCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		day       time.Time
		eventType string
	}
	counts := map[key]uint64{}
	for _, r := range s.records {
		if r.OccurredAt.Before(from) || !r.OccurredAt.Before(to) {
			continue
		}
		day := r.OccurredAt.UTC().Truncate(24 * time.Hour)
		counts[key{day, r.EventType}]++
	}

	out := make([]analyticsDomain.DailyCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, analyticsDomain.DailyCount{Day: k.day, EventType: k.eventType, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Day.Equal(out[j].Day) {
			return out[i].Day.Before(out[j].Day)
		}
		return out[i].EventType < out[j].EventType
	})
	return out, nil
}

// NoopSink descarta los eventos. Se usa cuando la analítica está desactivada.
type NoopSink struct{}

func (NoopSink) Append(ctx context.Context, records []analyticsDomain.EventRecord) error { return nil }

func (NoopSink) DailyCounts(ctx context.Context, from, to time.Time) ([]analyticsDomain.DailyCount, error) {
	return nil, analyticsDomain.ErrAnalyticsDisabled
}

var (
	_ analyticsDomain.EventSink = (*EventSinkInMemory)(nil)
	_ analyticsDomain.EventSink = NoopSink{}
)
