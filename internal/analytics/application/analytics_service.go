package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	analyticsDomain "github.com/davicafu/placementlab/internal/analytics/domain"
	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/domain/events"
)

// maxRange limita las consultas diarias a un año.
const maxRange = 366 * 24 * time.Hour

type AnalyticsService struct {
	sink analyticsDomain.EventSink
	log  *zap.Logger
}

func NewAnalyticsService(sink analyticsDomain.EventSink, log *zap.Logger) *AnalyticsService {
	return &AnalyticsService{sink: sink, log: log}
}

// Record añade el evento al log analítico.
func (s *AnalyticsService) Record(ctx context.Context, env events.Envelope) error {
	return s.sink.Append(ctx, []analyticsDomain.EventRecord{analyticsDomain.RecordFromEnvelope(env)})
}

// DailyCounts devuelve los conteos de [from, to). to es exclusivo.
func (s *AnalyticsService) DailyCounts(ctx context.Context, from, to time.Time) ([]analyticsDomain.DailyCount, error) {
	verr := &sharedDomain.ValidationError{}
	if !to.After(from) {
		verr.Add("to", "must be after from")
	} else if to.Sub(from) > maxRange {
		verr.Add("to", "range must be at most 366 days")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return s.sink.DailyCounts(ctx, from.UTC(), to.UTC())
}
