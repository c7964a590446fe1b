package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/domain/events"
	"github.com/davicafu/placementlab/internal/shared/infra/idempotency"
	sharedCache "github.com/davicafu/placementlab/internal/shared/infra/platform/cache"
	sharedQuery "github.com/davicafu/placementlab/internal/shared/infra/platform/query"
	sharedUtils "github.com/davicafu/placementlab/internal/shared/infra/utils"
	videoDomain "github.com/davicafu/placementlab/internal/video/domain"
)

const videoCacheTTL = 120

// VideoService define los casos de uso de Video y de sus ejecuciones de validación.
type VideoService struct {
	repo   videoDomain.VideoRepository
	source videoDomain.ValidationSource
	cache  sharedCache.Cache
	guard  *idempotency.Guard
	policy sharedDomain.CommandPolicy
	log    *zap.Logger
}

func NewVideoService(
	repo videoDomain.VideoRepository,
	source videoDomain.ValidationSource,
	cache sharedCache.Cache,
	guard *idempotency.Guard,
	policy sharedDomain.CommandPolicy,
	log *zap.Logger,
) *VideoService {
	return &VideoService{
		repo:   repo,
		source: source,
		cache:  cache,
		guard:  guard,
		policy: policy,
		log:    log,
	}
}

// CreateVideo crea el vídeo y su evento. Con idemKey una repetición devuelve el vídeo original.
func (s *VideoService) CreateVideo(ctx context.Context, idemKey string, f videoDomain.VideoFields) (*videoDomain.Video, bool, error) {
	return idempotency.Execute(ctx, s.guard, idempotency.CommandKey("video.create", idemKey),
		func(ctx context.Context) (*videoDomain.Video, error) {
			v, err := videoDomain.NewVideo(f)
			if err != nil {
				return nil, err
			}

			evt := sharedDomain.NewOutboxEvent(ctx, videoDomain.AggregateType, v.ID.String(), events.VideoCreated, v.ToEvent())
			if err := s.repo.Create(ctx, v, evt); err != nil {
				s.log.Error("Failed to create video", zap.Error(err))
				return nil, err
			}
			s.policy.AfterCommit()
			return v, nil
		})
}

// UpdateVideo reemplaza los campos editables si la versión almacenada es expected.
func (s *VideoService) UpdateVideo(ctx context.Context, id uuid.UUID, expected int, f videoDomain.VideoFields) (*videoDomain.Video, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := v.Update(f); err != nil {
		return nil, err
	}
	v.Version = expected + 1

	evt := sharedDomain.NewOutboxEvent(ctx, videoDomain.AggregateType, v.ID.String(), events.VideoUpdated, v.ToEvent())
	if err := s.repo.Update(ctx, v, expected, evt); err != nil {
		return nil, err
	}
	sharedCache.Invalidate(ctx, s.cache, videoDomain.VideoCacheKeyByID(id), s.log)
	s.policy.AfterCommit()
	return v, nil
}

// DeleteVideo borra lógicamente el vídeo si la versión almacenada es expected.
func (s *VideoService) DeleteVideo(ctx context.Context, id uuid.UUID, expected int) error {
	payload := events.VideoDeletedPayload{ID: id, Version: expected + 1}
	evt := sharedDomain.NewOutboxEvent(ctx, videoDomain.AggregateType, id.String(), events.VideoDeleted, payload)
	if err := s.repo.SoftDelete(ctx, id, expected, evt); err != nil {
		return err
	}
	sharedCache.Invalidate(ctx, s.cache, videoDomain.VideoCacheKeyByID(id), s.log)
	s.policy.AfterCommit()
	return nil
}

// GetVideo aplica cache-aside con reintentos sobre el repositorio.
func (s *VideoService) GetVideo(ctx context.Context, id uuid.UUID) (*videoDomain.Video, error) {
	key := videoDomain.VideoCacheKeyByID(id)
	if s.cache != nil {
		var cached videoDomain.Video
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	var v *videoDomain.Video
	err := sharedUtils.Retry(ctx, 3, 100*time.Millisecond, func() error {
		var errRetry error
		v, errRetry = s.repo.GetByID(ctx, id)
		return errRetry
	})
	if err != nil {
		if !errors.Is(err, videoDomain.ErrVideoNotFound) {
			s.log.Error("Failed to fetch video", zap.String("video_id", id.String()), zap.Error(err))
		}
		return nil, err
	}

	sharedCache.AsyncCacheSet(ctx, s.cache, key, v, videoCacheTTL, s.log)
	return v, nil
}

func (s *VideoService) ListVideos(ctx context.Context, status string, page sharedQuery.CursorPagination) (sharedQuery.Page[*videoDomain.Video], error) {
	var criteria []sharedDomain.Criteria
	if status != "" {
		criteria = append(criteria, videoDomain.StatusCriteria{Status: videoDomain.VideoStatus(status)})
	}
	return s.repo.List(ctx, sharedDomain.And(criteria...), page)
}

// ---------- Validación asíncrona ----------

// RequestValidation registra una ejecución pending y el evento que la dispara.
func (s *VideoService) RequestValidation(ctx context.Context, idemKey string, videoID uuid.UUID) (*videoDomain.ValidationRun, bool, error) {
	return idempotency.Execute(ctx, s.guard, idempotency.CommandKey("video.validate", idemKey),
		func(ctx context.Context) (*videoDomain.ValidationRun, error) {
			run := videoDomain.NewValidationRun(videoID)
			payload := events.ValidationRequested{RunID: run.ID, VideoID: videoID}
			evt := sharedDomain.NewOutboxEvent(ctx, videoDomain.AggregateType, videoID.String(), events.VideoValidationRequested, payload)

			if err := s.repo.CreateRun(ctx, run, evt); err != nil {
				return nil, err
			}
			s.policy.AfterCommit()
			return run, nil
		})
}

func (s *VideoService) GetValidationRun(ctx context.Context, runID string) (*videoDomain.ValidationRun, error) {
	return s.repo.GetRun(ctx, runID)
}

// ExecuteValidation evalúa los placements del vídeo y cierra la ejecución.
// Una ejecución ya cerrada se devuelve tal cual, salvo una failed que llega por un reenvío de la DLQ.
func (s *VideoService) ExecuteValidation(ctx context.Context, runID string) (*videoDomain.ValidationRun, error) {
	run, err := s.repo.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	from := videoDomain.RunPending
	if run.IsFinished() {
		if !run.Retryable(sharedDomain.IsRedrive(ctx)) {
			return run, nil
		}
		from = run.Status
		s.log.Info("Retrying failed validation run", zap.String("run_id", run.ID))
	}

	v, err := s.repo.GetByID(ctx, run.VideoID)
	if errors.Is(err, videoDomain.ErrVideoNotFound) {
		run.Fail("video no longer exists")
		return run, s.finish(ctx, run, from)
	}
	if err != nil {
		return nil, err
	}

	placements, err := s.source.LivePlacements(ctx, v.ID)
	if err != nil {
		return nil, sharedDomain.Transient("load placements", err)
	}
	campaignIDs := make([]uuid.UUID, 0, len(placements))
	for _, p := range placements {
		if p.CampaignID != nil {
			campaignIDs = append(campaignIDs, *p.CampaignID)
		}
	}
	campaigns, err := s.source.CampaignStates(ctx, campaignIDs)
	if err != nil {
		return nil, sharedDomain.Transient("load campaigns", err)
	}

	run.Complete(videoDomain.Evaluate(v, placements, campaigns))
	if err := s.finish(ctx, run, from); err != nil {
		return nil, err
	}
	s.log.Info("Validation run completed",
		zap.String("run_id", run.ID),
		zap.String("video_id", v.ID.String()),
		zap.Int("issues", run.IssuesCount))
	return run, nil
}

// FailValidation marca la ejecución como failed; no hace nada si ya estaba cerrada.
func (s *VideoService) FailValidation(ctx context.Context, runID, reason string) error {
	run, err := s.repo.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.IsFinished() {
		return nil
	}
	run.Fail(reason)
	return s.finish(ctx, run, videoDomain.RunPending)
}

func (s *VideoService) finish(ctx context.Context, run *videoDomain.ValidationRun, from videoDomain.RunStatus) error {
	eventType := events.VideoValidationCompleted
	if run.Status == videoDomain.RunFailed {
		eventType = events.VideoValidationFailed
	}
	payload := events.ValidationFinished{
		RunID:       run.ID,
		VideoID:     run.VideoID,
		Status:      string(run.Status),
		IssuesCount: run.IssuesCount,
		Error:       run.Error,
	}
	evt := sharedDomain.NewOutboxEvent(ctx, videoDomain.AggregateType, run.VideoID.String(), eventType, payload)

	err := s.repo.FinishRun(ctx, run, from, evt)
	if errors.Is(err, videoDomain.ErrRunAlreadyFinished) {
		// Otra entrega llegó antes; su resultado es el válido
		s.log.Info("Validation run already finished", zap.String("run_id", run.ID))
		return nil
	}
	if err != nil {
		return err
	}
	s.policy.AfterCommit()
	return nil
}
