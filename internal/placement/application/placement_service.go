package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	placementDomain "github.com/davicafu/placementlab/internal/placement/domain"
	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/domain/events"
	"github.com/davicafu/placementlab/internal/shared/infra/idempotency"
	sharedCache "github.com/davicafu/placementlab/internal/shared/infra/platform/cache"
	sharedQuery "github.com/davicafu/placementlab/internal/shared/infra/platform/query"
	sharedUtils "github.com/davicafu/placementlab/internal/shared/infra/utils"
)

const (
	placementCacheTTL = 60
	fileContentType   = "application/json"
	defaultFileURLTTL = 15 * time.Minute
)

// PlacementService define los casos de uso de Placement y de su fichero de datos.
type PlacementService struct {
	repo      placementDomain.PlacementRepository
	videos    placementDomain.VideoReader
	campaigns placementDomain.CampaignReader
	files     placementDomain.FileStorage
	cache     sharedCache.Cache
	guard     *idempotency.Guard
	policy    sharedDomain.CommandPolicy
	fileTTL   time.Duration
	log       *zap.Logger
}

func NewPlacementService(
	repo placementDomain.PlacementRepository,
	videos placementDomain.VideoReader,
	campaigns placementDomain.CampaignReader,
	files placementDomain.FileStorage,
	cache sharedCache.Cache,
	guard *idempotency.Guard,
	policy sharedDomain.CommandPolicy,
	fileTTL time.Duration,
	log *zap.Logger,
) *PlacementService {
	if fileTTL <= 0 {
		fileTTL = defaultFileURLTTL
	}
	return &PlacementService{
		repo:      repo,
		videos:    videos,
		campaigns: campaigns,
		files:     files,
		cache:     cache,
		guard:     guard,
		policy:    policy,
		fileTTL:   fileTTL,
		log:       log,
	}
}

// CreatePlacement valida las referencias, crea el placement pending y su evento.
func (s *PlacementService) CreatePlacement(ctx context.Context, idemKey string, f placementDomain.PlacementFields) (*placementDomain.Placement, bool, error) {
	return idempotency.Execute(ctx, s.guard, idempotency.CommandKey("placement.create", idemKey),
		func(ctx context.Context) (*placementDomain.Placement, error) {
			p, err := placementDomain.NewPlacement(f)
			if err != nil {
				return nil, err
			}
			if err := s.checkReferences(ctx, f); err != nil {
				return nil, err
			}

			evt := sharedDomain.NewOutboxEvent(ctx, placementDomain.AggregateType, p.ID.String(), events.PlacementCreated, p.ToEvent())
			if err := s.repo.Create(ctx, p, evt); err != nil {
				if !sharedDomain.IsValidation(err) {
					s.log.Error("Failed to create placement", zap.Error(err))
				}
				return nil, err
			}
			s.policy.AfterCommit()
			return p, nil
		})
}

// UpdatePlacement aplica los cambios si la versión almacenada es expected.
// El placement vuelve a pending y se genera el fichero de la nueva versión.
func (s *PlacementService) UpdatePlacement(ctx context.Context, id uuid.UUID, expected int, ch placementDomain.PlacementChanges) (*placementDomain.Placement, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	f, err := p.Update(ch)
	if err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, f); err != nil {
		return nil, err
	}
	p.Version = expected + 1

	evt := sharedDomain.NewOutboxEvent(ctx, placementDomain.AggregateType, p.ID.String(), events.PlacementUpdated, p.ToEvent())
	if err := s.repo.Update(ctx, p, expected, evt); err != nil {
		return nil, err
	}
	sharedCache.Invalidate(ctx, s.cache, placementDomain.PlacementCacheKeyByID(id), s.log)
	s.policy.AfterCommit()
	return p, nil
}

// DeletePlacement borra lógicamente el placement si la versión almacenada es expected.
func (s *PlacementService) DeletePlacement(ctx context.Context, id uuid.UUID, expected int) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	payload := events.PlacementDeletedPayload{ID: id, VideoID: p.VideoID, Version: expected + 1}
	evt := sharedDomain.NewOutboxEvent(ctx, placementDomain.AggregateType, id.String(), events.PlacementDeleted, payload)
	if err := s.repo.SoftDelete(ctx, id, expected, evt); err != nil {
		return err
	}
	sharedCache.Invalidate(ctx, s.cache, placementDomain.PlacementCacheKeyByID(id), s.log)
	s.policy.AfterCommit()
	return nil
}

// GetPlacement aplica cache-aside y añade la URL firmada del fichero si está activo.
// La URL caduca, así que nunca se guarda en caché.
func (s *PlacementService) GetPlacement(ctx context.Context, id uuid.UUID) (*placementDomain.Placement, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	out := *p
	if out.Status == placementDomain.PlacementActive && out.FileKey != "" && s.files != nil {
		url, err := s.files.SignedURL(ctx, out.FileKey, s.fileTTL)
		if err != nil {
			s.log.Warn("Failed to sign placement file URL", zap.String("placement_id", id.String()), zap.Error(err))
		} else {
			out.FileURL = url
		}
	}
	return &out, nil
}

func (s *PlacementService) load(ctx context.Context, id uuid.UUID) (*placementDomain.Placement, error) {
	key := placementDomain.PlacementCacheKeyByID(id)
	if s.cache != nil {
		var cached placementDomain.Placement
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	var p *placementDomain.Placement
	err := sharedUtils.Retry(ctx, 3, 100*time.Millisecond, func() error {
		var errRetry error
		p, errRetry = s.repo.GetByID(ctx, id)
		return errRetry
	})
	if err != nil {
		if !errors.Is(err, placementDomain.ErrPlacementNotFound) {
			s.log.Error("Failed to fetch placement", zap.String("placement_id", id.String()), zap.Error(err))
		}
		return nil, err
	}

	sharedCache.AsyncCacheSet(ctx, s.cache, key, p, placementCacheTTL, s.log)
	return p, nil
}

// ListPlacements filtra por vídeo, producto y estado con paginación por cursor.
func (s *PlacementService) ListPlacements(ctx context.Context, videoID, productID *uuid.UUID, status string, page sharedQuery.CursorPagination) (sharedQuery.Page[*placementDomain.Placement], error) {
	var criteria []sharedDomain.Criteria
	if videoID != nil {
		criteria = append(criteria, placementDomain.VideoIDCriteria{ID: *videoID})
	}
	if productID != nil {
		criteria = append(criteria, placementDomain.ProductIDCriteria{ID: *productID})
	}
	if status != "" {
		st, err := placementDomain.ParseStatus(status)
		if err != nil {
			return sharedQuery.Page[*placementDomain.Placement]{}, err
		}
		criteria = append(criteria, placementDomain.StatusCriteria{Status: st})
	}
	return s.repo.List(ctx, sharedDomain.And(criteria...), page)
}

// FileLink devuelve la URL firmada del fichero.
// ErrFilePending mientras se genera; ErrFileFailed si la generación acabó en la DLQ.
func (s *PlacementService) FileLink(ctx context.Context, id uuid.UUID) (string, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	switch p.Status {
	case placementDomain.PlacementPending:
		return "", placementDomain.ErrFilePending
	case placementDomain.PlacementFailed:
		return "", fmt.Errorf("%w: %s", placementDomain.ErrFileFailed, p.FileError)
	}
	return s.files.SignedURL(ctx, p.FileKey, s.fileTTL)
}

// ---------- Generación del fichero ----------

// GenerateFile genera el fichero de la versión indicada y lo adjunta.
// Si el placement ya no está en esa versión no hace nada y devuelve stale=true.
// Con un mensaje reenviado desde la DLQ reintenta una generación que acabó en failed.
func (s *PlacementService) GenerateFile(ctx context.Context, id uuid.UUID, version int) (key string, stale bool, err error) {
	p, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, placementDomain.ErrPlacementNotFound) {
		return "", true, nil
	}
	if err != nil {
		return "", false, sharedDomain.Transient("load placement", err)
	}
	expected, ok := p.FileTarget(version, sharedDomain.IsRedrive(ctx))
	if !ok {
		return "", true, nil
	}

	data, err := p.RenderFile(sharedDomain.Now())
	if err != nil {
		return "", false, sharedDomain.Terminal("render placement file", err)
	}
	key = placementDomain.FileKeyFor(p.ID, expected)
	if err := s.files.Put(ctx, key, data, fileContentType); err != nil {
		return "", false, sharedDomain.Transient("store placement file", err)
	}

	p.AttachFile(key)
	p.Version = expected + 1
	payload := events.PlacementFileGeneratedPayload{ID: p.ID, VideoID: p.VideoID, Version: p.Version, FileKey: key}
	evt := sharedDomain.NewOutboxEvent(ctx, placementDomain.AggregateType, p.ID.String(), events.PlacementFileGenerated, payload)

	stale, err = s.saveFileState(ctx, p, expected, evt)
	if err != nil || stale {
		return "", stale, err
	}
	s.log.Info("Placement file generated", zap.String("placement_id", id.String()), zap.String("file_key", key))
	return key, false, nil
}

// MarkFileFailed deja el placement en failed si sigue en la versión del evento.
func (s *PlacementService) MarkFileFailed(ctx context.Context, id uuid.UUID, version int, reason string) error {
	p, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, placementDomain.ErrPlacementNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.Version != version {
		return nil
	}

	p.MarkFileFailed(reason)
	p.Version = version + 1
	payload := events.PlacementFileFailedPayload{ID: p.ID, VideoID: p.VideoID, Version: p.Version, Reason: reason}
	evt := sharedDomain.NewOutboxEvent(ctx, placementDomain.AggregateType, p.ID.String(), events.PlacementFileFailed, payload)

	_, err = s.saveFileState(ctx, p, version, evt)
	return err
}

func (s *PlacementService) saveFileState(ctx context.Context, p *placementDomain.Placement, expected int, evt sharedDomain.OutboxEvent) (bool, error) {
	err := s.repo.SaveFileState(ctx, p, expected, evt)
	switch {
	case errors.Is(err, sharedDomain.ErrConcurrentModification), errors.Is(err, placementDomain.ErrPlacementNotFound):
		// Un usuario modificó o borró el placement entre la lectura y la escritura
		s.log.Info("Placement moved on, file state discarded",
			zap.String("placement_id", p.ID.String()), zap.Int("version", expected))
		return true, nil
	case err != nil:
		return false, sharedDomain.Transient("save placement file state", err)
	}
	sharedCache.Invalidate(ctx, s.cache, placementDomain.PlacementCacheKeyByID(p.ID), s.log)
	s.policy.AfterCommit()
	return false, nil
}

// checkReferences comprueba las reglas que dependen de otros agregados.
func (s *PlacementService) checkReferences(ctx context.Context, f placementDomain.PlacementFields) error {
	verr := &sharedDomain.ValidationError{}

	duration, err := s.videos.VideoDuration(ctx, f.VideoID)
	switch {
	case errors.Is(err, sharedDomain.ErrNotFound):
		verr.Add("video_id", "video does not exist")
	case err != nil:
		return err
	case f.TimeRange.EndTime > duration:
		verr.Add("time_range.end_time", fmt.Sprintf("must not exceed video duration (%gs)", duration))
	}

	if f.CampaignID != nil {
		found, active, err := s.campaigns.CampaignActive(ctx, *f.CampaignID)
		switch {
		case err != nil:
			return err
		case !found:
			verr.Add("campaign_id", "campaign does not exist")
		case !active:
			verr.Add("campaign_id", "campaign is not active")
		}
	}
	return verr.OrNil()
}
