package domain

import (
	"context"
	"errors"
	"fmt"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	sharedQuery "github.com/davicafu/placementlab/internal/shared/infra/platform/query"
	"github.com/google/uuid"
)

var (
	ErrVideoNotFound         = fmt.Errorf("video %w", sharedDomain.ErrNotFound)
	ErrValidationRunNotFound = fmt.Errorf("validation run %w", sharedDomain.ErrNotFound)
	// ErrRunAlreadyFinished indica que otra entrega ya cerró la ejecución.
	ErrRunAlreadyFinished = errors.New("validation run already finished")
)

// --- Repositorio de Videos ---
type VideoRepository interface {
	Create(ctx context.Context, v *Video, evt sharedDomain.OutboxEvent) error
	// Update exige que la versión almacenada sea expected y la incrementa.
	Update(ctx context.Context, v *Video, expected int, evt sharedDomain.OutboxEvent) error
	SoftDelete(ctx context.Context, id uuid.UUID, expected int, evt sharedDomain.OutboxEvent) error
	// GetByID devuelve ErrVideoNotFound también para vídeos borrados.
	GetByID(ctx context.Context, id uuid.UUID) (*Video, error)
	List(ctx context.Context, criteria sharedDomain.Criteria, page sharedQuery.CursorPagination) (sharedQuery.Page[*Video], error)

	CreateRun(ctx context.Context, run *ValidationRun, evt sharedDomain.OutboxEvent) error
	GetRun(ctx context.Context, id string) (*ValidationRun, error)
	// FinishRun escribe el estado terminal sólo si la ejecución sigue en from (ErrRunAlreadyFinished si no).
	// from es pending salvo al reintentar una ejecución failed.
	FinishRun(ctx context.Context, run *ValidationRun, from RunStatus, evt sharedDomain.OutboxEvent) error
}

// ValidationSource da acceso de lectura a los placements y campañas que se validan.
type ValidationSource interface {
	LivePlacements(ctx context.Context, videoID uuid.UUID) ([]PlacementSnapshot, error)
	CampaignStates(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]CampaignState, error)
}

// ---------- Criterios ----------

// StatusCriteria filtra vídeos por estado.
type StatusCriteria struct {
	Status VideoStatus
}

func (c StatusCriteria) ToConditions() []sharedDomain.Criterion {
	return []sharedDomain.Criterion{{Field: "status", Op: sharedDomain.OpEq, Value: string(c.Status)}}
}

// ---------- Helpers comunes (cache keys, etc.) ----------

func VideoCacheKeyByID(id uuid.UUID) string {
	return fmt.Sprintf("video:id:%s", id.String())
}
