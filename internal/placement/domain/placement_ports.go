package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	sharedQuery "github.com/davicafu/placementlab/internal/shared/infra/platform/query"
	"github.com/google/uuid"
)

var (
	ErrPlacementNotFound = fmt.Errorf("placement %w", sharedDomain.ErrNotFound)
	// ErrFilePending indica que el fichero de la versión actual aún no existe.
	ErrFilePending = errors.New("placement file is still being generated")
	// ErrFileFailed indica que la generación del fichero acabó en la DLQ.
	ErrFileFailed = errors.New("placement file generation failed")
)

// OverlapError se devuelve cuando el rango choca con otro placement vivo del mismo vídeo.
func OverlapError(other uuid.UUID) error {
	return sharedDomain.NewValidationError("time_range", fmt.Sprintf("overlaps placement %s", other))
}

// --- Repositorio de Placements ---
type PlacementRepository interface {
	// Create comprueba el solape dentro de la transacción, con el vídeo bloqueado en Postgres.
	Create(ctx context.Context, p *Placement, evt sharedDomain.OutboxEvent) error
	Update(ctx context.Context, p *Placement, expected int, evt sharedDomain.OutboxEvent) error
	SoftDelete(ctx context.Context, id uuid.UUID, expected int, evt sharedDomain.OutboxEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*Placement, error)
	List(ctx context.Context, criteria sharedDomain.Criteria, page sharedQuery.CursorPagination) (sharedQuery.Page[*Placement], error)
	// SaveFileState escribe el estado del fichero (active o failed) condicionado a expected.
	SaveFileState(ctx context.Context, p *Placement, expected int, evt sharedDomain.OutboxEvent) error
}

// VideoReader da la duración de un vídeo vivo (ErrNotFound si no existe).
type VideoReader interface {
	VideoDuration(ctx context.Context, id uuid.UUID) (float64, error)
}

// CampaignReader informa si una campaña existe y está activa.
type CampaignReader interface {
	CampaignActive(ctx context.Context, id uuid.UUID) (found, active bool, err error)
}

// FileStorage guarda los ficheros de datos y genera URLs firmadas.
type FileStorage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ---------- Criterios ----------

type VideoIDCriteria struct{ ID uuid.UUID }

func (c VideoIDCriteria) ToConditions() []sharedDomain.Criterion {
	return []sharedDomain.Criterion{{Field: "video_id", Op: sharedDomain.OpEq, Value: c.ID.String()}}
}

type ProductIDCriteria struct{ ID uuid.UUID }

func (c ProductIDCriteria) ToConditions() []sharedDomain.Criterion {
	return []sharedDomain.Criterion{{Field: "product_id", Op: sharedDomain.OpEq, Value: c.ID.String()}}
}

type StatusCriteria struct{ Status PlacementStatus }

func (c StatusCriteria) ToConditions() []sharedDomain.Criterion {
	return []sharedDomain.Criterion{{Field: "status", Op: sharedDomain.OpEq, Value: string(c.Status)}}
}

// ---------- Helpers comunes (cache keys, etc.) ----------

func PlacementCacheKeyByID(id uuid.UUID) string {
	return fmt.Sprintf("placement:id:%s", id.String())
}
