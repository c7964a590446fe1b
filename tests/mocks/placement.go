package mocks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	placementDomain "github.com/davicafu/placementlab/internal/placement/domain"
	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	sharedQuery "github.com/davicafu/placementlab/internal/shared/infra/platform/query"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// InMemoryPlacementRepo simula PlacementRepository con outbox incluido.
// Aplica el control de versión y el solape igual que el repositorio SQL.
type InMemoryPlacementRepo struct {
	Placements map[uuid.UUID]*placementDomain.Placement
	Outbox     []sharedDomain.OutboxEvent
	mu         sync.Mutex
}

func NewInMemoryPlacementRepo() *InMemoryPlacementRepo {
	return &InMemoryPlacementRepo{
		Placements: make(map[uuid.UUID]*placementDomain.Placement),
		Outbox:     []sharedDomain.OutboxEvent{},
	}
}

var _ placementDomain.PlacementRepository = (*InMemoryPlacementRepo)(nil)

func (r *InMemoryPlacementRepo) Create(ctx context.Context, p *placementDomain.Placement, evt sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkOverlap(p); err != nil {
		return err
	}
	r.Placements[p.ID] = clonePlacement(p)
	r.Outbox = append(r.Outbox, evt)
	return nil
}

func (r *InMemoryPlacementRepo) Update(ctx context.Context, p *placementDomain.Placement, expected int, evt sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkVersion(p.ID, expected); err != nil {
		return err
	}
	if err := r.checkOverlap(p); err != nil {
		return err
	}
	p.Version = expected + 1
	r.Placements[p.ID] = clonePlacement(p)
	r.Outbox = append(r.Outbox, evt)
	return nil
}

func (r *InMemoryPlacementRepo) SoftDelete(ctx context.Context, id uuid.UUID, expected int, evt sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkVersion(id, expected); err != nil {
		return err
	}
	now := time.Now().UTC()
	stored := r.Placements[id]
	stored.DeletedAt = &now
	stored.Version = expected + 1
	r.Outbox = append(r.Outbox, evt)
	return nil
}

func (r *InMemoryPlacementRepo) GetByID(ctx context.Context, id uuid.UUID) (*placementDomain.Placement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Placements[id]
	if !ok || p.DeletedAt != nil {
		return nil, placementDomain.ErrPlacementNotFound
	}
	return clonePlacement(p), nil
}

func (r *InMemoryPlacementRepo) SaveFileState(ctx context.Context, p *placementDomain.Placement, expected int, evt sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkVersion(p.ID, expected); err != nil {
		return err
	}
	stored := r.Placements[p.ID]
	stored.Status = p.Status
	stored.FileKey = p.FileKey
	stored.FileError = p.FileError
	stored.Version = expected + 1
	r.Outbox = append(r.Outbox, evt)
	return nil
}

// List ordena por (created_at, id) y pagina con el mismo cursor que el repositorio SQL.
func (r *InMemoryPlacementRepo) List(
	ctx context.Context,
	criteria sharedDomain.Criteria,
	page sharedQuery.CursorPagination,
) (sharedQuery.Page[*placementDomain.Placement], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cursor, err := sharedQuery.DecodeCursor(page.Cursor)
	if err != nil {
		return sharedQuery.Page[*placementDomain.Placement]{}, err
	}
	limit := sharedQuery.ClampLimit(page.Limit)

	var list []*placementDomain.Placement
	for _, p := range r.Placements {
		if p.DeletedAt != nil {
			continue
		}
		if criteria != nil && !matchPlacementCriterion(p, criteria.ToConditions()) {
			continue
		}
		list = append(list, clonePlacement(p))
	}

	// Ordenar
	sort.SliceStable(list, func(i, j int) bool {
		return comparePlacements(list[i], list[j])
	})

	// Paginar
	if cursor != nil {
		start := sort.Search(len(list), func(i int) bool {
			p := list[i]
			return p.CreatedAt.After(cursor.CreatedAt) ||
				(p.CreatedAt.Equal(cursor.CreatedAt) && p.ID.String() > cursor.ID)
		})
		list = list[start:]
	}
	if len(list) > limit+1 {
		list = list[:limit+1]
	}
	return sharedQuery.NewPage(list, limit, func(p *placementDomain.Placement) sharedQuery.Cursor {
		return sharedQuery.Cursor{CreatedAt: p.CreatedAt, ID: p.ID.String()}
	}), nil
}

// --- Reglas del mock ---

func (r *InMemoryPlacementRepo) checkVersion(id uuid.UUID, expected int) error {
	stored, ok := r.Placements[id]
	if !ok || stored.DeletedAt != nil {
		return placementDomain.ErrPlacementNotFound
	}
	if stored.Version != expected {
		return fmt.Errorf("placement %s: %w", id, sharedDomain.ErrConcurrentModification)
	}
	return nil
}

func (r *InMemoryPlacementRepo) checkOverlap(p *placementDomain.Placement) error {
	for _, other := range r.Placements {
		if other.ID == p.ID || other.DeletedAt != nil || other.VideoID != p.VideoID {
			continue
		}
		if other.TimeRange.Overlaps(p.TimeRange) {
			return placementDomain.OverlapError(other.ID)
		}
	}
	return nil
}

func matchPlacementCriterion(p *placementDomain.Placement, conds []sharedDomain.Criterion) bool {
	for _, cond := range conds {
		val := fmt.Sprintf("%v", cond.Value)

		var match bool
		switch strings.ToLower(cond.Field) {
		case "status":
			match = string(p.Status) == val
		case "video_id":
			match = p.VideoID.String() == val
		case "product_id":
			match = p.ProductID.String() == val
		case "deleted_at":
			match = p.DeletedAt == nil
		}

		if !match {
			return false // Si una condición no coincide, el registro no pasa el filtro
		}
	}
	return true
}

func comparePlacements(a, b *placementDomain.Placement) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID.String() < b.ID.String()
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func clonePlacement(p *placementDomain.Placement) *placementDomain.Placement {
	cp := *p
	return &cp
}

// --- Lectores y almacenamiento ---

// StubVideoReader devuelve duraciones fijas; un vídeo ausente es ErrNotFound.
type StubVideoReader map[uuid.UUID]float64

func (s StubVideoReader) VideoDuration(ctx context.Context, id uuid.UUID) (float64, error) {
	d, ok := s[id]
	if !ok {
		return 0, fmt.Errorf("video %w", sharedDomain.ErrNotFound)
	}
	return d, nil
}

// StubCampaignReader mapea campaña -> activa.
type StubCampaignReader map[uuid.UUID]bool

func (s StubCampaignReader) CampaignActive(ctx context.Context, id uuid.UUID) (bool, bool, error) {
	active, ok := s[id]
	return ok, active, nil
}

// MockFileStorage permite simular fallos del almacenamiento de ficheros.
type MockFileStorage struct {
	mock.Mock
}

var _ placementDomain.FileStorage = (*MockFileStorage)(nil)

func (m *MockFileStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *MockFileStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}
