package domain

import (
	"context"
	"fmt"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	sharedQuery "github.com/davicafu/placementlab/internal/shared/infra/platform/query"
	"github.com/google/uuid"
)

var ErrCampaignNotFound = fmt.Errorf("campaign %w", sharedDomain.ErrNotFound)

type CampaignRepository interface {
	Create(ctx context.Context, c *Campaign, evt sharedDomain.OutboxEvent) error
	Update(ctx context.Context, c *Campaign, expected int, evt sharedDomain.OutboxEvent) error
	SoftDelete(ctx context.Context, id uuid.UUID, expected int, evt sharedDomain.OutboxEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*Campaign, error)
	List(ctx context.Context, criteria sharedDomain.Criteria, page sharedQuery.CursorPagination) (sharedQuery.Page[*Campaign], error)
}

type StatusCriteria struct {
	Status CampaignStatus
}

func (c StatusCriteria) ToConditions() []sharedDomain.Criterion {
	return []sharedDomain.Criterion{{Field: "status", Op: sharedDomain.OpEq, Value: string(c.Status)}}
}

type AdvertiserCriteria struct {
	Advertiser string
}

func (c AdvertiserCriteria) ToConditions() []sharedDomain.Criterion {
	return []sharedDomain.Criterion{{Field: "advertiser", Op: sharedDomain.OpEq, Value: c.Advertiser}}
}
