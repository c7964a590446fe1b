package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	campaignDomain "github.com/davicafu/placementlab/internal/campaign/domain"
	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/domain/events"
	"github.com/davicafu/placementlab/internal/shared/infra/idempotency"
	sharedQuery "github.com/davicafu/placementlab/internal/shared/infra/platform/query"
	sharedUtils "github.com/davicafu/placementlab/internal/shared/infra/utils"
)

// CampaignService define los casos de uso de Campaign.
type CampaignService struct {
	repo   campaignDomain.CampaignRepository
	guard  *idempotency.Guard
	policy sharedDomain.CommandPolicy
	log    *zap.Logger
}

func NewCampaignService(repo campaignDomain.CampaignRepository, guard *idempotency.Guard, policy sharedDomain.CommandPolicy, log *zap.Logger) *CampaignService {
	return &CampaignService{repo: repo, guard: guard, policy: policy, log: log}
}

func (s *CampaignService) CreateCampaign(ctx context.Context, idemKey string, f campaignDomain.CampaignFields) (*campaignDomain.Campaign, bool, error) {
	return idempotency.Execute(ctx, s.guard, idempotency.CommandKey("campaign.create", idemKey),
		func(ctx context.Context) (*campaignDomain.Campaign, error) {
			c, err := campaignDomain.NewCampaign(f)
			if err != nil {
				return nil, err
			}
			evt := sharedDomain.NewOutboxEvent(ctx, campaignDomain.AggregateType, c.ID.String(), events.CampaignCreated, c.ToEvent())
			if err := s.repo.Create(ctx, c, evt); err != nil {
				s.log.Error("Failed to create campaign", zap.Error(err))
				return nil, err
			}
			s.policy.AfterCommit()
			return c, nil
		})
}

func (s *CampaignService) UpdateCampaign(ctx context.Context, id uuid.UUID, expected int, f campaignDomain.CampaignFields) (*campaignDomain.Campaign, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.Update(f); err != nil {
		return nil, err
	}
	c.Version = expected + 1

	evt := sharedDomain.NewOutboxEvent(ctx, campaignDomain.AggregateType, c.ID.String(), events.CampaignUpdated, c.ToEvent())
	if err := s.repo.Update(ctx, c, expected, evt); err != nil {
		return nil, err
	}
	s.policy.AfterCommit()
	return c, nil
}

func (s *CampaignService) DeleteCampaign(ctx context.Context, id uuid.UUID, expected int) error {
	evt := sharedDomain.NewOutboxEvent(ctx, campaignDomain.AggregateType, id.String(), events.CampaignDeleted,
		events.CampaignDeletedPayload{ID: id, Version: expected + 1})
	if err := s.repo.SoftDelete(ctx, id, expected, evt); err != nil {
		return err
	}
	s.policy.AfterCommit()
	return nil
}

func (s *CampaignService) GetCampaign(ctx context.Context, id uuid.UUID) (*campaignDomain.Campaign, error) {
	var c *campaignDomain.Campaign
	err := sharedUtils.Retry(ctx, 3, 100*time.Millisecond, func() error {
		var errRetry error
		c, errRetry = s.repo.GetByID(ctx, id)
		return errRetry
	})
	return c, err
}

func (s *CampaignService) ListCampaigns(ctx context.Context, status, advertiser string, page sharedQuery.CursorPagination) (sharedQuery.Page[*campaignDomain.Campaign], error) {
	var criteria []sharedDomain.Criteria
	if status != "" {
		criteria = append(criteria, campaignDomain.StatusCriteria{Status: campaignDomain.CampaignStatus(status)})
	}
	if advertiser != "" {
		criteria = append(criteria, campaignDomain.AdvertiserCriteria{Advertiser: advertiser})
	}
	return s.repo.List(ctx, sharedDomain.And(criteria...), page)
}
