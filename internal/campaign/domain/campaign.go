package domain

import (
	"time"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/domain/events"
	"github.com/google/uuid"
)

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

const AggregateType = "campaign"

type Campaign struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	Advertiser string         `json:"advertiser,omitempty"`
	Status     CampaignStatus `json:"status"`
	StartsAt   *time.Time     `json:"starts_at,omitempty"`
	EndsAt     *time.Time     `json:"ends_at,omitempty"`
	Version    int            `json:"version"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  *time.Time     `json:"deleted_at,omitempty"`
}

type CampaignFields struct {
	Name       string
	Advertiser string
	Status     CampaignStatus
	StartsAt   *time.Time
	EndsAt     *time.Time
}

func NewCampaign(f CampaignFields) (*Campaign, error) {
	now := sharedDomain.Now()
	c := &Campaign{ID: uuid.New(), Version: 1, CreatedAt: now, UpdatedAt: now}
	if err := c.apply(f); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Campaign) Update(f CampaignFields) error {
	if err := c.apply(f); err != nil {
		return err
	}
	c.UpdatedAt = sharedDomain.Now()
	return nil
}

func (c *Campaign) apply(f CampaignFields) error {
	if f.Status == "" {
		f.Status = CampaignDraft
	}
	verr := &sharedDomain.ValidationError{}
	if f.Name == "" {
		verr.Add("name", "is required")
	}
	if len(f.Name) > 200 {
		verr.Add("name", "must be at most 200 characters")
	}
	switch f.Status {
	case CampaignDraft, CampaignActive, CampaignPaused, CampaignCompleted:
	default:
		verr.Add("status", "must be one of [draft active paused completed]")
	}
	if f.StartsAt != nil && f.EndsAt != nil && !f.EndsAt.After(*f.StartsAt) {
		verr.Add("ends_at", "must be after starts_at")
	}
	if err := verr.OrNil(); err != nil {
		return err
	}

	c.Name = f.Name
	c.Advertiser = f.Advertiser
	c.Status = f.Status
	c.StartsAt = utc(f.StartsAt)
	c.EndsAt = utc(f.EndsAt)
	return nil
}

// IsActive informa si la campaña admite placements nuevos.
func (c *Campaign) IsActive() bool {
	return c.Status == CampaignActive && c.DeletedAt == nil
}

func (c *Campaign) PartitionKey() string {
	return c.ID.String()
}

func (c *Campaign) ToEvent() events.CampaignChanged {
	return events.CampaignChanged{
		ID:         c.ID,
		Name:       c.Name,
		Advertiser: c.Advertiser,
		Status:     string(c.Status),
		StartsAt:   c.StartsAt,
		EndsAt:     c.EndsAt,
		Version:    c.Version,
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC().Truncate(time.Microsecond)
	return &v
}
