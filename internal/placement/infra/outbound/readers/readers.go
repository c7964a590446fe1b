// Package readers adapta los servicios de Video y Campaign a los puertos de lectura de Placement.
package readers

import (
	"context"
	"errors"

	campaignDomain "github.com/davicafu/placementlab/internal/campaign/domain"
	placementDomain "github.com/davicafu/placementlab/internal/placement/domain"
	videoDomain "github.com/davicafu/placementlab/internal/video/domain"
	"github.com/google/uuid"
)

type videoGetter interface {
	GetVideo(ctx context.Context, id uuid.UUID) (*videoDomain.Video, error)
}

type campaignGetter interface {
	GetCampaign(ctx context.Context, id uuid.UUID) (*campaignDomain.Campaign, error)
}

// VideoReader responde con la duración del vídeo usando la caché de VideoService.
type VideoReader struct {
	videos videoGetter
}

func NewVideoReader(videos videoGetter) *VideoReader {
	return &VideoReader{videos: videos}
}

func (r *VideoReader) VideoDuration(ctx context.Context, id uuid.UUID) (float64, error) {
	v, err := r.videos.GetVideo(ctx, id)
	if err != nil {
		return 0, err
	}
	return v.DurationSeconds, nil
}

type CampaignReader struct {
	campaigns campaignGetter
}

func NewCampaignReader(campaigns campaignGetter) *CampaignReader {
	return &CampaignReader{campaigns: campaigns}
}

func (r *CampaignReader) CampaignActive(ctx context.Context, id uuid.UUID) (bool, bool, error) {
	c, err := r.campaigns.GetCampaign(ctx, id)
	if errors.Is(err, campaignDomain.ErrCampaignNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return true, c.IsActive(), nil
}

var (
	_ placementDomain.VideoReader    = (*VideoReader)(nil)
	_ placementDomain.CampaignReader = (*CampaignReader)(nil)
)
