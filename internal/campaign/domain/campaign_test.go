package domain

import (
	"testing"
	"time"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCampaign_EndsAtMustFollowStartsAt(t *testing.T) {
	// Arrange
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	end := start

	// Act
	_, err := NewCampaign(CampaignFields{Name: "Navidad", StartsAt: &start, EndsAt: &end})

	// Assert
	var verr *sharedDomain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ends_at", verr.Fields[0].Field)
}

func TestCampaign_IsActive(t *testing.T) {
	c, err := NewCampaign(CampaignFields{Name: "Navidad", Status: CampaignActive})
	require.NoError(t, err)
	assert.True(t, c.IsActive())

	require.NoError(t, c.Update(CampaignFields{Name: "Navidad", Status: CampaignPaused}))
	assert.False(t, c.IsActive())
}
