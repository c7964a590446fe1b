package application

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	campaignDomain "github.com/davicafu/placementlab/internal/campaign/domain"
	campaignDB "github.com/davicafu/placementlab/internal/campaign/infra/outbound/db"
	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence/persistencetest"
	sharedQuery "github.com/davicafu/placementlab/internal/shared/infra/platform/query"
)

func newService(t *testing.T) *CampaignService {
	db := persistencetest.OpenSQLite(t)
	return NewCampaignService(campaignDB.NewCampaignRepoSQL(db), nil, sharedDomain.CommandPolicy{}, zap.NewNop())
}

func TestCampaignService_Lifecycle(t *testing.T) {
	// Arrange
	svc := newService(t)
	ctx := context.Background()

	// Act
	c, _, err := svc.CreateCampaign(ctx, "", campaignDomain.CampaignFields{Name: "Verano", Advertiser: "ACME"})
	require.NoError(t, err)
	activated, err := svc.UpdateCampaign(ctx, c.ID, 1, campaignDomain.CampaignFields{Name: "Verano", Advertiser: "ACME", Status: campaignDomain.CampaignActive})
	require.NoError(t, err)

	// Assert
	assert.Equal(t, 2, activated.Version)
	got, err := svc.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive())

	require.NoError(t, svc.DeleteCampaign(ctx, c.ID, 2))
	_, err = svc.GetCampaign(ctx, c.ID)
	assert.ErrorIs(t, err, campaignDomain.ErrCampaignNotFound)
}

func TestCampaignService_UpdateUnknownIsNotFound(t *testing.T) {
	svc := newService(t)

	_, err := svc.UpdateCampaign(context.Background(), uuid.New(), 1, campaignDomain.CampaignFields{Name: "X"})

	assert.ErrorIs(t, err, sharedDomain.ErrNotFound)
}

func TestCampaignService_ListPaginatesWithCursor(t *testing.T) {
	// Arrange
	svc := newService(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _, err := svc.CreateCampaign(ctx, "", campaignDomain.CampaignFields{Name: "C", Advertiser: "ACME", Status: campaignDomain.CampaignActive})
		require.NoError(t, err)
	}
	_, _, err := svc.CreateCampaign(ctx, "", campaignDomain.CampaignFields{Name: "Otra", Advertiser: "Globex"})
	require.NoError(t, err)

	// Act
	seen := map[uuid.UUID]bool{}
	cursor := ""
	pages := 0
	for {
		page, err := svc.ListCampaigns(ctx, "active", "ACME", sharedQuery.CursorPagination{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		pages++
		for _, c := range page.Items {
			assert.False(t, seen[c.ID], "un elemento no se repite entre páginas")
			seen[c.ID] = true
		}
		if !page.Meta.HasMore {
			break
		}
		cursor = page.Meta.NextCursor
	}

	// Assert
	assert.Len(t, seen, 5)
	assert.Equal(t, 3, pages)
}
