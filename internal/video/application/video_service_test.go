package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/domain/events"
	"github.com/davicafu/placementlab/internal/shared/infra/idempotency"
	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence"
	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence/persistencetest"
	sharedQuery "github.com/davicafu/placementlab/internal/shared/infra/platform/query"
	videoDomain "github.com/davicafu/placementlab/internal/video/domain"
	videoDB "github.com/davicafu/placementlab/internal/video/infra/outbound/db"
	"github.com/davicafu/placementlab/tests/mocks"
)

type fixture struct {
	db       *persistence.DB
	cache    *mocks.DummyCache
	notifier *mocks.CountingNotifier
	service  *VideoService
}

func newFixture(t *testing.T, tier sharedDomain.ConsistencyTier) fixture {
	db := persistencetest.OpenSQLite(t)
	cache := mocks.NewDummyCache()
	notifier := &mocks.CountingNotifier{}
	guard := idempotency.NewGuard(idempotency.NewSQLStore(db, time.Hour), time.Minute, zap.NewNop())
	svc := NewVideoService(videoDB.NewVideoRepoSQL(db), videoDB.NewValidationSourceSQL(db), cache, guard,
		sharedDomain.CommandPolicy{Tier: tier, Notifier: notifier}, zap.NewNop())
	return fixture{db: db, cache: cache, notifier: notifier, service: svc}
}

func (f fixture) outboxTypes(t *testing.T, aggregateID string) []string {
	logged, err := persistence.NewEventLogRepo(f.db).ListByAggregate(context.Background(), aggregateID, 100)
	require.NoError(t, err)
	out := make([]string, 0, len(logged))
	for _, e := range logged {
		out = append(out, e.EventType)
	}
	return out
}

func (f fixture) insertPlacement(t *testing.T, videoID uuid.UUID, start, end float64, campaignID *uuid.UUID) uuid.UUID {
	id := uuid.New()
	var campaign interface{}
	if campaignID != nil {
		campaign = campaignID.String()
	}
	now := sharedDomain.Now()
	_, err := f.db.ExecContext(context.Background(),
		`INSERT INTO placements (id, video_id, product_id, campaign_id, start_time, end_time, status, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 'pending', 1, ?, ?)`,
		id.String(), videoID.String(), uuid.NewString(), campaign, start, end, now, now)
	require.NoError(t, err)
	return id
}

func TestCreateVideo_WritesOutboxAndNudgesInCP(t *testing.T) {
	// Arrange
	f := newFixture(t, sharedDomain.TierCP)

	// Act
	v, replayed, err := f.service.CreateVideo(context.Background(), "", videoDomain.VideoFields{Title: "Demo", DurationSeconds: 90})

	// Assert
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, []string{events.VideoCreated}, f.outboxTypes(t, v.ID.String()))
	assert.Equal(t, 1, f.notifier.Count())
}

func TestCreateVideo_APDoesNotNudge(t *testing.T) {
	f := newFixture(t, sharedDomain.TierAP)

	_, _, err := f.service.CreateVideo(context.Background(), "", videoDomain.VideoFields{Title: "Demo", DurationSeconds: 90})

	require.NoError(t, err)
	assert.Zero(t, f.notifier.Count())
}

func TestCreateVideo_IdempotencyKeyReplaysOriginal(t *testing.T) {
	f := newFixture(t, sharedDomain.TierAP)
	ctx := context.Background()

	first, _, err := f.service.CreateVideo(ctx, "key-1", videoDomain.VideoFields{Title: "Demo", DurationSeconds: 90})
	require.NoError(t, err)
	second, replayed, err := f.service.CreateVideo(ctx, "key-1", videoDomain.VideoFields{Title: "Other", DurationSeconds: 10})

	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Demo", second.Title)

	page, err := f.service.ListVideos(ctx, "", sharedQuery.CursorPagination{Limit: sharedQuery.MaxLimit})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestUpdateVideo_StaleVersionIsConflict(t *testing.T) {
	// Arrange
	f := newFixture(t, sharedDomain.TierAP)
	ctx := context.Background()
	v, _, err := f.service.CreateVideo(ctx, "", videoDomain.VideoFields{Title: "Demo", DurationSeconds: 90})
	require.NoError(t, err)

	updated, err := f.service.UpdateVideo(ctx, v.ID, 1, videoDomain.VideoFields{Title: "Demo 2", DurationSeconds: 90})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	// Act: otro cliente todavía tiene la versión 1
	_, err = f.service.UpdateVideo(ctx, v.ID, 1, videoDomain.VideoFields{Title: "Demo 3", DurationSeconds: 90})

	// Assert
	assert.ErrorIs(t, err, sharedDomain.ErrConcurrentModification)
	got, err := f.service.GetVideo(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Demo 2", got.Title)
	assert.Equal(t, []string{events.VideoCreated, events.VideoUpdated}, f.outboxTypes(t, v.ID.String()))
}

func TestDeleteVideo_HidesVideoAndInvalidatesCache(t *testing.T) {
	f := newFixture(t, sharedDomain.TierAP)
	ctx := context.Background()
	v, _, err := f.service.CreateVideo(ctx, "", videoDomain.VideoFields{Title: "Demo", DurationSeconds: 90})
	require.NoError(t, err)
	require.NoError(t, f.cache.Set(ctx, videoDomain.VideoCacheKeyByID(v.ID), v, 60))

	require.NoError(t, f.service.DeleteVideo(ctx, v.ID, 1))

	assert.False(t, f.cache.Has(videoDomain.VideoCacheKeyByID(v.ID)))
	_, err = f.service.GetVideo(ctx, v.ID)
	assert.ErrorIs(t, err, videoDomain.ErrVideoNotFound)
	assert.ErrorIs(t, err, sharedDomain.ErrNotFound)
}

func TestGetVideo_CacheHitSkipsRepository(t *testing.T) {
	f := newFixture(t, sharedDomain.TierAP)
	cached := &videoDomain.Video{ID: uuid.New(), Title: "Cacheado", DurationSeconds: 10}
	require.NoError(t, f.cache.Set(context.Background(), videoDomain.VideoCacheKeyByID(cached.ID), cached, 60))

	got, err := f.service.GetVideo(context.Background(), cached.ID)

	require.NoError(t, err)
	assert.Equal(t, "Cacheado", got.Title)
}

func TestValidation_CompletesWithIssues(t *testing.T) {
	// Arrange
	f := newFixture(t, sharedDomain.TierAP)
	ctx := context.Background()
	v, _, err := f.service.CreateVideo(ctx, "", videoDomain.VideoFields{Title: "Demo", DurationSeconds: 60})
	require.NoError(t, err)
	missingCampaign := uuid.New()
	f.insertPlacement(t, v.ID, 0, 10, nil)
	bad := f.insertPlacement(t, v.ID, 55, 70, &missingCampaign)

	run, _, err := f.service.RequestValidation(ctx, "", v.ID)
	require.NoError(t, err)
	assert.Equal(t, videoDomain.RunPending, run.Status)

	// Act
	done, err := f.service.ExecuteValidation(ctx, run.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, videoDomain.RunCompleted, done.Status)
	assert.Equal(t, 2, done.IssuesCount)

	stored, err := f.service.GetValidationRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, videoDomain.RunCompleted, stored.Status)
	require.Len(t, stored.Issues, 2)
	assert.Equal(t, bad, stored.Issues[0].PlacementID)
	assert.NotNil(t, stored.CompletedAt)

	assert.Equal(t, []string{events.VideoCreated, events.VideoValidationRequested, events.VideoValidationCompleted},
		f.outboxTypes(t, v.ID.String()))
}

func TestValidation_TerminalStateIsWrittenOnce(t *testing.T) {
	f := newFixture(t, sharedDomain.TierAP)
	ctx := context.Background()
	v, _, err := f.service.CreateVideo(ctx, "", videoDomain.VideoFields{Title: "Demo", DurationSeconds: 60})
	require.NoError(t, err)
	run, _, err := f.service.RequestValidation(ctx, "", v.ID)
	require.NoError(t, err)

	_, err = f.service.ExecuteValidation(ctx, run.ID)
	require.NoError(t, err)
	// Un fallo tardío no pisa el resultado
	require.NoError(t, f.service.FailValidation(ctx, run.ID, "late failure"))

	stored, err := f.service.GetValidationRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, videoDomain.RunCompleted, stored.Status)
	assert.Empty(t, stored.Error)
}

func TestValidation_RedriveReopensFailedRun(t *testing.T) {
	// Arrange: la ejecución acabó en failed tras agotar reintentos
	f := newFixture(t, sharedDomain.TierAP)
	ctx := context.Background()
	v, _, err := f.service.CreateVideo(ctx, "", videoDomain.VideoFields{Title: "Demo", DurationSeconds: 60})
	require.NoError(t, err)
	run, _, err := f.service.RequestValidation(ctx, "", v.ID)
	require.NoError(t, err)
	require.NoError(t, f.service.FailValidation(ctx, run.ID, "source unavailable"))

	// Una entrega normal no reabre la ejecución
	same, err := f.service.ExecuteValidation(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, videoDomain.RunFailed, same.Status)

	// Act
	done, err := f.service.ExecuteValidation(sharedDomain.WithRedrive(ctx), run.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, videoDomain.RunCompleted, done.Status)
	stored, err := f.service.GetValidationRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, videoDomain.RunCompleted, stored.Status)
	assert.Empty(t, stored.Error)

	// Un segundo reenvío ya no cambia nada
	again, err := f.service.ExecuteValidation(sharedDomain.WithRedrive(ctx), run.ID)
	require.NoError(t, err)
	assert.Equal(t, videoDomain.RunCompleted, again.Status)
}

func TestRequestValidation_UnknownVideo(t *testing.T) {
	f := newFixture(t, sharedDomain.TierAP)

	_, _, err := f.service.RequestValidation(context.Background(), "", uuid.New())

	assert.ErrorIs(t, err, videoDomain.ErrVideoNotFound)
}
