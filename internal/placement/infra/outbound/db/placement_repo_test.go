package db

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	placementDomain "github.com/davicafu/placementlab/internal/placement/domain"
	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/domain/events"
	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence"
	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence/persistencetest"
	sharedQuery "github.com/davicafu/placementlab/internal/shared/infra/platform/query"
	videoDomain "github.com/davicafu/placementlab/internal/video/domain"
	videoDB "github.com/davicafu/placementlab/internal/video/infra/outbound/db"
)

// setupPostgresTestDB se conecta a Postgres, aplica las migraciones y limpia las tablas.
func setupPostgresTestDB(t *testing.T) *persistence.DB {
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		t.Skip("DATABASE_URL no está configurada, saltando test de integración con Postgres")
	}

	db, err := persistence.Open(context.Background(), "postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, persistence.Migrate(db))

	_, err = db.ExecContext(context.Background(), `TRUNCATE placements, validation_runs, videos, outbox, event_log`)
	require.NoError(t, err)
	return db
}

func seedVideo(t *testing.T, db *persistence.DB) uuid.UUID {
	v, err := videoDomain.NewVideo(videoDomain.VideoFields{Title: "Demo", DurationSeconds: 120})
	require.NoError(t, err)
	evt := sharedDomain.NewOutboxEvent(context.Background(), videoDomain.AggregateType, v.ID.String(), events.VideoCreated, v.ToEvent())
	require.NoError(t, videoDB.NewVideoRepoSQL(db).Create(context.Background(), v, evt))
	return v.ID
}

func newPlacement(t *testing.T, videoID uuid.UUID, start, end float64) (*placementDomain.Placement, sharedDomain.OutboxEvent) {
	p, err := placementDomain.NewPlacement(placementDomain.PlacementFields{
		VideoID:   videoID,
		ProductID: uuid.New(),
		TimeRange: placementDomain.TimeRange{StartTime: start, EndTime: end},
		Position:  &placementDomain.Position{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.4},
	})
	require.NoError(t, err)
	evt := sharedDomain.NewOutboxEvent(context.Background(), placementDomain.AggregateType, p.ID.String(), events.PlacementCreated, p.ToEvent())
	return p, evt
}

func changed(p *placementDomain.Placement, eventType string) sharedDomain.OutboxEvent {
	return sharedDomain.NewOutboxEvent(context.Background(), placementDomain.AggregateType, p.ID.String(), eventType, p.ToEvent())
}

// exerciseRepo recorre el contrato del repositorio sobre cualquier dialecto.
func exerciseRepo(t *testing.T, db *persistence.DB) {
	ctx := context.Background()
	repo := NewPlacementRepoSQL(db)
	videoID := seedVideo(t, db)

	// Crear y leer
	first, evt := newPlacement(t, videoID, 10, 20)
	require.NoError(t, repo.Create(ctx, first, evt))
	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.TimeRange, got.TimeRange)
	assert.Equal(t, first.Position, got.Position)
	assert.Equal(t, placementDomain.PlacementPending, got.Status)

	// Solape rechazado, contiguo aceptado
	overlapping, evt := newPlacement(t, videoID, 15, 25)
	err = repo.Create(ctx, overlapping, evt)
	assert.True(t, sharedDomain.IsValidation(err))
	adjacent, evt := newPlacement(t, videoID, 20, 30)
	require.NoError(t, repo.Create(ctx, adjacent, evt))

	// Versión esperada incorrecta
	first.Description = "stale"
	err = repo.Update(ctx, first, 7, changed(first, events.PlacementUpdated))
	assert.ErrorIs(t, err, sharedDomain.ErrConcurrentModification)

	// Estado del fichero
	first.AttachFile(placementDomain.FileKeyFor(first.ID, 1))
	require.NoError(t, repo.SaveFileState(ctx, first, 1, changed(first, events.PlacementFileGenerated)))
	got, err = repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, placementDomain.PlacementActive, got.Status)
	assert.Equal(t, 2, got.Version)

	// Listado filtrado por vídeo y paginado
	page, err := repo.List(ctx, placementDomain.VideoIDCriteria{ID: videoID}, sharedQuery.CursorPagination{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, page.Meta.HasMore)
	next, err := repo.List(ctx, placementDomain.VideoIDCriteria{ID: videoID}, sharedQuery.CursorPagination{Limit: 1, Cursor: page.Meta.NextCursor})
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	assert.NotEqual(t, page.Items[0].ID, next.Items[0].ID)

	// Borrado lógico
	require.NoError(t, repo.SoftDelete(ctx, adjacent.ID, 1, changed(adjacent, events.PlacementDeleted)))
	_, err = repo.GetByID(ctx, adjacent.ID)
	assert.ErrorIs(t, err, placementDomain.ErrPlacementNotFound)
}

func TestPlacementRepoSQL_SQLite(t *testing.T) {
	exerciseRepo(t, persistencetest.OpenSQLite(t))
}

func TestPlacementRepoSQL_Postgres_Integration(t *testing.T) {
	exerciseRepo(t, setupPostgresTestDB(t))
}

func TestPlacementRepoSQL_UnknownVideo(t *testing.T) {
	db := persistencetest.OpenSQLite(t)
	p, evt := newPlacement(t, uuid.New(), 0, 5)

	err := NewPlacementRepoSQL(db).Create(context.Background(), p, evt)

	assert.True(t, sharedDomain.IsValidation(err))
	assert.Contains(t, err.Error(), "video_id")
}
