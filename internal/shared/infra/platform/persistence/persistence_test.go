package persistence_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence"
	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence/persistencetest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := `SELECT * FROM t WHERE a = ? AND b = '?' AND c = ?`

	assert.Equal(t, q, persistence.Rebind(persistence.DialectSQLite, q))
	assert.Equal(t, `SELECT * FROM t WHERE a = $1 AND b = '?' AND c = $2`, persistence.Rebind(persistence.DialectPostgres, q))
}

func insertEvent(t *testing.T, db *persistence.DB, evt sharedDomain.OutboxEvent) {
	t.Helper()
	err := persistence.WithTx(context.Background(), db, func(tx *persistence.Tx) error {
		return persistence.InsertOutboxTx(context.Background(), tx, evt)
	})
	require.NoError(t, err)
}

func newEvent(aggregateID string) sharedDomain.OutboxEvent {
	evt := sharedDomain.NewOutboxEvent(context.Background(), "placement", aggregateID, "com.nedlia.placement.created",
		map[string]interface{}{"id": aggregateID})
	return evt
}

func TestOutboxRepo_FetchClaimsAndMarks(t *testing.T) {
	// Arrange
	db := persistencetest.OpenSQLite(t)
	repo := persistence.NewOutboxRepo(db)
	ctx := context.Background()

	first := newEvent("agg-1")
	second := newEvent("agg-2")
	insertEvent(t, db, first)
	insertEvent(t, db, second)

	// Act
	claimed, err := repo.FetchPendingOutbox(ctx, 10, time.Minute)
	require.NoError(t, err)

	// Assert: orden de inserción y filas reclamadas
	require.Len(t, claimed, 2)
	assert.Equal(t, first.ID, claimed[0].ID)
	assert.Equal(t, second.ID, claimed[1].ID)
	assert.JSONEq(t, `{"id":"agg-1"}`, string(claimed[0].Payload.(json.RawMessage)))
	assert.Equal(t, first.CorrelationID, claimed[0].CorrelationID)

	again, err := repo.FetchPendingOutbox(ctx, 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again, "las filas reclamadas no se reparten dos veces durante el lease")

	require.NoError(t, repo.MarkOutboxProcessed(ctx, first.ID))
	pending, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}

func TestOutboxRepo_FailureDefersRetry(t *testing.T) {
	db := persistencetest.OpenSQLite(t)
	repo := persistence.NewOutboxRepo(db)
	ctx := context.Background()
	evt := newEvent("agg-1")
	insertEvent(t, db, evt)

	_, err := repo.FetchPendingOutbox(ctx, 10, 0)
	require.NoError(t, err)

	require.NoError(t, repo.RecordOutboxFailure(ctx, evt.ID, errors.New("broker down"), time.Now().Add(time.Hour)))
	deferred, err := repo.FetchPendingOutbox(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, deferred)

	require.NoError(t, repo.RecordOutboxFailure(ctx, evt.ID, errors.New("broker down"), time.Now().Add(-time.Second)))
	retried, err := repo.FetchPendingOutbox(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, retried, 1)
	assert.Equal(t, 2, retried[0].Attempts)
}

func TestOutboxRepo_PurgeKeepsAuditLog(t *testing.T) {
	db := persistencetest.OpenSQLite(t)
	repo := persistence.NewOutboxRepo(db)
	logRepo := persistence.NewEventLogRepo(db)
	ctx := context.Background()
	evt := newEvent("agg-1")
	insertEvent(t, db, evt)
	require.NoError(t, repo.MarkOutboxProcessed(ctx, evt.ID))

	purged, err := repo.PurgeProcessed(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	logged, err := logRepo.ListByAggregate(ctx, "agg-1", 10)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, evt.ID, logged[0].ID)
}

func TestWithTx_RollbackDiscardsOutbox(t *testing.T) {
	db := persistencetest.OpenSQLite(t)
	ctx := context.Background()

	err := persistence.WithTx(ctx, db, func(tx *persistence.Tx) error {
		if err := persistence.InsertOutboxTx(ctx, tx, newEvent("agg-1")); err != nil {
			return err
		}
		return errors.New("aggregate write failed")
	})
	require.Error(t, err)

	pending, err := persistence.NewOutboxRepo(db).CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending, "ningún evento sin su mutación confirmada")
}

func TestExecVersioned(t *testing.T) {
	db := persistencetest.OpenSQLite(t)
	ctx := context.Background()
	id := uuid.NewString()
	now := sharedDomain.Now()
	_, err := db.ExecContext(ctx,
		`INSERT INTO videos (id, title, duration_seconds, status, version, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, "demo", 120.0, "draft", 5, now, now)
	require.NoError(t, err)

	// La primera escritura con la versión actual gana
	require.NoError(t, persistence.ExecVersioned(ctx, db, "videos", id, 5, "title = ?", "v6"))

	// La segunda con la misma versión de partida pierde
	err = persistence.ExecVersioned(ctx, db, "videos", id, 5, "title = ?", "stale")
	assert.ErrorIs(t, err, sharedDomain.ErrConcurrentModification)

	err = persistence.ExecVersioned(ctx, db, "videos", uuid.NewString(), 1, "title = ?", "ghost")
	assert.ErrorIs(t, err, persistence.ErrRowNotFound)

	var version int
	var title string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT version, title FROM videos WHERE id = ?`, id).Scan(&version, &title))
	assert.Equal(t, 6, version)
	assert.Equal(t, "v6", title)
}

// newMockDB crea una base de datos sqlmock con verificación automática de expectativas.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func TestExecVersioned_PostgresPlaceholders(t *testing.T) {
	sqlDB, mock := newMockDB(t)
	db := persistence.Wrap(sqlDB, persistence.DialectPostgres)

	mock.ExpectExec(`UPDATE placements SET status = \$1, version = version \+ 1 WHERE id = \$2 AND version = \$3 AND deleted_at IS NULL`).
		WithArgs("active", "p-1", 3).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM placements WHERE id = \$1 AND deleted_at IS NULL`).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(4))

	err := persistence.ExecVersioned(context.Background(), db, "placements", "p-1", 3, "status = ?", "active")

	assert.ErrorIs(t, err, sharedDomain.ErrConcurrentModification)
}

func TestOutboxRepo_PostgresUsesSkipLocked(t *testing.T) {
	sqlDB, mock := newMockDB(t)
	repo := persistence.NewOutboxRepo(persistence.Wrap(sqlDB, persistence.DialectPostgres))
	id := uuid.New()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 5).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "id", "aggregate_type", "aggregate_id", "event_type", "payload", "correlation_id", "created_at", "attempts"}).
			AddRow(int64(7), id.String(), "placement", "p-1", "com.nedlia.placement.created", []byte(`{}`), "corr", created, 0))

	events, err := repo.FetchPendingOutbox(context.Background(), 5, time.Minute)

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
	assert.Equal(t, int64(7), events[0].Seq)
	assert.True(t, created.Equal(events[0].CreatedAt))
}
