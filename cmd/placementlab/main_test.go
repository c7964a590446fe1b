package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence"
	"github.com/davicafu/placementlab/internal/shared/infra/queue"
)

// run ejecuta el CLI con args y devuelve lo que escribió en stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dlqQueue, dlqLimit, dlqJSON = queue.FileGeneration, 50, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cli.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", path)
	t.Setenv("LOG_LEVEL", "error")
	return path
}

func openDB(t *testing.T, path string) *persistence.DB {
	t.Helper()
	db, err := persistence.Open(context.Background(), "sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// seedDeadLetter deja un mensaje de notificación en la DLQ.
func seedDeadLetter(t *testing.T, q *queue.SQLQueue) queue.DeadLetter {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, q.Send(ctx, queue.Notification, uuid.New(), "placement.created", []byte(`{}`)))
	msgs, err := q.Receive(ctx, queue.Notification, 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	dl, err := q.DeadLetter(ctx, msgs[0], errors.New("webhook down"))
	require.NoError(t, err)
	return dl
}

func TestMigrateCommand_CreatesSchema(t *testing.T) {
	// Arrange
	path := setupEnv(t)

	// Act
	_, err := run(t, "migrate")

	// Assert
	require.NoError(t, err)
	depth, err := queue.NewSQLQueue(openDB(t, path)).Depth(context.Background(), queue.Notification)
	require.NoError(t, err)
	assert.Zero(t, depth)

	// Volver a migrar no hace nada
	_, err = run(t, "migrate")
	assert.NoError(t, err)
}

func TestDLQCommands_ListAndRedrive(t *testing.T) {
	// Arrange
	path := setupEnv(t)
	_, err := run(t, "migrate")
	require.NoError(t, err)
	q := queue.NewSQLQueue(openDB(t, path))
	dl := seedDeadLetter(t, q)

	// Act
	listed, err := run(t, "dlq", "list", "--queue", queue.Notification, "--json")
	require.NoError(t, err)
	table, err := run(t, "dlq", "list", "--queue", queue.Notification)
	require.NoError(t, err)
	redriven, err := run(t, "dlq", "redrive", dl.ID.String())
	require.NoError(t, err)

	// Assert
	var letters []queue.DeadLetter
	require.NoError(t, json.Unmarshal([]byte(listed), &letters))
	require.Len(t, letters, 1)
	assert.Equal(t, dl.ID, letters[0].ID)
	assert.Equal(t, "webhook down", letters[0].Error)
	assert.Contains(t, table, dl.ID.String())
	assert.Contains(t, table, "EVENT TYPE")
	assert.Contains(t, redriven, dl.EventID.String())

	depth, err := q.Depth(context.Background(), queue.Notification)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
}

func TestDLQRedrive_RejectsBadIDAndUnknownLetter(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "migrate")
	require.NoError(t, err)

	_, err = run(t, "dlq", "redrive", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid dead letter id")

	_, err = run(t, "dlq", "redrive", uuid.NewString())
	assert.Error(t, err)
}
