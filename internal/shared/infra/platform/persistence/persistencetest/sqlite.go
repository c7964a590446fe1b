// Package persistencetest abre bases de datos SQLite migradas para los tests.
package persistencetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence"
	"github.com/stretchr/testify/require"
)

// OpenSQLite crea una base de datos en un directorio temporal con el esquema aplicado.
func OpenSQLite(t *testing.T) *persistence.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "placementlab_test.db")
	db, err := persistence.Open(context.Background(), "sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, persistence.Migrate(db))
	return db
}
