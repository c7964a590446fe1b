package persistence

import (
	"context"
	"errors"
	"fmt"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
)

// ErrRowNotFound indica que el agregado no existe o está borrado lógicamente.
var ErrRowNotFound = errors.New("row not found")

// ExecVersioned aplica un UPDATE condicionado a la versión esperada e incrementa version en uno.
// Si no afecta a ninguna fila distingue entre agregado inexistente (ErrRowNotFound)
// y versión obsoleta (sharedDomain.ErrConcurrentModification). No se retienen bloqueos:
// el conflicto se detecta en la escritura.
func ExecVersioned(ctx context.Context, q Querier, table, id string, expected int, set string, args ...interface{}) error {
	query := fmt.Sprintf(
		`UPDATE %s SET %s, version = version + 1 WHERE id = ? AND version = ? AND deleted_at IS NULL`,
		table, set,
	)
	res, err := q.ExecContext(ctx, query, append(args, id, expected)...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows == 1 {
		return nil
	}

	var current int
	err = q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT version FROM %s WHERE id = ? AND deleted_at IS NULL`, table), id,
	).Scan(&current)
	if IsNoRows(err) {
		return ErrRowNotFound
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return fmt.Errorf("%w: %s %s expected version %d, current %d",
		sharedDomain.ErrConcurrentModification, table, id, expected, current)
}
