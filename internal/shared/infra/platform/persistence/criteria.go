package persistence

import (
	"fmt"
	"strings"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	sharedQuery "github.com/davicafu/placementlab/internal/shared/infra/platform/query"
)

// BuildWhere traduce criterios neutrales a condiciones SQL unidas con AND.
// Los nombres de campo vienen siempre del dominio, nunca del cliente.
func BuildWhere(criteria sharedDomain.Criteria) ([]string, []interface{}) {
	if criteria == nil {
		return nil, nil
	}
	var clauses []string
	var args []interface{}
	for _, c := range criteria.ToConditions() {
		if c.Op == sharedDomain.OpIsNull {
			clauses = append(clauses, c.Field+" IS NULL")
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s %s ?", c.Field, c.Op))
		args = append(args, c.Value)
	}
	return clauses, args
}

// KeysetQuery compone un SELECT paginado por (created_at, id) ascendente.
// Pide limit+1 filas para saber si hay más páginas.
func KeysetQuery(selectFrom string, criteria sharedDomain.Criteria, cursor *sharedQuery.Cursor, limit int) (string, []interface{}) {
	clauses, args := BuildWhere(criteria)
	if cursor != nil {
		clauses = append(clauses, "(created_at > ? OR (created_at = ? AND id > ?))")
		args = append(args, cursor.CreatedAt.UTC(), cursor.CreatedAt.UTC(), cursor.ID)
	}

	query := selectFrom
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at, id LIMIT ?"
	args = append(args, limit+1)
	return query, args
}
