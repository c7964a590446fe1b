package query

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ---------- Tipos de filtrado / paginación / ordenamiento ----------

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// CursorPagination para paginación tipo cursor (keyset sobre created_at, id).
type CursorPagination struct {
	Limit  int
	Cursor string // opaco para el cliente, ver EncodeCursor
}

// PageMeta acompaña a cada listado paginado por cursor.
type PageMeta struct {
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// Page es un listado paginado.
type Page[T any] struct {
	Items []T
	Meta  PageMeta
}

// Cursor es la posición del último elemento devuelto.
type Cursor struct {
	CreatedAt time.Time `json:"c"`
	ID        string    `json:"i"`
}

var ErrInvalidCursor = errors.New("invalid cursor")

// EncodeCursor serializa la posición como base64 URL-safe.
func EncodeCursor(c Cursor) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor interpreta un cursor generado por EncodeCursor.
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil || c.ID == "" {
		return nil, ErrInvalidCursor
	}
	return &c, nil
}

// ClampLimit aplica el límite por defecto y el máximo.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// NewPage recorta items (pedidos con limit+1) y calcula el cursor siguiente.
func NewPage[T any](items []T, limit int, cursorOf func(T) Cursor) Page[T] {
	if items == nil {
		items = []T{}
	}
	if len(items) <= limit {
		return Page[T]{Items: items}
	}
	items = items[:limit]
	return Page[T]{
		Items: items,
		Meta: PageMeta{
			HasMore:    true,
			NextCursor: EncodeCursor(cursorOf(items[len(items)-1])),
		},
	}
}
