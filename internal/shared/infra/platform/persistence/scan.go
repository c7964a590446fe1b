package persistence

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"
)

var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Timestamp escanea instantes que pueden llegar como time.Time o como texto.
// SQLite devuelve texto cuando no conoce el tipo declarado de la columna (RETURNING, expresiones).
type Timestamp struct {
	Time  time.Time
	Valid bool
}

func (t *Timestamp) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	}
	return fmt.Errorf("unsupported timestamp type %T", src)
}

func (t *Timestamp) parse(s string) error {
	for _, layout := range sqliteTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("cannot parse timestamp %q", s)
}

// Value permite usar Timestamp como argumento.
func (t Timestamp) Value() (driver.Value, error) {
	if !t.Valid {
		return nil, nil
	}
	return t.Time, nil
}

// Ptr devuelve nil si el valor es NULL.
func (t Timestamp) Ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// NullTime convierte un *time.Time opcional en argumento SQL.
func NullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// Millis codifica instantes de planificación (visibilidad, leases, expiraciones) como enteros,
// comparables igual en ambos dialectos.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis es la inversa de Millis.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// IsNoRows informa si err es sql.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
