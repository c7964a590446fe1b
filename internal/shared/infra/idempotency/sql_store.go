package idempotency

import (
	"context"
	"fmt"
	"time"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence"
	"github.com/google/uuid"
)

// SQLStore guarda las claves en la tabla idempotency_keys.
// La reserva es un único upsert condicional: sólo gana quien inserta la fila
// o quien encuentra una reserva expirada.
type SQLStore struct {
	db        *persistence.DB
	retention time.Duration
	now       func() time.Time
}

func NewSQLStore(db *persistence.DB, retention time.Duration) *SQLStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &SQLStore{db: db, retention: retention, now: time.Now}
}

func (s *SQLStore) CheckAndReserve(ctx context.Context, key string, lease time.Duration) (Reservation, error) {
	now := s.now()
	nowMs := persistence.Millis(now)
	token := uuid.NewString()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO idempotency_keys (idem_key, status, result, owner, locked_until, expires_at, created_at, updated_at)
		 VALUES (?, 'in_progress', NULL, ?, ?, ?, ?, ?)
		 ON CONFLICT (idem_key) DO UPDATE SET
		     status = 'in_progress',
		     result = NULL,
		     owner = excluded.owner,
		     locked_until = excluded.locked_until,
		     expires_at = excluded.expires_at,
		     updated_at = excluded.updated_at
		 WHERE idempotency_keys.expires_at <= ?
		    OR (idempotency_keys.status = 'in_progress' AND idempotency_keys.locked_until <= ?)`,
		key, token, persistence.Millis(now.Add(lease)), persistence.Millis(now.Add(s.retention)), now.UTC(), now.UTC(),
		nowMs, nowMs,
	)
	if err != nil {
		return Reservation{}, sharedDomain.Transient("idempotency.reserve", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return Reservation{}, fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows == 1 {
		return Reservation{Key: key, Status: StatusNew, Token: token}, nil
	}

	var status string
	var result []byte
	err = s.db.QueryRowContext(ctx,
		`SELECT status, result FROM idempotency_keys WHERE idem_key = ?`, key,
	).Scan(&status, &result)
	if persistence.IsNoRows(err) {
		// Purgada entre las dos sentencias: otro intento la volverá a reservar.
		return Reservation{Key: key, Status: StatusInProgress}, sharedDomain.ErrAlreadyProcessing
	}
	if err != nil {
		return Reservation{}, sharedDomain.Transient("idempotency.read", err)
	}

	if Status(status) == StatusCompleted {
		return Reservation{Key: key, Status: StatusCompleted, Result: result}, nil
	}
	return Reservation{Key: key, Status: StatusInProgress}, sharedDomain.ErrAlreadyProcessing
}

func (s *SQLStore) Complete(ctx context.Context, key, token string, result []byte) error {
	now := s.now()
	var stored interface{}
	if result != nil {
		stored = string(result)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE idempotency_keys SET status = 'completed', result = ?, locked_until = 0, expires_at = ?, updated_at = ?
		 WHERE idem_key = ? AND owner = ? AND status = 'in_progress'`,
		stored, persistence.Millis(now.Add(s.retention)), now.UTC(), key, token,
	)
	if err != nil {
		return sharedDomain.Transient("idempotency.complete", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrReservationLost, key)
	}
	return nil
}

func (s *SQLStore) Release(ctx context.Context, key, token string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE idem_key = ? AND owner = ? AND status = 'in_progress'`, key, token,
	)
	if err != nil {
		return sharedDomain.Transient("idempotency.release", err)
	}
	return nil
}

func (s *SQLStore) Expire(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE expires_at <= ?`, persistence.Millis(s.now()),
	)
	if err != nil {
		return 0, sharedDomain.Transient("idempotency.expire", err)
	}
	return res.RowsAffected()
}

var _ Store = (*SQLStore)(nil)
