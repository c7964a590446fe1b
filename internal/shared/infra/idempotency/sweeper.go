package idempotency

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper purga periódicamente las claves fuera de la ventana de retención.
type Sweeper struct {
	store    Store
	interval time.Duration
	log      *zap.Logger
}

func NewSweeper(store Store, interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{store: store, interval: interval, log: log}
}

// Serve implementa suture.Service.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("🧹 Idempotency sweeper iniciado", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("🛑 Idempotency sweeper detenido")
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *Sweeper) Sweep(ctx context.Context) {
	n, err := s.store.Expire(ctx)
	if err != nil {
		s.log.Warn("Idempotency expiry failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("Expired idempotency keys", zap.Int64("count", n))
	}
}

func (s *Sweeper) String() string { return "idempotency-sweeper" }
