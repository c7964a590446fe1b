package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"
)

// HTTPService adapta http.Server al ciclo de vida de suture.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
	log             *zap.Logger
}

func NewHTTPService(server *http.Server, shutdownTimeout time.Duration, log *zap.Logger) *HTTPService {
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout, log: log}
}

// Serve arranca el servidor y lo apaga de forma ordenada cuando ctx se cancela.
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		h.log.Info("🚀 Server running", zap.String("addr", h.server.Addr))
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		h.log.Info("🛑 Server stopped")
		return ctx.Err()
	}
}

func (h *HTTPService) String() string { return "http-server" }

// NewSupervisor crea el árbol de supervisión con los servicios no nulos.
func NewSupervisor(name string, log *zap.Logger, services ...suture.Service) *suture.Supervisor {
	sup := suture.New(name, suture.Spec{
		EventHook: func(e suture.Event) {
			log.Warn("Supervisor event", zap.String("event", e.String()), zap.Any("details", e.Map()))
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
	for _, svc := range services {
		if svc != nil {
			sup.Add(svc)
		}
	}
	return sup
}
