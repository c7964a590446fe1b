package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/davicafu/placementlab/internal/app"
	"github.com/davicafu/placementlab/internal/config"
	"github.com/davicafu/placementlab/pkg/logger"
)

var (
	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "placementlab",
	Short:         "Event-driven placement lifecycle engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.LoadConfig(); err != nil {
			return err
		}
		if err := logger.Init(cfg.LogLevel); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		log = logger.Logger()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync() // flush buffers al salir
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// signalContext se cancela con SIGINT o SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// withContainer construye el contenedor, ejecuta fn y libera las conexiones.
func withContainer(ctx context.Context, fn func(c *app.Container) error) error {
	c, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Warn("Error closing resources", zap.Error(err))
		}
	}()
	return fn(c)
}

// serveUntilSignal ignora la cancelación por señal: es el apagado normal.
func serveUntilSignal(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
