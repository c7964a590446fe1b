package main

import (
	"github.com/spf13/cobra"
	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"

	"github.com/davicafu/placementlab/internal/app"
	"github.com/davicafu/placementlab/internal/shared/infra/queue"
)

var (
	serveWithWorkers bool
	serveWithRelay   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (and, by default, the relayer and every worker)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		return withContainer(ctx, func(c *app.Container) error {
			services := []suture.Service{c.HTTPServer(), c.Sweeper()}
			if serveWithRelay {
				services = append(services, c.Relayer, c.BusConsumer())
			}
			if serveWithWorkers {
				for _, q := range queue.All() {
					runner, err := c.Worker(q)
					if err != nil {
						return err
					}
					services = append(services, runner)
				}
			}

			log.Info("🚀 Starting placementlab",
				zap.String("bus", cfg.EventBus),
				zap.Bool("relay", serveWithRelay),
				zap.Bool("workers", serveWithWorkers))
			return serveUntilSignal(app.NewSupervisor("placementlab", log, services...).Serve(ctx))
		})
	},
}

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run only the outbox relayer and the dispatcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		return withContainer(ctx, func(c *app.Container) error {
			return serveUntilSignal(app.NewSupervisor("placementlab-relay", log, c.Relayer, c.BusConsumer()).Serve(ctx))
		})
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveWithWorkers, "workers", true, "run the queue workers in this process")
	serveCmd.Flags().BoolVar(&serveWithRelay, "relay", true, "run the outbox relayer in this process")
	rootCmd.AddCommand(serveCmd, relayCmd)
}
