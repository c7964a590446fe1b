package main

import (
	"github.com/spf13/cobra"
	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"

	"github.com/davicafu/placementlab/internal/app"
	"github.com/davicafu/placementlab/internal/shared/infra/queue"
)

var workerQueues []string

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume one or more subscriber queues",
	Example: `  placementlab worker --queue file-generation
  placementlab worker --queue notification --queue sync`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		return withContainer(ctx, func(c *app.Container) error {
			services := make([]suture.Service, 0, len(workerQueues))
			for _, q := range workerQueues {
				runner, err := c.Worker(q)
				if err != nil {
					return err
				}
				services = append(services, runner)
			}
			log.Info("👷 Starting workers", zap.Strings("queues", workerQueues))
			return serveUntilSignal(app.NewSupervisor("placementlab-worker", log, services...).Serve(ctx))
		})
	},
}

func init() {
	workerCmd.Flags().StringSliceVar(&workerQueues, "queue", queue.All(), "queues to consume")
	rootCmd.AddCommand(workerCmd)
}
