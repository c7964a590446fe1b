package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence"
	"github.com/davicafu/placementlab/internal/shared/infra/queue"
)

var (
	dlqQueue string
	dlqLimit int
	dlqJSON  bool
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and redrive dead letters",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead letters of a queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		q, closeDB, err := openQueue(ctx)
		if err != nil {
			return err
		}
		defer closeDB()

		letters, err := q.ListDeadLetters(ctx, dlqQueue, dlqLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if dlqJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(letters)
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tQUEUE\tEVENT TYPE\tRECEIVES\tFAILED AT\tERROR")
		for _, dl := range letters {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				dl.ID, dl.Queue, dl.EventType, dl.ReceiveCount, dl.FailedAt.Format("2006-01-02 15:04:05"), dl.Error)
		}
		return w.Flush()
	},
}

var dlqRedriveCmd = &cobra.Command{
	Use:   "redrive <dead-letter-id>",
	Short: "Send a dead letter back to its queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid dead letter id %q: %w", args[0], err)
		}

		ctx := context.Background()
		q, closeDB, err := openQueue(ctx)
		if err != nil {
			return err
		}
		defer closeDB()

		msg, err := q.Redrive(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "♻️  Redriven event %s to queue %s\n", msg.EventID, msg.Queue)
		return nil
	},
}

func openQueue(ctx context.Context) (*queue.SQLQueue, func(), error) {
	db, err := persistence.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return queue.NewSQLQueue(db), func() { db.Close() }, nil
}

func init() {
	dlqListCmd.Flags().StringVar(&dlqQueue, "queue", queue.FileGeneration, "queue whose dead letters are listed")
	dlqListCmd.Flags().IntVar(&dlqLimit, "limit", 50, "maximum number of dead letters")
	dlqListCmd.Flags().BoolVar(&dlqJSON, "json", false, "print JSON instead of a table")

	dlqCmd.AddCommand(dlqListCmd, dlqRedriveCmd)
	rootCmd.AddCommand(dlqCmd)
}
