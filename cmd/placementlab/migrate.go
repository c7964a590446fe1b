package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := persistence.Open(context.Background(), cfg.DBDriver, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := persistence.Migrate(db); err != nil {
			return err
		}
		log.Info("✅ Migraciones aplicadas")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
