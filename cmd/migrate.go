package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mercadototal/cvm-ingest/internal/migrate"
	"github.com/mercadototal/cvm-ingest/internal/warehouse"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema evolution",
	Long:  "Creates missing tables, adds missing columns, widens narrower ones and applies pending SQL migrations. Columns are never dropped.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		res, err := migrate.Run(ctx, pool, warehouse.Tables)
		if err != nil {
			return eris.Wrap(err, "migrate")
		}

		zap.L().Info("schema up to date",
			zap.Int("tables_created", res.Created),
			zap.Int("columns_added", res.Added),
			zap.Int("columns_widened", res.Widened),
			zap.Strings("migrations", res.Migrations),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
