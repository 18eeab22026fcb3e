package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mercadototal/cvm-ingest/internal/masterlist"
)

var masterlistFull bool

var masterlistCmd = &cobra.Command{
	Use:   "masterlist",
	Short: "Build or refresh the master list of companies",
	Long: "Joins the regulator registry with the annual registration forms and keeps the issuers of the curated " +
		"ticker universe. --full truncates companies, and every table that references it, before reloading.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		b, err := newBuilder(ctx, env)
		if err != nil {
			return err
		}

		mode := masterlist.Refresh
		if masterlistFull {
			mode = masterlist.Full
		}
		res, err := b.Build(ctx, mode)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Master list %s: %d companies, %d inactivated (universe %s)\n",
			res.Mode, res.Companies, res.Inactivated, res.Fingerprint)
		return nil
	},
}

func init() {
	masterlistCmd.Flags().BoolVar(&masterlistFull, "full", false, "truncate and reload instead of upserting")
	rootCmd.AddCommand(masterlistCmd)
}
