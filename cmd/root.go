package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mercadototal/cvm-ingest/internal/config"
	"github.com/mercadototal/cvm-ingest/internal/ingest"
)

// Exit codes.
const (
	exitOK      = 0
	exitFatal   = 1
	exitInvalid = 2
)

var errUsage = eris.New("invalid arguments")

var cfg *config.Config

var (
	runYear    int
	runCVMCode int
)

var rootCmd = &cobra.Command{
	Use:   "cvm-ingest <task>",
	Short: "Brazilian CVM open-data ingestion",
	Long: "Downloads the regulator's open-data archives, normalizes them and loads a Postgres warehouse " +
		"of filings, statements and corporate events. Tasks: " + taskNames() + ".",
	Args:          taskArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		task, err := ingest.ParseTask(args[0])
		if err != nil {
			return err
		}
		return runTask(ctx, cmd.OutOrStdout(), ingest.RunOptions{Task: task, Year: runYear, CVMCode: runCVMCode})
	},
}

func taskNames() string {
	names := make([]string, 0, len(ingest.Tasks()))
	for _, t := range ingest.Tasks() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func taskArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return eris.Wrapf(errUsage, "expected one task (%s), got %d arguments", taskNames(), len(args))
	}
	return nil
}

func init() {
	rootCmd.Flags().IntVar(&runYear, "year", 0, "ingest a single year instead of the task's range")
	rootCmd.Flags().IntVar(&runCVMCode, "cvm-code", 0, "regulator code of the company (company-deep-dive)")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return eris.Wrap(errUsage, err.Error())
	})
}

// exitCode maps a command error onto the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage), ingest.IsInvalid(err):
		return exitInvalid
	}
	return exitFatal
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode(err))
}
