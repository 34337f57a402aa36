package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stemsi/taskbook/internal/app"
	"github.com/stemsi/taskbook/internal/config"
	"github.com/stemsi/taskbook/internal/logger"
	"github.com/stemsi/taskbook/internal/model"
)

// errCommandFailed makes exec exit non-zero after printing the reply.
var errCommandFailed = errors.New("command failed")

var (
	callerID    string
	storageRoot string
	logLevel    string

	cfg *config.Config
	log zerolog.Logger

	rootCmd = &cobra.Command{
		Use:           "taskbook",
		Short:         "Book numbered tasks in shared subjects",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.Load()
			if storageRoot != "" {
				cfg.StorageRoot = storageRoot
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			log = logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		},
	}

	execCmd = &cobra.Command{
		Use:   "exec <command> [args...]",
		Short: "Run one chat command and print the reply",
		Example: `  taskbook exec --caller 42 add math 3
  taskbook exec --caller 42 book math 2`,
		Args: cobra.MinimumNArgs(1),
		RunE: runExec,
	}

	replCmd = &cobra.Command{
		Use:   "repl",
		Short: "Read chat messages from stdin, one per line, and print each reply",
		Args:  cobra.NoArgs,
		RunE:  runRepl,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&callerID, "caller", os.Getenv("USER"), "caller ID recorded as the claimant of bookings")
	rootCmd.PersistentFlags().StringVar(&storageRoot, "root", "", "storage root for the fs backend (overrides STORAGE_ROOT)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(execCmd, replCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.Commands.Execute(ctx, model.Command{Name: args[0], Args: args[1:], CallerID: callerID})
	fmt.Fprintln(cmd.OutOrStdout(), res.Text)
	if !res.OK {
		return fmt.Errorf("%w: %s", errCommandFailed, res.Kind)
	}
	return nil
}
