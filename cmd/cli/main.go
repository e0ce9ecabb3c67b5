package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/budget-companion/internal/config"
	"github.com/dvloznov/budget-companion/internal/logger"
)

// commandTimeout keeps a CLI run from hanging on a stuck backend.
const commandTimeout = 10 * time.Minute

// app is the state shared by every command, set up before each run.
type app struct {
	cfg *config.Config
	log zerolog.Logger
	out io.Writer
}

func main() {
	a := &app{out: os.Stdout}
	if err := newRootCmd(a).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	var logLevel, backendName, userID string

	root := &cobra.Command{
		Use:   "cli",
		Short: "Smart Budget Companion command-line tools",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.cfg = config.Load()
			if cmd.Flags().Changed("log-level") {
				a.cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("backend") {
				a.cfg.DataBackend = backendName
			}
			if cmd.Flags().Changed("user") {
				a.cfg.UserID = userID
			}
			a.log = logger.New(a.cfg.LogLevel)
			return a.cfg.Validate()
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (or set LOG_LEVEL env)")
	root.PersistentFlags().StringVar(&backendName, "backend", config.BackendSQLite, "storage backend: sqlite or bigquery (or set DATA_BACKEND env)")
	root.PersistentFlags().StringVar(&userID, "user", "001", "tenant id (or set USER_ID env)")

	root.AddCommand(
		newProcessCmd(a),
		newEnqueueCmd(a),
		newCategoriesCmd(a),
		newReviewCmd(a),
		newArchiveCmd(a),
		newSyncNotionCmd(a),
		newMigrateCmd(a),
	)
	return root
}

// context returns a command context carrying the logger.
func (a *app) newContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	return logger.WithContext(ctx, a.log), cancel
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("printJSON: %w", err)
	}
	return nil
}
