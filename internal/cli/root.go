// Package cli provides the recurring command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/recurring-tracker/internal/app"
	"github.com/dvloznov/recurring-tracker/internal/config"
	"github.com/dvloznov/recurring-tracker/internal/logger"
)

// commandTimeout bounds a single CLI invocation so it never hangs on a
// remote store.
const commandTimeout = 10 * time.Minute

// env is shared by the subcommands. Config is loaded before any command
// runs; the App is built on first use so commands that need no storage
// never open it.
type env struct {
	Config *config.Config
	Logger zerolog.Logger

	app *app.App
}

func (e *env) App(ctx context.Context) (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}
	a, err := app.New(ctx, e.Config, e.Logger)
	if err != nil {
		return nil, err
	}
	e.app = a
	return a, nil
}

func (e *env) close() {
	if e.app != nil {
		if err := e.app.Close(); err != nil {
			e.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
		e.app = nil
	}
}

// NewRootCmd creates the root command. Subcommands write their results to
// the command's output and log to log.
func NewRootCmd(log zerolog.Logger) *cobra.Command {
	e := &env{Logger: log}

	rootCmd := &cobra.Command{
		Use:   "recurring",
		Short: "Detect recurring payments in transaction history",
		Long: `recurring finds subscriptions, bills and loan payments in transaction
history, keeps them as obligations and reports which ones are due soon.

Transactions come from a CSV export (local file or gs:// URI) or from the
configured storage driver.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				path = os.Getenv("RECURRING_CONFIG")
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			e.Logger = e.Logger.Level(logger.ParseLevel(cfg.Log.Level))
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				e.Logger = e.Logger.Level(zerolog.DebugLevel)
			}
			e.Config = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config file (or set RECURRING_CONFIG)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newDetectCmd(e))
	rootCmd.AddCommand(newScanCmd(e))
	rootCmd.AddCommand(newObligationsCmd(e))
	rootCmd.AddCommand(newUpcomingCmd(e))
	rootCmd.AddCommand(newSyncNotionCmd(e))
	rootCmd.AddCommand(newUploadCmd(e))

	return rootCmd
}

// commandContext returns a context carrying the CLI logger and a timeout.
// The returned func also closes any storage the command opened.
func (e *env) commandContext() (context.Context, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	return logger.WithContext(ctx, e.Logger), func() {
		e.close()
		cancel()
	}
}

func requireFlag(cmd *cobra.Command, name string) (string, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return "", fmt.Errorf("--%s is required", name)
	}
	return v, nil
}
