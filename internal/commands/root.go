package commands

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrecon/internal/app"
	"github.com/cleared-dev/bankrecon/internal/buildinfo"
	"github.com/cleared-dev/bankrecon/internal/config"
	"github.com/cleared-dev/bankrecon/internal/logging"
)

// buildFunc assembles the application for a command run.
type buildFunc func(ctx context.Context, cfg *config.Config, logger *log.Logger) (*app.App, error)

// runtime carries what every subcommand needs from the root.
type runtime struct {
	configPath string
	build      buildFunc
}

// load reads the configuration with cmd's flags applied and returns a logger
// writing to the command's stderr.
func (rt *runtime) load(cmd *cobra.Command) (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(rt.configPath, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.NewWriter(cmd.ErrOrStderr(), cfg.Log.Level, "bankrecon"), nil
}

// open loads the configuration and builds the application.
func (rt *runtime) open(cmd *cobra.Command) (*app.App, error) {
	cfg, logger, err := rt.load(cmd)
	if err != nil {
		return nil, err
	}
	return rt.build(cmd.Context(), cfg, logger)
}

// openPersistent is open for commands whose results must outlive the
// process. The memory driver would drop them on exit.
func (rt *runtime) openPersistent(cmd *cobra.Command) (*app.App, error) {
	a, err := rt.open(cmd)
	if err != nil {
		return nil, err
	}
	if a.Ephemeral {
		a.Close()
		return nil, fmt.Errorf("%s needs a persistent store: the %s driver keeps nothing after the command exits (set store.driver to %s or %s)",
			cmd.CommandPath(), a.Config.Store.Driver, config.DriverPostgres, config.DriverRemote)
	}
	return a, nil
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand(app.Build)
}

func newRootCommand(build buildFunc) *cobra.Command {
	rt := &runtime{build: build}

	rootCmd := &cobra.Command{
		Use:     "bankrecon",
		Short:   "Bank statement parsing and invoice reconciliation",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rt.configPath, "config", "", "config file (default ./"+config.FileName+" when present)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("driver", "", "store driver: memory, postgres or remote")
	pf.String("database-url", "", "Postgres connection URL")
	pf.String("remote-url", "", "base URL of a bankrecon server for the remote driver")

	rootCmd.AddCommand(
		newInitCommand(),
		newParseCommand(rt),
		newImportCommand(rt),
		newInvoicesCommand(rt),
		newEntriesCommand(rt),
		newReconcileCommand(rt),
		newServeCommand(rt),
		newMigrateCommand(rt),
	)

	return rootCmd
}
