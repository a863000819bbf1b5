// Package cmd defines and implements the CLI commands for the harvester executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/legal-notice-harvester/internal/api"
	"github.com/JakeFAU/legal-notice-harvester/internal/app"
	"github.com/JakeFAU/legal-notice-harvester/internal/clock/system"
	"github.com/JakeFAU/legal-notice-harvester/internal/config"
	"github.com/JakeFAU/legal-notice-harvester/internal/dispatcher"
	"github.com/JakeFAU/legal-notice-harvester/internal/logging"
	"github.com/JakeFAU/legal-notice-harvester/internal/scheduler"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is the set of services commands use. *app.App satisfies it; tests
// inject their own.
type App interface {
	Close()
	Logger() *zap.Logger
	Config() config.Config
	Clock() *system.Clock
	Orchestrator() *dispatcher.Orchestrator
	NewScheduler() (*scheduler.Scheduler, error)
	NewAPIServer() *api.Server
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Collects legal notice publications from Brazilian news portals.",
		Long: `harvester crawls the legal notice sections of agorarn.com.br,
diariocomercial.com.br and diariodocomercio.com.br, keeping every publication
dated on or before a cutoff day and, optionally, whose title contains a filter.

It can serve an HTTP API, run a daily scheduler that writes one JSON snapshot
per site, or harvest a single site from the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Build the services once config is known and before RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, err := resolveApp(cmd.Context()); err == nil {
				appInstance.Close()
				_ = appInstance.Logger().Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); HARVEST_* env vars override it")

	cmd.AddCommand(
		newAPICmd(),
		newSchedulerCmd(),
		newBothCmd(),
		newRunCmd(),
		newSitesCmd(),
	)
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	if ctx == nil {
		return nil, errors.New("application services not initialized")
	}
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. It exits non-zero when a command fails.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "harvester: %v\n", err)
		stop()
		os.Exit(1)
	}
}
