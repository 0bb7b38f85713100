// Package cli implements the mindmapctl command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"mindmap-backend/internal/config"
	"mindmap-backend/internal/di"
)

// App holds what the commands need. Open builds the full container on
// demand, so commands that only need configuration stay cheap.
type App struct {
	Config *config.Config
	Open   func(ctx context.Context, cfg *config.Config) (*di.Container, func(), error)
}

// NewApp returns an App that wires dependencies with di.InitializeContainer.
func NewApp(cfg *config.Config) *App {
	// The CLI is one-shot.
	cfg.WatchViews = false
	return &App{Config: cfg, Open: di.InitializeContainer}
}

// NewRootCmd creates the top-level "mindmapctl" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "mindmapctl",
		Short:         "Inspect and administer mind-map views",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMigrateCmd(app),
		newViewsCmd(app),
		newTreeCmd(app),
		newTokenCmd(app),
	)

	return root
}
