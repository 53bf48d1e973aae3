package commands

import (
	"context"
	"fmt"

	"github.com/keinsell/zkk/cmd/cmdsfx"
	"github.com/keinsell/zkk/internal/app/appfx"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// globalFlags are shared by every command and end up in configfx.Config
type globalFlags struct {
	db         string
	embedURL   string
	provider   string
	configFile string
	logLevel   string
}

func (g *globalFlags) options(project string) appfx.Options {
	return appfx.Options{
		DBPath:     g.db,
		EmbedURL:   g.embedURL,
		Project:    project,
		Provider:   g.provider,
		LogLevel:   g.logLevel,
		ConfigFile: g.configFile,
	}
}

// args re-creates the flags for a child process
func (g *globalFlags) args() []string {
	var out []string
	add := func(name, v string) {
		if v != "" {
			out = append(out, "--"+name, v)
		}
	}
	add("db", g.db)
	add("embed-url", g.embedURL)
	add("provider", g.provider)
	add("config", g.configFile)
	add("log-level", g.logLevel)
	return out
}

// NewRootCommand assembles the zkk command tree
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "zkk",
		Short:         "Index and query a markdown knowledge base",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.db, "db", "d", "", "SQLite database path (default .zkk/index.db)")
	pf.StringVar(&g.embedURL, "embed-url", "", "embedding API URL")
	pf.StringVar(&g.provider, "provider", "", "embedding provider (api, openai, local)")
	pf.StringVarP(&g.configFile, "config", "c", "", "YAML config file")
	pf.StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newIndexCommand(g),
		newReindexCommand(g),
		newSearchCommand(g),
		newLinksCommand(g),
		newOrphansCommand(g),
		newConceptsCommand(g),
		newStatsCommand(g),
		newMCPServeCommand(g),
		newMCPClientCommand(g),
	)
	return root
}

// withRunner starts the application, hands its command runner to fn and
// stops the application afterwards.
func withRunner(
	cmd *cobra.Command,
	g *globalFlags,
	project string,
	fn func(ctx context.Context, r *cmdsfx.CommandRunner) error,
) error {
	var runner *cmdsfx.CommandRunner
	return withApp(cmd, g, project, func(ctx context.Context) error {
		return fn(ctx, runner)
	}, fx.Populate(&runner))
}

func withServer(
	cmd *cobra.Command,
	g *globalFlags,
	project string,
	fn func(ctx context.Context, s *server.MCPServer) error,
) error {
	var s *server.MCPServer
	return withApp(cmd, g, project, func(ctx context.Context) error {
		return fn(ctx, s)
	}, fx.Populate(&s))
}

func withApp(
	cmd *cobra.Command,
	g *globalFlags,
	project string,
	fn func(ctx context.Context) error,
	opts ...fx.Option,
) error {
	app := appfx.NewAppWithConfig(g.options(project), opts...)
	if err := app.Err(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	runErr := fn(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop application: %w", err)
	}
	return runErr
}
