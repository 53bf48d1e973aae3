package appfx

import (
	"github.com/keinsell/zkk/cmd/cmdsfx"
	"github.com/keinsell/zkk/internal/config/configfx"
	"github.com/keinsell/zkk/internal/embeddings/embeddingsfx"
	"github.com/keinsell/zkk/internal/indexer/indexerfx"
	"github.com/keinsell/zkk/internal/logging/loggingfx"
	"github.com/keinsell/zkk/internal/mcp/mcpfx"
	"github.com/keinsell/zkk/internal/parser/parserfx"
	"github.com/keinsell/zkk/internal/search/searchfx"
	"github.com/keinsell/zkk/internal/storage/storagefx"
	"go.uber.org/fx"
)

// Module combines all application modules
var Module = fx.Options(
	configfx.Module,
	loggingfx.Module,
	parserfx.Module,
	embeddingsfx.Module,
	storagefx.Module,
	searchfx.Module,
	indexerfx.Module,
	mcpfx.Module,
	cmdsfx.Module,
)

// Options are the values the CLI hands to the configuration module. Empty
// fields keep the file, environment or built-in defaults.
type Options struct {
	DBPath     string
	EmbedURL   string
	Project    string
	Provider   string
	LogLevel   string
	ConfigFile string
}

// Supply annotates opts as the named values configfx consumes
func Supply(opts Options) fx.Option {
	return fx.Supply(
		fx.Annotate(opts.DBPath, fx.ResultTags(`name:"dbPath"`)),
		fx.Annotate(opts.EmbedURL, fx.ResultTags(`name:"embedURL"`)),
		fx.Annotate(opts.Project, fx.ResultTags(`name:"project"`)),
		fx.Annotate(opts.Provider, fx.ResultTags(`name:"provider"`)),
		fx.Annotate(opts.LogLevel, fx.ResultTags(`name:"logLevel"`)),
		fx.Annotate(opts.ConfigFile, fx.ResultTags(`name:"configFile"`)),
	)
}

// NewAppWithConfig creates an Fx app with the given configuration values.
// extra options typically populate or invoke the command runner.
func NewAppWithConfig(opts Options, extra ...fx.Option) *fx.App {
	return fx.New(
		Module,
		loggingfx.EventLogger,
		Supply(opts),
		fx.Invoke(func(lc fx.Lifecycle, mcpLifecycle *mcpfx.Lifecycle) {
			lc.Append(fx.Hook{
				OnStart: mcpLifecycle.Start,
				OnStop:  mcpLifecycle.Stop,
			})
		}),
		fx.Options(extra...),
	)
}

// NewApp creates an Fx app with default configuration
func NewApp(extra ...fx.Option) *fx.App {
	return NewAppWithConfig(Options{}, extra...)
}
