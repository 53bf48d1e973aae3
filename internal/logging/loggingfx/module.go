package loggingfx

import (
	"context"

	"github.com/keinsell/zkk/internal/config/configfx"
	"github.com/keinsell/zkk/internal/logging"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewLogger builds the application logger and flushes it on shutdown.
func NewLogger(lc fx.Lifecycle, config *configfx.Config) (*zap.Logger, error) {
	logger, err := logging.New(config.LogLevel)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = logger.Sync()
			return nil
		},
	})
	return logger, nil
}

// Module provides *zap.Logger
var Module = fx.Module("logging",
	fx.Provide(NewLogger),
)

// EventLogger routes fx's own events through the application logger at
// debug level. It belongs at the top level of an app.
var EventLogger = fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
	l := &fxevent.ZapLogger{Logger: logger.Named("fx")}
	l.UseLogLevel(zap.DebugLevel)
	return l
})
