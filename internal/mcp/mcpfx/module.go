package mcpfx

import (
	"context"
	"fmt"

	"github.com/keinsell/zkk/internal/config/configfx"
	"github.com/keinsell/zkk/internal/indexer"
	appmcp "github.com/keinsell/zkk/internal/mcp"
	"github.com/keinsell/zkk/internal/search"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params represents dependencies for MCP server
type Params struct {
	fx.In

	SearchService *search.Service
	Indexer       indexer.Indexer
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(params Params) *server.MCPServer {
	return appmcp.New(params.SearchService, params.Indexer)
}

// Lifecycle manages MCP server lifecycle
type Lifecycle struct {
	indexer indexer.Indexer
	config  *configfx.Config
	logger  *zap.Logger
}

// NewLifecycle creates a new MCP lifecycle manager
func NewLifecycle(
	indexer indexer.Indexer,
	config *configfx.Config,
	logger *zap.Logger,
) *Lifecycle {
	return &Lifecycle{
		indexer: indexer,
		config:  config,
		logger:  logger,
	}
}

// Start pre-indexes the configured project, if any
func (m *Lifecycle) Start(ctx context.Context) error {
	if m.config.Project == "" {
		return nil
	}
	res, err := m.indexer.IndexProject(ctx, m.config.Project)
	if err != nil {
		return fmt.Errorf("pre-index project failed: %w", err)
	}
	m.logger.Info("project pre-indexed",
		zap.String("root", m.config.Project),
		zap.Int("total", res.Total),
		zap.Int("failed", res.Failed),
	)
	return nil
}

// Stop handles graceful shutdown
func (m *Lifecycle) Stop(context.Context) error {
	return nil
}

// Module provides MCP server components
var Module = fx.Module("mcp",
	fx.Provide(
		NewMCPServer,
		NewLifecycle,
	),
)
