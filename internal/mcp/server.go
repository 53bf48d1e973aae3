package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/keinsell/zkk/internal/indexer"
	"github.com/keinsell/zkk/internal/search"
	"github.com/keinsell/zkk/internal/storage"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName    = "zkk/mcp"
	serverVersion = "0.1.0"
)

// Server holds the collaborators behind the MCP tools. Either may be nil, in
// which case the tools depending on it report an error.
type Server struct {
	search  *search.Service
	indexer indexer.Indexer
}

// New returns an MCP server exposing knowledge-base query tools, plus an
// index tool when idx is not nil.
func New(svc *search.Service, idx indexer.Indexer) *server.MCPServer {
	srv := &Server{search: svc, indexer: idx}
	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
	)

	s.AddTool(newSemanticSearchTool(), srv.handleSemanticSearch)
	s.AddTool(newTextSearchTool(), srv.handleTextSearch)
	s.AddTool(newConceptSearchTool(), srv.handleConceptSearch)
	s.AddTool(newDocumentConceptsTool(), srv.handleDocumentConcepts)
	s.AddTool(newGetLinksTool(), srv.handleGetLinks)
	s.AddTool(newOrphansTool(), srv.handleOrphans)
	s.AddTool(newBrokenLinksTool(), srv.handleBrokenLinks)
	s.AddTool(newStatsTool(), srv.handleStats)
	if idx != nil {
		s.AddTool(newIndexTool(), srv.handleIndex)
	}
	return s
}

// Tool definitions
func newSemanticSearchTool() mcp.Tool {
	return mcp.NewTool(
		"semantic_search",
		mcp.WithDescription("Semantic search over the knowledge base by natural language query"),
		mcp.WithString("query", mcp.Description("Natural language query"), mcp.Required()),
		mcp.WithNumber("top_k", mcp.Description("Top K results"), mcp.DefaultNumber(5)),
		mcp.WithNumber("threshold", mcp.Description("Minimum cosine similarity"), mcp.DefaultNumber(0.1)),
	)
}

func newTextSearchTool() mcp.Tool {
	return mcp.NewTool(
		"text_search",
		mcp.WithDescription("Exact case-insensitive substring search returning matching lines"),
		mcp.WithString("query", mcp.Description("Text to look for"), mcp.Required()),
	)
}

func newConceptSearchTool() mcp.Tool {
	return mcp.NewTool(
		"concept_search",
		mcp.WithDescription("Find documents mentioning a concept and the concepts related to it"),
		mcp.WithString("name", mcp.Description("Concept name"), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Max results"), mcp.DefaultNumber(20)),
	)
}

func newDocumentConceptsTool() mcp.Tool {
	return mcp.NewTool(
		"document_concepts",
		mcp.WithDescription("List the concepts extracted from one document"),
		mcp.WithString("path", mcp.Description("Absolute document path"), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Max results"), mcp.DefaultNumber(20)),
	)
}

func newGetLinksTool() mcp.Tool {
	return mcp.NewTool(
		"get_links",
		mcp.WithDescription("Outgoing and incoming [[links]] of a document"),
		mcp.WithString("path", mcp.Description("Absolute document path"), mcp.Required()),
	)
}

func newOrphansTool() mcp.Tool {
	return mcp.NewTool(
		"orphans",
		mcp.WithDescription("Documents no other document links to"),
	)
}

func newBrokenLinksTool() mcp.Tool {
	return mcp.NewTool(
		"broken_links",
		mcp.WithDescription("Link targets that match no document title or file name"),
	)
}

func newStatsTool() mcp.Tool {
	return mcp.NewTool(
		"kb_stats",
		mcp.WithDescription("Document, link, embedding and concept statistics"),
		mcp.WithNumber("limit", mcp.Description("Entries in top lists"), mcp.DefaultNumber(10)),
	)
}

func newIndexTool() mcp.Tool {
	return mcp.NewTool(
		"index_project",
		mcp.WithDescription("Index (or re-index) a directory of markdown documents"),
		mcp.WithString("path", mcp.Description("Directory to index"), mcp.Required()),
		mcp.WithBoolean("force", mcp.Description("Re-embed every document"), mcp.DefaultBool(false)),
	)
}

// Handlers
func (srv *Server) handleSemanticSearch(
	ctx context.Context,
	req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if srv.search == nil {
		return mcp.NewToolResultError("search service not initialized"), nil
	}
	topK := req.GetInt("top_k", 5)
	threshold := req.GetFloat("threshold", -1)

	hits, err := srv.search.Semantic(ctx, query, topK, threshold)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultStructuredOnly(map[string]any{"results": hits}), nil
}

func (srv *Server) handleTextSearch(
	ctx context.Context,
	req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if srv.search == nil {
		return mcp.NewToolResultError("search service not initialized"), nil
	}
	matches, err := srv.search.Exact(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultStructuredOnly(map[string]any{"matches": matches}), nil
}

func (srv *Server) handleConceptSearch(
	ctx context.Context,
	req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if srv.search == nil {
		return mcp.NewToolResultError("search service not initialized"), nil
	}
	report, err := srv.search.Concept(ctx, name, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultStructuredOnly(report), nil
}

func (srv *Server) handleDocumentConcepts(
	ctx context.Context,
	req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if srv.search == nil {
		return mcp.NewToolResultError("search service not initialized"), nil
	}
	list, err := srv.search.DocumentConcepts(ctx, path, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(notFound(path, err)), nil
	}
	return mcp.NewToolResultStructuredOnly(map[string]any{"path": path, "concepts": list}), nil
}

func (srv *Server) handleGetLinks(
	ctx context.Context,
	req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if srv.search == nil {
		return mcp.NewToolResultError("search service not initialized"), nil
	}
	report, err := srv.search.Links(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(notFound(path, err)), nil
	}
	return mcp.NewToolResultStructuredOnly(report), nil
}

func (srv *Server) handleOrphans(
	ctx context.Context,
	_ mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	if srv.search == nil {
		return mcp.NewToolResultError("search service not initialized"), nil
	}
	docs, err := srv.search.Orphans(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	type orphan struct {
		Path  string `json:"path"`
		Title string `json:"title"`
	}
	out := make([]orphan, len(docs))
	for i, d := range docs {
		out[i] = orphan{Path: d.Path, Title: d.Title}
	}
	return mcp.NewToolResultStructuredOnly(map[string]any{"orphans": out}), nil
}

func (srv *Server) handleBrokenLinks(
	ctx context.Context,
	_ mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	if srv.search == nil {
		return mcp.NewToolResultError("search service not initialized"), nil
	}
	targets, err := srv.search.BrokenLinks(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultStructuredOnly(map[string]any{"broken": targets}), nil
}

func (srv *Server) handleStats(
	ctx context.Context,
	req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	if srv.search == nil {
		return mcp.NewToolResultError("search service not initialized"), nil
	}
	stats, err := srv.search.Stats(ctx, req.GetInt("limit", 10))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultStructuredOnly(stats), nil
}

func (srv *Server) handleIndex(
	ctx context.Context,
	req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if srv.indexer == nil {
		return mcp.NewToolResultError("indexer not initialized"), nil
	}
	run := srv.indexer.IndexProject
	if req.GetBool("force", false) {
		run = srv.indexer.Reindex
	}
	res, err := run(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("index project failed: %v", err)), nil
	}
	warnings := make([]string, len(res.Warnings))
	for i, w := range res.Warnings {
		warnings[i] = w.Error()
	}
	return mcp.NewToolResultStructuredOnly(map[string]any{
		"total":      res.Total,
		"new":        res.New,
		"updated":    res.Updated,
		"skipped":    res.Skipped,
		"purged":     res.Purged,
		"failed":     res.Failed,
		"embeddings": res.Embeddings,
		"concepts":   res.Concepts,
		"warnings":   warnings,
	}), nil
}

func notFound(path string, err error) string {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Sprintf("document not indexed: %s", path)
	}
	return err.Error()
}
