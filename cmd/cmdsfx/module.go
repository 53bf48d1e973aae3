package cmdsfx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/keinsell/zkk/internal/config/configfx"
	"github.com/keinsell/zkk/internal/indexer"
	"github.com/keinsell/zkk/internal/models"
	"github.com/keinsell/zkk/internal/search"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/fx"
)

// CommandRunner provides methods to run different application commands
type CommandRunner struct {
	config        *configfx.Config
	searchService *search.Service
	indexer       indexer.Indexer
	mcpServer     *server.MCPServer

	out    io.Writer
	status io.Writer
}

// Params represents dependencies for command runner
type Params struct {
	fx.In

	Config        *configfx.Config
	SearchService *search.Service   `optional:"true"`
	Indexer       indexer.Indexer   `optional:"true"`
	MCPServer     *server.MCPServer `optional:"true"`
}

// NewCommandRunner creates a new command runner
func NewCommandRunner(params Params) *CommandRunner {
	return &CommandRunner{
		config:        params.Config,
		searchService: params.SearchService,
		indexer:       params.Indexer,
		mcpServer:     params.MCPServer,
		out:           os.Stdout,
		status:        os.Stderr,
	}
}

// SetOutput redirects results and progress, mostly for tests
func (r *CommandRunner) SetOutput(out, status io.Writer) {
	r.out, r.status = out, status
}

// RunIndex indexes root, printing progress as it goes. force re-embeds every
// document.
func (r *CommandRunner) RunIndex(ctx context.Context, root string, force bool) error {
	if r.indexer == nil {
		return fmt.Errorf("indexer not available")
	}

	progCh, errCh := r.indexer.IndexProjectProgress(ctx, root, force)
	var last models.ProgressEvent
	for progCh != nil || errCh != nil {
		select {
		case p, ok := <-progCh:
			if !ok {
				progCh = nil
				continue
			}
			last = p
			r.printProgress(p)
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				_, _ = fmt.Fprintln(r.status)
				return err
			}
		case <-ctx.Done():
			_, _ = fmt.Fprintln(r.status)
			return ctx.Err()
		}
	}
	_, _ = fmt.Fprintln(r.status)
	if last.Phase == models.PhaseIndexComplete {
		_, _ = fmt.Fprintln(r.out, last.Message)
	}
	return nil
}

func (r *CommandRunner) printProgress(p models.ProgressEvent) {
	switch p.Phase {
	case models.PhaseDocumentError, models.PhaseEmbeddingError,
		models.PhaseConceptExtractionError, models.PhaseModelFallback:
		_, _ = fmt.Fprintf(r.status, "\n%s %s: %s\n", p.Phase, p.Path, p.Message)
		return
	}
	pct := 0.0
	if p.Percent != nil {
		pct = *p.Percent
	}
	_, _ = fmt.Fprintf(r.status, "\r[%3.0f%%] %-22s %-40s", pct, p.Phase, shorten(p.Path, 40))
}

// RunSearch runs an exact line search, or a semantic search when exact is
// false. Non-positive topK and negative threshold use configured defaults.
func (r *CommandRunner) RunSearch(
	ctx context.Context,
	query string,
	exact bool,
	topK int,
	threshold float64,
) error {
	if r.searchService == nil {
		return fmt.Errorf("search service not available")
	}

	if exact {
		matches, err := r.searchService.Exact(ctx, query)
		if err != nil {
			return err
		}
		for _, m := range matches {
			_, _ = fmt.Fprintf(r.out, "%s:%d: %s\n", m.Path, m.Line, strings.TrimSpace(m.Text))
		}
		return nil
	}

	hits, err := r.searchService.Semantic(ctx, query, topK, threshold)
	if err != nil {
		return err
	}
	for i, hit := range hits {
		_, _ = fmt.Fprintf(r.out, "Result %d (similarity: %.4f):\n", i+1, hit.Similarity)
		_, _ = fmt.Fprintf(r.out, "File: %s (%s) chunk %d\n", hit.Path, hit.Title, hit.ChunkIndex)
		_, _ = fmt.Fprintf(r.out, "Content: %s\n\n", excerpt(hit.Content, 300))
	}
	return nil
}

// RunLinks prints the outgoing and incoming links of one document
func (r *CommandRunner) RunLinks(ctx context.Context, path string) error {
	if r.searchService == nil {
		return fmt.Errorf("search service not available")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	report, err := r.searchService.Links(ctx, abs)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(r.out, "%s (%s)\n", report.Path, report.Title)
	_, _ = fmt.Fprintf(r.out, "Outgoing (%d):\n", len(report.Outgoing))
	for _, l := range report.Outgoing {
		mark := "ok"
		if !l.Exists {
			mark = "broken"
		}
		_, _ = fmt.Fprintf(r.out, "  [[%s]] line %d %s\n", l.Target, l.Line, mark)
	}
	_, _ = fmt.Fprintf(r.out, "Incoming (%d):\n", len(report.Incoming))
	for _, l := range report.Incoming {
		_, _ = fmt.Fprintf(r.out, "  %s line %d\n", l.Path, l.Line)
	}
	return nil
}

// RunOrphans prints documents nothing links to, and broken targets when
// broken is set.
func (r *CommandRunner) RunOrphans(ctx context.Context, broken bool) error {
	if r.searchService == nil {
		return fmt.Errorf("search service not available")
	}
	if broken {
		targets, err := r.searchService.BrokenLinks(ctx)
		if err != nil {
			return err
		}
		for _, t := range targets {
			_, _ = fmt.Fprintf(r.out, "[[%s]]\n", t)
		}
		return nil
	}
	docs, err := r.searchService.Orphans(ctx)
	if err != nil {
		return err
	}
	for _, d := range docs {
		_, _ = fmt.Fprintf(r.out, "%s (%s)\n", d.Path, d.Title)
	}
	return nil
}

// RunConcepts looks up a concept by name, or lists the concepts of a
// document when path is set.
func (r *CommandRunner) RunConcepts(ctx context.Context, name, path string, limit int) error {
	if r.searchService == nil {
		return fmt.Errorf("search service not available")
	}
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		list, err := r.searchService.DocumentConcepts(ctx, abs, limit)
		if err != nil {
			return err
		}
		for _, fc := range list {
			_, _ = fmt.Fprintf(r.out, "%-30s %-10s relevance=%.2f freq=%d\n",
				fc.Concept.Name, fc.Concept.Kind, fc.Relevance, fc.Frequency)
		}
		return nil
	}

	report, err := r.searchService.Concept(ctx, name, limit)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(r.out, "Documents mentioning %q:\n", report.Query)
	for _, fc := range report.Documents {
		_, _ = fmt.Fprintf(r.out, "  %s [%s] line %d: %s\n",
			fc.Path, fc.Concept.Name, fc.FirstLine, excerpt(fc.Context, 80))
	}
	if len(report.Related) > 0 {
		_, _ = fmt.Fprintln(r.out, "Related:")
		for _, rel := range report.Related {
			_, _ = fmt.Fprintf(r.out, "  %s (%s, %.2f)\n", rel.Target, rel.Kind, rel.Strength)
		}
	}
	return nil
}

// RunStats prints knowledge-base statistics, as JSON when asJSON is set
func (r *CommandRunner) RunStats(ctx context.Context, limit int, asJSON bool) error {
	if r.searchService == nil {
		return fmt.Errorf("search service not available")
	}
	stats, err := r.searchService.Stats(ctx, limit)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	k := stats.Knowledge
	_, _ = fmt.Fprintf(r.out, "Documents: %d\nLinks: %d (broken %d, %.2f per document)\nOrphans: %d\n",
		k.Documents, k.Links, k.BrokenLinks, k.AvgLinksPerFile, k.Orphans)
	if e := stats.Embeddings; e != nil {
		_, _ = fmt.Fprintf(r.out, "Embeddings: %d of %d chunks, %d/%d documents (model %s, dim %d)\n",
			e.Embeddings, e.Chunks, e.Documents, e.TotalDocument, e.Model, e.Dimension)
	}
	if c := stats.Concepts; c != nil {
		_, _ = fmt.Fprintf(r.out, "Concepts: %d across %d documents\n", c.Total, c.Documents)
		for _, e := range c.TopConcepts {
			_, _ = fmt.Fprintf(r.out, "  %-30s %d\n", e.Name, e.Count)
		}
	}
	return nil
}

// RunMCPServer executes the MCP server
func (r *CommandRunner) RunMCPServer(transport, address string) error {
	if r.mcpServer == nil {
		return fmt.Errorf("MCP server not available")
	}

	addr := address
	if addr == "" {
		addr = ":8080"
	}
	switch transport {
	case "stdio":
		return server.ServeStdio(r.mcpServer)
	case "http":
		return server.NewStreamableHTTPServer(r.mcpServer).Start(addr)
	case "sse":
		sseSrv := server.NewSSEServer(r.mcpServer,
			server.WithBaseURL(""),
			server.WithStaticBasePath("/mcp"),
		)
		return sseSrv.Start(addr)
	default:
		return fmt.Errorf(
			"unsupported transport: %s (supported: stdio, http, sse)",
			transport,
		)
	}
}

// shorten keeps the tail of a path
func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n+3:]
}

// excerpt collapses whitespace and keeps the head of s
func excerpt(s string, n int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}

// Module provides command runner
var Module = fx.Module("commands",
	fx.Provide(NewCommandRunner),
)
