package commands

import (
	"context"
	"strings"

	"github.com/keinsell/zkk/cmd/cmdsfx"
	"github.com/spf13/cobra"
)

func newSearchCommand(g *globalFlags) *cobra.Command {
	var (
		exact     bool
		topK      int
		threshold float64
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search documents: semantic (default) or exact text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return withRunner(cmd, g, "", func(ctx context.Context, r *cmdsfx.CommandRunner) error {
				return r.RunSearch(ctx, query, exact, topK, threshold)
			})
		},
	}
	cmd.Flags().BoolVarP(&exact, "exact", "e", false, "case-insensitive substring search over lines")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of results (default from config)")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", -1, "minimum similarity (default from config)")
	return cmd
}

func newLinksCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "links <file>",
		Short: "Show outgoing and incoming [[links]] of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, g, "", func(ctx context.Context, r *cmdsfx.CommandRunner) error {
				return r.RunLinks(ctx, args[0])
			})
		},
	}
}

func newOrphansCommand(g *globalFlags) *cobra.Command {
	var broken bool
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "List documents no other document links to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRunner(cmd, g, "", func(ctx context.Context, r *cmdsfx.CommandRunner) error {
				return r.RunOrphans(ctx, broken)
			})
		},
	}
	cmd.Flags().BoolVar(&broken, "broken", false, "list unresolved link targets instead")
	return cmd
}

func newConceptsCommand(g *globalFlags) *cobra.Command {
	var (
		doc   string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "concepts [name]",
		Short: "Find documents by concept, or list a document's concepts with --doc",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			if name == "" && doc == "" {
				return cmd.Usage()
			}
			return withRunner(cmd, g, "", func(ctx context.Context, r *cmdsfx.CommandRunner) error {
				return r.RunConcepts(ctx, name, doc, limit)
			})
		},
	}
	cmd.Flags().StringVar(&doc, "doc", "", "document path")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max results")
	return cmd
}

func newStatsCommand(g *globalFlags) *cobra.Command {
	var (
		asJSON bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge-base statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRunner(cmd, g, "", func(ctx context.Context, r *cmdsfx.CommandRunner) error {
				return r.RunStats(ctx, limit, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "entries in top lists")
	return cmd
}
