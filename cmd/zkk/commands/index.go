package commands

import (
	"context"

	"github.com/keinsell/zkk/cmd/cmdsfx"
	"github.com/spf13/cobra"
)

func newIndexCommand(g *globalFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index [dir]",
		Short: "Index the markdown documents under dir (default: current directory)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := dirArg(args)
			return withRunner(cmd, g, "", func(ctx context.Context, r *cmdsfx.CommandRunner) error {
				return r.RunIndex(ctx, root, force)
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "re-embed and re-extract every document")
	return cmd
}

func newReindexCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex [dir]",
		Short: "Rebuild embeddings and concepts for every document under dir",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := dirArg(args)
			return withRunner(cmd, g, "", func(ctx context.Context, r *cmdsfx.CommandRunner) error {
				return r.RunIndex(ctx, root, true)
			})
		},
	}
}

func dirArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}
