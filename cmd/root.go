package cmd

import (
	"context"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/peerlink/peerlink/pkg/environment"
	"github.com/peerlink/peerlink/pkg/logging"
	"github.com/peerlink/peerlink/pkg/version"
)

// NewRootCommand returns the root command with all subcommands attached
func NewRootCommand(ctx context.Context, fs afero.Fs, env *environment.Environment, logger *logging.Logger) *cobra.Command {
	cobra.EnableCommandSorting = false
	rootCmd := &cobra.Command{
		Use:   "peerlink",
		Short: "Ephemeral one-shot file relay.",
		Long: `Peerlink relays a file between two people. Upload a file and get a short
numeric code; whoever holds the code can download the file exactly once before
it is deleted. Unclaimed files expire after a fixed time-to-live.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(NewServeCommand(ctx, fs, env, logger))
	rootCmd.AddCommand(NewSweepCommand(ctx, fs, env, logger))

	return rootCmd
}
