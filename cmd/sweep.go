package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/peerlink/peerlink/pkg/environment"
	"github.com/peerlink/peerlink/pkg/logging"
	"github.com/peerlink/peerlink/pkg/relay"
)

// NewSweepCommand creates the 'sweep' command, a one-shot cleanup of files
// left in the upload directory by a previous process.
func NewSweepCommand(ctx context.Context, fs afero.Fs, env *environment.Environment, logger *logging.Logger) *cobra.Command {
	flags := newSettingsFlags(env)

	cmd := &cobra.Command{
		Use:     "sweep",
		Example: "$ peerlink sweep --upload-dir /var/lib/peerlink --ttl 5m",
		Short:   "Delete stored files older than the TTL",
		Args:    cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			settings, err := flags.resolve()
			if err != nil {
				return err
			}

			svc, err := newService(fs, settings, logger)
			if err != nil {
				return err
			}

			report := relay.NewSweeper(svc, settings.SweepInterval, logger).Sweep(ctx)
			fmt.Fprintf(c.OutOrStdout(), "removed %d stale file(s) from %s\n", report.Orphans, svc.Store().Root())
			return errors.Join(report.Errors...)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&flags.settings.UploadDir, "upload-dir", "d", flags.settings.UploadDir, "Directory holding uploaded files")
	fl.DurationVar(&flags.settings.FileTTL, "ttl", flags.settings.FileTTL, "Age after which a stored file is removed")

	return cmd
}
