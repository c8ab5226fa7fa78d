package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/peerlink/peerlink/pkg/codegen"
	"github.com/peerlink/peerlink/pkg/environment"
	"github.com/peerlink/peerlink/pkg/logging"
	"github.com/peerlink/peerlink/pkg/registry"
	"github.com/peerlink/peerlink/pkg/relay"
	"github.com/peerlink/peerlink/pkg/server"
	"github.com/peerlink/peerlink/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

// settingsFlags binds command-line overrides onto a copy of the environment.
type settingsFlags struct {
	settings       environment.Environment
	maxRequestSize string
	maxFileSize    string
	debug          bool
}

func newSettingsFlags(env *environment.Environment) *settingsFlags {
	f := &settingsFlags{}
	if env != nil {
		f.settings = *env
	}
	f.debug = f.settings.DebugEnabled()
	return f
}

// resolve applies parsed flag values and validates the result.
func (f *settingsFlags) resolve() (*environment.Environment, error) {
	s := f.settings
	if f.maxRequestSize != "" {
		if err := s.MaxRequestSize.UnmarshalEnvironmentValue(f.maxRequestSize); err != nil {
			return nil, fmt.Errorf("--max-request-size: %w", err)
		}
	}
	if f.maxFileSize != "" {
		if err := s.MaxFileSize.UnmarshalEnvironmentValue(f.maxFileSize); err != nil {
			return nil, fmt.Errorf("--max-file-size: %w", err)
		}
	}
	if f.debug {
		s.Debug = "1"
	} else {
		s.Debug = "0"
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// NewServeCommand creates the 'serve' command.
func NewServeCommand(ctx context.Context, fs afero.Fs, env *environment.Environment, logger *logging.Logger) *cobra.Command {
	flags := newSettingsFlags(env)

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Example: "$ peerlink serve --port 8080 --ttl 10m",
		Short:   "Start the relay server and the expiry sweeper",
		Args:    cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			settings, err := flags.resolve()
			if err != nil {
				return err
			}

			if settings.DebugEnabled() {
				logger = logging.New(os.Stderr, true)
				logging.SetLogger(logger)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}
			for _, file := range settings.ConfigFiles {
				logger.Debug("loaded config file", "path", file)
			}

			svc, err := newService(fs, settings, logger)
			if err != nil {
				return err
			}

			srv := server.New(server.Config{
				Host:         settings.Host,
				Port:         settings.Port,
				AllowOrigins: settings.AllowOrigins(),
				Debug:        settings.DebugEnabled(),
			}, svc, logger)

			return runServer(ctx, srv, svc, settings, c.OutOrStdout(), logger)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&flags.settings.Host, "host", flags.settings.Host, "Interface to listen on (all when empty)")
	fl.IntVarP(&flags.settings.Port, "port", "p", flags.settings.Port, "Port to listen on")
	fl.StringVarP(&flags.settings.UploadDir, "upload-dir", "d", flags.settings.UploadDir, "Directory holding uploaded files")
	fl.DurationVar(&flags.settings.FileTTL, "ttl", flags.settings.FileTTL, "How long an unclaimed file stays downloadable")
	fl.DurationVar(&flags.settings.SweepInterval, "sweep-interval", flags.settings.SweepInterval, "Time between expiry sweeps")
	fl.StringVar(&flags.maxRequestSize, "max-request-size", "",
		fmt.Sprintf("Largest accepted upload request, e.g. 500MiB (default %s)", humanize.IBytes(uint64(max(flags.settings.MaxRequestSize.Int64(), 0)))))
	fl.StringVar(&flags.maxFileSize, "max-file-size", "", "Largest accepted single file, 0 for no separate limit")
	fl.BoolVar(&flags.debug, "debug", flags.debug, "Enable debug logging")

	return cmd
}

// newService opens the upload directory and wires the relay service.
func newService(fs afero.Fs, settings *environment.Environment, logger *logging.Logger) (*relay.Service, error) {
	store, err := storage.New(fs, settings.UploadDir)
	if err != nil {
		return nil, err
	}
	return relay.NewService(store, registry.New(), codegen.New(), logger, relay.Options{
		TTL:            settings.FileTTL,
		MaxFileSize:    settings.MaxFileSize.Int64(),
		MaxRequestSize: settings.MaxRequestSize.Int64(),
	}), nil
}

// runServer serves until ctx is cancelled or a termination signal arrives,
// then drains requests and purges whatever is still stored.
func runServer(ctx context.Context, srv *server.Server, svc *relay.Service, settings *environment.Environment, out io.Writer, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go relay.NewSweeper(svc, settings.SweepInterval, logger).Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	fmt.Fprintln(out, banner(srv.Addr(), settings))

	select {
	case err := <-errCh:
		stop()
		return errors.Join(err, svc.Close())
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	err = errors.Join(err, <-errCh, svc.Close())
	if err == nil {
		logger.Info("server stopped")
	}
	return err
}
