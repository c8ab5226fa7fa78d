package main

import (
	"context"
	"os"

	"github.com/spf13/afero"
)

func main() {
	OsExitFn(run(context.Background(), afero.NewOsFs(), os.Args[1:]))
}

// run builds and executes the root command, returning the exit code.
func run(ctx context.Context, fs afero.Fs, args []string) int {
	logger := GetLoggerFn()

	pwd, err := GetwdFn()
	if err != nil {
		logger.Warn("cannot determine working directory, skipping local .env", "error", err)
		pwd = ""
	}

	env, err := LoadEnvironmentFn(fs, pwd, EnvironFn())
	if err != nil {
		logger.Error("failed to load environment", "error", err)
		return 1
	}

	rootCmd := NewRootCommandFn(ctx, fs, env, logger)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		return 1
	}
	return 0
}
