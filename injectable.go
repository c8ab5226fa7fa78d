package main

import (
	"os"

	"github.com/peerlink/peerlink/cmd"
	"github.com/peerlink/peerlink/pkg/environment"
	"github.com/peerlink/peerlink/pkg/logging"
)

// Injectable functions for testability
var (
	// OS operations
	OsExitFn  = os.Exit
	GetwdFn   = os.Getwd
	EnvironFn = os.Environ

	// Environment functions
	LoadEnvironmentFn = environment.Load

	// Command functions
	NewRootCommandFn = cmd.NewRootCommand

	// Logging functions
	GetLoggerFn = logging.GetLogger
)
