// SPDX-License-Identifier: MIT

// streamvcr records live HTTP streams to files, either once from the command
// line or for every time window listed in a YAML schedule.
//
// Exit codes:
//   - 0: success
//   - 1: a recording failed or a scheduled record was rejected
//   - 2: usage or configuration error
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/ManuGH/streamvcr/internal/config"
	"github.com/ManuGH/streamvcr/internal/dvr"
	xglog "github.com/ManuGH/streamvcr/internal/log"
	"github.com/ManuGH/streamvcr/internal/platform/httpx"
	"github.com/ManuGH/streamvcr/internal/recorder"
	"github.com/ManuGH/streamvcr/internal/version"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// exitError carries the process exit code along with the cause.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error { return &exitError{code: exitUsage, err: err} }

func failure(err error) error { return &exitError{code: exitFailure, err: err} }

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, dvr.ErrInvalidArguments) || errors.Is(err, dvr.ErrConfiguration) {
		return exitUsage
	}
	return exitFailure
}

type globalFlags struct {
	logLevel  string
	logFormat string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "streamvcr",
		Short:         "Record live HTTP streams on a schedule",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.String(),
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError(err) })
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides STREAMVCR_LOG_LEVEL")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format (json, console); overrides STREAMVCR_LOG_FORMAT")

	root.AddCommand(
		newRecordCmd(flags, stdout, stderr),
		newWatchCmd(flags, stdout, stderr),
		newValidateCmd(flags, stdout, stderr),
		newVersionCmd(stdout),
	)
	return root
}

// usageArgs marks positional-argument errors as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

// loadConfig runs the config loader and reconfigures logging from the result.
func loadConfig(path string, flags *globalFlags, stderr io.Writer) (config.AppConfig, error) {
	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		return cfg, usageError(err)
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.LogFormat = flags.logFormat
	}
	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  stderr,
		Service: "streamvcr",
		Version: cfg.Version,
	})
	return cfg, nil
}

func newRecorder(cfg config.AppConfig) *recorder.Recorder {
	return recorder.New(
		recorder.WithClient(httpx.NewStreamClient(cfg.Recorder.ConnectTimeout)),
		recorder.WithChunkSize(cfg.Recorder.ChunkSize),
		recorder.WithStallGrace(cfg.Recorder.StallGrace),
	)
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  usageArgs(cobra.NoArgs),
		Run: func(_ *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(stdout, "streamvcr %s\n", version.String())
		},
	}
}
