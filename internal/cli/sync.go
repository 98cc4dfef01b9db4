package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sdejongh/contentsync/pkg/config"
	"github.com/sdejongh/contentsync/pkg/events"
	"github.com/sdejongh/contentsync/pkg/logging"
	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/output"
	"github.com/sdejongh/contentsync/pkg/storage"
	"github.com/sdejongh/contentsync/pkg/sync"
	"github.com/spf13/cobra"
)

// ExitError carries the process exit code of a finished run. Err is nil when
// the outcome was already reported to the user.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewCopyCommand creates the copy command
func NewCopyCommand() *cobra.Command {
	flags := &RunFlags{}
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy content missing from the destination",
		Long: `Hash every file of both trees and copy the source files whose content
is found nowhere in the destination, keeping their relative paths.
The source tree is left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, flags, models.ModeCopy)
		},
	}

	addCommonFlags(cmd, flags)
	addTransferFlags(cmd, flags)

	return cmd
}

// NewMoveCommand creates the move command
func NewMoveCommand() *cobra.Command {
	flags := &RunFlags{}
	cmd := &cobra.Command{
		Use:   "move",
		Short: "Move content missing from the destination",
		Long: `Hash every file of both trees and move the source files whose content
is found nowhere in the destination, keeping their relative paths.
Files whose content already exists in the destination stay in the source.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, flags, models.ModeMove)
		},
	}

	addCommonFlags(cmd, flags)
	addTransferFlags(cmd, flags)

	return cmd
}

func runMode(cmd *cobra.Command, flags *RunFlags, mode models.RunMode) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with command-line flags
	applyFlagsToConfig(cmd, flags, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := prepareDest(flags); err != nil {
		return err
	}

	operation, err := createOperation(cfg, flags, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s operation: %w", mode, err)
	}

	// Missing, nested or identical roots fail before any backend exists
	sourceRoot, destRoot, err := sync.CheckRoots(flags.Source, flags.Dest)
	if models.IsPrecondition(err) {
		return &ExitError{Code: models.StatusFailed.ExitCode(), Err: err}
	} else if err != nil {
		return err
	}

	// Create storage backends
	source, err := storage.NewLocal(sourceRoot)
	if err != nil {
		return fmt.Errorf("failed to create source backend: %w", err)
	}
	defer source.Close()

	dest, err := storage.NewLocal(destRoot)
	if err != nil {
		return fmt.Errorf("failed to create destination backend: %w", err)
	}
	defer dest.Close()

	// Create output formatter
	var out io.Writer = cmd.OutOrStdout()
	quiet := cfg.Output.Quiet && cfg.Output.Format != "json"
	if quiet {
		out = io.Discard
	}
	formatter, err := output.New(cfg.Output.Format, cfg.Output.Progress, out)
	if err != nil {
		return err
	}
	formatter.Start(out, operation)

	// Create logger
	logger, err := createLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	engine := sync.NewEngine(source, dest, operation, logger,
		events.Multi{formatter, logging.NewEventSink(ctx, logger)})
	if pf, ok := formatter.(*output.ProgressFormatter); ok {
		engine.SetTransferProgressCallback(pf.TransferProgress)
	}

	report, runErr := engine.Run(ctx)
	if report == nil {
		formatter.Error(runErr)
		if jf, ok := formatter.(*output.JSONFormatter); ok {
			jf.Flush()
		}
		return &ExitError{Code: models.StatusFailed.ExitCode(), Err: unreported(runErr, quiet)}
	}

	if runErr != nil {
		formatter.Error(runErr)
	}
	if err := formatter.Complete(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if flags.Details != "" {
		if err := output.WriteDetailsReport(report, flags.Details, flags.DetailsFmt); err != nil {
			return fmt.Errorf("failed to write details report: %w", err)
		}
	}

	if code := report.Status.ExitCode(); code != 0 {
		if errors.Is(runErr, context.Canceled) {
			runErr = nil
		}
		return &ExitError{Code: code, Err: unreported(runErr, quiet)}
	}
	return nil
}

// unreported returns err when the formatter output was discarded, so that
// main still prints it on stderr
func unreported(err error, quiet bool) error {
	if quiet {
		return err
	}
	return nil
}

// createLogger creates a logger based on configuration. Without a log file,
// entries go to stderr.
func createLogger(cfg config.LoggingConfig, stderr io.Writer) (logging.Logger, error) {
	if !cfg.Enabled {
		return logging.NewNullLogger(), nil
	}

	// Parse log format
	var format logging.Format
	switch cfg.Format {
	case "json":
		format = logging.FormatJSON
	default:
		format = logging.FormatText
	}
	level := logging.ParseLevel(cfg.Level)

	if cfg.File == "" {
		return logging.NewWriterLogger(stderr, format, level), nil
	}

	// Create file logger
	return logging.NewFileLogger(logging.FileLoggerConfig{
		Path:       cfg.File,
		Format:     format,
		Level:      level,
		MaxSize:    10 * 1024 * 1024, // 10 MB
		MaxBackups: 5,
	})
}
