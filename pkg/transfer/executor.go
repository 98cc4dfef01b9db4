// Package transfer copies or moves a selection of source files into the
// target tree, one file at a time, in selection order.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sdejongh/contentsync/pkg/events"
	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/ratelimit"
	"github.com/sdejongh/contentsync/pkg/storage"
)

// Options configures an executor
type Options struct {
	Mode    models.RunMode
	Policy  models.FailurePolicy
	Limiter *ratelimit.Limiter
}

// ProgressFunc receives the bytes written so far for the current file
type ProgressFunc func(path string, written, total int64)

// Executor performs the transfer phase of a copy or move run
type Executor struct {
	source   storage.Backend
	target   storage.Backend
	opts     Options
	sink     events.Sink
	progress ProgressFunc
}

// New creates an executor. Mode must be copy or move; an empty policy means best-effort.
func New(source, target storage.Backend, opts Options, sink events.Sink) (*Executor, error) {
	if !opts.Mode.Transfers() {
		return nil, fmt.Errorf("mode %q does not transfer files", opts.Mode)
	}
	if opts.Policy == "" {
		opts.Policy = models.PolicyBestEffort
	}
	return &Executor{
		source: source,
		target: target,
		opts:   opts,
		sink:   sink,
	}, nil
}

// SetProgressCallback sets a per-file byte progress callback for copies
func (x *Executor) SetProgressCallback(fn ProgressFunc) {
	x.progress = fn
}

// Execute transfers every entry of selection and returns the outcome counters
// together with the per-file failures.
//
// sourceCount is the number of files discovered in the source tree; Skipped and
// Remaining are derived from it: Skipped = sourceCount - Transferred - Failed,
// Remaining = sourceCount for copy, sourceCount - Transferred for move.
// Under abort-on-error the first failure stops the loop and the untouched
// entries are counted as skipped. Completed transfers are never undone.
func (x *Executor) Execute(ctx context.Context, selection models.Selection, sourceCount int) (models.Outcome, []models.FileError) {
	var outcome models.Outcome
	var failures []models.FileError
	total := len(selection)

	events.Emit(x.sink, events.Event{
		Kind:  events.KindPhaseStarted,
		Phase: events.PhaseTransfer,
		Total: total,
		Bytes: selection.TotalBytes(),
	})

	for i, entry := range selection {
		if ctx.Err() != nil {
			break
		}

		err := x.transferOne(ctx, entry)
		if err != nil {
			outcome.Failed++
			failures = append(failures, models.FileError{
				FilePath:  entry.RelativePath,
				Phase:     string(x.opts.Mode),
				Error:     err.Error(),
				Timestamp: time.Now(),
			})
			events.Emit(x.sink, events.Event{
				Kind:  events.KindTransferFailed,
				Phase: events.PhaseTransfer,
				Path:  entry.RelativePath,
				Count: i + 1,
				Total: total,
				Bytes: entry.Size,
				Err:   err,
			})
			if x.opts.Policy == models.PolicyAbortOnError {
				break
			}
			continue
		}

		outcome.Transferred++
		outcome.BytesTransferred += entry.Size
		events.Emit(x.sink, events.Event{
			Kind:  events.KindFileTransferred,
			Phase: events.PhaseTransfer,
			Path:  entry.RelativePath,
			Count: i + 1,
			Total: total,
			Bytes: entry.Size,
		})
	}

	outcome.Skipped = sourceCount - outcome.Transferred - outcome.Failed
	if outcome.Skipped < 0 {
		outcome.Skipped = 0
	}
	outcome.Remaining = sourceCount
	if x.opts.Mode == models.ModeMove {
		outcome.Remaining = sourceCount - outcome.Transferred
	}

	events.Emit(x.sink, events.Event{
		Kind:  events.KindPhaseCompleted,
		Phase: events.PhaseTransfer,
		Count: outcome.Transferred,
		Total: total,
		Bytes: outcome.BytesTransferred,
	})

	return outcome, failures
}

func (x *Executor) transferOne(ctx context.Context, entry models.SourceEntry) error {
	if x.opts.Mode == models.ModeMove {
		return x.move(ctx, entry)
	}
	return x.copy(ctx, entry)
}

// copy streams the source file into a temp file under the target and renames
// it into place with the source's modification time and permission bits.
func (x *Executor) copy(ctx context.Context, entry models.SourceEntry) error {
	reader, err := x.source.Read(ctx, entry.RelativePath)
	if err != nil {
		return err
	}
	limited := ratelimit.NewReadCloser(ctx, reader, x.opts.Limiter)
	defer limited.Close()

	var r io.Reader = limited
	if x.progress != nil {
		r = &progressReader{
			reader:         r,
			total:          entry.Size,
			lastReportTime: time.Now(),
			onProgress: func(n int64) {
				x.progress(entry.RelativePath, n, entry.Size)
			},
		}
	}

	metadata := &storage.FileInfo{
		ModTime:     entry.ModTime,
		Permissions: entry.Permissions,
	}
	if err := x.target.Write(ctx, entry.RelativePath, r, entry.Size, metadata); err != nil {
		return fmt.Errorf("copy %s: %w", entry.RelativePath, err)
	}
	return nil
}

// move renames when the target supports it and both roots share a filesystem,
// falling back to copy then delete across devices.
func (x *Executor) move(ctx context.Context, entry models.SourceEntry) error {
	if renamer, ok := x.target.(storage.Renamer); ok {
		err := renamer.RenameFrom(ctx, x.source, entry.RelativePath)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrCrossDevice) {
			return fmt.Errorf("move %s: %w", entry.RelativePath, err)
		}
	}

	if err := x.copy(ctx, entry); err != nil {
		return err
	}
	if err := x.source.Delete(ctx, entry.RelativePath); err != nil {
		return fmt.Errorf("copied %s but could not remove the source: %w", entry.RelativePath, err)
	}
	return nil
}
