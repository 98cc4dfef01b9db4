// Package sync runs a complete content-addressed comparison between a source
// and a destination tree: hash both, diff, then transfer or report.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sdejongh/contentsync/pkg/capacity"
	"github.com/sdejongh/contentsync/pkg/diff"
	"github.com/sdejongh/contentsync/pkg/events"
	"github.com/sdejongh/contentsync/pkg/hash"
	"github.com/sdejongh/contentsync/pkg/index"
	"github.com/sdejongh/contentsync/pkg/logging"
	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/ratelimit"
	"github.com/sdejongh/contentsync/pkg/report"
	"github.com/sdejongh/contentsync/pkg/scan"
	"github.com/sdejongh/contentsync/pkg/storage"
	"github.com/sdejongh/contentsync/pkg/transfer"
)

// Engine orchestrates a run
type Engine struct {
	source    storage.Backend
	dest      storage.Backend
	operation *models.RunOperation
	logger    logging.Logger
	sink      events.Sink

	space            storage.SpaceReporter
	hashProgress     hash.ProgressFunc
	transferProgress transfer.ProgressFunc
	now              func() time.Time
}

// NewEngine creates a new engine. logger and sink may be nil.
func NewEngine(
	source, dest storage.Backend,
	operation *models.RunOperation,
	logger logging.Logger,
	sink events.Sink,
) *Engine {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	e := &Engine{
		source:    source,
		dest:      dest,
		operation: operation,
		logger:    logger,
		sink:      sink,
		now:       time.Now,
	}
	if sr, ok := dest.(storage.SpaceReporter); ok {
		e.space = sr
	}
	return e
}

// SetSpaceReporter overrides where free space on the destination is read from
func (e *Engine) SetSpaceReporter(sr storage.SpaceReporter) {
	e.space = sr
}

// SetHashProgressCallback receives per-file hashing progress
func (e *Engine) SetHashProgressCallback(fn hash.ProgressFunc) {
	e.hashProgress = fn
}

// SetTransferProgressCallback receives per-file copy progress
func (e *Engine) SetTransferProgressCallback(fn transfer.ProgressFunc) {
	e.transferProgress = fn
}

// Run executes the operation. The returned report is non-nil whenever the run
// got past validation; its Status tells success, partial, capacity shortfall,
// failure and cancellation apart. A capacity shortfall also returns an error
// wrapping models.ErrInsufficientCapacity; a bad root returns a
// *models.PreconditionError before anything is hashed.
func (e *Engine) Run(ctx context.Context) (*models.RunReport, error) {
	op := e.operation
	if err := op.Validate(); err != nil {
		return nil, err
	}

	startTime := e.now()
	rep := &models.RunReport{
		OperationID: op.ID,
		SourcePath:  e.source.Root(),
		DestPath:    e.dest.Root(),
		Mode:        op.Mode,
		Algorithm:   op.Algorithm,
		StartTime:   startTime,
		Status:      models.StatusSuccess,
	}

	e.logger.Info(ctx, "Starting run", logging.Fields{
		"operation_id": op.ID,
		"mode":         string(op.Mode),
		"source":       rep.SourcePath,
		"dest":         rep.DestPath,
		"algorithm":    string(op.Algorithm),
	})

	// Phase 1: both roots must be usable before anything is computed
	if _, _, err := CheckRoots(e.source.Root(), e.dest.Root()); err != nil {
		return e.finish(ctx, rep, models.StatusFailed), err
	}

	matcher, err := scan.NewMatcher(op.ExcludePatterns)
	if err != nil {
		return e.finish(ctx, rep, models.StatusFailed), err
	}
	hasher, err := hash.New(op.Algorithm)
	if err != nil {
		return e.finish(ctx, rep, models.StatusFailed), err
	}
	rep.Algorithm = hasher.Algorithm()
	if e.hashProgress != nil {
		hasher.SetProgressCallback(e.hashProgress)
	}
	builder := index.New(hasher, op.MaxWorkers, e.sink)
	e.logger.Info(ctx, "Hashing trees", logging.Fields{
		"algorithm": string(rep.Algorithm),
		"workers":   builder.Workers(),
	})

	// Phase 2: hash the source, then the destination
	sourceIndex, sourceStats, err := builder.BuildSourceIndex(ctx, scan.New(e.source, matcher, e.sink, events.PhaseHashSource))
	if err != nil {
		return e.abort(ctx, rep, err)
	}
	targetSet, targetStats, err := builder.BuildTargetSet(ctx, scan.New(e.dest, matcher, e.sink, events.PhaseHashTarget))
	if err != nil {
		return e.abort(ctx, rep, err)
	}

	rep.Stats.SourceFiles = sourceIndex.Len()
	rep.Stats.SourceBytes = sourceStats.Bytes
	rep.Stats.SourceUnreadable = sourceStats.Failed
	rep.Stats.TargetFiles = targetStats.Files
	rep.Stats.TargetBytes = targetStats.Bytes
	rep.Stats.TargetUnreadable = targetStats.Failed
	rep.Stats.TargetDigests = len(targetSet)
	rep.Stats.ScanErrors = sourceStats.Errors + targetStats.Errors
	rep.HashErrors = append(rep.HashErrors, sourceStats.Failures...)
	rep.HashErrors = append(rep.HashErrors, targetStats.Failures...)

	// Phase 3: diff
	summary := diff.Summarize(sourceIndex, targetSet)
	rep.Stats.SelectedFiles = summary.Selected
	rep.Stats.SelectedBytes = summary.SelectedBytes
	rep.Stats.DuplicateFiles = summary.Duplicates
	rep.Stats.DuplicateBytes = summary.DuplicateBytes

	e.logger.Info(ctx, "Diff computed", logging.Fields{
		"source_files":       summary.Total,
		"selected":           summary.Selected,
		"required_mib":       fmt.Sprintf("%.2f", capacity.MiB(summary.SelectedBytes)),
		"skipped":            summary.Duplicates + summary.Unreadable,
		"skipped_mib":        fmt.Sprintf("%.2f", capacity.MiB(summary.DuplicateBytes)),
		"unreadable_sources": summary.Unreadable,
	})

	if op.Mode == models.ModeCompare {
		return e.runCompare(ctx, rep, diff.Duplicates(sourceIndex, targetSet))
	}
	return e.runTransfer(ctx, rep, diff.Select(sourceIndex, targetSet), sourceIndex.Len())
}

// runTransfer checks capacity once, then copies or moves the selection
func (e *Engine) runTransfer(ctx context.Context, rep *models.RunReport, selection models.Selection, sourceCount int) (*models.RunReport, error) {
	op := e.operation
	rep.Selected = selection
	required := selection.TotalBytes()
	rep.Stats.RequiredBytes = required

	events.Emit(e.sink, events.Event{
		Kind:  events.KindSelection,
		Phase: events.PhaseDiff,
		Count: len(selection),
		Total: sourceCount,
		Bytes: required,
	})

	e.logger.Debug(ctx, "Selection", logging.Fields{"paths": selection.Paths()})

	withheld := models.Outcome{Skipped: sourceCount, Remaining: sourceCount}

	// Phase 4: capacity, evaluated once before any write
	if e.space != nil {
		decision, err := capacity.NewGuard(e.space, e.sink).Check(ctx, required)
		switch {
		case errors.Is(err, storage.ErrFreeSpaceUnsupported):
			e.logger.Warn(ctx, "Free space cannot be queried on this platform, skipping capacity check", nil)
		case err != nil:
			rep.Outcome = withheld
			return e.finish(ctx, rep, models.StatusFailed), err
		case !decision.Allowed:
			rep.Stats.FreeBytes = decision.Free
			rep.Outcome = withheld
			return e.finish(ctx, rep, models.StatusCapacityShortfall), decision.Err()
		default:
			rep.Stats.FreeBytes = decision.Free
		}
	} else {
		e.logger.Warn(ctx, "Destination cannot report free space, skipping capacity check", nil)
	}

	// Phase 5: transfer
	executor, err := transfer.New(e.source, e.dest, transfer.Options{
		Mode:    op.Mode,
		Policy:  op.FailurePolicy,
		Limiter: ratelimit.NewLimiter(op.BandwidthLimit),
	}, e.sink)
	if err != nil {
		return e.finish(ctx, rep, models.StatusFailed), err
	}
	if e.transferProgress != nil {
		executor.SetProgressCallback(e.transferProgress)
	}

	outcome, failures := executor.Execute(ctx, selection, sourceCount)
	rep.Outcome = outcome
	rep.TransferErrors = failures

	e.logger.Info(ctx, "Transfer finished", logging.Fields{
		"transferred":     outcome.Transferred,
		"failed":          outcome.Failed,
		"skipped":         outcome.Skipped,
		"remaining":       outcome.Remaining,
		"transferred_mib": fmt.Sprintf("%.2f", capacity.MiB(outcome.BytesTransferred)),
	})

	if ctx.Err() != nil {
		return e.finish(ctx, rep, models.StatusCancelled), ctx.Err()
	}
	return e.finish(ctx, rep, e.completionStatus(rep)), nil
}

// runCompare writes the duplicate listing and, when requested, the archive
func (e *Engine) runCompare(ctx context.Context, rep *models.RunReport, duplicates models.Selection) (*models.RunReport, error) {
	op := e.operation
	rep.Duplicates = duplicates

	events.Emit(e.sink, events.Event{
		Kind:  events.KindSelection,
		Phase: events.PhaseDiff,
		Count: len(duplicates),
		Total: rep.Stats.SourceFiles,
		Bytes: duplicates.TotalBytes(),
	})

	e.logger.Debug(ctx, "Duplicates", logging.Fields{"paths": duplicates.Paths()})

	if ratio, ok := rep.Stats.DuplicateRatio(); ok {
		e.logger.Info(ctx, "Duplicate ratio", logging.Fields{"percent": fmt.Sprintf("%.1f", ratio*100)})
	}

	events.Emit(e.sink, events.Event{Kind: events.KindPhaseStarted, Phase: events.PhaseReport})

	listing, err := report.WriteListing(op.ReportDir, report.DefaultPrefix, duplicates, e.now())
	if err != nil {
		return e.finish(ctx, rep, models.StatusFailed), err
	}
	rep.ListingPath = listing
	events.Emit(e.sink, events.Event{
		Kind:  events.KindListingWritten,
		Phase: events.PhaseReport,
		Path:  listing,
		Count: len(duplicates),
	})

	if op.Archive != models.ArchiveNone && len(duplicates) > 0 {
		archiver, err := report.NewArchiver(op.Archive, e.sink)
		if err != nil {
			return e.finish(ctx, rep, models.StatusFailed), err
		}
		path := report.ArchivePathFor(listing, op.Archive)
		if _, err := archiver.Write(ctx, e.source, duplicates, path); err != nil {
			if ctx.Err() != nil {
				return e.finish(ctx, rep, models.StatusCancelled), ctx.Err()
			}
			return e.finish(ctx, rep, models.StatusFailed), err
		}
		rep.ArchivePath = path
	}

	events.Emit(e.sink, events.Event{
		Kind:  events.KindPhaseCompleted,
		Phase: events.PhaseReport,
		Count: len(duplicates),
	})

	return e.finish(ctx, rep, e.completionStatus(rep)), nil
}

// completionStatus is partial when any file could not be scanned, hashed or transferred
func (e *Engine) completionStatus(rep *models.RunReport) models.RunStatus {
	if len(rep.HashErrors) > 0 || len(rep.TransferErrors) > 0 || rep.Stats.ScanErrors > 0 {
		return models.StatusPartial
	}
	return models.StatusSuccess
}

// abort ends a run whose hashing phase returned an error
func (e *Engine) abort(ctx context.Context, rep *models.RunReport, err error) (*models.RunReport, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return e.finish(ctx, rep, models.StatusCancelled), err
	}
	return e.finish(ctx, rep, models.StatusFailed), err
}

func (e *Engine) finish(ctx context.Context, rep *models.RunReport, status models.RunStatus) *models.RunReport {
	rep.Status = status
	rep.EndTime = e.now()
	rep.Duration = rep.EndTime.Sub(rep.StartTime)

	fields := logging.Fields{
		"operation_id": rep.OperationID,
		"status":       string(status),
		"duration":     rep.Duration.String(),
	}
	switch status {
	case models.StatusSuccess, models.StatusPartial:
		e.logger.Info(ctx, "Run completed", fields)
	case models.StatusCapacityShortfall:
		fields["required_mib"] = fmt.Sprintf("%.2f", capacity.MiB(rep.Stats.RequiredBytes))
		fields["free_mib"] = fmt.Sprintf("%.2f", capacity.MiB(int64(rep.Stats.FreeBytes)))
		e.logger.Warn(ctx, "Transfer withheld for lack of space", fields)
	default:
		e.logger.Warn(ctx, "Run did not complete", fields)
	}
	return rep
}
