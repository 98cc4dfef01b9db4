package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sdejongh/contentsync/pkg/events"
	"github.com/sdejongh/contentsync/pkg/models"
)

// HumanFormatter formats output in human-readable format
type HumanFormatter struct {
	mu        sync.Mutex
	writer    io.Writer
	startTime time.Time

	// perFile disables the one-line-per-file output when false
	perFile bool
}

// NewHumanFormatter creates a new human-readable formatter
func NewHumanFormatter() *HumanFormatter {
	return &HumanFormatter{writer: io.Discard, perFile: true}
}

// Start initializes the formatter
func (f *HumanFormatter) Start(writer io.Writer, op *models.RunOperation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if writer != nil {
		f.writer = writer
	}
	f.startTime = time.Now()

	fmt.Fprintf(f.writer, "Starting %s: %s -> %s (%s)\n", op.Mode, op.SourcePath, op.DestPath, op.Algorithm)
	return nil
}

// Emit prints phase transitions and per-file results
func (f *HumanFormatter) Emit(ev events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch ev.Kind {
	case events.KindPhaseStarted:
		if label := phaseLabel(ev.Phase); label != "" {
			fmt.Fprintf(f.writer, "%s...\n", label)
		}

	case events.KindPhaseCompleted:
		switch ev.Phase {
		case events.PhaseHashSource, events.PhaseHashTarget:
			fmt.Fprintf(f.writer, "  %d of %d files hashed (%s)\n", ev.Count, ev.Total, formatBytes(ev.Bytes))
		case events.PhaseTransfer:
			fmt.Fprintf(f.writer, "  %d of %d files transferred (%s)\n", ev.Count, ev.Total, formatBytes(ev.Bytes))
		}

	case events.KindScanError:
		fmt.Fprintf(f.writer, "  ! %s: %v\n", ev.Path, ev.Err)

	case events.KindHashFailed:
		fmt.Fprintf(f.writer, "  ✗ %s: %v\n", ev.Path, ev.Err)

	case events.KindSelection:
		fmt.Fprintf(f.writer, "Selected %d of %d files (%s)\n", ev.Count, ev.Total, formatBytes(ev.Bytes))

	case events.KindCapacityChecked:
		verdict := "ok"
		if ev.Err != nil {
			verdict = "insufficient"
		}
		fmt.Fprintf(f.writer, "Capacity: %s required, %s free (%s)\n",
			formatBytes(ev.Bytes), formatBytes(int64(ev.FreeBytes)), verdict)

	case events.KindFileTransferred:
		if f.perFile {
			fmt.Fprintf(f.writer, "[%d/%d] ✓ %s (%s)\n", ev.Count, ev.Total, ev.Path, formatBytes(ev.Bytes))
		}

	case events.KindTransferFailed:
		fmt.Fprintf(f.writer, "[%d/%d] ✗ %s: %v\n", ev.Count, ev.Total, ev.Path, ev.Err)

	case events.KindListingWritten:
		fmt.Fprintf(f.writer, "Duplicate listing: %s (%d files)\n", ev.Path, ev.Count)

	case events.KindArchiveWritten:
		fmt.Fprintf(f.writer, "Duplicate archive: %s (%d files, %s)\n", ev.Path, ev.Count, formatBytes(ev.Bytes))
	}
}

// Complete finalizes output and displays summary
func (f *HumanFormatter) Complete(report *models.RunReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	writeSummary(f.writer, report)
	return nil
}

// Error reports an error
func (f *HumanFormatter) Error(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fmt.Fprintf(f.writer, "Error: %v\n", err)
	return nil
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return "human"
}

func phaseLabel(p events.Phase) string {
	switch p {
	case events.PhaseHashSource:
		return "Hashing source"
	case events.PhaseHashTarget:
		return "Hashing destination"
	case events.PhaseTransfer:
		return "Transferring"
	case events.PhaseReport:
		return "Writing duplicate report"
	}
	return ""
}

// writeSummary prints the end-of-run summary shared by the human and progress formatters
func writeSummary(w io.Writer, report *models.RunReport) {
	s := report.Stats

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "%s completed in %s\n", report.Mode, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Summary:\n")
	fmt.Fprintf(w, "  Scanned:\n")
	fmt.Fprintf(w, "    Source:         %d files, %s (%d unreadable)\n", s.SourceFiles, formatBytes(s.SourceBytes), s.SourceUnreadable)
	fmt.Fprintf(w, "    Destination:    %d files, %s (%d unreadable)\n", s.TargetFiles, formatBytes(s.TargetBytes), s.TargetUnreadable)
	if s.ScanErrors > 0 {
		fmt.Fprintf(w, "    Scan errors:    %d\n", s.ScanErrors)
	}
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Content:\n")
	fmt.Fprintf(w, "    New:            %d files, %s\n", s.SelectedFiles, formatBytes(s.SelectedBytes))
	fmt.Fprintf(w, "    Duplicate:      %d files, %s\n", s.DuplicateFiles, formatBytes(s.DuplicateBytes))
	if ratio, ok := s.DuplicateRatio(); ok {
		fmt.Fprintf(w, "    Duplicate ratio: %.1f%%\n", ratio*100)
	}

	if report.Mode.Transfers() {
		o := report.Outcome
		fmt.Fprintf(w, "\n")
		fmt.Fprintf(w, "  Transfer:\n")
		fmt.Fprintf(w, "    Required:       %s\n", formatBytes(s.RequiredBytes))
		if s.FreeBytes > 0 {
			fmt.Fprintf(w, "    Free:           %s\n", formatBytes(int64(s.FreeBytes)))
		}
		fmt.Fprintf(w, "    Transferred:    %d files, %s\n", o.Transferred, formatBytes(o.BytesTransferred))
		fmt.Fprintf(w, "    Skipped:        %d\n", o.Skipped)
		fmt.Fprintf(w, "    Failed:         %d\n", o.Failed)
		fmt.Fprintf(w, "    Left in source: %d\n", o.Remaining)
		if report.Duration.Seconds() > 0 && o.BytesTransferred > 0 {
			avgSpeed := float64(o.BytesTransferred) / report.Duration.Seconds()
			fmt.Fprintf(w, "    Average speed:  %s/s\n", formatBytes(int64(avgSpeed)))
		}
	} else {
		fmt.Fprintf(w, "\n")
		fmt.Fprintf(w, "  Report:\n")
		if report.ListingPath != "" {
			fmt.Fprintf(w, "    Listing:        %s\n", report.ListingPath)
		}
		if report.ArchivePath != "" {
			fmt.Fprintf(w, "    Archive:        %s\n", report.ArchivePath)
		}
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Status: %s\n", report.Status)

	if len(report.HashErrors) > 0 {
		fmt.Fprintf(w, "\nUnreadable files:\n")
		for _, e := range report.HashErrors {
			fmt.Fprintf(w, "  %s: %s\n", e.FilePath, e.Error)
		}
	}
	if len(report.TransferErrors) > 0 {
		fmt.Fprintf(w, "\nTransfer errors:\n")
		for _, e := range report.TransferErrors {
			fmt.Fprintf(w, "  %s: %s\n", e.FilePath, e.Error)
		}
	}
}

// formatBytes formats bytes in human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
