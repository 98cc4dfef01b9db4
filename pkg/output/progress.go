package output

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/sdejongh/contentsync/pkg/events"
	"github.com/sdejongh/contentsync/pkg/models"
)

const (
	hashTemplate     = `{{string . "phase"}} {{counters . }} {{bar . "[" "=" ">" " " "]"}} {{etime . }} {{string . "failed"}}`
	transferTemplate = `{{string . "phase"}} {{counters . }} {{bar . "[" "=" ">" " " "]"}} {{percent . }} {{speed . }} {{rtime . "ETA %s"}} {{string . "failed"}}`
)

// getRefreshRate returns the bar refresh interval based on OS.
// Windows terminals have higher latency with ANSI sequences.
func getRefreshRate() time.Duration {
	if runtime.GOOS == "windows" {
		return 300 * time.Millisecond
	}
	return 100 * time.Millisecond
}

// ProgressFormatter shows one progress bar per phase: files hashed while the
// trees are indexed, bytes written while the selection is transferred.
// Phase messages and the summary are printed between bars.
type ProgressFormatter struct {
	mu     sync.Mutex
	writer io.Writer

	bar    *pb.ProgressBar
	phase  events.Phase
	failed int

	// bytes of files already finished in the transfer phase
	doneBytes int64
}

// NewProgressFormatter creates a new progress bar formatter
func NewProgressFormatter() *ProgressFormatter {
	return &ProgressFormatter{writer: os.Stdout}
}

// Start initializes the formatter
func (f *ProgressFormatter) Start(writer io.Writer, op *models.RunOperation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if writer != nil {
		f.writer = writer
	}
	fmt.Fprintf(f.writer, "Starting %s: %s -> %s (%s)\n", op.Mode, op.SourcePath, op.DestPath, op.Algorithm)
	return nil
}

// Emit drives the bars
func (f *ProgressFormatter) Emit(ev events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch ev.Kind {
	case events.KindPhaseStarted:
		f.finishBar()
		switch ev.Phase {
		case events.PhaseHashSource, events.PhaseHashTarget:
			f.startBar(ev.Phase, hashTemplate, 0, false)
		case events.PhaseTransfer:
			f.doneBytes = 0
			f.startBar(ev.Phase, transferTemplate, ev.Bytes, true)
		}

	case events.KindFileDiscovered:
		if f.bar != nil && f.phase == ev.Phase {
			f.bar.SetTotal(int64(ev.Count))
		}

	case events.KindFileHashed:
		if f.bar != nil && f.phase == ev.Phase {
			f.bar.Increment()
		}

	case events.KindHashFailed:
		if f.bar != nil && f.phase == ev.Phase {
			f.bar.Increment()
			f.markFailed()
		}

	case events.KindFileTransferred:
		if f.bar != nil && f.phase == events.PhaseTransfer {
			f.doneBytes += ev.Bytes
			f.bar.SetCurrent(f.doneBytes)
		}

	case events.KindTransferFailed:
		if f.bar != nil && f.phase == events.PhaseTransfer {
			f.bar.SetTotal(f.bar.Total() - ev.Bytes)
			f.bar.SetCurrent(f.doneBytes)
			f.markFailed()
		}

	case events.KindPhaseCompleted:
		if f.phase == ev.Phase {
			f.finishBar()
		}

	case events.KindSelection:
		f.finishBar()
		fmt.Fprintf(f.writer, "Selected %d of %d files (%s)\n", ev.Count, ev.Total, formatBytes(ev.Bytes))

	case events.KindCapacityChecked:
		verdict := "ok"
		if ev.Err != nil {
			verdict = "insufficient"
		}
		fmt.Fprintf(f.writer, "Capacity: %s required, %s free (%s)\n",
			formatBytes(ev.Bytes), formatBytes(int64(ev.FreeBytes)), verdict)

	case events.KindListingWritten:
		fmt.Fprintf(f.writer, "Duplicate listing: %s (%d files)\n", ev.Path, ev.Count)

	case events.KindArchiveWritten:
		fmt.Fprintf(f.writer, "Duplicate archive: %s (%d files, %s)\n", ev.Path, ev.Count, formatBytes(ev.Bytes))
	}
}

// TransferProgress moves the byte bar while a single file is being copied
func (f *ProgressFormatter) TransferProgress(path string, written, total int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.bar != nil && f.phase == events.PhaseTransfer {
		f.bar.SetCurrent(f.doneBytes + written)
	}
}

// Complete finalizes output and displays summary
func (f *ProgressFormatter) Complete(report *models.RunReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.finishBar()
	writeSummary(f.writer, report)
	return nil
}

// Error reports an error
func (f *ProgressFormatter) Error(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.finishBar()
	fmt.Fprintf(f.writer, "Error: %v\n", err)
	return nil
}

// Name returns the formatter name
func (f *ProgressFormatter) Name() string {
	return "progress"
}

func (f *ProgressFormatter) startBar(phase events.Phase, tmpl string, total int64, bytes bool) {
	f.phase = phase
	f.failed = 0
	f.bar = pb.New64(total).
		SetTemplateString(tmpl).
		SetWriter(f.writer).
		SetRefreshRate(getRefreshRate()).
		Set("phase", fmt.Sprintf("%-20s", phaseLabel(phase))).
		Set("failed", "").
		Set(pb.Bytes, bytes)
	f.bar.Start()
}

func (f *ProgressFormatter) markFailed() {
	f.failed++
	f.bar.Set("failed", fmt.Sprintf("(%d failed)", f.failed))
}

func (f *ProgressFormatter) finishBar() {
	if f.bar == nil {
		return
	}
	f.bar.Finish()
	f.bar = nil
	f.phase = ""
}
