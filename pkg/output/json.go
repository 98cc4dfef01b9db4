package output

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/sdejongh/contentsync/pkg/events"
	"github.com/sdejongh/contentsync/pkg/models"
)

// JSONFormatter formats output as JSON for automation and scripting.
// Nothing is written until Complete, so stdout stays a single document.
type JSONFormatter struct {
	mu         sync.Mutex
	writer     io.Writer
	scanErrors []JSONErrorData
	runError   string
}

// JSONReportData represents the final report data
type JSONReportData struct {
	OperationID string          `json:"operation_id"`
	Mode        string          `json:"mode"`
	Source      string          `json:"source"`
	Destination string          `json:"destination"`
	Algorithm   string          `json:"algorithm"`
	Status      string          `json:"status"`
	ExitCode    int             `json:"exit_code"`
	Duration    string          `json:"duration"`
	DurationMs  int64           `json:"duration_ms"`
	Stats       JSONStatsData   `json:"stats"`
	Outcome     *JSONOutcome    `json:"outcome,omitempty"`
	Selected    []JSONFileData  `json:"selected,omitempty"`
	Duplicates  []JSONFileData  `json:"duplicates,omitempty"`
	Listing     string          `json:"listing,omitempty"`
	Archive     string          `json:"archive,omitempty"`
	Errors      []JSONErrorData `json:"errors,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// JSONStatsData represents statistics in JSON format
type JSONStatsData struct {
	SourceFiles      int      `json:"source_files"`
	SourceBytes      int64    `json:"source_bytes"`
	SourceUnreadable int      `json:"source_unreadable"`
	TargetFiles      int      `json:"target_files"`
	TargetBytes      int64    `json:"target_bytes"`
	TargetUnreadable int      `json:"target_unreadable"`
	TargetDigests    int      `json:"target_digests"`
	ScanErrors       int      `json:"scan_errors"`
	SelectedFiles    int      `json:"selected_files"`
	SelectedBytes    int64    `json:"selected_bytes"`
	DuplicateFiles   int      `json:"duplicate_files"`
	DuplicateBytes   int64    `json:"duplicate_bytes"`
	DuplicateRatio   *float64 `json:"duplicate_ratio,omitempty"`
	RequiredBytes    int64    `json:"required_bytes,omitempty"`
	FreeBytes        uint64   `json:"free_bytes,omitempty"`
}

// JSONOutcome represents the transfer counters
type JSONOutcome struct {
	Transferred      int    `json:"transferred"`
	Skipped          int    `json:"skipped"`
	Failed           int    `json:"failed"`
	Remaining        int    `json:"remaining"`
	BytesTransferred int64  `json:"bytes_transferred"`
	AverageSpeed     int64  `json:"average_speed_bytes_per_sec,omitempty"`
	AverageSpeedStr  string `json:"average_speed,omitempty"`
}

// JSONFileData represents a selected or duplicate file
type JSONFileData struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Digest string `json:"digest"`
}

// JSONErrorData represents an error entry
type JSONErrorData struct {
	Path  string `json:"path"`
	Phase string `json:"phase"`
	Error string `json:"error"`
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{writer: io.Discard}
}

// Start initializes the formatter
func (f *JSONFormatter) Start(writer io.Writer, op *models.RunOperation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if writer != nil {
		f.writer = writer
	}
	return nil
}

// Emit keeps scan errors, which the run report only counts
func (f *JSONFormatter) Emit(ev events.Event) {
	if ev.Kind != events.KindScanError {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := ""
	if ev.Err != nil {
		msg = ev.Err.Error()
	}
	f.scanErrors = append(f.scanErrors, JSONErrorData{Path: ev.Path, Phase: string(ev.Phase), Error: msg})
}

// Complete writes the report as a single JSON document
func (f *JSONFormatter) Complete(report *models.RunReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data := JSONReportData{
		OperationID: report.OperationID,
		Mode:        string(report.Mode),
		Source:      report.SourcePath,
		Destination: report.DestPath,
		Algorithm:   string(report.Algorithm),
		Status:      string(report.Status),
		ExitCode:    report.Status.ExitCode(),
		Duration:    report.Duration.Round(time.Millisecond).String(),
		DurationMs:  report.Duration.Milliseconds(),
		Stats:       jsonStats(report.Stats),
		Listing:     report.ListingPath,
		Archive:     report.ArchivePath,
		Error:       f.runError,
	}

	if report.Mode.Transfers() {
		o := report.Outcome
		out := &JSONOutcome{
			Transferred:      o.Transferred,
			Skipped:          o.Skipped,
			Failed:           o.Failed,
			Remaining:        o.Remaining,
			BytesTransferred: o.BytesTransferred,
		}
		if report.Duration.Seconds() > 0 && o.BytesTransferred > 0 {
			out.AverageSpeed = int64(float64(o.BytesTransferred) / report.Duration.Seconds())
			out.AverageSpeedStr = formatBytes(out.AverageSpeed) + "/s"
		}
		data.Outcome = out
		data.Selected = jsonFiles(report.Selected)
	} else {
		data.Duplicates = jsonFiles(report.Duplicates)
	}

	data.Errors = append(data.Errors, f.scanErrors...)
	for _, e := range report.HashErrors {
		data.Errors = append(data.Errors, JSONErrorData{Path: e.FilePath, Phase: e.Phase, Error: e.Error})
	}
	for _, e := range report.TransferErrors {
		data.Errors = append(data.Errors, JSONErrorData{Path: e.FilePath, Phase: e.Phase, Error: e.Error})
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Error records a run-level error for the final document
func (f *JSONFormatter) Error(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runError = err.Error()
	return nil
}

// Flush writes a document holding only the run-level error, for runs that
// stopped before a report existed
func (f *JSONFormatter) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runError == "" {
		return nil
	}
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]string{"status": string(models.StatusFailed), "error": f.runError})
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return "json"
}

func jsonStats(s models.Statistics) JSONStatsData {
	out := JSONStatsData{
		SourceFiles:      s.SourceFiles,
		SourceBytes:      s.SourceBytes,
		SourceUnreadable: s.SourceUnreadable,
		TargetFiles:      s.TargetFiles,
		TargetBytes:      s.TargetBytes,
		TargetUnreadable: s.TargetUnreadable,
		TargetDigests:    s.TargetDigests,
		ScanErrors:       s.ScanErrors,
		SelectedFiles:    s.SelectedFiles,
		SelectedBytes:    s.SelectedBytes,
		DuplicateFiles:   s.DuplicateFiles,
		DuplicateBytes:   s.DuplicateBytes,
		RequiredBytes:    s.RequiredBytes,
		FreeBytes:        s.FreeBytes,
	}
	if ratio, ok := s.DuplicateRatio(); ok {
		out.DuplicateRatio = &ratio
	}
	return out
}

func jsonFiles(sel models.Selection) []JSONFileData {
	if len(sel) == 0 {
		return nil
	}
	out := make([]JSONFileData, 0, len(sel))
	for _, e := range sel {
		out = append(out, JSONFileData{Path: e.RelativePath, Size: e.Size, Digest: string(e.Digest)})
	}
	return out
}
