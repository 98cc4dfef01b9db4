package models

import (
	"time"
)

// RunReport represents the results of a run
type RunReport struct {
	// Operation details
	OperationID string
	SourcePath  string
	DestPath    string
	Mode        RunMode
	Algorithm   HashAlgorithm

	// Timing
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Statistics
	Stats Statistics

	// Outcome of the transfer phase (copy and move modes)
	Outcome Outcome

	// Selected holds the files chosen for transfer (copy and move modes)
	Selected Selection

	// Duplicates holds the source files whose content exists in the target (compare mode)
	Duplicates Selection

	// ListingPath is the duplicate listing written in compare mode
	ListingPath string

	// ArchivePath is the duplicate archive, empty when archiving was not requested
	ArchivePath string

	// Per-file failures while hashing, before selection
	HashErrors []FileError

	// Per-file failures while copying or moving selected files
	TransferErrors []FileError

	// Overall status
	Status RunStatus
}

// Statistics holds run metrics
type Statistics struct {
	SourceFiles      int
	SourceBytes      int64
	SourceUnreadable int
	TargetFiles      int
	TargetBytes      int64
	TargetUnreadable int
	TargetDigests    int // distinct digests in the target
	ScanErrors       int

	SelectedFiles  int
	SelectedBytes  int64
	DuplicateFiles int
	DuplicateBytes int64

	// Capacity preflight (copy and move modes)
	RequiredBytes int64
	FreeBytes     uint64
}

// DuplicateRatio returns the share of source files whose content is already in
// the target, with ok=false when no source file was discovered.
func (s Statistics) DuplicateRatio() (ratio float64, ok bool) {
	if s.SourceFiles == 0 {
		return 0, false
	}
	return float64(s.DuplicateFiles) / float64(s.SourceFiles), true
}

// Outcome holds the transfer counters
type Outcome struct {
	Transferred      int
	Skipped          int // already present, unreadable, or not attempted after an abort
	Failed           int
	Remaining        int // files left in the source tree after the run
	BytesTransferred int64
}

// RunStatus represents the overall result
type RunStatus string

const (
	// StatusSuccess indicates the diff was computed and every requested action completed
	StatusSuccess RunStatus = "success"
	// StatusPartial indicates the run completed but some files failed to hash or transfer
	StatusPartial RunStatus = "partial"
	// StatusCapacityShortfall indicates the transfer was withheld for lack of space
	StatusCapacityShortfall RunStatus = "capacity_shortfall"
	// StatusFailed indicates the run could not start or aborted
	StatusFailed RunStatus = "failed"
	// StatusCancelled indicates the run was cancelled
	StatusCancelled RunStatus = "cancelled"
)

// FileError represents a per-file failure
type FileError struct {
	FilePath  string
	Phase     string
	Error     string
	Timestamp time.Time
}

// ExitCode returns the appropriate exit code for the run status
func (s RunStatus) ExitCode() int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusPartial:
		return 1
	case StatusFailed:
		return 2
	case StatusCancelled:
		return 3
	case StatusCapacityShortfall:
		return 4
	default:
		return 2
	}
}
