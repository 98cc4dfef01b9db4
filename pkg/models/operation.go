package models

import (
	"time"
)

// RunMode defines what a run does with the diff result
type RunMode string

const (
	// ModeCopy copies new content into the target, leaving the source intact
	ModeCopy RunMode = "copy"
	// ModeMove moves new content into the target, removing it from the source
	ModeMove RunMode = "move"
	// ModeCompare reports duplicate content without transferring anything
	ModeCompare RunMode = "compare"
)

// Transfers reports whether the mode writes into the target tree
func (m RunMode) Transfers() bool {
	return m == ModeCopy || m == ModeMove
}

// HashAlgorithm names the digest function used for both trees
type HashAlgorithm string

const (
	// HashSHA256 is the default algorithm
	HashSHA256 HashAlgorithm = "sha256"
	// HashSHA512 trades speed for a longer digest
	HashSHA512 HashAlgorithm = "sha512"
	// HashMD5 is faster but not collision resistant; suitable for non-critical data
	HashMD5 HashAlgorithm = "md5"
)

// FailurePolicy decides what happens after a per-file transfer failure
type FailurePolicy string

const (
	// PolicyBestEffort records the failure and continues with the next file
	PolicyBestEffort FailurePolicy = "best-effort"
	// PolicyAbortOnError stops the transfer at the first failure
	PolicyAbortOnError FailurePolicy = "abort-on-error"
)

// ArchiveFormat names the container used for duplicate archives
type ArchiveFormat string

const (
	ArchiveNone   ArchiveFormat = ""
	ArchiveZip    ArchiveFormat = "zip"
	ArchiveTarGz  ArchiveFormat = "tar.gz"
	ArchiveTarZst ArchiveFormat = "tar.zst"
)

// RunOperation represents the configuration of a single run
type RunOperation struct {
	ID              string
	SourcePath      string
	DestPath        string
	Mode            RunMode
	Algorithm       HashAlgorithm
	FailurePolicy   FailurePolicy
	ExcludePatterns []string
	MaxWorkers      int   // 0 = one per CPU
	BandwidthLimit  int64 // bytes per second, 0 = unlimited
	ReportDir       string
	Archive         ArchiveFormat
	CreatedAt       time.Time
}

// Validate checks if the operation configuration is valid
func (op *RunOperation) Validate() error {
	if op.SourcePath == "" {
		return &ValidationError{Field: "SourcePath", Message: "source path is required"}
	}
	if op.DestPath == "" {
		return &ValidationError{Field: "DestPath", Message: "destination path is required"}
	}
	switch op.Mode {
	case ModeCopy, ModeMove, ModeCompare:
	default:
		return &ValidationError{Field: "Mode", Message: "mode must be copy, move, or compare"}
	}
	switch op.Algorithm {
	case HashSHA256, HashSHA512, HashMD5:
	default:
		return &ValidationError{Field: "Algorithm", Message: "unsupported hash algorithm: " + string(op.Algorithm)}
	}
	switch op.FailurePolicy {
	case PolicyBestEffort, PolicyAbortOnError:
	default:
		return &ValidationError{Field: "FailurePolicy", Message: "failure policy must be best-effort or abort-on-error"}
	}
	if op.MaxWorkers < 0 {
		return &ValidationError{Field: "MaxWorkers", Message: "max workers cannot be negative (0 uses one per CPU)"}
	}
	if op.BandwidthLimit < 0 {
		return &ValidationError{Field: "BandwidthLimit", Message: "bandwidth limit cannot be negative"}
	}
	switch op.Archive {
	case ArchiveNone, ArchiveZip, ArchiveTarGz, ArchiveTarZst:
	default:
		return &ValidationError{Field: "Archive", Message: "unsupported archive format: " + string(op.Archive)}
	}
	if op.Archive != ArchiveNone && op.Mode != ModeCompare {
		return &ValidationError{Field: "Archive", Message: "archiving is only available in compare mode"}
	}
	return nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
