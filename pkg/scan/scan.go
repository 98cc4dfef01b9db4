// Package scan enumerates the regular files of a directory tree.
package scan

import (
	"context"
	"errors"
	"io/fs"
	"sync/atomic"

	"github.com/sdejongh/contentsync/pkg/events"
	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/storage"
)

// FileFunc receives each regular file found. Returning an error stops the scan.
type FileFunc func(info storage.FileInfo) error

// Stats summarizes a finished scan
type Stats struct {
	Files    int
	Bytes    int64
	Dirs     int
	Skipped  int // non-regular entries such as symlinks, devices, sockets
	Excluded int
	Errors   int
}

// Scanner walks one tree and yields its regular files
type Scanner struct {
	backend storage.Backend
	matcher *Matcher
	sink    events.Sink
	phase   events.Phase
}

// New creates a scanner over backend. sink may be nil.
func New(backend storage.Backend, matcher *Matcher, sink events.Sink, phase events.Phase) *Scanner {
	return &Scanner{
		backend: backend,
		matcher: matcher,
		sink:    sink,
		phase:   phase,
	}
}

// Backend returns the backend being scanned
func (s *Scanner) Backend() storage.Backend {
	return s.backend
}

// Phase returns the run phase this scanner reports under
func (s *Scanner) Phase() events.Phase {
	return s.phase
}

// Scan calls fn for every regular file below the root, in walk order.
// A missing or unreadable root yields a *models.PreconditionError. Errors on
// individual entries are emitted as scan_error events and skipped.
func (s *Scanner) Scan(ctx context.Context, fn FileFunc) (Stats, error) {
	var stats Stats
	var scanErrors atomic.Int32

	onError := func(relativePath string, err error) {
		scanErrors.Add(1)
		events.Emit(s.sink, events.Event{
			Kind:  events.KindScanError,
			Phase: s.phase,
			Path:  relativePath,
			Err:   err,
		})
	}

	err := s.backend.Walk(ctx, func(info storage.FileInfo) error {
		if info.IsDir {
			if s.matcher.ExcludeDir(info.RelativePath) {
				stats.Excluded++
				return fs.SkipDir
			}
			stats.Dirs++
			return nil
		}

		if !info.IsRegular {
			stats.Skipped++
			return nil
		}

		if s.matcher.ExcludeFile(info.RelativePath) {
			stats.Excluded++
			return nil
		}

		stats.Files++
		stats.Bytes += info.Size
		events.Emit(s.sink, events.Event{
			Kind:  events.KindFileDiscovered,
			Phase: s.phase,
			Path:  info.RelativePath,
			Count: stats.Files,
			Bytes: info.Size,
		})

		return fn(info)
	}, onError)

	stats.Errors = int(scanErrors.Load())

	if err != nil {
		if errors.Is(err, storage.ErrRootUnavailable) {
			return stats, &models.PreconditionError{Root: s.backend.Root(), Err: err}
		}
		return stats, err
	}

	return stats, nil
}
