// Package index hashes every file of a tree in parallel and aggregates the
// digests, either per path (source side) or as a bare set (target side).
package index

import (
	"context"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sdejongh/contentsync/pkg/events"
	"github.com/sdejongh/contentsync/pkg/hash"
	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/scan"
	"github.com/sdejongh/contentsync/pkg/storage"
)

// Stats summarizes one index build
type Stats struct {
	scan.Stats

	Hashed   int
	Failed   int
	Duration time.Duration

	// Failures lists the files that could not be hashed
	Failures []models.FileError
}

// Builder runs a bounded hashing pool per build call
type Builder struct {
	hasher  *hash.Hasher
	workers int
	sink    events.Sink
}

// New creates a builder. workers <= 0 selects runtime.NumCPU().
func New(hasher *hash.Hasher, workers int, sink events.Sink) *Builder {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Builder{
		hasher:  hasher,
		workers: workers,
		sink:    sink,
	}
}

// Workers returns the pool size used for each build
func (b *Builder) Workers() int {
	return b.workers
}

// BuildSourceIndex hashes every file the scanner yields and maps each relative
// path to its entry. Files that cannot be read are kept with models.NoDigest.
func (b *Builder) BuildSourceIndex(ctx context.Context, scanner *scan.Scanner) (models.SourceIndex, Stats, error) {
	idx := make(models.SourceIndex)
	stats, err := b.build(ctx, scanner, func(entry models.SourceEntry) {
		idx[entry.RelativePath] = entry
	})
	if err != nil {
		return nil, stats, err
	}

	events.Emit(b.sink, events.Event{
		Kind:  events.KindIndexBuilt,
		Phase: scanner.Phase(),
		Count: idx.Len(),
		Bytes: stats.Bytes,
	})
	return idx, stats, nil
}

// BuildTargetSet hashes every file the scanner yields and keeps only the
// distinct digests. Unreadable files contribute nothing.
func (b *Builder) BuildTargetSet(ctx context.Context, scanner *scan.Scanner) (models.TargetDigestSet, Stats, error) {
	set := make(models.TargetDigestSet)
	stats, err := b.build(ctx, scanner, func(entry models.SourceEntry) {
		set.Add(entry.Digest)
	})
	if err != nil {
		return nil, stats, err
	}

	events.Emit(b.sink, events.Event{
		Kind:  events.KindIndexBuilt,
		Phase: scanner.Phase(),
		Count: len(set),
		Bytes: stats.Bytes,
	})
	return set, stats, nil
}

// build scans the tree, fans hashing out to the pool and funnels every result
// through a single collector goroutine that owns collect.
func (b *Builder) build(ctx context.Context, scanner *scan.Scanner, collect func(models.SourceEntry)) (Stats, error) {
	var stats Stats
	start := time.Now()
	phase := scanner.Phase()
	backend := scanner.Backend()

	events.Emit(b.sink, events.Event{Kind: events.KindPhaseStarted, Phase: phase})

	results := make(chan models.SourceEntry, b.workers*2)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for entry := range results {
			if entry.Hashed() {
				stats.Hashed++
			} else {
				stats.Failed++
				stats.Failures = append(stats.Failures, models.FileError{
					FilePath:  entry.RelativePath,
					Phase:     string(phase),
					Error:     entry.Err.Error(),
					Timestamp: time.Now(),
				})
			}
			collect(entry)
		}
	}()

	g := new(errgroup.Group)
	g.SetLimit(b.workers)

	scanStats, scanErr := scanner.Scan(ctx, func(info storage.FileInfo) error {
		g.Go(func() error {
			results <- b.hashOne(ctx, backend, info, phase)
			// Per-file failures travel inside the entry, never as a group error
			return nil
		})
		return nil
	})

	g.Wait()
	close(results)
	<-collected

	stats.Stats = scanStats
	stats.Duration = time.Since(start)

	if scanErr != nil {
		return stats, scanErr
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	events.Emit(b.sink, events.Event{
		Kind:  events.KindPhaseCompleted,
		Phase: phase,
		Count: stats.Hashed,
		Total: stats.Files,
		Bytes: stats.Bytes,
	})
	return stats, nil
}

func (b *Builder) hashOne(ctx context.Context, backend storage.Backend, info storage.FileInfo, phase events.Phase) models.SourceEntry {
	entry := models.SourceEntry{
		RelativePath: info.RelativePath,
		AbsolutePath: info.Path,
		Size:         info.Size,
		ModTime:      info.ModTime,
		Permissions:  info.Permissions,
	}
	if entry.AbsolutePath == "" {
		entry.AbsolutePath = filepath.Join(backend.Root(), info.RelativePath)
	}

	res := b.hasher.Hash(ctx, backend, info.RelativePath)
	if res.Failed() {
		entry.Digest = models.NoDigest
		entry.Err = res.Err
		events.Emit(b.sink, events.Event{
			Kind:  events.KindHashFailed,
			Phase: phase,
			Path:  info.RelativePath,
			Err:   res.Err,
		})
		return entry
	}

	entry.Digest = res.Digest
	entry.Size = res.Size
	events.Emit(b.sink, events.Event{
		Kind:  events.KindFileHashed,
		Phase: phase,
		Path:  info.RelativePath,
		Bytes: res.Size,
	})
	return entry
}
