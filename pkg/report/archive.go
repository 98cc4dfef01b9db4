package report

import (
	"archive/tar"
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"github.com/sdejongh/contentsync/pkg/events"
	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/storage"
)

const archiveBufferSize = 256 * 1024

// Extension returns the file extension for an archive format, without the dot
func Extension(format models.ArchiveFormat) string {
	return string(format)
}

// ArchivePathFor derives the archive path from a listing path, so both
// reports of a run share their timestamp and collision suffix
func ArchivePathFor(listingPath string, format models.ArchiveFormat) string {
	return strings.TrimSuffix(listingPath, filepath.Ext(listingPath)) + "." + Extension(format)
}

// ArchiveStats describes a written archive
type ArchiveStats struct {
	Files int
	Bytes int64
}

// Archiver packages duplicate files into a single compressed container.
// Entries keep their path relative to the source root.
type Archiver struct {
	format models.ArchiveFormat
	sink   events.Sink
}

// NewArchiver creates an archiver for format. sink may be nil.
func NewArchiver(format models.ArchiveFormat, sink events.Sink) (*Archiver, error) {
	switch format {
	case models.ArchiveZip, models.ArchiveTarGz, models.ArchiveTarZst:
	default:
		return nil, fmt.Errorf("unsupported archive format: %q (valid: zip, tar.gz, tar.zst)", format)
	}
	return &Archiver{format: format, sink: sink}, nil
}

// Format returns the container format
func (a *Archiver) Format() models.ArchiveFormat {
	return a.format
}

// Write reads every entry straight from source and writes the archive to
// path. The archive is built in a temp file next to path and renamed into
// place, so a failed run leaves nothing behind.
func (a *Archiver) Write(ctx context.Context, source storage.Backend, entries models.Selection, path string) (stats ArchiveStats, retErr error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return stats, fmt.Errorf("failed to create archive directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".contentsync-archive-*.tmp")
	if err != nil {
		return stats, fmt.Errorf("failed to create temp archive: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if retErr != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	bufWriter := bufio.NewWriterSize(tmp, archiveBufferSize)

	switch a.format {
	case models.ArchiveZip:
		stats, err = a.writeZip(ctx, source, entries, bufWriter)
	default:
		stats, err = a.writeTar(ctx, source, entries, bufWriter)
	}
	if err != nil {
		return stats, err
	}

	if err := bufWriter.Flush(); err != nil {
		return stats, fmt.Errorf("buffer flush failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return stats, fmt.Errorf("failed to close temp archive: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return stats, fmt.Errorf("failed to move archive into place: %w", err)
	}

	events.Emit(a.sink, events.Event{
		Kind:  events.KindArchiveWritten,
		Phase: events.PhaseReport,
		Path:  path,
		Count: stats.Files,
		Bytes: stats.Bytes,
	})
	return stats, nil
}

// entryName converts a relative path to the slash-separated archive name
func entryName(relativePath string) string {
	return strings.TrimPrefix(filepath.ToSlash(relativePath), "/")
}

func (a *Archiver) writeZip(ctx context.Context, source storage.Backend, entries models.Selection, out io.Writer) (stats ArchiveStats, retErr error) {
	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})
	defer func() {
		if err := zw.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("zip writer close failed: %w", err)
		}
	}()

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		header := &zip.FileHeader{
			Name:     entryName(e.RelativePath),
			Method:   zip.Deflate,
			Modified: e.ModTime,
		}
		header.SetMode(os.FileMode(e.Permissions))

		w, err := zw.CreateHeader(header)
		if err != nil {
			return stats, fmt.Errorf("failed to write zip header for %s: %w", e.RelativePath, err)
		}
		n, err := copyEntry(ctx, source, e, w)
		if err != nil {
			return stats, err
		}
		stats.Files++
		stats.Bytes += n
	}
	return stats, nil
}

func (a *Archiver) writeTar(ctx context.Context, source storage.Backend, entries models.Selection, out io.Writer) (stats ArchiveStats, retErr error) {
	var compressed io.WriteCloser
	switch a.format {
	case models.ArchiveTarZst:
		zw, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return stats, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		compressed = zw
	default:
		gw, err := pgzip.NewWriterLevel(out, pgzip.DefaultCompression)
		if err != nil {
			return stats, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		compressed = gw
	}

	tw := tar.NewWriter(compressed)
	defer func() {
		if err := tw.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("tar writer close failed: %w", err)
		}
		if err := compressed.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("compressed writer close failed: %w", err)
		}
	}()

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		header := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     entryName(e.RelativePath),
			Size:     e.Size,
			Mode:     int64(e.Permissions),
			ModTime:  e.ModTime,
			Format:   tar.FormatPAX,
		}
		if err := tw.WriteHeader(header); err != nil {
			return stats, fmt.Errorf("failed to write tar header for %s: %w", e.RelativePath, err)
		}
		// Tar headers fix the size up front, so the copy is bounded to it
		n, err := copyEntry(ctx, source, e, tw)
		if err != nil {
			return stats, err
		}
		if n != e.Size {
			return stats, fmt.Errorf("%s changed size while archiving: expected %d bytes, read %d", e.RelativePath, e.Size, n)
		}
		stats.Files++
		stats.Bytes += n
	}
	return stats, nil
}

func copyEntry(ctx context.Context, source storage.Backend, e models.SourceEntry, w io.Writer) (int64, error) {
	reader, err := source.Read(ctx, e.RelativePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", e.RelativePath, err)
	}
	defer reader.Close()

	var r io.Reader = reader
	if _, isTar := w.(*tar.Writer); isTar {
		r = io.LimitReader(reader, e.Size)
	}

	n, err := io.Copy(w, r)
	if err != nil {
		return n, fmt.Errorf("failed to archive %s: %w", e.RelativePath, err)
	}
	return n, nil
}

