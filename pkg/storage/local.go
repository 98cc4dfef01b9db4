package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Local is a filesystem-based storage backend
type Local struct {
	rootPath string
}

// NewLocal creates a new local filesystem backend rooted at the
// symlink-free form of rootPath
func NewLocal(rootPath string) (*Local, error) {
	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	// WalkDir does not descend into a root that is itself a symlink
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		absPath = resolved
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access path: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", absPath)
	}

	return &Local{rootPath: absPath}, nil
}

// Root returns the absolute root path
func (l *Local) Root() string {
	return l.rootPath
}

// Walk visits every entry below the root
func (l *Local) Walk(ctx context.Context, fn WalkFunc, onError WalkErrorFunc) error {
	err := filepath.WalkDir(l.rootPath, func(p string, d fs.DirEntry, err error) error {
		// Check context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if p == l.rootPath {
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrRootUnavailable, l.rootPath, err)
			}
			return nil
		}

		relPath, relErr := filepath.Rel(l.rootPath, p)
		if relErr != nil {
			relPath = p
		}

		if err != nil {
			if onError != nil {
				onError(relPath, err)
			}
			// WalkDir already skips the contents of a directory it failed to read
			return nil
		}

		info, err := d.Info()
		if err != nil {
			// Entry vanished between readdir and stat
			if onError != nil {
				onError(relPath, err)
			}
			return nil
		}

		return fn(FileInfo{
			Path:         p,
			Size:         info.Size(),
			ModTime:      info.ModTime(),
			IsDir:        info.IsDir(),
			IsRegular:    info.Mode().IsRegular(),
			Permissions:  uint32(info.Mode().Perm()),
			RelativePath: relPath,
		})
	})

	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", l.rootPath, err)
	}

	return nil
}

// Read opens a file for reading
func (l *Local) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	fullPath := filepath.Join(l.rootPath, path)

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Write streams reader into a temporary file next to the destination and
// renames it into place, so an interrupted write never leaves a truncated file.
func (l *Local) Write(ctx context.Context, path string, reader io.Reader, size int64, metadata *FileInfo) (retErr error) {
	fullPath := filepath.Join(l.rootPath, path)

	// Ensure parent directory exists
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".contentsync-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if retErr != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, reader)
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	if written != size {
		return fmt.Errorf("incomplete write: expected %d bytes, wrote %d", size, written)
	}

	if metadata != nil && metadata.Permissions != 0 {
		if err := tmp.Chmod(os.FileMode(metadata.Permissions)); err != nil {
			return fmt.Errorf("failed to set permissions: %w", err)
		}
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if metadata != nil && !metadata.ModTime.IsZero() {
		if err := os.Chtimes(tmpPath, metadata.ModTime, metadata.ModTime); err != nil {
			return fmt.Errorf("failed to set modification time: %w", err)
		}
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		return fmt.Errorf("failed to move temp file into place: %w", err)
	}

	return nil
}

// RenameFrom moves path from source into the same relative path under this
// backend. It returns an error wrapping ErrCrossDevice when the two roots are
// on different filesystems.
func (l *Local) RenameFrom(ctx context.Context, source Backend, path string) error {
	srcInfo, err := source.Stat(ctx, path)
	if err != nil {
		return err
	}

	fullPath := filepath.Join(l.rootPath, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.Rename(srcInfo.Path, fullPath); err != nil {
		if isCrossDevice(err) {
			return fmt.Errorf("rename %s: %w", path, ErrCrossDevice)
		}
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}

// Delete removes a single file
func (l *Local) Delete(ctx context.Context, path string) error {
	fullPath := filepath.Join(l.rootPath, path)

	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}

	return nil
}

// Stat returns file metadata
func (l *Local) Stat(ctx context.Context, path string) (*FileInfo, error) {
	fullPath := filepath.Join(l.rootPath, path)

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	relPath, err := filepath.Rel(l.rootPath, fullPath)
	if err != nil {
		return nil, err
	}

	return &FileInfo{
		Path:         fullPath,
		Size:         info.Size(),
		ModTime:      info.ModTime(),
		IsDir:        info.IsDir(),
		IsRegular:    info.Mode().IsRegular(),
		Permissions:  uint32(info.Mode().Perm()),
		RelativePath: relPath,
	}, nil
}

// FreeSpace returns the bytes available to the current user on the
// filesystem holding the root
func (l *Local) FreeSpace(ctx context.Context) (uint64, error) {
	free, err := freeSpace(l.rootPath)
	if err != nil {
		return 0, fmt.Errorf("failed to query free space on %s: %w", l.rootPath, err)
	}
	return free, nil
}

// Close releases resources (no-op for local filesystem)
func (l *Local) Close() error {
	return nil
}
