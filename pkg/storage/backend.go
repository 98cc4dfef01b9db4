package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrCrossDevice is returned by RenameFrom when source and destination live on
// different filesystems and an atomic rename is impossible.
var ErrCrossDevice = errors.New("source and destination are on different filesystems")

// ErrRootUnavailable is wrapped by Walk when the root itself cannot be read
var ErrRootUnavailable = errors.New("root is not accessible")

// ErrFreeSpaceUnsupported is returned by FreeSpace where the platform offers no query
var ErrFreeSpaceUnsupported = errors.New("free space query not supported on this platform")

// FileInfo represents metadata about a file
type FileInfo struct {
	Path         string
	Size         int64
	ModTime      time.Time
	IsDir        bool
	IsRegular    bool
	Permissions  uint32
	RelativePath string
}

// WalkFunc is called for every entry below the root, directories included.
// Returning fs.SkipDir for a directory prunes it.
type WalkFunc func(info FileInfo) error

// WalkErrorFunc is called for entries that could not be read during a walk.
// The walk continues after it returns.
type WalkErrorFunc func(relativePath string, err error)

// Backend defines the interface for storage operations
type Backend interface {
	// Root returns the absolute root path of the backend
	Root() string

	// Walk visits every entry below the root. Only a failure to read the root
	// itself aborts the walk; other entry errors go to onError.
	Walk(ctx context.Context, fn WalkFunc, onError WalkErrorFunc) error

	// Read opens a file for reading
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write creates or replaces a file with the given content.
	// If metadata is provided, modification time and permissions are preserved.
	Write(ctx context.Context, path string, reader io.Reader, size int64, metadata *FileInfo) error

	// Delete removes a single file
	Delete(ctx context.Context, path string) error

	// Stat returns file metadata
	Stat(ctx context.Context, path string) (*FileInfo, error)

	// Close releases any resources held by the backend
	Close() error
}

// SpaceReporter reports free space on the filesystem holding a backend
type SpaceReporter interface {
	FreeSpace(ctx context.Context) (uint64, error)
}

// Renamer moves a file from another backend into this one with a single rename
type Renamer interface {
	RenameFrom(ctx context.Context, source Backend, path string) error
}
