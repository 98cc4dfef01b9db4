// Package hash computes content digests of single files.
package hash

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	gohash "hash"
	"io"
	"sync"
	"time"

	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/storage"
)

// ChunkSize is the number of bytes read per step while hashing
const ChunkSize = 64 * 1024

// Progress throttling
const (
	progressReportInterval = 50 * time.Millisecond
	progressReportBytes    = 1024 * 1024
)

// Result is the outcome of hashing one file. On failure Digest is
// models.NoDigest and Err holds the cause.
type Result struct {
	Path   string
	Size   int64
	Digest models.Digest
	Err    error
}

// Failed reports whether the file could not be hashed
func (r Result) Failed() bool {
	return !r.Digest.Valid()
}

// ProgressFunc receives the bytes hashed so far for a file
type ProgressFunc func(path string, current, total int64)

// Hasher computes file digests with a fixed algorithm
type Hasher struct {
	algorithm  models.HashAlgorithm
	newHash    func() gohash.Hash
	bufferPool *sync.Pool
	progress   ProgressFunc
}

// New creates a hasher for the given algorithm
func New(algorithm models.HashAlgorithm) (*Hasher, error) {
	var newHash func() gohash.Hash
	switch algorithm {
	case models.HashSHA256, "":
		algorithm = models.HashSHA256
		newHash = sha256.New
	case models.HashSHA512:
		newHash = sha512.New
	case models.HashMD5:
		newHash = md5.New
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", algorithm)
	}

	return &Hasher{
		algorithm: algorithm,
		newHash:   newHash,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, ChunkSize)
				return &buf
			},
		},
	}, nil
}

// Algorithm returns the algorithm in use
func (h *Hasher) Algorithm() models.HashAlgorithm {
	return h.algorithm
}

// SetProgressCallback sets a callback for progress reporting during hashing
func (h *Hasher) SetProgressCallback(fn ProgressFunc) {
	h.progress = fn
}

// Hash computes the digest of path within backend. It never returns an error
// directly: read failures are reported in Result.Err with a NoDigest digest.
func (h *Hasher) Hash(ctx context.Context, backend storage.Backend, path string) Result {
	info, err := backend.Stat(ctx, path)
	if err != nil {
		return Result{Path: path, Err: err}
	}

	reader, err := backend.Read(ctx, path)
	if err != nil {
		return Result{Path: path, Size: info.Size, Err: err}
	}
	defer reader.Close()

	digest, err := h.Sum(ctx, path, reader, info.Size)
	if err != nil {
		return Result{Path: path, Size: info.Size, Err: err}
	}

	return Result{Path: path, Size: info.Size, Digest: digest}
}

// Sum streams reader through the hash in ChunkSize steps
func (h *Hasher) Sum(ctx context.Context, path string, reader io.Reader, size int64) (models.Digest, error) {
	hasher := h.newHash()

	bufPtr := h.bufferPool.Get().(*[]byte)
	buffer := *bufPtr
	defer h.bufferPool.Put(bufPtr)

	var totalRead int64
	var lastReported int64
	lastReportTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return models.NoDigest, ctx.Err()
		default:
		}

		n, err := reader.Read(buffer)
		if n > 0 {
			hasher.Write(buffer[:n])
			totalRead += int64(n)

			if h.progress != nil &&
				(totalRead-lastReported >= progressReportBytes || time.Since(lastReportTime) >= progressReportInterval) {
				h.progress(path, totalRead, size)
				lastReported = totalRead
				lastReportTime = time.Now()
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.NoDigest, fmt.Errorf("failed to read file: %w", err)
		}
	}

	if h.progress != nil && totalRead > lastReported {
		h.progress(path, totalRead, size)
	}

	return models.Digest(hex.EncodeToString(hasher.Sum(nil))), nil
}
