package models

import (
	"time"
)

// Digest is the lowercase hex encoding of a file's content hash
type Digest string

// NoDigest marks a file whose content could not be read.
// Entries carrying it are never selected for transfer and never reported as duplicates.
const NoDigest Digest = ""

// Valid reports whether the digest was successfully computed
func (d Digest) Valid() bool {
	return d != NoDigest
}

// Short returns the first 12 characters of the digest for display
func (d Digest) Short() string {
	if len(d) <= 12 {
		return string(d)
	}
	return string(d[:12])
}

// SourceEntry is a file discovered in the source tree together with its digest
type SourceEntry struct {
	// RelativePath is the path relative to the source root
	RelativePath string

	// AbsolutePath is the full path on the filesystem
	AbsolutePath string

	// Size in bytes at scan time
	Size int64

	// ModTime is the last modification time at scan time
	ModTime time.Time

	// Permissions are the file mode bits
	Permissions uint32

	// Digest is the content hash, or NoDigest if hashing failed
	Digest Digest

	// Err holds the read failure when Digest is NoDigest
	Err error
}

// Hashed reports whether the entry has a usable digest
func (e SourceEntry) Hashed() bool {
	return e.Digest.Valid()
}

// SourceIndex maps source relative paths to their entries.
// Keys are unique by construction: one entry per discovered file.
type SourceIndex map[string]SourceEntry

// Len returns the number of discovered source files, unreadable ones included
func (idx SourceIndex) Len() int {
	return len(idx)
}

// Unreadable returns the number of entries whose hashing failed
func (idx SourceIndex) Unreadable() int {
	n := 0
	for _, e := range idx {
		if !e.Hashed() {
			n++
		}
	}
	return n
}

// TargetDigestSet is the set of digests present anywhere in the target tree
type TargetDigestSet map[Digest]struct{}

// Add inserts a digest; NoDigest is ignored
func (s TargetDigestSet) Add(d Digest) {
	if d.Valid() {
		s[d] = struct{}{}
	}
}

// Contains reports whether the digest exists in the target tree
func (s TargetDigestSet) Contains(d Digest) bool {
	_, ok := s[d]
	return ok
}

// Selection is an ordered list of source entries chosen by the diff engine
type Selection []SourceEntry

// TotalBytes returns the sum of the sizes of the selected entries
func (s Selection) TotalBytes() int64 {
	var total int64
	for _, e := range s {
		total += e.Size
	}
	return total
}

// Paths returns the relative paths of the selection in order
func (s Selection) Paths() []string {
	paths := make([]string, len(s))
	for i, e := range s {
		paths[i] = e.RelativePath
	}
	return paths
}
