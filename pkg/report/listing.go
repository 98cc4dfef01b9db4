// Package report externalizes the duplicates found in compare mode: a plain
// text listing and an optional compressed archive.
package report

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sdejongh/contentsync/pkg/models"
)

// TimestampLayout is the timestamp embedded in report file names
const TimestampLayout = "20060102_150405"

// DefaultPrefix names duplicate listings when no prefix is configured
const DefaultPrefix = "duplicates"

const maxNameAttempts = 1000

// ListingName returns the base name of a listing for the given time, before
// any collision suffix
func ListingName(prefix string, now time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s_%s.txt", prefix, now.Format(TimestampLayout))
}

// WriteListing writes one absolute source path per line to
// <dir>/<prefix>_YYYYMMDD_HHMMSS.txt and returns the path written. The file
// is created exclusively; when the name is taken a numeric suffix is added
// (_1, _2, ...), so an existing report is never overwritten.
func WriteListing(dir, prefix string, entries models.Selection, now time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	file, path, err := createUnique(dir, ListingName(prefix, now))
	if err != nil {
		return "", err
	}

	w := bufio.NewWriter(file)
	for _, e := range entries {
		p := e.AbsolutePath
		if p == "" {
			p = e.RelativePath
		}
		if _, err := fmt.Fprintln(w, p); err != nil {
			file.Close()
			return path, fmt.Errorf("failed to write listing: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return path, fmt.Errorf("failed to write listing: %w", err)
	}
	if err := file.Close(); err != nil {
		return path, fmt.Errorf("failed to close listing: %w", err)
	}
	return path, nil
}

// createUnique opens dir/name with O_EXCL, falling back to name_N.ext
func createUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	stem := name[:len(name)-len(ext)]

	for i := 0; i < maxNameAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		path := filepath.Join(dir, candidate)

		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return file, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("failed to create %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("no free report name for %s in %s", name, dir)
}
