package sync

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sdejongh/contentsync/internal/platform"
	"github.com/sdejongh/contentsync/pkg/models"
)

var (
	// ErrNotDirectory is wrapped when a root exists but is not a directory
	ErrNotDirectory = errors.New("not a directory")
	// ErrSameRoot is wrapped when source and destination resolve to the same directory
	ErrSameRoot = errors.New("source and destination are the same directory")
	// ErrNestedRoots is wrapped when one root lies inside the other
	ErrNestedRoots = errors.New("source and destination must not be nested")
)

// CheckRoots verifies that both roots exist, are readable directories, and
// are neither identical nor nested. It returns the resolved paths, or a
// *models.PreconditionError naming the offending root.
func CheckRoots(source, dest string) (string, string, error) {
	sourceAbs, err := checkRoot(source)
	if err != nil {
		return "", "", err
	}
	destAbs, err := checkRoot(dest)
	if err != nil {
		return "", "", err
	}

	if platform.Contains(sourceAbs, destAbs) && platform.Contains(destAbs, sourceAbs) {
		return "", "", &models.PreconditionError{Root: destAbs, Err: ErrSameRoot}
	}
	if platform.Contains(sourceAbs, destAbs) {
		return "", "", &models.PreconditionError{
			Root: destAbs,
			Err:  fmt.Errorf("%w: destination is inside %s", ErrNestedRoots, sourceAbs),
		}
	}
	if platform.Contains(destAbs, sourceAbs) {
		return "", "", &models.PreconditionError{
			Root: sourceAbs,
			Err:  fmt.Errorf("%w: source is inside %s", ErrNestedRoots, destAbs),
		}
	}

	return sourceAbs, destAbs, nil
}

func checkRoot(path string) (string, error) {
	resolved, err := platform.Resolve(path)
	if err != nil {
		return "", &models.PreconditionError{Root: path, Err: err}
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", &models.PreconditionError{Root: resolved, Err: err}
	}
	if !info.IsDir() {
		return "", &models.PreconditionError{Root: resolved, Err: ErrNotDirectory}
	}

	dir, err := os.Open(resolved)
	if err != nil {
		return "", &models.PreconditionError{Root: resolved, Err: err}
	}
	defer dir.Close()
	if _, err := dir.Readdirnames(1); err != nil && err != io.EOF {
		return "", &models.PreconditionError{Root: resolved, Err: err}
	}

	return resolved, nil
}
