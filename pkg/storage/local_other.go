//go:build !linux && !darwin && !freebsd && !windows

package storage

import (
	"errors"
	"syscall"
)

func freeSpace(path string) (uint64, error) {
	return 0, ErrFreeSpaceUnsupported
}

func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}
