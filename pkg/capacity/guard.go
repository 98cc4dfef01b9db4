// Package capacity checks that the target filesystem can hold a selection
// before anything is written.
package capacity

import (
	"context"
	"fmt"

	"github.com/sdejongh/contentsync/pkg/events"
	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/storage"
)

const bytesPerMiB = 1024 * 1024

// Decision is the result of a capacity check
type Decision struct {
	Required int64
	Free     uint64
	Allowed  bool
}

// Err returns nil when the transfer may proceed, or an error wrapping
// models.ErrInsufficientCapacity with both figures.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: need %.2f MiB, %.2f MiB free",
		models.ErrInsufficientCapacity, MiB(d.Required), MiB(int64(d.Free)))
}

// HasCapacity reports whether required bytes fit in free bytes.
// A selection exactly filling the free space is allowed.
func HasCapacity(required int64, free uint64) bool {
	if required <= 0 {
		return true
	}
	return uint64(required) <= free
}

// MiB converts a byte count for display
func MiB(bytes int64) float64 {
	return float64(bytes) / bytesPerMiB
}

// Guard queries free space once per check
type Guard struct {
	reporter storage.SpaceReporter
	sink     events.Sink
}

// NewGuard creates a guard over the target's space reporter. sink may be nil.
func NewGuard(reporter storage.SpaceReporter, sink events.Sink) *Guard {
	return &Guard{reporter: reporter, sink: sink}
}

// Check compares required against the free space currently reported
func (g *Guard) Check(ctx context.Context, required int64) (Decision, error) {
	free, err := g.reporter.FreeSpace(ctx)
	if err != nil {
		return Decision{Required: required}, fmt.Errorf("failed to query free space: %w", err)
	}

	d := Decision{
		Required: required,
		Free:     free,
		Allowed:  HasCapacity(required, free),
	}

	ev := events.Event{
		Kind:      events.KindCapacityChecked,
		Phase:     events.PhaseCapacity,
		Bytes:     required,
		FreeBytes: free,
	}
	if !d.Allowed {
		ev.Err = d.Err()
	}
	events.Emit(g.sink, ev)

	return d, nil
}
