// Package events carries structured progress and failure notifications from
// the sync core to whatever presents them. The core never prints; it emits.
package events

import (
	"sync"
	"time"
)

// Kind identifies what happened
type Kind string

const (
	KindPhaseStarted    Kind = "phase_started"
	KindFileDiscovered  Kind = "file_discovered"
	KindScanError       Kind = "scan_error"
	KindFileHashed      Kind = "file_hashed"
	KindHashFailed      Kind = "hash_failed"
	KindIndexBuilt      Kind = "index_built"
	KindSelection       Kind = "selection"
	KindCapacityChecked Kind = "capacity_checked"
	KindFileTransferred Kind = "file_transferred"
	KindTransferFailed  Kind = "transfer_failed"
	KindListingWritten  Kind = "listing_written"
	KindArchiveWritten  Kind = "archive_written"
	KindPhaseCompleted  Kind = "phase_completed"
)

// Phase identifies the stage of a run that produced an event
type Phase string

const (
	PhaseHashSource Phase = "hash_source"
	PhaseHashTarget Phase = "hash_target"
	PhaseDiff       Phase = "diff"
	PhaseCapacity   Phase = "capacity"
	PhaseTransfer   Phase = "transfer"
	PhaseReport     Phase = "report"
)

// Event is a single notification. Fields not relevant to a Kind are zero.
type Event struct {
	Kind  Kind
	Phase Phase

	// Path is the relative path of the file concerned, if any
	Path string

	// Count is a file count (discovered so far, selected, transferred...)
	Count int

	// Total is the expected count when known, 0 otherwise
	Total int

	// Bytes is a byte count (file size, required bytes, bytes written)
	Bytes int64

	// FreeBytes is the free space reported by the target filesystem
	FreeBytes uint64

	// Err is the failure for error kinds
	Err error

	Time time.Time
}

// Sink consumes events. Emit may be called concurrently from hashing workers.
type Sink interface {
	Emit(ev Event)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ev Event)

// Emit calls f(ev)
func (f SinkFunc) Emit(ev Event) {
	f(ev)
}

// Discard drops every event
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans an event out to several sinks in order
type Multi []Sink

// Emit forwards ev to every non-nil sink
func (m Multi) Emit(ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ev)
		}
	}
}

// Emit stamps ev and sends it to sink, tolerating a nil sink
func Emit(sink Sink, ev Event) {
	if sink == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	sink.Emit(ev)
}

// Recorder keeps every event it receives. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit records ev
func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events of the given kind were recorded
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// Filter returns the recorded events of the given kind
func (r *Recorder) Filter(kind Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
