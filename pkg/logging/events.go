package logging

import (
	"context"
	"fmt"

	"github.com/sdejongh/contentsync/pkg/events"
)

// EventSink turns core events into log entries. Per-file failures become
// error entries; per-file progress is logged at debug level.
type EventSink struct {
	ctx    context.Context
	logger Logger
}

// NewEventSink creates a sink writing to logger
func NewEventSink(ctx context.Context, logger Logger) *EventSink {
	return &EventSink{ctx: ctx, logger: logger}
}

func mib(bytes int64) string {
	return fmt.Sprintf("%.2f", float64(bytes)/(1024*1024))
}

// Emit implements events.Sink
func (s *EventSink) Emit(ev events.Event) {
	fields := Fields{"phase": string(ev.Phase)}
	if ev.Path != "" {
		fields["path"] = ev.Path
	}

	switch ev.Kind {
	case events.KindPhaseStarted:
		if ev.Total > 0 {
			fields["files"] = ev.Total
			fields["size_mib"] = mib(ev.Bytes)
		}
		s.logger.Info(s.ctx, "Phase started", fields)

	case events.KindFileDiscovered:
		fields["size"] = ev.Bytes
		s.logger.Debug(s.ctx, "File discovered", fields)

	case events.KindScanError:
		s.logger.Error(s.ctx, "Entry could not be read during scan", ev.Err, fields)

	case events.KindFileHashed:
		fields["size"] = ev.Bytes
		s.logger.Debug(s.ctx, "File hashed", fields)

	case events.KindHashFailed:
		s.logger.Error(s.ctx, "File could not be hashed", ev.Err, fields)

	case events.KindIndexBuilt:
		fields["entries"] = ev.Count
		fields["size_mib"] = mib(ev.Bytes)
		s.logger.Info(s.ctx, "Index built", fields)

	case events.KindSelection:
		fields["files"] = ev.Count
		fields["size_mib"] = mib(ev.Bytes)
		s.logger.Info(s.ctx, "Files selected", fields)

	case events.KindCapacityChecked:
		fields["required_mib"] = mib(ev.Bytes)
		fields["free_mib"] = mib(int64(ev.FreeBytes))
		if ev.Err != nil {
			s.logger.Error(s.ctx, "Not enough free space on target", ev.Err, fields)
			return
		}
		s.logger.Info(s.ctx, "Free space is sufficient", fields)

	case events.KindFileTransferred:
		fields["progress"] = fmt.Sprintf("%d/%d", ev.Count, ev.Total)
		fields["size"] = ev.Bytes
		s.logger.Info(s.ctx, "File transferred", fields)

	case events.KindTransferFailed:
		fields["progress"] = fmt.Sprintf("%d/%d", ev.Count, ev.Total)
		s.logger.Error(s.ctx, "File transfer failed", ev.Err, fields)

	case events.KindListingWritten:
		fields["files"] = ev.Count
		s.logger.Info(s.ctx, "Duplicate listing written", fields)

	case events.KindArchiveWritten:
		fields["files"] = ev.Count
		fields["size_mib"] = mib(ev.Bytes)
		s.logger.Info(s.ctx, "Duplicate archive written", fields)

	case events.KindPhaseCompleted:
		fields["count"] = ev.Count
		if ev.Total > 0 {
			fields["total"] = ev.Total
		}
		s.logger.Info(s.ctx, "Phase completed", fields)

	default:
		s.logger.Debug(s.ctx, string(ev.Kind), fields)
	}
}
