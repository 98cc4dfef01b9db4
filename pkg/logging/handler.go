package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// handler serializes entries to one destination. It is shared by a logger and
// every logger derived from it with WithFields.
type handler struct {
	mu     sync.Mutex
	w      io.Writer
	format Format
	level  Level

	// rotation, file destinations only
	file       *os.File
	path       string
	maxSize    int64
	maxBackups int
	size       int64
}

func (h *handler) enabled(level Level) bool {
	return level >= h.level
}

func (h *handler) write(level Level, msg string, err error, base, fields Fields) {
	if !h.enabled(level) {
		return
	}

	merged := make(Fields, len(base)+len(fields))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	var line []byte
	if h.format == FormatJSON {
		var encErr error
		line, encErr = formatJSON(level, msg, err, merged)
		if encErr != nil {
			return
		}
	} else {
		line = formatText(level, msg, err, merged)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.file != nil && h.maxSize > 0 && h.size >= h.maxSize {
		h.rotate()
	}
	n, _ := h.w.Write(line)
	h.size += int64(n)
}

func (h *handler) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file != nil {
		err := h.file.Close()
		h.file = nil
		h.w = io.Discard
		return err
	}
	return nil
}

// rotate shifts path.N to path.N+1, keeps at most maxBackups backups and
// reopens path empty. Must be called with mu held.
func (h *handler) rotate() {
	h.file.Close()

	for i := h.maxBackups - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", h.path, i), fmt.Sprintf("%s.%d", h.path, i+1))
	}
	if h.maxBackups > 0 {
		os.Rename(h.path, h.path+".1")
		os.Remove(fmt.Sprintf("%s.%d", h.path, h.maxBackups+1))
	} else {
		os.Remove(h.path)
	}

	file, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		h.file = nil
		h.w = io.Discard
		return
	}
	h.file = file
	h.w = file
	h.size = 0
}

func formatJSON(level Level, msg string, err error, fields Fields) ([]byte, error) {
	entry := make(map[string]interface{}, len(fields)+4)
	for k, v := range fields {
		entry[k] = v
	}
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	entry["level"] = level.String()
	entry["message"] = msg
	if err != nil {
		entry["error"] = err.Error()
	}

	data, jsonErr := json.Marshal(entry)
	if jsonErr != nil {
		return nil, jsonErr
	}
	return append(data, '\n'), nil
}

func formatText(level Level, msg string, err error, fields Fields) []byte {
	var b strings.Builder
	b.WriteString(time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	fmt.Fprintf(&b, " [%s] %s", level, msg)

	if err != nil {
		fmt.Fprintf(&b, " error=%q", err.Error())
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}

	b.WriteByte('\n')
	return []byte(b.String())
}

// base implements the Logger methods shared by every handler-backed logger
type base struct {
	h      *handler
	fields Fields
}

func (b base) with(fields Fields) base {
	merged := make(Fields, len(b.fields)+len(fields))
	for k, v := range b.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return base{h: b.h, fields: merged}
}

// Debug logs a debug message
func (b base) Debug(ctx context.Context, msg string, fields Fields) {
	b.h.write(DebugLevel, msg, nil, b.fields, fields)
}

// Info logs an info message
func (b base) Info(ctx context.Context, msg string, fields Fields) {
	b.h.write(InfoLevel, msg, nil, b.fields, fields)
}

// Warn logs a warning message
func (b base) Warn(ctx context.Context, msg string, fields Fields) {
	b.h.write(WarnLevel, msg, nil, b.fields, fields)
}

// Error logs an error message
func (b base) Error(ctx context.Context, msg string, err error, fields Fields) {
	b.h.write(ErrorLevel, msg, err, b.fields, fields)
}
