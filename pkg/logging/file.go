package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileLoggerConfig holds configuration for file logging
type FileLoggerConfig struct {
	// Path is the log file path
	Path string
	// Format is the output format (json or text)
	Format Format
	// Level is the minimum log level
	Level Level
	// MaxSize is the maximum size in bytes before rotation (0 = no rotation)
	MaxSize int64
	// MaxBackups is the maximum number of backup files to keep
	MaxBackups int
}

// FileLogger writes entries to a file, rotating it by size
type FileLogger struct {
	base
}

// NewFileLogger opens (or creates) the log file in append mode
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(config.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	return &FileLogger{base: base{h: &handler{
		w:          file,
		format:     config.Format,
		level:      config.Level,
		file:       file,
		path:       config.Path,
		maxSize:    config.MaxSize,
		maxBackups: config.MaxBackups,
		size:       info.Size(),
	}}}, nil
}

// WithFields returns a logger sharing this file with additional fields
func (l *FileLogger) WithFields(fields Fields) Logger {
	return &FileLogger{base: l.with(fields)}
}

// Close closes the log file. Loggers derived with WithFields stop writing.
func (l *FileLogger) Close() error {
	return l.h.close()
}

// WriterLogger writes entries to an arbitrary stream such as stderr
type WriterLogger struct {
	base
}

// NewWriterLogger creates a logger writing to w
func NewWriterLogger(w io.Writer, format Format, level Level) *WriterLogger {
	return &WriterLogger{base: base{h: &handler{
		w:      w,
		format: format,
		level:  level,
	}}}
}

// WithFields returns a logger sharing this stream with additional fields
func (l *WriterLogger) WithFields(fields Fields) Logger {
	return &WriterLogger{base: l.with(fields)}
}

// Close does nothing; the stream belongs to the caller
func (l *WriterLogger) Close() error {
	return nil
}
