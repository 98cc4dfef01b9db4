package output

import (
	"fmt"
	"io"
	"os"

	"github.com/sdejongh/contentsync/pkg/events"
	"github.com/sdejongh/contentsync/pkg/models"
	"golang.org/x/term"
)

// Formatter defines the interface for output formatting.
// Implementations include human-readable, progress bar and JSON formatters.
// A formatter is an events.Sink: the engine streams events to it while running.
type Formatter interface {
	events.Sink

	// Start initializes the formatter for a new run
	Start(writer io.Writer, op *models.RunOperation) error

	// Complete finalizes output and displays summary
	Complete(report *models.RunReport) error

	// Error reports a run-level error
	Error(err error) error

	// Name returns the formatter name
	Name() string
}

// New returns the formatter for format. With progress set, human output turns
// into progress bars when w is a terminal.
func New(format string, progress bool, w io.Writer) (Formatter, error) {
	switch format {
	case "json":
		return NewJSONFormatter(), nil
	case "human", "":
		if progress && IsTerminal(w) {
			return NewProgressFormatter(), nil
		}
		return NewHumanFormatter(), nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
