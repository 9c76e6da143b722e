package cli

import (
	"strings"

	"github.com/guri-assistant/guri/pkg/buffer"
)

// LogWriter is an io.Writer that captures log lines for the status
// frame. Lines land in a bounded ring and on a non-blocking channel for
// redraw wakeups.
type LogWriter struct {
	ring *buffer.Ring[string]
	ch   chan string
}

func NewLogWriter(maxLines int) *LogWriter {
	return &LogWriter{
		ring: buffer.NewRing[string](maxLines),
		ch:   make(chan string, 100),
	}
}

func (w *LogWriter) Write(p []byte) (int, error) {
	text := strings.TrimRight(string(p), "\n")
	for _, line := range strings.Split(text, "\n") {
		w.ring.Add(line)
		select {
		case w.ch <- line:
		default:
		}
	}
	return len(p), nil
}

// Lines returns the buffered lines, oldest first.
func (w *LogWriter) Lines() []string {
	return w.ring.Snapshot()
}

// Tail returns the trailing n lines.
func (w *LogWriter) Tail(n int) []string {
	return w.ring.Tail(n)
}

// Updates signals each captured line; receivers use it to trigger a
// redraw and must not rely on receiving every line.
func (w *LogWriter) Updates() <-chan string {
	return w.ch
}
