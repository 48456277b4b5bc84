package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"ghostlan-sim/internal/anticheat"
	"ghostlan-sim/internal/event"
)

// JSONStdoutWriter prints events and detections as JSON lines to STDOUT.
type JSONStdoutWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

func (w *JSONStdoutWriter) print(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}

// WriteEvent outputs an event in JSON format.
func (w *JSONStdoutWriter) WriteEvent(ev event.Event) error {
	return w.print(ev)
}

// WriteDetection outputs a detection wrapped as {"detection": ...} so it can
// be told apart from events on the same stream.
func (w *JSONStdoutWriter) WriteDetection(d anticheat.Detection) error {
	return w.print(struct {
		Detection anticheat.Detection `json:"detection"`
	}{d})
}
