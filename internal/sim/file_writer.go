package sim

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"ghostlan-sim/internal/anticheat"
	"ghostlan-sim/internal/event"
)

// jsonlStream is one JSONL output file, zstd-compressed when its path ends in ".zst".
type jsonlStream struct {
	mu   sync.Mutex
	file *os.File
	zw   *zstd.Encoder
	enc  *json.Encoder
}

func createStream(path string) (*jsonlStream, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s := &jsonlStream{file: f}
	var w io.Writer = f
	if strings.HasSuffix(path, ".zst") {
		zw, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		s.zw, w = zw, zw
	}
	s.enc = json.NewEncoder(w)
	return s, nil
}

func (s *jsonlStream) encode(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(v)
}

func (s *jsonlStream) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.zw != nil {
		errs = append(errs, s.zw.Close())
	}
	errs = append(errs, s.file.Close())
	return errors.Join(errs...)
}

// FileWriter writes events and detections to JSONL files.
type FileWriter struct {
	events     *jsonlStream
	detections *jsonlStream
}

// NewFileWriter creates a FileWriter. detectionPath may be empty to skip the
// detection log.
func NewFileWriter(eventPath, detectionPath string) (*FileWriter, error) {
	es, err := createStream(eventPath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{events: es}
	if detectionPath != "" {
		ds, err := createStream(detectionPath)
		if err != nil {
			es.close()
			return nil, err
		}
		fw.detections = ds
	}
	return fw, nil
}

// DetectionPath derives the detection log path from an event log path,
// keeping a trailing ".zst" so both files share a compression mode.
func DetectionPath(eventPath string) string {
	if base, ok := strings.CutSuffix(eventPath, ".zst"); ok {
		return base + ".detections.zst"
	}
	return eventPath + ".detections"
}

// WriteEvent logs a single event.
func (f *FileWriter) WriteEvent(ev event.Event) error {
	return f.events.encode(ev)
}

// WriteEvents logs multiple events.
func (f *FileWriter) WriteEvents(evs []event.Event) error {
	for _, ev := range evs {
		if err := f.WriteEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// WriteDetection logs a single detection, if enabled.
func (f *FileWriter) WriteDetection(d anticheat.Detection) error {
	if f.detections == nil {
		return nil
	}
	return f.detections.encode(d)
}

// WriteDetections logs multiple detections.
func (f *FileWriter) WriteDetections(ds []anticheat.Detection) error {
	for _, d := range ds {
		if err := f.WriteDetection(d); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes compressed streams and closes the files.
func (f *FileWriter) Close() error {
	err := f.events.close()
	if f.detections != nil {
		err = errors.Join(err, f.detections.close())
	}
	return err
}
