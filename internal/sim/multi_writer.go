package sim

import (
	"ghostlan-sim/internal/anticheat"
	"ghostlan-sim/internal/event"
)

// MultiWriter fans events and detections out to multiple writers.
type MultiWriter struct {
	eventWriters     []EventWriter
	detectionWriters []DetectionWriter
}

// NewMultiWriter creates a new MultiWriter. Nil writers are skipped.
func NewMultiWriter(ews []EventWriter, dws []DetectionWriter) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range ews {
		if w != nil {
			mw.eventWriters = append(mw.eventWriters, w)
		}
	}
	for _, w := range dws {
		if w != nil {
			mw.detectionWriters = append(mw.detectionWriters, w)
		}
	}
	return mw
}

// WriteEvent sends an event to all writers.
func (mw *MultiWriter) WriteEvent(ev event.Event) error {
	for _, w := range mw.eventWriters {
		if err := w.WriteEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// WriteEvents sends multiple events to all writers, using batch if supported.
func (mw *MultiWriter) WriteEvents(evs []event.Event) error {
	for _, w := range mw.eventWriters {
		if err := writeEvents(w, evs); err != nil {
			return err
		}
	}
	return nil
}

// WriteDetection sends a detection to all detection writers.
func (mw *MultiWriter) WriteDetection(d anticheat.Detection) error {
	for _, w := range mw.detectionWriters {
		if err := w.WriteDetection(d); err != nil {
			return err
		}
	}
	return nil
}

// WriteDetections sends multiple detections to all detection writers, using batch if supported.
func (mw *MultiWriter) WriteDetections(ds []anticheat.Detection) error {
	for _, w := range mw.detectionWriters {
		if err := writeDetections(w, ds); err != nil {
			return err
		}
	}
	return nil
}
