package sim

import (
	"ghostlan-sim/internal/anticheat"
	"ghostlan-sim/internal/event"
)

// EventWriter is an interface to support different event sinks.
type EventWriter interface {
	WriteEvent(event.Event) error
}

// DetectionWriter handles anti-cheat detections.
type DetectionWriter interface {
	WriteDetection(anticheat.Detection) error
}

// Optional: Event writers may support batch mode
type batchEventWriter interface {
	WriteEvents([]event.Event) error
}

// Optional: Detection writers may support batch mode
type batchDetectionWriter interface {
	WriteDetections([]anticheat.Detection) error
}

// DetectionSource pushes detections to registered callbacks.
type DetectionSource interface {
	RegisterDetectionCallback(anticheat.Callback)
}

// Attach streams the orchestrator's events to ew and the engine's detections
// to dw. Either writer may be nil.
func Attach(o *Orchestrator, src DetectionSource, ew EventWriter, dw DetectionWriter) {
	if ew != nil {
		o.RegisterEventCallback(ew.WriteEvent)
	}
	if dw != nil && src != nil {
		src.RegisterDetectionCallback(dw.WriteDetection)
	}
}

// writeEvents sends rows through the batch path when the writer has one.
func writeEvents(w EventWriter, evs []event.Event) error {
	if bw, ok := w.(batchEventWriter); ok {
		return bw.WriteEvents(evs)
	}
	for _, ev := range evs {
		if err := w.WriteEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

func writeDetections(w DetectionWriter, ds []anticheat.Detection) error {
	if bw, ok := w.(batchDetectionWriter); ok {
		return bw.WriteDetections(ds)
	}
	for _, d := range ds {
		if err := w.WriteDetection(d); err != nil {
			return err
		}
	}
	return nil
}
