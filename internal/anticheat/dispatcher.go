package anticheat

import (
	"fmt"
	"log/slog"
	"sync"
)

// Callback observes detections. A returned error is logged and ignored.
type Callback func(Detection) error

// dispatcher runs callbacks on its own goroutine so a slow observer never
// stalls the detection path. Detections are delivered in emission order and
// callbacks in registration order.
type dispatcher struct {
	mu        sync.Mutex
	cond      *sync.Cond
	queue     []Detection
	callbacks []Callback
	closed    bool
	done      chan struct{}
	log       *slog.Logger
}

func newDispatcher(log *slog.Logger) *dispatcher {
	d := &dispatcher{done: make(chan struct{}), log: log}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

func (d *dispatcher) register(cb Callback) {
	d.mu.Lock()
	d.callbacks = append(d.callbacks, cb)
	d.mu.Unlock()
}

// enqueue never blocks. Detections enqueued after close are dropped.
func (d *dispatcher) enqueue(det ...Detection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || len(d.callbacks) == 0 {
		return
	}
	d.queue = append(d.queue, det...)
	d.cond.Signal()
}

func (d *dispatcher) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		batch := d.queue
		d.queue = nil
		cbs := d.callbacks
		d.mu.Unlock()

		for _, det := range batch {
			for i, cb := range cbs {
				if err := d.invoke(cb, det); err != nil {
					d.log.Error("detection callback failed", "callback", i, "detection", det.ID, "error", err)
				}
			}
		}
	}
}

func (d *dispatcher) invoke(cb Callback, det Detection) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return cb(det)
}

// close stops accepting work and waits until the queue is drained.
func (d *dispatcher) close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		d.cond.Signal()
	}
	d.mu.Unlock()
	<-d.done
}
