package services

import (
	"sync"
	"time"
)

// DefaultDebounce is the pause after the last keystroke before a search runs.
const DefaultDebounce = 300 * time.Millisecond

// Debouncer runs only the last action triggered for a key within the delay window.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	gen     map[string]uint64
	stopped bool
}

// NewDebouncer creates a Debouncer. A non-positive delay uses DefaultDebounce.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{
		delay:   delay,
		pending: make(map[string]*time.Timer),
		gen:     make(map[string]uint64),
	}
}

// Trigger schedules fn for key, replacing any action still pending for it.
func (d *Debouncer) Trigger(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if t, ok := d.pending[key]; ok {
		t.Stop()
	}
	d.gen[key]++
	gen := d.gen[key]

	d.pending[key] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		// a timer that already fired can still lose to a newer trigger
		if d.stopped || d.gen[key] != gen {
			d.mu.Unlock()
			return
		}
		delete(d.pending, key)
		d.mu.Unlock()
		fn()
	})
}

// Cancel drops the pending action for key, if any.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.pending[key]; ok {
		t.Stop()
		delete(d.pending, key)
	}
	d.gen[key]++
}

// Stop cancels every pending action; later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for key, t := range d.pending {
		t.Stop()
		delete(d.pending, key)
	}
}
