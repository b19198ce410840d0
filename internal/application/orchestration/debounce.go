package orchestration

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultDebounceDelay is the quiet period before a suggestion fetch
const DefaultDebounceDelay = 300 * time.Millisecond

// ErrSuperseded is returned to a call replaced by a newer one for the same key
var ErrSuperseded = errors.New("superseded by a newer request")

type pendingCall struct {
	superseded chan struct{}
	cancel     context.CancelFunc
	once       sync.Once
}

func (p *pendingCall) supersede() {
	p.once.Do(func() {
		close(p.superseded)
		p.cancel()
	})
}

// Debouncer delays calls per key and lets only the latest one run
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*pendingCall
}

// NewDebouncer creates a debouncer with the given quiet period
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	return &Debouncer{delay: delay, pending: make(map[string]*pendingCall)}
}

// Do waits for the quiet period and then runs fn, unless a newer call for
// key arrives first. A superseded call returns ErrSuperseded; if fn was
// already running its context is cancelled.
func (d *Debouncer) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	call := &pendingCall{superseded: make(chan struct{}), cancel: cancel}

	d.mu.Lock()
	if prev, ok := d.pending[key]; ok {
		prev.supersede()
	}
	d.pending[key] = call
	d.mu.Unlock()

	timer := time.NewTimer(d.delay)
	defer timer.Stop()

	select {
	case <-call.superseded:
		return ErrSuperseded
	case <-ctx.Done():
		d.release(key, call)
		return ctx.Err()
	case <-timer.C:
	}

	if !d.current(key, call) {
		return ErrSuperseded
	}

	err := fn(runCtx)
	d.release(key, call)

	select {
	case <-call.superseded:
		return ErrSuperseded
	default:
	}
	return err
}

// Pending reports how many keys have a call waiting or running
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Debouncer) current(key string, call *pendingCall) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending[key] == call
}

func (d *Debouncer) release(key string, call *pendingCall) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending[key] == call {
		delete(d.pending, key)
	}
}
