// Package capture implements the pointer watcher that guards an
// in-progress IME composition.
//
// While the IME is composing, a click or a large pointer movement
// means the user has most likely moved to another text field, so the
// pending pre-edit has to be flushed before the next keystroke. The
// watcher parks on a binary gate until the IME reports pre-edit text,
// grabs the pointer on the root window, waits for the first event,
// releases the grab so the event reaches the window the user was
// aiming at, and only then reports the activity.
package capture

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jezek/xgb"

	"mousecap/internal/cfg"
	"mousecap/internal/log"
)

// Conn is the subset of X server operations the watcher needs. It is
// dialed, used and closed entirely on the watcher goroutine.
type Conn interface {
	// Pointer returns the current root-relative pointer position.
	Pointer() (int16, int16, error)

	// Grab grabs the pointer on the root window. Transient failures
	// are reported as x11.ErrAlreadyGrabbed or x11.ErrFrozen.
	Grab() error

	// Ungrab releases the pointer grab.
	Ungrab() error

	// Pending reports whether an event is queued.
	Pending() bool

	// Peek returns the queued event without consuming it, or nil.
	Peek() xgb.Event

	// Sync round-trips with the server, leaving queued events intact.
	Sync()

	// Discard throws away all queued events and syncs with the server.
	Discard()

	// Close closes the connection.
	Close()
}

// DialFunc opens the X connection for the watcher goroutine.
type DialFunc func() (Conn, error)

// Phase describes what the watcher is currently doing.
type Phase int

const (
	// PhaseIdle: parked on the gate, no composition to protect.
	PhaseIdle Phase = iota

	// PhaseWatching: grab held, waiting for pointer activity.
	PhaseWatching

	// PhaseFlushed: activity reported to the IME.
	PhaseFlushed
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseWatching:
		return "watching"
	case PhaseFlushed:
		return "flushed"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the watcher's state, published to
// subscribers on every phase change.
type Status struct {
	Phase   Phase
	X, Y    int16  // Current motion anchor
	Cycles  uint64 // Completed grab cycles
	Flushes uint64 // Activity reports delivered
}

// Capture owns the watcher goroutine and the gate that arms it.
type Capture struct {
	logger     *log.Logger
	dial       DialFunc
	onActivity func()

	// gate is the one-slot binary signal the IME opens whenever
	// pre-edit text is rendered. Opening an open gate is a no-op,
	// which is what makes bursts of composition updates collapse into
	// a single grab cycle.
	gate chan struct{}

	// done is closed exactly once by Stop. Every park and sleep in the
	// watcher selects on it, which bounds shutdown latency by the poll
	// interval.
	done chan struct{}

	running atomic.Bool
	stopped atomic.Bool

	mu   sync.Mutex
	conf cfg.Capture
	sub  chan<- Status

	// Watcher-goroutine state.
	grabbing bool
	cycles   uint64
	flushes  uint64
}

// New creates a watcher. The onActivity callback is invoked from the
// watcher goroutine, strictly after the pointer grab has been
// released; it must not block.
func New(conf cfg.Capture, logger *log.Logger, dial DialFunc, onActivity func()) *Capture {
	return &Capture{
		logger:     logger,
		dial:       dial,
		onActivity: onActivity,
		gate:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		conf:       normalize(conf),
	}
}

// Start spawns the watcher goroutine. Repeated calls, and calls after
// Stop, do nothing. If the display cannot be opened the goroutine
// exits on its own and the control API degrades to a no-op.
func (c *Capture) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped.Load() {
		return
	}
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	go c.run()
}

// Stop asks the watcher to exit and returns without waiting for it.
// The watcher closes the display on its way out. Stop is idempotent,
// and a stopped Capture never restarts.
func (c *Capture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running.Store(false)
	if c.stopped.CompareAndSwap(false, true) {
		close(c.done)
	}
}

// NotifyComposition arms the watcher for one grab cycle. The IME calls
// this every time it renders pre-edit text; calls made while the
// watcher is already armed coalesce into a single cycle.
func (c *Capture) NotifyComposition() {
	if !c.running.Load() {
		return
	}
	c.open()
}

// SetTunables replaces the watcher's tunables. Changes take effect on
// the next grab cycle.
func (c *Capture) SetTunables(conf cfg.Capture) {
	conf = normalize(conf)
	c.mu.Lock()
	c.conf = conf
	c.mu.Unlock()
}

// Subscribe registers a channel for status updates. Sends never
// block; a slow receiver misses intermediate updates.
func (c *Capture) Subscribe(ch chan<- Status) {
	c.mu.Lock()
	c.sub = ch
	c.mu.Unlock()
}

// open opens the gate. A no-op if the gate is already open.
func (c *Capture) open() {
	select {
	case c.gate <- struct{}{}:
	default:
	}
}

func (c *Capture) tunables() cfg.Capture {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conf
}

func (c *Capture) publish(phase Phase, x, y int16) {
	c.mu.Lock()
	sub := c.sub
	c.mu.Unlock()
	if sub == nil {
		return
	}
	select {
	case sub <- Status{Phase: phase, X: x, Y: y, Cycles: c.cycles, Flushes: c.flushes}:
	default:
	}
}

// normalize fills in defaults for unset tunables so a zero value
// config still yields a working watcher.
func normalize(conf cfg.Capture) cfg.Capture {
	def := cfg.Default().Capture
	if conf.MotionThreshold <= 0 {
		conf.MotionThreshold = def.MotionThreshold
	}
	if conf.PollInterval <= 0 {
		conf.PollInterval = def.PollInterval
	}
	if conf.RetryDelay <= 0 {
		conf.RetryDelay = def.RetryDelay
	}
	if conf.BackoffDelay <= 0 {
		conf.BackoffDelay = def.BackoffDelay
	}
	return conf
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
