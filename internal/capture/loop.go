package capture

import (
	"errors"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"mousecap/internal/cfg"
	"mousecap/internal/x11"
)

// run is the watcher goroutine. It owns the X connection for its
// whole lifetime: the display is opened here, used only here, and
// closed here once the loop exits.
func (c *Capture) run() {
	conn, err := c.dial()
	if err != nil {
		c.logger.Error("open display: %s", err)
		return
	}
	defer conn.Close()

	// Seed the motion anchor from wherever the pointer is right now.
	// The anchor only moves when a motion event actually flushes the
	// composition, so a long run of small movements can drift past the
	// threshold eventually. That matches how users behave: many tiny
	// adjustments in a row still add up to leaving the field.
	anchorX, anchorY, err := conn.Pointer()
	if err != nil {
		c.logger.Warn("query pointer: %s", err)
	}

	for {
		c.publish(PhaseIdle, anchorX, anchorY)

		// Park until the IME has pre-edit text worth protecting. The
		// pointer is never grabbed while parked here, so an idle IME
		// costs the desktop nothing.
		select {
		case <-c.gate:
		case <-c.done:
			return
		}
		select {
		case <-c.done:
			return
		default:
		}

		conf := c.tunables()
		if !c.grab(conn, conf) {
			return
		}
		c.publish(PhaseWatching, anchorX, anchorY)

		evt, ok := c.await(conn, millis(conf.PollInterval))

		// Release before doing anything else. The grab must be gone
		// before the IME is told, so the user's click lands in the
		// window they clicked rather than being absorbed.
		c.release(conn)
		if !ok {
			return
		}
		c.cycles++

		switch evt := evt.(type) {
		case xproto.MotionNotifyEvent:
			dx := delta(evt.RootX, anchorX)
			dy := delta(evt.RootY, anchorY)
			if dx >= conf.MotionThreshold || dy >= conf.MotionThreshold {
				c.flush()
				anchorX, anchorY = evt.RootX, evt.RootY
				c.publish(PhaseFlushed, anchorX, anchorY)
			} else {
				// Too small to mean a focus change. Re-arm without
				// bothering the IME and keep watching.
				c.logger.Debug("motion below threshold (%d, %d), re-arming", dx, dy)
				c.open()
			}
		default:
			// Button presses, and anything else that slips through the
			// event mask, always count as activity.
			c.flush()
			c.publish(PhaseFlushed, anchorX, anchorY)
		}
	}
}

// grab acquires the pointer grab, retrying transient failures until it
// succeeds or the watcher is stopped. Returns false when the loop
// should exit: either shutdown or a grab failure that retrying won't
// fix.
func (c *Capture) grab(conn Conn, conf cfg.Capture) bool {
	for {
		select {
		case <-c.done:
			return false
		default:
		}
		if c.grabbing {
			// A previous attempt left a grab outstanding. Drop it,
			// sync so the server has seen the ungrab, and give whoever
			// we were fighting with room to finish before trying again.
			// Events that arrived in the meantime stay queued; the user
			// activity they carry is still wanted once the grab lands.
			if err := conn.Ungrab(); err != nil {
				c.logger.Error("ungrab pointer: %s", err)
			}
			conn.Sync()
			c.grabbing = false
			c.logger.Warn("grab pointer: dropped stale grab, backing off")
			if !c.sleep(millis(conf.BackoffDelay)) {
				return false
			}
		}
		err := conn.Grab()
		c.grabbing = true
		switch {
		case err == nil:
			c.logger.Debug("grab pointer: acquired")
			return true
		case errors.Is(err, x11.ErrAlreadyGrabbed), errors.Is(err, x11.ErrFrozen):
			c.logger.Warn("grab pointer: %s, retrying", err)
			if !c.sleep(millis(conf.RetryDelay)) {
				return false
			}
		default:
			c.logger.Error("grab pointer: %s", err)
			return false
		}
	}
}

// await polls for the first event to arrive while the grab is held.
// The event is peeked, not consumed, so it stays on the queue until
// release discards it. Returns false on shutdown.
func (c *Capture) await(conn Conn, poll time.Duration) (xgb.Event, bool) {
	for {
		if conn.Pending() {
			if evt := conn.Peek(); evt != nil {
				return evt, true
			}
		}
		if !c.sleep(poll) {
			return nil, false
		}
	}
}

// release drops the grab and throws away everything it absorbed.
func (c *Capture) release(conn Conn) {
	if err := conn.Ungrab(); err != nil {
		c.logger.Error("ungrab pointer: %s", err)
	}
	conn.Discard()
	c.grabbing = false
}

func (c *Capture) flush() {
	c.flushes++
	if c.onActivity != nil {
		c.onActivity()
	}
}

// sleep waits for the given duration, returning false if the watcher
// was stopped in the meantime.
func (c *Capture) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-c.done:
		return false
	}
}

func delta(a, b int16) int {
	d := int(a) - int(b)
	if d < 0 {
		return -d
	}
	return d
}
