// Package x11 provides a thin client over the X server for grabbing
// the pointer and inspecting the event queue without consuming it.
//
// A Client is safe to use from a single goroutine other than the one
// that created the process; the underlying xgb connection does its own
// locking, so no global threading setup is needed.
package x11

import (
	"errors"
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgbutil"
	"github.com/jezek/xgbutil/xevent"
)

// Events requested while the pointer grab is held.
const maskPointer = uint16(xproto.EventMaskButtonPress | xproto.EventMaskPointerMotion)

// Pointer grab failures. AlreadyGrabbed and Frozen are transient;
// the rest are not worth retrying.
var (
	ErrAlreadyGrabbed = errors.New("pointer already grabbed")
	ErrFrozen         = errors.New("pointer grab frozen")
	ErrNotViewable    = errors.New("grab window not viewable")
	ErrInvalidTime    = errors.New("invalid grab time")
)

// Client maintains a connection with the X server.
type Client struct {
	xu   *xgbutil.XUtil
	conn *xgb.Conn
	root xproto.Window
}

// Connect opens a connection to the X server and captures the root
// window of the default screen.
func Connect() (*Client, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, err
	}
	return &Client{
		xu:   xu,
		conn: xu.Conn(),
		root: xu.RootWin(),
	}, nil
}

// Pointer returns the current root-relative pointer position.
func (c *Client) Pointer() (int16, int16, error) {
	reply, err := xproto.QueryPointer(c.conn, c.root).Reply()
	if err != nil {
		return 0, 0, err
	}
	return reply.RootX, reply.RootY, nil
}

// Grab grabs the pointer on the root window, diverting button presses
// and pointer motion to this client. Both the pointer and the keyboard
// stay in asynchronous mode so the rest of the desktop keeps running.
func (c *Client) Grab() error {
	reply, err := xproto.GrabPointer(
		c.conn,
		false,
		c.root,
		maskPointer,
		xproto.GrabModeAsync,
		xproto.GrabModeAsync,
		xproto.WindowNone,
		xproto.CursorNone,
		xproto.TimeCurrentTime,
	).Reply()
	if err != nil {
		return err
	}
	switch reply.Status {
	case xproto.GrabStatusSuccess:
		return nil
	case xproto.GrabStatusAlreadyGrabbed:
		return ErrAlreadyGrabbed
	case xproto.GrabStatusFrozen:
		return ErrFrozen
	case xproto.GrabStatusNotViewable:
		return ErrNotViewable
	case xproto.GrabStatusInvalidTime:
		return ErrInvalidTime
	default:
		return fmt.Errorf("grab pointer: unknown status %d", reply.Status)
	}
}

// Ungrab releases any pointer grab held by this client.
func (c *Client) Ungrab() error {
	return xproto.UngrabPointerChecked(c.conn, xproto.TimeCurrentTime).Check()
}

// Pending reports whether at least one event is queued. It pulls
// everything the server has already sent onto the client-side queue
// without blocking, dropping X errors along the way.
func (c *Client) Pending() bool {
	xevent.Read(c.xu, false)
	for !xevent.Empty(c.xu) {
		if queue := xevent.Peek(c.xu); queue[0].Err != nil {
			xevent.Dequeue(c.xu)
			continue
		}
		return true
	}
	return false
}

// Peek returns the event at the head of the queue without removing
// it, or nil if the queue is empty.
func (c *Client) Peek() xgb.Event {
	if queue := xevent.Peek(c.xu); len(queue) > 0 {
		return queue[0].Event
	}
	return nil
}

// Sync round-trips with the server so every request sent so far has
// been processed. Queued events are left alone.
func (c *Client) Sync() {
	c.xu.Sync()
}

// Discard throws away every queued event and round-trips with the
// server so that anything generated while the grab was held is gone
// before the grab's owner acts on it.
func (c *Client) Discard() {
	c.xu.Sync()
	xevent.Read(c.xu, false)
	for !xevent.Empty(c.xu) {
		xevent.Dequeue(c.xu)
	}
}

// Close closes the connection with the X server.
func (c *Client) Close() {
	c.conn.Close()
}
