// Package bus exposes the watcher's control surface on the D-Bus
// session bus, so an IME engine running in another process can drive
// mousecap the same way an in-process caller would.
//
// The engine calls NotifyComposition whenever it renders pre-edit
// text and listens for the PointerActivity signal to commit and reset
// its composition state.
package bus

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"mousecap/internal/capture"
	"mousecap/internal/log"
)

const (
	// DefaultName is the well-known bus name claimed by the daemon.
	DefaultName = "io.github.mousecap"

	objectPath dbus.ObjectPath = "/io/github/mousecap/Capture"
	ifaceName                  = "io.github.mousecap.Capture"

	activitySignal = ifaceName + ".PointerActivity"
)

// Service is a live session-bus registration.
type Service struct {
	conn   *dbus.Conn
	logger *log.Logger
}

// handler is the exported D-Bus object. Kept separate from Service so
// only the three control methods end up callable over the bus.
type handler struct {
	mcap *capture.Capture
}

func (h handler) Start() *dbus.Error {
	h.mcap.Start()
	return nil
}

func (h handler) Stop() *dbus.Error {
	h.mcap.Stop()
	return nil
}

func (h handler) NotifyComposition() *dbus.Error {
	h.mcap.NotifyComposition()
	return nil
}

// Listen connects to the session bus, exports the control methods and
// claims the given well-known name.
func Listen(mcap *capture.Capture, name string, logger *log.Logger) (*Service, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	if err = conn.Export(handler{mcap}, objectPath, ifaceName); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("export %s: %w", ifaceName, err)
	}
	node := &introspect.Node{
		Name: string(objectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: ifaceName,
				Methods: []introspect.Method{
					{Name: "Start"},
					{Name: "Stop"},
					{Name: "NotifyComposition"},
				},
				Signals: []introspect.Signal{
					{Name: "PointerActivity"},
				},
			},
		},
	}
	err = conn.Export(
		introspect.NewIntrospectable(node),
		objectPath,
		"org.freedesktop.DBus.Introspectable",
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("export introspection: %w", err)
	}
	reply, err := conn.RequestName(name, dbus.NameFlagDoNotQueue)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("request name %s: %w", name, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		_ = conn.Close()
		return nil, fmt.Errorf("bus name %s is already taken", name)
	}
	logger.Info("listening on session bus as %s", name)
	return &Service{conn: conn, logger: logger}, nil
}

// PointerActivity broadcasts the activity signal. Called from the
// watcher's upcall, after the grab has been released.
func (s *Service) PointerActivity() {
	if err := s.conn.Emit(objectPath, activitySignal); err != nil {
		s.logger.Error("emit %s: %s", activitySignal, err)
	}
}

// Close releases the bus name and closes the connection.
func (s *Service) Close() {
	_ = s.conn.Close()
}
