package desktop

import (
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"karolbroda.com/lyricmotion/internal/logging"
)

const (
	notifyDest  = "org.freedesktop.Notifications"
	notifyPath  = "/org/freedesktop/Notifications"
	notifyIface = "org.freedesktop.Notifications"
	appName     = "lyricmotion"
)

type Notifier interface {
	Notify(summary, body string) error
}

// Nop drops notifications.
type Nop struct{}

func (Nop) Notify(string, string) error { return nil }

// caller is the slice of dbus.BusObject a notifier needs.
type caller interface {
	Call(method string, flags dbus.Flags, args ...any) *dbus.Call
}

type BusNotifier struct {
	obj     caller
	timeout int32
	logger  *slog.Logger
}

func NewBusNotifier(bus *dbus.Conn, logger *slog.Logger) *BusNotifier {
	return &BusNotifier{
		obj:     bus.Object(notifyDest, notifyPath),
		timeout: 5000,
		logger:  logging.OrDiscard(logger).With("component", "notify"),
	}
}

func (n *BusNotifier) Notify(summary, body string) error {
	call := n.obj.Call(notifyIface+".Notify", 0,
		appName,
		uint32(0),
		"video-x-generic",
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{},
		n.timeout,
	)
	if call.Err != nil {
		return fmt.Errorf("send notification: %w", call.Err)
	}
	var id uint32
	if err := call.Store(&id); err == nil {
		n.logger.Debug("notification sent", slog.Any("id", id))
	}
	return nil
}

// Open connects to the session bus when enabled and falls back to Nop when
// the bus is unreachable.
func Open(enabled bool, logger *slog.Logger) (Notifier, func()) {
	if !enabled {
		return Nop{}, func() {}
	}
	bus, err := dbus.ConnectSessionBus()
	if err != nil {
		logging.OrDiscard(logger).Warn("desktop notifications unavailable", slog.Any("error", err))
		return Nop{}, func() {}
	}
	return NewBusNotifier(bus, logger), func() { _ = bus.Close() }
}
