package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

const (
	busName       = "org.bluez"
	bluezRootPath = "/org/bluez"
	deviceIface   = "org.bluez.Device1"
	objMgrIface   = "org.freedesktop.DBus.ObjectManager"
	propsIface    = "org.freedesktop.DBus.Properties"
	propsSignal   = "org.freedesktop.DBus.Properties.PropertiesChanged"
)

var errEnumeration = errors.New("enumerate connected devices")

// managedObjects is the reply of ObjectManager.GetManagedObjects:
// object path -> interface -> property -> value.
type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// addressFromPath extracts a MAC address from a BlueZ device object path
// such as "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF".
func addressFromPath(path dbus.ObjectPath) string {
	s := string(path)
	i := strings.LastIndex(s, "/dev_")
	if i < 0 {
		return ""
	}
	return strings.ReplaceAll(s[i+len("/dev_"):], "_", ":")
}

// bluez lists connected devices over the system D-Bus. The connection is
// dialed on first use and redialed after the bus goes away.
type bluez struct {
	adapter string
	timeout time.Duration
	log     zerolog.Logger

	// dial opens a bus connection with BlueZ present on it.
	dial func() (*dbus.Conn, error)
	// onConnect, if set, runs after every successful dial.
	onConnect func(conn *dbus.Conn)

	mu   sync.Mutex
	conn *dbus.Conn
}

func newBluez(adapter string, timeout time.Duration, logger zerolog.Logger) *bluez {
	return &bluez{
		adapter: adapter,
		timeout: timeout,
		log:     logger.With().Str("component", "bluez").Logger(),
		dial:    dialBluez,
	}
}

// openBluez is newBluez with the connection established up front.
func openBluez(adapter string, timeout time.Duration, logger zerolog.Logger) (*bluez, error) {
	b := newBluez(adapter, timeout, logger)
	if _, err := b.connection(); err != nil {
		return nil, err
	}
	return b, nil
}

func dialBluez() (*dbus.Conn, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	// Quick check that BlueZ is on the bus.
	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.Close()
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	if !slices.Contains(names, busName) {
		conn.Close()
		return nil, fmt.Errorf("org.bluez not found on system bus, is bluetooth.service running?")
	}
	return conn, nil
}

// connection returns the live bus connection, dialing a new one if there is
// none or the previous one was closed.
func (b *bluez) connection() (*dbus.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		if b.conn.Connected() {
			return b.conn, nil
		}
		b.log.Warn().Msg("system bus connection lost, reconnecting")
		b.conn.Close()
		b.conn = nil
	}

	conn, err := b.dial()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errEnumeration, err)
	}
	b.conn = conn
	b.log.Info().Msg("connected to BlueZ")
	if b.onConnect != nil {
		b.onConnect(conn)
	}
	return conn, nil
}

func (b *bluez) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

// ConnectedDevices returns the names of all devices BlueZ reports as
// connected.
func (b *bluez) ConnectedDevices(ctx context.Context) ([]string, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var objects managedObjects
	obj := conn.Object(busName, "/")
	if err := obj.CallWithContext(ctx, objMgrIface+".GetManagedObjects", 0).Store(&objects); err != nil {
		return nil, fmt.Errorf("%w: %w", errEnumeration, err)
	}
	return connectedNames(objects, b.adapter, b.log), nil
}

// connectedNames picks the connected devices out of a GetManagedObjects
// reply. A device whose name cannot be read is left out.
func connectedNames(objects managedObjects, adapter string, logger zerolog.Logger) []string {
	scope := bluezRootPath + "/"
	if adapter != "" {
		scope = bluezRootPath + "/" + adapter + "/"
	}

	var names []string
	for path, ifaces := range objects {
		if !strings.HasPrefix(string(path), scope) {
			continue
		}
		props, ok := ifaces[deviceIface]
		if !ok {
			continue
		}
		connected, ok := props["Connected"].Value().(bool)
		if !ok || !connected {
			continue
		}
		name, ok := props["Name"].Value().(string)
		if !ok {
			logger.Debug().
				Str("address", addressFromPath(path)).
				Msg("connected device has no readable name, skipping")
			continue
		}
		names = append(names, name)
	}
	return names
}

// subscribeConnectionChanges delivers BlueZ PropertiesChanged signals for
// device objects. The channel is closed when conn is.
func subscribeConnectionChanges(conn *dbus.Conn) (chan *dbus.Signal, error) {
	err := conn.BusObject().Call(
		"org.freedesktop.DBus.AddMatch", 0,
		"type='signal',interface='"+propsIface+"',member='PropertiesChanged',path_namespace='"+bluezRootPath+"'",
	).Err
	if err != nil {
		return nil, fmt.Errorf("subscribe to property changes: %w", err)
	}
	ch := make(chan *dbus.Signal, 16)
	conn.Signal(ch)
	return ch, nil
}

// isConnectionChange reports whether sig flips a device's Connected
// property.
func isConnectionChange(sig *dbus.Signal) bool {
	if sig.Name != propsSignal {
		return false
	}
	// Body: [interface_name string, changed_props map[string]Variant, invalidated []string]
	if len(sig.Body) < 2 {
		return false
	}
	iface, ok := sig.Body[0].(string)
	if !ok || iface != deviceIface {
		return false
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return false
	}
	_, ok = changed["Connected"]
	return ok
}
