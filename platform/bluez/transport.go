//go:build linux

// Package bluez implements a Bluetooth transport over the BlueZ D-Bus API.
package bluez

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/gatt-exchange/api/bluetooth"
	"github.com/bluetuith-org/gatt-exchange/api/errorkinds"
	"github.com/bluetuith-org/gatt-exchange/platform/bluez/internal/commands"
	"github.com/bluetuith-org/gatt-exchange/platform/bluez/internal/events"
	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

// CleanupTimeout bounds the method calls made while stopping a scan or
// releasing a connection.
const CleanupTimeout = 5 * time.Second

// Transport is a Bluetooth transport that uses a BlueZ adapter.
type Transport struct {
	conn    *dbus.Conn
	adapter dbus.ObjectPath

	log logrus.FieldLogger
}

// observation holds a running discovery on the adapter.
type observation struct {
	t *Transport

	signals chan *dbus.Signal
	matches [][]dbus.MatchOption

	done chan struct{}
	wg   sync.WaitGroup

	once    sync.Once
	stopErr error
}

// New connects to the system bus, and checks that the adapter exists and is powered on.
func New(ctx context.Context, adapterID string, log logrus.FieldLogger) (*Transport, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fault.Wrap(errorkinds.As(errorkinds.ErrTransportUnavailable, err),
			fctx.With(ctx, "error_at", "dbus-connect"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot connect to the system bus"),
		)
	}

	t := &Transport{
		conn:    conn,
		adapter: dbus.ObjectPath("/org/bluez/" + adapterID),
		log:     log.WithField("adapter", adapterID),
	}

	powered, err := commands.GetProperty(commands.AdapterInterface, "Powered").ExecuteWith(ctx, t.adapterObject())
	if err != nil {
		conn.Close()

		return nil, fault.Wrap(errorkinds.As(errorkinds.ErrTransportUnavailable, err),
			fctx.With(ctx, "error_at", "adapter-properties"),
			ftag.With(ftag.NotFound),
			fmsg.With("Cannot find adapter '"+adapterID+"'"),
		)
	}

	if on, _ := powered.Value().(bool); !on {
		conn.Close()

		return nil, fault.Wrap(errorkinds.ErrTransportUnavailable,
			fctx.With(ctx, "error_at", "adapter-powered"),
			ftag.With(ftag.Internal),
			fmsg.With("Adapter '"+adapterID+"' is powered off"),
		)
	}

	return t, nil
}

// Close closes the connection to the system bus.
func (t *Transport) Close() error {
	return t.conn.Close()
}

// StartObserving starts discovery on the adapter, and calls fn for every
// advertisement reported by BlueZ. The probe list is not needed, since
// BlueZ reports every advertised service.
func (t *Transport) StartObserving(ctx context.Context, _ []bluetooth.ServiceID, fn func(bluetooth.Advertisement)) (bluetooth.Observation, error) {
	adapter := t.adapterObject()

	known, err := t.knownDevices(ctx)
	if err != nil {
		return nil, t.observeError(ctx, err, "Cannot list known devices")
	}

	if _, err := commands.SetDiscoveryFilter().ExecuteWith(ctx, adapter); err != nil {
		t.log.WithError(err).Warn("Cannot set discovery filter")
	}

	o := &observation{
		t:       t,
		signals: make(chan *dbus.Signal, 128),
		matches: [][]dbus.MatchOption{
			{
				dbus.WithMatchObjectPath("/"),
				dbus.WithMatchInterface(commands.ObjectManagerInterface),
				dbus.WithMatchMember(commands.InterfacesAddedSignal),
			},
			{
				dbus.WithMatchPathNamespace(t.adapter),
				dbus.WithMatchInterface(commands.PropertiesInterface),
				dbus.WithMatchMember(commands.PropertiesChangedSignal),
				dbus.WithMatchArg(0, commands.DeviceInterface),
			},
		},
		done: make(chan struct{}),
	}

	for _, match := range o.matches {
		if err := t.conn.AddMatchSignalContext(ctx, match...); err != nil {
			o.removeMatches()
			return nil, t.observeError(ctx, err, "Cannot subscribe to device signals")
		}
	}
	t.conn.Signal(o.signals)

	if _, err := commands.StartDiscovery().ExecuteWith(ctx, adapter); err != nil {
		t.conn.RemoveSignal(o.signals)
		o.removeMatches()

		return nil, t.observeError(ctx, err, "Cannot start discovery")
	}

	o.wg.Add(1)
	go o.listen(known, fn)

	return o, nil
}

// Stop stops discovery and the signal listener.
func (o *observation) Stop() error {
	o.once.Do(func() {
		o.t.conn.RemoveSignal(o.signals)
		close(o.done)
		o.wg.Wait()

		o.removeMatches()

		ctx, cancel := context.WithTimeout(context.Background(), CleanupTimeout)
		defer cancel()

		if _, err := commands.StopDiscovery().ExecuteWith(ctx, o.t.adapterObject()); err != nil {
			o.stopErr = fault.Wrap(err,
				fctx.With(ctx, "error_at", "stop-discovery"),
				ftag.With(ftag.Internal),
				fmsg.With("Cannot stop discovery"),
			)
		}
	})

	return o.stopErr
}

func (o *observation) listen(known map[dbus.ObjectPath]events.DeviceProperties, fn func(bluetooth.Advertisement)) {
	defer o.wg.Done()

	prefix := string(o.t.adapter) + "/"

	for {
		select {
		case <-o.done:
			return

		case sig, ok := <-o.signals:
			if !ok {
				return
			}

			ev, ok := events.ParseSignal(sig)
			if !ok || !strings.HasPrefix(string(ev.Path), prefix) {
				continue
			}

			props := known[ev.Path].Merge(ev)
			known[ev.Path] = props

			if !ev.IsAdvertisement() {
				continue
			}

			if adv, ok := props.Advertisement(); ok {
				fn(adv)
			}
		}
	}
}

func (o *observation) removeMatches() {
	for _, match := range o.matches {
		if err := o.t.conn.RemoveMatchSignal(match...); err != nil {
			o.t.log.WithError(err).Debug("Cannot remove signal match")
		}
	}
}

// knownDevices returns the properties of the devices already known to the adapter,
// so that property changes of cached devices can be converted to advertisements.
func (t *Transport) knownDevices(ctx context.Context) (map[dbus.ObjectPath]events.DeviceProperties, error) {
	objects, err := commands.GetManagedObjects().ExecuteWith(ctx, t.rootObject())
	if err != nil {
		return nil, err
	}

	prefix := string(t.adapter) + "/"
	known := make(map[dbus.ObjectPath]events.DeviceProperties)
	for path, ifaces := range objects {
		props, ok := ifaces[commands.DeviceInterface]
		if !ok || !strings.HasPrefix(string(path), prefix) {
			continue
		}

		known[path] = props
	}

	return known, nil
}

func (t *Transport) observeError(ctx context.Context, err error, msg string) error {
	return fault.Wrap(errorkinds.As(errorkinds.ErrTransportUnavailable, err),
		fctx.With(ctx, "error_at", "start-observing"),
		ftag.With(ftag.Internal),
		fmsg.With(msg),
	)
}

func (t *Transport) adapterObject() dbus.BusObject {
	return t.conn.Object(commands.BluezBusName, t.adapter)
}

func (t *Transport) rootObject() dbus.BusObject {
	return t.conn.Object(commands.BluezBusName, "/")
}

// devicePath returns the object path of a device on the adapter.
func devicePath(adapter dbus.ObjectPath, id bluetooth.PeripheralID) dbus.ObjectPath {
	address := strings.ReplaceAll(strings.ToUpper(id.String()), ":", "_")

	return dbus.ObjectPath(string(adapter) + "/dev_" + address)
}
