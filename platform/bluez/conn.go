//go:build linux

package bluez

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/gatt-exchange/api/bluetooth"
	"github.com/bluetuith-org/gatt-exchange/api/errorkinds"
	"github.com/bluetuith-org/gatt-exchange/platform/bluez/internal/commands"
	"github.com/bluetuith-org/gatt-exchange/platform/bluez/internal/events"
	"github.com/godbus/dbus/v5"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"
)

// objectResolver returns proxies for remote objects. It is implemented by *dbus.Conn.
type objectResolver interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
}

// connection is a connection to a device object.
type connection struct {
	bus    objectResolver
	path   dbus.ObjectPath
	device dbus.BusObject
	chars  *xsync.MapOf[bluetooth.CharacteristicID, dbus.ObjectPath]

	log logrus.FieldLogger

	disconnected atomic.Bool
}

func newConnection(bus objectResolver, path dbus.ObjectPath, log logrus.FieldLogger) *connection {
	return &connection{
		bus:    bus,
		path:   path,
		device: bus.Object(commands.BluezBusName, path),
		chars:  xsync.NewMapOf[bluetooth.CharacteristicID, dbus.ObjectPath](),
		log:    log,
	}
}

// Connect connects to the device, and waits until its services are resolved.
func (t *Transport) Connect(ctx context.Context, id bluetooth.PeripheralID) (bluetooth.Connection, error) {
	path := devicePath(t.adapter, id)

	match := []dbus.MatchOption{
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(commands.PropertiesInterface),
		dbus.WithMatchMember(commands.PropertiesChangedSignal),
	}
	if err := t.conn.AddMatchSignalContext(ctx, match...); err != nil {
		return nil, connectError(ctx, err, "Cannot subscribe to device signals")
	}
	defer t.conn.RemoveMatchSignal(match...)

	signals := make(chan *dbus.Signal, 16)
	t.conn.Signal(signals)
	defer t.conn.RemoveSignal(signals)

	c := newConnection(t.conn, path, t.log.WithField("peripheral", id.String()))
	if err := c.connect(ctx, signals); err != nil {
		return nil, connectError(ctx, err, "Cannot connect to device "+id.String())
	}

	return c, nil
}

// connect calls Device1.Connect, and waits for the services of the device.
// If the call is abandoned or the services are not resolved, the device is
// disconnected, which also cancels a connection that BlueZ is still establishing.
func (c *connection) connect(ctx context.Context, signals <-chan *dbus.Signal) error {
	if _, err := commands.Connect().ExecuteWith(ctx, c.device); err != nil {
		if ctx.Err() != nil {
			c.release()
		}

		return err
	}

	if err := c.waitServicesResolved(ctx, signals); err != nil {
		c.release()

		return err
	}

	return nil
}

func (c *connection) release() {
	if err := c.Disconnect(); err != nil {
		c.log.WithError(err).Warn("Cannot disconnect after a failed connection")
	}
}

// WriteCharacteristic writes data to the characteristic, with a response.
func (c *connection) WriteCharacteristic(ctx context.Context, id bluetooth.CharacteristicID, data []byte) error {
	char, err := c.characteristic(ctx, id)
	if err != nil {
		return err
	}

	if _, err := commands.WriteValue(data, true).ExecuteWith(ctx, char); err != nil {
		return gattError(ctx, err, "Cannot write to characteristic "+id.String())
	}

	return nil
}

// ReadCharacteristic reads the value of the characteristic.
func (c *connection) ReadCharacteristic(ctx context.Context, id bluetooth.CharacteristicID) ([]byte, error) {
	char, err := c.characteristic(ctx, id)
	if err != nil {
		return nil, err
	}

	value, err := commands.ReadValue().ExecuteWith(ctx, char)
	if err != nil {
		return nil, gattError(ctx, err, "Cannot read from characteristic "+id.String())
	}

	return value, nil
}

// Disconnect disconnects from the device. Only the first call has any effect.
func (c *connection) Disconnect() error {
	if !c.disconnected.CompareAndSwap(false, true) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), CleanupTimeout)
	defer cancel()

	_, err := commands.Disconnect().ExecuteWith(ctx, c.device)
	if err != nil {
		return fault.Wrap(err,
			fctx.With(ctx, "error_at", "disconnect"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot disconnect from device"),
		)
	}

	return nil
}

// waitServicesResolved returns once the services of the device are resolved,
// or with an error if the device disconnects first.
func (c *connection) waitServicesResolved(ctx context.Context, signals <-chan *dbus.Signal) error {
	resolved, err := commands.GetProperty(commands.DeviceInterface, "ServicesResolved").ExecuteWith(ctx, c.device)
	if err != nil {
		return err
	}
	if ok, _ := resolved.Value().(bool); ok {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case sig, ok := <-signals:
			if !ok {
				return errorkinds.ErrSessionNotExist
			}

			ev, ok := events.ParseSignal(sig)
			if !ok || ev.Path != c.path {
				continue
			}

			props := events.DeviceProperties(ev.Changed)
			if props.Bool("ServicesResolved") {
				return nil
			}

			if v, ok := props["Connected"]; ok {
				if connected, _ := v.Value().(bool); !connected {
					return errorkinds.ErrConnection
				}
			}
		}
	}
}

// characteristic returns the object of the characteristic with the provided UUID.
// Characteristic paths are cached for the lifetime of the connection.
func (c *connection) characteristic(ctx context.Context, id bluetooth.CharacteristicID) (dbus.BusObject, error) {
	if path, ok := c.chars.Load(id); ok {
		return c.bus.Object(commands.BluezBusName, path), nil
	}

	objects, err := commands.GetManagedObjects().ExecuteWith(ctx, c.bus.Object(commands.BluezBusName, "/"))
	if err != nil {
		return nil, gattError(ctx, err, "Cannot list device characteristics")
	}

	prefix := string(c.path) + "/"
	for path, ifaces := range objects {
		props, ok := ifaces[commands.CharacteristicInterface]
		if !ok || !strings.HasPrefix(string(path), prefix) {
			continue
		}

		value, _ := props["UUID"].Value().(string)
		charID, err := bluetooth.ParseUUID(value)
		if err != nil {
			continue
		}

		c.chars.Store(charID, path)
	}

	path, ok := c.chars.Load(id)
	if !ok {
		return nil, gattError(ctx, errorkinds.ErrCharacteristicNotFound, "Characteristic "+id.String()+" not found")
	}

	return c.bus.Object(commands.BluezBusName, path), nil
}

func connectError(ctx context.Context, err error, msg string) error {
	return fault.Wrap(errorkinds.As(errorkinds.ErrConnection, err),
		fctx.With(ctx, "error_at", "connect"),
		ftag.With(ftag.Internal),
		fmsg.With(msg),
	)
}

func gattError(ctx context.Context, err error, msg string) error {
	return fault.Wrap(errorkinds.As(errorkinds.ErrGatt, err),
		fctx.With(ctx, "error_at", "gatt"),
		ftag.With(ftag.Internal),
		fmsg.With(msg),
	)
}
