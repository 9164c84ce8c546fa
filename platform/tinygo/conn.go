//go:build !linux

package tinygo

import (
	"context"
	"sync/atomic"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/gatt-exchange/api/bluetooth"
	"github.com/bluetuith-org/gatt-exchange/api/errorkinds"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"
	ble "tinygo.org/x/bluetooth"
)

// MaxAttributeLength is the maximum length of a characteristic value.
const MaxAttributeLength = 512

type connection struct {
	device ble.Device
	chars  *xsync.MapOf[bluetooth.CharacteristicID, ble.DeviceCharacteristic]

	log logrus.FieldLogger

	disconnected atomic.Bool
}

// Connect connects to a peripheral that was observed during a scan.
func (t *Transport) Connect(ctx context.Context, id bluetooth.PeripheralID) (bluetooth.Connection, error) {
	address, ok := t.addresses.Load(id)
	if !ok {
		return nil, fault.Wrap(errorkinds.ErrConnection,
			fctx.With(ctx, "error_at", "connect"),
			ftag.With(ftag.NotFound),
			fmsg.With("Device "+id.String()+" was not observed during a scan"),
		)
	}

	log := t.log.WithField("peripheral", id.String())

	device, err := await(ctx,
		func() (ble.Device, error) {
			return t.adapter.Connect(address, ble.ConnectionParams{})
		},
		func(device ble.Device, err error) {
			if err != nil {
				return
			}

			log.Debug("Disconnecting from a connection that completed after cancellation")
			if err := device.Disconnect(); err != nil {
				log.WithError(err).Warn("Cannot disconnect from device")
			}
		},
	)
	if err != nil {
		return nil, fault.Wrap(errorkinds.As(errorkinds.ErrConnection, err),
			fctx.With(ctx, "error_at", "connect"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot connect to device "+id.String()),
		)
	}

	return &connection{
		device: device,
		chars:  xsync.NewMapOf[bluetooth.CharacteristicID, ble.DeviceCharacteristic](),
		log:    log,
	}, nil
}

// WriteCharacteristic writes data to the characteristic, with a response.
func (c *connection) WriteCharacteristic(ctx context.Context, id bluetooth.CharacteristicID, data []byte) error {
	char, err := c.characteristic(ctx, id)
	if err != nil {
		return err
	}

	_, err = await(ctx, func() (int, error) { return char.Write(data) }, nil)
	if err != nil {
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

	value, err := await(ctx, func() ([]byte, error) {
		buf := make([]byte, MaxAttributeLength)

		n, err := char.Read(buf)
		if err != nil {
			return nil, err
		}

		return buf[:n], nil
	}, nil)
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

	if err := c.device.Disconnect(); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "disconnect"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot disconnect from device"),
		)
	}

	return nil
}

// characteristic returns the characteristic with the provided UUID.
// All characteristics are discovered on the first call, and cached.
func (c *connection) characteristic(ctx context.Context, id bluetooth.CharacteristicID) (ble.DeviceCharacteristic, error) {
	if char, ok := c.chars.Load(id); ok {
		return char, nil
	}

	_, err := await(ctx, func() (struct{}, error) {
		services, err := c.device.DiscoverServices(nil)
		if err != nil {
			return struct{}{}, err
		}

		for _, service := range services {
			chars, err := service.DiscoverCharacteristics(nil)
			if err != nil {
				c.log.WithError(err).Debugf("Cannot discover characteristics of service %s", service.UUID())
				continue
			}

			for _, char := range chars {
				charID, err := bluetooth.ParseUUID(char.UUID().String())
				if err != nil {
					continue
				}

				c.chars.Store(charID, char)
			}
		}

		return struct{}{}, nil
	}, nil)
	if err != nil {
		return ble.DeviceCharacteristic{}, gattError(ctx, err, "Cannot discover device services")
	}

	char, ok := c.chars.Load(id)
	if !ok {
		return char, gattError(ctx, errorkinds.ErrCharacteristicNotFound, "Characteristic "+id.String()+" not found")
	}

	return char, nil
}

func gattError(ctx context.Context, err error, msg string) error {
	return fault.Wrap(errorkinds.As(errorkinds.ErrGatt, err),
		fctx.With(ctx, "error_at", "gatt"),
		ftag.With(ftag.Internal),
		fmsg.With(msg),
	)
}
