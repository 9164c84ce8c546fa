//go:build linux || windows

package peripheral

import (
	"context"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/gatt-exchange/api/errorkinds"
	"github.com/sirupsen/logrus"
	ble "tinygo.org/x/bluetooth"
)

// Serve advertises the service, and echoes the writes to its characteristic
// until ctx is done.
func Serve(ctx context.Context, cfg Config, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("service", cfg.Service.String())

	service, err := ble.ParseUUID(cfg.Service.String())
	if err != nil {
		return serveError(ctx, errorkinds.As(errorkinds.ErrInvalidUUID, err), "Cannot use the service identifier")
	}

	char, err := ble.ParseUUID(cfg.Characteristic.String())
	if err != nil {
		return serveError(ctx, errorkinds.As(errorkinds.ErrInvalidUUID, err), "Cannot use the characteristic identifier")
	}

	adapter := ble.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return serveError(ctx, errorkinds.As(errorkinds.ErrTransportUnavailable, err), "Cannot enable the Bluetooth adapter")
	}

	echo := NewEcho(cfg.Initial)

	var handle ble.Characteristic
	onWrite := echo.OnWrite(log, func(value []byte) error {
		_, err := handle.Write(value)
		return err
	})

	err = adapter.AddService(&ble.Service{
		UUID: service,
		Characteristics: []ble.CharacteristicConfig{
			{
				Handle: &handle,
				UUID:   char,
				Value:  echo.Value(),
				Flags:  ble.CharacteristicReadPermission | ble.CharacteristicWritePermission,
				WriteEvent: func(_ ble.Connection, offset int, value []byte) {
					onWrite(offset, value)
				},
			},
		},
	})
	if err != nil {
		return serveError(ctx, errorkinds.As(errorkinds.ErrTransportUnavailable, err), "Cannot register the service")
	}

	adv := adapter.DefaultAdvertisement()
	err = adv.Configure(ble.AdvertisementOptions{
		LocalName:    cfg.Name,
		ServiceUUIDs: []ble.UUID{service},
	})
	if err != nil {
		return serveError(ctx, errorkinds.As(errorkinds.ErrTransportUnavailable, err), "Cannot configure the advertisement")
	}

	if err := adv.Start(); err != nil {
		return serveError(ctx, errorkinds.As(errorkinds.ErrTransportUnavailable, err), "Cannot start advertising")
	}

	log.Infof("Advertising as %q", cfg.Name)
	<-ctx.Done()

	if err := adv.Stop(); err != nil {
		log.WithError(err).Warn("Cannot stop advertising")
	}

	return nil
}

func serveError(ctx context.Context, err error, msg string) error {
	return fault.Wrap(err,
		fctx.With(ctx, "error_at", "serve"),
		ftag.With(ftag.Internal),
		fmsg.With(msg),
	)
}
