//go:build !linux

package tinygo

import (
	"context"

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

// Transport is a Bluetooth transport that uses the default adapter of the system.
type Transport struct {
	adapter *ble.Adapter

	addresses *xsync.MapOf[bluetooth.PeripheralID, ble.Address]

	log logrus.FieldLogger
}

// probeUUID pairs a service identifier with its stack representation.
type probeUUID struct {
	id   bluetooth.ServiceID
	uuid ble.UUID
}

// New enables the default adapter.
func New(ctx context.Context, log logrus.FieldLogger) (*Transport, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	adapter := ble.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fault.Wrap(errorkinds.As(errorkinds.ErrTransportUnavailable, err),
			fctx.With(ctx, "error_at", "adapter-enable"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot enable the Bluetooth adapter"),
		)
	}

	return &Transport{
		adapter:   adapter,
		addresses: xsync.NewMapOf[bluetooth.PeripheralID, ble.Address](),
		log:       log,
	}, nil
}

// StartObserving starts a scan, and calls fn for every received advertisement.
// The stack cannot list the services of an advertisement, so only the services
// in probe are reported.
func (t *Transport) StartObserving(ctx context.Context, probe []bluetooth.ServiceID, fn func(bluetooth.Advertisement)) (bluetooth.Observation, error) {
	probes := make([]probeUUID, 0, len(probe))
	for _, id := range probe {
		u, err := ble.ParseUUID(id.String())
		if err != nil {
			t.log.WithError(err).Warnf("Cannot use service %s as a scan probe", id)
			continue
		}

		probes = append(probes, probeUUID{id: id, uuid: u})
	}

	o := newObservation(t.adapter.StopScan)
	o.start(func() error {
		return t.adapter.Scan(func(_ *ble.Adapter, result ble.ScanResult) {
			if !o.deliver() {
				return
			}

			adv := bluetooth.Advertisement{
				ID:   bluetooth.PeripheralID(result.Address.String()),
				Name: result.LocalName(),
				RSSI: result.RSSI,
			}

			for _, p := range probes {
				if result.HasServiceUUID(p.uuid) {
					adv.Services = append(adv.Services, p.id)
				}
			}

			t.addresses.Store(adv.ID, result.Address)
			fn(adv)
		})
	})

	if err := o.waitForInitErrors(ctx); err != nil {
		return nil, fault.Wrap(errorkinds.As(errorkinds.ErrTransportUnavailable, err),
			fctx.With(ctx, "error_at", "start-scan"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot start scanning"),
		)
	}

	return o, nil
}

// Close forgets the observed addresses. The adapter stays enabled.
func (t *Transport) Close() error {
	t.addresses.Clear()

	return nil
}
