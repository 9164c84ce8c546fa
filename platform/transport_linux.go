//go:build linux

package platform

import (
	"context"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/gatt-exchange/api/config"
	"github.com/bluetuith-org/gatt-exchange/api/errorkinds"
	"github.com/bluetuith-org/gatt-exchange/platform/bluez"
	"github.com/sirupsen/logrus"
)

// New returns the transport selected by the configured backend.
// Only the BlueZ backend is available on this platform: the tinygo stack
// cannot write to a characteristic with a response on Linux.
func New(ctx context.Context, cfg config.Configuration, log logrus.FieldLogger) (Transport, PlatformInfo, error) {
	if err := cfg.Validate(); err != nil {
		return nil, PlatformInfo{}, err
	}

	if cfg.Backend == config.BackendTinygo {
		return nil, PlatformInfo{}, fault.Wrap(errorkinds.ErrNotSupported,
			ftag.With(ftag.InvalidArgument),
			fmsg.With("The tinygo backend is not available on Linux"),
		)
	}

	t, err := bluez.New(ctx, cfg.AdapterID, log)
	if err != nil {
		return nil, PlatformInfo{}, err
	}

	return t, NewPlatformInfo(BluezStack), nil
}
