//go:build !linux

package platform

import (
	"context"
	"runtime"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/gatt-exchange/api/config"
	"github.com/bluetuith-org/gatt-exchange/api/errorkinds"
	"github.com/bluetuith-org/gatt-exchange/platform/tinygo"
	"github.com/sirupsen/logrus"
)

// New returns the transport selected by the configured backend.
// Only the tinygo backend is available on this platform.
func New(ctx context.Context, cfg config.Configuration, log logrus.FieldLogger) (Transport, PlatformInfo, error) {
	if err := cfg.Validate(); err != nil {
		return nil, PlatformInfo{}, err
	}

	if cfg.Backend == config.BackendBluez {
		return nil, PlatformInfo{}, fault.Wrap(errorkinds.ErrNotSupported,
			ftag.With(ftag.InvalidArgument),
			fmsg.With("The BlueZ backend is only available on Linux"),
		)
	}

	t, err := tinygo.New(ctx, log)
	if err != nil {
		return nil, PlatformInfo{}, err
	}

	return t, NewPlatformInfo(stack()), nil
}

func stack() BluetoothStack {
	switch runtime.GOOS {
	case "windows":
		return MicrosoftBluetoothStack

	case "darwin":
		return CoreBluetoothStack
	}

	return UnknownStack
}
