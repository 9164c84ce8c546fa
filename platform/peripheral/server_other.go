//go:build !linux && !windows

package peripheral

import (
	"context"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/gatt-exchange/api/errorkinds"
	"github.com/sirupsen/logrus"
)

// Serve is not available on this platform.
func Serve(context.Context, Config, logrus.FieldLogger) error {
	return fault.Wrap(errorkinds.ErrNotSupported,
		ftag.With(ftag.InvalidArgument),
		fmsg.With("Serving a peripheral is only available on Linux and Windows"),
	)
}
