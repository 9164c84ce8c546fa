// Package tinygo implements a Bluetooth transport over tinygo.org/x/bluetooth,
// for macOS and Windows.
package tinygo

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/gatt-exchange/api/errorkinds"
)

const (
	// ScanInitErrTimeout is the time to wait for a scan to report startup errors.
	ScanInitErrTimeout = 250 * time.Millisecond

	// ScanStopTimeout bounds the wait for a stopped scan to return.
	ScanStopTimeout = 5 * time.Second
)

// observation holds a blocking scan running on its own goroutine.
//
// A stop may be requested before the scan has started on the adapter. The
// stopped flag covers that window: a scan that was not started yet is
// skipped, and a scan that started after the stop request is stopped again
// from its callback.
type observation struct {
	stopScan func() error

	finished chan struct{}
	scanErr  error

	stopped atomic.Bool

	once    sync.Once
	stopErr error
}

func newObservation(stopScan func() error) *observation {
	return &observation{
		stopScan: stopScan,
		finished: make(chan struct{}),
	}
}

// start runs scan on a new goroutine. scan must block until the scan ends.
func (o *observation) start(scan func() error) {
	go func() {
		defer close(o.finished)

		if o.stopped.Load() {
			return
		}

		o.scanErr = scan()
	}()
}

// deliver reports whether a scan result should be handled.
// Results received after Stop are dropped, and stop the scan.
func (o *observation) deliver() bool {
	if !o.stopped.Load() {
		return true
	}

	o.stopScan()

	return false
}

// Stop stops the scan, and waits for it to return.
func (o *observation) Stop() error {
	o.once.Do(func() {
		o.stopped.Store(true)

		select {
		case <-o.finished:
			return

		default:
		}

		stopErr := o.stopScan()

		select {
		case <-o.finished:
		case <-time.After(ScanStopTimeout):
			err := errorkinds.ErrMethodTimeout
			if stopErr != nil {
				err = errorkinds.As(errorkinds.ErrMethodTimeout, stopErr)
			}

			o.stopErr = fault.Wrap(err,
				fctx.With(context.Background(), "error_at", "stop-scan"),
				ftag.With(ftag.Internal),
				fmsg.With("Scan did not stop in time"),
			)
		}
	})

	return o.stopErr
}

func (o *observation) waitForInitErrors(ctx context.Context) error {
	timer := time.NewTimer(ScanInitErrTimeout)
	defer timer.Stop()

	select {
	case <-o.finished:
		return o.scanErr

	case <-ctx.Done():
		o.Stop()
		return ctx.Err()

	case <-timer.C:
	}

	return nil
}
