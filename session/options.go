// Package session implements the discovery and exchange sessions that run
// on top of a Bluetooth transport.
package session

import (
	"context"
	"time"

	"github.com/bluetuith-org/gatt-exchange/api/eventbus"
	"github.com/sirupsen/logrus"
)

// Publisher describes a sink for session events.
type Publisher interface {
	Publish(id eventbus.EventID, data any)
}

// Option configures a session.
type Option func(*options)

type options struct {
	log       logrus.FieldLogger
	publisher Publisher
}

// WithLogger sets the logger used by the session.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithPublisher sets the sink for the events published by the session.
func WithPublisher(p Publisher) Option {
	return func(o *options) {
		if p != nil {
			o.publisher = p
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		log:       logrus.StandardLogger(),
		publisher: eventbus.Disabled(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// withTimeout bounds ctx by d, if d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, d)
}
