package session

import (
	"bytes"
	"context"
	"sync/atomic"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/gatt-exchange/api/bluetooth"
	"github.com/bluetuith-org/gatt-exchange/api/config"
	"github.com/bluetuith-org/gatt-exchange/api/errorkinds"
	"github.com/bluetuith-org/gatt-exchange/api/eventbus"
	"github.com/sirupsen/logrus"
)

// ExchangeSession runs an ordered sequence of writes and reads against
// a single characteristic of a peripheral, over one connection.
type ExchangeSession struct {
	transport bluetooth.Transport
	cfg       config.Configuration

	running atomic.Bool

	options
}

// NewExchangeSession returns a new exchange session on the transport.
// The settle delay and the connection and operation timeouts are taken from cfg.
func NewExchangeSession(transport bluetooth.Transport, cfg config.Configuration, opts ...Option) *ExchangeSession {
	return &ExchangeSession{
		transport: transport,
		cfg:       cfg,
		options:   newOptions(opts),
	}
}

// Run connects to the target and executes the steps in order. Every read directly
// following a write is preceded by the settle delay. The connection is released
// exactly once before Run returns, if it was established.
//
// If the connection cannot be established, no step is run and the outcome is ConnectionFailed.
// If a step fails, the remaining steps are skipped and the outcome is ExchangeFailed,
// with StepIndex set to the index of the failed step and Values holding the reads
// completed before it.
func (e *ExchangeSession) Run(ctx context.Context, target bluetooth.PeripheralID, char bluetooth.CharacteristicID, steps []bluetooth.ExchangeStep) bluetooth.ExchangeOutcome {
	outcome := bluetooth.ExchangeOutcome{Target: target}

	if !e.running.CompareAndSwap(false, true) {
		outcome.Result = bluetooth.ConnectionFailed
		outcome.Err = fault.Wrap(errorkinds.As(errorkinds.ErrConnection, errorkinds.ErrExchangeInProgress),
			fctx.With(ctx, "error_at", "exchange-start"),
			ftag.With(ftag.AlreadyExists),
			fmsg.With("An exchange is already running on this session"),
		)

		return outcome
	}
	defer e.running.Store(false)

	log := e.log.WithFields(logrus.Fields{
		"peripheral":     target.String(),
		"characteristic": char.String(),
	})

	conn, err := e.connect(ctx, target)
	if err != nil {
		log.WithError(err).Error("Cannot connect to peripheral")
		e.publisher.Publish(eventbus.DisconnectedEvent, eventbus.ConnectionData{Target: target, Err: err})

		outcome.Result = bluetooth.ConnectionFailed
		outcome.Err = err

		return outcome
	}

	log.Info("Connected")
	e.publisher.Publish(eventbus.ConnectedEvent, eventbus.ConnectionData{Target: target})

	defer func() {
		err := conn.Disconnect()
		if err != nil {
			log.WithError(err).Warn("Cannot disconnect from peripheral")
		} else {
			log.Info("Disconnected")
		}

		e.publisher.Publish(eventbus.DisconnectedEvent, eventbus.ConnectionData{Target: target, Err: err})
	}()

	previous := bluetooth.StepNone
	for i, step := range steps {
		value, err := e.runStep(ctx, conn, char, step, previous)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = errorkinds.As(ctxErr, err)
			}

			log.WithError(err).WithField("step", i).Errorf("Exchange failed at %s step", step.Kind)

			outcome.Result = bluetooth.ExchangeFailed
			outcome.StepIndex = i
			outcome.Err = fault.Wrap(err,
				fctx.With(ctx, "error_at", "exchange-step"),
				fmsg.With("Exchange failed at step "+step.String()),
			)

			return outcome
		}

		data := step.Payload
		if step.Kind == bluetooth.StepRead {
			data = value
			outcome.Values = append(outcome.Values, value)
		}

		log.WithField("step", i).Debugf("%s: %x", step.Kind, data)
		e.publisher.Publish(eventbus.StepCompletedEvent, eventbus.StepData{
			Target: target,
			Index:  i,
			Kind:   step.Kind,
			Value:  data,
		})

		previous = step.Kind
	}

	outcome.Result = bluetooth.ExchangeCompleted

	return outcome
}

// connect establishes a connection to the target, bounded by the connection timeout.
func (e *ExchangeSession) connect(ctx context.Context, target bluetooth.PeripheralID) (bluetooth.Connection, error) {
	connectCtx, cancel := withTimeout(ctx, e.cfg.ConnectTimeout)
	defer cancel()

	conn, err := e.transport.Connect(connectCtx, target)
	if err == nil && conn == nil {
		err = errorkinds.ErrConnection
	}
	if err != nil {
		if ctxErr := connectCtx.Err(); ctxErr != nil {
			err = errorkinds.As(ctxErr, err)
		}

		return nil, fault.Wrap(errorkinds.As(errorkinds.ErrConnection, err),
			fctx.With(ctx, "error_at", "connect"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot connect to "+target.String()),
		)
	}

	return conn, nil
}

// runStep executes a single step. A read that directly follows a write
// waits for the settle delay before it is issued.
func (e *ExchangeSession) runStep(
	ctx context.Context,
	conn bluetooth.Connection,
	char bluetooth.CharacteristicID,
	step bluetooth.ExchangeStep,
	previous bluetooth.StepKind,
) ([]byte, error) {
	switch step.Kind {
	case bluetooth.StepWrite:
		opCtx, cancel := withTimeout(ctx, e.cfg.OperationTimeout)
		defer cancel()

		return nil, errorkinds.As(errorkinds.ErrGatt, conn.WriteCharacteristic(opCtx, char, step.Payload))

	case bluetooth.StepRead:
		if previous == bluetooth.StepWrite {
			if err := settle(ctx, e.cfg.SettleDelay); err != nil {
				return nil, err
			}
		}

		opCtx, cancel := withTimeout(ctx, e.cfg.OperationTimeout)
		defer cancel()

		value, err := conn.ReadCharacteristic(opCtx, char)
		if err != nil {
			return nil, errorkinds.As(errorkinds.ErrGatt, err)
		}

		return bytes.Clone(value), nil
	}

	return nil, fault.Wrap(errorkinds.ErrInvalidStep,
		ftag.With(ftag.InvalidArgument),
		fmsg.With("Unknown step kind"),
	)
}

// settle waits for d, or until ctx is cancelled.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil

	case <-ctx.Done():
		return ctx.Err()
	}
}
