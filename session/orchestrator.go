package session

import (
	"context"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/bluetuith-org/gatt-exchange/api/bluetooth"
	"github.com/bluetuith-org/gatt-exchange/api/config"
	sstore "github.com/bluetuith-org/gatt-exchange/api/helpers/sessionstore"
)

// Orchestrator discovers a peripheral and, if one is found, runs
// an exchange against it.
type Orchestrator struct {
	transport bluetooth.Transport
	cfg       config.Configuration
	opts      []Option

	scan *ScanSession
}

// NewOrchestrator returns a new orchestrator on the transport.
func NewOrchestrator(transport bluetooth.Transport, cfg config.Configuration, opts ...Option) *Orchestrator {
	return &Orchestrator{
		transport: transport,
		cfg:       cfg,
		opts:      opts,
		scan:      NewScanSession(transport, opts...),
	}
}

// Registry returns the peripherals observed during the latest scan.
func (o *Orchestrator) Registry() *sstore.SessionStore {
	return o.scan.Registry()
}

// Scan runs a scan only, without any exchange.
func (o *Orchestrator) Scan(ctx context.Context, criteria bluetooth.MatchCriteria, maxDuration time.Duration) (bluetooth.ScanOutcome, error) {
	return o.scan.Run(ctx, criteria, maxDuration)
}

// DiscoverAndExchange scans for a peripheral that matches the criteria and, on a match,
// runs the steps against the characteristic of that peripheral.
//
// If no peripheral matched, the returned outcome reports NoTargetFound, and no
// connection is attempted. An error is only returned if the steps are invalid
// or the scan could not be started.
func (o *Orchestrator) DiscoverAndExchange(
	ctx context.Context,
	criteria bluetooth.MatchCriteria,
	maxScanDuration time.Duration,
	char bluetooth.CharacteristicID,
	steps []bluetooth.ExchangeStep,
) (bluetooth.Outcome, error) {
	var outcome bluetooth.Outcome

	if err := bluetooth.ValidateSteps(steps); err != nil {
		return outcome, fault.Wrap(err, fctx.With(ctx, "error_at", "validate-steps"))
	}

	scan, err := o.scan.Run(ctx, criteria, maxScanDuration)
	outcome.Scan = scan
	if err != nil {
		return outcome, err
	}

	if !scan.Matched() {
		return outcome, nil
	}

	outcome.Exchange = NewExchangeSession(o.transport, o.cfg, o.opts...).Run(ctx, scan.Target, char, steps)
	outcome.Exchanged = true

	return outcome, nil
}
