package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/gatt-exchange/api/bluetooth"
	"github.com/bluetuith-org/gatt-exchange/api/errorkinds"
	"github.com/bluetuith-org/gatt-exchange/api/eventbus"
	sstore "github.com/bluetuith-org/gatt-exchange/api/helpers/sessionstore"
	"github.com/sirupsen/logrus"
)

// ScanSession runs time-bounded scans for a peripheral matching a criteria.
// Only one scan may run at a time on a session.
type ScanSession struct {
	transport bluetooth.Transport
	store     *sstore.SessionStore

	running atomic.Bool

	options
}

// scanState describes the state of a single scan.
type scanState uint8

const (
	scanObserving scanState = iota
	scanMatched
	scanStopped
)

// scanRun holds the state of a single call to ScanSession.Run.
type scanRun struct {
	criteria bluetooth.MatchCriteria
	store    *sstore.SessionStore

	state   scanState
	target  bluetooth.Advertisement
	matched chan struct{}

	log       logrus.FieldLogger
	publisher Publisher

	mu sync.Mutex
}

// NewScanSession returns a new scan session on the transport.
func NewScanSession(transport bluetooth.Transport, opts ...Option) *ScanSession {
	return &ScanSession{
		transport: transport,
		store:     sstore.NewSessionStore(),
		options:   newOptions(opts),
	}
}

// Registry returns the peripherals observed during the latest scan.
func (s *ScanSession) Registry() *sstore.SessionStore {
	return s.store
}

// Run scans for at most maxDuration, and stops at the first advertisement that matches
// the criteria. Scanning is always stopped before Run returns.
//
// A non-positive maxDuration returns ScanTimedOut immediately, without scanning.
// If the transport cannot start scanning, an error carrying errorkinds.ErrTransportUnavailable
// is returned.
func (s *ScanSession) Run(ctx context.Context, criteria bluetooth.MatchCriteria, maxDuration time.Duration) (bluetooth.ScanOutcome, error) {
	if !s.running.CompareAndSwap(false, true) {
		return bluetooth.ScanOutcome{},
			fault.Wrap(errorkinds.ErrScanInProgress,
				fctx.With(ctx, "error_at", "scan-start"),
				ftag.With(ftag.AlreadyExists),
				fmsg.With("A scan is already running on this session"),
			)
	}
	defer s.running.Store(false)

	s.store.Reset()

	if maxDuration <= 0 {
		return bluetooth.ScanOutcome{Result: bluetooth.ScanTimedOut}, nil
	}
	if ctx.Err() != nil {
		return bluetooth.ScanOutcome{Result: bluetooth.ScanCancelled}, nil
	}

	log := s.log.WithField("service", criteria.RequiredService.String())
	run := &scanRun{
		criteria:  criteria,
		store:     s.store,
		matched:   make(chan struct{}),
		log:       log,
		publisher: s.publisher,
	}

	log.Infof("Starting scan for %s", maxDuration)
	s.publisher.Publish(eventbus.ScanStartedEvent, eventbus.ScanStartedData{Criteria: criteria, Duration: maxDuration})

	observation, err := s.transport.StartObserving(ctx, []bluetooth.ServiceID{criteria.RequiredService}, run.observe)
	if err != nil {
		run.finish(bluetooth.ScanTimedOut)

		return bluetooth.ScanOutcome{},
			fault.Wrap(errorkinds.As(errorkinds.ErrTransportUnavailable, err),
				fctx.With(ctx, "error_at", "scan-start"),
				ftag.With(ftag.Internal),
				fmsg.With("Cannot start observing advertisements"),
			)
	}

	timer := time.NewTimer(maxDuration)
	defer timer.Stop()

	var result bluetooth.ScanResult
	select {
	case <-run.matched:
		result = bluetooth.ScanMatched

	case <-timer.C:
		result = bluetooth.ScanTimedOut

	case <-ctx.Done():
		result = bluetooth.ScanCancelled
	}

	outcome := run.finish(result)
	if err := observation.Stop(); err != nil {
		log.WithError(err).Warn("Cannot stop observing advertisements")
	}

	log.WithField("result", outcome.Result.String()).Infof("Scan complete, %d peripheral(s) seen", s.store.Len())
	s.publisher.Publish(eventbus.ScanStoppedEvent, outcome)

	return outcome, nil
}

// observe handles a single advertisement. Advertisements received after
// the scan left the observing state are dropped.
func (r *scanRun) observe(a bluetooth.Advertisement) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != scanObserving {
		return
	}

	r.store.Record(a)
	r.publisher.Publish(eventbus.DeviceSeenEvent, a)

	if !bluetooth.Matches(a, r.criteria) {
		return
	}

	r.state = scanMatched
	r.target = a
	close(r.matched)

	r.log.WithField("peripheral", a.ID.String()).Infof("Found target device: %s", a.Name)
	r.publisher.Publish(eventbus.TargetMatchedEvent, a)
}

// finish moves the scan out of the observing state, and returns its outcome.
// If a match was already observed, the match is reported regardless of result.
func (r *scanRun) finish(result bluetooth.ScanResult) bluetooth.ScanOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == scanMatched {
		return bluetooth.ScanOutcome{
			Result: bluetooth.ScanMatched,
			Target: r.target.ID,
			Name:   r.target.Name,
		}
	}

	r.state = scanStopped

	return bluetooth.ScanOutcome{Result: result}
}
