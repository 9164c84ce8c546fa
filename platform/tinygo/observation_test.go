package tinygo

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

var errNotScanning = errors.New("not scanning")

// fakeRadio behaves like an adapter: StopScan fails unless a scan is running,
// and a running scan reports a result every millisecond until it is stopped.
type fakeRadio struct {
	mu       sync.Mutex
	scanning bool
	halt     chan struct{}

	stopCalls chan struct{}
	results   *xsync.Counter
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{
		stopCalls: make(chan struct{}, 64),
		results:   xsync.NewCounter(),
	}
}

func (r *fakeRadio) StopScan() error {
	select {
	case r.stopCalls <- struct{}{}:
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.scanning {
		return errNotScanning
	}

	r.scanning = false
	close(r.halt)

	return nil
}

// scan returns a blocking scan for o, which waits for gate before it starts scanning.
func (r *fakeRadio) scan(o *observation, gate <-chan struct{}) func() error {
	return func() error {
		<-gate

		r.mu.Lock()
		if r.scanning {
			r.mu.Unlock()
			return errors.New("already scanning")
		}

		r.scanning = true
		r.halt = make(chan struct{})
		halt := r.halt
		r.mu.Unlock()

		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-halt:
				return nil

			case <-ticker.C:
				if o.deliver() {
					r.results.Inc()
				}
			}
		}
	}
}

func (r *fakeRadio) isScanning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.scanning
}

func TestObservationStop(t *testing.T) {
	radio := newFakeRadio()
	o := newObservation(radio.StopScan)

	gate := make(chan struct{})
	close(gate)
	o.start(radio.scan(o, gate))

	deadline := time.Now().Add(time.Second)
	for radio.results.Value() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("scan reported no results")
		}
		time.Sleep(time.Millisecond)
	}

	if err := o.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if radio.isScanning() {
		t.Errorf("radio is still scanning after Stop()")
	}

	if err := o.Stop(); err != nil {
		t.Errorf("second Stop() error: %v", err)
	}
}

func TestObservationStopBeforeScan(t *testing.T) {
	radio := newFakeRadio()
	o := newObservation(radio.StopScan)

	if err := o.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	gate := make(chan struct{})
	close(gate)
	o.start(radio.scan(o, gate))

	select {
	case <-o.finished:
	case <-time.After(time.Second):
		t.Fatal("scan started after Stop()")
	}

	if radio.isScanning() {
		t.Errorf("radio is scanning after Stop()")
	}
}

func TestObservationStopWhileStarting(t *testing.T) {
	radio := newFakeRadio()
	o := newObservation(radio.StopScan)

	// The goroutine is past its stopped check, but the adapter is not scanning yet.
	gate := make(chan struct{})
	o.start(radio.scan(o, gate))
	time.Sleep(10 * time.Millisecond)

	stopped := make(chan error, 1)
	go func() { stopped <- o.Stop() }()

	select {
	case <-radio.stopCalls:
	case <-time.After(time.Second):
		t.Fatal("Stop() did not call StopScan")
	}

	close(gate)

	select {
	case err := <-stopped:
		if err != nil {
			t.Errorf("Stop() error: %v", err)
		}

	case <-time.After(ScanStopTimeout + time.Second):
		t.Fatal("Stop() did not return")
	}

	if radio.isScanning() {
		t.Errorf("radio is still scanning after Stop()")
	}
	if n := radio.results.Value(); n != 0 {
		t.Errorf("%d result(s) delivered after Stop()", n)
	}
}
