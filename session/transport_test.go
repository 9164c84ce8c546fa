package session

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/bluetuith-org/gatt-exchange/api/bluetooth"
	"github.com/bluetuith-org/gatt-exchange/api/errorkinds"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	testService = bluetooth.MustParseUUID("e9b4a0f5-0000-4d3c-9e48-5c5d2f0e7b1b")
	testChar    = bluetooth.MustParseUUID("e9b4a0f5-0001-4d3c-9e48-5c5d2f0e7b1b")
	otherUUID   = bluetooth.MustParseUUID("180d")
)

// fakeTransport emits a fixed list of advertisements on its own goroutine,
// and hands out a single fake connection.
type fakeTransport struct {
	advs     []bluetooth.Advertisement
	interval time.Duration

	startErr   error
	connectErr error
	hold       chan struct{}

	conn *fakeConnection

	starts, stops, connects *xsync.Counter
	probe                   []bluetooth.ServiceID

	mu sync.Mutex
}

type fakeObservation struct {
	done  chan struct{}
	once  sync.Once
	stops *xsync.Counter
}

// fakeConnection echoes the last written value on every read.
type fakeConnection struct {
	failAt int

	last  []byte
	calls []fakeCall

	disconnects *xsync.Counter

	mu sync.Mutex
}

type fakeCall struct {
	kind bluetooth.StepKind
	at   time.Time
	data []byte
}

func newFakeTransport(advs ...bluetooth.Advertisement) *fakeTransport {
	return &fakeTransport{
		advs:     advs,
		conn:     newFakeConnection(),
		starts:   xsync.NewCounter(),
		stops:    xsync.NewCounter(),
		connects: xsync.NewCounter(),
	}
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{
		failAt:      -1,
		disconnects: xsync.NewCounter(),
	}
}

func (f *fakeTransport) StartObserving(_ context.Context, probe []bluetooth.ServiceID, fn func(bluetooth.Advertisement)) (bluetooth.Observation, error) {
	f.starts.Inc()
	if f.startErr != nil {
		return nil, f.startErr
	}

	f.mu.Lock()
	f.probe = probe
	advs := f.advs
	f.mu.Unlock()

	obs := &fakeObservation{done: make(chan struct{}), stops: f.stops}
	go func() {
		for _, adv := range advs {
			if f.interval > 0 {
				select {
				case <-time.After(f.interval):
				case <-obs.done:
					return
				}
			}

			fn(adv)
		}
	}()

	return obs, nil
}

func (f *fakeTransport) Connect(ctx context.Context, _ bluetooth.PeripheralID) (bluetooth.Connection, error) {
	f.connects.Inc()

	if f.hold != nil {
		select {
		case <-f.hold:
		case <-ctx.Done():
			return nil, errorkinds.As(errorkinds.ErrConnection, ctx.Err())
		}
	}

	if f.connectErr != nil {
		return nil, f.connectErr
	}

	return f.conn, nil
}

func (o *fakeObservation) Stop() error {
	o.stops.Inc()
	o.once.Do(func() { close(o.done) })

	return nil
}

func (c *fakeConnection) record(kind bluetooth.StepKind, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, fakeCall{kind: kind, at: time.Now(), data: data})
	if len(c.calls)-1 == c.failAt {
		return errorkinds.ErrGatt
	}

	return nil
}

func (c *fakeConnection) WriteCharacteristic(ctx context.Context, _ bluetooth.CharacteristicID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.record(bluetooth.StepWrite, data); err != nil {
		return err
	}

	c.mu.Lock()
	c.last = bytes.Clone(data)
	c.mu.Unlock()

	return nil
}

func (c *fakeConnection) ReadCharacteristic(ctx context.Context, _ bluetooth.CharacteristicID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := c.record(bluetooth.StepRead, nil); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.last, nil
}

func (c *fakeConnection) Disconnect() error {
	c.disconnects.Inc()
	return nil
}

func (c *fakeConnection) history() []fakeCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]fakeCall(nil), c.calls...)
}

// waitFor polls cond until it returns true, or fails after a second.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}

		time.Sleep(5 * time.Millisecond)
	}

	return false
}
