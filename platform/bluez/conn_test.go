//go:build linux

package bluez

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bluetuith-org/gatt-exchange/api/errorkinds"
	"github.com/bluetuith-org/gatt-exchange/platform/bluez/internal/commands"
	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

const testDevice = dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF")

type callHandler func(ctx context.Context, args []any) *dbus.Call

// fakeBus hands out a fakeObject per object path.
type fakeBus struct {
	mu      sync.Mutex
	objects map[dbus.ObjectPath]*fakeObject
}

// fakeObject answers each method with its registered handler.
// Methods without a handler succeed with an empty reply.
type fakeObject struct {
	dbus.BusObject

	mu       sync.Mutex
	handlers map[string]callHandler
	calls    []string
}

func newFakeBus() *fakeBus {
	return &fakeBus{objects: make(map[dbus.ObjectPath]*fakeObject)}
}

func (b *fakeBus) Object(_ string, path dbus.ObjectPath) dbus.BusObject {
	return b.object(path)
}

func (b *fakeBus) object(path dbus.ObjectPath) *fakeObject {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.objects[path]
	if !ok {
		o = &fakeObject{handlers: make(map[string]callHandler)}
		b.objects[path] = o
	}

	return o
}

func (f *fakeObject) handle(method string, h callHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.handlers[method] = h
}

func (f *fakeObject) CallWithContext(ctx context.Context, method string, _ dbus.Flags, args ...any) *dbus.Call {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	h := f.handlers[method]
	f.mu.Unlock()

	if h == nil {
		return &dbus.Call{}
	}

	return h(ctx, args)
}

func (f *fakeObject) called(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}

	return n
}

func reply(body ...any) callHandler {
	return func(context.Context, []any) *dbus.Call {
		return &dbus.Call{Body: body}
	}
}

func fail(err error) callHandler {
	return func(context.Context, []any) *dbus.Call {
		return &dbus.Call{Err: err}
	}
}

// pending never replies, like a connection that BlueZ is still establishing.
func pending(ctx context.Context, _ []any) *dbus.Call {
	<-ctx.Done()

	return &dbus.Call{Err: ctx.Err()}
}

func deviceChanged(path dbus.ObjectPath, changed map[string]dbus.Variant) *dbus.Signal {
	return &dbus.Signal{
		Path: path,
		Name: commands.PropertiesInterface + "." + commands.PropertiesChangedSignal,
		Body: []any{commands.DeviceInterface, changed, []string{}},
	}
}

var (
	connectMethod    = commands.DeviceInterface + ".Connect"
	disconnectMethod = commands.DeviceInterface + ".Disconnect"
	getMethod        = commands.PropertiesInterface + ".Get"
)

func TestConnectionConnect(t *testing.T) {
	tests := []struct {
		name      string
		connect   callHandler
		resolved  bool
		signals   []*dbus.Signal
		cancelled bool

		wantErr         []error
		wantDisconnects int
	}{
		{
			name:     "services resolved",
			connect:  reply(),
			resolved: true,
		},
		{
			name:     "services resolved later",
			connect:  reply(),
			signals:  []*dbus.Signal{deviceChanged(testDevice, map[string]dbus.Variant{"ServicesResolved": dbus.MakeVariant(true)})},
			resolved: false,
		},
		{
			name:    "refused",
			connect: fail(dbus.Error{Name: "org.bluez.Error.Failed", Body: []any{"le-connection-abort-by-local"}}),
			wantErr: []error{errorkinds.ErrMethodCall},
		},
		{
			name:            "abandoned on timeout",
			connect:         pending,
			wantErr:         []error{errorkinds.ErrMethodTimeout, context.DeadlineExceeded},
			wantDisconnects: 1,
		},
		{
			name:            "abandoned on cancel",
			connect:         pending,
			cancelled:       true,
			wantErr:         []error{context.Canceled},
			wantDisconnects: 1,
		},
		{
			name:            "disconnected before services resolved",
			connect:         reply(),
			signals:         []*dbus.Signal{deviceChanged(testDevice, map[string]dbus.Variant{"Connected": dbus.MakeVariant(false)})},
			wantErr:         []error{errorkinds.ErrConnection},
			wantDisconnects: 1,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			bus := newFakeBus()
			device := bus.object(testDevice)
			device.handle(connectMethod, test.connect)
			device.handle(getMethod, reply(dbus.MakeVariant(test.resolved)))

			signals := make(chan *dbus.Signal, len(test.signals))
			for _, sig := range test.signals {
				signals <- sig
			}

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			if test.cancelled {
				cancel()
			}

			c := newConnection(bus, testDevice, logrus.New())
			err := c.connect(ctx, signals)

			if len(test.wantErr) == 0 && err != nil {
				t.Fatalf("connect() error: %v", err)
			}
			for _, want := range test.wantErr {
				if !errors.Is(err, want) {
					t.Errorf("connect() error = %v, want %v", err, want)
				}
			}

			if got := device.called(disconnectMethod); got != test.wantDisconnects {
				t.Errorf("Disconnect called %d times, want %d", got, test.wantDisconnects)
			}
		})
	}
}

func TestWaitServicesResolved(t *testing.T) {
	other := dbus.ObjectPath("/org/bluez/hci0/dev_11_22_33_44_55_66")

	tests := []struct {
		name     string
		resolved bool
		signals  []*dbus.Signal
		closed   bool
		wantErr  error
	}{
		{name: "already resolved", resolved: true},
		{
			name:    "resolved by signal",
			signals: []*dbus.Signal{deviceChanged(testDevice, map[string]dbus.Variant{"ServicesResolved": dbus.MakeVariant(true)})},
		},
		{
			name: "other devices are ignored",
			signals: []*dbus.Signal{
				deviceChanged(other, map[string]dbus.Variant{"ServicesResolved": dbus.MakeVariant(true)}),
				deviceChanged(other, map[string]dbus.Variant{"Connected": dbus.MakeVariant(false)}),
			},
			wantErr: context.DeadlineExceeded,
		},
		{
			name:    "unrelated properties are ignored",
			signals: []*dbus.Signal{deviceChanged(testDevice, map[string]dbus.Variant{"RSSI": dbus.MakeVariant(int16(-60))})},
			wantErr: context.DeadlineExceeded,
		},
		{
			name:    "disconnected",
			signals: []*dbus.Signal{deviceChanged(testDevice, map[string]dbus.Variant{"Connected": dbus.MakeVariant(false)})},
			wantErr: errorkinds.ErrConnection,
		},
		{
			name:    "signals closed",
			closed:  true,
			wantErr: errorkinds.ErrSessionNotExist,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			bus := newFakeBus()
			bus.object(testDevice).handle(getMethod, reply(dbus.MakeVariant(test.resolved)))

			signals := make(chan *dbus.Signal, len(test.signals))
			for _, sig := range test.signals {
				signals <- sig
			}
			if test.closed {
				close(signals)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			c := newConnection(bus, testDevice, logrus.New())
			err := c.waitServicesResolved(ctx, signals)

			if test.wantErr == nil && err != nil {
				t.Fatalf("waitServicesResolved() error: %v", err)
			}
			if test.wantErr != nil && !errors.Is(err, test.wantErr) {
				t.Errorf("waitServicesResolved() error = %v, want %v", err, test.wantErr)
			}
		})
	}
}

func TestConnectionDisconnectOnce(t *testing.T) {
	bus := newFakeBus()
	device := bus.object(testDevice)

	c := newConnection(bus, testDevice, logrus.New())
	for range 3 {
		if err := c.Disconnect(); err != nil {
			t.Fatalf("Disconnect() error: %v", err)
		}
	}

	if got := device.called(disconnectMethod); got != 1 {
		t.Errorf("Disconnect called %d times, want 1", got)
	}
}

func TestConnectionCharacteristic(t *testing.T) {
	char := testDevice + "/service0010/char0011"
	foreign := dbus.ObjectPath("/org/bluez/hci0/dev_11_22_33_44_55_66/service0010/char0011")

	bus := newFakeBus()
	root := bus.object("/")
	root.handle(commands.ObjectManagerInterface+".GetManagedObjects", reply(commands.ManagedObjects{
		char: {
			commands.CharacteristicInterface: {"UUID": dbus.MakeVariant("e9b4a0f5-0001-4d3c-9e48-5c5d2f0e7b1b")},
		},
		foreign: {
			commands.CharacteristicInterface: {"UUID": dbus.MakeVariant("2a37")},
		},
	}))
	bus.object(char).handle(commands.CharacteristicInterface+".ReadValue", reply([]byte{1, 2, 3, 4}))

	c := newConnection(bus, testDevice, logrus.New())

	value, err := c.ReadCharacteristic(context.Background(), mustUUID(t, "e9b4a0f5-0001-4d3c-9e48-5c5d2f0e7b1b"))
	if err != nil {
		t.Fatalf("ReadCharacteristic() error: %v", err)
	}
	if string(value) != string([]byte{1, 2, 3, 4}) {
		t.Errorf("ReadCharacteristic() = %x", value)
	}

	if _, err := c.ReadCharacteristic(context.Background(), mustUUID(t, "2a37")); !errors.Is(err, errorkinds.ErrCharacteristicNotFound) {
		t.Errorf("ReadCharacteristic() of another device's characteristic error = %v", err)
	}

	if err := c.WriteCharacteristic(context.Background(), mustUUID(t, "e9b4a0f5-0001-4d3c-9e48-5c5d2f0e7b1b"), []byte{5}); err != nil {
		t.Fatalf("WriteCharacteristic() error: %v", err)
	}
	if got := root.called(commands.ObjectManagerInterface + ".GetManagedObjects"); got != 2 {
		t.Errorf("GetManagedObjects called %d times, want 2 (one per cache miss)", got)
	}
}
