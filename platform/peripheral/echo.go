// Package peripheral implements an echo peripheral: it advertises a service,
// and serves the last value written to one of its characteristics.
package peripheral

import (
	"bytes"
	"strconv"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/gatt-exchange/api/bluetooth"
	"github.com/bluetuith-org/gatt-exchange/api/errorkinds"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultName is the advertised local name.
	DefaultName = "gatt-echo"

	// MaxValueLength is the maximum length of the characteristic value.
	MaxValueLength = 512
)

// Config describes the advertised service and its echo characteristic.
type Config struct {
	Name           string
	Service        bluetooth.ServiceID
	Characteristic bluetooth.CharacteristicID

	// Initial holds the value served before the first write.
	Initial []byte
}

// NewConfig returns a configuration for the service. The characteristic
// shares the identifier of the service, and starts as four zero bytes.
func NewConfig(service bluetooth.ServiceID) Config {
	return Config{
		Name:           DefaultName,
		Service:        service,
		Characteristic: service,
		Initial:        make([]byte, 4),
	}
}

// Echo holds the value of the echo characteristic.
type Echo struct {
	value []byte
	mu    sync.Mutex
}

// NewEcho returns an echo holding a copy of initial.
func NewEcho(initial []byte) *Echo {
	return &Echo{value: bytes.Clone(initial)}
}

// Value returns a copy of the current value.
func (e *Echo) Value() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	return bytes.Clone(e.value)
}

// Write stores data at offset, and returns the new value. The value is cut
// after the written data. changed is false if the value is unchanged.
func (e *Echo) Write(offset int, data []byte) (value []byte, changed bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if offset < 0 || offset > len(e.value) || offset+len(data) > MaxValueLength {
		return nil, false, fault.Wrap(errorkinds.ErrGatt,
			ftag.With(ftag.InvalidArgument),
			fmsg.With("Invalid write of "+strconv.Itoa(len(data))+" byte(s) at offset "+strconv.Itoa(offset)),
		)
	}

	value = append(bytes.Clone(e.value[:offset]), data...)
	if bytes.Equal(value, e.value) {
		return bytes.Clone(value), false, nil
	}

	e.value = value

	return bytes.Clone(value), true, nil
}

// OnWrite returns a handler for writes from clients. update stores a changed
// value in the stack. It may call the handler again with the stored value.
func (e *Echo) OnWrite(log logrus.FieldLogger, update func(value []byte) error) func(offset int, data []byte) {
	return func(offset int, data []byte) {
		value, changed, err := e.Write(offset, data)
		if err != nil {
			log.WithError(err).Warn("Rejected a write")
			return
		}
		if !changed {
			return
		}

		log.Infof("Written value: %x", value)

		if err := update(value); err != nil {
			log.WithError(err).Error("Cannot update the characteristic value")
		}
	}
}
