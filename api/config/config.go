package config

import (
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/gatt-exchange/api/errorkinds"
)

// Backend names a Bluetooth stack implementation.
type Backend string

const (
	BackendAuto   Backend = ""
	BackendBluez  Backend = "bluez"
	BackendTinygo Backend = "tinygo"
)

const (
	// The default duration of a scan window.
	DefaultScanTimeout = 2 * time.Second

	// The default wait between a write and a dependent read.
	DefaultSettleDelay = 1 * time.Second

	// The default timeout for establishing a connection.
	DefaultConnectTimeout = 10 * time.Second

	// The default timeout for a single characteristic write or read.
	DefaultOperationTimeout = 5 * time.Second

	// The default adapter to use with the BlueZ backend.
	DefaultAdapterID = "hci0"
)

// Configuration describes a general configuration.
type Configuration struct {
	// Backend selects the Bluetooth stack. If empty, the platform default is used.
	Backend Backend

	// AdapterID holds the name of the adapter to use.
	// Specific to the BlueZ backend.
	AdapterID string

	// ScanTimeout holds the maximum duration of a scan.
	ScanTimeout time.Duration

	// SettleDelay holds the wait between a write and a dependent read,
	// to let the peripheral update the characteristic value.
	SettleDelay time.Duration

	// ConnectTimeout holds the timeout for establishing a connection.
	// A zero value disables the timeout.
	ConnectTimeout time.Duration

	// OperationTimeout holds the timeout for a single write or read.
	// A zero value disables the timeout.
	OperationTimeout time.Duration
}

// New returns a new configuration with the default timeouts.
func New() Configuration {
	return Configuration{
		AdapterID:        DefaultAdapterID,
		ScanTimeout:      DefaultScanTimeout,
		SettleDelay:      DefaultSettleDelay,
		ConnectTimeout:   DefaultConnectTimeout,
		OperationTimeout: DefaultOperationTimeout,
	}
}

// Validate checks the configuration for invalid values.
func (c Configuration) Validate() error {
	var issue string

	switch {
	case c.Backend != BackendAuto && c.Backend != BackendBluez && c.Backend != BackendTinygo:
		issue = "Unknown backend '" + string(c.Backend) + "'"

	case c.SettleDelay < 0:
		issue = "Settle delay cannot be negative"

	case c.ConnectTimeout < 0, c.OperationTimeout < 0:
		issue = "Timeouts cannot be negative"
	}

	if issue == "" {
		return nil
	}

	return fault.Wrap(errorkinds.ErrInvalidConfig,
		ftag.With(ftag.InvalidArgument),
		fmsg.With(issue),
	)
}
