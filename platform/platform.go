// Package platform selects the Bluetooth transport for the running system.
package platform

import (
	"runtime"

	"github.com/bluetuith-org/gatt-exchange/api/bluetooth"
)

type BluetoothStack string

const (
	BluezStack              BluetoothStack = "BlueZ (DBus)"
	MicrosoftBluetoothStack BluetoothStack = "Microsoft (tinygo)"
	CoreBluetoothStack      BluetoothStack = "CoreBluetooth (tinygo)"
	UnknownStack            BluetoothStack = "Unknown (tinygo)"
)

// Transport is a Bluetooth transport that holds system resources until it is closed.
type Transport interface {
	bluetooth.Transport

	Close() error
}

// PlatformInfo describes platform-specific information.
type PlatformInfo struct {
	OS    string         `json:"os,omitempty"`
	Stack BluetoothStack `json:"bluetooth_stack,omitempty"`
}

// NewPlatformInfo returns a new PlatformInfo.
func NewPlatformInfo(stack BluetoothStack) PlatformInfo {
	return PlatformInfo{
		OS:    runtime.GOOS + " (" + runtime.GOARCH + ")",
		Stack: stack,
	}
}

// String converts a BluetoothStack to a string.
func (b BluetoothStack) String() string {
	return string(b)
}
