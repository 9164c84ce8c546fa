// Package errorkinds describes the error kinds reported by sessions and transports.
package errorkinds

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportUnavailable is returned when the radio or adapter cannot be used.
	ErrTransportUnavailable = errors.New("bluetooth transport is unavailable")

	// ErrConnection is returned when a peripheral cannot be reached or rejects a connection.
	ErrConnection = errors.New("cannot connect to peripheral")

	// ErrGatt is returned when a characteristic write or read is rejected.
	ErrGatt = errors.New("gatt operation failed")

	// ErrCharacteristicNotFound is returned when the connected peripheral does not
	// expose the requested characteristic.
	ErrCharacteristicNotFound = errors.New("characteristic not found")

	ErrScanInProgress     = errors.New("a scan is already in progress")
	ErrExchangeInProgress = errors.New("an exchange is already in progress")
	ErrInvalidStep        = errors.New("invalid exchange step")
	ErrInvalidUUID        = errors.New("invalid uuid")
	ErrInvalidConfig      = errors.New("invalid configuration")

	ErrMethodTimeout   = errors.New("method call timed out")
	ErrMethodCall      = errors.New("method call failed")
	ErrNotSupported    = errors.New("operation is not supported")
	ErrSessionNotExist = errors.New("session does not exist")
)

// As attaches kind to err, so that errors.Is reports true for both.
// If err already carries kind, it is returned unchanged.
func As(kind, err error) error {
	if err == nil || errors.Is(err, kind) {
		return err
	}

	return fmt.Errorf("%w: %w", kind, err)
}
