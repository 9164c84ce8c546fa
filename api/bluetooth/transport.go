package bluetooth

import "context"

// Transport describes the Bluetooth stack a session runs on.
type Transport interface {
	// StartObserving starts a passive scan, and calls fn for every received advertisement,
	// in the order they are delivered by the stack. The probe list names the services
	// the caller is interested in; stacks that cannot enumerate advertised services
	// report the subset of probe that the advertisement carries.
	// If the adapter cannot be used, an error carrying errorkinds.ErrTransportUnavailable
	// is returned.
	StartObserving(ctx context.Context, probe []ServiceID, fn func(Advertisement)) (Observation, error)

	// Connect attempts to connect to the peripheral.
	// Failures carry errorkinds.ErrConnection.
	Connect(ctx context.Context, id PeripheralID) (Connection, error)
}

// Observation describes a running scan.
type Observation interface {
	// Stop stops the scan. It must not fail if the scan is already stopped.
	Stop() error
}

// Connection describes a connection to a peripheral.
type Connection interface {
	// WriteCharacteristic writes data to the characteristic, and waits
	// for the peripheral to acknowledge the write.
	// Failures carry errorkinds.ErrGatt.
	WriteCharacteristic(ctx context.Context, id CharacteristicID, data []byte) error

	// ReadCharacteristic reads the current value of the characteristic.
	// Failures carry errorkinds.ErrGatt.
	ReadCharacteristic(ctx context.Context, id CharacteristicID) ([]byte, error)

	// Disconnect releases the connection. It must not fail if already disconnected.
	Disconnect() error
}
