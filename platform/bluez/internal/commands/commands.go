//go:build linux

package commands

import "github.com/godbus/dbus/v5"

const (
	BluezBusName = "org.bluez"

	AdapterInterface        = "org.bluez.Adapter1"
	DeviceInterface         = "org.bluez.Device1"
	CharacteristicInterface = "org.bluez.GattCharacteristic1"

	ObjectManagerInterface = "org.freedesktop.DBus.ObjectManager"
	PropertiesInterface    = "org.freedesktop.DBus.Properties"

	InterfacesAddedSignal   = "InterfacesAdded"
	PropertiesChangedSignal = "PropertiesChanged"
)

// ManagedObjects is the reply type of ObjectManager.GetManagedObjects.
type ManagedObjects = map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// Object manager commands.
func GetManagedObjects() *Command[ManagedObjects] {
	return &Command[ManagedObjects]{method: ObjectManagerInterface + ".GetManagedObjects"}
}
func GetProperty(iface, property string) *Command[dbus.Variant] {
	return (&Command[dbus.Variant]{method: PropertiesInterface + ".Get"}).WithArguments(iface, property)
}

// Adapter commands.
func SetDiscoveryFilter() *Command[NoResult] {
	filter := NewArgumentMap(func(am ArgumentMap) {
		Set(am, TransportArgument, "le")
		Set(am, DuplicateDataArgument, true)
	})

	return (&Command[NoResult]{method: AdapterInterface + ".SetDiscoveryFilter"}).WithArgument(filter)
}
func StartDiscovery() *Command[NoResult] {
	return &Command[NoResult]{method: AdapterInterface + ".StartDiscovery"}
}
func StopDiscovery() *Command[NoResult] {
	return &Command[NoResult]{method: AdapterInterface + ".StopDiscovery"}
}

// Device commands.
func Connect() *Command[NoResult] {
	return &Command[NoResult]{method: DeviceInterface + ".Connect"}
}
func Disconnect() *Command[NoResult] {
	return &Command[NoResult]{method: DeviceInterface + ".Disconnect"}
}

// Characteristic commands.
func WriteValue(data []byte, withResponse bool) *Command[NoResult] {
	options := NewArgumentMap(func(am ArgumentMap) {
		Set(am, WriteTypeArgument, WriteTypeArgumentValue(withResponse))
	})

	return (&Command[NoResult]{method: CharacteristicInterface + ".WriteValue"}).WithArguments(data, options)
}
func ReadValue() *Command[[]byte] {
	return (&Command[[]byte]{method: CharacteristicInterface + ".ReadValue"}).WithArgument(NewArgumentMap(nil))
}
