//go:build linux

package events

import (
	"maps"

	"github.com/bluetuith-org/gatt-exchange/api/bluetooth"
	"github.com/bluetuith-org/gatt-exchange/platform/bluez/internal/commands"
	"github.com/godbus/dbus/v5"
)

// DeviceProperties holds the last known properties of a device object.
type DeviceProperties map[string]dbus.Variant

// DeviceEvent describes a change to a device object, received as a signal.
type DeviceEvent struct {
	Path dbus.ObjectPath

	Changed     DeviceProperties
	Invalidated []string

	// Added is true if the device object was just created.
	Added bool
}

// advertisementProperties lists the properties that are updated
// when an advertisement is received from a device.
var advertisementProperties = []string{"RSSI", "UUIDs", "Name", "ManufacturerData", "ServiceData", "TxPower"}

// ParseSignal converts an InterfacesAdded or a PropertiesChanged signal to a DeviceEvent.
// Signals for objects other than devices are ignored.
func ParseSignal(sig *dbus.Signal) (DeviceEvent, bool) {
	var ev DeviceEvent

	if sig == nil {
		return ev, false
	}

	switch sig.Name {
	case commands.ObjectManagerInterface + "." + commands.InterfacesAddedSignal:
		if len(sig.Body) < 2 {
			return ev, false
		}

		path, ok := sig.Body[0].(dbus.ObjectPath)
		if !ok {
			return ev, false
		}

		ifaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
		if !ok {
			return ev, false
		}

		props, ok := ifaces[commands.DeviceInterface]
		if !ok {
			return ev, false
		}

		ev.Path = path
		ev.Changed = props
		ev.Added = true

	case commands.PropertiesInterface + "." + commands.PropertiesChangedSignal:
		if len(sig.Body) < 2 {
			return ev, false
		}

		if iface, ok := sig.Body[0].(string); !ok || iface != commands.DeviceInterface {
			return ev, false
		}

		changed, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			return ev, false
		}

		ev.Path = sig.Path
		ev.Changed = changed
		if len(sig.Body) > 2 {
			ev.Invalidated, _ = sig.Body[2].([]string)
		}

	default:
		return ev, false
	}

	return ev, true
}

// IsAdvertisement returns true if the event was caused by a received advertisement.
func (ev DeviceEvent) IsAdvertisement() bool {
	if ev.Added {
		return true
	}

	for _, p := range advertisementProperties {
		if _, ok := ev.Changed[p]; ok {
			return true
		}
	}

	return false
}

// Merge returns a copy of d with the changes of ev applied.
func (d DeviceProperties) Merge(ev DeviceEvent) DeviceProperties {
	merged := make(DeviceProperties, len(d)+len(ev.Changed))
	maps.Copy(merged, d)
	maps.Copy(merged, ev.Changed)

	for _, p := range ev.Invalidated {
		delete(merged, p)
	}

	return merged
}

// Bool returns the value of a boolean property.
func (d DeviceProperties) Bool(name string) bool {
	v, ok := d[name]
	if !ok {
		return false
	}

	b, _ := v.Value().(bool)

	return b
}

// Advertisement converts the device properties to an advertisement.
// It returns false if the device address is unknown.
func (d DeviceProperties) Advertisement() (bluetooth.Advertisement, bool) {
	var adv bluetooth.Advertisement

	address, _ := d.value("Address").(string)
	if address == "" {
		return adv, false
	}

	adv.ID = bluetooth.PeripheralID(address)
	adv.Name, _ = d.value("Name").(string)
	adv.RSSI, _ = d.value("RSSI").(int16)

	uuids, _ := d.value("UUIDs").([]string)
	for _, u := range uuids {
		id, err := bluetooth.ParseUUID(u)
		if err != nil {
			continue
		}

		adv.Services = append(adv.Services, id)
	}

	return adv, true
}

func (d DeviceProperties) value(name string) any {
	v, ok := d[name]
	if !ok {
		return nil
	}

	return v.Value()
}
