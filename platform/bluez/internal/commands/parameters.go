//go:build linux

package commands

import "github.com/godbus/dbus/v5"

type Argument string

const (
	TransportArgument     Argument = "Transport"
	DuplicateDataArgument Argument = "DuplicateData"
	WriteTypeArgument     Argument = "type"
)

// ArgumentMap holds the options passed to BlueZ methods that accept a dictionary.
type ArgumentMap = map[string]dbus.Variant

func (a Argument) String() string {
	return string(a)
}

// WriteTypeArgumentValue returns the write type for a characteristic write.
func WriteTypeArgumentValue(withResponse bool) string {
	if !withResponse {
		return "command"
	}

	return "request"
}

// NewArgumentMap builds an ArgumentMap from fn.
func NewArgumentMap(fn func(am ArgumentMap)) ArgumentMap {
	am := make(ArgumentMap)
	if fn != nil {
		fn(am)
	}

	return am
}

// Set stores value under arg in am.
func Set(am ArgumentMap, arg Argument, value any) {
	am[arg.String()] = dbus.MakeVariant(value)
}
