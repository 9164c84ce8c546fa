package bluetooth

import (
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/gatt-exchange/api/errorkinds"
	"github.com/google/uuid"
)

// PeripheralID is a transport-assigned identifier of a peripheral.
// It is only valid while the peripheral remains reachable, and is not
// guaranteed to be stable across sessions.
type PeripheralID string

// ServiceID identifies a GATT service.
type ServiceID = uuid.UUID

// CharacteristicID identifies a GATT characteristic.
type CharacteristicID = uuid.UUID

// baseUUIDSuffix is the tail of the Bluetooth base UUID, used to expand
// 16-bit and 32-bit identifiers.
const baseUUIDSuffix = "-0000-1000-8000-00805f9b34fb"

// String converts a PeripheralID to a string.
func (p PeripheralID) String() string {
	return string(p)
}

// ParseUUID parses a service or characteristic identifier.
// Full 128-bit UUIDs are accepted in any form supported by uuid.Parse,
// and 16-bit or 32-bit short forms ("180d", "0x180D", "0000180d") are expanded
// onto the Bluetooth base UUID.
func ParseUUID(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	short := strings.TrimPrefix(strings.ToLower(s), "0x")

	switch len(short) {
	case 4:
		short = "0000" + short
		fallthrough

	case 8:
		s = short + baseUUIDSuffix
	}

	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fault.Wrap(errorkinds.As(errorkinds.ErrInvalidUUID, err),
			ftag.With(ftag.InvalidArgument),
			fmsg.With("Cannot parse identifier '"+s+"'"),
		)
	}

	return id, nil
}

// MustParseUUID is like ParseUUID but panics if s cannot be parsed.
func MustParseUUID(s string) uuid.UUID {
	id, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}

	return id
}
