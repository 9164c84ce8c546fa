// Package sessionstore holds the peripherals observed during a scan.
package sessionstore

import (
	"github.com/bluetuith-org/gatt-exchange/api/bluetooth"
	"github.com/puzpuzpuz/xsync/v3"
)

// SessionStore maps every peripheral observed during a scan window to
// its last advertised name. It is kept for diagnostics only.
type SessionStore struct {
	names *xsync.MapOf[bluetooth.PeripheralID, string]
}

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		names: xsync.NewMapOf[bluetooth.PeripheralID, string](),
	}
}

// Record inserts or overwrites the name of the advertising peripheral.
func (s *SessionStore) Record(a bluetooth.Advertisement) {
	s.names.Store(a.ID, a.Name)
}

// Name returns the last recorded name of a peripheral.
func (s *SessionStore) Name(id bluetooth.PeripheralID) (string, bool) {
	return s.names.Load(id)
}

// Len returns the number of recorded peripherals.
func (s *SessionStore) Len() int {
	return s.names.Size()
}

// Snapshot returns a copy of the recorded peripherals.
func (s *SessionStore) Snapshot() map[bluetooth.PeripheralID]string {
	return xsync.ToPlainMapOf(s.names)
}

// Reset removes all recorded peripherals.
func (s *SessionStore) Reset() {
	s.names.Clear()
}
