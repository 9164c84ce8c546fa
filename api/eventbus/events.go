package eventbus

import (
	"time"

	"github.com/bluetuith-org/gatt-exchange/api/bluetooth"
)

// EventID describes a kind of event that can be published.
type EventID interface {
	Value() uint
	String() string
}

// Event is an identifier for a session event.
type Event uint

const (
	EventNone Event = iota
	ScanStartedEvent
	DeviceSeenEvent
	TargetMatchedEvent
	ScanStoppedEvent
	ConnectedEvent
	StepCompletedEvent
	DisconnectedEvent
)

// ScanStartedData describes the data published with ScanStartedEvent.
type ScanStartedData struct {
	Criteria bluetooth.MatchCriteria `json:"criteria"`
	Duration time.Duration           `json:"duration"`
}

// StepData describes the data published with StepCompletedEvent.
// Value holds the written payload for write steps, and the observed bytes for read steps.
type StepData struct {
	Target bluetooth.PeripheralID `json:"target"`
	Index  int                    `json:"index"`
	Kind   bluetooth.StepKind     `json:"kind"`
	Value  []byte                 `json:"value,omitempty"`
}

// ConnectionData describes the data published with ConnectedEvent and DisconnectedEvent.
type ConnectionData struct {
	Target bluetooth.PeripheralID `json:"target"`
	Err    error                  `json:"-"`
}

// SubscriberID holds a subscription to an event.
type SubscriberID struct {
	C <-chan any

	active bool
	unsub  func()
}

// Value returns the numeric value of the event.
func (e Event) Value() uint {
	return uint(e)
}

// String converts an Event to a string.
func (e Event) String() string {
	switch e {
	case ScanStartedEvent:
		return "scan-started"

	case DeviceSeenEvent:
		return "device-seen"

	case TargetMatchedEvent:
		return "target-matched"

	case ScanStoppedEvent:
		return "scan-stopped"

	case ConnectedEvent:
		return "connected"

	case StepCompletedEvent:
		return "step-completed"

	case DisconnectedEvent:
		return "disconnected"
	}

	return "none"
}

// Active returns true if the subscription is receiving events.
func (s *SubscriberID) Active() bool {
	return s.active
}

// Unsubscribe removes the subscription.
func (s *SubscriberID) Unsubscribe() {
	if !s.Active() {
		return
	}

	s.active = false
	if s.unsub != nil {
		s.unsub()
	}
}
