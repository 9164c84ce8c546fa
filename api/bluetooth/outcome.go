package bluetooth

// ScanResult describes how a scan ended.
type ScanResult uint8

const (
	ScanNone ScanResult = iota
	ScanMatched
	ScanTimedOut
	ScanCancelled
)

// ScanOutcome is the terminal result of a scan.
// Target and Name are only set if Result is ScanMatched.
type ScanOutcome struct {
	Result ScanResult   `json:"result"`
	Target PeripheralID `json:"target,omitempty"`
	Name   string       `json:"name,omitempty"`
}

// ExchangeResult describes how an exchange ended.
type ExchangeResult uint8

const (
	ExchangeNone ExchangeResult = iota
	ExchangeCompleted
	ConnectionFailed
	ExchangeFailed
)

// ExchangeOutcome is the terminal result of an exchange.
//
// Values holds the bytes observed by each completed read step, in order.
// StepIndex is the zero-based index of the failing step, and is only
// meaningful if Result is ExchangeFailed.
type ExchangeOutcome struct {
	Result    ExchangeResult `json:"result"`
	Target    PeripheralID   `json:"target,omitempty"`
	Values    [][]byte       `json:"values,omitempty"`
	StepIndex int            `json:"step_index"`
	Err       error          `json:"-"`
}

// Outcome is the result of a discover-and-exchange run.
type Outcome struct {
	Scan      ScanOutcome     `json:"scan"`
	Exchange  ExchangeOutcome `json:"exchange"`
	Exchanged bool            `json:"exchanged"`
}

// String converts a ScanResult to a string.
func (r ScanResult) String() string {
	switch r {
	case ScanMatched:
		return "matched"

	case ScanTimedOut:
		return "timed-out"

	case ScanCancelled:
		return "cancelled"
	}

	return "none"
}

// String converts an ExchangeResult to a string.
func (r ExchangeResult) String() string {
	switch r {
	case ExchangeCompleted:
		return "completed"

	case ConnectionFailed:
		return "connection-failed"

	case ExchangeFailed:
		return "exchange-failed"
	}

	return "none"
}

// Matched returns true if the scan selected a target.
func (s ScanOutcome) Matched() bool {
	return s.Result == ScanMatched
}

// Completed returns true if every step of the exchange succeeded.
func (e ExchangeOutcome) Completed() bool {
	return e.Result == ExchangeCompleted
}

// NoTargetFound returns true if the scan ended without selecting a target.
func (o Outcome) NoTargetFound() bool {
	return !o.Scan.Matched()
}
