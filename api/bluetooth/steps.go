package bluetooth

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/gatt-exchange/api/errorkinds"
)

// StepKind describes the kind of an exchange step.
type StepKind uint8

const (
	StepNone StepKind = iota
	StepWrite
	StepRead
)

// ExchangeStep describes one operation against the remote characteristic.
type ExchangeStep struct {
	Kind    StepKind `json:"kind"`
	Payload []byte   `json:"payload,omitempty"`
}

// Write returns a step that writes b to the characteristic.
func Write(b []byte) ExchangeStep {
	return ExchangeStep{Kind: StepWrite, Payload: b}
}

// Read returns a step that reads the current value of the characteristic.
func Read() ExchangeStep {
	return ExchangeStep{Kind: StepRead}
}

// String converts a StepKind to a string.
func (k StepKind) String() string {
	switch k {
	case StepWrite:
		return "write"

	case StepRead:
		return "read"
	}

	return "none"
}

// String converts an ExchangeStep to its textual form, as accepted by ParseSteps.
func (s ExchangeStep) String() string {
	if s.Kind == StepWrite {
		return "w:" + hex.EncodeToString(s.Payload)
	}

	if s.Kind == StepRead {
		return "r"
	}

	return s.Kind.String()
}

// ValidateSteps checks that every step has a known kind and that
// every write carries a payload.
func ValidateSteps(steps []ExchangeStep) error {
	for i, step := range steps {
		var issue string

		switch step.Kind {
		case StepRead:
		case StepWrite:
			if len(step.Payload) == 0 {
				issue = "Write step " + strconv.Itoa(i) + " has no payload"
			}

		default:
			issue = "Step " + strconv.Itoa(i) + " has an unknown kind"
		}

		if issue != "" {
			return fault.Wrap(errorkinds.ErrInvalidStep,
				ftag.With(ftag.InvalidArgument),
				fmsg.With(issue),
			)
		}
	}

	return nil
}

// ParseSteps parses a comma-separated list of steps.
// A write is written as "w:<hex>" (or "write:<hex>"), and a read as "r" (or "read").
// For example: "w:01020304,r,w:05060708,r".
func ParseSteps(s string) ([]ExchangeStep, error) {
	var steps []ExchangeStep

	for i, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}

		kind, payload, _ := strings.Cut(field, ":")
		switch strings.ToLower(kind) {
		case "r", "read":
			steps = append(steps, Read())

		case "w", "write":
			b, err := hex.DecodeString(strings.TrimPrefix(strings.ReplaceAll(payload, " ", ""), "0x"))
			if err != nil {
				return nil, fault.Wrap(errorkinds.As(errorkinds.ErrInvalidStep, err),
					ftag.With(ftag.InvalidArgument),
					fmsg.With("Cannot decode payload of step "+strconv.Itoa(i)),
				)
			}

			steps = append(steps, Write(b))

		default:
			return nil, fault.Wrap(errorkinds.ErrInvalidStep,
				ftag.With(ftag.InvalidArgument),
				fmsg.With("Unknown step '"+field+"'"),
			)
		}
	}

	return steps, ValidateSteps(steps)
}
