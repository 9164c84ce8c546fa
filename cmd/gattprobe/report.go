package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/bluetuith-org/gatt-exchange/api/bluetooth"
	"github.com/bluetuith-org/gatt-exchange/internal/serde"
	"github.com/bluetuith-org/gatt-exchange/platform"
)

// report is the printed result of a command.
type report struct {
	Platform platform.PlatformInfo `json:"platform"`
	Service  string                `json:"service,omitempty"`
	Scan     scanReport            `json:"scan"`
	Exchange *exchangeReport       `json:"exchange,omitempty"`
	Seen     []peripheralReport    `json:"seen,omitempty"`
}

type scanReport struct {
	Result string `json:"result"`
	Target string `json:"target,omitempty"`
	Name   string `json:"name,omitempty"`
}

type exchangeReport struct {
	Result     string   `json:"result"`
	Values     []string `json:"values,omitempty"`
	FailedStep *int     `json:"failed_step,omitempty"`
	Error      string   `json:"error,omitempty"`
}

type peripheralReport struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

func newReport(info platform.PlatformInfo, criteria bluetooth.MatchCriteria, outcome bluetooth.Outcome) report {
	r := report{
		Platform: info,
		Scan: scanReport{
			Result: outcome.Scan.Result.String(),
			Target: outcome.Scan.Target.String(),
			Name:   outcome.Scan.Name,
		},
	}

	if criteria.RequiredService != (bluetooth.ServiceID{}) {
		r.Service = criteria.RequiredService.String()
	}

	if !outcome.Exchanged {
		return r
	}

	ex := &exchangeReport{Result: outcome.Exchange.Result.String()}
	for _, v := range outcome.Exchange.Values {
		ex.Values = append(ex.Values, hex.EncodeToString(v))
	}

	if outcome.Exchange.Result == bluetooth.ExchangeFailed {
		step := outcome.Exchange.StepIndex
		ex.FailedStep = &step
	}

	if outcome.Exchange.Err != nil {
		ex.Error = outcome.Exchange.Err.Error()
	}

	r.Exchange = ex

	return r
}

// addSeen adds the observed peripherals to the report, ordered by identifier.
func (r *report) addSeen(seen map[bluetooth.PeripheralID]string) {
	for id, name := range seen {
		r.Seen = append(r.Seen, peripheralReport{ID: id.String(), Name: name})
	}

	slices.SortFunc(r.Seen, func(a, b peripheralReport) int {
		return strings.Compare(a.ID, b.ID)
	})
}

func (r report) writeJSON(w io.Writer) error {
	data, err := serde.MarshalJson(r)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(data))

	return err
}

func (r report) writeText(w io.Writer) error {
	var sb strings.Builder

	for _, p := range r.Seen {
		name := p.Name
		if name == "" {
			name = "(unnamed)"
		}

		fmt.Fprintf(&sb, "%s  %s\n", p.ID, name)
	}

	switch {
	case r.Scan.Result != bluetooth.ScanMatched.String():
		if r.Service != "" {
			fmt.Fprintf(&sb, "No target device found (%s)\n", r.Scan.Result)
		}

	case r.Exchange == nil:
		fmt.Fprintf(&sb, "Found target device: %s (%s)\n", r.Scan.Name, r.Scan.Target)

	case r.Exchange.Result == bluetooth.ExchangeCompleted.String():
		fmt.Fprintf(&sb, "Exchange completed: %d value(s) read\n", len(r.Exchange.Values))

	case r.Exchange.FailedStep != nil:
		fmt.Fprintf(&sb, "Exchange failed at step %d: %s\n", *r.Exchange.FailedStep, r.Exchange.Error)

	default:
		fmt.Fprintf(&sb, "Connection failed: %s\n", r.Exchange.Error)
	}

	_, err := io.WriteString(w, sb.String())

	return err
}

// exitCode returns the process exit code for the outcome.
func exitCode(o bluetooth.Outcome) int {
	switch {
	case o.NoTargetFound():
		return exitNoTarget

	case !o.Exchange.Completed():
		return exitExchangeFailed
	}

	return exitOK
}
