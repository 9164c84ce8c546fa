package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/gatt-exchange/api/bluetooth"
	"github.com/bluetuith-org/gatt-exchange/api/config"
	"github.com/bluetuith-org/gatt-exchange/api/errorkinds"
	"github.com/bluetuith-org/gatt-exchange/api/eventbus"
	"github.com/bluetuith-org/gatt-exchange/internal/serde"
	"github.com/bluetuith-org/gatt-exchange/platform"
	"github.com/bluetuith-org/gatt-exchange/platform/peripheral"
	"github.com/bluetuith-org/gatt-exchange/session"
	"github.com/urfave/cli"
)

// plan describes an exchange, as read from a plan file.
type plan struct {
	Service        string   `json:"service"`
	Characteristic string   `json:"characteristic,omitempty"`
	Steps          []string `json:"steps,omitempty"`
}

func (cmd *command) run(c *cli.Context) error {
	p, err := loadPlan(c)
	if err != nil {
		return cmd.fail(err)
	}

	criteria, char, steps, err := p.resolve()
	if err != nil {
		return cmd.fail(err)
	}

	cfg := baseConfig(c)
	cfg.SettleDelay = durationFlag(c, "settle")
	cfg.ConnectTimeout = durationFlag(c, "connect-timeout")
	cfg.OperationTimeout = durationFlag(c, "op-timeout")

	transport, info, err := platform.New(cmd.ctx, cfg, cmd.log)
	if err != nil {
		return cmd.fail(err)
	}
	defer transport.Close()

	emitter := eventbus.New()
	progress := cmd.printProgress(emitter, c.GlobalBool("json"))

	o := session.NewOrchestrator(transport, cfg, session.WithLogger(cmd.log), session.WithPublisher(emitter))
	outcome, err := o.DiscoverAndExchange(cmd.ctx, criteria, cfg.ScanTimeout, char, steps)

	emitter.Close()
	<-progress

	if err != nil {
		return cmd.fail(err)
	}

	r := newReport(info, criteria, outcome)
	if err := cmd.write(r, c.GlobalBool("json")); err != nil {
		return cmd.fail(err)
	}

	return exitWith(exitCode(outcome))
}

func (cmd *command) scan(c *cli.Context) error {
	var criteria bluetooth.MatchCriteria
	if s := stringFlag(c, "service"); s != "" {
		service, err := bluetooth.ParseUUID(s)
		if err != nil {
			return cmd.fail(err)
		}

		criteria.RequiredService = service
	}

	cfg := baseConfig(c)
	transport, info, err := platform.New(cmd.ctx, cfg, cmd.log)
	if err != nil {
		return cmd.fail(err)
	}
	defer transport.Close()

	o := session.NewOrchestrator(transport, cfg, session.WithLogger(cmd.log))
	outcome, err := o.Scan(cmd.ctx, criteria, cfg.ScanTimeout)
	if err != nil {
		return cmd.fail(err)
	}

	r := newReport(info, criteria, bluetooth.Outcome{Scan: outcome})
	r.addSeen(o.Registry().Snapshot())

	if err := cmd.write(r, c.GlobalBool("json")); err != nil {
		return cmd.fail(err)
	}

	if criteria.RequiredService != (bluetooth.ServiceID{}) && !outcome.Matched() {
		return exitWith(exitNoTarget)
	}

	return nil
}

func (cmd *command) serve(c *cli.Context) error {
	criteria, char, _, err := plan{
		Service:        stringFlag(c, "service"),
		Characteristic: stringFlag(c, "char"),
	}.resolve()
	if err != nil {
		return cmd.fail(err)
	}

	cfg := peripheral.NewConfig(criteria.RequiredService)
	cfg.Characteristic = char
	cfg.Name = c.String("name")

	fmt.Fprintf(cmd.out, "Advertising service %s as %q\n", cfg.Service, cfg.Name)
	if err := peripheral.Serve(cmd.ctx, cfg, cmd.log); err != nil {
		return cmd.fail(err)
	}

	return nil
}

// printProgress prints the matched target and every completed step, as they are published.
// The returned channel is closed once the emitter is closed and all events are printed.
func (cmd *command) printProgress(e *eventbus.Emitter, quiet bool) <-chan struct{} {
	done := make(chan struct{})

	matched := e.Subscribe(eventbus.TargetMatchedEvent)
	steps := e.Subscribe(eventbus.StepCompletedEvent)

	go func() {
		defer close(done)

		mc, sc := matched.C, steps.C
		for mc != nil || sc != nil {
			select {
			case ev, ok := <-mc:
				if !ok {
					mc = nil
					continue
				}

				if adv, ok := ev.(bluetooth.Advertisement); ok && !quiet {
					fmt.Fprintf(cmd.out, "Found target device: %s (%s)\n", adv.Name, adv.ID)
				}

			case ev, ok := <-sc:
				if !ok {
					sc = nil
					continue
				}

				step, ok := ev.(eventbus.StepData)
				if !ok || quiet {
					continue
				}

				switch step.Kind {
				case bluetooth.StepWrite:
					fmt.Fprintf(cmd.out, "Written value: %x\n", step.Value)

				case bluetooth.StepRead:
					fmt.Fprintf(cmd.out, "Read value: %x\n", step.Value)
				}
			}
		}
	}()

	return done
}

func (cmd *command) write(r report, asJSON bool) error {
	if asJSON {
		return r.writeJSON(cmd.out)
	}

	return r.writeText(cmd.out)
}

// fail logs err, and converts it to an exit error.
func (cmd *command) fail(err error) error {
	cmd.log.WithField("kind", ftag.Get(err)).Error(err)

	return exitWith(exitError)
}

func exitWith(code int) error {
	if code == exitOK {
		return nil
	}

	return cli.NewExitError("", code)
}

func baseConfig(c *cli.Context) config.Configuration {
	cfg := config.New()

	cfg.Backend = config.Backend(c.GlobalString("backend"))
	cfg.AdapterID = c.GlobalString("adapter")
	cfg.ScanTimeout = durationFlag(c, "timeout")

	return cfg
}

// loadPlan reads the plan file, if one is set. Flags that are set explicitly
// override the values of the plan.
func loadPlan(c *cli.Context) (plan, error) {
	var p plan

	if path := stringFlag(c, "plan"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return p, fault.Wrap(err,
				ftag.With(ftag.NotFound),
				fmsg.With("Cannot read plan file"),
			)
		}

		if err := serde.UnmarshalJson(data, &p); err != nil {
			return p, fault.Wrap(errorkinds.As(errorkinds.ErrInvalidConfig, err),
				ftag.With(ftag.InvalidArgument),
				fmsg.With("Cannot decode plan file"),
			)
		}
	}

	if isSet(c, "service") || p.Service == "" {
		p.Service = stringFlag(c, "service")
	}
	if isSet(c, "char") || p.Characteristic == "" {
		p.Characteristic = stringFlag(c, "char")
	}
	if isSet(c, "steps") || len(p.Steps) == 0 {
		p.Steps = []string{stringFlag(c, "steps")}
	}

	return p, nil
}

// resolve parses the identifiers and steps of the plan.
// The characteristic defaults to the service.
func (p plan) resolve() (bluetooth.MatchCriteria, bluetooth.CharacteristicID, []bluetooth.ExchangeStep, error) {
	var criteria bluetooth.MatchCriteria

	if p.Service == "" {
		return criteria, bluetooth.CharacteristicID{}, nil, fault.Wrap(errorkinds.ErrInvalidConfig,
			ftag.With(ftag.InvalidArgument),
			fmsg.With("A service UUID is required"),
		)
	}

	service, err := bluetooth.ParseUUID(p.Service)
	if err != nil {
		return criteria, bluetooth.CharacteristicID{}, nil, err
	}
	criteria.RequiredService = service

	char := service
	if p.Characteristic != "" {
		if char, err = bluetooth.ParseUUID(p.Characteristic); err != nil {
			return criteria, bluetooth.CharacteristicID{}, nil, err
		}
	}

	steps, err := bluetooth.ParseSteps(strings.Join(p.Steps, ","))
	if err != nil {
		return criteria, char, nil, err
	}

	return criteria, char, steps, nil
}
