package main

import (
	"time"

	"github.com/bluetuith-org/gatt-exchange/api/config"
	"github.com/bluetuith-org/gatt-exchange/platform/peripheral"
	"github.com/urfave/cli"
)

const defaultSteps = "w:01020304,r,w:05060708,r"

var (
	flgBackend  = cli.StringFlag{Name: "backend, b", EnvVar: "GATTPROBE_BACKEND", Usage: "Bluetooth stack to use (bluez / tinygo)"}
	flgAdapter  = cli.StringFlag{Name: "adapter, a", EnvVar: "GATTPROBE_ADAPTER", Value: config.DefaultAdapterID, Usage: "Adapter to use with the BlueZ stack"}
	flgLogLevel = cli.StringFlag{Name: "log-level, l", EnvVar: "GATTPROBE_LOG_LEVEL", Value: "warn", Usage: "Log level (debug / info / warn / error)"}
	flgJSON     = cli.BoolFlag{Name: "json", EnvVar: "GATTPROBE_JSON", Usage: "Print the result as JSON"}

	flgService        = cli.StringFlag{Name: "service, s", EnvVar: "GATTPROBE_SERVICE", Usage: "Service UUID the peripheral must advertise"}
	flgChar           = cli.StringFlag{Name: "char, c", EnvVar: "GATTPROBE_CHAR", Usage: "Characteristic UUID to exchange with (defaults to the service UUID)"}
	flgTimeout        = cli.DurationFlag{Name: "timeout, t", EnvVar: "GATTPROBE_TIMEOUT", Value: config.DefaultScanTimeout, Usage: "Maximum duration of the scan"}
	flgSettle         = cli.DurationFlag{Name: "settle", EnvVar: "GATTPROBE_SETTLE", Value: config.DefaultSettleDelay, Usage: "Wait between a write and the following read"}
	flgConnectTimeout = cli.DurationFlag{Name: "connect-timeout", EnvVar: "GATTPROBE_CONNECT_TIMEOUT", Value: config.DefaultConnectTimeout, Usage: "Timeout for establishing the connection"}
	flgOpTimeout      = cli.DurationFlag{Name: "op-timeout", EnvVar: "GATTPROBE_OP_TIMEOUT", Value: config.DefaultOperationTimeout, Usage: "Timeout for a single write or read"}
	flgSteps          = cli.StringFlag{Name: "steps", EnvVar: "GATTPROBE_STEPS", Value: defaultSteps, Usage: "Comma-separated exchange steps (w:<hex> / r)"}
	flgPlan           = cli.StringFlag{Name: "plan, p", TakesFile: true, Usage: "JSON file holding the service, characteristic and steps"}

	flgName = cli.StringFlag{Name: "name, n", EnvVar: "GATTPROBE_NAME", Value: peripheral.DefaultName, Usage: "Local name to advertise"}
)

func globalFlags() []cli.Flag {
	return []cli.Flag{flgBackend, flgAdapter, flgLogLevel, flgJSON}
}

func runFlags() []cli.Flag {
	return []cli.Flag{flgService, flgChar, flgTimeout, flgSettle, flgConnectTimeout, flgOpTimeout, flgSteps, flgPlan}
}

func scanFlags() []cli.Flag {
	return []cli.Flag{flgService, flgTimeout}
}

func serveFlags() []cli.Flag {
	return []cli.Flag{flgService, flgChar, flgName}
}

// The run flags are also application flags, since run is the default action.
// A command reads a flag from the application level when the command does
// not set it, so that "gattprobe --service X run" behaves like "gattprobe run --service X".

func isSet(c *cli.Context, name string) bool {
	return c.IsSet(name) || c.GlobalIsSet(name)
}

func stringFlag(c *cli.Context, name string) string {
	if !c.IsSet(name) && c.GlobalIsSet(name) {
		return c.GlobalString(name)
	}

	return c.String(name)
}

func durationFlag(c *cli.Context, name string) time.Duration {
	if !c.IsSet(name) && c.GlobalIsSet(name) {
		return c.GlobalDuration(name)
	}

	return c.Duration(name)
}
