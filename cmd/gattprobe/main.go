// Command gattprobe discovers a BLE peripheral by the service it advertises,
// and runs a write and read exchange against one of its characteristics.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// Exit codes.
const (
	exitOK = iota
	exitError
	exitNoTarget
	exitExchangeFailed
)

// command holds the state shared by the actions.
type command struct {
	ctx context.Context
	log *logrus.Logger
	out io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logrus.New()
	log.SetOutput(os.Stderr)

	app := newApp(&command{ctx: ctx, log: log, out: os.Stdout})
	if err := app.Run(os.Args); err != nil {
		log.Error(err)
		stop()
		os.Exit(exitError)
	}
}

func newApp(cmd *command) *cli.App {
	app := cli.NewApp()

	app.Name = "gattprobe"
	app.Usage = "Discover a BLE peripheral by service, and exchange values with it"
	app.Version = "0.1.0"
	app.Flags = append(globalFlags(), runFlags()...)
	app.Before = cmd.setup
	app.Action = cmd.run

	app.Commands = []cli.Command{
		{
			Name:    "run",
			Aliases: []string{"r"},
			Usage:   "Scan for the service, connect to the first match, and run the exchange steps",
			Action:  cmd.run,
			Flags:   runFlags(),
		},
		{
			Name:    "scan",
			Aliases: []string{"s"},
			Usage:   "Scan for the service, and list every peripheral seen",
			Action:  cmd.scan,
			Flags:   scanFlags(),
		},
		{
			Name:   "serve",
			Usage:  "Advertise the service, and echo the values written to the characteristic",
			Action: cmd.serve,
			Flags:  serveFlags(),
		},
	}

	return app
}

func (cmd *command) setup(c *cli.Context) error {
	level, err := logrus.ParseLevel(c.GlobalString("log-level"))
	if err != nil {
		return cli.NewExitError(err, exitError)
	}

	cmd.log.SetLevel(level)
	cmd.log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return nil
}
