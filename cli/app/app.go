package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/nspcc-dev/flightsurety/cli/query"
	"github.com/nspcc-dev/flightsurety/cli/server"
	"github.com/nspcc-dev/flightsurety/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "FlightSurety oracle service\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates an instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "surety"
	ctl.Version = config.Version
	ctl.Usage = "FlightSurety oracle coordination service"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, server.NewCommands()...)
	ctl.Commands = append(ctl.Commands, query.NewCommands()...)
	return ctl
}
