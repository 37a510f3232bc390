package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/Kijewski/goextrasafe/filter"
)

// version is populated at build time with -ldflags "-X main.version=...".
var version = "unknown"

const usage = `goextrasafe launches a command inside a hardened process

goextrasafe locks a pid file, irreversibly restricts the privileges of the
process and installs a seccomp allow-list before replacing itself with the
target command. Permissions are opt-in: anything not named on the command
line is denied.

To run a program that only talks to stdout/stderr:

    # goextrasafe run -- /usr/bin/mytool --flag

To let it make outgoing network connections as well:

    # goextrasafe run --allow-network-client -- /usr/bin/mytool`

func main() {
	app := cli.NewApp()
	app.Name = "goextrasafe"
	app.Usage = usage

	v := []string{version, "go: " + runtime.Version()}
	major, minor, micro := filter.Version()
	if major+minor+micro > 0 {
		v = append(v, fmt.Sprintf("libseccomp: %d.%d.%d", major, minor, micro))
	}
	app.Version = strings.Join(v, "\n")

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging",
		},
	}
	app.Commands = []cli.Command{
		runCommand,
		capsCommand,
	}
	app.Before = func(context *cli.Context) error {
		if context.GlobalBool("debug") {
			logrus.SetLevel(logrus.DebugLevel)
		}
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
