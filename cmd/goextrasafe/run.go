package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	extrasafe "github.com/Kijewski/goextrasafe"
	"github.com/Kijewski/goextrasafe/pidfile"
	"github.com/Kijewski/goextrasafe/system"
)

var runCommand = cli.Command{
	Name:      "run",
	Usage:     "harden the process, then exec a command",
	ArgsUsage: "<command> [args...]",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "pid-file",
			Usage: "lock this pid file before hardening; a second instance fails to start",
		},
		cli.StringFlag{
			Name:  "pid-file-mode",
			Value: "0640",
			Usage: "octal mode applied if the pid file is newly created",
		},
		cli.BoolFlag{
			Name:  "allow-network-client",
			Usage: "permit creating and using outgoing TCP connections",
		},
		cli.BoolFlag{
			Name:  "allow-network-server",
			Usage: "permit binding, listening and serving TCP sockets",
		},
		cli.BoolFlag{
			Name:  "allow-io",
			Usage: "permit every file I/O operation instead of just stdio",
		},
		cli.BoolFlag{
			Name:  "allow-threads",
			Usage: "permit creating threads and sleeping",
		},
		cli.BoolFlag{
			Name:  "allow-time",
			Usage: "permit reading clocks",
		},
	},
	Action: runAction,
}

func runAction(context *cli.Context) error {
	args := context.Args()
	if len(args) == 0 {
		return errors.New("no command given")
	}
	path, err := exec.LookPath(args[0])
	if err != nil {
		return err
	}

	if pidPath := context.String("pid-file"); pidPath != "" {
		mode, err := strconv.ParseUint(context.String("pid-file-mode"), 8, 32)
		if err != nil {
			return fmt.Errorf("invalid pid-file-mode: %w", err)
		}
		// The lock must survive the exec below, so the descriptor is
		// kept inheritable and the handle deliberately leaked.
		h, err := pidfile.Lock(pidPath, pidfile.Options{
			Mode:          os.FileMode(mode),
			InheritOnExec: true,
		})
		if err != nil {
			return err
		}
		logrus.Debugf("locked pid file %s on fd %d", h.Path(), h.Fd())
	}

	system.RestrictPrivileges()

	ctx := buildContext(context)
	if err := ctx.ApplyToAllThreads(); err != nil {
		return err
	}

	return system.Exec(path, args, os.Environ())
}

func buildContext(context *cli.Context) *extrasafe.SafetyContext {
	ctx := extrasafe.New().
		Enable(extrasafe.NewBasicCapabilities()).
		Enable(extrasafe.NewForkAndExec())

	netClient := context.Bool("allow-network-client")
	netServer := context.Bool("allow-network-server")

	if context.Bool("allow-io") {
		ctx.Enable(extrasafe.SystemIOEverything())
	} else if netClient || netServer {
		// Socket I/O needs unrestricted read/write; descriptor-scoped
		// stdio rules would conflict with them.
		ctx.Enable(extrasafe.NewSystemIO().AllowRead().AllowWrite().AllowClose())
	} else {
		ctx.Enable(extrasafe.NewSystemIO().AllowStdin().AllowStdout().AllowStderr().AllowClose())
	}

	if netClient {
		ctx.Enable(extrasafe.NewNetworking().
			AllowRunningTCPClients().
			AllowStartTCPClients())
	}
	if netServer {
		ctx.Enable(extrasafe.NewNetworking().
			AllowRunningTCPServers().
			AllowStartTCPServers())
	}
	if context.Bool("allow-threads") {
		ctx.Enable(extrasafe.NewThreads().AllowCreate().AllowSleep())
	}
	if context.Bool("allow-time") {
		ctx.Enable(extrasafe.NewTime().AllowGettime())
	}
	return ctx
}
