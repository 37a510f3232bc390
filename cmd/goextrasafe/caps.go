package main

import (
	"fmt"
	"sort"

	"github.com/urfave/cli"

	"github.com/Kijewski/goextrasafe/capabilities"
	"github.com/Kijewski/goextrasafe/system"
)

var capsCommand = cli.Command{
	Name:  "caps",
	Usage: "show the effective capabilities and hardening state of this process",
	Action: func(context *cli.Context) error {
		caps, err := capabilities.Current()
		if err != nil {
			return err
		}
		names := make([]string, 0, len(caps))
		for name := range caps {
			names = append(names, name)
		}
		sort.Strings(names)

		if len(names) == 0 {
			fmt.Println("effective capabilities: (none)")
		} else {
			fmt.Println("effective capabilities:")
			for _, name := range names {
				fmt.Printf("  %s\n", name)
			}
		}

		nnp, err := system.NoNewPrivs()
		if err != nil {
			return err
		}
		fmt.Printf("no_new_privs: %v\n", nnp)
		return nil
	},
}
