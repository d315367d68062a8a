package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "incidentctl",
		Usage: "Operator tooling for the incident service",
		Commands: []*cli.Command{
			cmdToken(),
			cmdMigrate(),
			cmdTechnician(),
			cmdObjective(),
			cmdSweep(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
