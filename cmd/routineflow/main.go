package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/routineflow/routineflow/internal/pkg/logs"
)

func main() {
	cmd := &cli.Command{
		Name:  "routineflow",
		Usage: "Track your routines and get reminded at the right time",
		Commands: []*cli.Command{
			serveHwd.cmd(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logs.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}
