package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"
)

var log = logging.Logger("dvhop/cmd")

func newApp() *cli.App {
	return &cli.App{
		Name:  "dvhop",
		Usage: "simulate DV-Hop localisation in wireless networks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
				Usage: "log level of the simulator loggers",
			},
		},
		Before: func(c *cli.Context) error {
			if err := logging.SetLogLevelRegex("dvhop.*", c.String("log-level")); err != nil {
				return xerrors.Errorf("setting log level: %w", err)
			}
			return nil
		},
		Commands: []*cli.Command{
			&runCmd,
			&runsCmd,
		},
	}
}

func main() {
	app := newApp()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT)

	go func() {
		<-sigChan
		cancel()
	}()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "runtime error: %+v\n", err)
		os.Exit(1)
	}
}
