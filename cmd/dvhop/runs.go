package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dvhop-sim/go-dvhop/runstore"
	leveldb "github.com/ipfs/go-ds-leveldb"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"golang.org/x/xerrors"
)

var runsCmd = cli.Command{
	Name:  "runs",
	Usage: "lists run summaries recorded by run --db",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Required: true,
			Usage:    "path to the leveldb directory of recorded runs",
		},
	},
	Action: func(c *cli.Context) (_err error) {
		ds, err := leveldb.NewDatastore(c.String("db"), nil)
		if err != nil {
			return xerrors.Errorf("opening datastore: %w", err)
		}
		defer func() { _err = multierr.Append(_err, ds.Close()) }()

		runs, err := runstore.New(ds).List(c.Context)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(c.App.Writer, 0, 8, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSeed\tNodes\tBeacons\tFailures\tLocalized\tUnderdetermined\tDegenerate\tMean error")
		for _, run := range runs {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%.4f\n",
				run.ID, run.Seed, run.Nodes, run.Beacons, run.Failures,
				run.Localized, run.Underdetermined, run.Degenerate, run.MeanError)
		}
		return tw.Flush()
	},
}
