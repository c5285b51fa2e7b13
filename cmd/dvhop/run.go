package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/dvhop-sim/go-dvhop"
	"github.com/dvhop-sim/go-dvhop/runstore"
	"github.com/dvhop-sim/go-dvhop/sim"
	leveldb "github.com/ipfs/go-ds-leveldb"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

var runCmd = cli.Command{
	Name:  "run",
	Usage: "runs simulation iterations and prints the localisation report of each",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "size",
			Value: 20,
			Usage: "number of nodes",
		},
		&cli.IntFlag{
			Name:  "beacons",
			Value: 10,
			Usage: "number of beacons, taken from the lowest node IDs",
		},
		&cli.Float64Flag{
			Name:  "area",
			Value: 100,
			Usage: "side of the square within which nodes are placed",
		},
		&cli.Float64Flag{
			Name:  "radio-range",
			Value: 30,
			Usage: "maximum distance between neighbours",
		},
		&cli.DurationFlag{
			Name:  "time",
			Value: 10 * time.Second,
			Usage: "duration of the live phase in simulated time",
		},
		&cli.Int64Flag{
			Name:  "seed",
			Value: 12345,
			Usage: "random seed of the first iteration, incremented for each successive one",
		},
		&cli.IntFlag{
			Name:  "iterations",
			Value: 1,
		},
		&cli.IntFlag{
			Name:  "parallelism",
			Value: runtime.NumCPU(),
			Usage: "maximum number of iterations run at the same time",
		},
		&cli.StringFlag{
			Name:  "latency",
			Value: "log-normal",
			Usage: "per hop latency model: log-normal, zipf or none",
		},
		&cli.DurationFlag{
			Name:  "latency-scale",
			Value: 2 * time.Millisecond,
			Usage: "mean of log-normal latency, or maximum of zipf latency",
		},
		&cli.IntFlag{
			Name:  "failures",
			Usage: "number of non-beacon nodes to kill at random times during the live phase",
		},
		&cli.StringFlag{
			Name:  "hop-size-policy",
			Value: "per-anchor",
			Usage: "hop size used to convert hops to ranges: per-anchor, nearest-beacon or learned",
		},
		&cli.StringFlag{
			Name:  "anchors",
			Value: "all",
			Usage: "anchors to localise from: all or nearest-three",
		},
		&cli.DurationFlag{
			Name:  "flood-hop-size",
			Usage: "time at which beacons flood their hop size; disabled when zero",
		},
		&cli.DurationFlag{
			Name:  "dump-tables",
			Usage: "time at which to print every distance table; disabled unless set",
		},
		&cli.StringFlag{
			Name:  "db",
			Usage: "path to a leveldb directory in which to record run summaries",
		},
	},
	Action: func(c *cli.Context) (_err error) {
		hopSizes, err := parseHopSizePolicy(c.String("hop-size-policy"))
		if err != nil {
			return err
		}
		anchors, err := parseAnchorPolicy(c.String("anchors"))
		if err != nil {
			return err
		}
		newLatencyModel, err := parseLatency(c.String("latency"), c.Duration("latency-scale"))
		if err != nil {
			return err
		}

		var store *runstore.Store
		if path := c.String("db"); path != "" {
			ds, err := leveldb.NewDatastore(path, nil)
			if err != nil {
				return xerrors.Errorf("opening datastore: %w", err)
			}
			defer func() { _err = multierr.Append(_err, ds.Close()) }()
			store = runstore.New(ds)
		}

		iterations := c.Int("iterations")
		if iterations < 1 {
			return xerrors.Errorf("iterations must be at least 1, got %d", iterations)
		}
		outputs := make([]bytes.Buffer, iterations)
		eg, ctx := errgroup.WithContext(c.Context)
		eg.SetLimit(max(c.Int("parallelism"), 1))
		for i := 0; i < iterations; i++ {
			seed := c.Int64("seed") + int64(i)
			out := &outputs[i]
			opts := []sim.Option{
				sim.WithSeed(seed),
				sim.WithNodeCount(c.Int("size")),
				sim.WithBeaconCount(c.Int("beacons")),
				sim.WithArea(c.Float64("area"), c.Float64("area")),
				sim.WithRadioRange(c.Float64("radio-range")),
				sim.WithStopTime(c.Duration("time")),
				sim.WithSeededLatency(newLatencyModel),
				sim.WithRandomFailures(c.Int("failures"), 0),
				sim.WithAnalyzerOptions(dvhop.WithHopSizePolicy(hopSizes), dvhop.WithAnchorPolicy(anchors)),
			}
			if at := c.Duration("flood-hop-size"); at > 0 {
				opts = append(opts, sim.WithHopSizeFloodingAt(at))
			}
			if c.IsSet("dump-tables") {
				opts = append(opts, sim.WithDistanceTableDump(c.Duration("dump-tables"), out))
			}

			eg.Go(func() error {
				fmt.Fprintf(out, "Iteration %d: seed=%d\n", i, seed)
				run, err := iterate(ctx, out, seed, opts...)
				if err != nil {
					return xerrors.Errorf("iteration %d: %w", i, err)
				}
				if store == nil {
					return nil
				}
				id, err := store.Put(ctx, run)
				if err != nil {
					return xerrors.Errorf("recording iteration %d: %w", i, err)
				}
				log.Infow("recorded run", "iteration", i, "id", id)
				return nil
			})
		}
		err = eg.Wait()
		for i := range outputs {
			if _, werr := outputs[i].WriteTo(c.App.Writer); werr != nil {
				return multierr.Append(err, werr)
			}
		}
		return err
	},
}

// iterate runs a single simulation and writes its report to out.
func iterate(ctx context.Context, out io.Writer, seed int64, o ...sim.Option) (runstore.Run, error) {
	s, err := sim.NewSimulation(o...)
	if err != nil {
		return runstore.Run{}, xerrors.Errorf("creating simulation: %w", err)
	}
	if err := s.Run(ctx); err != nil {
		return runstore.Run{}, xerrors.Errorf("running live phase: %w", err)
	}
	report, err := s.Analyze(ctx)
	if err != nil {
		return runstore.Run{}, xerrors.Errorf("analysing: %w", err)
	}
	if _, err := report.WriteTo(out); err != nil {
		return runstore.Run{}, err
	}
	return runstore.NewRun(seed, s.Topology().Len(), len(s.Beacons()), len(s.Churn().Killed()), report), nil
}
