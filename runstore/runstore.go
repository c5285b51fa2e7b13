// Package runstore persists summaries of completed simulation runs.
package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvhop-sim/go-dvhop"
	"github.com/dvhop-sim/go-dvhop/internal/clock"
	"github.com/dvhop-sim/go-dvhop/internal/measurements"
	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/namespace"
	"github.com/ipfs/go-datastore/query"
	logging "github.com/ipfs/go-log/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/xerrors"
)

var (
	log = logging.Logger("dvhop/runstore")

	ErrRunNotFound = errors.New("run not found")
)

// Run summarises the outcome of one simulation run.
type Run struct {
	ID   string `json:"id"`
	Seed int64  `json:"seed"`

	Nodes    int `json:"nodes"`
	Beacons  int `json:"beacons"`
	Failures int `json:"failures"`

	Localized       int     `json:"localized"`
	Underdetermined int     `json:"underdetermined"`
	Degenerate      int     `json:"degenerate"`
	TotalError      float64 `json:"totalError"`
	// MeanError is zero when no node was localised.
	MeanError float64 `json:"meanError"`

	CompletedAt time.Time `json:"completedAt"`
}

// NewRun summarises the given analysis report.
func NewRun(seed int64, nodes, beacons, failures int, report *dvhop.Report) Run {
	mean, _ := report.MeanError()
	return Run{
		Seed:            seed,
		Nodes:           nodes,
		Beacons:         beacons,
		Failures:        failures,
		Localized:       report.Count,
		Underdetermined: report.Underdetermined,
		Degenerate:      report.Degenerate,
		TotalError:      report.TotalError,
		MeanError:       mean,
	}
}

// Option configures a Store.
type Option func(*Store)

// WithMeter sets the meter through which datastore operations are measured.
func WithMeter(m metric.Meter) Option {
	return func(s *Store) {
		s.meter = m
	}
}

// Store keeps runs in a datastore, keyed by run ID. The datastore must be safe
// for concurrent use.
type Store struct {
	ds    datastore.Datastore
	meter metric.Meter
}

// New instantiates a Store over the given datastore.
func New(ds datastore.Datastore, o ...Option) *Store {
	s := &Store{meter: otel.Meter("dvhop/runstore")}
	for _, apply := range o {
		apply(s)
	}
	metered := measurements.NewMeteredDatastore(s.meter, "dvhop_runstore_datastore_", ds)
	s.ds = namespace.Wrap(metered, datastore.NewKey("/dvhop/runs"))
	return s
}

// Put stores the given run and returns its ID. A run without completion time is
// stamped with the current time of the clock in ctx, and a run without ID is
// assigned one that sorts by completion time.
func (s *Store) Put(ctx context.Context, run Run) (string, error) {
	if run.CompletedAt.IsZero() {
		run.CompletedAt = clock.GetClock(ctx).Now()
	}
	run.CompletedAt = run.CompletedAt.UTC()
	if run.ID == "" {
		run.ID = fmt.Sprintf("%s-%d", run.CompletedAt.Format("20060102T150405.000000000"), run.Seed)
	}
	if strings.Contains(run.ID, "/") {
		return "", xerrors.Errorf("invalid run ID %q: must not contain '/'", run.ID)
	}

	value, err := json.Marshal(run)
	if err != nil {
		return "", xerrors.Errorf("marshalling run %s: %w", run.ID, err)
	}
	if err := s.ds.Put(ctx, keyForRun(run.ID), value); err != nil {
		return "", xerrors.Errorf("storing run %s: %w", run.ID, err)
	}
	log.Debugw("stored run", "id", run.ID, "localized", run.Localized)
	return run.ID, nil
}

// Get returns the run with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	value, err := s.ds.Get(ctx, keyForRun(id))
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, xerrors.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, xerrors.Errorf("getting run %s: %w", id, err)
	}
	var run Run
	if err := json.Unmarshal(value, &run); err != nil {
		return nil, xerrors.Errorf("unmarshalling run %s: %w", id, err)
	}
	return &run, nil
}

// List returns every stored run in ascending order of ID.
func (s *Store) List(ctx context.Context) ([]Run, error) {
	res, err := s.ds.Query(ctx, query.Query{
		Orders: []query.Order{query.OrderByKey{}},
	})
	if err != nil {
		return nil, xerrors.Errorf("querying runs: %w", err)
	}
	defer res.Close()

	var runs []Run
	for r := range res.Next() {
		if r.Error != nil {
			return nil, xerrors.Errorf("iterating runs: %w", r.Error)
		}
		var run Run
		if err := json.Unmarshal(r.Value, &run); err != nil {
			return nil, xerrors.Errorf("unmarshalling run at %s: %w", r.Key, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func keyForRun(id string) datastore.Key {
	return datastore.NewKey(id)
}
