package sim

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/dvhop-sim/go-dvhop"
	"github.com/dvhop-sim/go-dvhop/sim/latency"
)

const (
	defaultNodeCount        = 20
	defaultBeaconCount      = 10
	defaultWidth            = 100.0
	defaultHeight           = 100.0
	defaultRadioRange       = 30.0
	defaultSeed             = 12345
	defaultStopTime         = 10 * time.Second
	defaultAnnounceInterval = time.Second
	defaultLatencyMean      = 2 * time.Millisecond
)

// Option configures a Simulation.
type Option func(*options) error

// seeds holds one seed per random component of a simulation, so that their
// streams are independent of each other.
type seeds struct {
	topology int64
	jitter   int64
	latency  int64
	churn    int64
}

// deriveSeeds draws the seed of each component from a source seeded with seed.
func deriveSeeds(seed int64) seeds {
	rng := rand.New(rand.NewSource(seed))
	return seeds{
		topology: rng.Int63(),
		jitter:   rng.Int63(),
		latency:  rng.Int63(),
		churn:    rng.Int63(),
	}
}

type options struct {
	nodeCount   int
	beaconCount int
	// beacons explicitly lists beacon IDs, overriding beaconCount.
	beacons []dvhop.NodeID
	width   float64
	height  float64
	// radioRange is the maximum distance between neighbours of a random topology.
	radioRange float64
	// topology, when set, replaces the random topology.
	topology *Topology
	// seed drives topology placement, announcement jitter, latency and churn,
	// each through its own seed derived by deriveSeeds.
	seed  int64
	seeds seeds
	// latencyModel models per hop delivery latency. When nil, newLatencyModel
	// builds it from the latency seed, by default as log normal.
	latencyModel     latency.Model
	newLatencyModel  func(seed int64) (latency.Model, error)
	stopTime         time.Duration
	announceInterval time.Duration

	failures       []dvhop.Failure
	randomFailures int
	failureWindow  time.Duration

	// hopSizeFloodingAt is the time at which beacons flood their hop size. Zero
	// disables live flooding.
	hopSizeFloodingAt time.Duration
	dumpAt            time.Duration
	dumpTo            io.Writer

	analyzerOptions []dvhop.AnalyzerOption
}

func newOptions(o ...Option) (*options, error) {
	opts := &options{
		nodeCount:        defaultNodeCount,
		beaconCount:      defaultBeaconCount,
		width:            defaultWidth,
		height:           defaultHeight,
		radioRange:       defaultRadioRange,
		seed:             defaultSeed,
		stopTime:         defaultStopTime,
		announceInterval: defaultAnnounceInterval,
	}
	for _, apply := range o {
		if err := apply(opts); err != nil {
			return nil, err
		}
	}
	if opts.topology != nil {
		opts.nodeCount = opts.topology.Len()
	}
	if opts.beacons == nil {
		if opts.beaconCount > opts.nodeCount {
			return nil, fmt.Errorf("beacon count %d exceeds node count %d", opts.beaconCount, opts.nodeCount)
		}
		for i := 0; i < opts.beaconCount; i++ {
			opts.beacons = append(opts.beacons, dvhop.NodeID(i))
		}
	}
	for _, beacon := range opts.beacons {
		if int(beacon) >= opts.nodeCount {
			return nil, fmt.Errorf("beacon %d is not one of %d nodes", beacon, opts.nodeCount)
		}
	}
	opts.seeds = deriveSeeds(opts.seed)
	if opts.latencyModel == nil {
		newModel := opts.newLatencyModel
		if newModel == nil {
			newModel = func(seed int64) (latency.Model, error) { return latency.NewLogNormal(seed, defaultLatencyMean) }
		}
		var err error
		if opts.latencyModel, err = newModel(opts.seeds.latency); err != nil {
			return nil, err
		}
	}
	if opts.failureWindow == 0 {
		opts.failureWindow = opts.stopTime
	}
	return opts, nil
}

// WithNodeCount sets the number of nodes placed at random. Defaults to 20.
func WithNodeCount(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return errors.New("node count cannot be negative")
		}
		o.nodeCount = n
		return nil
	}
}

// WithBeaconCount sets the number of beacons. The nodes with the lowest IDs
// are beacons. Defaults to 10.
func WithBeaconCount(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return errors.New("beacon count cannot be negative")
		}
		o.beaconCount = n
		return nil
	}
}

// WithBeacons explicitly sets which nodes are beacons, overriding
// WithBeaconCount.
func WithBeacons(ids ...dvhop.NodeID) Option {
	return func(o *options) error {
		o.beacons = append([]dvhop.NodeID{}, ids...)
		return nil
	}
}

// WithArea sets the dimensions of the rectangle within which nodes are placed
// at random. Defaults to 100 by 100.
func WithArea(width, height float64) Option {
	return func(o *options) error {
		if width < 0 || height < 0 {
			return errors.New("area dimensions cannot be negative")
		}
		o.width, o.height = width, height
		return nil
	}
}

// WithRadioRange sets the maximum distance between neighbours of a random
// topology. Defaults to 30.
func WithRadioRange(r float64) Option {
	return func(o *options) error {
		if !(r > 0) {
			return errors.New("radio range must be larger than zero")
		}
		o.radioRange = r
		return nil
	}
}

// WithTopology sets an explicit topology, in which case node count, area and
// radio range are ignored.
func WithTopology(t *Topology) Option {
	return func(o *options) error {
		if t == nil {
			return errors.New("topology cannot be nil")
		}
		o.topology = t
		return nil
	}
}

// WithSeed sets the seed from which every random choice of the simulation is
// derived. Defaults to 12345.
func WithSeed(seed int64) Option {
	return func(o *options) error {
		o.seed = seed
		return nil
	}
}

// WithLatencyModel sets the per hop delivery latency model. Defaults to a log
// normal distribution with 2ms mean, seeded from WithSeed.
func WithLatencyModel(lm latency.Model) Option {
	return func(o *options) error {
		o.latencyModel = lm
		return nil
	}
}

// WithSeededLatency sets a constructor of the per hop delivery latency model,
// called with a seed derived from WithSeed. It is ignored when WithLatencyModel
// is also given.
func WithSeededLatency(newModel func(seed int64) (latency.Model, error)) Option {
	return func(o *options) error {
		if newModel == nil {
			return errors.New("latency model constructor cannot be nil")
		}
		o.newLatencyModel = newModel
		return nil
	}
}

// WithStopTime sets the end of the live phase. Events due later are
// discarded. Defaults to 10 seconds.
func WithStopTime(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.New("stop time cannot be negative")
		}
		o.stopTime = d
		return nil
	}
}

// WithAnnounceInterval sets the mean interval between periodic announcements
// of a node's full distance table. Zero disables periodic announcements,
// leaving only triggered updates. Defaults to 1 second.
func WithAnnounceInterval(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.New("announce interval cannot be negative")
		}
		o.announceInterval = d
		return nil
	}
}

// WithFailures schedules the given node failures.
func WithFailures(failures ...dvhop.Failure) Option {
	return func(o *options) error {
		for _, f := range failures {
			if f.At < 0 {
				return fmt.Errorf("failure of node %d cannot be scheduled before start", f.Node)
			}
		}
		o.failures = append(o.failures, failures...)
		return nil
	}
}

// WithRandomFailures schedules count failures of randomly chosen non-beacon
// nodes at random times within the window. A zero window spans the whole live
// phase.
func WithRandomFailures(count int, window time.Duration) Option {
	return func(o *options) error {
		if count < 0 || window < 0 {
			return errors.New("random failure count and window cannot be negative")
		}
		o.randomFailures = count
		o.failureWindow = window
		return nil
	}
}

// WithHopSizeFloodingAt enables live hop size flooding: at the given time every
// beacon calibrates its hop size and floods it through the network.
func WithHopSizeFloodingAt(at time.Duration) Option {
	return func(o *options) error {
		if at <= 0 {
			return errors.New("hop size flooding time must be larger than zero")
		}
		o.hopSizeFloodingAt = at
		return nil
	}
}

// WithDistanceTableDump writes the distance table of every node to w at the
// given time.
func WithDistanceTableDump(at time.Duration, w io.Writer) Option {
	return func(o *options) error {
		if w == nil {
			return errors.New("distance table dump writer cannot be nil")
		}
		o.dumpAt, o.dumpTo = at, w
		return nil
	}
}

// WithAnalyzerOptions sets the options of the analysis pass.
func WithAnalyzerOptions(ao ...dvhop.AnalyzerOption) Option {
	return func(o *options) error {
		o.analyzerOptions = append(o.analyzerOptions, ao...)
		return nil
	}
}
