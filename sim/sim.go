package sim

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"time"

	"github.com/dvhop-sim/go-dvhop"
)

var _ dvhop.GroundTruth = (*Simulation)(nil)

// Simulation runs the live phase of DV-Hop over a simulated wireless network,
// followed by the localisation analysis of the resulting distance tables.
type Simulation struct {
	*options
	network  *Network
	topology *Topology
	churn    *dvhop.Churn
	analyzer *dvhop.Analyzer
	failures []dvhop.Failure
	ran      bool
}

// NewSimulation builds the topology and nodes, assigns beacons and schedules
// failures. Nothing happens until Run.
func NewSimulation(o ...Option) (*Simulation, error) {
	opts, err := newOptions(o...)
	if err != nil {
		return nil, err
	}
	analyzer, err := dvhop.NewAnalyzer(opts.analyzerOptions...)
	if err != nil {
		return nil, err
	}
	topology := opts.topology
	if topology == nil {
		topology, err = NewRandomTopology(opts.seeds.topology, opts.nodeCount, opts.width, opts.height, opts.radioRange)
		if err != nil {
			return nil, err
		}
	}

	s := &Simulation{
		options:  opts,
		topology: topology,
		churn:    dvhop.NewChurn(opts.seeds.churn),
		analyzer: analyzer,
	}
	s.network = NewNetwork(topology, opts.latencyModel, s.churn)

	// Jitter spreads periodic announcements across up to a tenth of the
	// interval so that nodes do not all announce at the same instant.
	jitterRng := rand.New(rand.NewSource(opts.seeds.jitter))
	jitter := func() time.Duration {
		if spread := int64(opts.announceInterval / 10); spread > 0 {
			return time.Duration(jitterRng.Int63n(spread))
		}
		return 0
	}
	for i := 0; i < topology.Len(); i++ {
		node := newNode(dvhop.NodeID(i), s.network, opts.announceInterval, jitter)
		if err := s.network.AddNode(node); err != nil {
			return nil, err
		}
	}
	for _, id := range opts.beacons {
		if err := s.SetBeacon(id); err != nil {
			return nil, err
		}
	}

	s.failures = slices.Clone(opts.failures)
	if opts.randomFailures > 0 {
		var candidates []dvhop.NodeID
		for i := 0; i < topology.Len(); i++ {
			if !slices.Contains(opts.beacons, dvhop.NodeID(i)) {
				candidates = append(candidates, dvhop.NodeID(i))
			}
		}
		s.failures = append(s.failures, s.churn.Schedule(opts.randomFailures, candidates, opts.failureWindow)...)
	}
	return s, nil
}

// SetBeacon promotes the given node to a beacon advertising its true position.
// It must be called before Run.
func (s *Simulation) SetBeacon(id dvhop.NodeID) error {
	if s.ran {
		return fmt.Errorf("cannot assign beacon %d after the live phase", id)
	}
	node, found := s.network.Node(id)
	if !found {
		return fmt.Errorf("beacon %d: %w", id, dvhop.ErrUnknownNode)
	}
	position, _ := s.topology.Position(id)
	node.SetPosition(position)
	node.SetIsBeacon(true)
	return nil
}

// Run executes the live phase until no events remain or the stop time is
// reached. A simulation can only be run once.
func (s *Simulation) Run(ctx context.Context) error {
	if s.ran {
		return fmt.Errorf("simulation has already run")
	}
	s.ran = true

	for _, f := range s.failures {
		if _, found := s.network.Node(f.Node); !found {
			return fmt.Errorf("failure of node %d: %w", f.Node, dvhop.ErrUnknownNode)
		}
		s.network.ScheduleFailure(f)
	}
	if s.hopSizeFloodingAt > 0 {
		s.network.ScheduleCalibration(s.hopSizeFloodingAt)
	}
	if s.dumpTo != nil {
		s.network.ScheduleTableDump(s.dumpAt, s.dumpTo)
	}

	log.Infow("starting live phase", "nodes", s.topology.Len(), "beacons", len(s.beacons), "stopAt", s.stopTime)
	s.network.Start()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delivered, err := s.network.Tick(ctx, s.stopTime)
		if err != nil {
			return fmt.Errorf("live phase failed at %s: %w", s.network.Time(), err)
		}
		if !delivered {
			break
		}
	}
	metrics.runs.Add(ctx, 1)
	log.Infow("live phase ended", "events", s.network.Delivered(), "killed", len(s.churn.Killed()))
	return nil
}

// Analyze localises every non-beacon node from its distance table.
func (s *Simulation) Analyze(ctx context.Context) (*dvhop.Report, error) {
	if !s.ran {
		return nil, fmt.Errorf("simulation has not run")
	}
	return s.analyzer.Analyze(ctx, s.Nodes(), s)
}

// Kill applies the failure of the given node at the current simulation time.
func (s *Simulation) Kill(id dvhop.NodeID) error {
	return s.network.Kill(id)
}

// Nodes returns every node in ascending order of ID.
func (s *Simulation) Nodes() []dvhop.Localizable {
	nodes := make([]dvhop.Localizable, 0, len(s.network.nodes))
	for _, node := range s.network.nodes {
		nodes = append(nodes, node)
	}
	return nodes
}

// Node returns the node with the given ID.
func (s *Simulation) Node(id dvhop.NodeID) (*Node, bool) {
	return s.network.Node(id)
}

// TruePosition returns the position at which the given node was placed.
func (s *Simulation) TruePosition(id dvhop.NodeID) (dvhop.Point, bool) {
	return s.topology.Position(id)
}

// Topology returns the network topology.
func (s *Simulation) Topology() *Topology { return s.topology }

// Churn returns the churn model tracking failed nodes.
func (s *Simulation) Churn() *dvhop.Churn { return s.churn }

// Failures returns the failures scheduled for the live phase, including random
// ones.
func (s *Simulation) Failures() []dvhop.Failure { return slices.Clone(s.failures) }

// Time returns the current simulation time.
func (s *Simulation) Time() time.Duration { return s.network.Time() }

// Beacons returns the IDs of beacon nodes.
func (s *Simulation) Beacons() []dvhop.NodeID { return slices.Clone(s.beacons) }
