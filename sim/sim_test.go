package sim_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/dvhop-sim/go-dvhop"
	"github.com/dvhop-sim/go-dvhop/sim"
	"github.com/dvhop-sim/go-dvhop/sim/latency"
	"github.com/stretchr/testify/require"
)

// gridTopology lays out a 5 by 5 grid with spacing 10, where each node
// neighbours only the nodes directly above, below, left and right of it.
func gridTopology(t *testing.T) *sim.Topology {
	t.Helper()
	var positions []dvhop.Point
	for i := 0; i < 25; i++ {
		positions = append(positions, dvhop.Point{X: float64(10 * (i % 5)), Y: float64(10 * (i / 5))})
	}
	topology, err := sim.NewTopology(positions, 10)
	require.NoError(t, err)
	return topology
}

// lineTopology lays out nodes along the X axis at the given offsets.
func lineTopology(t *testing.T, radioRange float64, xs ...float64) *sim.Topology {
	t.Helper()
	var positions []dvhop.Point
	for _, x := range xs {
		positions = append(positions, dvhop.Point{X: x})
	}
	topology, err := sim.NewTopology(positions, radioRange)
	require.NoError(t, err)
	return topology
}

func runSimulation(t *testing.T, o ...sim.Option) *sim.Simulation {
	t.Helper()
	subject, err := sim.NewSimulation(o...)
	require.NoError(t, err)
	require.NoError(t, subject.Run(context.Background()))
	return subject
}

func requireTable(t *testing.T, subject *sim.Simulation, id dvhop.NodeID, want ...dvhop.BeaconInfo) {
	t.Helper()
	node, found := subject.Node(id)
	require.True(t, found)
	if len(want) == 0 {
		require.Empty(t, node.DistanceTable(), "node %d", id)
		return
	}
	require.Equal(t, want, node.DistanceTable(), "node %d", id)
}

func TestSimulation_TablesConvergeToShortestPaths(t *testing.T) {
	topology := gridTopology(t)
	beacons := []dvhop.NodeID{0, 4, 12, 20, 24}
	subject := runSimulation(t,
		sim.WithTopology(topology),
		sim.WithBeacons(beacons...),
	)

	require.Equal(t, 10*time.Second, subject.Time())
	for _, node := range subject.Nodes() {
		table := node.DistanceTable()
		require.Len(t, table, len(beacons), "node %d", node.ID())
		for i, entry := range table {
			require.Equal(t, beacons[i], entry.Beacon)
			wantPosition, _ := topology.Position(entry.Beacon)
			require.Equal(t, wantPosition, entry.Position)
			require.Equal(t, shortestHops(topology, entry.Beacon)[node.ID()], entry.Hops, "node %d to beacon %d", node.ID(), entry.Beacon)
		}
	}
}

func TestSimulation_TablesConvergeWithoutPeriodicAnnouncements(t *testing.T) {
	topology := gridTopology(t)
	subject := runSimulation(t,
		sim.WithTopology(topology),
		sim.WithBeacons(0, 24),
		sim.WithAnnounceInterval(0),
		sim.WithLatencyModel(latency.None),
	)
	for _, node := range subject.Nodes() {
		table := node.DistanceTable()
		require.Len(t, table, 2)
		require.Equal(t, shortestHops(topology, 0)[node.ID()], table[0].Hops)
		require.Equal(t, shortestHops(topology, 24)[node.ID()], table[1].Hops)
	}
}

func TestSimulation_AnalyzeGrid(t *testing.T) {
	subject := runSimulation(t,
		sim.WithTopology(gridTopology(t)),
		sim.WithBeacons(0, 4, 12, 20, 24),
	)

	report, err := subject.Analyze(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 20)
	require.Equal(t, 20, report.Count)
	require.Zero(t, report.Underdetermined)
	require.Zero(t, report.Degenerate)
	require.InDelta(t, 7.0710678118654755, report.HopSizes[12], 1e-9)
	require.InDelta(t, 8.242640687119286, report.HopSizes[0], 1e-9)
	mean, ok := report.MeanError()
	require.True(t, ok)
	require.Less(t, mean, 10.0)
	for _, result := range report.Results {
		require.Equal(t, 5, result.Anchors)
	}
}

func TestSimulation_KilledIntermediateLeavesStaleEntries(t *testing.T) {
	subject := runSimulation(t,
		sim.WithTopology(lineTopology(t, 10, 0, 10, 20, 30)),
		sim.WithBeacons(0, 3),
		sim.WithFailures(dvhop.Failure{At: 5 * time.Second, Node: 1}),
	)

	require.Equal(t, []dvhop.NodeID{1}, subject.Churn().Killed())
	killed, _ := subject.Node(1)
	require.False(t, killed.Alive())

	beacon0 := dvhop.Point{X: 0}
	beacon3 := dvhop.Point{X: 30}
	// Entries learned through node 1 before it failed are never withdrawn.
	requireTable(t, subject, 0,
		dvhop.BeaconInfo{Beacon: 0, Position: beacon0, Hops: 0},
		dvhop.BeaconInfo{Beacon: 3, Position: beacon3, Hops: 3})
	requireTable(t, subject, 1,
		dvhop.BeaconInfo{Beacon: 0, Position: beacon0, Hops: 1},
		dvhop.BeaconInfo{Beacon: 3, Position: beacon3, Hops: 2})
	requireTable(t, subject, 2,
		dvhop.BeaconInfo{Beacon: 0, Position: beacon0, Hops: 2},
		dvhop.BeaconInfo{Beacon: 3, Position: beacon3, Hops: 1})
}

func TestSimulation_KilledNodeStopsUpdating(t *testing.T) {
	subject := runSimulation(t,
		sim.WithTopology(lineTopology(t, 10, 0, 10, 20, 30)),
		sim.WithBeacons(0, 3),
		sim.WithFailures(dvhop.Failure{At: 0, Node: 2}),
	)

	requireTable(t, subject, 2)
	requireTable(t, subject, 1, dvhop.BeaconInfo{Beacon: 0, Position: dvhop.Point{}, Hops: 1})
	requireTable(t, subject, 0, dvhop.BeaconInfo{Beacon: 0, Position: dvhop.Point{}, Hops: 0})

	report, err := subject.Analyze(context.Background())
	require.NoError(t, err)
	// Killed nodes are still analysed from whatever their table holds.
	require.Len(t, report.Results, 2)
	require.Equal(t, 2, report.Underdetermined)
}

func TestSimulation_FailuresPastStopTimeAreNotApplied(t *testing.T) {
	subject := runSimulation(t,
		sim.WithTopology(lineTopology(t, 10, 0, 10, 20)),
		sim.WithBeacons(0),
		sim.WithStopTime(2*time.Second),
		sim.WithFailures(dvhop.Failure{At: 3 * time.Second, Node: 1}),
	)
	require.Empty(t, subject.Churn().Killed())
	node, _ := subject.Node(1)
	require.True(t, node.Alive())
	require.Equal(t, 2*time.Second, subject.Time())
}

func TestSimulation_RandomFailuresOnlyHitNonBeacons(t *testing.T) {
	subject := runSimulation(t,
		sim.WithNodeCount(30),
		sim.WithBeaconCount(10),
		sim.WithRandomFailures(25, time.Second),
	)
	failures := subject.Failures()
	require.Len(t, failures, 20)
	require.Len(t, subject.Churn().Killed(), 20)
	for _, f := range failures {
		require.GreaterOrEqual(t, f.Node, dvhop.NodeID(10))
		require.Less(t, f.At, time.Second)
	}
}

func TestSimulation_LiveHopSizeFlooding(t *testing.T) {
	// Beacons 0, 4 and 5 calibrate to 85/9, 9 and 50/6 respectively.
	subject := runSimulation(t,
		sim.WithTopology(lineTopology(t, 10, 0, 10, 20, 30, 40, 45)),
		sim.WithBeacons(0, 4, 5),
		sim.WithHopSizeFloodingAt(5*time.Second),
	)

	for id, want := range map[dvhop.NodeID]float64{
		0: 85.0 / 9,
		1: 85.0 / 9,
		// Equally far from beacons 0 and 4, so the lower ID wins.
		2: 85.0 / 9,
		3: 9,
		4: 9,
		5: 50.0 / 6,
	} {
		node, _ := subject.Node(id)
		got, learned := node.LearnedHopSize()
		require.True(t, learned, "node %d", id)
		require.InDelta(t, want, got, 1e-9, "node %d", id)
	}
}

func TestSimulation_NoHopSizesWithoutFlooding(t *testing.T) {
	subject := runSimulation(t,
		sim.WithTopology(lineTopology(t, 10, 0, 10, 20)),
		sim.WithBeacons(0, 2),
	)
	for _, node := range subject.Nodes() {
		_, learned := node.LearnedHopSize()
		require.False(t, learned)
	}
}

func TestSimulation_DistanceTableDump(t *testing.T) {
	var dump bytes.Buffer
	runSimulation(t,
		sim.WithTopology(lineTopology(t, 10, 0, 5)),
		sim.WithBeacons(0),
		sim.WithDistanceTableDump(5*time.Second, &dump),
	)
	require.Equal(t, `Node: 0 (beacon, alive); Time: 5.000s
Beacon  Position  Hops
0       0,0       0
Node: 1 (node, alive); Time: 5.000s
Beacon  Position  Hops
0       0,0       1
`, dump.String())
}

func TestSimulation_IsDeterministicForSeed(t *testing.T) {
	run := func() (*dvhop.Report, []dvhop.Failure) {
		subject := runSimulation(t,
			sim.WithSeed(7),
			sim.WithNodeCount(40),
			sim.WithRandomFailures(5, 0),
			sim.WithHopSizeFloodingAt(time.Second),
			sim.WithAnalyzerOptions(dvhop.WithHopSizePolicy(dvhop.HopSizeLearned)),
		)
		report, err := subject.Analyze(context.Background())
		require.NoError(t, err)
		return report, subject.Failures()
	}
	oneReport, oneFailures := run()
	otherReport, otherFailures := run()
	require.Equal(t, oneFailures, otherFailures)
	require.Equal(t, oneReport, otherReport)
	require.Len(t, oneReport.Results, 30)
	require.Equal(t, 30, oneReport.Count+oneReport.Underdetermined+oneReport.Degenerate)
}

func TestSimulation_Lifecycle(t *testing.T) {
	ctx := context.Background()
	subject, err := sim.NewSimulation(sim.WithTopology(lineTopology(t, 10, 0, 10)), sim.WithBeacons(0))
	require.NoError(t, err)

	_, err = subject.Analyze(ctx)
	require.Error(t, err)
	require.NoError(t, subject.Run(ctx))
	require.Error(t, subject.Run(ctx))
	require.Error(t, subject.SetBeacon(1))
	require.ErrorIs(t, subject.Kill(7), dvhop.ErrUnknownNode)
	require.NoError(t, subject.Kill(1))
	require.Equal(t, dvhop.Killed, subject.Churn().State(1))
}

func TestSimulation_RunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	subject, err := sim.NewSimulation()
	require.NoError(t, err)
	require.ErrorIs(t, subject.Run(ctx), context.Canceled)
}

func TestSimulation_Options(t *testing.T) {
	tests := []struct {
		name    string
		options []sim.Option
	}{
		{name: "too many beacons", options: []sim.Option{sim.WithNodeCount(5), sim.WithBeaconCount(6)}},
		{name: "beacon outside topology", options: []sim.Option{sim.WithBeacons(20)}},
		{name: "zero radio range", options: []sim.Option{sim.WithRadioRange(0)}},
		{name: "negative area", options: []sim.Option{sim.WithArea(-1, 10)}},
		{name: "nil topology", options: []sim.Option{sim.WithTopology(nil)}},
		{name: "negative stop time", options: []sim.Option{sim.WithStopTime(-time.Second)}},
		{name: "failure before start", options: []sim.Option{sim.WithFailures(dvhop.Failure{At: -1, Node: 12})}},
		{name: "failure of unknown node", options: []sim.Option{sim.WithFailures(dvhop.Failure{Node: 99})}},
		{name: "flooding at start", options: []sim.Option{sim.WithHopSizeFloodingAt(0)}},
		{name: "nil dump writer", options: []sim.Option{sim.WithDistanceTableDump(time.Second, nil)}},
		{name: "unknown anchor policy", options: []sim.Option{sim.WithAnalyzerOptions(dvhop.WithAnchorPolicy(9))}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			subject, err := sim.NewSimulation(test.options...)
			if err == nil {
				err = subject.Run(context.Background())
			}
			require.Error(t, err)
		})
	}

	subject, err := sim.NewSimulation()
	require.NoError(t, err)
	require.Equal(t, 20, subject.Topology().Len())
	require.Equal(t, []dvhop.NodeID{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, subject.Beacons())
	require.Equal(t, 30.0, subject.Topology().RadioRange())
}
