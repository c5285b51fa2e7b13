package dvhop

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrUnknownNode signals that the ground truth has no position for a node.
	ErrUnknownNode = errors.New("unknown node")
)

// Localizable is the capability a node's routing component exposes to the
// localisation core.
type Localizable interface {
	ID() NodeID
	IsBeacon() bool
	// SetIsBeacon assigns or revokes the beacon role. It is only called before
	// the live phase starts.
	SetIsBeacon(bool)
	// Position returns the position the node advertises as a beacon.
	Position() Point
	// SetPosition sets the position the node advertises as a beacon. It is only
	// called before the live phase starts.
	SetPosition(Point)
	// DistanceTable returns a snapshot of the node's distance table in ascending
	// order of beacon ID.
	DistanceTable() []BeaconInfo
	// LearnedHopSize returns the hop size the node learned from the network
	// during the live phase, if any.
	LearnedHopSize() (float64, bool)
	// Kill stops the node from taking any further part in the live phase.
	Kill()
	Alive() bool
}

// GroundTruth provides the true position of nodes, used to calibrate hop sizes
// and to score estimates.
type GroundTruth interface {
	TruePosition(NodeID) (Point, bool)
}

// AnchorPolicy selects which distance table entries a node localises from.
type AnchorPolicy uint8

const (
	// AnchorsAll uses every usable entry, solving by least squares when more
	// than three are available.
	AnchorsAll AnchorPolicy = iota
	// AnchorsNearestThree uses the three usable entries with the fewest hops,
	// ties broken by ascending beacon ID, and always solves in closed form.
	AnchorsNearestThree
)

// HopSizePolicy selects the hop size used to turn a hop count into a range.
type HopSizePolicy uint8

const (
	// HopSizePerAnchor converts the hops to each beacon using that beacon's own
	// hop size.
	HopSizePerAnchor HopSizePolicy = iota
	// HopSizeNearestBeacon converts all hops using the hop size of the nearest
	// beacon with a non-zero hop size, nearest by fewest hops then lowest ID.
	HopSizeNearestBeacon
	// HopSizeLearned uses the hop size the node learned from the network, and
	// falls back to HopSizeNearestBeacon when it learned none.
	HopSizeLearned
)

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer) error

// WithAnchorPolicy sets the anchor selection policy. Defaults to AnchorsAll.
func WithAnchorPolicy(p AnchorPolicy) AnalyzerOption {
	return func(a *Analyzer) error {
		switch p {
		case AnchorsAll, AnchorsNearestThree:
			a.anchors = p
			return nil
		default:
			return fmt.Errorf("unknown anchor policy: %d", p)
		}
	}
}

// WithHopSizePolicy sets the hop size selection policy. Defaults to
// HopSizePerAnchor.
func WithHopSizePolicy(p HopSizePolicy) AnalyzerOption {
	return func(a *Analyzer) error {
		switch p {
		case HopSizePerAnchor, HopSizeNearestBeacon, HopSizeLearned:
			a.hopSizes = p
			return nil
		default:
			return fmt.Errorf("unknown hop size policy: %d", p)
		}
	}
}

// WithSolver sets the solver used to localise nodes. Defaults to a Solver with
// default options.
func WithSolver(s *Solver) AnalyzerOption {
	return func(a *Analyzer) error {
		if s == nil {
			return errors.New("solver cannot be nil")
		}
		a.solver = s
		return nil
	}
}

// Analyzer runs the analysis pass over nodes whose live phase has ended:
// calibrate hop sizes at beacons, localise every other node and aggregate the
// error against ground truth.
type Analyzer struct {
	solver   *Solver
	anchors  AnchorPolicy
	hopSizes HopSizePolicy
}

// NewAnalyzer instantiates an Analyzer with the given options.
func NewAnalyzer(o ...AnalyzerOption) (*Analyzer, error) {
	var a Analyzer
	for _, apply := range o {
		if err := apply(&a); err != nil {
			return nil, err
		}
	}
	if a.solver == nil {
		var err error
		if a.solver, err = NewSolver(); err != nil {
			return nil, err
		}
	}
	return &a, nil
}

// Analyze localises every non-beacon node. Tables are only read, so nodes must
// not be mutated concurrently.
func (a *Analyzer) Analyze(ctx context.Context, nodes []Localizable, truth GroundTruth) (*Report, error) {
	ordered := slices.Clone(nodes)
	slices.SortFunc(ordered, func(one, other Localizable) int { return compareIDs(one.ID(), other.ID()) })

	report := &Report{HopSizes: make(HopSizeTable)}
	for _, node := range ordered {
		if node.IsBeacon() {
			report.HopSizes.Compute(node.ID(), node.Position(), node.DistanceTable())
		}
	}

	var aggregate ErrorAggregator
	for _, node := range ordered {
		if node.IsBeacon() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		position, found := truth.TruePosition(node.ID())
		if !found {
			return nil, fmt.Errorf("true position of node %d: %w", node.ID(), ErrUnknownNode)
		}
		anchors := a.Anchors(node, report.HopSizes)
		est := EstimatedPosition{Node: node.ID()}
		est.Position, est.Status = a.solver.Solve(anchors)
		recordLocalisation(ctx, est.Status)

		result := Result{EstimatedPosition: est, Truth: position, Anchors: len(anchors)}
		switch est.Status {
		case StatusOK:
			aggregate.Add(est, position)
			metrics.localisationError.Record(ctx, result.Deviation())
		case StatusUnderdetermined:
			report.Underdetermined++
			log.Debugw("too few anchors to localise", "node", node.ID(), "anchors", len(anchors))
		case StatusDegenerate:
			report.Degenerate++
			log.Debugw("degenerate anchor geometry", "node", node.ID(), "anchors", len(anchors))
		}
		report.Results = append(report.Results, result)
	}
	report.TotalError = aggregate.Total()
	report.Count = aggregate.Count()
	return report, nil
}

// Anchors returns the anchors the given node localises from, according to the
// configured policies, in ascending order of ID. Entries whose hop size is zero
// carry no range information and are left out.
func (a *Analyzer) Anchors(node Localizable, hopSizes HopSizeTable) []Anchor {
	var entries []BeaconInfo
	for _, entry := range node.DistanceTable() {
		if entry.Beacon != node.ID() {
			entries = append(entries, entry)
		}
	}

	rangeOf := func(entry BeaconInfo) float64 { return hopSizes[entry.Beacon] * float64(entry.Hops) }
	switch a.hopSizes {
	case HopSizeNearestBeacon:
		size := nearestHopSize(entries, hopSizes)
		rangeOf = func(entry BeaconInfo) float64 { return size * float64(entry.Hops) }
	case HopSizeLearned:
		size, learned := node.LearnedHopSize()
		if !learned || size <= 0 {
			size = nearestHopSize(entries, hopSizes)
		}
		rangeOf = func(entry BeaconInfo) float64 { return size * float64(entry.Hops) }
	}

	if a.anchors == AnchorsNearestThree {
		slices.SortFunc(entries, byHopsThenID)
	}
	anchors := make([]Anchor, 0, len(entries))
	for _, entry := range entries {
		if a.anchors == AnchorsNearestThree && len(anchors) == 3 {
			break
		}
		r := rangeOf(entry)
		if r <= 0 {
			continue
		}
		anchors = append(anchors, Anchor{ID: entry.Beacon, Position: entry.Position, Range: r})
	}
	slices.SortFunc(anchors, func(one, other Anchor) int { return compareIDs(one.ID, other.ID) })
	return anchors
}

// nearestHopSize returns the hop size of the nearest beacon with a non-zero
// hop size, or zero if there is none.
func nearestHopSize(entries []BeaconInfo, hopSizes HopSizeTable) float64 {
	byDistance := slices.Clone(entries)
	slices.SortFunc(byDistance, byHopsThenID)
	for _, entry := range byDistance {
		if size := hopSizes[entry.Beacon]; size > 0 {
			return size
		}
	}
	return 0
}
