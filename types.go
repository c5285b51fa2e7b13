package dvhop

import (
	"fmt"
	"math"
)

// NodeID identifies a node in the network. Beacons are identified by the ID of
// the node that plays the beacon role.
type NodeID uint64

// Point is a position in the 2D Euclidean plane.
type Point struct {
	X float64
	Y float64
}

// Distance returns the Euclidean distance between p and o.
func (p Point) Distance(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

func (p Point) sub(o Point) Point     { return Point{X: p.X - o.X, Y: p.Y - o.Y} }
func (p Point) add(o Point) Point     { return Point{X: p.X + o.X, Y: p.Y + o.Y} }
func (p Point) scale(f float64) Point { return Point{X: p.X * f, Y: p.Y * f} }
func (p Point) dot(o Point) float64   { return p.X*o.X + p.Y*o.Y }
func (p Point) norm() float64         { return math.Hypot(p.X, p.Y) }
func (p Point) isFinite() bool        { return isFinite(p.X) && isFinite(p.Y) }
func (p Point) String() string        { return fmt.Sprintf("%g,%g", p.X, p.Y) }
func isFinite(f float64) bool         { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// BeaconInfo is what a node knows about a single beacon: where the beacon
// claims to be and the fewest hops over which that claim was heard.
type BeaconInfo struct {
	Beacon   NodeID
	Position Point
	Hops     uint32
}

// Status is the outcome of localising a single node.
type Status uint8

const (
	// StatusOK signals that a position estimate was computed.
	StatusOK Status = iota
	// StatusUnderdetermined signals that fewer than three usable anchors were
	// known to the node.
	StatusUnderdetermined
	// StatusDegenerate signals that the anchor geometry was collinear or
	// coincident beyond numerical tolerance.
	StatusDegenerate
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnderdetermined:
		return "underdetermined"
	case StatusDegenerate:
		return "degenerate"
	default:
		return "unknown"
	}
}

// EstimatedPosition is the localisation result for a single node. Position is
// only meaningful when Status is StatusOK.
type EstimatedPosition struct {
	Node     NodeID
	Position Point
	Status   Status
}
