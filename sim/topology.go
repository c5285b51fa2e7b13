package sim

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/dvhop-sim/go-dvhop"
)

// Topology places nodes in the plane and connects every pair of nodes within
// radio range of each other. Node IDs are the indices of the given positions.
type Topology struct {
	positions  []dvhop.Point
	neighbours [][]dvhop.NodeID
	radioRange float64
}

// NewTopology connects nodes at the given positions using a unit disk model:
// two distinct nodes are neighbours if and only if they are at most radioRange
// apart.
func NewTopology(positions []dvhop.Point, radioRange float64) (*Topology, error) {
	if !(radioRange > 0) {
		return nil, fmt.Errorf("radio range must be larger than zero, got %g", radioRange)
	}
	t := &Topology{
		positions:  append([]dvhop.Point(nil), positions...),
		neighbours: make([][]dvhop.NodeID, len(positions)),
		radioRange: radioRange,
	}
	for i := range positions {
		for j := range positions {
			if i != j && positions[i].Distance(positions[j]) <= radioRange {
				t.neighbours[i] = append(t.neighbours[i], dvhop.NodeID(j))
			}
		}
	}
	return t, nil
}

// NewRandomTopology places count nodes uniformly at random within a rectangle of
// the given width and height, with its bottom left corner at the origin.
func NewRandomTopology(seed int64, count int, width, height, radioRange float64) (*Topology, error) {
	switch {
	case count < 0:
		return nil, errors.New("node count cannot be negative")
	case width < 0 || height < 0:
		return nil, errors.New("area dimensions cannot be negative")
	}
	rng := rand.New(rand.NewSource(seed))
	positions := make([]dvhop.Point, count)
	for i := range positions {
		positions[i] = dvhop.Point{X: rng.Float64() * width, Y: rng.Float64() * height}
	}
	return NewTopology(positions, radioRange)
}

// Len returns the number of nodes.
func (t *Topology) Len() int { return len(t.positions) }

// RadioRange returns the maximum distance between neighbours.
func (t *Topology) RadioRange() float64 { return t.radioRange }

// Position returns the true position of the given node.
func (t *Topology) Position(id dvhop.NodeID) (dvhop.Point, bool) {
	if !t.contains(id) {
		return dvhop.Point{}, false
	}
	return t.positions[id], true
}

// Neighbours returns the neighbours of the given node in ascending order of ID.
func (t *Topology) Neighbours(id dvhop.NodeID) []dvhop.NodeID {
	if !t.contains(id) {
		return nil
	}
	return t.neighbours[id]
}

func (t *Topology) contains(id dvhop.NodeID) bool {
	return uint64(id) < uint64(len(t.positions))
}
