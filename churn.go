package dvhop

import (
	"math/rand"
	"slices"
	"time"
)

// Liveness is the churn state of a node.
type Liveness uint8

const (
	// Alive is the initial state of every node.
	Alive Liveness = iota
	// Killed is terminal: a killed node never becomes alive again.
	Killed
)

func (l Liveness) String() string {
	switch l {
	case Alive:
		return "alive"
	case Killed:
		return "killed"
	default:
		return "unknown"
	}
}

// Failure schedules a node to be killed at a given offset from the start of the
// live phase.
type Failure struct {
	At   time.Duration
	Node NodeID
}

// Churn tracks node failures. A node transitions from Alive to Killed at most
// once; no operation moves it back.
//
// Random victims and failure times are drawn from a source seeded at
// construction, so that a given seed always yields the same failures.
type Churn struct {
	rng    *rand.Rand
	killed map[NodeID]struct{}
}

// NewChurn instantiates a churn model with all nodes alive.
func NewChurn(seed int64) *Churn {
	return &Churn{
		rng:    rand.New(rand.NewSource(seed)),
		killed: make(map[NodeID]struct{}),
	}
}

// State returns the liveness of the given node.
func (c *Churn) State(id NodeID) Liveness {
	if _, found := c.killed[id]; found {
		return Killed
	}
	return Alive
}

// Kill transitions the given node to Killed, and reports whether it was alive
// before the call.
func (c *Churn) Kill(id NodeID) bool {
	if _, found := c.killed[id]; found {
		return false
	}
	c.killed[id] = struct{}{}
	metrics.kills.Add(bgCtx, 1)
	log.Debugw("node killed", "node", id)
	return true
}

// Killed returns the IDs of killed nodes in ascending order.
func (c *Churn) Killed() []NodeID {
	ids := make([]NodeID, 0, len(c.killed))
	for id := range c.killed {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Pick selects up to n distinct alive nodes among the candidates uniformly at
// random. Picking does not kill: callers apply Kill, possibly at a later time.
func (c *Churn) Pick(n int, candidates []NodeID) []NodeID {
	alive := make([]NodeID, 0, len(candidates))
	for _, id := range candidates {
		if c.State(id) == Alive {
			alive = append(alive, id)
		}
	}
	// Sort so that the draw depends only on the seed and the candidate set.
	slices.Sort(alive)
	alive = slices.Compact(alive)
	c.rng.Shuffle(len(alive), func(i, j int) { alive[i], alive[j] = alive[j], alive[i] })
	if n < len(alive) {
		alive = alive[:max(n, 0)]
	}
	return alive
}

// Schedule picks up to n victims among the candidates and assigns each a
// failure time uniformly at random within [0, window). The returned failures
// are ordered by time, then by node.
func (c *Churn) Schedule(n int, candidates []NodeID, window time.Duration) []Failure {
	victims := c.Pick(n, candidates)
	failures := make([]Failure, 0, len(victims))
	for _, victim := range victims {
		var at time.Duration
		if window > 0 {
			at = time.Duration(c.rng.Int63n(int64(window)))
		}
		failures = append(failures, Failure{At: at, Node: victim})
	}
	slices.SortFunc(failures, func(one, other Failure) int {
		switch {
		case one.At < other.At:
			return -1
		case one.At > other.At:
			return 1
		default:
			return compareIDs(one.Node, other.Node)
		}
	})
	return failures
}
