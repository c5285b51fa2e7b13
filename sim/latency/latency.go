package latency

import (
	"time"

	"github.com/dvhop-sim/go-dvhop"
)

// Model represents a latency model of hop-by-hop delivery between neighbouring
// nodes. Implementations may vary latency by time or by node pair.
type Model interface {
	// Sample returns the delay before a message sent by one node at the given
	// offset from the start of the simulation is received by a neighbour.
	Sample(at time.Duration, from dvhop.NodeID, to dvhop.NodeID) time.Duration
}
