package latency

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/dvhop-sim/go-dvhop"
)

var _ Model = (*Zipf)(nil)

// zipfUnit is the resolution of Zipf latency samples.
const zipfUnit = time.Microsecond

// Zipf models a heavy-tailed per hop latency: most hops are delivered within a
// few microseconds while a few take up to max. Samples disregard time.
type Zipf struct {
	dist *rand.Zipf
}

// NewZipf instantiates a Zipf latency model with exponent s > 1 and offset
// v >= 1, bounded by max.
func NewZipf(seed int64, s, v float64, max time.Duration) (*Zipf, error) {
	if max < zipfUnit {
		return nil, fmt.Errorf("max duration must be at least %s", zipfUnit)
	}
	dist := rand.NewZipf(rand.New(rand.NewSource(seed)), s, v, uint64(max/zipfUnit))
	if dist == nil {
		return nil, fmt.Errorf("zipf parameters are out of band: s=%f, v=%f", s, v)
	}
	return &Zipf{dist: dist}, nil
}

// Sample returns the delay of one hop. A node hears its own broadcasts
// immediately.
func (l *Zipf) Sample(_ time.Duration, from dvhop.NodeID, to dvhop.NodeID) time.Duration {
	if from == to {
		return 0
	}
	return time.Duration(l.dist.Uint64()) * zipfUnit
}
