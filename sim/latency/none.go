package latency

import (
	"time"

	"github.com/dvhop-sim/go-dvhop"
)

var (
	_ Model = (*none)(nil)

	// None represents zero no-op latency model.
	None = none{}
)

// None represents zero latency model.
type none struct{}

func (l none) Sample(time.Duration, dvhop.NodeID, dvhop.NodeID) time.Duration { return 0 }
