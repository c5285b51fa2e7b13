package main

import (
	"fmt"
	"time"

	"github.com/dvhop-sim/go-dvhop"
	"github.com/dvhop-sim/go-dvhop/sim/latency"
)

// Zipf exponent and offset of the zipf latency model.
const (
	zipfExponent = 1.2
	zipfOffset   = 1.0
)

var (
	hopSizePolicies = map[string]dvhop.HopSizePolicy{
		"per-anchor":     dvhop.HopSizePerAnchor,
		"nearest-beacon": dvhop.HopSizeNearestBeacon,
		"learned":        dvhop.HopSizeLearned,
	}
	anchorPolicies = map[string]dvhop.AnchorPolicy{
		"all":           dvhop.AnchorsAll,
		"nearest-three": dvhop.AnchorsNearestThree,
	}
)

func parseHopSizePolicy(name string) (dvhop.HopSizePolicy, error) {
	if p, found := hopSizePolicies[name]; found {
		return p, nil
	}
	return 0, fmt.Errorf("unknown hop size policy: %q", name)
}

func parseAnchorPolicy(name string) (dvhop.AnchorPolicy, error) {
	if p, found := anchorPolicies[name]; found {
		return p, nil
	}
	return 0, fmt.Errorf("unknown anchor policy: %q", name)
}

// parseLatency returns a constructor of the named latency model. Scale is the
// mean of log-normal latency and the maximum of zipf latency.
func parseLatency(name string, scale time.Duration) (func(seed int64) (latency.Model, error), error) {
	switch name {
	case "log-normal":
		return func(seed int64) (latency.Model, error) { return latency.NewLogNormal(seed, scale) }, nil
	case "zipf":
		return func(seed int64) (latency.Model, error) { return latency.NewZipf(seed, zipfExponent, zipfOffset, scale) }, nil
	case "none":
		return func(int64) (latency.Model, error) { return latency.None, nil }, nil
	default:
		return nil, fmt.Errorf("unknown latency model: %q", name)
	}
}
