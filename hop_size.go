package dvhop

// HopSizeTable maps beacon IDs to their calibrated average distance per hop.
type HopSizeTable map[NodeID]float64

// ComputeHopSize calibrates the average metric distance covered by one hop, as
// seen from the beacon self located at selfPosition. Every entry for a beacon
// other than self contributes its true distance from selfPosition and its hop
// count.
//
// When no other beacon was reachable the total hop count is zero, and zero is
// returned as a sentinel for "no connectivity". Callers must treat a zero hop
// size as carrying no range information.
func ComputeHopSize(self NodeID, selfPosition Point, entries []BeaconInfo) float64 {
	var (
		sum  float64
		hops uint64
	)
	for _, entry := range entries {
		if entry.Beacon == self {
			continue
		}
		sum += selfPosition.Distance(entry.Position)
		hops += uint64(entry.Hops)
	}
	if hops == 0 {
		log.Debugw("beacon has no connectivity to other beacons", "beacon", self)
		metrics.hopSizeSentinels.Add(bgCtx, 1)
		return 0
	}
	return sum / float64(hops)
}

// Compute calibrates the hop size of the given beacon and records it in the
// table.
func (h HopSizeTable) Compute(self NodeID, selfPosition Point, entries []BeaconInfo) float64 {
	size := ComputeHopSize(self, selfPosition, entries)
	h[self] = size
	return size
}

// Get returns the hop size of the given beacon, if it was computed.
func (h HopSizeTable) Get(beacon NodeID) (float64, bool) {
	size, found := h[beacon]
	return size, found
}
