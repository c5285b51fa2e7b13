package dvhop

import (
	"slices"
)

// DistanceTable maps beacon IDs to the best BeaconInfo a node has observed.
//
// For any beacon the table holds the smallest hop count ever offered to Update,
// together with the position that accompanied it. Offers with an equal hop count
// do not replace the stored entry: the first one seen wins. This keeps the table
// stable when the same beacon is heard over several equally short paths.
//
// DistanceTable is not safe for concurrent use. The live phase of a simulation
// writes a node's table from a single event loop, and analysis only reads it.
type DistanceTable struct {
	entries map[NodeID]BeaconInfo
}

// NewDistanceTable returns an empty table.
func NewDistanceTable() *DistanceTable {
	return &DistanceTable{entries: make(map[NodeID]BeaconInfo)}
}

// Update offers an entry for the given beacon and reports whether the table
// changed as a result.
func (t *DistanceTable) Update(beacon NodeID, position Point, hops uint32) bool {
	if existing, found := t.entries[beacon]; found && existing.Hops <= hops {
		return false
	}
	t.entries[beacon] = BeaconInfo{Beacon: beacon, Position: position, Hops: hops}
	metrics.tableUpdates.Add(bgCtx, 1)
	return true
}

// SetSelf records the zero-hop entry a beacon holds for itself. Unlike Update
// it always overwrites, so that a beacon whose position is reconfigured before
// the live phase advertises the new position.
func (t *DistanceTable) SetSelf(beacon NodeID, position Point) {
	t.entries[beacon] = BeaconInfo{Beacon: beacon, Position: position, Hops: 0}
}

// Remove deletes the entry for the given beacon. It is meant for configuration
// before the live phase, such as revoking the beacon role of a node.
func (t *DistanceTable) Remove(beacon NodeID) {
	delete(t.entries, beacon)
}

// Get returns the entry for the given beacon, if any.
func (t *DistanceTable) Get(beacon NodeID) (BeaconInfo, bool) {
	info, found := t.entries[beacon]
	return info, found
}

// Len returns the number of beacons known to the table.
func (t *DistanceTable) Len() int {
	return len(t.entries)
}

// Snapshot returns a copy of all entries in ascending order of beacon ID.
func (t *DistanceTable) Snapshot() []BeaconInfo {
	snapshot := make([]BeaconInfo, 0, len(t.entries))
	for _, info := range t.entries {
		snapshot = append(snapshot, info)
	}
	slices.SortFunc(snapshot, func(one, other BeaconInfo) int {
		return compareIDs(one.Beacon, other.Beacon)
	})
	return snapshot
}

func compareIDs(one, other NodeID) int {
	switch {
	case one < other:
		return -1
	case one > other:
		return 1
	default:
		return 0
	}
}

// byHopsThenID orders entries by ascending hop count, breaking ties by
// ascending beacon ID.
func byHopsThenID(one, other BeaconInfo) int {
	switch {
	case one.Hops < other.Hops:
		return -1
	case one.Hops > other.Hops:
		return 1
	default:
		return compareIDs(one.Beacon, other.Beacon)
	}
}
