package sim

import (
	"time"

	"github.com/dvhop-sim/go-dvhop"
)

var _ dvhop.Localizable = (*Node)(nil)

// Host is the endpoint through which a node interacts with the simulated
// network. It knows nothing of the node's role.
type Host interface {
	// Time returns the current simulation time.
	Time() time.Duration
	// Broadcast delivers the payload from the given node to each of its
	// neighbours after a sampled latency.
	Broadcast(from dvhop.NodeID, payload any)
	// SetAlarm replaces any pending alarm of the given node with one at the given
	// time.
	SetAlarm(id dvhop.NodeID, at time.Duration)
}

// announcement carries distance table entries as held by the sender. Hop
// counts are those of the sender; receivers add one.
type announcement struct {
	entries []dvhop.BeaconInfo
}

// hopSizeAnnouncement floods the hop size calibrated at a beacon. Hops is the
// distance of the sender from that beacon.
type hopSizeAnnouncement struct {
	beacon  dvhop.NodeID
	hopSize float64
	hops    uint32
}

type learnedHopSize struct {
	hopSize float64
	hops    uint32
}

// Node is the DV-Hop routing component of a single simulated node. It
// maintains the node's distance table by flooding beacon announcements and,
// when enabled, learns hop sizes flooded by beacons.
//
// A node is driven by its Host from a single event loop and is not safe for
// concurrent use.
type Node struct {
	id       dvhop.NodeID
	host     Host
	beacon   bool
	position dvhop.Point
	alive    bool

	table    *dvhop.DistanceTable
	hopSizes map[dvhop.NodeID]learnedHopSize

	announceInterval time.Duration
	jitter           func() time.Duration
}

func newNode(id dvhop.NodeID, host Host, announceInterval time.Duration, jitter func() time.Duration) *Node {
	return &Node{
		id:               id,
		host:             host,
		alive:            true,
		table:            dvhop.NewDistanceTable(),
		hopSizes:         make(map[dvhop.NodeID]learnedHopSize),
		announceInterval: announceInterval,
		jitter:           jitter,
	}
}

func (n *Node) ID() dvhop.NodeID { return n.id }
func (n *Node) IsBeacon() bool   { return n.beacon }
func (n *Node) Alive() bool      { return n.alive }

// SetIsBeacon assigns or revokes the beacon role. A beacon holds a zero-hop
// entry for itself at its configured position.
func (n *Node) SetIsBeacon(beacon bool) {
	n.beacon = beacon
	if beacon {
		n.table.SetSelf(n.id, n.position)
	} else {
		n.table.Remove(n.id)
	}
}

// Position returns the position the node advertises as a beacon.
func (n *Node) Position() dvhop.Point { return n.position }

// SetPosition sets the position the node advertises as a beacon.
func (n *Node) SetPosition(p dvhop.Point) {
	n.position = p
	if n.beacon {
		n.table.SetSelf(n.id, p)
	}
}

// DistanceTable returns a snapshot of the node's distance table.
func (n *Node) DistanceTable() []dvhop.BeaconInfo {
	return n.table.Snapshot()
}

// LearnedHopSize returns the hop size flooded by the nearest beacon, nearest
// by fewest hops then lowest ID.
func (n *Node) LearnedHopSize() (float64, bool) {
	var (
		best    learnedHopSize
		bestID  dvhop.NodeID
		learned bool
	)
	for beacon, candidate := range n.hopSizes {
		if !learned || candidate.hops < best.hops || (candidate.hops == best.hops && beacon < bestID) {
			best, bestID, learned = candidate, beacon, true
		}
	}
	return best.hopSize, learned
}

// Kill stops the node from processing or emitting anything for the rest of the
// simulation. Entries other nodes learned through it are left as they are.
func (n *Node) Kill() {
	n.alive = false
}

// start announces the beacon's own entry and schedules periodic announcements.
func (n *Node) start() {
	if !n.alive {
		return
	}
	if n.beacon {
		self, _ := n.table.Get(n.id)
		n.host.Broadcast(n.id, announcement{entries: []dvhop.BeaconInfo{self}})
	}
	n.scheduleAnnouncement()
}

func (n *Node) scheduleAnnouncement() {
	if n.announceInterval <= 0 {
		return
	}
	n.host.SetAlarm(n.id, n.host.Time()+n.announceInterval+n.jitter())
}

// receiveAlarm re-announces the whole table. Periodic announcements let
// entries reach nodes that missed a triggered update.
func (n *Node) receiveAlarm() {
	if !n.alive {
		return
	}
	if entries := n.table.Snapshot(); len(entries) > 0 {
		n.host.Broadcast(n.id, announcement{entries: entries})
	}
	n.scheduleAnnouncement()
}

// receiveAnnouncement merges entries heard from a neighbour, one hop further
// away than the neighbour, and immediately forwards those that improved the
// table.
func (n *Node) receiveAnnouncement(from dvhop.NodeID, msg announcement) {
	if !n.alive {
		return
	}
	var changed []dvhop.BeaconInfo
	for _, entry := range msg.entries {
		if entry.Beacon == n.id {
			continue
		}
		if n.table.Update(entry.Beacon, entry.Position, entry.Hops+1) {
			stored, _ := n.table.Get(entry.Beacon)
			changed = append(changed, stored)
		}
	}
	if len(changed) > 0 {
		log.Debugw("distance table changed", "node", n.id, "from", from, "entries", len(changed))
		n.host.Broadcast(n.id, announcement{entries: changed})
	}
}

// calibrate computes the hop size of a beacon from its current table and floods
// it. Beacons that heard no other beacon have nothing worth flooding.
func (n *Node) calibrate() {
	if !n.alive || !n.beacon {
		return
	}
	size := dvhop.ComputeHopSize(n.id, n.position, n.table.Snapshot())
	if size <= 0 {
		return
	}
	n.hopSizes[n.id] = learnedHopSize{hopSize: size, hops: 0}
	n.host.Broadcast(n.id, hopSizeAnnouncement{beacon: n.id, hopSize: size, hops: 0})
}

// receiveHopSize keeps, per beacon, the hop size heard over the fewest hops
// and forwards only improvements, so each flood terminates.
func (n *Node) receiveHopSize(msg hopSizeAnnouncement) {
	if !n.alive {
		return
	}
	hops := msg.hops + 1
	if existing, found := n.hopSizes[msg.beacon]; found && existing.hops <= hops {
		return
	}
	n.hopSizes[msg.beacon] = learnedHopSize{hopSize: msg.hopSize, hops: hops}
	n.host.Broadcast(n.id, hopSizeAnnouncement{beacon: msg.beacon, hopSize: msg.hopSize, hops: hops})
}
