package sim

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dvhop-sim/go-dvhop"
	"github.com/dvhop-sim/go-dvhop/sim/latency"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var _ Host = (*Network)(nil)

// alarm is the payload of a node's periodic announcement timer.
type alarm struct{}

// calibration triggers live hop size calibration at a beacon.
type calibration struct{}

// failure kills its destination node.
type failure struct{}

// tableDump writes the distance table of every node.
type tableDump struct {
	w io.Writer
}

// Network delivers events between the nodes of a topology in order of
// delivery time. Only neighbours exchange messages; multi-hop propagation is
// the nodes' own doing.
type Network struct {
	topology *Topology
	latency  latency.Model
	churn    *dvhop.Churn
	// Nodes by ID, which is also their index.
	nodes []*Node
	// Events scheduled but not yet delivered.
	queue *messageQueue
	// Timestamp of last event.
	clock time.Duration
	// Number of events delivered so far.
	delivered uint64
}

// NewNetwork instantiates a network over the given topology. Nodes are added
// with AddNode in ascending order of ID.
func NewNetwork(topology *Topology, latency latency.Model, churn *dvhop.Churn) *Network {
	return &Network{
		topology: topology,
		latency:  latency,
		churn:    churn,
		queue:    newMessagePriorityQueue(),
	}
}

// AddNode registers the node with the next free ID.
func (n *Network) AddNode(node *Node) error {
	if want := dvhop.NodeID(len(n.nodes)); node.ID() != want {
		return fmt.Errorf("expected node ID %d, got %d", want, node.ID())
	}
	if int(node.ID()) >= n.topology.Len() {
		return fmt.Errorf("node %d is not part of the topology of %d nodes", node.ID(), n.topology.Len())
	}
	n.nodes = append(n.nodes, node)
	return nil
}

// Node returns the node with the given ID.
func (n *Network) Node(id dvhop.NodeID) (*Node, bool) {
	if uint64(id) >= uint64(len(n.nodes)) {
		return nil, false
	}
	return n.nodes[id], true
}

// Time returns the delivery time of the last event.
func (n *Network) Time() time.Duration {
	return n.clock
}

// Delivered returns the number of events delivered so far.
func (n *Network) Delivered() uint64 {
	return n.delivered
}

// Broadcast queues the payload for delivery to every neighbour of the sender,
// each after its own latency sample.
func (n *Network) Broadcast(from dvhop.NodeID, payload any) {
	for _, to := range n.topology.Neighbours(from) {
		n.queue.Insert(&messageInFlight{
			source:    from,
			dest:      to,
			payload:   payload,
			deliverAt: n.clock + n.latency.Sample(n.clock, from, to),
		})
	}
}

// SetAlarm replaces the pending alarm of the given node, if any.
func (n *Network) SetAlarm(id dvhop.NodeID, at time.Duration) {
	n.queue.UpsertFirstWhere(
		func(m *messageInFlight) bool { return m.dest == id && m.isAlarm() },
		&messageInFlight{source: id, dest: id, payload: alarm{}, deliverAt: at},
	)
}

// ScheduleFailure queues the given failure. Failures are applied at their
// instant, and are never cancelled.
func (n *Network) ScheduleFailure(f dvhop.Failure) {
	n.queue.Insert(&messageInFlight{source: f.Node, dest: f.Node, payload: failure{}, deliverAt: f.At})
}

// ScheduleCalibration queues live hop size calibration at every beacon.
func (n *Network) ScheduleCalibration(at time.Duration) {
	for _, node := range n.nodes {
		if node.IsBeacon() {
			n.queue.Insert(&messageInFlight{source: node.ID(), dest: node.ID(), payload: calibration{}, deliverAt: at})
		}
	}
}

// ScheduleTableDump queues writing every node's distance table to w.
func (n *Network) ScheduleTableDump(at time.Duration, w io.Writer) {
	n.queue.Insert(&messageInFlight{payload: tableDump{w: w}, deliverAt: at})
}

// Kill applies the failure of the given node immediately.
func (n *Network) Kill(id dvhop.NodeID) error {
	node, found := n.Node(id)
	if !found {
		return fmt.Errorf("node %d: %w", id, dvhop.ErrUnknownNode)
	}
	if n.churn.Kill(id) {
		node.Kill()
		log.Infow("node failed", "node", id, "beacon", node.IsBeacon(), "at", n.clock)
	}
	return nil
}

// Start lets every node announce itself.
func (n *Network) Start() {
	for _, node := range n.nodes {
		node.start()
	}
}

// Tick delivers the next event due no later than stopAt, and reports whether
// one was delivered. Events due after stopAt are discarded, and the clock is
// advanced to stopAt.
func (n *Network) Tick(ctx context.Context, stopAt time.Duration) (bool, error) {
	next := n.queue.Peek()
	if next == nil || next.deliverAt > stopAt {
		if discarded := n.queue.Len(); discarded > 0 {
			log.Debugw("discarding events past stop time", "events", discarded, "stopAt", stopAt)
		}
		n.queue.Clear()
		n.clock = max(n.clock, stopAt)
		return false, nil
	}
	msg := n.queue.Remove()
	n.clock = msg.deliverAt
	n.delivered++

	var kind string
	switch payload := msg.payload.(type) {
	case announcement:
		kind = "announcement"
		n.nodes[msg.dest].receiveAnnouncement(msg.source, payload)
	case hopSizeAnnouncement:
		kind = "hop-size"
		n.nodes[msg.dest].receiveHopSize(payload)
	case alarm:
		kind = "alarm"
		n.nodes[msg.dest].receiveAlarm()
	case calibration:
		kind = "calibration"
		n.nodes[msg.dest].calibrate()
	case failure:
		kind = "failure"
		if err := n.Kill(msg.dest); err != nil {
			return false, err
		}
	case tableDump:
		kind = "dump"
		if err := n.dumpTables(payload.w); err != nil {
			return false, fmt.Errorf("failed to dump distance tables: %w", err)
		}
	default:
		return false, fmt.Errorf("unknown event payload: %T", msg.payload)
	}
	metrics.events.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	return true, nil
}
