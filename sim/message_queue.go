package sim

import (
	"container/heap"
	"time"

	"github.com/dvhop-sim/go-dvhop"
)

var _ heap.Interface = (*messageQueue)(nil)

// messageQueue is a priority queue that implements heap.Interface and holds
// simulation events in flight prioritised by their delivery time in ascending
// order. Events due at the same time are delivered in the order they were
// inserted, which keeps a simulation reproducible for a given seed.
type messageQueue struct {
	mailbox []*messageInFlight
	// seq is the insertion sequence number assigned to the next event.
	seq uint64
}

type messageInFlight struct {
	source    dvhop.NodeID  // ID of the sender
	dest      dvhop.NodeID  // ID of the receiver
	payload   any           // Event body
	deliverAt time.Duration // Offset from the start of the simulation at which to deliver

	seq   uint64 // Insertion sequence, used to break ties on deliverAt
	index int    // Index in the heap used internally by the heap implementation
}

func (m *messageInFlight) isAlarm() bool {
	_, ok := m.payload.(alarm)
	return ok && m.source == m.dest
}

func newMessagePriorityQueue() *messageQueue {
	var mpq messageQueue
	heap.Init(&mpq)
	return &mpq
}

// Len returns the number of events that are currently in-flight.
func (pq *messageQueue) Len() int { return len(pq.mailbox) }

// Less determines whether the event at index i should be delivered before the
// event at index j: the earlier deliverAt first, then the earlier insertion.
//
// This function is part of heap.Interface and must not be called externally.
func (pq *messageQueue) Less(i, j int) bool {
	switch one, other := pq.mailbox[i], pq.mailbox[j]; {
	case one.deliverAt == other.deliverAt:
		return one.seq < other.seq
	default:
		return one.deliverAt < other.deliverAt
	}
}

// Swap swaps events at index i with the one at index j.
//
// This function is part of heap.Interface and must not be called externally.
func (pq *messageQueue) Swap(i, j int) {
	pq.mailbox[i], pq.mailbox[j] = pq.mailbox[j], pq.mailbox[i]
	pq.mailbox[i].index = i
	pq.mailbox[j].index = j
}

// Push adds an element to this queue.
//
// This function is part of heap.Interface and must not be called externally.
// See: Insert.
func (pq *messageQueue) Push(x any) {
	n := len(pq.mailbox)
	item := x.(*messageInFlight)
	item.index = n
	pq.mailbox = append(pq.mailbox, item)
}

// Pop removes and returns the Len() - 1 element.
//
// This function is part of heap.Interface and must not be called externally.
// See: Remove.
func (pq *messageQueue) Pop() any {
	old := pq.mailbox
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	pq.mailbox = old[0 : n-1]
	return item
}

// Insert adds a messageInFlight to the queue.
func (pq *messageQueue) Insert(x *messageInFlight) {
	x.seq = pq.seq
	pq.seq++
	heap.Push(pq, x)
}

// Peek returns the earliest messageInFlight without removing it.
func (pq *messageQueue) Peek() *messageInFlight {
	if pq.Len() > 0 {
		return pq.mailbox[0]
	}
	return nil
}

// Remove removes and returns the earliest messageInFlight from the queue.
func (pq *messageQueue) Remove() *messageInFlight {
	if pq.Len() > 0 {
		return heap.Pop(pq).(*messageInFlight)
	}
	return nil
}

// Clear discards every event in the queue.
func (pq *messageQueue) Clear() {
	for _, msg := range pq.mailbox {
		msg.index = -1
	}
	pq.mailbox = nil
}

// UpsertFirstWhere finds the first message that matches the given criteria, and
// if found updates its content to the upsert message. Otherwise, inserts the
// message to the queue. An updated message keeps its original insertion order.
func (pq *messageQueue) UpsertFirstWhere(match func(*messageInFlight) bool, upsert *messageInFlight) {
	for _, msg := range pq.mailbox {
		if match(msg) {
			msg.source = upsert.source
			msg.dest = upsert.dest
			msg.deliverAt = upsert.deliverAt
			msg.payload = upsert.payload
			heap.Fix(pq, msg.index)
			return
		}
	}
	pq.Insert(upsert)
}
