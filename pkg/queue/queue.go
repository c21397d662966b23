// Package queue implements the outbound message queue: a FIFO of envelopes
// awaiting send/retry, backed by a fixed pool of fixed-size buffers. When
// every buffer slot is in use, the slot belonging to the envelope with the
// highest attempt count is reclaimed, evicting every other envelope that
// aliases the same buffer.
package queue

import (
	"container/list"
	"net/netip"
)

// Envelope is a single queued outbound message: the buffer slice it was
// encoded into, the recipient, and retry bookkeeping.
//
// Multiple envelopes can alias the same underlying Slot when a message is
// fanned out to several recipients (RANDOM/BROADCAST spreading) — the wire
// bytes are identical for every recipient except for the sequence number
// patched in just before each send.
type Envelope struct {
	Seq         uint32
	Slot        int
	Size        int
	Recipient   netip.AddrPort
	AttemptNum  uint16
	MaxAttempts uint16
	AttemptTS   int64
}

// Queue is a FIFO of outbound envelopes, indexed by sequence number for
// O(1) ack/welcome removal.
//
// Queue is not safe for concurrent use.
type Queue struct {
	order *list.List
	bySeq map[uint32]*list.Element
	pool  *Pool
}

// New returns an empty Queue backed by pool.
func New(pool *Pool) *Queue {
	return &Queue{
		order: list.New(),
		bySeq: make(map[uint32]*list.Element),
		pool:  pool,
	}
}

// Len returns the number of envelopes currently queued.
func (q *Queue) Len() int { return q.order.Len() }

// Enqueue appends env to the tail of the queue.
func (q *Queue) Enqueue(env Envelope) {
	el := q.order.PushBack(env)
	q.bySeq[env.Seq] = el
}

// RemoveBySeq removes the envelope with the given sequence number, if
// present. It reports whether an envelope was removed.
func (q *Queue) RemoveBySeq(seq uint32) bool {
	el, ok := q.bySeq[seq]
	if !ok {
		return false
	}
	q.order.Remove(el)
	delete(q.bySeq, seq)
	return true
}

// remove removes a specific list element, used internally while walking the
// queue.
func (q *Queue) remove(el *list.Element) {
	env := el.Value.(Envelope)
	q.order.Remove(el)
	delete(q.bySeq, env.Seq)
}

// Each calls fn for every envelope currently in the queue, in FIFO order.
// fn may request the envelope be removed or updated by returning the
// (possibly mutated) envelope and a keep flag; returning keep=false removes
// the envelope from the queue after the call.
func (q *Queue) Each(fn func(Envelope) (Envelope, bool)) {
	var next *list.Element
	for el := q.order.Front(); el != nil; el = next {
		next = el.Next()
		env := el.Value.(Envelope)
		updated, keep := fn(env)
		if !keep {
			q.remove(el)
			continue
		}
		el.Value = updated
	}
}

// Clear removes every envelope from the queue. The pool's buffers are left
// as they are.
func (q *Queue) Clear() {
	q.order.Init()
	q.bySeq = make(map[uint32]*list.Element)
}

// AllocSlot reserves a buffer slot for a new outbound message, evicting the
// envelope(s) with the highest attempt count sharing a slot if the pool is
// saturated. It returns the slot index and its backing buffer.
func (q *Queue) AllocSlot() (int, []byte) {
	occupied := make([]bool, q.pool.Slots())
	var oldestSlot = -1
	var oldestAttempts uint16

	var next *list.Element
	for el := q.order.Front(); el != nil; el = next {
		next = el.Next()
		env := el.Value.(Envelope)
		occupied[env.Slot] = true
		if oldestSlot < 0 || env.AttemptNum > oldestAttempts {
			oldestSlot = env.Slot
			oldestAttempts = env.AttemptNum
		}
	}

	for i, used := range occupied {
		if !used {
			return i, q.pool.Buffer(i)
		}
	}

	// No free slot: evict every envelope aliasing the slot with the highest
	// attempt count, mirroring gossip_find_available_output_buffer's
	// overwrite-the-oldest fallback.
	for el := q.order.Front(); el != nil; el = next {
		next = el.Next()
		env := el.Value.(Envelope)
		if env.Slot == oldestSlot {
			q.remove(el)
		}
	}
	return oldestSlot, q.pool.Buffer(oldestSlot)
}
