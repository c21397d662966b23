package queue

import (
	"net/netip"
	"testing"
)

func addr(t *testing.T, s string) netip.AddrPort {
	t.Helper()
	return netip.MustParseAddrPort(s)
}

func TestEnqueueRemoveBySeq(t *testing.T) {
	q := New(NewPool(4, 512))
	slot, _ := q.AllocSlot()
	q.Enqueue(Envelope{Seq: 1, Slot: slot, Recipient: addr(t, "10.0.0.1:7001"), MaxAttempts: 3})
	if q.Len() != 1 {
		t.Fatalf("Len = %d, want 1", q.Len())
	}
	if !q.RemoveBySeq(1) {
		t.Fatal("expected RemoveBySeq to succeed")
	}
	if q.Len() != 0 {
		t.Fatalf("Len = %d, want 0", q.Len())
	}
	if q.RemoveBySeq(1) {
		t.Fatal("expected second RemoveBySeq to fail")
	}
}

func TestAllocSlotReusesFreeSlotFirst(t *testing.T) {
	q := New(NewPool(2, 512))
	slot0, _ := q.AllocSlot()
	q.Enqueue(Envelope{Seq: 1, Slot: slot0})
	slot1, _ := q.AllocSlot()
	if slot1 == slot0 {
		t.Fatal("expected distinct slot while pool has room")
	}
	q.Enqueue(Envelope{Seq: 2, Slot: slot1})

	q.RemoveBySeq(1)
	slot2, _ := q.AllocSlot()
	if slot2 != slot0 {
		t.Fatalf("expected freed slot %d to be reused, got %d", slot0, slot2)
	}
}

func TestAllocSlotEvictsHighestAttemptWhenSaturated(t *testing.T) {
	q := New(NewPool(2, 512))
	s0, _ := q.AllocSlot()
	q.Enqueue(Envelope{Seq: 1, Slot: s0, AttemptNum: 2})
	s1, _ := q.AllocSlot()
	q.Enqueue(Envelope{Seq: 2, Slot: s1, AttemptNum: 0})

	// Pool now saturated; the envelope with the higher attempt count (seq 1)
	// should be evicted to make room.
	got, _ := q.AllocSlot()
	if got != s0 {
		t.Fatalf("expected slot %d (highest attempt count) to be reclaimed, got %d", s0, got)
	}
	if q.RemoveBySeq(1) {
		t.Fatal("expected seq 1 to have been evicted already")
	}
	if !q.RemoveBySeq(2) {
		t.Fatal("expected seq 2 to still be queued")
	}
}

func TestAllocSlotEvictsAllEnvelopesSharingSlot(t *testing.T) {
	q := New(NewPool(1, 512))
	slot, _ := q.AllocSlot()
	q.Enqueue(Envelope{Seq: 1, Slot: slot})
	q.Enqueue(Envelope{Seq: 2, Slot: slot})

	q.AllocSlot()
	if q.Len() != 0 {
		t.Fatalf("Len = %d, want 0 after evicting every envelope sharing the reclaimed slot", q.Len())
	}
}

func TestEachMutatesAndFilters(t *testing.T) {
	q := New(NewPool(2, 512))
	s0, _ := q.AllocSlot()
	q.Enqueue(Envelope{Seq: 1, Slot: s0})
	s1, _ := q.AllocSlot()
	q.Enqueue(Envelope{Seq: 2, Slot: s1})

	q.Each(func(e Envelope) (Envelope, bool) {
		if e.Seq == 1 {
			return e, false
		}
		e.AttemptNum++
		return e, true
	})

	if q.Len() != 1 {
		t.Fatalf("Len = %d, want 1", q.Len())
	}
	var seen Envelope
	q.Each(func(e Envelope) (Envelope, bool) {
		seen = e
		return e, true
	})
	if seen.Seq != 2 || seen.AttemptNum != 1 {
		t.Fatalf("got %+v", seen)
	}
}

func TestPoolBufferSlicing(t *testing.T) {
	p := NewPool(3, 16)
	if p.Slots() != 3 {
		t.Fatalf("Slots() = %d, want 3", p.Slots())
	}
	b0 := p.Buffer(0)
	b1 := p.Buffer(1)
	if len(b0) != 16 || len(b1) != 16 {
		t.Fatalf("unexpected buffer lengths: %d %d", len(b0), len(b1))
	}
	b0[0] = 0xFF
	if b1[0] == 0xFF {
		t.Fatal("buffers should not alias each other")
	}
}
