package vclock

import (
	"testing"

	"github.com/ptcs/gossip/pkg/member"
)

func id(b byte) member.ID {
	var out member.ID
	out[0] = b
	return out
}

func TestSetAndIncrement(t *testing.T) {
	c := New()
	c.Set(id(1), 5)
	rec := c.Increment(id(1))
	if rec == nil || rec.Seq != 6 {
		t.Fatalf("Increment = %+v", rec)
	}
	if c.Increment(id(2)) != nil {
		t.Fatal("expected nil Increment for unknown id")
	}
}

func TestSetEvictsOldestWhenFull(t *testing.T) {
	c := New()
	for i := 0; i < MaxSize; i++ {
		c.Set(id(byte(i)), uint32(i))
	}
	if c.Size() != MaxSize {
		t.Fatalf("Size = %d, want %d", c.Size(), MaxSize)
	}
	// one more insert evicts slot 0 (id 0)
	c.Set(id(99), 1000)
	if c.Size() != MaxSize {
		t.Fatalf("Size after eviction = %d, want %d", c.Size(), MaxSize)
	}
	if _, ok := findRecord(c, id(0)); ok {
		t.Fatal("expected id(0) to have been evicted")
	}
	if _, ok := findRecord(c, id(99)); !ok {
		t.Fatal("expected id(99) to be present")
	}
}

func findRecord(c *Clock, target member.ID) (Record, bool) {
	for _, r := range c.Records() {
		if r.ID == target {
			return r, true
		}
	}
	return Record{}, false
}

func TestCompareWithRecord(t *testing.T) {
	c := New()
	c.Set(id(1), 5)

	if got := c.CompareWithRecord(Record{ID: id(1), Seq: 3}, false); got != After {
		t.Fatalf("got %v, want After", got)
	}
	if got := c.CompareWithRecord(Record{ID: id(1), Seq: 5}, false); got != Equal {
		t.Fatalf("got %v, want Equal", got)
	}
	if got := c.CompareWithRecord(Record{ID: id(1), Seq: 9}, true); got != Before {
		t.Fatalf("got %v, want Before", got)
	}
	if rec, ok := findRecord(c, id(1)); !ok || rec.Seq != 9 {
		t.Fatalf("expected merge to update seq to 9, got %+v", rec)
	}
	if got := c.CompareWithRecord(Record{ID: id(2), Seq: 1}, false); got != Before {
		t.Fatalf("unknown id: got %v, want Before", got)
	}
}

func TestCompareEqual(t *testing.T) {
	a, b := New(), New()
	a.Set(id(1), 5)
	b.Set(id(1), 5)
	if got := a.Compare(b, false); got != Equal {
		t.Fatalf("got %v, want Equal", got)
	}
}

func TestCompareAfterWhenAhead(t *testing.T) {
	a, b := New(), New()
	a.Set(id(1), 5)
	b.Set(id(1), 3)
	if got := a.Compare(b, false); got != After {
		t.Fatalf("got %v, want After", got)
	}
}

func TestCompareBeforeWhenBehind(t *testing.T) {
	a, b := New(), New()
	a.Set(id(1), 3)
	b.Set(id(1), 5)
	if got := a.Compare(b, true); got != Before {
		t.Fatalf("got %v, want Before", got)
	}
	if rec, _ := findRecord(a, id(1)); rec.Seq != 5 {
		t.Fatalf("expected merge to adopt seq 5, got %d", rec.Seq)
	}
}

func TestCompareConflict(t *testing.T) {
	a, b := New(), New()
	a.Set(id(1), 5)
	a.Set(id(2), 1)
	b.Set(id(1), 3)
	b.Set(id(2), 9)
	if got := a.Compare(b, false); got != Conflict {
		t.Fatalf("got %v, want Conflict", got)
	}
}

func TestCompareBeforeWhenOtherHasExtra(t *testing.T) {
	a, b := New(), New()
	a.Set(id(1), 5)
	b.Set(id(1), 5)
	b.Set(id(2), 1)
	if got := a.Compare(b, true); got != Before {
		t.Fatalf("got %v, want Before", got)
	}
	if _, ok := findRecord(a, id(2)); !ok {
		t.Fatal("expected merge to adopt id(2) from other")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := New()
	c.Set(id(1), 5)
	c.Set(id(2), 9)
	buf := make([]byte, c.EncodedLen())
	n, err := c.Encode(buf)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, consumed, err := Decode(buf[:n])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if consumed != n {
		t.Fatalf("consumed %d, want %d", consumed, n)
	}
	if got.Size() != c.Size() {
		t.Fatalf("Size = %d, want %d", got.Size(), c.Size())
	}
	for _, r := range c.Records() {
		gr, ok := findRecord(got, r.ID)
		if !ok || gr.Seq != r.Seq {
			t.Fatalf("record %x not round-tripped: %+v", r.ID, gr)
		}
	}
}

func TestDecodeRejectsOversizedCount(t *testing.T) {
	buf := make([]byte, 2)
	buf[0], buf[1] = 0xFF, 0xFF
	if _, _, err := Decode(buf); err != ErrInvalidClock {
		t.Fatalf("got %v, want ErrInvalidClock", err)
	}
}

func TestEncodeRecordBufferTooSmall(t *testing.T) {
	if _, err := EncodeRecord(make([]byte, 3), Record{}); err == nil {
		t.Fatal("expected error")
	}
}
