// Package vclock implements the bounded vector clock used by the gossip
// engine to detect whether an inbound DATA message has already been seen.
package vclock

import (
	"errors"

	"github.com/ptcs/gossip/pkg/codec"
	"github.com/ptcs/gossip/pkg/member"
)

// ErrInvalidClock is returned by Decode when the encoded record count
// exceeds MaxSize.
var ErrInvalidClock = errors.New("vclock: invalid encoded record count")

// MaxSize is the maximum number of records a Clock can hold. Once full, new
// member ids evict the oldest slot (FIFO by insertion order), which makes a
// merge potentially lossy — an accepted trade-off for a fixed-size wire
// encoding.
const MaxSize = 20

// RecordSize is the fixed wire size of a single Record.
const RecordSize = codec.Uint32Size + member.IDSize

// Record is a single (member id, sequence number) pair.
type Record struct {
	Seq uint32
	ID  member.ID
}

// Result is the outcome of comparing a clock (or one of its records) against
// another.
type Result int

const (
	Equal Result = iota
	Before
	After
	Conflict
)

func (r Result) String() string {
	switch r {
	case Equal:
		return "EQUAL"
	case Before:
		return "BEFORE"
	case After:
		return "AFTER"
	case Conflict:
		return "CONFLICT"
	default:
		return "UNKNOWN"
	}
}

// Clock is a ring buffer of up to MaxSize records.
//
// Clock is not safe for concurrent use.
type Clock struct {
	records   [MaxSize]Record
	size      int
	currentIx int
}

// New returns an empty Clock.
func New() *Clock {
	return &Clock{}
}

// Size returns the number of records currently held.
func (c *Clock) Size() int { return c.size }

// Records returns a copy of the live records, in ring order.
func (c *Clock) Records() []Record {
	out := make([]Record, c.size)
	copy(out, c.records[:c.size])
	return out
}

func (c *Clock) find(id member.ID) int {
	for i := 0; i < c.size; i++ {
		if c.records[i].ID == id {
			return i
		}
	}
	return -1
}

// Set stores seq for id, overwriting any existing record for id. If id is
// not present and the ring is full, the record at currentIx is overwritten
// and currentIx advances (mod MaxSize); the returned pointer aliases the
// clock's internal storage and is only valid until the next mutating call.
func (c *Clock) Set(id member.ID, seq uint32) *Record {
	if idx := c.find(id); idx >= 0 {
		c.records[idx].Seq = seq
		return &c.records[idx]
	}
	idx := c.currentIx
	c.records[idx] = Record{Seq: seq, ID: id}
	if c.size < MaxSize {
		c.size++
	}
	c.currentIx++
	if c.currentIx >= MaxSize {
		c.currentIx = 0
	}
	return &c.records[idx]
}

// Increment finds the record for id and increments its sequence number,
// returning it. It returns nil if id has no record.
func (c *Clock) Increment(id member.ID) *Record {
	idx := c.find(id)
	if idx < 0 {
		return nil
	}
	c.records[idx].Seq++
	return &c.records[idx]
}

func resolve(prev, next Result) Result {
	if prev != Equal && next != prev {
		return Conflict
	}
	return next
}

// CompareWithRecord compares rec against clock c. Absence of rec's member id
// in c is treated as sequence 0 (i.e. BEFORE); if merge is true, the record
// is then inserted via Set.
func (c *Clock) CompareWithRecord(rec Record, merge bool) Result {
	idx := c.find(rec.ID)
	if idx < 0 {
		if merge {
			c.Set(rec.ID, rec.Seq)
		}
		return Before
	}
	switch {
	case c.records[idx].Seq > rec.Seq:
		return After
	case c.records[idx].Seq < rec.Seq:
		if merge {
			c.records[idx].Seq = rec.Seq
		}
		return Before
	default:
		return Equal
	}
}

// Compare folds a comparison of c against other across every record in c,
// then separately accounts for records present in other but absent from c.
// The first non-EQUAL observation sets the running result; any later
// disagreement flips it to CONFLICT. If merge is true, any record where c is
// behind (or missing entirely) adopts other's sequence number.
func (c *Clock) Compare(other *Clock, merge bool) Result {
	result := Equal

	var otherVisited uint32 // bitmask, safe since MaxSize <= 32
	for i := 0; i < c.size; i++ {
		otherIdx := other.find(c.records[i].ID)
		if otherIdx < 0 {
			result = resolve(result, After)
			continue
		}
		otherVisited |= 1 << uint(otherIdx)

		mySeq := c.records[i].Seq
		otherSeq := other.records[otherIdx].Seq
		switch {
		case mySeq > otherSeq:
			result = resolve(result, After)
		case otherSeq > mySeq:
			result = resolve(result, Before)
			if merge {
				c.records[i].Seq = otherSeq
			}
		}
	}

	otherMask := uint32(1)<<uint(other.size) - 1
	missing := otherVisited ^ otherMask
	if missing != 0 {
		result = resolve(result, Before)
		if merge {
			for i := 0; missing != 0; i++ {
				if missing&1 != 0 {
					c.Set(other.records[i].ID, other.records[i].Seq)
				}
				missing >>= 1
			}
		}
	}
	return result
}

// EncodeRecord writes rec to buf in the wire format: seq u32, then the 12
// raw id bytes.
func EncodeRecord(buf []byte, rec Record) (int, error) {
	if len(buf) < RecordSize {
		return 0, codec.ErrBufferNotEnough
	}
	codec.PutUint32(buf, rec.Seq)
	copy(buf[codec.Uint32Size:], rec.ID[:])
	return RecordSize, nil
}

// DecodeRecord reads a single Record from buf.
func DecodeRecord(buf []byte) (Record, int, error) {
	if len(buf) < RecordSize {
		return Record{}, 0, codec.ErrBufferNotEnough
	}
	var rec Record
	rec.Seq = codec.Uint32(buf)
	copy(rec.ID[:], buf[codec.Uint32Size:RecordSize])
	return rec, RecordSize, nil
}

// EncodedLen returns the number of bytes Encode will produce for c.
func (c *Clock) EncodedLen() int {
	return codec.Uint16Size + c.size*RecordSize
}

// Encode writes c to buf as a u16 record count followed by that many
// records, in ring order.
func (c *Clock) Encode(buf []byte) (int, error) {
	n := c.EncodedLen()
	if len(buf) < n {
		return 0, codec.ErrBufferNotEnough
	}
	codec.PutUint16(buf, uint16(c.size))
	cursor := buf[codec.Uint16Size:]
	for i := 0; i < c.size; i++ {
		written, err := EncodeRecord(cursor, c.records[i])
		if err != nil {
			return 0, err
		}
		cursor = cursor[written:]
	}
	return n, nil
}

// Decode reads a Clock from buf, as written by Encode. The resulting clock's
// ring position is reset: subsequent Set calls on a full clock will begin
// evicting from record 0.
func Decode(buf []byte) (*Clock, int, error) {
	count, n, err := codec.DecodeUint16(buf)
	if err != nil {
		return nil, 0, err
	}
	if int(count) > MaxSize {
		return nil, 0, ErrInvalidClock
	}
	cursor := buf[n:]
	c := New()
	for i := 0; i < int(count); i++ {
		rec, consumed, err := DecodeRecord(cursor)
		if err != nil {
			return nil, 0, err
		}
		c.records[i] = rec
		cursor = cursor[consumed:]
		n += consumed
	}
	c.size = int(count)
	c.currentIx = c.size % MaxSize
	return c, n, nil
}
