package member

import "net/netip"

// Rand supplies the uniform 32-bit random values used by reservoir sampling.
// Clock and RNG sources are external collaborators of the gossip engine, so
// tests can substitute a deterministic source.
type Rand interface {
	Uint32() uint32
}

const (
	initialCapacity = 32
	extensionFactor = 2
	loadFactor      = 0.75
)

// Set is a collection of owned member records. It deduplicates by full
// Member equality, grows its backing storage by a factor of two whenever
// size would exceed loadFactor*capacity, and supports reservoir-sampled
// random selection of peers.
//
// Set is not safe for concurrent use; the gossip engine is single-threaded.
type Set struct {
	members  []Member
	capacity int
}

// NewSet creates an empty member set with the reference implementation's
// initial capacity.
func NewSet() *Set {
	return &Set{
		members:  make([]Member, 0, initialCapacity),
		capacity: initialCapacity,
	}
}

// Len returns the number of members currently in the set.
func (s *Set) Len() int { return len(s.members) }

// Cap returns the current backing capacity of the set.
func (s *Set) Cap() int { return s.capacity }

// Members returns the live members in insertion order. The returned slice
// aliases the set's internal storage and must not be mutated.
func (s *Set) Members() []Member { return s.members }

func (s *Set) grow(required int) {
	newCap := s.capacity
	for float64(required) >= float64(newCap)*loadFactor {
		newCap *= extensionFactor
	}
	s.capacity = newCap
}

// Put inserts each of newMembers that is not already present (by full
// equality). Duplicates are silently ignored. The set's capacity is grown
// ahead of time if the resulting size would exceed the load factor.
func (s *Set) Put(newMembers ...Member) {
	if required := len(s.members) + len(newMembers); required >= int(float64(s.capacity)*loadFactor) {
		s.grow(required)
	}
	for _, nm := range newMembers {
		exists := false
		for _, m := range s.members {
			if m.Equal(nm) {
				exists = true
				break
			}
		}
		if !exists {
			s.members = append(s.members, nm)
		}
	}
}

// Remove removes the member equal to target, preserving the order of the
// remaining members. It reports whether a member was removed.
func (s *Set) Remove(target Member) bool {
	for i, m := range s.members {
		if m.Equal(target) {
			s.members = append(s.members[:i], s.members[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveByAddr removes the member whose address matches addr, if any. This
// mirrors the reference implementation's find-then-remove-by-pointer
// eviction path, where the address is the only thing the caller (the send
// loop) has on hand.
func (s *Set) RemoveByAddr(addr netip.AddrPort) bool {
	if m, ok := s.FindByAddr(addr); ok {
		return s.Remove(m)
	}
	return false
}

// FindByAddr returns the member whose address matches addr, if any.
func (s *Set) FindByAddr(addr netip.AddrPort) (Member, bool) {
	for _, m := range s.members {
		if m.Addr == addr {
			return m, true
		}
	}
	return Member{}, false
}

// Sample returns up to k distinct members chosen uniformly at random using
// reservoir sampling: the first k members fill the reservoir, then for each
// subsequent index i>=k, a replacement index r = rnd()%  (i+1) is drawn and
// the reservoir slot is overwritten if r < k. It returns min(k, Len())
// entries.
func (s *Set) Sample(k int, rnd Rand) []Member {
	if k <= 0 || len(s.members) == 0 {
		return nil
	}
	n := k
	if n > len(s.members) {
		n = len(s.members)
	}
	reservoir := make([]Member, n)
	copy(reservoir, s.members[:n])

	for i := n; i < len(s.members); i++ {
		r := int(rnd.Uint32() % uint32(i+1))
		if r < n {
			reservoir[r] = s.members[i]
		}
	}
	return reservoir
}
