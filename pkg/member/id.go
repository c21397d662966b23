package member

import "github.com/ptcs/gossip/pkg/codec"

// IDSize is the fixed wire size of an ID, used as the key inside vector
// clock records.
const IDSize = 12

// ID is a 12-byte stable identifier derived from a Member: bytes 0-5 are
// address-family-dependent (4 bytes of address + 2 bytes of port for IPv4;
// the first 4 bytes of address + 2 bytes of port for IPv6 — aliasing across
// /32 prefixes is tolerated, see the IPv6 note in the design docs), bytes 6-7
// are reserved, and bytes 8-11 are the big-endian UID.
//
// ID is comparable and can be used directly as a map key.
type ID [IDSize]byte

// DeriveID computes the MemberId for m.
func DeriveID(m Member) ID {
	var id ID
	a := m.Addr.Addr().Unmap()
	if a.Is4() {
		b := a.As4()
		copy(id[0:4], b[:])
	} else {
		b := a.As16()
		copy(id[0:4], b[0:4])
	}
	codec.PutUint16(id[4:6], m.Addr.Port())
	// id[6:8] reserved, left zero.
	codec.PutUint32(id[8:12], m.UID)
	return id
}
