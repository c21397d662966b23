// Package member implements cluster member identity, the member set used by
// the gossip engine to track known peers, and reservoir-sampled random peer
// selection.
package member

import (
	"net/netip"

	"github.com/ptcs/gossip/pkg/codec"
)

// ErrBufferNotEnough is returned by Encode/Decode when the supplied buffer is
// too small to hold the encoded (or a valid decoded) member record.
var ErrBufferNotEnough = codec.ErrBufferNotEnough

// ProtocolVersion is embedded in every member record and message header.
const ProtocolVersion uint16 = 1

// Member identifies a single cluster peer. Version and UID together with the
// address make up full equality; UID alone is not globally unique (it is
// derived from a low-resolution timestamp), so two members are only equal
// when every field matches.
type Member struct {
	Version uint16
	UID     uint32
	Addr    netip.AddrPort
}

// New builds a Member for addr, deriving UID from nowUnix the same way the
// reference implementation does: a low-resolution (one second) monotonic
// timestamp. Two members created within the same second will share a UID;
// Equal still requires Addr and Version to match too.
func New(addr netip.AddrPort, nowUnix int64) Member {
	return Member{
		Version: ProtocolVersion,
		UID:     uint32(nowUnix),
		Addr:    addr,
	}
}

// Equal reports whether m and other refer to the same member: every field,
// including the address bytes, must match exactly.
func (m Member) Equal(other Member) bool {
	return m.Version == other.Version &&
		m.UID == other.UID &&
		m.Addr == other.Addr
}

// addrBytes returns the 4 or 16 raw address bytes for m.Addr, unmapping any
// IPv4-in-IPv6 address first so the wire encoding is consistent regardless of
// how the OS reported it.
func (m Member) addrBytes() ([]byte, bool) {
	a := m.Addr.Addr().Unmap()
	if a.Is4() {
		b := a.As4()
		return b[:], true
	}
	b := a.As16()
	return b[:], false
}

// EncodedLen returns the number of bytes Encode will produce for m.
func (m Member) EncodedLen() int {
	_, is4 := m.addrBytes()
	if is4 {
		return 2 + 4 + 1 + 4 + 2
	}
	return 2 + 4 + 1 + 16 + 2
}

// Encode writes m to buf in the wire format:
//
//	version  u16
//	uid      u32
//	family   u8   (4 or 6)
//	address  4 or 16 raw bytes, depending on family
//	port     u16
func (m Member) Encode(buf []byte) (int, error) {
	n := m.EncodedLen()
	if len(buf) < n {
		return 0, ErrBufferNotEnough
	}
	addr, is4 := m.addrBytes()

	cursor := buf
	codec.PutUint16(cursor, m.Version)
	cursor = cursor[2:]
	codec.PutUint32(cursor, m.UID)
	cursor = cursor[4:]
	if is4 {
		cursor[0] = 4
	} else {
		cursor[0] = 6
	}
	cursor = cursor[1:]
	copy(cursor, addr)
	cursor = cursor[len(addr):]
	codec.PutUint16(cursor, m.Addr.Port())
	return n, nil
}

// Decode reads a single member record from buf, returning the number of
// bytes consumed.
func Decode(buf []byte) (Member, int, error) {
	if len(buf) < 2+4+1 {
		return Member{}, 0, ErrBufferNotEnough
	}
	var m Member
	m.Version = codec.Uint16(buf)
	m.UID = codec.Uint32(buf[2:])
	family := buf[6]

	var addrLen int
	switch family {
	case 4:
		addrLen = 4
	case 6:
		addrLen = 16
	default:
		return Member{}, 0, ErrBufferNotEnough
	}
	need := 2 + 4 + 1 + addrLen + 2
	if len(buf) < need {
		return Member{}, 0, ErrBufferNotEnough
	}

	addrBuf := buf[7 : 7+addrLen]
	port := codec.Uint16(buf[7+addrLen:])

	var ip netip.Addr
	if addrLen == 4 {
		var b [4]byte
		copy(b[:], addrBuf)
		ip = netip.AddrFrom4(b)
	} else {
		var b [16]byte
		copy(b[:], addrBuf)
		ip = netip.AddrFrom16(b)
	}
	m.Addr = netip.AddrPortFrom(ip, port)
	return m, need, nil
}
