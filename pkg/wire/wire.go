// Package wire implements the gossip protocol's on-the-wire message
// encoding: a fixed 12-byte header shared by every message type, followed
// by a type-specific body. All multi-byte integers are big-endian.
package wire

import (
	"errors"

	"github.com/ptcs/gossip/pkg/codec"
	"github.com/ptcs/gossip/pkg/member"
	"github.com/ptcs/gossip/pkg/vclock"
)

// ErrInvalidMessage is returned when a buffer's magic or declared type does
// not match what the caller asked to decode.
var ErrInvalidMessage = errors.New("wire: invalid message")

// ErrBufferNotEnough is returned when a buffer is too small to hold a
// message's declared contents.
var ErrBufferNotEnough = codec.ErrBufferNotEnough

// MaxMessageSize is the maximum size of a single datagram, matching the
// reference implementation's MTU-conscious default.
const MaxMessageSize = 512

// ProtocolID is the 5-byte magic every message starts with.
var ProtocolID = [5]byte{'p', 't', 'c', 's', 0}

// Message type identifiers, carried in Header.Type.
const (
	TypeHello      uint8 = 0x01
	TypeWelcome    uint8 = 0x02
	TypeMemberList uint8 = 0x03
	TypeAck        uint8 = 0x04
	TypeData       uint8 = 0x05
)

// HeaderSize is the fixed size of Header on the wire.
const HeaderSize = 5 + 1 + 2 + 4

// Header is the fixed prefix of every gossip message.
type Header struct {
	Type     uint8
	Reserved uint16
	Seq      uint32
}

// EncodeHeader writes h to buf, returning the number of bytes written.
func EncodeHeader(buf []byte, h Header) (int, error) {
	if len(buf) < HeaderSize {
		return 0, ErrBufferNotEnough
	}
	copy(buf, ProtocolID[:])
	cursor := buf[len(ProtocolID):]
	cursor[0] = h.Type
	cursor = cursor[1:]
	codec.PutUint16(cursor, h.Reserved)
	cursor = cursor[2:]
	codec.PutUint32(cursor, h.Seq)
	return HeaderSize, nil
}

// DecodeHeader reads a Header from buf without validating the magic bytes or
// the type; the per-type Decode functions check both before calling it.
func DecodeHeader(buf []byte) (Header, int, error) {
	if len(buf) < HeaderSize {
		return Header{}, 0, ErrBufferNotEnough
	}
	var h Header
	cursor := buf[len(ProtocolID):]
	h.Type = cursor[0]
	cursor = cursor[1:]
	h.Reserved = codec.Uint16(cursor)
	cursor = cursor[2:]
	h.Seq = codec.Uint32(cursor)
	return h, HeaderSize, nil
}

// PeekType reports the message type byte of buf without fully decoding the
// header, mirroring message_type_decode. It returns ErrBufferNotEnough if
// buf is shorter than a header.
func PeekType(buf []byte) (uint8, error) {
	if len(buf) < HeaderSize {
		return 0, ErrBufferNotEnough
	}
	return buf[len(ProtocolID)], nil
}

func validPayload(buf []byte, wantType uint8) bool {
	if len(buf) < HeaderSize {
		return false
	}
	if buf[len(ProtocolID)] != wantType {
		return false
	}
	for i, b := range ProtocolID {
		if buf[i] != b {
			return false
		}
	}
	return true
}

// Hello is sent by a joining node to announce itself to a seed peer.
type Hello struct {
	Header     Header
	ThisMember member.Member
}

// EncodeHello writes msg to buf.
func EncodeHello(buf []byte, msg Hello) (int, error) {
	msg.Header.Type = TypeHello
	n, err := EncodeHeader(buf, msg.Header)
	if err != nil {
		return 0, err
	}
	mn, err := msg.ThisMember.Encode(buf[n:])
	if err != nil {
		return 0, err
	}
	return n + mn, nil
}

// DecodeHello reads a Hello message from buf.
func DecodeHello(buf []byte) (Hello, int, error) {
	if !validPayload(buf, TypeHello) {
		return Hello{}, 0, ErrInvalidMessage
	}
	var msg Hello
	h, n, err := DecodeHeader(buf)
	if err != nil {
		return Hello{}, 0, err
	}
	msg.Header = h
	m, mn, err := member.Decode(buf[n:])
	if err != nil {
		return Hello{}, 0, err
	}
	msg.ThisMember = m
	return msg, n + mn, nil
}

// Welcome is the seed peer's reply to a Hello, carrying its own identity and
// the sequence number of the Hello it answers.
type Welcome struct {
	Header           Header
	HelloSequenceNum uint32
	ThisMember       member.Member
}

// EncodeWelcome writes msg to buf.
func EncodeWelcome(buf []byte, msg Welcome) (int, error) {
	msg.Header.Type = TypeWelcome
	n, err := EncodeHeader(buf, msg.Header)
	if err != nil {
		return 0, err
	}
	cursor := buf[n:]
	sn, err := codec.EncodeUint32(cursor, msg.HelloSequenceNum)
	if err != nil {
		return 0, err
	}
	cursor = cursor[sn:]
	mn, err := msg.ThisMember.Encode(cursor)
	if err != nil {
		return 0, err
	}
	return n + sn + mn, nil
}

// DecodeWelcome reads a Welcome message from buf.
func DecodeWelcome(buf []byte) (Welcome, int, error) {
	if !validPayload(buf, TypeWelcome) {
		return Welcome{}, 0, ErrInvalidMessage
	}
	var msg Welcome
	h, n, err := DecodeHeader(buf)
	if err != nil {
		return Welcome{}, 0, err
	}
	msg.Header = h
	cursor := buf[n:]
	seq, sn, err := codec.DecodeUint32(cursor)
	if err != nil {
		return Welcome{}, 0, err
	}
	msg.HelloSequenceNum = seq
	cursor = cursor[sn:]
	m, mn, err := member.Decode(cursor)
	if err != nil {
		return Welcome{}, 0, err
	}
	msg.ThisMember = m
	return msg, n + sn + mn, nil
}

// MemberList carries known peers. The engine sends it when it handles a
// Hello: the known member set to the newcomer as a follow-up to Welcome, and
// the newcomer alone to every known member. It is not sent periodically.
type MemberList struct {
	Header  Header
	Members []member.Member
}

// EncodeMemberList writes msg to buf.
func EncodeMemberList(buf []byte, msg MemberList) (int, error) {
	msg.Header.Type = TypeMemberList
	n, err := EncodeHeader(buf, msg.Header)
	if err != nil {
		return 0, err
	}
	cursor := buf[n:]
	cn, err := codec.EncodeUint16(cursor, uint16(len(msg.Members)))
	if err != nil {
		return 0, err
	}
	cursor = cursor[cn:]
	total := n + cn
	for _, m := range msg.Members {
		mn, err := m.Encode(cursor)
		if err != nil {
			return 0, err
		}
		cursor = cursor[mn:]
		total += mn
	}
	return total, nil
}

// DecodeMemberList reads a MemberList message from buf.
func DecodeMemberList(buf []byte) (MemberList, int, error) {
	if !validPayload(buf, TypeMemberList) {
		return MemberList{}, 0, ErrInvalidMessage
	}
	var msg MemberList
	h, n, err := DecodeHeader(buf)
	if err != nil {
		return MemberList{}, 0, err
	}
	msg.Header = h
	cursor := buf[n:]
	count, cn, err := codec.DecodeUint16(cursor)
	if err != nil {
		return MemberList{}, 0, err
	}
	cursor = cursor[cn:]
	total := n + cn
	msg.Members = make([]member.Member, 0, count)
	for i := 0; i < int(count); i++ {
		m, mn, err := member.Decode(cursor)
		if err != nil {
			return MemberList{}, 0, err
		}
		msg.Members = append(msg.Members, m)
		cursor = cursor[mn:]
		total += mn
	}
	return msg, total, nil
}

// Ack acknowledges receipt of a previously sent message by sequence number.
type Ack struct {
	Header         Header
	AckSequenceNum uint32
}

// EncodeAck writes msg to buf.
func EncodeAck(buf []byte, msg Ack) (int, error) {
	msg.Header.Type = TypeAck
	n, err := EncodeHeader(buf, msg.Header)
	if err != nil {
		return 0, err
	}
	an, err := codec.EncodeUint32(buf[n:], msg.AckSequenceNum)
	if err != nil {
		return 0, err
	}
	return n + an, nil
}

// DecodeAck reads an Ack message from buf.
func DecodeAck(buf []byte) (Ack, int, error) {
	if !validPayload(buf, TypeAck) {
		return Ack{}, 0, ErrInvalidMessage
	}
	var msg Ack
	h, n, err := DecodeHeader(buf)
	if err != nil {
		return Ack{}, 0, err
	}
	msg.Header = h
	seq, an, err := codec.DecodeUint32(buf[n:])
	if err != nil {
		return Ack{}, 0, err
	}
	msg.AckSequenceNum = seq
	return msg, n + an, nil
}

// Data carries an application payload along with the vector clock record
// that versions it, so recipients can tell whether they have already seen
// it.
type Data struct {
	Header      Header
	DataVersion vclock.Record
	Payload     []byte
}

// EncodeData writes msg to buf. The encoded size is exact: decoders reject
// any trailing bytes, matching the reference implementation's strict
// buffer_size == expected_size check.
func EncodeData(buf []byte, msg Data) (int, error) {
	msg.Header.Type = TypeData
	n, err := EncodeHeader(buf, msg.Header)
	if err != nil {
		return 0, err
	}
	cursor := buf[n:]
	vn, err := vclock.EncodeRecord(cursor, msg.DataVersion)
	if err != nil {
		return 0, err
	}
	cursor = cursor[vn:]
	ln, err := codec.EncodeUint16(cursor, uint16(len(msg.Payload)))
	if err != nil {
		return 0, err
	}
	cursor = cursor[ln:]
	if len(cursor) < len(msg.Payload) {
		return 0, ErrBufferNotEnough
	}
	copy(cursor, msg.Payload)
	return n + vn + ln + len(msg.Payload), nil
}

// DecodeData reads a Data message from buf. buf must contain exactly the
// encoded message and nothing more.
func DecodeData(buf []byte) (Data, int, error) {
	if !validPayload(buf, TypeData) {
		return Data{}, 0, ErrInvalidMessage
	}
	var msg Data
	h, n, err := DecodeHeader(buf)
	if err != nil {
		return Data{}, 0, err
	}
	msg.Header = h
	cursor := buf[n:]
	rec, vn, err := vclock.DecodeRecord(cursor)
	if err != nil {
		return Data{}, 0, err
	}
	msg.DataVersion = rec
	cursor = cursor[vn:]
	size, ln, err := codec.DecodeUint16(cursor)
	if err != nil {
		return Data{}, 0, err
	}
	cursor = cursor[ln:]

	expected := n + vn + ln + int(size)
	if len(buf) != expected {
		return Data{}, 0, ErrBufferNotEnough
	}
	if size > 0 {
		msg.Payload = make([]byte, size)
		copy(msg.Payload, cursor[:size])
	}
	return msg, expected, nil
}
