package gossip

import (
	"net/netip"

	"github.com/ptcs/gossip/pkg/member"
	"github.com/ptcs/gossip/pkg/vclock"
	"github.com/ptcs/gossip/pkg/wire"
)

func typeName(t uint8) string {
	switch t {
	case wire.TypeHello:
		return "hello"
	case wire.TypeWelcome:
		return "welcome"
	case wire.TypeMemberList:
		return "member_list"
	case wire.TypeAck:
		return "ack"
	case wire.TypeData:
		return "data"
	default:
		return "unknown"
	}
}

// ProcessReceive reads and handles at most one inbound datagram. Datagrams
// that fail to decode are counted in the decode-error metric and dropped
// rather than surfaced as an error to the caller, matching the reference
// implementation's tolerance of garbage on the wire; only datagrams shorter
// than a header are also logged. It returns the transport's read error, or
// ErrBadState from a handler that requires StateConnected, and nil otherwise.
func (e *Engine) ProcessReceive() error {
	if e.state != StateJoining && e.state != StateConnected {
		return ErrBadState
	}

	n, from, err := e.cfg.Transport.ReadFrom(e.inbuf)
	if err != nil {
		return err
	}
	buf := e.inbuf[:n]

	typ, err := wire.PeekType(buf)
	if err != nil {
		e.m.decodeErrors("short").Inc()
		e.log.Debug().Stringer("from", from).Int("size", n).Msg("gossip: short datagram")
		return nil
	}
	e.m.messagesReceived(typeName(typ)).Inc()

	switch typ {
	case wire.TypeHello:
		msg, _, err := wire.DecodeHello(buf)
		if err != nil {
			e.m.decodeErrors("hello").Inc()
			return nil
		}
		return e.handleHello(from, msg)
	case wire.TypeWelcome:
		msg, _, err := wire.DecodeWelcome(buf)
		if err != nil {
			e.m.decodeErrors("welcome").Inc()
			return nil
		}
		return e.handleWelcome(from, msg)
	case wire.TypeMemberList:
		msg, _, err := wire.DecodeMemberList(buf)
		if err != nil {
			e.m.decodeErrors("member_list").Inc()
			return nil
		}
		return e.handleMemberList(from, msg)
	case wire.TypeAck:
		msg, _, err := wire.DecodeAck(buf)
		if err != nil {
			e.m.decodeErrors("ack").Inc()
			return nil
		}
		return e.handleAck(msg)
	case wire.TypeData:
		msg, _, err := wire.DecodeData(buf)
		if err != nil {
			e.m.decodeErrors("data").Inc()
			return nil
		}
		return e.handleData(from, msg)
	default:
		e.m.decodeErrors("unknown").Inc()
		return nil
	}
}

// handleHello replies to the announcing node with WELCOME, follows up with a
// chunked snapshot of the already-known member set, broadcasts the newcomer
// to every already-known member so membership propagates network-wide
// rather than only to whichever node it directly HELLOs, and only then
// admits the newcomer to the local member set.
func (e *Engine) handleHello(from netip.AddrPort, msg wire.Hello) error {
	if e.state != StateConnected {
		return ErrBadState
	}

	if err := e.enqueue(spreadDirect, []netip.AddrPort{from}, 1, func(seq uint32, buf []byte) (int, error) {
		return wire.EncodeWelcome(buf, wire.Welcome{
			Header:           wire.Header{Seq: seq},
			HelloSequenceNum: msg.Header.Seq,
			ThisMember:       e.self,
		})
	}); err != nil {
		return err
	}

	if e.members.Len() > 0 {
		if err := e.sendMemberListTo(from); err != nil {
			return err
		}
	}

	if err := e.enqueue(spreadBroadcast, nil, e.cfg.RetryAttempts, func(seq uint32, buf []byte) (int, error) {
		return wire.EncodeMemberList(buf, wire.MemberList{
			Header:  wire.Header{Seq: seq},
			Members: []member.Member{msg.ThisMember},
		})
	}); err != nil {
		return err
	}

	e.members.Put(msg.ThisMember)
	return nil
}

// sendMemberListTo fans the known member set out to addr in chunks of at
// most MemberListSyncSize members per MEMBER_LIST message.
func (e *Engine) sendMemberListTo(addr netip.AddrPort) error {
	all := e.members.Members()
	for start := 0; start < len(all); start += e.cfg.MemberListSyncSize {
		end := start + e.cfg.MemberListSyncSize
		if end > len(all) {
			end = len(all)
		}
		chunk := append([]member.Member(nil), all[start:end]...)
		if err := e.enqueue(spreadDirect, []netip.AddrPort{addr}, e.cfg.RetryAttempts, func(seq uint32, buf []byte) (int, error) {
			return wire.EncodeMemberList(buf, wire.MemberList{
				Header:  wire.Header{Seq: seq},
				Members: chunk,
			})
		}); err != nil {
			return err
		}
	}
	return nil
}

// handleWelcome completes a pending Join: the seed's own HELLO-matching
// envelope is retired, the seed is admitted as a member, and the engine
// transitions to CONNECTED.
func (e *Engine) handleWelcome(from netip.AddrPort, msg wire.Welcome) error {
	e.queue.RemoveBySeq(msg.HelloSequenceNum)
	e.members.Put(msg.ThisMember)
	if e.state == StateJoining {
		e.state = StateConnected
		e.log.Info().Stringer("seed", from).Msg("gossip: connected")
	}
	return nil
}

// handleMemberList admits every advertised member (aside from self) and
// acknowledges the message.
func (e *Engine) handleMemberList(from netip.AddrPort, msg wire.MemberList) error {
	if e.state != StateConnected {
		return ErrBadState
	}
	for _, m := range msg.Members {
		if m.Equal(e.self) {
			continue
		}
		e.members.Put(m)
	}
	return e.ack(from, msg.Header.Seq)
}

// handleData merges the incoming record into the local vector clock; a
// result of After means the data is stale and is dropped after acking, a
// result of Before means it is new and is delivered and rumored onward.
func (e *Engine) handleData(from netip.AddrPort, msg wire.Data) error {
	if e.state != StateConnected {
		return ErrBadState
	}
	result := e.clock.CompareWithRecord(msg.DataVersion, true)
	switch result {
	case vclock.After, vclock.Equal:
		e.m.dataDuplicate.Inc()
	default:
		e.m.dataDelivered.Inc()
		if e.cfg.OnData != nil {
			e.cfg.OnData(msg.Payload, from)
		}
		if err := e.enqueue(spreadRandom, nil, e.cfg.RetryAttempts, func(seq uint32, buf []byte) (int, error) {
			return wire.EncodeData(buf, wire.Data{
				Header:      wire.Header{Seq: seq},
				DataVersion: msg.DataVersion,
				Payload:     msg.Payload,
			})
		}); err != nil {
			return err
		}
	}
	return e.ack(from, msg.Header.Seq)
}

// handleAck retires the envelope the ack answers.
func (e *Engine) handleAck(msg wire.Ack) error {
	if e.state != StateConnected {
		return ErrBadState
	}
	e.queue.RemoveBySeq(msg.AckSequenceNum)
	return nil
}

// ack enqueues a single ACK to addr for the given sequence number. ACKs, like
// WELCOMEs, are sent at most once.
func (e *Engine) ack(addr netip.AddrPort, seq uint32) error {
	return e.enqueue(spreadDirect, []netip.AddrPort{addr}, 1, func(outSeq uint32, buf []byte) (int, error) {
		return wire.EncodeAck(buf, wire.Ack{
			Header:         wire.Header{Seq: outSeq},
			AckSequenceNum: seq,
		})
	})
}
