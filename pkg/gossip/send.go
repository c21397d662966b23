package gossip

import (
	"net/netip"

	"github.com/ptcs/gossip/pkg/codec"
	"github.com/ptcs/gossip/pkg/member"
	"github.com/ptcs/gossip/pkg/queue"
	"github.com/ptcs/gossip/pkg/wire"
)

// spreadMode selects how enqueue picks recipients for a message that isn't
// addressed to a single known peer.
type spreadMode int

const (
	spreadDirect spreadMode = iota
	spreadRandom
	spreadBroadcast
)

// seqOffset is the byte offset of the sequence number within an encoded
// header: 5 magic + 1 type + 2 reserved.
const seqOffset = 5 + 1 + 2

// enqueue encodes a message once via encode, then fans the resulting buffer
// out to recipients chosen by mode. Every recipient gets its own envelope
// and sequence number, sharing one pooled buffer; ProcessSend patches each
// envelope's sequence number into the shared buffer immediately before
// sending it, so the bytes on the wire always carry the recipient-specific
// sequence even though the buffer itself is written only once.
func (e *Engine) enqueue(mode spreadMode, direct []netip.AddrPort, maxAttempts uint16, encode func(seq uint32, buf []byte) (int, error)) error {
	recipients := direct
	switch mode {
	case spreadRandom:
		sample := e.members.Sample(e.cfg.RumorFactor, e.cfg.Rand)
		recipients = memberAddrs(sample)
	case spreadBroadcast:
		recipients = memberAddrs(e.members.Members())
	}
	if len(recipients) == 0 {
		return nil
	}

	slot, buf := e.queue.AllocSlot()
	firstSeq := e.nextSeq()
	n, err := encode(firstSeq, buf)
	if err != nil {
		return err
	}

	for i, addr := range recipients {
		seq := firstSeq
		if i > 0 {
			seq = e.nextSeq()
		}
		e.queue.Enqueue(queue.Envelope{
			Seq:         seq,
			Slot:        slot,
			Size:        n,
			Recipient:   addr,
			MaxAttempts: maxAttempts,
		})
	}
	return nil
}

func memberAddrs(ms []member.Member) []netip.AddrPort {
	out := make([]netip.AddrPort, len(ms))
	for i, m := range ms {
		out[i] = m.Addr
	}
	return out
}

// SendData versions payload with the next sequence number in the local
// vector clock entry and rumors it to RumorFactor random peers.
func (e *Engine) SendData(payload []byte) error {
	if e.state != StateConnected && e.state != StateJoining {
		return ErrBadState
	}
	version := *e.clock.Increment(e.selfID)
	return e.enqueue(spreadRandom, nil, e.cfg.RetryAttempts, func(seq uint32, buf []byte) (int, error) {
		return wire.EncodeData(buf, wire.Data{
			Header:      wire.Header{Seq: seq},
			DataVersion: version,
			Payload:     payload,
		})
	})
}

// ProcessSend walks the outbound queue once, sending any envelope whose
// retry interval has elapsed. Envelopes that exceed their MaxAttempts are
// dropped; if MaxAttempts is greater than one (anything but an ACK/WELCOME),
// the recipient is also evicted from the member set as unreachable. A
// transport error aborts the pass immediately: the envelope that failed to
// send is left with its retry bookkeeping untouched, and every envelope
// after it in the queue is left alone too, to be retried on the next call.
// It returns the number of datagrams actually written.
func (e *Engine) ProcessSend() (int, error) {
	if e.state != StateJoining && e.state != StateConnected {
		return 0, ErrBadState
	}

	sent := 0
	now := e.cfg.Clock.NowMillis()
	var sendErr error
	e.queue.Each(func(env queue.Envelope) (queue.Envelope, bool) {
		if sendErr != nil {
			return env, true
		}
		if env.AttemptNum > 0 && now-env.AttemptTS < e.cfg.RetryInterval.Milliseconds() {
			return env, true
		}

		buf := e.pool.Buffer(env.Slot)
		codec.PutUint32(buf[seqOffset:], env.Seq)
		if _, err := e.cfg.Transport.WriteTo(buf[:env.Size], env.Recipient); err != nil {
			sendErr = err
			return env, true
		}
		sent++
		typ, _ := wire.PeekType(buf[:env.Size])
		e.m.messagesSent(typeName(typ)).Inc()

		env.AttemptNum++
		env.AttemptTS = now
		if env.AttemptNum >= env.MaxAttempts {
			e.m.envelopesEvicted.Inc()
			if env.MaxAttempts > 1 {
				if e.members.RemoveByAddr(env.Recipient) {
					e.m.membersEvicted.Inc()
					e.log.Info().Stringer("peer", env.Recipient).Msg("gossip: evicting unreachable peer")
				}
			}
			return env, false
		}
		return env, true
	})
	return sent, sendErr
}
