package transport

import (
	"errors"
	"net/netip"
)

// ErrClosed is returned by a closed Fake transport's ReadFrom/WriteTo.
var ErrClosed = errors.New("transport: closed")

type fakeDatagram struct {
	from netip.AddrPort
	data []byte
}

// Fake is an in-memory Transport used by engine tests: WriteTo delivers
// directly into the recipient Fake's inbox rather than touching a socket.
// Construct a connected set of them with NewFakeNetwork.
type Fake struct {
	addr   netip.AddrPort
	inbox  chan fakeDatagram
	net    *FakeNetwork
	closed chan struct{}
}

// FakeNetwork is a registry of Fake transports addressable by netip.AddrPort,
// standing in for the shared UDP wire between real nodes.
type FakeNetwork struct {
	nodes map[netip.AddrPort]*Fake
}

// NewFakeNetwork returns an empty registry.
func NewFakeNetwork() *FakeNetwork {
	return &FakeNetwork{nodes: make(map[netip.AddrPort]*Fake)}
}

// Listen registers and returns a new Fake transport bound to addr.
func (n *FakeNetwork) Listen(addr netip.AddrPort) *Fake {
	f := &Fake{
		addr:   addr,
		inbox:  make(chan fakeDatagram, 256),
		net:    n,
		closed: make(chan struct{}),
	}
	n.nodes[addr] = f
	return f
}

// LocalAddr returns the bound address.
func (f *Fake) LocalAddr() netip.AddrPort { return f.addr }

// ReadFrom blocks until a datagram addressed to f arrives or f is closed.
func (f *Fake) ReadFrom(buf []byte) (int, netip.AddrPort, error) {
	select {
	case dg := <-f.inbox:
		n := copy(buf, dg.data)
		return n, dg.from, nil
	case <-f.closed:
		return 0, netip.AddrPort{}, ErrClosed
	}
}

// WriteTo delivers buf to the Fake registered at addr, if any. Sending to an
// unknown address is a silent no-op, mirroring a real UDP send to a host
// that drops the datagram.
func (f *Fake) WriteTo(buf []byte, addr netip.AddrPort) (int, error) {
	select {
	case <-f.closed:
		return 0, ErrClosed
	default:
	}
	dst, ok := f.net.nodes[addr]
	if !ok {
		return len(buf), nil
	}
	cp := make([]byte, len(buf))
	copy(cp, buf)
	select {
	case dst.inbox <- fakeDatagram{from: f.addr, data: cp}:
	default:
	}
	return len(buf), nil
}

// Close marks f closed, unblocking any pending ReadFrom.
func (f *Fake) Close() error {
	close(f.closed)
	delete(f.net.nodes, f.addr)
	return nil
}
