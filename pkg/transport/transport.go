// Package transport implements the UDP datagram transport the gossip engine
// sends and receives messages over.
package transport

import (
	"net"
	"net/netip"

	"golang.org/x/sys/unix"
)

// Transport is the engine's view of a datagram socket. A real UDP socket and
// a loopback/in-memory fake both satisfy it, so the engine can be tested
// without binding ports.
type Transport interface {
	// LocalAddr returns the address the transport is bound to.
	LocalAddr() netip.AddrPort
	// ReadFrom reads a single datagram into buf, returning the number of
	// bytes read and the sender's address. Both UDP and Fake block until a
	// datagram arrives or the transport is closed.
	ReadFrom(buf []byte) (int, netip.AddrPort, error)
	// WriteTo sends buf to addr.
	WriteTo(buf []byte, addr netip.AddrPort) (int, error)
	// Close releases the underlying socket.
	Close() error
}

// UDP is a Transport backed by a real net.UDPConn, with the receive buffer
// tuned via SO_RCVBUF the way the reference implementation's socket setup
// does at the syscall level.
type UDP struct {
	conn *net.UDPConn
}

// Listen opens a UDP socket bound to addr. If addr's port is 0, the OS
// assigns one. rcvBufBytes, if non-zero, is applied via setsockopt
// SO_RCVBUF; failures to set it are ignored, matching typical best-effort
// socket tuning.
func Listen(addr netip.AddrPort, rcvBufBytes int) (*UDP, error) {
	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return nil, err
	}
	if rcvBufBytes > 0 {
		tuneRcvBuf(conn, rcvBufBytes)
	}
	return &UDP{conn: conn}, nil
}

func tuneRcvBuf(conn *net.UDPConn, bytes int) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, bytes)
	})
}

// LocalAddr returns the bound local address.
func (u *UDP) LocalAddr() netip.AddrPort {
	return u.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// ReadFrom reads a single datagram.
func (u *UDP) ReadFrom(buf []byte) (int, netip.AddrPort, error) {
	n, addr, err := u.conn.ReadFromUDPAddrPort(buf)
	return n, addr, err
}

// WriteTo sends buf to addr.
func (u *UDP) WriteTo(buf []byte, addr netip.AddrPort) (int, error) {
	return u.conn.WriteToUDPAddrPort(buf, addr)
}

// Close closes the underlying socket.
func (u *UDP) Close() error {
	return u.conn.Close()
}
