package transport

import (
	"net/netip"
	"testing"
	"time"
)

func TestFakeDeliversToRegisteredPeer(t *testing.T) {
	net := NewFakeNetwork()
	a := net.Listen(netip.MustParseAddrPort("10.0.0.1:7001"))
	b := net.Listen(netip.MustParseAddrPort("10.0.0.2:7001"))
	defer a.Close()
	defer b.Close()

	if _, err := a.WriteTo([]byte("hello"), b.LocalAddr()); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	buf := make([]byte, 16)
	n, from, err := b.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("got %q", buf[:n])
	}
	if from != a.LocalAddr() {
		t.Fatalf("from = %v, want %v", from, a.LocalAddr())
	}
}

func TestFakeWriteToUnknownIsNoop(t *testing.T) {
	net := NewFakeNetwork()
	a := net.Listen(netip.MustParseAddrPort("10.0.0.1:7001"))
	defer a.Close()

	if _, err := a.WriteTo([]byte("x"), netip.MustParseAddrPort("10.0.0.9:7001")); err != nil {
		t.Fatalf("WriteTo unknown addr should not error: %v", err)
	}
}

func TestFakeCloseUnblocksRead(t *testing.T) {
	net := NewFakeNetwork()
	a := net.Listen(netip.MustParseAddrPort("10.0.0.1:7001"))

	done := make(chan error, 1)
	go func() {
		_, _, err := a.ReadFrom(make([]byte, 8))
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	a.Close()

	select {
	case err := <-done:
		if err != ErrClosed {
			t.Fatalf("got %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ReadFrom did not unblock after Close")
	}
}
