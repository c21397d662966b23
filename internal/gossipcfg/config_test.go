package gossipcfg

import (
	"net/netip"
	"testing"
	"time"
)

func TestUnmarshalEnvDefaults(t *testing.T) {
	var c Config
	if err := c.UnmarshalEnv(nil, false); err != nil {
		t.Fatalf("UnmarshalEnv: %v", err)
	}
	if c.RetryAttempts != 3 {
		t.Fatalf("RetryAttempts = %d, want 3", c.RetryAttempts)
	}
	if c.RetryInterval != 10*time.Second {
		t.Fatalf("RetryInterval = %v, want 10s", c.RetryInterval)
	}
	if c.MemberListSyncSize != 10 {
		t.Fatalf("MemberListSyncSize = %d, want 10", c.MemberListSyncSize)
	}
	if c.MetricsAddr != (netip.AddrPort{}) {
		t.Fatalf("MetricsAddr = %v, want zero value", c.MetricsAddr)
	}
}

func TestUnmarshalEnvOverrides(t *testing.T) {
	var c Config
	es := []string{
		"GOSSIP_ADDR=10.0.0.1:7001",
		"GOSSIP_SEEDS=10.0.0.2:7001,10.0.0.3:7001",
		"GOSSIP_LOG_LEVEL=warn",
		"GOSSIP_RETRY_ATTEMPTS=5",
	}
	if err := c.UnmarshalEnv(es, false); err != nil {
		t.Fatalf("UnmarshalEnv: %v", err)
	}
	if c.Addr != netip.MustParseAddrPort("10.0.0.1:7001") {
		t.Fatalf("Addr = %v", c.Addr)
	}
	if c.RetryAttempts != 5 {
		t.Fatalf("RetryAttempts = %d, want 5", c.RetryAttempts)
	}

	seeds, err := c.SeedAddrs()
	if err != nil {
		t.Fatalf("SeedAddrs: %v", err)
	}
	want := []netip.AddrPort{
		netip.MustParseAddrPort("10.0.0.2:7001"),
		netip.MustParseAddrPort("10.0.0.3:7001"),
	}
	if len(seeds) != len(want) || seeds[0] != want[0] || seeds[1] != want[1] {
		t.Fatalf("SeedAddrs() = %v, want %v", seeds, want)
	}
}

func TestUnmarshalEnvRejectsUnknownVar(t *testing.T) {
	var c Config
	err := c.UnmarshalEnv([]string{"GOSSIP_BOGUS=1"}, false)
	if err == nil {
		t.Fatal("expected error for unknown env var")
	}
}

func TestUnmarshalEnvIncrementalSkipsDefaults(t *testing.T) {
	var c Config
	if err := c.UnmarshalEnv([]string{"GOSSIP_RETRY_ATTEMPTS=7"}, true); err != nil {
		t.Fatalf("UnmarshalEnv: %v", err)
	}
	if c.RetryAttempts != 7 {
		t.Fatalf("RetryAttempts = %d, want 7", c.RetryAttempts)
	}
	if c.RumorFactor != 0 {
		t.Fatalf("RumorFactor = %d, want 0 (incremental update shouldn't apply defaults)", c.RumorFactor)
	}
}
