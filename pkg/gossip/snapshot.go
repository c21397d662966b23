package gossip

import (
	"io"
	"net/netip"

	"github.com/ptcs/gossip/pkg/member"
)

// Snapshot is a read-only view of an Engine's current in-memory state,
// meant for an operator debug endpoint. It is never read back on restart;
// nothing here is persisted.
type Snapshot struct {
	EngineID    string           `json:"engine_id"`
	State       string           `json:"state"`
	Self        netip.AddrPort   `json:"self"`
	Members     []netip.AddrPort `json:"members"`
	VectorClock []VectorEntry    `json:"vector_clock"`
	QueueDepth  int              `json:"queue_depth"`
}

// VectorEntry is one member's position in the engine's vector clock, as
// exposed by Snapshot.
type VectorEntry struct {
	ID  member.ID `json:"id"`
	Seq uint32    `json:"seq"`
}

// Snapshot returns a point-in-time copy of the engine's state. The returned
// slices are freshly allocated on every call and do not alias engine state,
// so it is always safe to retain or modify the result.
func (e *Engine) Snapshot() Snapshot {
	members := e.members.Members()
	addrs := make([]netip.AddrPort, len(members))
	for i, m := range members {
		addrs[i] = m.Addr
	}

	records := e.clock.Records()
	entries := make([]VectorEntry, len(records))
	for i, r := range records {
		entries[i] = VectorEntry{ID: r.ID, Seq: r.Seq}
	}

	return Snapshot{
		EngineID:    e.id.String(),
		State:       e.state.String(),
		Self:        e.self.Addr,
		Members:     addrs,
		VectorClock: entries,
		QueueDepth:  e.queue.Len(),
	}
}

// WritePrometheus writes the engine's metrics in Prometheus text exposition
// format to w.
func (e *Engine) WritePrometheus(w io.Writer) {
	e.cfg.Metrics.WritePrometheus(w)
}
