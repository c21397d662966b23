package gossip

import (
	"github.com/VictoriaMetrics/metrics"

	"github.com/ptcs/gossip/pkg/metricsx"
)

// engineMetrics holds the counters an Engine exposes, lazily bound to
// whichever *metrics.Set the Engine was configured with. Counters keyed by
// message type are exposed as closures over GetOrCreateCounter, building the
// labelled name with metricsx.Name on each call.
type engineMetrics struct {
	messagesSent     func(msgType string) *metrics.Counter
	messagesReceived func(msgType string) *metrics.Counter
	decodeErrors     func(msgType string) *metrics.Counter

	envelopesEvicted *metrics.Counter
	membersEvicted   *metrics.Counter
	dataDelivered    *metrics.Counter
	dataDuplicate    *metrics.Counter
}

func newEngineMetrics(set *metrics.Set) *engineMetrics {
	m := &engineMetrics{}
	m.messagesSent = func(msgType string) *metrics.Counter {
		return set.GetOrCreateCounter(metricsx.Name("gossip_messages_sent_total", "type", msgType))
	}
	m.messagesReceived = func(msgType string) *metrics.Counter {
		return set.GetOrCreateCounter(metricsx.Name("gossip_messages_received_total", "type", msgType))
	}
	m.decodeErrors = func(msgType string) *metrics.Counter {
		return set.GetOrCreateCounter(metricsx.Name("gossip_decode_errors_total", "type", msgType))
	}
	m.envelopesEvicted = set.GetOrCreateCounter(`gossip_envelopes_evicted_total`)
	m.membersEvicted = set.GetOrCreateCounter(`gossip_members_evicted_total`)
	m.dataDelivered = set.GetOrCreateCounter(`gossip_data_delivered_total`)
	m.dataDuplicate = set.GetOrCreateCounter(`gossip_data_duplicate_total`)
	return m
}
