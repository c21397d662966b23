// Package gossip implements the cluster membership and data dissemination
// engine: a single-threaded state machine that turns inbound datagrams into
// member-set and vector-clock updates, and turns outbound join/data requests
// into retried, fanned-out envelopes on a bounded buffer pool.
package gossip

import (
	"net/netip"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/ptcs/gossip/pkg/member"
	"github.com/ptcs/gossip/pkg/queue"
	"github.com/ptcs/gossip/pkg/transport"
	"github.com/ptcs/gossip/pkg/vclock"
	"github.com/ptcs/gossip/pkg/wire"
)

// State is the engine's lifecycle stage.
type State int

const (
	StateInitialized State = iota
	StateJoining
	StateConnected
	StateLeaving
	StateDisconnected
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "INITIALIZED"
	case StateJoining:
		return "JOINING"
	case StateConnected:
		return "CONNECTED"
	case StateLeaving:
		return "LEAVING"
	case StateDisconnected:
		return "DISCONNECTED"
	case StateDestroyed:
		return "DESTROYED"
	default:
		return "UNKNOWN"
	}
}

// Default tunables, matching the reference implementation's compiled-in
// constants.
const (
	DefaultRetryInterval      = 10000 * time.Millisecond
	DefaultRetryAttempts      = 3
	DefaultRumorFactor        = 3
	DefaultMemberListSyncSize = 10
	DefaultMaxOutputMessages  = 100
	DefaultTickInterval       = 1000 * time.Millisecond
)

// Clock supplies the current time, as milliseconds since an arbitrary epoch.
// Clock and Rand are external collaborators so tests can drive the engine
// deterministically instead of depending on wall-clock time and real
// entropy.
type Clock interface {
	NowMillis() int64
}

// DataReceiver is invoked with the payload and sender of every newly-seen
// DATA message.
type DataReceiver func(payload []byte, from netip.AddrPort)

// Config configures a new Engine. SelfAddr, Transport, Clock and Rand are
// required. New replaces zero tunables and a nil Metrics with their reference
// defaults; Logger and OnData are used as given.
type Config struct {
	SelfAddr  netip.AddrPort
	Transport transport.Transport
	Clock     Clock
	Rand      member.Rand
	Logger    zerolog.Logger
	Metrics   *metrics.Set
	OnData    DataReceiver

	RetryInterval      time.Duration
	RetryAttempts      uint16
	RumorFactor        int
	MemberListSyncSize int
	MaxOutputMessages  int
}

func (c *Config) setDefaults() {
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}
	if c.RumorFactor <= 0 {
		c.RumorFactor = DefaultRumorFactor
	}
	if c.MemberListSyncSize <= 0 {
		c.MemberListSyncSize = DefaultMemberListSyncSize
	}
	if c.MaxOutputMessages <= 0 {
		c.MaxOutputMessages = DefaultMaxOutputMessages
	}
	if c.Metrics == nil {
		c.Metrics = metrics.NewSet()
	}
}

// Engine is a single cluster node's membership and dissemination state
// machine. It is not safe for concurrent use: ProcessReceive, ProcessSend,
// SendData and Join are all meant to be driven from one goroutine's event
// loop, the way the reference implementation assumes a single-threaded
// caller.
type Engine struct {
	cfg   Config
	log   zerolog.Logger
	m     *engineMetrics
	state State

	id      xid.ID
	self    member.Member
	selfID  member.ID
	members *member.Set
	clock   *vclock.Clock

	pool  *queue.Pool
	queue *queue.Queue

	seq   uint32
	inbuf []byte
}

// New creates an Engine bound to cfg.SelfAddr, in StateInitialized.
func New(cfg Config) (*Engine, error) {
	if !cfg.SelfAddr.IsValid() || cfg.Transport == nil || cfg.Clock == nil || cfg.Rand == nil {
		return nil, ErrInitFailed
	}
	cfg.setDefaults()

	self := member.New(cfg.SelfAddr, cfg.Clock.NowMillis()/1000)
	id := xid.New()
	e := &Engine{
		cfg:     cfg,
		log:     cfg.Logger.With().Stringer("engine", id).Logger(),
		m:       newEngineMetrics(cfg.Metrics),
		state:   StateInitialized,
		id:      id,
		self:    self,
		selfID:  member.DeriveID(self),
		members: member.NewSet(),
		clock:   vclock.New(),
		pool:    queue.NewPool(cfg.MaxOutputMessages, wire.MaxMessageSize),
		inbuf:   make([]byte, wire.MaxMessageSize),
	}
	e.queue = queue.New(e.pool)
	e.clock.Set(e.selfID, 0)
	return e, nil
}

// State returns the engine's current lifecycle stage.
func (e *Engine) State() State { return e.state }

// LocalAddr returns the address the engine believes it is reachable at.
func (e *Engine) LocalAddr() netip.AddrPort { return e.self.Addr }

// Close tears the engine down, releasing its transport. Afterwards Join,
// ProcessReceive, ProcessSend, SendData and Close return ErrBadState.
func (e *Engine) Close() error {
	if e.state == StateDestroyed {
		return ErrBadState
	}
	e.state = StateDestroyed
	e.queue.Clear()
	return e.cfg.Transport.Close()
}

// Tick returns the interval the caller should wait before its next Tick,
// ProcessSend pairing. It performs no I/O of its own; callers drive
// ProcessSend on this cadence to age and retry queued envelopes.
func (e *Engine) Tick() time.Duration {
	return DefaultTickInterval
}

// Join sends a HELLO to every seed address, retried like any other outbound
// message. It transitions StateInitialized to StateJoining when seeds is
// non-empty, or directly to StateConnected for a seed-only bootstrap node
// with nothing to join.
func (e *Engine) Join(seeds []netip.AddrPort) error {
	if e.state != StateInitialized {
		return ErrBadState
	}
	if len(seeds) == 0 {
		e.state = StateConnected
		return nil
	}
	for _, seed := range seeds {
		seq := e.nextSeq()
		slot, buf := e.queue.AllocSlot()
		n, err := wire.EncodeHello(buf, wire.Hello{
			Header:     wire.Header{Seq: seq},
			ThisMember: e.self,
		})
		if err != nil {
			return err
		}
		e.queue.Enqueue(queue.Envelope{
			Seq:         seq,
			Slot:        slot,
			Size:        n,
			Recipient:   seed,
			MaxAttempts: e.cfg.RetryAttempts,
		})
	}
	e.state = StateJoining
	e.log.Info().Int("seeds", len(seeds)).Msg("gossip: joining")
	return nil
}

func (e *Engine) nextSeq() uint32 {
	e.seq++
	return e.seq
}
