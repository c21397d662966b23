// Package gossipcfg loads gossipd's configuration from environment
// variables.
package gossipcfg

import (
	"fmt"
	"net/netip"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config is gossipd's configuration. The env struct tag contains the
// environment variable name and the default value if missing, or empty (if
// not ?=). Seeds is a comma-separated list of host:port addresses.
type Config struct {
	// The address to bind the gossip UDP socket to. If the port is 0, a
	// random one is chosen.
	Addr netip.AddrPort `env:"GOSSIP_ADDR=:0"`

	// Comma-separated list of seed addresses to join on startup.
	Seeds []string `env:"GOSSIP_SEEDS"`

	// The minimum log level (e.g. trace, debug, info, warn, error, fatal).
	LogLevel zerolog.Level `env:"GOSSIP_LOG_LEVEL=info"`

	// Whether to use pretty (human-readable) stdout logs.
	LogPretty bool `env:"GOSSIP_LOG_PRETTY"`

	// The address to serve Prometheus-format metrics on. If empty, metrics
	// are not served over HTTP.
	MetricsAddr netip.AddrPort `env:"GOSSIP_METRICS_ADDR?="`

	// How long to wait between retries of an unacknowledged message.
	RetryInterval time.Duration `env:"GOSSIP_RETRY_INTERVAL=10s"`

	// How many times to (re)send a message before giving up on it.
	RetryAttempts int `env:"GOSSIP_RETRY_ATTEMPTS=3"`

	// How many peers to rumor a DATA message to at a time.
	RumorFactor int `env:"GOSSIP_RUMOR_FACTOR=3"`

	// How many members to include per MEMBER_LIST chunk.
	MemberListSyncSize int `env:"GOSSIP_MEMBER_LIST_SYNC_SIZE=10"`

	// How many outbound messages may be in flight (retrying or awaiting
	// send) at once.
	MaxOutputMessages int `env:"GOSSIP_MAX_OUTPUT_MESSAGES=100"`

	// The socket receive buffer size to request, in bytes. If 0, the OS
	// default is used.
	RecvBufBytes int `env:"GOSSIP_RECV_BUF_BYTES=0"`
}

// SeedAddrs parses Seeds into AddrPorts.
func (c *Config) SeedAddrs() ([]netip.AddrPort, error) {
	out := make([]netip.AddrPort, 0, len(c.Seeds))
	for _, s := range c.Seeds {
		ap, err := netip.ParseAddrPort(s)
		if err != nil {
			return nil, fmt.Errorf("parse seed %q: %w", s, err)
		}
		out = append(out, ap)
	}
	return out, nil
}

// UnmarshalEnv unmarshals an array of environment variables into c, setting
// default values as appropriate. If incremental is true, default values will
// not be set for missing env vars, but only for empty ones.
func (c *Config) UnmarshalEnv(es []string, incremental bool) error {
	em := map[string]string{}
	for _, e := range es {
		if strings.HasPrefix(e, "GOSSIP_") {
			if k, v, ok := strings.Cut(e, "="); ok {
				em[k] = v
			}
		}
	}

	cv := reflect.ValueOf(c).Elem()
	for _, ctf := range reflect.VisibleFields(cv.Type()) {
		env, ok := ctf.Tag.Lookup("env")
		if !ok {
			continue
		}

		var unsettable bool
		key, val, _ := strings.Cut(env, "=")
		if strings.HasSuffix(key, "?") {
			key = strings.TrimSuffix(key, "?")
			unsettable = true
		}
		if v, exists := em[key]; exists {
			if unsettable || v != "" {
				val = v
			}
			delete(em, key)
		} else if incremental {
			continue
		}

		switch cvf := cv.FieldByName(ctf.Name); cvf.Interface().(type) {
		case string:
			cvf.SetString(val)
		case int, int8, int16, int32, int64:
			if val == "" {
				cvf.SetInt(0)
			} else if v, err := strconv.ParseInt(val, 10, 64); err == nil {
				cvf.SetInt(v)
			} else {
				return fmt.Errorf("env %s (%T): parse %q: %w", key, cvf.Interface(), val, err)
			}
		case bool:
			if val == "" {
				cvf.SetBool(false)
			} else if v, err := strconv.ParseBool(val); err == nil {
				cvf.SetBool(v)
			} else {
				return fmt.Errorf("env %s (%T): parse %q: %w", key, cvf.Interface(), val, err)
			}
		case []string:
			if val == "" {
				cvf.Set(reflect.ValueOf([]string{}))
			} else {
				cvf.Set(reflect.ValueOf(strings.Split(val, ",")))
			}
		case zerolog.Level:
			if v, err := zerolog.ParseLevel(val); err == nil {
				cvf.Set(reflect.ValueOf(v))
			} else {
				return fmt.Errorf("env %s (%T): parse %q: %w", key, cvf.Interface(), val, err)
			}
		case time.Duration:
			if v, err := time.ParseDuration(val); err == nil {
				cvf.Set(reflect.ValueOf(v))
			} else {
				return fmt.Errorf("env %s (%T): parse %q: %w", key, cvf.Interface(), val, err)
			}
		case netip.AddrPort:
			if val == "" {
				cvf.Set(reflect.ValueOf(netip.AddrPort{}))
			} else if v, err := netip.ParseAddrPort(val); err == nil {
				cvf.Set(reflect.ValueOf(v))
			} else if v, err1 := netip.ParseAddrPort("[::]" + val); val[0] == ':' && err1 == nil {
				cvf.Set(reflect.ValueOf(v))
			} else {
				return fmt.Errorf("env %s (%T): parse %q: %w", key, cvf.Interface(), val, err)
			}
		default:
			return fmt.Errorf("unhandled type %T (%s)", cvf.Interface(), env)
		}
	}
	for key, val := range em {
		if val != "" {
			return fmt.Errorf("unknown environment variable %q", key)
		}
	}
	return nil
}
