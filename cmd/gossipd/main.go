// Command gossipd runs a single gossip cluster membership node.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/hashicorp/go-envparse"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/ptcs/gossip/internal/gossipcfg"
	"github.com/ptcs/gossip/pkg/gossip"
	"github.com/ptcs/gossip/pkg/transport"
)

var opt struct {
	Help bool
}

func init() {
	pflag.BoolVarP(&opt.Help, "help", "h", false, "Show this help text")
}

func main() {
	pflag.Parse()

	if pflag.NArg() > 1 || opt.Help {
		fmt.Printf("usage: %s [options] [env_file]\n\noptions:\n%s\nnote: if env_file is provided, config from the environment is ignored\n", os.Args[0], pflag.CommandLine.FlagUsages())
		if opt.Help {
			os.Exit(2)
		}
		os.Exit(0)
	}

	var e []string
	if pflag.NArg() == 0 {
		e = os.Environ()
	} else if x, err := readEnv(pflag.Arg(0)); err == nil {
		e = x
	} else {
		fmt.Fprintf(os.Stderr, "error: read env file: %v\n", err)
		os.Exit(1)
	}

	var c gossipcfg.Config
	if err := c.UnmarshalEnv(e, false); err != nil {
		fmt.Fprintf(os.Stderr, "error: parse config: %v\n", err)
		os.Exit(1)
	}

	var stdout io.Writer = os.Stdout
	if c.LogPretty {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	log := zerolog.New(zerolog.MultiLevelWriter(stdout)).
		Level(c.LogLevel).
		With().Timestamp().Logger()

	seeds, err := c.SeedAddrs()
	if err != nil {
		log.Fatal().Err(err).Msg("parse seeds")
	}

	tr, err := transport.Listen(c.Addr, c.RecvBufBytes)
	if err != nil {
		log.Fatal().Err(err).Msg("listen")
	}

	ms := metrics.NewSet()
	eng, err := gossip.New(gossip.Config{
		SelfAddr:  tr.LocalAddr(),
		Transport: tr,
		Clock:     wallClock{},
		Rand:      processRand{},
		Logger:    log,
		Metrics:   ms,
		OnData: func(payload []byte, from netip.AddrPort) {
			log.Info().Stringer("from", from).Bytes("data", payload).Msg("gossip: received data")
		},
		RetryInterval:      c.RetryInterval,
		RetryAttempts:      uint16(c.RetryAttempts),
		RumorFactor:        c.RumorFactor,
		MemberListSyncSize: c.MemberListSyncSize,
		MaxOutputMessages:  c.MaxOutputMessages,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("initialize gossip engine")
	}
	defer eng.Close()

	if err := eng.Join(seeds); err != nil {
		log.Fatal().Err(err).Msg("join")
	}
	log.Info().Stringer("addr", eng.LocalAddr()).Int("seeds", len(seeds)).Msg("gossip: started")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.MetricsAddr.IsValid() {
		mux := http.NewServeMux()
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			eng.WritePrometheus(w)
		})
		mux.HandleFunc("/debug/gossip", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(eng.Snapshot())
		})
		srv := &http.Server{Addr: c.MetricsAddr.String(), Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn().Err(err).Msg("metrics server")
			}
		}()
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
	}

	go func() {
		for {
			if err := eng.ProcessReceive(); err != nil {
				log.Warn().Err(err).Msg("process receive")
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}()

	ticker := time.NewTicker(eng.Tick())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("gossip: shutting down")
			return
		case <-ticker.C:
			if _, err := eng.ProcessSend(); err != nil {
				log.Warn().Err(err).Msg("process send")
			}
		}
	}
}

func readEnv(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := envparse.Parse(f)
	if err != nil {
		return nil, err
	}

	r := make([]string, 0, len(m))
	for k, v := range m {
		r = append(r, k+"="+v)
	}
	return r, nil
}
