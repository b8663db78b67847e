// File: server/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/internal/transport"
	"github.com/momentics/hioload-tcp/protocol"
)

// Config holds all server-side configuration parameters.
// It is copied by New and never changes afterwards.
type Config struct {
	Codec             api.Codec     // header codec (default: 4-byte little-endian length)
	NoDelay           bool          // disable Nagle's algorithm
	KeepAlive         bool          // TCP keep-alive probes
	KeepAliveTime     time.Duration // idle time before the first probe
	KeepAliveInterval time.Duration // interval between probes
	Linger            bool          // SO_LINGER on close
	LingerTime        time.Duration // linger timeout, whole seconds
	MaxPacketSize     int           // 0 = unlimited
	MaxQueuedPackets  int           // per-client outbound queue bound, 0 = unlimited
	ShardCount        int           // client registry shards

	Logger            *slog.Logger
	MetricsRegisterer prometheus.Registerer // nil = metrics are kept but not registered
	MetricsNamespace  string
	TracerName        string
	TracerProvider    trace.TracerProvider // nil = global provider
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Codec:             protocol.NewLengthCodec(),
		NoDelay:           false,
		KeepAlive:         true,
		KeepAliveTime:     3000 * time.Millisecond,
		KeepAliveInterval: 1000 * time.Millisecond,
		Linger:            false,
		LingerTime:        3 * time.Second,
		ShardCount:        16,
		MetricsNamespace:  "hioload_tcp",
		TracerName:        "github.com/momentics/hioload-tcp/server",
	}
}

// Option customizes server configuration.
type Option func(*Config)

// WithCodec sets the header codec. A nil codec keeps the default.
func WithCodec(c api.Codec) Option {
	return func(cfg *Config) {
		if c != nil {
			cfg.Codec = c
		}
	}
}

// WithNoDelay toggles TCP_NODELAY on the listener and every client socket.
func WithNoDelay(on bool) Option {
	return func(cfg *Config) {
		cfg.NoDelay = on
	}
}

// WithKeepAlive configures TCP keep-alive.
func WithKeepAlive(on bool, idle, interval time.Duration) Option {
	return func(cfg *Config) {
		cfg.KeepAlive = on
		if idle > 0 {
			cfg.KeepAliveTime = idle
		}
		if interval > 0 {
			cfg.KeepAliveInterval = interval
		}
	}
}

// WithLinger configures SO_LINGER for client sockets.
func WithLinger(on bool, d time.Duration) Option {
	return func(cfg *Config) {
		cfg.Linger = on
		if d > 0 {
			cfg.LingerTime = d
		}
	}
}

// WithMaxPacketSize rejects inbound packets whose decoded length exceeds n.
func WithMaxPacketSize(n int) Option {
	return func(cfg *Config) {
		cfg.MaxPacketSize = n
	}
}

// WithMaxQueuedPackets disconnects a client whose pending outbound queue reaches n.
func WithMaxQueuedPackets(n int) Option {
	return func(cfg *Config) {
		cfg.MaxQueuedPackets = n
	}
}

// WithShardCount overrides the client registry shard count.
func WithShardCount(n int) Option {
	return func(cfg *Config) {
		cfg.ShardCount = n
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}

// WithMetricsRegisterer registers the server's collectors with r.
func WithMetricsRegisterer(r prometheus.Registerer) Option {
	return func(cfg *Config) {
		cfg.MetricsRegisterer = r
	}
}

// WithTracerName sets the OpenTelemetry tracer name.
func WithTracerName(name string) Option {
	return func(cfg *Config) {
		if name != "" {
			cfg.TracerName = name
		}
	}
}

// WithTracerProvider sets the OpenTelemetry provider spans are created from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *Config) {
		cfg.TracerProvider = tp
	}
}

func (c *Config) transportOptions(keepAlive bool) transport.Options {
	return transport.Options{
		NoDelay:           c.NoDelay,
		KeepAlive:         keepAlive,
		KeepAliveTime:     c.KeepAliveTime,
		KeepAliveInterval: c.KeepAliveInterval,
		Linger:            c.Linger,
		LingerTime:        c.LingerTime,
	}
}
