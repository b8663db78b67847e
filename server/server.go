// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/control"
	"github.com/momentics/hioload-tcp/internal/session"
	"github.com/momentics/hioload-tcp/internal/transport"
	"github.com/momentics/hioload-tcp/pool"
)

// SettingAcceptConnection is the runtime setting key backing SetAcceptConnection.
const SettingAcceptConnection = "accept_connection"

// listenFunc opens the listening socket. Swappable for fault injection in tests.
type listenFunc func(port, backlog int, o transport.Options) (net.Listener, bool, error)

// Server is a length-prefixed TCP server.
type Server struct {
	cfg     Config
	handler api.Handler
	codec   api.Codec
	log     *slog.Logger
	metrics *metrics
	tracer  trace.Tracer
	packets *pool.PacketPool
	probes  *control.DebugProbes
	runtime *control.ConfigStore
	listen  listenFunc

	stateMu sync.Mutex // guards state
	state   api.ServerState

	globalMu sync.Mutex   // serializes Start against Close/closeByError
	listener net.Listener // guarded by globalMu

	port      atomic.Int64
	backlog   atomic.Int64
	keepAlive atomic.Bool
	accepting atomic.Bool
	nextID    atomic.Uint64
	clients   *session.Registry[*Session]

	accepted   atomic.Uint64
	rejected   atomic.Uint64
	packetsIn  atomic.Uint64
	packetsOut atomic.Uint64
	bytesIn    atomic.Uint64
	bytesOut   atomic.Uint64
}

// New constructs a stopped Server reporting to handler.
func New(handler api.Handler, opts ...Option) (*Server, error) {
	if handler == nil {
		return nil, fmt.Errorf("nil handler: %w", api.ErrInvalidArgument)
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Codec == nil || cfg.Codec.HeaderSize() <= 0 {
		return nil, fmt.Errorf("codec header size: %w", api.ErrInvalidArgument)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}

	s := &Server{
		cfg:     *cfg,
		handler: handler,
		codec:   cfg.Codec,
		log:     cfg.Logger.With("component", "tcp-server"),
		tracer:  cfg.TracerProvider.Tracer(cfg.TracerName),
		packets: pool.DefaultPacketPool(),
		probes:  control.NewDebugProbes(),
		runtime: control.NewConfigStore(),
		listen:  transport.Listen,
		clients: session.NewRegistry[*Session](cfg.ShardCount),
	}
	s.port.Store(-1)
	s.backlog.Store(-1)
	// Re-read on every change so racing writers converge on the stored value.
	s.runtime.OnChange(SettingAcceptConnection, func(any) {
		v, _ := s.runtime.Get(SettingAcceptConnection)
		if on, ok := v.(bool); ok {
			s.accepting.Store(on)
		}
	})
	s.runtime.Set(SettingAcceptConnection, true)
	s.metrics = newMetrics(cfg.MetricsRegisterer, cfg.MetricsNamespace, func() float64 {
		return float64(s.clients.Len())
	})
	s.registerProbes()
	return s, nil
}

// State returns the current lifecycle state.
func (s *Server) State() api.ServerState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// IsRunning is a stale-tolerant convenience check.
func (s *Server) IsRunning() bool {
	return s.State() == api.StateRunning
}

// IsAcceptConnecting reports whether new connections are admitted.
func (s *Server) IsAcceptConnecting() bool {
	return s.accepting.Load()
}

// SetAcceptConnection toggles admission of new connections. Rejected
// connections are accepted at the transport level and immediately shut down.
func (s *Server) SetAcceptConnection(accept bool) {
	s.runtime.Set(SettingAcceptConnection, accept)
}

// Port returns the bound port, or -1 when the server is not listening.
// Starting on port 0 reports the ephemeral port chosen by the kernel.
func (s *Server) Port() int {
	return int(s.port.Load())
}

// Backlog returns the listen backlog, or -1 when the server is not listening.
func (s *Server) Backlog() int {
	return int(s.backlog.Load())
}

// KeepAliveEnabled reports whether keep-alive is in effect for the current run.
func (s *Server) KeepAliveEnabled() bool {
	return s.keepAlive.Load()
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	return s.clients.Len()
}

// Addr returns the listener address, or nil when stopped.
func (s *Server) Addr() net.Addr {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Sessions returns a snapshot of connected clients.
func (s *Server) Sessions() []api.Session {
	snap := s.clients.Snapshot()
	out := make([]api.Session, len(snap))
	for i, sess := range snap {
		out[i] = sess
	}
	return out
}

// Session looks up a connected client by id.
func (s *Server) Session(id uint64) (*Session, bool) {
	return s.clients.Get(id)
}

// Stats returns a snapshot of server counters.
func (s *Server) Stats() api.ServerStats {
	return api.ServerStats{
		State:            s.State(),
		Port:             s.Port(),
		Backlog:          s.Backlog(),
		Clients:          s.ClientCount(),
		AcceptConnection: s.IsAcceptConnecting(),
		KeepAlive:        s.KeepAliveEnabled(),
		Accepted:         s.accepted.Load(),
		Rejected:         s.rejected.Load(),
		PacketsIn:        s.packetsIn.Load(),
		PacketsOut:       s.packetsOut.Load(),
		BytesIn:          s.bytesIn.Load(),
		BytesOut:         s.bytesOut.Load(),
	}
}

// DebugState evaluates all registered debug probes.
func (s *Server) DebugState() map[string]any {
	return s.probes.DumpState()
}

// Runtime exposes the settings that can be changed while the server runs.
func (s *Server) Runtime() *control.ConfigStore {
	return s.runtime
}

// Probes exposes the probe registry so owners can add their own.
func (s *Server) Probes() *control.DebugProbes {
	return s.probes
}

func (s *Server) registerProbes() {
	control.RegisterPlatformProbes(s.probes)
	s.probes.RegisterProbe("server.state", func() any { return s.State().String() })
	s.probes.RegisterProbe("server.port", func() any { return s.Port() })
	s.probes.RegisterProbe("server.backlog", func() any { return s.Backlog() })
	s.probes.RegisterProbe("server.clients", func() any { return s.ClientCount() })
	s.probes.RegisterProbe("server.accepting", func() any { return s.IsAcceptConnecting() })
	s.probes.RegisterProbe("server.keepalive", func() any { return s.KeepAliveEnabled() })
	s.probes.RegisterProbe("server.pending", func() any {
		pending := 0
		for _, sess := range s.clients.Snapshot() {
			pending += sess.Pending()
		}
		return pending
	})
}
