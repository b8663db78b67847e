// File: cmd/hioload-tcp/serve.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/server"
)

type serveOptions struct {
	port              int
	backlog           int
	noDelay           bool
	keepAlive         bool
	keepAliveTime     time.Duration
	keepAliveInterval time.Duration
	linger            bool
	lingerTime        time.Duration
	maxPacket         int
	maxQueue          int
	adminAddr         string
	logLevel          string
	trace             bool
}

func serveCmd() *cobra.Command {
	var o serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the echo server",
		Long: `Run a length-prefixed TCP server that echoes every packet back
to its sender.

An optional admin HTTP listener exposes /metrics, /debug/state
and /healthz.

Examples:
  hioload-tcp serve --port=9000
  hioload-tcp serve --port=9000 --admin=:9100 --nodelay`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), o)
		},
	}

	d := server.DefaultConfig()
	f := cmd.Flags()
	f.IntVarP(&o.port, "port", "p", 9000, "TCP port to listen on")
	f.IntVar(&o.backlog, "backlog", 128, "Listen backlog")
	f.BoolVar(&o.noDelay, "nodelay", d.NoDelay, "Disable Nagle's algorithm")
	f.BoolVar(&o.keepAlive, "keepalive", d.KeepAlive, "Enable TCP keep-alive")
	f.DurationVar(&o.keepAliveTime, "keepalive-time", d.KeepAliveTime, "Idle time before the first keep-alive probe")
	f.DurationVar(&o.keepAliveInterval, "keepalive-interval", d.KeepAliveInterval, "Interval between keep-alive probes")
	f.BoolVar(&o.linger, "linger", d.Linger, "Enable SO_LINGER on client sockets")
	f.DurationVar(&o.lingerTime, "linger-time", d.LingerTime, "Linger timeout")
	f.IntVar(&o.maxPacket, "max-packet", 0, "Maximum inbound packet size in bytes (0 = unlimited)")
	f.IntVar(&o.maxQueue, "max-queue", 0, "Maximum queued outbound packets per client (0 = unlimited)")
	f.StringVar(&o.adminAddr, "admin", "", "Admin HTTP address, empty to disable")
	f.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	f.BoolVar(&o.trace, "trace", false, "Export lifecycle spans as JSON to stderr")

	return cmd
}

func runServe(ctx context.Context, o serveOptions) error {
	log, err := newLogger(o.logLevel)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []server.Option{server.WithLogger(log)}
	if o.trace {
		tp, err := newTracerProvider(os.Stderr)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(flushCtx)
		}()
		opts = append(opts, server.WithTracerProvider(tp))
	}

	h := &echoHandler{log: log, done: make(chan error, 1)}
	srv, err := server.New(h, append(opts,
		server.WithNoDelay(o.noDelay),
		server.WithKeepAlive(o.keepAlive, o.keepAliveTime, o.keepAliveInterval),
		server.WithLinger(o.linger, o.lingerTime),
		server.WithMaxPacketSize(o.maxPacket),
		server.WithMaxQueuedPackets(o.maxQueue),
		server.WithMetricsRegisterer(prometheus.DefaultRegisterer),
	)...)
	if err != nil {
		return err
	}
	h.srv = srv

	if err := srv.Start(o.port, o.backlog); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	var admin *http.Server
	if o.adminAddr != "" {
		admin = &http.Server{
			Addr:              o.adminAddr,
			Handler:           adminRouter(srv),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("admin listener failed", "addr", o.adminAddr, "err", err)
			}
		}()
		log.Info("admin listener started", "addr", o.adminAddr)
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case runErr = <-h.done:
	}

	srv.Close()
	if admin != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = admin.Shutdown(shutdownCtx)
	}
	return runErr
}

// echoHandler sends every received packet back to its sender.
type echoHandler struct {
	server.NopHandler
	srv  *server.Server
	log  *slog.Logger
	done chan error
}

func (h *echoHandler) OnClientConnected(s api.Session) {
	h.log.Info("client connected", "session", s.ID(), "remote", s.RemoteAddr())
}

func (h *echoHandler) OnClientDisconnected(s api.Session) {
	h.log.Info("client disconnected", "session", s.ID())
}

func (h *echoHandler) OnClientDisconnectedByError(s api.Session, err error) {
	h.log.Warn("client dropped", "session", s.ID(), "err", err)
}

func (h *echoHandler) OnPacketReceived(s api.Session, packet []byte) {
	if err := h.srv.SendTo(s, packet); err != nil && !errors.Is(err, api.ErrSessionClosed) {
		h.log.Warn("echo failed", "session", s.ID(), "err", err)
	}
}

func (h *echoHandler) OnClosedByError(err error) {
	select {
	case h.done <- err:
	default:
	}
}
