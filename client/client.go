// File: client/client.go
// Package client provides a blocking client for length-prefixed TCP servers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Conn writes header||payload frames and reads them back using the same
// api.Codec as the server. Writes are serialized; reads must come from a
// single goroutine.

package client

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/protocol"
)

// Config holds all client-side configuration parameters.
type Config struct {
	Codec         api.Codec     // header codec, must match the server
	DialTimeout   time.Duration // 0 = no timeout
	ReadTimeout   time.Duration // per ReadPacket deadline, 0 = none
	WriteTimeout  time.Duration // per WritePacket deadline, 0 = none
	MaxPacketSize int           // inbound limit, 0 = unlimited
	NoDelay       bool
}

// Option customizes a client Config.
type Option func(*Config)

// WithCodec sets the header codec.
func WithCodec(c api.Codec) Option {
	return func(cfg *Config) {
		if c != nil {
			cfg.Codec = c
		}
	}
}

// WithTimeouts sets dial, read and write timeouts.
func WithTimeouts(dial, read, write time.Duration) Option {
	return func(cfg *Config) {
		cfg.DialTimeout = dial
		cfg.ReadTimeout = read
		cfg.WriteTimeout = write
	}
}

// WithMaxPacketSize bounds inbound packets.
func WithMaxPacketSize(n int) Option {
	return func(cfg *Config) {
		cfg.MaxPacketSize = n
	}
}

// WithNoDelay toggles TCP_NODELAY.
func WithNoDelay(on bool) Option {
	return func(cfg *Config) {
		cfg.NoDelay = on
	}
}

// Conn is a framed client connection.
type Conn struct {
	cfg  Config
	conn net.Conn
	br   *bufio.Reader
	wmu  sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to addr.
func Dial(addr string, opts ...Option) (*Conn, error) {
	cfg := Config{Codec: protocol.NewLengthCodec(), DialTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	d := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := d.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(cfg.NoDelay)
	}
	return NewConn(conn, cfg), nil
}

// NewConn wraps an established connection.
func NewConn(conn net.Conn, cfg Config) *Conn {
	if cfg.Codec == nil {
		cfg.Codec = protocol.NewLengthCodec()
	}
	return &Conn{cfg: cfg, conn: conn, br: bufio.NewReader(conn)}
}

// WritePacket sends one framed packet. Safe for concurrent use.
// Payloads whose length the codec cannot represent are rejected unsent.
func (c *Conn) WritePacket(payload []byte) error {
	if n := c.cfg.Codec.DecodeHeader(c.cfg.Codec.EncodeHeader(len(payload))); n != len(payload) {
		return fmt.Errorf("payload length %d: %w", len(payload), api.ErrInvalidArgument)
	}
	frame := protocol.Frame(c.cfg.Codec, payload)
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.cfg.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}
	return nil
}

// WriteRaw writes bytes without framing. Intended for protocol tests.
func (c *Conn) WriteRaw(b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.conn.Write(b)
	return err
}

// ReadPacket blocks until a full packet arrives and returns its payload.
func (c *Conn) ReadPacket() ([]byte, error) {
	if c.cfg.ReadTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
	header := make([]byte, c.cfg.Codec.HeaderSize())
	if _, err := io.ReadFull(c.br, header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	n := c.cfg.Codec.DecodeHeader(header)
	if n <= 0 {
		return nil, fmt.Errorf("length %d: %w", n, api.ErrInvalidPacketLength)
	}
	if c.cfg.MaxPacketSize > 0 && n > c.cfg.MaxPacketSize {
		return nil, fmt.Errorf("length %d: %w", n, api.ErrPacketTooLarge)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(c.br, payload); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return payload, nil
}

// LocalAddr returns the local address.
func (c *Conn) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// RemoteAddr returns the server address.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Close closes the connection. Idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
