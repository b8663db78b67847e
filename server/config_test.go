package server

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/momentics/hioload-tcp/protocol"
)

func TestOptionsApply(t *testing.T) {
	cfg := DefaultConfig()
	for _, opt := range []Option{
		WithNoDelay(true),
		WithKeepAlive(true, 10*time.Second, 0),
		WithLinger(true, 0),
		WithMaxPacketSize(1 << 20),
		WithMaxQueuedPackets(64),
		WithShardCount(4),
		WithCodec(nil),
		WithTracerName(""),
	} {
		opt(cfg)
	}
	if !cfg.NoDelay || !cfg.Linger {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.KeepAliveTime != 10*time.Second || cfg.KeepAliveInterval != time.Second {
		t.Errorf("keep-alive timing = %v/%v", cfg.KeepAliveTime, cfg.KeepAliveInterval)
	}
	if cfg.LingerTime != 3*time.Second {
		t.Errorf("zero linger time should keep the default, got %v", cfg.LingerTime)
	}
	if cfg.Codec == nil || cfg.TracerName == "" {
		t.Error("nil codec or empty tracer name should keep defaults")
	}

	o := cfg.transportOptions(false)
	if o.KeepAlive || !o.NoDelay || !o.Linger || o.KeepAliveTime != 10*time.Second {
		t.Errorf("transport options = %+v", o)
	}
}

func TestCustomCodec(t *testing.T) {
	srv, rec := startServer(t, WithCodec(protocol.NewLengthCodec(protocol.WithByteOrder(binary.BigEndian))))
	c := dial(t, srv)
	rec.next(t, evConnected)

	if err := c.WriteRaw([]byte{0, 0, 0, 2, 'o', 'k'}); err != nil {
		t.Fatalf("WriteRaw: %v", err)
	}
	if h := rec.next(t, evHeader); h.data[3] != 2 {
		t.Errorf("header = %v", h.data)
	}
	if p := rec.next(t, evPacket); string(p.data) != "ok" {
		t.Errorf("packet = %q", p.data)
	}
}

func TestAcceptPolicyFollowsRuntimeSetting(t *testing.T) {
	srv, err := New(NopHandler{}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv.Runtime().Set(SettingAcceptConnection, false)
	if srv.IsAcceptConnecting() {
		t.Fatal("runtime setting did not disable accepting")
	}
	srv.Runtime().Set(SettingAcceptConnection, "yes")
	if srv.IsAcceptConnecting() {
		t.Fatal("non-bool value must be ignored")
	}
	srv.SetAcceptConnection(true)
	if v, _ := srv.Runtime().Get(SettingAcceptConnection); v != true {
		t.Fatalf("stored setting = %v", v)
	}
	if !srv.IsAcceptConnecting() {
		t.Fatal("SetAcceptConnection(true) not applied")
	}
}
