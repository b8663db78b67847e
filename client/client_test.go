package client_test

import (
	"bytes"
	"errors"
	"net"
	"testing"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/client"
	"github.com/momentics/hioload-tcp/protocol"
)

func TestConnRoundTripOverPipe(t *testing.T) {
	a, b := net.Pipe()
	ca := client.NewConn(a, client.Config{})
	cb := client.NewConn(b, client.Config{})
	defer ca.Close()
	defer cb.Close()

	go func() {
		_ = ca.WritePacket([]byte("hello"))
	}()
	got, err := cb.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Errorf("got %q", got)
	}
}

func TestConnRejectsInvalidLength(t *testing.T) {
	a, b := net.Pipe()
	cb := client.NewConn(b, client.Config{})
	defer a.Close()
	defer cb.Close()

	go func() {
		_, _ = a.Write(protocol.NewLengthCodec().EncodeHeader(0))
	}()
	if _, err := cb.ReadPacket(); !errors.Is(err, api.ErrInvalidPacketLength) {
		t.Fatalf("expected ErrInvalidPacketLength, got %v", err)
	}
}

func TestConnRejectsOversized(t *testing.T) {
	a, b := net.Pipe()
	cb := client.NewConn(b, client.Config{MaxPacketSize: 4})
	defer a.Close()
	defer cb.Close()

	go func() {
		_, _ = a.Write(protocol.NewLengthCodec().EncodeHeader(5))
	}()
	if _, err := cb.ReadPacket(); !errors.Is(err, api.ErrPacketTooLarge) {
		t.Fatalf("expected ErrPacketTooLarge, got %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	c := client.NewConn(a, client.Config{})
	if err := c.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestWritePacketRejectsUnrepresentableLength(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	ca := client.NewConn(a, client.Config{Codec: protocol.NewUint16Codec()})
	defer ca.Close()

	// net.Pipe is unbuffered: any write would block without a reader.
	if err := ca.WritePacket(make([]byte, 70000)); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
