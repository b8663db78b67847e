// File: api/handler.go
// Package api defines the server owner callback contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "net"

// Session is the view of a connected client exposed to owner callbacks.
type Session interface {
	// ID is unique for the lifetime of the process.
	ID() uint64
	RemoteAddr() net.Addr
	LocalAddr() net.Addr
}

// Handler receives every lifecycle, connection and packet event of a server.
//
// Callbacks run on the server's I/O goroutines, concurrently with each other,
// and must not block for long. Packet and header slices are owned by the callee.
type Handler interface {
	OnStarted()
	OnStartFailed(err error)
	OnClosed()
	OnClosedByError(err error)
	OnClientConnected(s Session)
	OnClientDisconnected(s Session)
	OnClientDisconnectedByError(s Session, err error)
	OnHeaderReceived(s Session, header []byte)
	OnPacketReceived(s Session, packet []byte)
}
