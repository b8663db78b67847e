// File: server/notify.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/momentics/hioload-tcp/api"
)

// notify runs one owner callback. A panic is logged and swallowed so a
// faulty handler cannot take down an I/O goroutine or other clients.
func (s *Server) notify(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.handlerPanics.Inc()
			s.log.Error("handler panic recovered", "event", event, "panic", r)
		}
	}()
	fn()
}

// NopHandler implements api.Handler with empty callbacks. Embed it to
// override only the events of interest.
type NopHandler struct{}

var _ api.Handler = NopHandler{}

func (NopHandler) OnStarted() {}
func (NopHandler) OnStartFailed(error) {}
func (NopHandler) OnClosed() {}
func (NopHandler) OnClosedByError(error) {}
func (NopHandler) OnClientConnected(api.Session) {}
func (NopHandler) OnClientDisconnected(api.Session) {}
func (NopHandler) OnClientDisconnectedByError(api.Session, error) {}
func (NopHandler) OnHeaderReceived(api.Session, []byte) {}
func (NopHandler) OnPacketReceived(api.Session, []byte) {}
