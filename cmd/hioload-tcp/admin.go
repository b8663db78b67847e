// File: cmd/hioload-tcp/admin.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/momentics/hioload-tcp/api"
)

// stateSource is the slice of *server.Server the admin endpoints read.
type stateSource interface {
	Stats() api.ServerStats
	DebugState() map[string]any
	IsRunning() bool
	IsAcceptConnecting() bool
	SetAcceptConnection(bool)
}

type stateResponse struct {
	State  string          `json:"state"`
	Stats  api.ServerStats `json:"stats"`
	Probes map[string]any  `json:"probes"`
}

func adminRouter(src stateSource) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !src.IsRunning() {
			http.Error(w, "not running", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/debug/state", func(w http.ResponseWriter, r *http.Request) {
		stats := src.Stats()
		writeJSON(w, stateResponse{
			State:  stats.State.String(),
			Stats:  stats,
			Probes: src.DebugState(),
		})
	})

	r.Route("/accept", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]bool{"accept": src.IsAcceptConnecting()})
		})
		r.Put("/{enabled}", func(w http.ResponseWriter, r *http.Request) {
			on, err := strconv.ParseBool(chi.URLParam(r, "enabled"))
			if err != nil {
				http.Error(w, "enabled must be a boolean", http.StatusBadRequest)
				return
			}
			src.SetAcceptConnection(on)
			writeJSON(w, map[string]bool{"accept": on})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
